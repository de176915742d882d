package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OwnerKind tells whether a cart belongs to an anonymous shopper or a signed-in user.
type OwnerKind string

const (
	OwnerGuest OwnerKind = "guest"
	OwnerUser  OwnerKind = "user"
)

// Owner identifies the single owner of a cart.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   string    `json:"id"`
}

// GuestOwner returns the owner reference for a guest identifier.
func GuestOwner(guestID string) Owner {
	return Owner{Kind: OwnerGuest, ID: guestID}
}

// UserOwner returns the owner reference for a user identifier.
func UserOwner(userID string) Owner {
	return Owner{Kind: OwnerUser, ID: userID}
}

// IsZero reports whether the owner is unset.
func (o Owner) IsZero() bool {
	return o.ID == ""
}

func (o Owner) String() string {
	return string(o.Kind) + ":" + o.ID
}

// LineKey is the uniqueness key of a line within one cart.
type LineKey struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

// CartLine is a product in a cart. Name and UnitPrice are captured when the line is first added.
type CartLine struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
}

// Key returns the uniqueness key of the line.
func (l CartLine) Key() LineKey {
	return LineKey{ProductID: l.ProductID, Size: l.Size, Color: l.Color}
}

// Subtotal returns unit price times quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the mutable line collection of one owner.
type Cart struct {
	ID         uuid.UUID       `json:"id"`
	Owner      Owner           `json:"owner"`
	Lines      []CartLine      `json:"products"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// NewCart returns an empty cart for owner.
func NewCart(owner Owner) *Cart {
	now := time.Now().UTC()
	return &Cart{
		ID:         uuid.New(),
		Owner:      owner,
		Lines:      []CartLine{},
		TotalPrice: decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// SumLines returns Σ unitPrice*quantity over lines.
func SumLines(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Recalculate recomputes the derived total. Every mutation ends with it.
func (c *Cart) Recalculate() {
	c.TotalPrice = SumLines(c.Lines)
	c.UpdatedAt = time.Now().UTC()
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// ItemCount returns the total number of units in the cart.
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) indexOf(key LineKey) int {
	for i, l := range c.Lines {
		if l.Key() == key {
			return i
		}
	}
	return -1
}

// Line returns the line stored under key.
func (c *Cart) Line(key LineKey) (CartLine, bool) {
	if i := c.indexOf(key); i >= 0 {
		return c.Lines[i], true
	}
	return CartLine{}, false
}

// AddLine increments an existing line with the same key or appends line as a new one.
// The snapshot on an existing line is kept.
func (c *Cart) AddLine(line CartLine) error {
	if line.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if i := c.indexOf(line.Key()); i >= 0 {
		c.Lines[i].Quantity += line.Quantity
	} else {
		c.Lines = append(c.Lines, line)
	}
	c.Recalculate()
	return nil
}

// SetQuantity sets the quantity of an existing line. Zero or less removes the line.
func (c *Cart) SetQuantity(key LineKey, quantity int) error {
	i := c.indexOf(key)
	if i < 0 {
		return ErrLineNotFound
	}
	if quantity <= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	} else {
		c.Lines[i].Quantity = quantity
	}
	c.Recalculate()
	return nil
}

// RemoveLine deletes the line stored under key.
func (c *Cart) RemoveLine(key LineKey) error {
	i := c.indexOf(key)
	if i < 0 {
		return ErrLineNotFound
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	c.Recalculate()
	return nil
}

// CartLineRequest is the payload for cart line mutations.
type CartLineRequest struct {
	GuestID   string `json:"guestId,omitempty"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

// Key returns the line key addressed by the request.
func (r CartLineRequest) Key() LineKey {
	return LineKey{ProductID: r.ProductID, Size: r.Size, Color: r.Color}
}

// MergeRequest is the payload for merging a guest cart into the caller's cart.
type MergeRequest struct {
	GuestID string `json:"guestId"`
}
