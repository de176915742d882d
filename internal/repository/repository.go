package repository

import (
	"context"
	"encoding/json"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
)

// ProductRepository defines the interface for product data access operations.
type ProductRepository interface {
	// GetAll retrieves all products with pagination support.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by its ID. Returns nil when absent.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// Create inserts a new product.
	Create(ctx context.Context, product *model.Product) error

	// Update writes the fields set in changes and returns the stored product.
	Update(ctx context.Context, id string, changes *model.ProductRequest) (*model.Product, error)

	// DecrementStock lowers stock by amount, clamping at zero.
	DecrementStock(ctx context.Context, id string, amount int) (*model.StockAdjustment, error)
}

// CartRepository defines cart persistence. Line increments are atomic per (owner, product, size, color).
type CartRepository interface {
	// GetByOwner returns the owner's cart, or nil when there is none.
	GetByOwner(ctx context.Context, owner model.Owner) (*model.Cart, error)

	// AddLine increments or appends a line, creating the cart if needed, and returns the updated cart.
	AddLine(ctx context.Context, owner model.Owner, line model.CartLine) (*model.Cart, error)

	// SetLineQuantity sets a line's quantity; a quantity <= 0 removes it.
	SetLineQuantity(ctx context.Context, owner model.Owner, key model.LineKey, quantity int) (*model.Cart, error)

	// RemoveLine deletes a single line.
	RemoveLine(ctx context.Context, owner model.Owner, key model.LineKey) (*model.Cart, error)

	// MergeInto adds the lines of from's cart into to's cart atomically and returns to's cart.
	// Returns ErrCartNotFound when from has no cart.
	MergeInto(ctx context.Context, from, to model.Owner) (*model.Cart, error)

	// Reassign moves the cart of from to to.
	Reassign(ctx context.Context, from, to model.Owner) error

	// Delete removes the owner's cart and reports whether one existed.
	Delete(ctx context.Context, owner model.Owner) (bool, error)
}

// CheckoutRepository defines checkout session persistence. State changes are conditional writes.
type CheckoutRepository interface {
	// Create inserts a new session.
	Create(ctx context.Context, session *model.CheckoutSession) error

	// GetByID returns the session, or nil when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.CheckoutSession, error)

	// MarkPaid flips an unpaid session to paid. Returns false when it was already paid.
	MarkPaid(ctx context.Context, id uuid.UUID, details json.RawMessage, paidAt time.Time) (bool, error)

	// ClaimFinalization sets is_finalized on a paid, unfinalized session under token. Repeating the
	// claim with the same token succeeds until an order is linked. Returns false if another caller won.
	ClaimFinalization(ctx context.Context, id, token uuid.UUID, at time.Time) (bool, error)

	// ReleaseFinalization undoes the claim held by token when it never produced an order.
	ReleaseFinalization(ctx context.Context, id, token uuid.UUID) error
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// Create inserts the order and its items and links the checkout session, in one transaction.
	Create(ctx context.Context, order *model.Order) error

	// GetByID retrieves an order with its items. Returns nil when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string) ([]model.Order, error)

	// UpdateStatus persists status and delivery fields.
	UpdateStatus(ctx context.Context, order *model.Order) error

	// AttachInvoice sets invoice fields on an order that has none. Returns false otherwise.
	AttachInvoice(ctx context.Context, id uuid.UUID, number, path string) (bool, error)

	// SalesTotals aggregates order count, revenue and per-status counts.
	SalesTotals(ctx context.Context) (*model.SalesSummary, error)
}

// CounterRepository hands out values of named sequences.
type CounterRepository interface {
	// Next atomically increments and returns the counter.
	Next(ctx context.Context, name string) (int64, error)
}

// ReviewRepository defines review persistence.
type ReviewRepository interface {
	// Create inserts the review and recomputes the product's rating aggregate.
	Create(ctx context.Context, review *model.Review) error

	// ListByProduct returns the product's reviews, newest first.
	ListByProduct(ctx context.Context, productID string) ([]model.Review, error)
}
