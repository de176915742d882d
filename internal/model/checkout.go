package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Placeholder names used when the shipping address omits them.
const (
	DefaultFirstName = "Customer"
	DefaultLastName  = "-"
)

// PaymentStatus is the payment state of a checkout session.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// ShippingAddress is where an order is delivered.
type ShippingAddress struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Normalize fills missing names with placeholders instead of rejecting the address.
func (a ShippingAddress) Normalize() ShippingAddress {
	if strings.TrimSpace(a.FirstName) == "" {
		a.FirstName = DefaultFirstName
	}
	if strings.TrimSpace(a.LastName) == "" {
		a.LastName = DefaultLastName
	}
	return a
}

// FullName joins first and last name.
func (a ShippingAddress) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// CheckoutItem is a frozen copy of a cart line taken when the session is created.
type CheckoutItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
}

// Subtotal returns price times quantity.
func (i CheckoutItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CheckoutItemsFromLines copies cart lines into checkout items.
func CheckoutItemsFromLines(lines []CartLine) []CheckoutItem {
	items := make([]CheckoutItem, len(lines))
	for i, l := range lines {
		items[i] = CheckoutItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.UnitPrice,
			Quantity:  l.Quantity,
			Size:      l.Size,
			Color:     l.Color,
		}
	}
	return items
}

// CheckoutSession snapshots a cart together with shipping and payment state.
// Items, totals and address do not change once the session is paid.
type CheckoutSession struct {
	ID              uuid.UUID       `json:"id"`
	UserID          string          `json:"userId"`
	Items           []CheckoutItem  `json:"checkoutItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	ShippingCost    decimal.Decimal `json:"shippingCost"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	Currency        string          `json:"currency"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	IsPaid          bool            `json:"isPaid"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	PaymentDetails  json.RawMessage `json:"paymentDetails,omitempty"`
	IsFinalized     bool            `json:"isFinalized"`
	FinalizedAt     *time.Time      `json:"finalizedAt,omitempty"`
	OrderID         *uuid.UUID      `json:"orderId,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// CheckoutRequest is the payload for starting a checkout.
// Discount, ShippingCost and TotalPrice are optional; a zero total is computed.
type CheckoutRequest struct {
	Items           []CheckoutItem   `json:"checkoutItems"`
	ShippingAddress ShippingAddress  `json:"shippingAddress"`
	PaymentMethod   string           `json:"paymentMethod"`
	TotalPrice      *decimal.Decimal `json:"totalPrice,omitempty"`
	Discount        *decimal.Decimal `json:"discount,omitempty"`
	ShippingCost    *decimal.Decimal `json:"shippingCost,omitempty"`
}

// PaymentRequest is the payload of the payment callback.
type PaymentRequest struct {
	PaymentStatus  string          `json:"paymentStatus"`
	PaymentDetails json.RawMessage `json:"paymentDetails"`
}
