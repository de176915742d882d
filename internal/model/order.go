package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered, OrderCancelled},
}

// ParseOrderStatus validates a status string.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return st, nil
	default:
		return "", ErrInvalidOrderStatus
	}
}

// CanTransitionTo reports whether the order may move from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order is the durable record created when a paid checkout is finalized.
// Only status, delivery and invoice fields change after creation.
type Order struct {
	ID                      uuid.UUID       `json:"id" db:"id"`
	UserID                  string          `json:"userId" db:"user_id"`
	CheckoutID              uuid.UUID       `json:"checkoutId" db:"checkout_id"`
	Items                   []OrderItem     `json:"orderItems"`
	ShippingAddress         ShippingAddress `json:"shippingAddress" db:"shipping_address"`
	PaymentMethod           string          `json:"paymentMethod" db:"payment_method"`
	TotalPrice              decimal.Decimal `json:"totalPrice" db:"total_price"`
	Currency                string          `json:"currency" db:"currency"`
	IsPaid                  bool            `json:"isPaid" db:"is_paid"`
	PaidAt                  *time.Time      `json:"paidAt,omitempty" db:"paid_at"`
	Status                  OrderStatus     `json:"status" db:"status"`
	IsDelivered             bool            `json:"isDelivered" db:"is_delivered"`
	DeliveredAt             *time.Time      `json:"deliveredAt,omitempty" db:"delivered_at"`
	InvoiceSequence         int64           `json:"-" db:"invoice_sequence"`
	InvoiceSequenceFallback bool            `json:"-" db:"invoice_sequence_fallback"`
	InvoiceNumber           string          `json:"invoiceNumber,omitempty" db:"invoice_number"`
	InvoicePath             string          `json:"invoicePath,omitempty" db:"invoice_path"`
	CreatedAt               time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt               time.Time       `json:"updatedAt" db:"updated_at"`
}

// InvoiceReference returns the counter value drawn for the order's invoice.
func (o *Order) InvoiceReference() Reference {
	return Reference{
		Sequence: SequenceOrderInvoice,
		Value:    o.InvoiceSequence,
		Fallback: o.InvoiceSequenceFallback,
	}
}

// HasInvoice reports whether an invoice was attached.
func (o *Order) HasInvoice() bool {
	return o.InvoiceNumber != ""
}

// OrderItem is a line of an order, copied from the checkout session.
type OrderItem struct {
	ID        uuid.UUID       `json:"-" db:"id"`
	OrderID   uuid.UUID       `json:"-" db:"order_id"`
	ProductID string          `json:"productId" db:"product_id"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Size      string          `json:"size" db:"size"`
	Color     string          `json:"color" db:"color"`
}

// Subtotal returns price times quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderStatusRequest is the admin payload for moving an order along its lifecycle.
type OrderStatusRequest struct {
	Status string `json:"status"`
}

// SalesSummary aggregates orders for the admin report.
type SalesSummary struct {
	Reference   string              `json:"reference"`
	OrderCount  int                 `json:"orderCount"`
	Revenue     decimal.Decimal     `json:"revenue"`
	ByStatus    map[OrderStatus]int `json:"byStatus"`
	GeneratedAt time.Time           `json:"generatedAt"`
}
