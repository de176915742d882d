package service

import (
	"context"

	"storefront/internal/model"

	"github.com/google/uuid"
)

// ProductService defines operations for catalog management.
type ProductService interface {
	// GetAll retrieves all products with pagination.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by ID.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// Create adds a product and assigns it the next SKU.
	Create(ctx context.Context, req *model.ProductRequest) (*model.Product, error)

	// Update edits the fields present in req.
	Update(ctx context.Context, id string, req *model.ProductRequest) (*model.Product, error)

	// DecrementStock lowers stock by amount, clamping at zero and counting any oversell.
	DecrementStock(ctx context.Context, id string, amount int) (*model.StockAdjustment, error)
}

// CartService defines cart operations for guests and users.
type CartService interface {
	// GetCart returns the owner's cart.
	GetCart(ctx context.Context, owner model.Owner) (*model.Cart, error)

	// AddLine adds quantity units of a product, creating the cart on first use.
	AddLine(ctx context.Context, owner model.Owner, req *model.CartLineRequest) (*model.Cart, error)

	// SetLineQuantity sets a line's quantity exactly. Zero or less removes the line.
	SetLineQuantity(ctx context.Context, owner model.Owner, req *model.CartLineRequest) (*model.Cart, error)

	// RemoveLine deletes one line.
	RemoveLine(ctx context.Context, owner model.Owner, key model.LineKey) (*model.Cart, error)

	// Merge folds the guest cart into the user's cart.
	Merge(ctx context.Context, guestID, userID string) (*model.Cart, error)
}

// CheckoutService drives a checkout session from creation to a finalized order.
type CheckoutService interface {
	// Create opens a checkout session for userID.
	Create(ctx context.Context, userID string, req *model.CheckoutRequest) (*model.CheckoutSession, error)

	// GetByID returns the session if it belongs to userID.
	GetByID(ctx context.Context, id uuid.UUID, userID string) (*model.CheckoutSession, error)

	// RecordPayment applies the payment callback. A repeated "paid" returns the stored session.
	RecordPayment(ctx context.Context, id uuid.UUID, userID string, req *model.PaymentRequest) (*model.CheckoutSession, error)

	// Finalize converts a paid session into an order.
	Finalize(ctx context.Context, id uuid.UUID, userID string) (*model.Order, error)
}

// OrderService defines operations for order management.
type OrderService interface {
	// GetByID retrieves an order if it belongs to userID.
	GetByID(ctx context.Context, id uuid.UUID, userID string) (*model.Order, error)

	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string) ([]model.Order, error)

	// UpdateStatus moves an order along its lifecycle.
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*model.Order, error)

	// RegenerateInvoice issues the invoice of an order that has none.
	RegenerateInvoice(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// SalesSummary aggregates all orders under a fresh report reference.
	SalesSummary(ctx context.Context) (*model.SalesSummary, error)
}

// ReviewService defines product review operations.
type ReviewService interface {
	// Add records userID's review of a product.
	Add(ctx context.Context, productID, userID string, req *model.ReviewRequest) (*model.Review, error)

	// List returns a product's reviews, newest first.
	List(ctx context.Context, productID string) ([]model.Review, error)
}
