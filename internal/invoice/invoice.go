// Package invoice renders order invoices and stores them.
package invoice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Company is the seller block printed on every invoice.
type Company struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Email   string `json:"email"`
	TaxID   string `json:"taxId,omitempty"`
}

// Customer is the buyer block.
type Customer struct {
	UserID  string                `json:"userId"`
	Name    string                `json:"name"`
	Address model.ShippingAddress `json:"address"`
}

// Request carries everything needed to issue one invoice.
type Request struct {
	Order    *model.Order
	Company  Company
	Customer Customer
	Sequence model.Reference
}

// Document is an issued invoice.
type Document struct {
	Number   string    `json:"number"`
	Path     string    `json:"path"`
	IssuedAt time.Time `json:"issuedAt"`
}

// Generator issues invoices.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Document, error)
}

type line struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Amount    decimal.Decimal `json:"amount"`
}

type rendered struct {
	Number        string          `json:"number"`
	IssuedAt      time.Time       `json:"issuedAt"`
	OrderID       string          `json:"orderId"`
	Company       Company         `json:"company"`
	Customer      Customer        `json:"customer"`
	Lines         []line          `json:"lines"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	PaymentMethod string          `json:"paymentMethod"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
}

// documentGenerator renders a JSON invoice and hands it to a Storage.
type documentGenerator struct {
	storage Storage
	now     func() time.Time
	logger  zerolog.Logger
}

// NewGenerator creates a generator writing to storage.
func NewGenerator(storage Storage, logger zerolog.Logger) Generator {
	return &documentGenerator{
		storage: storage,
		now:     time.Now,
		logger:  logger.With().Str("component", "invoice-generator").Logger(),
	}
}

// Generate renders req.Order and stores it under invoices/<number>.json.
func (g *documentGenerator) Generate(ctx context.Context, req Request) (*Document, error) {
	if req.Order == nil {
		return nil, fmt.Errorf("invoice request has no order")
	}

	number := req.Sequence.String()
	issuedAt := g.now().UTC()

	body, err := render(number, issuedAt, req)
	if err != nil {
		return nil, err
	}

	path, err := g.storage.Put(ctx, "invoices/"+number+".json", body)
	if err != nil {
		g.logger.Error().
			Err(err).
			Str("order_id", req.Order.ID.String()).
			Str("invoice_number", number).
			Msg("failed to store invoice")
		return nil, fmt.Errorf("failed to store invoice %s: %w", number, err)
	}

	g.logger.Info().
		Str("order_id", req.Order.ID.String()).
		Str("invoice_number", number).
		Str("path", path).
		Msg("invoice generated")

	return &Document{Number: number, Path: path, IssuedAt: issuedAt}, nil
}

func render(number string, issuedAt time.Time, req Request) ([]byte, error) {
	doc := rendered{
		Number:        number,
		IssuedAt:      issuedAt,
		OrderID:       req.Order.ID.String(),
		Company:       req.Company,
		Customer:      req.Customer,
		Lines:         make([]line, 0, len(req.Order.Items)),
		Total:         req.Order.TotalPrice,
		Currency:      req.Order.Currency,
		PaymentMethod: req.Order.PaymentMethod,
		PaidAt:        req.Order.PaidAt,
	}
	for _, it := range req.Order.Items {
		doc.Lines = append(doc.Lines, line{
			ProductID: it.ProductID,
			Name:      it.Name,
			Size:      it.Size,
			Color:     it.Color,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
			Amount:    it.Subtotal(),
		})
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render invoice %s: %w", number, err)
	}
	return body, nil
}
