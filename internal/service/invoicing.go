package service

import (
	"context"
	"fmt"

	"storefront/internal/invoice"
	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/rs/zerolog"
)

// invoicer issues an order's invoice and records the result on the order.
type invoicer struct {
	generator invoice.Generator
	orders    repository.OrderRepository
	company   invoice.Company
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

func newInvoicer(
	generator invoice.Generator,
	orders repository.OrderRepository,
	company invoice.Company,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *invoicer {
	return &invoicer{
		generator: generator,
		orders:    orders,
		company:   company,
		metrics:   m,
		logger:    logger,
	}
}

// issue generates the invoice for order using its stored sequence value and attaches it.
// On success order.InvoiceNumber and order.InvoicePath are set.
func (i *invoicer) issue(ctx context.Context, order *model.Order) error {
	address := order.ShippingAddress.Normalize()
	doc, err := i.generator.Generate(ctx, invoice.Request{
		Order:   order,
		Company: i.company,
		Customer: invoice.Customer{
			UserID:  order.UserID,
			Name:    address.FullName(),
			Address: address,
		},
		Sequence: order.InvoiceReference(),
	})
	if err != nil {
		i.metrics.RecordInvoiceFailure()
		return fmt.Errorf("%w: %v", model.ErrInvoiceFailed, err)
	}

	attached, err := i.orders.AttachInvoice(ctx, order.ID, doc.Number, doc.Path)
	if err != nil {
		i.metrics.RecordInvoiceFailure()
		return fmt.Errorf("failed to attach invoice %s: %w", doc.Number, err)
	}
	if !attached {
		return model.ErrInvoiceExists
	}

	order.InvoiceNumber = doc.Number
	order.InvoicePath = doc.Path

	i.logger.Info().
		Str("order_id", order.ID.String()).
		Str("invoice_number", doc.Number).
		Msg("invoice attached to order")

	return nil
}
