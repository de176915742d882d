package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/events"
	"storefront/internal/model"
	"storefront/internal/workflow"

	"github.com/google/uuid"
)

// Finalize turns a paid session into an order.
//
// The claim on the session and the order insert are mandatory: if either fails the claim is
// released and the error returned. The claim is held under a token drawn per call, so a retried
// claim whose first commit went unacknowledged still wins. Invoice, cart clearing, stock decrement
// and the event are best-effort, only logged when they fail, and run detached from the caller once
// the order exists.
func (s *checkoutService) Finalize(ctx context.Context, id uuid.UUID, userID string) (_ *model.Order, err error) {
	session, err := s.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !session.IsPaid {
		return nil, model.ErrPaymentNotCompleted
	}
	if session.IsFinalized {
		return nil, model.ErrAlreadyFinalized
	}

	s.metrics.FinalizeStarted()
	defer func() { s.metrics.FinalizeFinished(err) }()

	var order *model.Order
	token := uuid.New()
	steps := []workflow.Step{
		{
			Name:   "claim",
			Policy: workflow.Mandatory,
			Run: func(ctx context.Context) error {
				claimed, err := s.checkouts.ClaimFinalization(ctx, session.ID, token, s.now().UTC())
				if err != nil {
					return err
				}
				if !claimed {
					return model.ErrAlreadyFinalized
				}
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.checkouts.ReleaseFinalization(ctx, session.ID, token)
			},
			CompensateOnFailure: true,
		},
		{
			Name:   "create-order",
			Policy: workflow.Mandatory,
			Run: func(ctx context.Context) error {
				ref := s.sequencer.Next(ctx, model.SequenceOrderInvoice)
				candidate := s.buildOrder(session, ref)
				if err := s.orders.Create(ctx, candidate); err != nil {
					return err
				}
				order = candidate
				return nil
			},
		},
		{
			Name:     "invoice",
			Policy:   workflow.BestEffort,
			Detached: true,
			Run: func(ctx context.Context) error {
				return s.invoicer.issue(ctx, order)
			},
		},
		{
			Name:     "clear-cart",
			Policy:   workflow.BestEffort,
			Detached: true,
			Run: func(ctx context.Context) error {
				_, err := s.carts.Delete(ctx, model.UserOwner(userID))
				return err
			},
		},
		{
			Name:     "decrement-stock",
			Policy:   workflow.BestEffort,
			Detached: true,
			Run:      s.decrementStockStep(&order),
		},
		{
			Name:     "publish-event",
			Policy:   workflow.BestEffort,
			Detached: true,
			Run: func(ctx context.Context) error {
				return s.publisher.PublishOrderFinalized(ctx, events.NewOrderFinalized(order, s.now()))
			},
		},
	}

	report, err := s.runner.Run(ctx, steps)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("checkout_id", session.ID.String()).
		Str("order_id", order.ID.String()).
		Str("invoice_number", order.InvoiceNumber).
		Int("skipped_steps", len(report.Skipped)).
		Msg("checkout finalized")

	return order, nil
}

// buildOrder copies the session into a new order carrying the drawn invoice sequence.
func (s *checkoutService) buildOrder(session *model.CheckoutSession, ref model.Reference) *model.Order {
	now := s.now().UTC()
	order := &model.Order{
		ID:                      uuid.New(),
		UserID:                  session.UserID,
		CheckoutID:              session.ID,
		Items:                   make([]model.OrderItem, 0, len(session.Items)),
		ShippingAddress:         session.ShippingAddress.Normalize(),
		PaymentMethod:           session.PaymentMethod,
		TotalPrice:              session.TotalPrice,
		Currency:                session.Currency,
		IsPaid:                  true,
		PaidAt:                  session.PaidAt,
		Status:                  model.OrderProcessing,
		InvoiceSequence:         ref.Value,
		InvoiceSequenceFallback: ref.Fallback,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	for _, item := range session.Items {
		order.Items = append(order.Items, model.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Size:      item.Size,
			Color:     item.Color,
		})
	}
	return order
}

// decrementStockStep decrements stock once per order line. Lines that already succeeded are
// not repeated when the step is retried.
func (s *checkoutService) decrementStockStep(order **model.Order) func(context.Context) error {
	done := map[int]bool{}
	return func(ctx context.Context) error {
		var errs []error
		for i, item := range (*order).Items {
			if done[i] {
				continue
			}
			if _, err := s.products.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				s.logger.Warn().
					Err(err).
					Str("order_id", (*order).ID.String()).
					Str("product_id", item.ProductID).
					Int("quantity", item.Quantity).
					Msg("stock decrement failed for order line")
				errs = append(errs, fmt.Errorf("product %s: %w", item.ProductID, err))
				continue
			}
			done[i] = true
		}
		return errors.Join(errs...)
	}
}
