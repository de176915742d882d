package service

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/invoice"
	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// orderService implements OrderService.
type orderService struct {
	orderRepo repository.OrderRepository
	sequencer *Sequencer
	invoicer  *invoicer
	now       func() time.Time
	logger    zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	sequencer *Sequencer,
	generator invoice.Generator,
	company invoice.Company,
	m *metrics.Metrics,
	logger zerolog.Logger,
) OrderService {
	logger = logger.With().Str("service", "order").Logger()
	return &orderService{
		orderRepo: orderRepo,
		sequencer: sequencer,
		invoicer:  newInvoicer(generator, orderRepo, company, m, logger),
		now:       time.Now,
		logger:    logger,
	}
}

// GetByID retrieves an order. Orders of other users are reported as not found.
func (s *orderService) GetByID(ctx context.Context, id uuid.UUID, userID string) (*model.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		s.logger.Debug().
			Str("order_id", id.String()).
			Str("user_id", userID).
			Msg("order requested by non-owner")
		return nil, model.ErrOrderNotFound
	}
	return order, nil
}

// ListByUser returns the user's orders, newest first.
func (s *orderService) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	if userID == "" {
		return nil, model.ErrUnauthenticated
	}

	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

// UpdateStatus moves the order to status when the lifecycle allows it.
// Delivering an order stamps its delivery time.
func (s *orderService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*model.Order, error) {
	next, err := model.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanTransitionTo(next) {
		s.logger.Warn().
			Str("order_id", id.String()).
			Str("from", string(order.Status)).
			Str("to", string(next)).
			Msg("illegal order status transition")
		return nil, model.ErrIllegalTransition
	}

	now := s.now().UTC()
	order.Status = next
	order.UpdatedAt = now
	if next == model.OrderDelivered {
		order.IsDelivered = true
		order.DeliveredAt = &now
	}

	if err := s.orderRepo.UpdateStatus(ctx, order); err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to update order status")
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	s.logger.Info().
		Str("order_id", id.String()).
		Str("status", string(next)).
		Msg("order status updated")

	return order, nil
}

// RegenerateInvoice issues the invoice of an order whose invoice step failed during finalize.
func (s *orderService) RegenerateInvoice(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.HasInvoice() {
		return nil, model.ErrInvoiceExists
	}

	if err := s.invoicer.issue(ctx, order); err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to regenerate invoice")
		return nil, err
	}
	return order, nil
}

// SalesSummary aggregates all orders and stamps the report with a reportRef reference.
func (s *orderService) SalesSummary(ctx context.Context) (*model.SalesSummary, error) {
	summary, err := s.orderRepo.SalesTotals(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to aggregate sales")
		return nil, fmt.Errorf("failed to aggregate sales: %w", err)
	}

	summary.Reference = s.sequencer.Next(ctx, model.SequenceReportRef).String()
	summary.GeneratedAt = s.now().UTC()
	summary.Revenue = summary.Revenue.Round(2)

	s.logger.Info().
		Str("reference", summary.Reference).
		Int("order_count", summary.OrderCount).
		Str("revenue", summary.Revenue.StringFixed(2)).
		Msg("sales summary generated")

	return summary, nil
}

func (s *orderService) load(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}
	return order, nil
}
