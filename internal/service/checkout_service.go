package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/events"
	"storefront/internal/invoice"
	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/workflow"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CheckoutConfig holds the store-wide settings used by checkout and finalize.
type CheckoutConfig struct {
	Currency    string
	Company     invoice.Company
	StepTimeout time.Duration
	Retry       workflow.RetryConfig
}

// CheckoutDeps are the collaborators of the checkout service.
type CheckoutDeps struct {
	Checkouts repository.CheckoutRepository
	Orders    repository.OrderRepository
	Carts     repository.CartRepository
	Products  ProductService
	Sequencer *Sequencer
	Invoices  invoice.Generator
	Publisher events.Publisher
	Metrics   *metrics.Metrics
}

// checkoutService implements CheckoutService.
type checkoutService struct {
	checkouts repository.CheckoutRepository
	orders    repository.OrderRepository
	carts     repository.CartRepository
	products  ProductService
	sequencer *Sequencer
	invoicer  *invoicer
	publisher events.Publisher
	metrics   *metrics.Metrics
	runner    *workflow.Runner
	currency  string
	now       func() time.Time
	logger    zerolog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(deps CheckoutDeps, cfg CheckoutConfig, logger zerolog.Logger) CheckoutService {
	logger = logger.With().Str("service", "checkout").Logger()
	return &checkoutService{
		checkouts: deps.Checkouts,
		orders:    deps.Orders,
		carts:     deps.Carts,
		products:  deps.Products,
		sequencer: deps.Sequencer,
		invoicer:  newInvoicer(deps.Invoices, deps.Orders, cfg.Company, deps.Metrics, logger),
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		runner: workflow.NewRunner("finalize", deps.Metrics, logger,
			workflow.WithRetry(cfg.Retry),
			workflow.WithStepTimeout(cfg.StepTimeout),
			workflow.WithRetryPolicy(retryable),
		),
		currency: cfg.Currency,
		now:      time.Now,
		logger:   logger,
	}
}

// retryable reports whether a failed step may succeed on another attempt.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch model.KindOf(err) {
	case model.KindUnexpected, model.KindExternalFailure:
		return true
	default:
		return false
	}
}

// Create validates the request and stores a new unpaid session.
func (s *checkoutService) Create(ctx context.Context, userID string, req *model.CheckoutRequest) (*model.CheckoutSession, error) {
	if userID == "" {
		return nil, model.ErrUnauthenticated
	}
	if req == nil || len(req.Items) == 0 {
		return nil, model.ErrEmptyCheckout
	}

	subtotal := decimal.Zero
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, model.ErrInvalidQuantity
		}
		if item.ProductID == "" {
			return nil, model.InvalidInput(model.ErrCodeMissingField, "productId is required for every item")
		}
		if item.Price.IsNegative() {
			return nil, model.InvalidInput(model.ErrCodeInvalidPrice, "item price must not be negative")
		}
		subtotal = subtotal.Add(item.Subtotal())
	}

	discount := orZero(req.Discount)
	shipping := orZero(req.ShippingCost)
	if discount.IsNegative() || shipping.IsNegative() {
		return nil, model.InvalidInput(model.ErrCodeInvalidTotal, "discount and shipping cost must not be negative")
	}
	expected := subtotal.Sub(discount).Add(shipping).Round(2)

	total := expected
	if req.TotalPrice != nil && !req.TotalPrice.IsZero() {
		if !req.TotalPrice.Round(2).Equal(expected) {
			s.logger.Warn().
				Str("user_id", userID).
				Str("supplied_total", req.TotalPrice.String()).
				Str("computed_total", expected.String()).
				Msg("checkout total mismatch")
			return nil, model.ErrTotalMismatch
		}
		total = req.TotalPrice.Round(2)
	}

	now := s.now().UTC()
	session := &model.CheckoutSession{
		ID:              uuid.New(),
		UserID:          userID,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress.Normalize(),
		PaymentMethod:   req.PaymentMethod,
		Subtotal:        subtotal.Round(2),
		Discount:        discount,
		ShippingCost:    shipping,
		TotalPrice:      total,
		Currency:        s.currency,
		PaymentStatus:   model.PaymentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.checkouts.Create(ctx, session); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create checkout session")
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.logger.Info().
		Str("checkout_id", session.ID.String()).
		Str("user_id", userID).
		Int("item_count", len(session.Items)).
		Str("total", session.TotalPrice.StringFixed(2)).
		Msg("checkout session created")

	return session, nil
}

// GetByID returns the session if it belongs to userID. Other users get not found.
func (s *checkoutService) GetByID(ctx context.Context, id uuid.UUID, userID string) (*model.CheckoutSession, error) {
	session, err := s.checkouts.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("checkout_id", id.String()).Msg("failed to get checkout session")
		return nil, fmt.Errorf("failed to get checkout session: %w", err)
	}
	if session == nil || session.UserID != userID {
		return nil, model.ErrSessionNotFound
	}
	return session, nil
}

// RecordPayment marks the session paid. Only "paid" is accepted; a replay keeps the original payment.
func (s *checkoutService) RecordPayment(ctx context.Context, id uuid.UUID, userID string, req *model.PaymentRequest) (*model.CheckoutSession, error) {
	session, err := s.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if req == nil || model.PaymentStatus(req.PaymentStatus) != model.PaymentPaid {
		return nil, model.ErrInvalidPaymentStatus
	}

	applied, err := s.checkouts.MarkPaid(ctx, id, req.PaymentDetails, s.now().UTC())
	if err != nil {
		s.logger.Error().Err(err).Str("checkout_id", id.String()).Msg("failed to record payment")
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}
	if !applied {
		s.logger.Info().Str("checkout_id", id.String()).Msg("payment already recorded, returning stored session")
		if session.IsPaid {
			return session, nil
		}
	} else {
		s.logger.Info().Str("checkout_id", id.String()).Msg("payment recorded")
	}

	return s.GetByID(ctx, id, userID)
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
