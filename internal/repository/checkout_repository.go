package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// checkoutRepository implements CheckoutRepository using PostgreSQL.
type checkoutRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCheckoutRepository creates a new PostgreSQL-backed checkout session repository.
func NewCheckoutRepository(pool *pgxpool.Pool, logger zerolog.Logger) CheckoutRepository {
	return &checkoutRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "checkout").Logger(),
	}
}

// Create inserts a new session.
func (r *checkoutRepository) Create(ctx context.Context, s *model.CheckoutSession) error {
	items, err := json.Marshal(s.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal checkout items: %w", err)
	}
	address, err := json.Marshal(s.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping address: %w", err)
	}

	query := `
		INSERT INTO checkout_sessions (
			id, user_id, items, shipping_address, payment_method,
			subtotal, discount, shipping_cost, total_price, currency,
			payment_status, is_paid, is_finalized, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, FALSE, $12, $13)
	`

	_, err = r.pool.Exec(ctx, query,
		s.ID, s.UserID, items, address, s.PaymentMethod,
		s.Subtotal, s.Discount, s.ShippingCost, s.TotalPrice, s.Currency,
		string(s.PaymentStatus), s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("checkout_id", s.ID.String()).Msg("failed to create checkout session")
		return fmt.Errorf("failed to create checkout session: %w", err)
	}

	r.logger.Debug().
		Str("checkout_id", s.ID.String()).
		Int("item_count", len(s.Items)).
		Msg("checkout session created")

	return nil
}

// GetByID returns the session, or nil when absent.
func (r *checkoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.CheckoutSession, error) {
	query := `
		SELECT id, user_id, items, shipping_address, payment_method,
			subtotal, discount, shipping_cost, total_price, currency,
			payment_status, is_paid, paid_at, payment_details,
			is_finalized, finalized_at, order_id, created_at, updated_at
		FROM checkout_sessions
		WHERE id = $1
	`

	var (
		s       model.CheckoutSession
		items   []byte
		address []byte
		status  string
		details []byte
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.UserID, &items, &address, &s.PaymentMethod,
		&s.Subtotal, &s.Discount, &s.ShippingCost, &s.TotalPrice, &s.Currency,
		&status, &s.IsPaid, &s.PaidAt, &details,
		&s.IsFinalized, &s.FinalizedAt, &s.OrderID, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("checkout_id", id.String()).Msg("checkout session not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("checkout_id", id.String()).Msg("failed to query checkout session")
		return nil, fmt.Errorf("failed to query checkout session: %w", err)
	}

	if err := json.Unmarshal(items, &s.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkout items: %w", err)
	}
	if err := json.Unmarshal(address, &s.ShippingAddress); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shipping address: %w", err)
	}
	s.PaymentStatus = model.PaymentStatus(status)
	if len(details) > 0 {
		s.PaymentDetails = json.RawMessage(details)
	}

	return &s, nil
}

// MarkPaid flips an unpaid session to paid. Returns false when it was already paid.
func (r *checkoutRepository) MarkPaid(ctx context.Context, id uuid.UUID, details json.RawMessage, paidAt time.Time) (bool, error) {
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}

	query := `
		UPDATE checkout_sessions
		SET is_paid = TRUE, payment_status = $2, payment_details = $3, paid_at = $4, updated_at = $4
		WHERE id = $1 AND NOT is_paid
	`

	tag, err := r.pool.Exec(ctx, query, id, string(model.PaymentPaid), []byte(details), paidAt)
	if err != nil {
		r.logger.Error().Err(err).Str("checkout_id", id.String()).Msg("failed to mark session paid")
		return false, fmt.Errorf("failed to mark session paid: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// ClaimFinalization sets is_finalized on a paid, unfinalized session and records token as the claim
// holder. Repeating the call with the same token succeeds while no order is linked, so a claim whose
// commit was not acknowledged can be retried. Returns false if another caller holds the claim.
func (r *checkoutRepository) ClaimFinalization(ctx context.Context, id, token uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE checkout_sessions
		SET is_finalized = TRUE, finalize_token = $2, finalized_at = $3, updated_at = $3
		WHERE id = $1 AND is_paid
		  AND (NOT is_finalized OR (finalize_token = $2 AND order_id IS NULL))
	`

	tag, err := r.pool.Exec(ctx, query, id, token, at)
	if err != nil {
		r.logger.Error().Err(err).Str("checkout_id", id.String()).Msg("failed to claim finalization")
		return false, fmt.Errorf("failed to claim finalization: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// ReleaseFinalization undoes the claim held by token when it never produced an order.
func (r *checkoutRepository) ReleaseFinalization(ctx context.Context, id, token uuid.UUID) error {
	query := `
		UPDATE checkout_sessions
		SET is_finalized = FALSE, finalize_token = NULL, finalized_at = NULL, updated_at = NOW()
		WHERE id = $1 AND is_finalized AND finalize_token = $2 AND order_id IS NULL
	`

	if _, err := r.pool.Exec(ctx, query, id, token); err != nil {
		r.logger.Error().Err(err).Str("checkout_id", id.String()).Msg("failed to release finalization")
		return fmt.Errorf("failed to release finalization: %w", err)
	}

	return nil
}
