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
	"github.com/shopspring/decimal"
)

const orderColumns = `id, user_id, checkout_id, shipping_address, payment_method, total_price, currency,
	is_paid, paid_at, status, is_delivered, delivered_at, invoice_sequence, invoice_sequence_fallback,
	COALESCE(invoice_number, ''), COALESCE(invoice_path, ''), created_at, updated_at`

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// Create inserts the order and its items and links the checkout session, in one transaction.
func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping address: %w", err)
	}

	_, err = withTx(ctx, r.pool, func(tx pgx.Tx) (struct{}, error) {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (
				id, user_id, checkout_id, shipping_address, payment_method, total_price, currency,
				is_paid, paid_at, status, is_delivered, invoice_sequence, invoice_sequence_fallback,
				created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, FALSE, $11, $12, $13, $14)
		`,
			order.ID, order.UserID, order.CheckoutID, address, order.PaymentMethod, order.TotalPrice, order.Currency,
			order.IsPaid, order.PaidAt, string(order.Status), order.InvoiceSequence, order.InvoiceSequenceFallback,
			order.CreatedAt, order.UpdatedAt,
		)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to create order: %w", err)
		}

		if len(order.Items) > 0 {
			batch := &pgx.Batch{}
			for i := range order.Items {
				item := &order.Items[i]
				item.OrderID = order.ID
				if item.ID == uuid.Nil {
					item.ID = uuid.New()
				}
				batch.Queue(`
					INSERT INTO order_items (id, order_id, product_id, name, price, quantity, size, color)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				`, item.ID, item.OrderID, item.ProductID, item.Name, item.Price, item.Quantity, item.Size, item.Color)
			}

			results := tx.SendBatch(ctx, batch)
			for i := range order.Items {
				if _, err := results.Exec(); err != nil {
					results.Close()
					return struct{}{}, fmt.Errorf("failed to create order item %s: %w", order.Items[i].ProductID, err)
				}
			}
			if err := results.Close(); err != nil {
				return struct{}{}, fmt.Errorf("failed to create order items: %w", err)
			}
		}

		tag, err := tx.Exec(ctx, `
			UPDATE checkout_sessions SET order_id = $2, updated_at = NOW()
			WHERE id = $1 AND order_id IS NULL
		`, order.CheckoutID, order.ID)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to link checkout session: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return struct{}{}, model.ErrAlreadyFinalized
		}

		return struct{}{}, nil
	})
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Str("checkout_id", order.CheckoutID.String()).
			Msg("failed to create order")
		return err
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Int("item_count", len(order.Items)).
		Msg("order created successfully")

	return nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o       model.Order
		address []byte
		status  string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.CheckoutID, &address, &o.PaymentMethod, &o.TotalPrice, &o.Currency,
		&o.IsPaid, &o.PaidAt, &status, &o.IsDelivered, &o.DeliveredAt, &o.InvoiceSequence, &o.InvoiceSequenceFallback,
		&o.InvoiceNumber, &o.InvoicePath, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shipping address: %w", err)
	}
	o.Status = model.OrderStatus(status)
	return &o, nil
}

// GetByID retrieves an order by its ID along with its items.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_id", id.String()).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	items, err := r.items(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	order.Items = items[id]

	return order, nil
}

// ListByUser returns the user's orders, newest first.
func (r *orderRepository) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to query orders")
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	ids := []uuid.UUID{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order row")
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order rows")
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	if len(ids) == 0 {
		return orders, nil
	}

	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, nil
}

func (r *orderRepository) items(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]model.OrderItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, product_id, name, price, quantity, size, color
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, product_id, size, color
	`, orderIDs)
	if err != nil {
		r.logger.Error().Err(err).Int("order_count", len(orderIDs)).Msg("failed to query order items")
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[uuid.UUID][]model.OrderItem, len(orderIDs))
	for rows.Next() {
		var item model.OrderItem
		err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Name, &item.Price, &item.Quantity, &item.Size, &item.Color)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order item row")
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order item rows")
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return byOrder, nil
}

// UpdateStatus persists status and delivery fields.
func (r *orderRepository) UpdateStatus(ctx context.Context, order *model.Order) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET status = $2, is_delivered = $3, delivered_at = $4, updated_at = $5
		WHERE id = $1
	`, order.ID, string(order.Status), order.IsDelivered, order.DeliveredAt, order.UpdatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to update order status")
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}

	return nil
}

// AttachInvoice sets invoice fields on an order that has none. Returns false otherwise.
func (r *orderRepository) AttachInvoice(ctx context.Context, id uuid.UUID, number, path string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET invoice_number = $2, invoice_path = $3, updated_at = NOW()
		WHERE id = $1 AND invoice_number IS NULL
	`, id, number, path)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to attach invoice")
		return false, fmt.Errorf("failed to attach invoice: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// SalesTotals aggregates order count, revenue and per-status counts. Cancelled orders do not count as revenue.
func (r *orderRepository) SalesTotals(ctx context.Context) (*model.SalesSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total_price), 0)
		FROM orders
		GROUP BY status
	`)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to aggregate orders")
		return nil, fmt.Errorf("failed to aggregate orders: %w", err)
	}
	defer rows.Close()

	summary := &model.SalesSummary{
		Revenue:     decimal.Zero,
		ByStatus:    map[model.OrderStatus]int{},
		GeneratedAt: time.Now().UTC(),
	}
	for rows.Next() {
		var (
			status string
			count  int
			sum    decimal.Decimal
		)
		if err := rows.Scan(&status, &count, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan order aggregate: %w", err)
		}
		st := model.OrderStatus(status)
		summary.ByStatus[st] = count
		summary.OrderCount += count
		if st != model.OrderCancelled {
			summary.Revenue = summary.Revenue.Add(sum)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order aggregates: %w", err)
	}

	return summary, nil
}
