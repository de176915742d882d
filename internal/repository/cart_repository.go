package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// cartRepository implements CartRepository using PostgreSQL.
type cartRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(pool *pgxpool.Pool, logger zerolog.Logger) CartRepository {
	return &cartRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "cart").Logger(),
	}
}

// GetByOwner returns the owner's cart, or nil when there is none.
func (r *cartRepository) GetByOwner(ctx context.Context, owner model.Owner) (*model.Cart, error) {
	cart, err := loadCart(ctx, r.pool, owner)
	if err != nil {
		r.logger.Error().Err(err).Str("owner", owner.String()).Msg("failed to load cart")
		return nil, err
	}
	return cart, nil
}

// AddLine upserts the line in one statement keyed by (cart, product, size, color) and
// recomputes the total inside the same transaction.
func (r *cartRepository) AddLine(ctx context.Context, owner model.Owner, line model.CartLine) (*model.Cart, error) {
	if line.Quantity < 1 {
		return nil, model.ErrInvalidQuantity
	}

	cart, err := withTx(ctx, r.pool, func(tx pgx.Tx) (*model.Cart, error) {
		cartID, err := ensureCart(ctx, tx, uuid.New(), owner)
		if err != nil {
			return nil, err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO cart_lines (cart_id, product_id, name, unit_price, quantity, size, color)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (cart_id, product_id, size, color)
			DO UPDATE SET quantity = cart_lines.quantity + excluded.quantity
		`, cartID, line.ProductID, line.Name, line.UnitPrice, line.Quantity, line.Size, line.Color)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert cart line: %w", err)
		}

		if err := recomputeTotal(ctx, tx, cartID); err != nil {
			return nil, err
		}

		return loadCart(ctx, tx, owner)
	})
	if err != nil {
		r.logger.Error().Err(err).
			Str("owner", owner.String()).
			Str("product_id", line.ProductID).
			Msg("failed to add cart line")
		return nil, err
	}

	return cart, nil
}

// SetLineQuantity sets a line's quantity; a quantity <= 0 removes it.
func (r *cartRepository) SetLineQuantity(ctx context.Context, owner model.Owner, key model.LineKey, quantity int) (*model.Cart, error) {
	if quantity <= 0 {
		return r.RemoveLine(ctx, owner, key)
	}

	return r.mutateLine(ctx, owner, key, func(tx pgx.Tx, cartID uuid.UUID) (pgconn.CommandTag, error) {
		return tx.Exec(ctx, `
			UPDATE cart_lines SET quantity = $5
			WHERE cart_id = $1 AND product_id = $2 AND size = $3 AND color = $4
		`, cartID, key.ProductID, key.Size, key.Color, quantity)
	})
}

// RemoveLine deletes a single line.
func (r *cartRepository) RemoveLine(ctx context.Context, owner model.Owner, key model.LineKey) (*model.Cart, error) {
	return r.mutateLine(ctx, owner, key, func(tx pgx.Tx, cartID uuid.UUID) (pgconn.CommandTag, error) {
		return tx.Exec(ctx, `
			DELETE FROM cart_lines
			WHERE cart_id = $1 AND product_id = $2 AND size = $3 AND color = $4
		`, cartID, key.ProductID, key.Size, key.Color)
	})
}

func (r *cartRepository) mutateLine(
	ctx context.Context,
	owner model.Owner,
	key model.LineKey,
	mutate func(tx pgx.Tx, cartID uuid.UUID) (pgconn.CommandTag, error),
) (*model.Cart, error) {
	cart, err := withTx(ctx, r.pool, func(tx pgx.Tx) (*model.Cart, error) {
		var cartID uuid.UUID
		err := tx.QueryRow(ctx, `
			SELECT id FROM carts WHERE owner_kind = $1 AND owner_id = $2 FOR UPDATE
		`, string(owner.Kind), owner.ID).Scan(&cartID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, model.ErrCartNotFound
			}
			return nil, fmt.Errorf("failed to lock cart: %w", err)
		}

		tag, err := mutate(tx, cartID)
		if err != nil {
			return nil, fmt.Errorf("failed to update cart line: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, model.ErrLineNotFound
		}

		if err := recomputeTotal(ctx, tx, cartID); err != nil {
			return nil, err
		}

		return loadCart(ctx, tx, owner)
	})
	if err != nil {
		if model.KindOf(err) == model.KindNotFound {
			r.logger.Debug().Str("owner", owner.String()).Str("product_id", key.ProductID).Msg(err.Error())
		} else {
			r.logger.Error().Err(err).Str("owner", owner.String()).Msg("failed to mutate cart line")
		}
		return nil, err
	}

	return cart, nil
}

// MergeInto upserts every line of from's cart into to's cart in one transaction. Matching keys add
// quantities and keep the existing snapshot. The cart of to is created when absent; from is left in place.
func (r *cartRepository) MergeInto(ctx context.Context, from, to model.Owner) (*model.Cart, error) {
	cart, err := withTx(ctx, r.pool, func(tx pgx.Tx) (*model.Cart, error) {
		var fromID uuid.UUID
		err := tx.QueryRow(ctx, `
			SELECT id FROM carts WHERE owner_kind = $1 AND owner_id = $2 FOR UPDATE
		`, string(from.Kind), from.ID).Scan(&fromID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, model.ErrCartNotFound
			}
			return nil, fmt.Errorf("failed to lock source cart: %w", err)
		}

		toID, err := ensureCart(ctx, tx, uuid.New(), to)
		if err != nil {
			return nil, err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO cart_lines (cart_id, product_id, name, unit_price, quantity, size, color)
			SELECT $2, product_id, name, unit_price, quantity, size, color
			FROM cart_lines
			WHERE cart_id = $1
			ORDER BY position
			ON CONFLICT (cart_id, product_id, size, color)
			DO UPDATE SET quantity = cart_lines.quantity + excluded.quantity
		`, fromID, toID)
		if err != nil {
			return nil, fmt.Errorf("failed to merge cart lines: %w", err)
		}

		if err := recomputeTotal(ctx, tx, toID); err != nil {
			return nil, err
		}

		return loadCart(ctx, tx, to)
	})
	if err != nil {
		if model.KindOf(err) != model.KindNotFound {
			r.logger.Error().Err(err).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("failed to merge carts")
		}
		return nil, err
	}

	return cart, nil
}

// Reassign moves the cart of from to to.
func (r *cartRepository) Reassign(ctx context.Context, from, to model.Owner) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE carts SET owner_kind = $3, owner_id = $4, updated_at = NOW()
		WHERE owner_kind = $1 AND owner_id = $2
	`, string(from.Kind), from.ID, string(to.Kind), to.ID)
	if err != nil {
		r.logger.Error().Err(err).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("failed to reassign cart")
		return fmt.Errorf("failed to reassign cart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrCartNotFound
	}

	return nil
}

// Delete removes the owner's cart and reports whether one existed.
func (r *cartRepository) Delete(ctx context.Context, owner model.Owner) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM carts WHERE owner_kind = $1 AND owner_id = $2`, string(owner.Kind), owner.ID)
	if err != nil {
		r.logger.Error().Err(err).Str("owner", owner.String()).Msg("failed to delete cart")
		return false, fmt.Errorf("failed to delete cart: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ensureCart creates the owner's cart if absent and returns its id. The upsert also locks the row
// for the rest of the transaction so concurrent total recomputes serialise.
func ensureCart(ctx context.Context, tx pgx.Tx, id uuid.UUID, owner model.Owner) (uuid.UUID, error) {
	if id == uuid.Nil {
		id = uuid.New()
	}

	var cartID uuid.UUID
	err := tx.QueryRow(ctx, `
		INSERT INTO carts (id, owner_kind, owner_id, total_price, created_at, updated_at)
		VALUES ($1, $2, $3, 0, NOW(), NOW())
		ON CONFLICT (owner_kind, owner_id) DO UPDATE SET updated_at = NOW()
		RETURNING id
	`, id, string(owner.Kind), owner.ID).Scan(&cartID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to upsert cart: %w", err)
	}

	return cartID, nil
}

func recomputeTotal(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE carts
		SET total_price = COALESCE((SELECT SUM(unit_price * quantity) FROM cart_lines WHERE cart_id = $1), 0),
		    updated_at = NOW()
		WHERE id = $1
	`, cartID)
	if err != nil {
		return fmt.Errorf("failed to recompute cart total: %w", err)
	}
	return nil
}

func loadCart(ctx context.Context, q querier, owner model.Owner) (*model.Cart, error) {
	cart := model.Cart{Owner: owner}
	var createdAt, updatedAt time.Time

	err := q.QueryRow(ctx, `
		SELECT id, total_price, created_at, updated_at
		FROM carts
		WHERE owner_kind = $1 AND owner_id = $2
	`, string(owner.Kind), owner.ID).Scan(&cart.ID, &cart.TotalPrice, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}
	cart.CreatedAt = createdAt
	cart.UpdatedAt = updatedAt

	rows, err := q.Query(ctx, `
		SELECT product_id, name, unit_price, quantity, size, color
		FROM cart_lines
		WHERE cart_id = $1
		ORDER BY position
	`, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart lines: %w", err)
	}
	defer rows.Close()

	cart.Lines = []model.CartLine{}
	for rows.Next() {
		var l model.CartLine
		if err := rows.Scan(&l.ProductID, &l.Name, &l.UnitPrice, &l.Quantity, &l.Size, &l.Color); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		cart.Lines = append(cart.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart lines: %w", err)
	}

	return &cart, nil
}
