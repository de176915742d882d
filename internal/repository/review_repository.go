package repository

import (
	"context"
	"fmt"

	"storefront/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type reviewRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool *pgxpool.Pool, logger zerolog.Logger) ReviewRepository {
	return &reviewRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "review").Logger(),
	}
}

// Create inserts the review and recomputes rating and num_reviews of the product in the same transaction.
func (r *reviewRepository) Create(ctx context.Context, review *model.Review) error {
	_, err := withTx(ctx, r.pool, func(tx pgx.Tx) (struct{}, error) {
		_, err := tx.Exec(ctx, `
			INSERT INTO reviews (id, product_id, user_id, name, rating, comment, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, review.ID, review.ProductID, review.UserID, review.Name, review.Rating, review.Comment, review.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return struct{}{}, model.ErrAlreadyReviewed
			}
			return struct{}{}, fmt.Errorf("failed to insert review: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE products p
			SET num_reviews = agg.cnt, rating = agg.avg, updated_at = NOW()
			FROM (
				SELECT COUNT(*) AS cnt, ROUND(AVG(rating)::numeric, 2) AS avg
				FROM reviews WHERE product_id = $1
			) agg
			WHERE p.id = $1
		`, review.ProductID)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to recompute product rating: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return struct{}{}, model.ErrProductNotFound
		}

		return struct{}{}, nil
	})
	if err != nil {
		r.logger.Error().Err(err).
			Str("product_id", review.ProductID).
			Str("user_id", review.UserID).
			Msg("failed to create review")
		return err
	}

	return nil
}

// ListByProduct returns the product's reviews, newest first.
func (r *reviewRepository) ListByProduct(ctx context.Context, productID string) ([]model.Review, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, user_id, name, rating, comment, created_at
		FROM reviews
		WHERE product_id = $1
		ORDER BY created_at DESC
	`, productID)
	if err != nil {
		r.logger.Error().Err(err).Str("product_id", productID).Msg("failed to query reviews")
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	reviews := []model.Review{}
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.Name, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}

	return reviews, nil
}
