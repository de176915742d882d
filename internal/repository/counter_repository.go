package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type counterRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCounterRepository creates a new PostgreSQL-backed counter store.
func NewCounterRepository(pool *pgxpool.Pool, logger zerolog.Logger) CounterRepository {
	return &counterRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "counter").Logger(),
	}
}

// Next atomically increments and returns the counter. The first call for a name returns 1.
func (r *counterRepository) Next(ctx context.Context, name string) (int64, error) {
	query := `
		INSERT INTO counters (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
		RETURNING value
	`

	var value int64
	if err := r.pool.QueryRow(ctx, query, name).Scan(&value); err != nil {
		r.logger.Error().Err(err).Str("counter", name).Msg("failed to increment counter")
		return 0, fmt.Errorf("failed to increment counter %s: %w", name, err)
	}

	return value, nil
}
