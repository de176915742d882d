package repository

import (
	"context"
	"testing"
	"time"

	"storefront/internal/model"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var zerologNop = zerolog.Nop()

// setupTestDB creates a PostgreSQL testcontainer with the schema migrations applied.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.WithInitScripts(
			"../../migrations/000001_catalog.up.sql",
			"../../migrations/000002_carts.up.sql",
			"../../migrations/000003_checkout_orders.up.sql",
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

func randomProduct() model.Product {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return model.Product{
		ID:           uuid.NewString(),
		SKU:          "SKU-" + gofakeit.DigitN(8),
		Name:         gofakeit.ProductName(),
		Description:  gofakeit.ProductDescription(),
		Category:     gofakeit.ProductCategory(),
		Brand:        gofakeit.Company(),
		Price:        decimal.NewFromFloat(gofakeit.Price(1, 500)).Round(2),
		CountInStock: gofakeit.IntRange(5, 50),
		Rating:       decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// seedProducts inserts test products into the database.
func seedProducts(t *testing.T, pool *pgxpool.Pool, products ...model.Product) {
	ctx := context.Background()
	repo := NewProductRepository(pool, zerologNop)
	for i := range products {
		require.NoError(t, repo.Create(ctx, &products[i]))
	}
}
