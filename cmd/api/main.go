package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/handler"
	"storefront/internal/invoice"
	"storefront/internal/metrics"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"
	"storefront/internal/workflow"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting storefront API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database, logger); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	m := metrics.New()

	cartRepo, closeCarts, err := newCartRepository(ctx, cfg, pool, m, logger)
	if err != nil {
		return err
	}
	defer closeCarts()

	productRepo := repository.NewProductRepository(pool, logger)
	reviewRepo := repository.NewReviewRepository(pool, logger)
	checkoutRepo := repository.NewCheckoutRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	sequencer := service.NewSequencer(repository.NewCounterRepository(pool, logger), m, logger)

	generator := newInvoiceGenerator(ctx, cfg.Invoice, logger)
	company := invoice.Company{
		Name:    cfg.Company.Name,
		Address: cfg.Company.Address,
		Email:   cfg.Company.Email,
		TaxID:   cfg.Company.TaxID,
	}

	publisher := newPublisher(cfg.Kafka, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close event publisher")
		}
	}()

	retry := workflow.RetryConfig{
		MaxAttempts:   cfg.Finalize.RetryAttempts,
		InitialDelay:  cfg.Finalize.RetryInitialDelay,
		MaxDelay:      cfg.Finalize.RetryMaxDelay,
		BackoffFactor: 2.0,
	}

	productService := service.NewProductService(productRepo, sequencer, m, logger)
	reviewService := service.NewReviewService(reviewRepo, productService, logger)
	cartService := service.NewCartService(cartRepo, productService, retry, m, logger)
	checkoutService := service.NewCheckoutService(service.CheckoutDeps{
		Checkouts: checkoutRepo,
		Orders:    orderRepo,
		Carts:     cartRepo,
		Products:  productService,
		Sequencer: sequencer,
		Invoices:  generator,
		Publisher: publisher,
		Metrics:   m,
	}, service.CheckoutConfig{
		Currency:    cfg.Store.Currency,
		Company:     company,
		StepTimeout: cfg.Finalize.StepTimeout,
		Retry:       retry,
	}, logger)
	orderService := service.NewOrderService(orderRepo, sequencer, generator, company, m, logger)

	mux := router.New(router.Handlers{
		Products: handler.NewProductHandler(productService, logger),
		Reviews:  handler.NewReviewHandler(reviewService, logger),
		Carts:    handler.NewCartHandler(cartService, logger),
		Checkout: handler.NewCheckoutHandler(checkoutService, logger),
		Orders:   handler.NewOrderHandler(orderService, logger),
		Metrics:  promhttp.Handler(),
	}, router.Options{
		APIKey:         cfg.Auth.APIKey,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, logger)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Str("cart_backend", cfg.Cart.Backend).
			Str("invoice_storage", cfg.Invoice.Storage).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// newCartRepository builds the configured cart store, optionally behind the Redis cache.
// The returned func releases the connections it opened.
func newCartRepository(
	ctx context.Context,
	cfg *config.Config,
	pool *pgxpool.Pool,
	m *metrics.Metrics,
	logger zerolog.Logger,
) (repository.CartRepository, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var carts repository.CartRepository
	switch cfg.Cart.Backend {
	case config.CartBackendMongo:
		db, err := database.ConnectMongoDB(ctx, cfg.Mongo, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize cart store: %w", err)
		}
		closers = append(closers, func() {
			if err := db.Client().Disconnect(context.Background()); err != nil {
				logger.Warn().Err(err).Msg("failed to disconnect from MongoDB")
			}
		})
		carts = repository.NewMongoCartRepository(db, logger)
	default:
		carts = repository.NewCartRepository(pool, logger)
	}

	if !cfg.Redis.Enabled {
		return carts, closeAll, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, serving carts without cache")
		_ = client.Close()
		return carts, closeAll, nil
	}
	closers = append(closers, func() { _ = client.Close() })

	cached := cache.NewCachedCartRepository(carts, cache.NewRedisCartCache(client, cfg.Redis.TTL), m, logger)
	return cached, closeAll, nil
}

// newInvoiceGenerator stores invoices in S3 when configured, always keeping the local directory as fallback.
func newInvoiceGenerator(ctx context.Context, cfg config.InvoiceConfig, logger zerolog.Logger) invoice.Generator {
	local := invoice.NewFileStorage(cfg.Dir, logger)

	var primary invoice.Storage
	if cfg.Storage == config.InvoiceStorageS3 {
		s3Storage, err := invoice.NewS3Storage(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 invoice storage, falling back to local file system only")
		} else {
			primary = s3Storage
		}
	}

	return invoice.NewBreakerGenerator(
		invoice.NewGenerator(invoice.NewFallbackStorage(primary, local, logger), logger),
		invoice.BreakerSettings{
			ConsecutiveFailures: uint32(cfg.BreakerFailures),
			OpenTimeout:         cfg.BreakerOpenTimeout,
			HalfOpenRequests:    1,
			CallTimeout:         cfg.Timeout,
		},
		logger,
	)
}

func newPublisher(cfg config.KafkaConfig, logger zerolog.Logger) events.Publisher {
	if !cfg.Enabled {
		logger.Info().Msg("kafka disabled, order events are not published")
		return events.NewNoopPublisher(logger)
	}
	return events.NewKafkaPublisher(cfg.Brokers, cfg.Topic, logger)
}
