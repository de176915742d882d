package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// productService implements ProductService.
type productService struct {
	productRepo repository.ProductRepository
	sequencer   *Sequencer
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewProductService creates a new product service.
func NewProductService(
	productRepo repository.ProductRepository,
	sequencer *Sequencer,
	m *metrics.Metrics,
	logger zerolog.Logger,
) ProductService {
	return &productService{
		productRepo: productRepo,
		sequencer:   sequencer,
		metrics:     m,
		logger:      logger.With().Str("service", "product").Logger(),
	}
}

// GetAll retrieves all products with pagination.
func (s *productService) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	products, err := s.productRepo.GetAll(ctx, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to get all products")
		return nil, fmt.Errorf("failed to get products: %w", err)
	}

	s.logger.Debug().
		Int("count", len(products)).
		Int("limit", limit).
		Int("offset", offset).
		Msg("retrieved products")

	return products, nil
}

// GetByID retrieves a single product by ID.
func (s *productService) GetByID(ctx context.Context, id string) (*model.Product, error) {
	if id == "" {
		s.logger.Warn().Msg("product ID is empty")
		return nil, model.ErrProductNotFound
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Msg("failed to get product by ID")
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if product == nil {
		s.logger.Debug().Str("product_id", id).Msg("product not found")
		return nil, model.ErrProductNotFound
	}

	return product, nil
}

// Create adds a product with a SKU drawn from the skuCounter sequence.
func (s *productService) Create(ctx context.Context, req *model.ProductRequest) (*model.Product, error) {
	if req == nil || strings.TrimSpace(req.Name) == "" {
		return nil, model.InvalidInput(model.ErrCodeMissingField, "name is required")
	}
	if req.Price == nil {
		return nil, model.InvalidInput(model.ErrCodeMissingField, "price is required")
	}
	if err := validateProductFields(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &model.Product{
		ID:          uuid.NewString(),
		SKU:         s.sequencer.Next(ctx, model.SequenceSKU).String(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Category:    req.Category,
		Brand:       req.Brand,
		Price:       req.Price.Round(2),
		Rating:      decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.CountInStock != nil {
		product.CountInStock = *req.CountInStock
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		s.logger.Error().Err(err).Str("sku", product.SKU).Msg("failed to create product")
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info().
		Str("product_id", product.ID).
		Str("sku", product.SKU).
		Msg("product created")

	return product, nil
}

// Update applies the non-empty fields of req.
func (s *productService) Update(ctx context.Context, id string, req *model.ProductRequest) (*model.Product, error) {
	if req == nil {
		return nil, model.InvalidInput(model.ErrCodeInvalidJSON, "request body is required")
	}
	if err := validateProductFields(req); err != nil {
		return nil, err
	}

	changes := *req
	changes.Name = strings.TrimSpace(req.Name)
	if req.Price != nil {
		rounded := req.Price.Round(2)
		changes.Price = &rounded
	}

	product, err := s.productRepo.Update(ctx, id, &changes)
	if err != nil {
		if errors.Is(err, model.ErrProductNotFound) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("product_id", id).Msg("failed to update product")
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	return product, nil
}

// DecrementStock lowers stock, clamping at zero. Oversold units are logged and counted.
func (s *productService) DecrementStock(ctx context.Context, id string, amount int) (*model.StockAdjustment, error) {
	if amount < 1 {
		return nil, model.ErrInvalidQuantity
	}

	adj, err := s.productRepo.DecrementStock(ctx, id, amount)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Int("amount", amount).Msg("failed to decrement stock")
		return nil, fmt.Errorf("failed to decrement stock of %s: %w", id, err)
	}

	if adj.Oversold > 0 {
		s.metrics.RecordOversold(adj.Oversold)
		s.logger.Warn().
			Str("product_id", id).
			Int("requested", amount).
			Int("stock_before", adj.Before).
			Int("oversold", adj.Oversold).
			Msg("stock oversold, clamped at zero")
	}

	return adj, nil
}

func validateProductFields(req *model.ProductRequest) error {
	if req.Price != nil && req.Price.IsNegative() {
		return model.InvalidInput(model.ErrCodeInvalidPrice, "price must not be negative")
	}
	if req.CountInStock != nil && *req.CountInStock < 0 {
		return model.ErrInvalidQuantity
	}
	return nil
}
