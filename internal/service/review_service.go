package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// reviewService implements ReviewService.
type reviewService struct {
	reviews  repository.ReviewRepository
	products ProductService
	logger   zerolog.Logger
}

// NewReviewService creates a new review service.
func NewReviewService(reviews repository.ReviewRepository, products ProductService, logger zerolog.Logger) ReviewService {
	return &reviewService{
		reviews:  reviews,
		products: products,
		logger:   logger.With().Str("service", "review").Logger(),
	}
}

// Add records a review. The product's rating and review count are recomputed by the repository.
func (s *reviewService) Add(ctx context.Context, productID, userID string, req *model.ReviewRequest) (*model.Review, error) {
	if userID == "" {
		return nil, model.ErrUnauthenticated
	}
	if req == nil || req.Rating < 1 || req.Rating > 5 {
		return nil, model.ErrInvalidRating
	}

	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = userID
	}

	review := &model.Review{
		ID:        uuid.New(),
		ProductID: productID,
		UserID:    userID,
		Name:      name,
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(req.Comment),
		CreatedAt: time.Now().UTC(),
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, model.ErrAlreadyReviewed) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("product_id", productID).Msg("failed to create review")
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	s.logger.Info().
		Str("product_id", productID).
		Str("user_id", userID).
		Int("rating", review.Rating).
		Msg("review added")

	return review, nil
}

// List returns a product's reviews, newest first.
func (s *reviewService) List(ctx context.Context, productID string) ([]model.Review, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	reviews, err := s.reviews.ListByProduct(ctx, productID)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", productID).Msg("failed to list reviews")
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	if reviews == nil {
		reviews = []model.Review{}
	}
	return reviews, nil
}
