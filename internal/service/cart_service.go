package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/workflow"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// cartService implements CartService.
type cartService struct {
	carts    repository.CartRepository
	products ProductService
	cleanup  *workflow.Runner
	logger   zerolog.Logger
}

// NewCartService creates a new cart service. Guest cart cleanup after a merge is retried with retry.
func NewCartService(
	carts repository.CartRepository,
	products ProductService,
	retry workflow.RetryConfig,
	m *metrics.Metrics,
	logger zerolog.Logger,
) CartService {
	logger = logger.With().Str("service", "cart").Logger()
	return &cartService{
		carts:    carts,
		products: products,
		cleanup:  workflow.NewRunner("cart_merge", m, logger, workflow.WithRetry(retry)),
		logger:   logger,
	}
}

// GetCart returns the owner's cart.
func (s *cartService) GetCart(ctx context.Context, owner model.Owner) (*model.Cart, error) {
	cart, err := s.carts.GetByOwner(ctx, owner)
	if err != nil {
		s.logger.Error().Err(err).Str("owner", owner.String()).Msg("failed to get cart")
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if cart == nil {
		return nil, model.ErrCartNotFound
	}
	return cart, nil
}

// AddLine snapshots the product's name and price and adds the line.
func (s *cartService) AddLine(ctx context.Context, owner model.Owner, req *model.CartLineRequest) (*model.Cart, error) {
	if req.Quantity < 1 {
		return nil, model.ErrInvalidQuantity
	}

	product, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	line := model.CartLine{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  req.Quantity,
		Size:      req.Size,
		Color:     req.Color,
	}

	cart, err := s.carts.AddLine(ctx, owner, line)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("owner", owner.String()).
			Str("product_id", req.ProductID).
			Msg("failed to add cart line")
		return nil, fmt.Errorf("failed to add cart line: %w", err)
	}

	s.logger.Debug().
		Str("owner", owner.String()).
		Str("product_id", req.ProductID).
		Int("quantity", req.Quantity).
		Str("total", cart.TotalPrice.StringFixed(2)).
		Msg("cart line added")

	return cart, nil
}

// SetLineQuantity sets a line's quantity exactly.
func (s *cartService) SetLineQuantity(ctx context.Context, owner model.Owner, req *model.CartLineRequest) (*model.Cart, error) {
	cart, err := s.carts.SetLineQuantity(ctx, owner, req.Key(), req.Quantity)
	if err != nil {
		return nil, s.mutationError(err, owner, "failed to update cart line")
	}
	return cart, nil
}

// RemoveLine deletes one line.
func (s *cartService) RemoveLine(ctx context.Context, owner model.Owner, key model.LineKey) (*model.Cart, error) {
	cart, err := s.carts.RemoveLine(ctx, owner, key)
	if err != nil {
		return nil, s.mutationError(err, owner, "failed to remove cart line")
	}
	return cart, nil
}

func (s *cartService) mutationError(err error, owner model.Owner, msg string) error {
	if model.KindOf(err) == model.KindNotFound {
		return err
	}
	s.logger.Error().Err(err).Str("owner", owner.String()).Msg(msg)
	return fmt.Errorf("%s: %w", msg, err)
}

// Merge folds the guest cart into the user's cart.
//
// Without a guest cart (or guest id) the user's cart is returned as is. An empty guest cart is rejected.
// Without a user cart the guest cart is re-keyed to the user. Otherwise the repository adds the guest
// lines to the user cart atomically, and the guest cart is deleted on a best-effort basis.
func (s *cartService) Merge(ctx context.Context, guestID, userID string) (*model.Cart, error) {
	if userID == "" {
		return nil, model.ErrUnauthenticated
	}
	guest, user := model.GuestOwner(guestID), model.UserOwner(userID)

	var guestCart, userCart *model.Cart
	g, gctx := errgroup.WithContext(ctx)
	if guestID != "" {
		g.Go(func() error {
			var err error
			guestCart, err = s.carts.GetByOwner(gctx, guest)
			return err
		})
	}
	g.Go(func() error {
		var err error
		userCart, err = s.carts.GetByOwner(gctx, user)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Str("guest_id", guestID).Str("user_id", userID).Msg("failed to load carts for merge")
		return nil, fmt.Errorf("failed to load carts: %w", err)
	}

	if guestCart == nil {
		if userCart != nil {
			return userCart, nil
		}
		return nil, model.ErrNoGuestCart
	}
	if guestCart.IsEmpty() {
		return nil, model.ErrGuestCartEmpty
	}

	if userCart == nil {
		if err := s.carts.Reassign(ctx, guest, user); err != nil {
			s.logger.Error().Err(err).Str("guest_id", guestID).Str("user_id", userID).Msg("failed to reassign guest cart")
			return nil, fmt.Errorf("failed to reassign guest cart: %w", err)
		}
		guestCart.Owner = user
		s.logger.Info().Str("guest_id", guestID).Str("user_id", userID).Msg("guest cart reassigned to user")
		return guestCart, nil
	}

	merged, err := s.carts.MergeInto(ctx, guest, user)
	if err != nil {
		if errors.Is(err, model.ErrCartNotFound) {
			// guest cart went away between the read and the merge
			return userCart, nil
		}
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to merge carts")
		return nil, fmt.Errorf("failed to merge carts: %w", err)
	}

	// The merged cart is already durable; a stale guest cart is only logged.
	_, _ = s.cleanup.Run(ctx, []workflow.Step{{
		Name:   "delete-guest-cart",
		Policy: workflow.BestEffort,
		Run: func(ctx context.Context) error {
			_, err := s.carts.Delete(ctx, guest)
			return err
		},
	}})

	s.logger.Info().
		Str("guest_id", guestID).
		Str("user_id", userID).
		Int("line_count", len(merged.Lines)).
		Str("total", merged.TotalPrice.StringFixed(2)).
		Msg("guest cart merged")

	return merged, nil
}
