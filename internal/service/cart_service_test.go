package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/model"
	"storefront/internal/workflow"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testRetry = workflow.RetryConfig{
	MaxAttempts:   2,
	InitialDelay:  time.Millisecond,
	MaxDelay:      5 * time.Millisecond,
	BackoffFactor: 2,
}

type cartFixture struct {
	carts    *MockCartRepository
	products *MockProductRepository
	service  CartService
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()
	carts := new(MockCartRepository)
	products := new(MockProductRepository)
	m, _ := newTestMetrics(t)
	productService := NewProductService(products, NewSequencer(newFakeCounters(), m, zerolog.Nop()), m, zerolog.Nop())
	return &cartFixture{
		carts:    carts,
		products: products,
		service:  NewCartService(carts, productService, testRetry, m, zerolog.Nop()),
	}
}

func cartWith(owner model.Owner, lines ...model.CartLine) *model.Cart {
	cart := model.NewCart(owner)
	cart.Lines = append(cart.Lines, lines...)
	cart.Recalculate()
	return cart
}

func testLine(productID, size string, price string, qty int) model.CartLine {
	return model.CartLine{
		ProductID: productID,
		Name:      "Product " + productID,
		UnitPrice: decimal.RequireFromString(price),
		Quantity:  qty,
		Size:      size,
	}
}

func TestCartService_AddLine(t *testing.T) {
	ctx := context.Background()
	owner := model.GuestOwner("guest-1")

	t.Run("Snapshots product name and price", func(t *testing.T) {
		f := newCartFixture(t)
		f.products.On("GetByID", ctx, "P001").Return(&model.Product{
			ID: "P001", Name: "Shirt", Price: decimal.RequireFromString("12.50"),
		}, nil)
		expected := model.CartLine{
			ProductID: "P001", Name: "Shirt", UnitPrice: decimal.RequireFromString("12.50"), Quantity: 2, Size: "M", Color: "red",
		}
		f.carts.On("AddLine", ctx, owner, expected).Return(cartWith(owner, expected), nil)

		cart, err := f.service.AddLine(ctx, owner, &model.CartLineRequest{ProductID: "P001", Quantity: 2, Size: "M", Color: "red"})

		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("25").Equal(cart.TotalPrice))
		f.carts.AssertExpectations(t)
	})

	t.Run("Rejects zero quantity before any lookup", func(t *testing.T) {
		f := newCartFixture(t)

		_, err := f.service.AddLine(ctx, owner, &model.CartLineRequest{ProductID: "P001", Quantity: 0})

		require.ErrorIs(t, err, model.ErrInvalidQuantity)
		f.products.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("Unknown product", func(t *testing.T) {
		f := newCartFixture(t)
		f.products.On("GetByID", ctx, "P404").Return(nil, nil)

		_, err := f.service.AddLine(ctx, owner, &model.CartLineRequest{ProductID: "P404", Quantity: 1})

		require.ErrorIs(t, err, model.ErrProductNotFound)
		f.carts.AssertNotCalled(t, "AddLine", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCartService_SetLineQuantity_NotFoundPassesThrough(t *testing.T) {
	ctx := context.Background()
	owner := model.UserOwner("user-1")
	f := newCartFixture(t)
	req := &model.CartLineRequest{ProductID: "P001", Quantity: 3}
	f.carts.On("SetLineQuantity", ctx, owner, req.Key(), 3).Return(nil, model.ErrLineNotFound)

	_, err := f.service.SetLineQuantity(ctx, owner, req)

	require.ErrorIs(t, err, model.ErrLineNotFound)
	assert.Equal(t, model.KindNotFound, model.KindOf(err))
}

func TestCartService_GetCart_Missing(t *testing.T) {
	ctx := context.Background()
	owner := model.UserOwner("user-1")
	f := newCartFixture(t)
	f.carts.On("GetByOwner", ctx, owner).Return(nil, nil)

	_, err := f.service.GetCart(ctx, owner)

	require.ErrorIs(t, err, model.ErrCartNotFound)
}

func TestCartService_Merge(t *testing.T) {
	ctx := context.Background()
	guest, user := model.GuestOwner("guest-1"), model.UserOwner("user-1")

	tests := []struct {
		name      string
		noGuestID bool
		guestCart *model.Cart
		userCart  *model.Cart
		setup     func(f *cartFixture)
		wantErr   error
		check     func(t *testing.T, f *cartFixture, cart *model.Cart)
	}{
		{
			name:     "No guest cart returns user cart",
			userCart: cartWith(user, testLine("P1", "", "10", 1)),
			check: func(t *testing.T, f *cartFixture, cart *model.Cart) {
				assert.Equal(t, user, cart.Owner)
				f.carts.AssertNotCalled(t, "MergeInto", mock.Anything, mock.Anything, mock.Anything)
			},
		},
		{
			name:    "No carts at all",
			wantErr: model.ErrNoGuestCart,
		},
		{
			name:      "No guest id returns user cart",
			noGuestID: true,
			userCart:  cartWith(user, testLine("P1", "", "10", 1)),
			check: func(t *testing.T, f *cartFixture, cart *model.Cart) {
				assert.Equal(t, user, cart.Owner)
				f.carts.AssertNotCalled(t, "GetByOwner", mock.Anything, model.GuestOwner(""))
			},
		},
		{
			name:      "No guest id and no user cart",
			noGuestID: true,
			wantErr:   model.ErrNoGuestCart,
		},
		{
			name:      "Empty guest cart is rejected",
			guestCart: cartWith(guest),
			userCart:  cartWith(user, testLine("P1", "", "10", 1)),
			wantErr:   model.ErrGuestCartEmpty,
		},
		{
			name:      "Empty guest cart is rejected without a user cart",
			guestCart: cartWith(guest),
			wantErr:   model.ErrGuestCartEmpty,
		},
		{
			name:      "Guest cart is reassigned when user has none",
			guestCart: cartWith(guest, testLine("P1", "M", "10", 2)),
			setup: func(f *cartFixture) {
				f.carts.On("Reassign", ctx, guest, user).Return(nil)
			},
			check: func(t *testing.T, f *cartFixture, cart *model.Cart) {
				assert.Equal(t, user, cart.Owner)
				assert.Len(t, cart.Lines, 1)
				f.carts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
			},
		},
		{
			name:      "Lines are merged by the repository",
			guestCart: cartWith(guest, testLine("P1", "M", "10", 2), testLine("P2", "", "5", 1)),
			userCart:  cartWith(user, testLine("P1", "M", "10", 1), testLine("P1", "L", "10", 1)),
			setup: func(f *cartFixture) {
				merged := cartWith(user, testLine("P1", "M", "10", 3), testLine("P1", "L", "10", 1), testLine("P2", "", "5", 1))
				f.carts.On("MergeInto", ctx, guest, user).Return(merged, nil)
				f.carts.On("Delete", mock.Anything, guest).Return(true, nil)
			},
			check: func(t *testing.T, f *cartFixture, cart *model.Cart) {
				require.Len(t, cart.Lines, 3)
				m, ok := cart.Line(model.LineKey{ProductID: "P1", Size: "M"})
				require.True(t, ok)
				assert.Equal(t, 3, m.Quantity)
				assert.True(t, decimal.RequireFromString("45").Equal(cart.TotalPrice))
				f.carts.AssertCalled(t, "Delete", mock.Anything, guest)
			},
		},
		{
			name:      "Guest cart gone before merge returns user cart",
			guestCart: cartWith(guest, testLine("P1", "", "10", 1)),
			userCart:  cartWith(user, testLine("P2", "", "10", 1)),
			setup: func(f *cartFixture) {
				f.carts.On("MergeInto", ctx, guest, user).Return(nil, model.ErrCartNotFound)
			},
			check: func(t *testing.T, f *cartFixture, cart *model.Cart) {
				assert.Equal(t, user, cart.Owner)
				f.carts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
			},
		},
		{
			name:      "Guest cart delete failure does not fail the merge",
			guestCart: cartWith(guest, testLine("P1", "", "10", 1)),
			userCart:  cartWith(user, testLine("P2", "", "10", 1)),
			setup: func(f *cartFixture) {
				merged := cartWith(user, testLine("P2", "", "10", 1), testLine("P1", "", "10", 1))
				f.carts.On("MergeInto", ctx, guest, user).Return(merged, nil)
				f.carts.On("Delete", mock.Anything, guest).Return(false, errors.New("timeout"))
			},
			check: func(t *testing.T, f *cartFixture, cart *model.Cart) {
				assert.Len(t, cart.Lines, 2)
				f.carts.AssertNumberOfCalls(t, "Delete", testRetry.MaxAttempts)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCartFixture(t)
			f.carts.On("GetByOwner", mock.Anything, guest).Return(nilIfEmpty(tt.guestCart), nil)
			f.carts.On("GetByOwner", mock.Anything, user).Return(nilIfEmpty(tt.userCart), nil)
			if tt.setup != nil {
				tt.setup(f)
			}

			guestID := guest.ID
			if tt.noGuestID {
				guestID = ""
			}
			cart, err := f.service.Merge(ctx, guestID, user.ID)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, cart)
				return
			}
			require.NoError(t, err)
			tt.check(t, f, cart)
		})
	}
}

func TestCartService_Merge_LoadError(t *testing.T) {
	ctx := context.Background()
	f := newCartFixture(t)
	f.carts.On("GetByOwner", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	_, err := f.service.Merge(ctx, "guest-1", "user-1")

	require.Error(t, err)
	assert.Equal(t, model.KindUnexpected, model.KindOf(err))
}

// nilIfEmpty keeps a typed nil cart out of the mock's return values.
func nilIfEmpty(cart *model.Cart) any {
	if cart == nil {
		return nil
	}
	return cart
}
