package repository

import (
	"context"
	"sync"
	"testing"

	"storefront/internal/model"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cartLine(productID, price string, qty int, size, color string) model.CartLine {
	return model.CartLine{
		ProductID: productID,
		Name:      "Item " + productID,
		UnitPrice: decimal.RequireFromString(price),
		Quantity:  qty,
		Size:      size,
		Color:     color,
	}
}

// cartRepositoryContract runs the behaviour every CartRepository must share.
func cartRepositoryContract(t *testing.T, repo CartRepository) {
	ctx := context.Background()

	t.Run("AddLine creates cart and increments same key", func(t *testing.T) {
		owner := model.GuestOwner(gofakeit.UUID())

		cart, err := repo.AddLine(ctx, owner, cartLine("P1", "10.00", 1, "M", "Red"))
		require.NoError(t, err)
		require.Len(t, cart.Lines, 1)

		cart, err = repo.AddLine(ctx, owner, cartLine("P1", "10.00", 2, "M", "Red"))
		require.NoError(t, err)
		require.Len(t, cart.Lines, 1)
		assert.Equal(t, 3, cart.Lines[0].Quantity)

		cart, err = repo.AddLine(ctx, owner, cartLine("P1", "10.00", 1, "L", "Red"))
		require.NoError(t, err)
		assert.Len(t, cart.Lines, 2)
		assert.True(t, decimal.RequireFromString("40").Equal(cart.TotalPrice), "total %s", cart.TotalPrice)
		assert.True(t, model.SumLines(cart.Lines).Equal(cart.TotalPrice))
	})

	t.Run("AddLine keeps the first price snapshot", func(t *testing.T) {
		owner := model.UserOwner(gofakeit.UUID())

		_, err := repo.AddLine(ctx, owner, cartLine("P1", "10.00", 1, "", ""))
		require.NoError(t, err)
		cart, err := repo.AddLine(ctx, owner, cartLine("P1", "99.00", 1, "", ""))
		require.NoError(t, err)

		assert.True(t, decimal.RequireFromString("10").Equal(cart.Lines[0].UnitPrice))
		assert.True(t, decimal.RequireFromString("20").Equal(cart.TotalPrice))
	})

	t.Run("Concurrent AddLine on one key loses no increments", func(t *testing.T) {
		owner := model.UserOwner(gofakeit.UUID())
		const workers = 10

		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.AddLine(ctx, owner, cartLine("P1", "2.50", 1, "M", "Red"))
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		cart, err := repo.GetByOwner(ctx, owner)
		require.NoError(t, err)
		require.Len(t, cart.Lines, 1)
		assert.Equal(t, workers, cart.Lines[0].Quantity)
		assert.True(t, decimal.RequireFromString("25").Equal(cart.TotalPrice), "total %s", cart.TotalPrice)
	})

	t.Run("SetLineQuantity and RemoveLine", func(t *testing.T) {
		owner := model.GuestOwner(gofakeit.UUID())
		key := model.LineKey{ProductID: "P1", Size: "M", Color: "Red"}

		_, err := repo.SetLineQuantity(ctx, owner, key, 2)
		assert.ErrorIs(t, err, model.ErrCartNotFound)

		_, err = repo.AddLine(ctx, owner, cartLine("P1", "10.00", 1, "M", "Red"))
		require.NoError(t, err)
		_, err = repo.AddLine(ctx, owner, cartLine("P2", "1.00", 1, "", ""))
		require.NoError(t, err)

		cart, err := repo.SetLineQuantity(ctx, owner, key, 5)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("51").Equal(cart.TotalPrice))

		_, err = repo.SetLineQuantity(ctx, owner, model.LineKey{ProductID: "P9"}, 1)
		assert.ErrorIs(t, err, model.ErrLineNotFound)

		cart, err = repo.SetLineQuantity(ctx, owner, key, 0)
		require.NoError(t, err)
		require.Len(t, cart.Lines, 1)

		cart, err = repo.RemoveLine(ctx, owner, model.LineKey{ProductID: "P2"})
		require.NoError(t, err)
		assert.Empty(t, cart.Lines)
		assert.True(t, cart.TotalPrice.IsZero())

		_, err = repo.RemoveLine(ctx, owner, model.LineKey{ProductID: "P2"})
		assert.ErrorIs(t, err, model.ErrLineNotFound)
	})

	t.Run("MergeInto adds guest lines to the user cart", func(t *testing.T) {
		guest := model.GuestOwner(gofakeit.UUID())
		user := model.UserOwner(gofakeit.UUID())

		_, err := repo.MergeInto(ctx, guest, user)
		assert.ErrorIs(t, err, model.ErrCartNotFound)

		_, err = repo.AddLine(ctx, user, cartLine("P1", "10.00", 1, "M", ""))
		require.NoError(t, err)
		_, err = repo.AddLine(ctx, guest, cartLine("P1", "12.00", 2, "M", ""))
		require.NoError(t, err)
		_, err = repo.AddLine(ctx, guest, cartLine("P2", "3.00", 1, "", ""))
		require.NoError(t, err)

		merged, err := repo.MergeInto(ctx, guest, user)
		require.NoError(t, err)
		require.Len(t, merged.Lines, 2)
		assert.Equal(t, user, merged.Owner)

		byProduct := map[string]model.CartLine{}
		for _, l := range merged.Lines {
			byProduct[l.ProductID] = l
		}
		assert.Equal(t, 3, byProduct["P1"].Quantity)
		assert.True(t, decimal.RequireFromString("10").Equal(byProduct["P1"].UnitPrice), "existing snapshot is kept")
		assert.Equal(t, 1, byProduct["P2"].Quantity)
		assert.True(t, decimal.RequireFromString("33").Equal(merged.TotalPrice))

		stored, err := repo.GetByOwner(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, merged.ID, stored.ID)
		assert.True(t, merged.TotalPrice.Equal(stored.TotalPrice))
	})

	t.Run("MergeInto creates the target cart", func(t *testing.T) {
		guest := model.GuestOwner(gofakeit.UUID())
		user := model.UserOwner(gofakeit.UUID())

		_, err := repo.AddLine(ctx, guest, cartLine("P1", "12.00", 2, "", ""))
		require.NoError(t, err)

		merged, err := repo.MergeInto(ctx, guest, user)
		require.NoError(t, err)
		require.Len(t, merged.Lines, 1)
		assert.True(t, decimal.RequireFromString("24").Equal(merged.TotalPrice))
	})

	t.Run("Reassign and Delete", func(t *testing.T) {
		guest := model.GuestOwner(gofakeit.UUID())
		user := model.UserOwner(gofakeit.UUID())

		assert.ErrorIs(t, repo.Reassign(ctx, guest, user), model.ErrCartNotFound)

		_, err := repo.AddLine(ctx, guest, cartLine("P1", "10.00", 1, "", ""))
		require.NoError(t, err)
		require.NoError(t, repo.Reassign(ctx, guest, user))

		gone, err := repo.GetByOwner(ctx, guest)
		require.NoError(t, err)
		assert.Nil(t, gone)

		deleted, err := repo.Delete(ctx, user)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = repo.Delete(ctx, user)
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}

func TestCartRepository_Postgres(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	cartRepositoryContract(t, NewCartRepository(pool, zerologNop))
}
