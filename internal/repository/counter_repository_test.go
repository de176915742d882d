package repository

import (
	"context"
	"sync"
	"testing"

	"storefront/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterRepository_Next(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewCounterRepository(pool, zerologNop)

	t.Run("Sequential values increase by one", func(t *testing.T) {
		for want := int64(1); want <= 3; want++ {
			got, err := repo.Next(ctx, model.SequenceOrderInvoice)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("Sequences are independent", func(t *testing.T) {
		got, err := repo.Next(ctx, model.SequenceReportRef)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got)

		got, err = repo.Next(ctx, model.SequenceSKU)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got)
	})

	t.Run("Concurrent callers never share a value", func(t *testing.T) {
		const callers = 25

		var (
			mu   sync.Mutex
			seen = make(map[int64]bool, callers)
			wg   sync.WaitGroup
		)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := repo.Next(ctx, "concurrent")
				assert.NoError(t, err)
				mu.Lock()
				defer mu.Unlock()
				assert.False(t, seen[v], "duplicate value %d", v)
				seen[v] = true
			}()
		}
		wg.Wait()

		assert.Len(t, seen, callers)
	})
}
