package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSequencer_Next(t *testing.T) {
	ctx := context.Background()

	t.Run("Counter values", func(t *testing.T) {
		m, reg := newTestMetrics(t)
		seq := NewSequencer(newFakeCounters(), m, zerolog.Nop())

		first := seq.Next(ctx, model.SequenceOrderInvoice)
		second := seq.Next(ctx, model.SequenceOrderInvoice)
		report := seq.Next(ctx, model.SequenceReportRef)

		assert.Equal(t, "INV-000001", first.String())
		assert.Equal(t, "INV-000002", second.String())
		assert.Equal(t, "RPT-000001", report.String())
		assert.Zero(t, counterValue(t, reg, "storefront_counter_fallback_total"))
	})

	t.Run("Falls back to clock when counter store fails", func(t *testing.T) {
		counters := newFakeCounters()
		counters.err = errors.New("counter store down")
		m, reg := newTestMetrics(t)
		seq := NewSequencer(counters, m, zerolog.Nop())
		seq.now = func() time.Time { return time.UnixMilli(1700000000000) }

		ref := seq.Next(ctx, model.SequenceOrderInvoice)

		assert.True(t, ref.Fallback)
		assert.Equal(t, int64(1700000000000), ref.Value)
		assert.Equal(t, "INV-T1700000000000", ref.String())
		assert.Equal(t, 1.0, counterValue(t, reg, "storefront_counter_fallback_total"))
	})
}
