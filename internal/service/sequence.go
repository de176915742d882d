package service

import (
	"context"
	"time"

	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/rs/zerolog"
)

// Sequencer mints references from named counters.
type Sequencer struct {
	counters repository.CounterRepository
	metrics  *metrics.Metrics
	now      func() time.Time
	logger   zerolog.Logger
}

// NewSequencer creates a sequencer backed by counters.
func NewSequencer(counters repository.CounterRepository, m *metrics.Metrics, logger zerolog.Logger) *Sequencer {
	return &Sequencer{
		counters: counters,
		metrics:  m,
		now:      time.Now,
		logger:   logger.With().Str("service", "sequence").Logger(),
	}
}

// Next returns the next value of sequence. When the counter store fails, the value
// is the current Unix time in milliseconds and the reference is flagged as a fallback.
func (s *Sequencer) Next(ctx context.Context, sequence string) model.Reference {
	value, err := s.counters.Next(ctx, sequence)
	if err == nil {
		return model.Reference{Sequence: sequence, Value: value}
	}

	ref := model.Reference{Sequence: sequence, Value: s.now().UnixMilli(), Fallback: true}
	s.metrics.RecordCounterFallback(sequence)
	s.logger.Warn().
		Err(err).
		Str("sequence", sequence).
		Str("reference", ref.String()).
		Msg("counter unavailable, using timestamp fallback")

	return ref
}
