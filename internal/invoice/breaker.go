package invoice

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerSettings tunes the circuit breaker in front of a Generator.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests uint32
	// CallTimeout bounds each Generate call. Zero leaves the caller's deadline alone.
	CallTimeout time.Duration
}

// DefaultBreakerSettings trips after 5 consecutive failures and probes after 30s.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    1,
	}
}

// breakerGenerator fails fast while the wrapped generator keeps failing.
type breakerGenerator struct {
	next    Generator
	breaker *gobreaker.CircuitBreaker[*Document]
	timeout time.Duration
}

// NewBreakerGenerator wraps next in a circuit breaker. Zero settings take their default one by one.
func NewBreakerGenerator(next Generator, settings BreakerSettings, logger zerolog.Logger) Generator {
	logger = logger.With().Str("component", "invoice-breaker").Logger()
	defaults := DefaultBreakerSettings()
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = defaults.ConsecutiveFailures
	}
	if settings.OpenTimeout == 0 {
		settings.OpenTimeout = defaults.OpenTimeout
	}
	if settings.HalfOpenRequests == 0 {
		settings.HalfOpenRequests = defaults.HalfOpenRequests
	}

	cb := gobreaker.NewCircuitBreaker[*Document](gobreaker.Settings{
		Name:        "invoice",
		MaxRequests: settings.HalfOpenRequests,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			// cancellation does not count against the generator
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	return &breakerGenerator{next: next, breaker: cb, timeout: settings.CallTimeout}
}

func (g *breakerGenerator) Generate(ctx context.Context, req Request) (*Document, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return g.breaker.Execute(func() (*Document, error) {
		return g.next.Generate(ctx, req)
	})
}
