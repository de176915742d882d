// Package workflow runs an ordered list of steps with per-step timeouts, retries and compensation.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/metrics"

	"github.com/rs/zerolog"
)

// Policy decides what a step failure does to the rest of the sequence.
type Policy int

const (
	// Mandatory failures abort the sequence and compensate completed mandatory steps.
	Mandatory Policy = iota
	// BestEffort failures are logged and the sequence continues.
	BestEffort
)

func (p Policy) String() string {
	if p == BestEffort {
		return "best_effort"
	}
	return "mandatory"
}

// Step is one unit of a workflow.
type Step struct {
	Name   string
	Policy Policy
	// Timeout bounds each attempt. Zero uses the runner default.
	Timeout time.Duration
	Run     func(ctx context.Context) error
	// Compensate undoes Run after a later mandatory step fails. Optional.
	Compensate func(ctx context.Context) error
	// CompensateOnFailure also runs Compensate when this step's own Run fails, for writes that
	// may have applied before the error was returned. Compensate must then be safe to run
	// when Run had no effect.
	CompensateOnFailure bool
	// Detached runs the step, including retries, on a context that ignores the caller's
	// cancellation. Timeout still bounds each attempt.
	Detached bool
}

// RetryConfig controls attempts and exponential backoff.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns 3 attempts starting at 100ms, doubling up to 5s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// StepError reports which step aborted a workflow.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Report summarizes a completed run.
type Report struct {
	Completed []string
	// Skipped holds best-effort failures keyed by step name.
	Skipped map[string]error
}

// Runner executes workflows.
type Runner struct {
	name        string
	retry       RetryConfig
	timeout     time.Duration
	shouldRetry func(error) bool
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

// WithRetry overrides the retry configuration.
func WithRetry(cfg RetryConfig) Option {
	return func(r *Runner) { r.retry = cfg }
}

// WithStepTimeout sets the default per-attempt timeout.
func WithStepTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithRetryPolicy sets the predicate deciding whether a failed attempt is retried.
func WithRetryPolicy(fn func(error) bool) Option {
	return func(r *Runner) { r.shouldRetry = fn }
}

// NewRunner creates a runner for the named workflow.
func NewRunner(name string, m *metrics.Metrics, logger zerolog.Logger, opts ...Option) *Runner {
	r := &Runner{
		name:    name,
		retry:   DefaultRetryConfig(),
		metrics: m,
		logger:  logger.With().Str("workflow", name).Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.retry.MaxAttempts < 1 {
		r.retry.MaxAttempts = 1
	}
	if r.shouldRetry == nil {
		r.shouldRetry = func(err error) bool {
			return !errors.Is(err, context.Canceled)
		}
	}
	return r
}

// Run executes steps in order. The returned error is a *StepError from the first failed mandatory step.
func (r *Runner) Run(ctx context.Context, steps []Step) (*Report, error) {
	report := &Report{Skipped: map[string]error{}}
	var done []Step

	for _, step := range steps {
		start := time.Now()
		err := r.execute(ctx, step)
		elapsed := time.Since(start)

		if err == nil {
			r.record(step.Name, metrics.OutcomeSucceeded, elapsed)
			report.Completed = append(report.Completed, step.Name)
			if step.Policy == Mandatory {
				done = append(done, step)
			}
			continue
		}

		if step.Policy == BestEffort {
			r.record(step.Name, metrics.OutcomeSkipped, elapsed)
			r.logger.Warn().
				Err(err).
				Str("step", step.Name).
				Dur("elapsed", elapsed).
				Msg("best-effort step failed, continuing")
			report.Skipped[step.Name] = err
			continue
		}

		r.record(step.Name, metrics.OutcomeFailed, elapsed)
		r.logger.Error().
			Err(err).
			Str("step", step.Name).
			Dur("elapsed", elapsed).
			Msg("mandatory step failed, aborting")
		if step.CompensateOnFailure {
			done = append(done, step)
		}
		r.compensate(ctx, done)
		return report, &StepError{Step: step.Name, Err: err}
	}

	return report, nil
}

func (r *Runner) execute(ctx context.Context, step Step) error {
	if step.Detached {
		ctx = context.WithoutCancel(ctx)
	}

	var lastErr error
	delay := r.retry.InitialDelay

	for attempt := 1; attempt <= r.retry.MaxAttempts; attempt++ {
		err := r.attempt(ctx, step)
		if err == nil {
			if attempt > 1 {
				r.logger.Info().
					Str("step", step.Name).
					Int("attempt", attempt).
					Msg("step succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if !r.shouldRetry(err) || attempt == r.retry.MaxAttempts {
			break
		}

		r.logger.Warn().
			Err(err).
			Str("step", step.Name).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("step failed, retrying")

		select {
		case <-ctx.Done():
			return errors.Join(lastErr, ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * r.retry.BackoffFactor)
		if r.retry.MaxDelay > 0 && delay > r.retry.MaxDelay {
			delay = r.retry.MaxDelay
		}
	}

	return lastErr
}

func (r *Runner) attempt(ctx context.Context, step Step) error {
	timeout := step.Timeout
	if timeout == 0 {
		timeout = r.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return step.Run(ctx)
}

// compensate undoes completed mandatory steps in reverse order. Failures are logged only.
func (r *Runner) compensate(ctx context.Context, done []Step) {
	ctx = context.WithoutCancel(ctx)
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}

		start := time.Now()
		err := r.attempt(ctx, Step{Name: step.Name, Timeout: step.Timeout, Run: step.Compensate})
		if err != nil {
			r.logger.Error().
				Err(err).
				Str("step", step.Name).
				Msg("compensation failed")
			continue
		}
		r.record(step.Name, metrics.OutcomeCompensated, time.Since(start))
		r.logger.Info().Str("step", step.Name).Msg("step compensated")
	}
}

func (r *Runner) record(step, outcome string, elapsed time.Duration) {
	if r.metrics != nil {
		r.metrics.RecordStep(r.name, step, outcome, elapsed)
	}
}
