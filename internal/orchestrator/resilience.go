package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/aristath/taskflow/internal/scheduler"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	InitialInterval     time.Duration // Initial retry interval (default 100ms)
	MaxInterval         time.Duration // Maximum retry interval (default 10s)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 2min)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
	MaxRetries          uint64        // Retries after the first attempt; 0 means bounded only by MaxElapsedTime
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
		MaxRetries:          3,
	}
}

// BreakerConfig configures the per-category circuit breakers.
type BreakerConfig struct {
	ConsecutiveFailures uint32        // Failures that trip the breaker (default 5)
	OpenTimeout         time.Duration // Time spent open before probing (default 30s)
	HalfOpenRequests    uint32        // Probes allowed while half-open (default 3)
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    3,
	}
}

// CircuitBreakerRegistry manages one circuit breaker per task category, so a
// category whose work keeps failing stops being attempted for a while without
// affecting the others.
type CircuitBreakerRegistry struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	logger   *zap.Logger
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewCircuitBreakerRegistry creates a new circuit breaker registry.
func NewCircuitBreakerRegistry(cfg BreakerConfig, logger *zap.Logger) *CircuitBreakerRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultBreakerConfig()
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = def.ConsecutiveFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = def.HalfOpenRequests
	}
	return &CircuitBreakerRegistry{
		cfg:      cfg,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the circuit breaker for category, creating it on first use.
func (r *CircuitBreakerRegistry) Get(category string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[category]; ok {
		return cb
	}

	threshold := r.cfg.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        category,
		MaxRequests: r.cfg.HalfOpenRequests,
		Interval:    0, // Don't clear counts automatically
		Timeout:     r.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.Warn("circuit breaker state change",
				zap.String("category", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// Cancellation says nothing about the health of the work itself.
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})

	r.breakers[category] = cb
	return cb
}

// ResilientWorker wraps a Worker with exponential backoff retries and a
// circuit breaker keyed by task category.
type ResilientWorker struct {
	inner    scheduler.Worker
	retry    RetryConfig
	breakers *CircuitBreakerRegistry
}

// NewResilientWorker wraps inner.
func NewResilientWorker(inner scheduler.Worker, retry RetryConfig, breakers *CircuitBreakerRegistry) *ResilientWorker {
	if breakers == nil {
		breakers = NewCircuitBreakerRegistry(DefaultBreakerConfig(), nil)
	}
	return &ResilientWorker{inner: inner, retry: retry, breakers: breakers}
}

// Work runs the inner worker until it succeeds, the retry budget runs out,
// the category's breaker opens, or ctx is cancelled.
func (w *ResilientWorker) Work(ctx context.Context, task scheduler.Task) error {
	cb := w.breakers.Get(breakerKey(task))

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		_, err := cb.Execute(func() (interface{}, error) {
			return nil, w.inner.Work(ctx, task)
		})
		if err == nil {
			return nil
		}

		// Circuit is open - don't retry
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = w.retry.InitialInterval
	policy.MaxInterval = w.retry.MaxInterval
	policy.MaxElapsedTime = w.retry.MaxElapsedTime
	policy.Multiplier = w.retry.Multiplier
	policy.RandomizationFactor = w.retry.RandomizationFactor

	var b backoff.BackOff = policy
	if w.retry.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, w.retry.MaxRetries)
	}
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

func breakerKey(task scheduler.Task) string {
	if task.Category == "" {
		return "uncategorized"
	}
	return task.Category
}
