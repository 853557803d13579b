// Package resilience wraps every call the BFF makes to Supabase with
// retry, circuit breaking and a concurrency bulkhead. The knobs live in
// Config so operators can tune them per environment without a rebuild.
package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"
)

// Config carries the resilience knobs for one upstream. Zero breaker
// fields fall back to the defaults noted on each field.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// BreakerMinRequests is the request count below which the breaker
	// never trips (default 5).
	BreakerMinRequests uint32
	// BreakerFailureRatio trips the breaker once reached (default 0.6).
	BreakerFailureRatio float64
	// BreakerCooldown is how long the breaker stays open before
	// probing again (default 10s).
	BreakerCooldown time.Duration
}

// RetryWithBackoff runs fn up to MaxRetries+1 times with exponential
// backoff and jitter. Cancellation of ctx stops both the retries and
// any in-progress wait.
func RetryWithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt < cfg.MaxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * cfg.InitialBackoff
			jitter := time.Duration(rand.Int63n(int64(backoff / 2)))
			wait := backoff + jitter

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return lastErr
}

// NewCircuitBreaker builds a breaker for the named upstream using the
// thresholds in cfg. While open it rejects immediately; half-open lets
// three requests through before deciding.
func NewCircuitBreaker(name string, cfg Config) *gobreaker.CircuitBreaker {
	minRequests := cfg.BreakerMinRequests
	if minRequests == 0 {
		minRequests = 5
	}
	failureRatio := cfg.BreakerFailureRatio
	if failureRatio == 0 {
		failureRatio = 0.6
	}
	cooldown := cfg.BreakerCooldown
	if cooldown == 0 {
		cooldown = 10 * time.Second
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && ratio >= failureRatio
		},
	})
}

// Bulkhead caps how many calls may be in flight against an upstream at
// once, so a slow Supabase cannot absorb every handler goroutine.
type Bulkhead struct {
	sem chan struct{}
}

// NewBulkhead creates a bulkhead admitting at most maxConcurrency
// concurrent holders.
func NewBulkhead(maxConcurrency int) *Bulkhead {
	return &Bulkhead{sem: make(chan struct{}, maxConcurrency)}
}

// Acquire blocks until a slot frees up or ctx is cancelled.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot. Callers must pair every successful Acquire
// with exactly one Release.
func (b *Bulkhead) Release() {
	<-b.sem
}
