package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/cleanearth/cleanearth-bff-go/internal/infra/resilience"
)

var errUpstream = errors.New("upstream unavailable")

func TestRetryStopsOnFirstSuccess(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 3, InitialBackoff: 5 * time.Millisecond}

	calls := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("retry returned %v", err)
	}
	if calls != 1 {
		t.Errorf("fn ran %d times, want 1", calls)
	}
}

func TestRetryRecoversFromTransientFailures(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 3, InitialBackoff: 5 * time.Millisecond}

	calls := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errUpstream
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retry should have recovered, got %v", err)
	}
	if calls != 3 {
		t.Errorf("fn ran %d times, want 3", calls)
	}
}

func TestRetryReturnsLastErrorWhenExhausted(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: 5 * time.Millisecond}

	calls := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		return errUpstream
	})
	if !errors.Is(err, errUpstream) {
		t.Fatalf("err = %v, want the upstream error", err)
	}
	if calls != 3 {
		t.Errorf("fn ran %d times, want MaxRetries+1 = 3", calls)
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 5, InitialBackoff: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := resilience.RetryWithBackoff(ctx, cfg, func() error {
		return errUpstream
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestCircuitBreakerTripsAtConfiguredRatio(t *testing.T) {
	cb := resilience.NewCircuitBreaker("supabase", resilience.Config{
		BreakerMinRequests:  2,
		BreakerFailureRatio: 0.5,
		BreakerCooldown:     time.Minute,
	})

	for i := 0; i < 2; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, errUpstream })
	}

	_, err := cb.Execute(func() (any, error) { return nil, nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want gobreaker.ErrOpenState", err)
	}
}

func TestCircuitBreakerHoldsBelowMinRequests(t *testing.T) {
	cb := resilience.NewCircuitBreaker("supabase", resilience.Config{
		BreakerMinRequests:  10,
		BreakerFailureRatio: 0.5,
		BreakerCooldown:     time.Minute,
	})

	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, errUpstream })
	}

	_, err := cb.Execute(func() (any, error) { return nil, nil })
	if err != nil {
		t.Fatalf("breaker tripped below the minimum request count: %v", err)
	}
}

func TestBulkheadBlocksWhenFull(t *testing.T) {
	bh := resilience.NewBulkhead(2)

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("second acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := bh.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded while full", err)
	}

	bh.Release()
	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}
