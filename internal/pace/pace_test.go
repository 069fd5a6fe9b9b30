package pace

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func testPacer() *Pacer {
	return New(Config{
		MinInterval:     time.Microsecond,
		MaxProviderWait: 2 * time.Second,
		MaxRetries:      2,
		BaseDelay:       time.Millisecond,
		MaxDelay:        time.Millisecond,
	})
}

func TestDoRetriesTransientUpToBudget(t *testing.T) {
	p := testPacer()
	var attempts int32
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		atomic.AddInt32(&attempts, 1)
		return 0, Transient(errors.New("connection reset"))
	})
	if err == nil {
		t.Fatal("expected failure after budget")
	}
	if !IsTransient(err) {
		t.Fatalf("expected transient error surfaced, got %v", err)
	}
	// 1 initial + 2 retries
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
}

func TestDoRecoversTransient(t *testing.T) {
	p := testPacer()
	var attempts int32
	v, err := Do(context.Background(), p, func(context.Context) (string, error) {
		if atomic.AddInt32(&attempts, 1) < 2 {
			return "", Transient(errors.New("timeout"))
		}
		return "page", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "page" {
		t.Fatalf("got %q", v)
	}
}

func TestDoHonorsProviderWaitThenRetriesOnce(t *testing.T) {
	p := testPacer()
	var slept []time.Duration
	p.WithSleep(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})
	var attempts int32
	v, err := Do(context.Background(), p, func(context.Context) (int, error) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return 0, &RateLimitedError{Wait: 700 * time.Millisecond}
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Fatalf("got %d", v)
	}
	if len(slept) != 1 || slept[0] != 700*time.Millisecond {
		t.Fatalf("slept %v, want exactly the provider wait", slept)
	}
}

func TestDoCapsProviderWait(t *testing.T) {
	p := testPacer()
	var slept time.Duration
	p.WithSleep(func(_ context.Context, d time.Duration) error {
		slept = d
		return nil
	})
	var attempts int32
	_, _ = Do(context.Background(), p, func(context.Context) (int, error) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return 0, &RateLimitedError{Wait: time.Hour}
		}
		return 0, nil
	})
	if slept != 2*time.Second {
		t.Fatalf("slept %v, want capped 2s", slept)
	}
}

func TestDoSurfacesRateLimitedAfterSecondSignal(t *testing.T) {
	p := testPacer()
	p.WithSleep(func(context.Context, time.Duration) error { return nil })
	var attempts int32
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		atomic.AddInt32(&attempts, 1)
		return 0, &RateLimitedError{Wait: time.Second}
	})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Fatalf("attempts = %d, want 2 (initial + one provider-directed retry)", got)
	}
}

func TestDoStopsOnCancel(t *testing.T) {
	p := testPacer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Do(ctx, p, func(context.Context) (int, error) {
		return 0, &RateLimitedError{Wait: time.Minute}
	})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
