// Package pace wraps provider calls with inter-request pacing, bounded
// transient retries, and provider-directed rate-limit backoff.
package pace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"golang.org/x/time/rate"
)

// RateLimitedError is a provider "too many requests" signal, optionally
// carrying the wait the provider asked for (flood-wait, Retry-After).
type RateLimitedError struct {
	Wait time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("provider rate limited, wait %s", e.Wait)
}

// ErrRateLimited surfaces once the single provider-directed retry is spent.
var ErrRateLimited = errors.New("rate limit retry budget exhausted")

// transientError marks provider failures worth a bounded retry: network
// errors, 5xx pages, malformed payloads.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked with Transient.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// Config tunes a Pacer.
type Config struct {
	MinInterval     time.Duration // minimum delay between provider calls
	MaxProviderWait time.Duration // cap on a provider-issued wait
	MaxRetries      int           // transient retry budget per call
	BaseDelay       time.Duration // transient backoff floor
	MaxDelay        time.Duration // transient backoff ceiling
}

// Pacer enforces one provider's call discipline. The zero value is not
// usable; construct with New.
type Pacer struct {
	limiter         *rate.Limiter
	maxProviderWait time.Duration
	maxRetries      int
	baseDelay       time.Duration
	maxDelay        time.Duration
	sleep           func(context.Context, time.Duration) error
}

func New(cfg Config) *Pacer {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 340 * time.Millisecond
	}
	if cfg.MaxProviderWait <= 0 {
		cfg.MaxProviderWait = time.Minute
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 200 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = 5 * time.Second
	}
	return &Pacer{
		limiter:         rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		maxProviderWait: cfg.MaxProviderWait,
		maxRetries:      cfg.MaxRetries,
		baseDelay:       cfg.BaseDelay,
		maxDelay:        cfg.MaxDelay,
		sleep:           sleepCtx,
	}
}

// WithSleep overrides the backoff sleep so tests can inject a fake clock.
func (p *Pacer) WithSleep(fn func(context.Context, time.Duration) error) *Pacer {
	p.sleep = fn
	return p
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs fn under pacing. Transient errors retry with backoff up to the
// configured budget. A provider rate-limit signal suspends for exactly the
// provider's wait (capped at MaxProviderWait) and retries once; a second
// signal surfaces ErrRateLimited to the caller.
func Do[T any](ctx context.Context, p *Pacer, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	policy := retrypolicy.NewBuilder[T]().
		WithBackoff(p.baseDelay, p.maxDelay).
		WithMaxRetries(p.maxRetries).
		HandleIf(func(_ T, err error) bool { return IsTransient(err) }).
		Build()
	exec := failsafe.With(policy).WithContext(ctx)

	for attempt := 0; ; attempt++ {
		v, err := exec.Get(func() (T, error) {
			if werr := p.limiter.Wait(ctx); werr != nil {
				var z T
				return z, werr
			}
			return fn(ctx)
		})
		var rl *RateLimitedError
		if errors.As(err, &rl) {
			if attempt >= 1 {
				return zero, ErrRateLimited
			}
			wait := rl.Wait
			if wait <= 0 {
				wait = p.baseDelay
			}
			if wait > p.maxProviderWait {
				wait = p.maxProviderWait
			}
			if serr := p.sleep(ctx, wait); serr != nil {
				return zero, serr
			}
			continue
		}
		if err != nil {
			return zero, err
		}
		return v, nil
	}
}
