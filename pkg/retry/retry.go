// Package retry re-runs failed operations with bounded exponential backoff.
//
// Delays double from BaseDelay up to MaxDelay with optional jitter. When the
// failure is an *api.APIError carrying a Retry-After hint larger than the
// computed delay, the hint wins.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rhuss/confwhisper/pkg/api"
)

// Policy controls how Do retries.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	// Zero disables retrying.
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the computed delay. A Retry-After hint may exceed it.
	MaxDelay time.Duration

	// Jitter is the randomization factor applied to each delay, in [0, 1).
	Jitter float64

	// RetryAllErrors retries every failure except context cancellation.
	// When false only rate-limit failures are retried.
	RetryAllErrors bool

	// OnRetry, if set, is called before sleeping with the 1-based retry
	// number, the failure and the chosen delay.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Sleep overrides the context-aware sleep (for testing).
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns 3 retries from 1s up to 10s, rate limits only.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		Jitter:     0.25,
	}
}

// ShouldRetry reports whether err qualifies for another attempt under p.
func (p Policy) ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.RetryAllErrors {
		return true
	}
	return api.IsRetryable(err)
}

// Do calls op until it succeeds, fails with an error the policy does not
// retry, exhausts MaxRetries, or ctx is done. The last error is returned
// unchanged so callers can inspect it.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = contextSleep
	}
	b := p.newBackOff()

	for attempt := 0; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= p.MaxRetries || !p.ShouldRetry(err) {
			return v, err
		}

		delay := b.NextBackOff()
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		if hint := api.RetryAfterOf(err); hint > delay {
			delay = hint
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err, delay)
		}
		if serr := sleep(ctx, delay); serr != nil {
			var zero T
			return zero, serr
		}
	}
}

func (p Policy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.RandomizationFactor = p.Jitter
	b.Multiplier = 2
	b.MaxInterval = p.MaxDelay
	if b.MaxInterval <= 0 {
		b.MaxInterval = backoff.DefaultMaxInterval
	}
	// Attempts are bounded by MaxRetries, not elapsed time.
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// contextSleep sleeps for d or until ctx is cancelled.
func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
