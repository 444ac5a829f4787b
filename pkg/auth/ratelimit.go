package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter decides whether identity may make another request. A
// rejection is an error matching ErrTooManyRequests, usually a *LimitError.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// LimitError rejects a request until the caller's window reopens.
type LimitError struct {
	RetryAfter time.Duration
}

func (e *LimitError) Error() string { return ErrTooManyRequests.Error() }

func (e *LimitError) Unwrap() error { return ErrTooManyRequests }

// InProcessLimiter counts requests per subject in fixed one-minute windows.
// Limits come from the caller's service tier; zero means unlimited.
type InProcessLimiter struct {
	tiers      map[string]int
	defaultRPM int
	now        func() time.Time

	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
}

type window struct {
	start time.Time
	count int
}

// NewInProcessLimiter creates a limiter with requests-per-minute limits per
// tier name. Identities whose tier is not listed get defaultRPM.
func NewInProcessLimiter(tiers map[string]int, defaultRPM int) *InProcessLimiter {
	return &InProcessLimiter{
		tiers:      tiers,
		defaultRPM: defaultRPM,
		now:        time.Now,
		windows:    make(map[string]*window),
	}
}

// Allow returns a *LimitError once the subject exceeds its limit within the
// current window.
func (l *InProcessLimiter) Allow(_ context.Context, identity *Identity) error {
	rpm := l.defaultRPM
	if n, ok := l.tiers[identity.ServiceTier]; ok {
		rpm = n
	}
	if rpm <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	w, ok := l.windows[identity.Subject]
	if !ok || now.Sub(w.start) >= time.Minute {
		l.windows[identity.Subject] = &window{start: now, count: 1}
		return nil
	}
	w.count++
	if w.count > rpm {
		return &LimitError{RetryAfter: w.start.Add(time.Minute).Sub(now)}
	}
	return nil
}

// sweep drops expired windows at most once a minute.
func (l *InProcessLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < time.Minute {
		return
	}
	for subject, w := range l.windows {
		if now.Sub(w.start) >= time.Minute {
			delete(l.windows, subject)
		}
	}
	l.lastSweep = now
}
