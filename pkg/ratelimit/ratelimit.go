// Package ratelimit provides a fixed-interval pacing gate with optional
// jitter. Sessions hold one gate per platform so spacing between
// externally-bound calls is enforced independently per platform.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter enforces a minimum interval between successive operations.
// It is safe for concurrent use by multiple goroutines.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	jitter   float64 // 0.0 to 1.0
	last     time.Time
}

// NewInterval creates a limiter that spaces operations at least interval
// apart, plus up to jitter*interval of random extra delay. A zero or
// negative interval yields a limiter that never blocks.
func NewInterval(interval time.Duration, jitter float64) *Limiter {
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}
	return &Limiter{interval: interval, jitter: jitter}
}

// NewPerSecond creates a limiter from a requests-per-second rate.
// If rps <= 0 the limiter never blocks.
func NewPerSecond(rps float64, jitter float64) *Limiter {
	if rps <= 0 {
		return NewInterval(0, jitter)
	}
	return NewInterval(time.Duration(float64(time.Second)/rps), jitter)
}

// Wait blocks until at least the configured interval has elapsed since the
// previous permitted operation, or until the context is canceled. The first
// call never blocks. The wait parks only the calling goroutine; unrelated
// work is never stalled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.interval <= 0 {
		return ctx.Err()
	}

	l.mu.Lock()
	now := time.Now()
	var delay time.Duration
	if !l.last.IsZero() {
		next := l.last.Add(l.interval)
		if l.jitter > 0 {
			next = next.Add(time.Duration(rand.Float64() * l.jitter * float64(l.interval)))
		}
		if next.After(now) {
			delay = next.Sub(now)
		}
	}
	// Reserve the slot before sleeping so concurrent waiters queue up
	// instead of all releasing at once.
	l.last = now.Add(delay)
	l.mu.Unlock()

	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Interval returns the configured minimum spacing.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
