// Package ratelimit derives per-client upload quota decisions from the metadata store.
// The limiter holds no state of its own: every decision is a fresh count.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Counter reports how many uploads ip made at or after since.
type Counter interface {
	CountByIPSince(ctx context.Context, ip string, since time.Time) (int, error)
}

// Window is the result of one admission check.
type Window struct {
	Count int
	Limit int
	Since time.Time
}

// Exceeded reports whether the client is at or above its ceiling.
// A non-positive limit disables the check.
func (w Window) Exceeded() bool {
	return w.Limit > 0 && w.Count >= w.Limit
}

// Limiter counts uploads in a trailing window against a fixed ceiling.
type Limiter struct {
	counter Counter
	limit   int
	window  time.Duration
}

// New returns a Limiter allowing limit uploads per window.
func New(counter Counter, limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Hour
	}
	return &Limiter{counter: counter, limit: limit, window: window}
}

// Limit returns the configured ceiling.
func (l *Limiter) Limit() int { return l.limit }

// Since returns the start of the window ending at now.
func (l *Limiter) Since(now time.Time) time.Time {
	return now.Add(-l.window)
}

// Admit counts clientIP's uploads in the window ending at now.
// The decision is advisory: concurrent requests may both be admitted.
func (l *Limiter) Admit(ctx context.Context, clientIP string, now time.Time) (Window, error) {
	since := l.Since(now)
	n, err := l.counter.CountByIPSince(ctx, clientIP, since)
	if err != nil {
		return Window{}, fmt.Errorf("count uploads: %w", err)
	}
	return Window{Count: n, Limit: l.limit, Since: since}, nil
}
