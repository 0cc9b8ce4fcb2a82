// Package ratelimit implements the fixed-window request limiter guarding the
// chat endpoints.
//
// Each key (session id or client IP) gets max requests per window. The
// window starts at the first request; a request arriving at or after the
// reset time starts a new window with count 1.
package ratelimit

import (
	"context"
	"time"
)

// Defaults.
const (
	DefaultMax      = 20
	DefaultWindow   = time.Minute
	DefaultCapacity = 1000
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed bool
	Count   int
	Limit   int
	ResetAt time.Time
}

// Remaining returns how many requests are left in the window.
func (d Decision) Remaining() int {
	if r := d.Limit - d.Count; r > 0 {
		return r
	}
	return 0
}

// RetryAfter returns the time until the window resets, relative to now.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if wait := d.ResetAt.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

// Limiter counts a request for key and reports whether it may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}
