package ratelimit

import (
	"context"
	"time"
)

// Result contains the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long to wait before the next call may pass.
func (r *Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed || !r.ResetAt.After(now) {
		return 0
	}
	return r.ResetAt.Sub(now)
}

// Store holds fixed-window counters.
type Store interface {
	// IncrementAndGet adds incr to the counter for key, opening a new window
	// of the given length when none is active, and returns the new count and
	// the time the window closes.
	IncrementAndGet(ctx context.Context, key string, incr int, window time.Duration) (count int64, resetAt time.Time, err error)

	// Get returns the counter without modifying it. A missing or expired
	// window reports zero.
	Get(ctx context.Context, key string) (count int64, resetAt time.Time, err error)

	Delete(ctx context.Context, key string) error
}
