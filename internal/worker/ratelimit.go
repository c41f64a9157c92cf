package worker

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter throttles the number of events migrated per second
type RateLimiter struct {
	events *rate.Limiter
}

// NewRateLimiter creates a rate limiter. A non-positive rate disables it.
func NewRateLimiter(eventsPerSecond int) *RateLimiter {
	if eventsPerSecond <= 0 {
		return &RateLimiter{}
	}
	return &RateLimiter{
		events: rate.NewLimiter(rate.Limit(eventsPerSecond), 1),
	}
}

// Enabled reports whether the limiter throttles
func (r *RateLimiter) Enabled() bool {
	return r != nil && r.events != nil
}

// Wait waits until the next event may be migrated
func (r *RateLimiter) Wait(ctx context.Context) error {
	if !r.Enabled() {
		return ctx.Err()
	}
	return r.events.Wait(ctx)
}
