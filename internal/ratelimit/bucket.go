// Package ratelimit provides the non-blocking token bucket that guards
// outbound API calls.
package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// Defaults for the remote API budget.
const (
	DefaultCapacity = 30
	DefaultRefill   = 20
	DefaultInterval = time.Minute
)

// Bucket is a token bucket with continuous refill. It never blocks.
type Bucket struct {
	limiter  *rate.Limiter
	now      func() time.Time
	capacity int
}

// New creates a full bucket holding capacity tokens that refills
// refill tokens per interval.
func New(capacity, refill int, interval time.Duration) *Bucket {
	return NewWithClock(capacity, refill, interval, time.Now)
}

// NewWithClock is New with an injected clock.
func NewWithClock(capacity, refill int, interval time.Duration, now func() time.Time) *Bucket {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if refill <= 0 {
		refill = DefaultRefill
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if now == nil {
		now = time.Now
	}

	perSecond := float64(refill) / interval.Seconds()
	return &Bucket{
		limiter:  rate.NewLimiter(rate.Limit(perSecond), capacity),
		now:      now,
		capacity: capacity,
	}
}

// TryConsume takes one token if available. The check and decrement are atomic.
func (b *Bucket) TryConsume() bool {
	return b.limiter.AllowN(b.now(), 1)
}

// Available returns the current token count in [0, capacity].
func (b *Bucket) Available() float64 {
	tokens := b.limiter.TokensAt(b.now())
	return min(max(tokens, 0), float64(b.capacity))
}

// Capacity returns the bucket size.
func (b *Bucket) Capacity() int {
	return b.capacity
}
