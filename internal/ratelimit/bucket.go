// Package ratelimit guards calls to the GitHub CLI with a token bucket
// and provides exponential backoff for retry loops.
package ratelimit

import (
	"sync"
	"time"
)

// Bucket is a full-refill token bucket. Unlike a leaky bucket, the
// remaining count snaps back to capacity when the reset instant passes.
// This mirrors how the upstream API accounts its quota windows.
type Bucket struct {
	mu sync.Mutex

	capacity  int
	remaining int
	resetAt   time.Time
	refill    time.Duration

	// now is replaceable in tests
	now func() time.Time
}

// NewBucket creates a bucket that refills to capacity every interval.
func NewBucket(capacity int, interval time.Duration) *Bucket {
	if capacity < 1 {
		capacity = 1
	}
	b := &Bucket{
		capacity: capacity,
		refill:   interval,
		now:      time.Now,
	}
	b.remaining = capacity
	b.resetAt = b.now().Add(interval)
	return b
}

// TryAcquire takes one token. It returns false when the bucket is
// empty and the reset instant has not passed yet.
func (b *Bucket) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeRefillLocked()
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// ShouldWarn reports whether remaining tokens have dropped to or below
// threshold but are not yet exhausted. Callers use this to surface a
// "slow down" hint before requests start failing.
func (b *Bucket) ShouldWarn(threshold int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeRefillLocked()
	return b.remaining > 0 && b.remaining <= threshold
}

// UpdateFromHeaders overrides bucket state with quota information from
// upstream response headers. resetEpochSeconds is a Unix timestamp in
// seconds, as sent in X-RateLimit-Reset.
func (b *Bucket) UpdateFromHeaders(remaining int, resetEpochSeconds int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if remaining < 0 {
		remaining = 0
	}
	if remaining > b.capacity {
		remaining = b.capacity
	}
	b.remaining = remaining
	b.resetAt = time.UnixMilli(resetEpochSeconds * 1000)
}

// Status returns the current remaining count and reset instant.
func (b *Bucket) Status() (remaining int, capacity int, resetAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeRefillLocked()
	return b.remaining, b.capacity, b.resetAt
}

func (b *Bucket) maybeRefillLocked() {
	if !b.now().Before(b.resetAt) {
		b.remaining = b.capacity
		b.resetAt = b.now().Add(b.refill)
	}
}
