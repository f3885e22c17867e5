package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketAcquireDecrements(t *testing.T) {
	b := NewBucket(3, time.Hour)

	for i := 0; i < 3; i++ {
		assert.True(t, b.TryAcquire(), "acquire %d should succeed", i)
	}
	assert.False(t, b.TryAcquire(), "bucket should be empty")

	remaining, capacity, _ := b.Status()
	assert.Equal(t, 0, remaining)
	assert.Equal(t, 3, capacity)
}

func TestBucketRefillsAfterReset(t *testing.T) {
	b := NewBucket(2, time.Hour)
	now := time.Now()
	b.now = func() time.Time { return now }
	b.resetAt = now.Add(time.Hour)

	require.True(t, b.TryAcquire())
	require.True(t, b.TryAcquire())
	require.False(t, b.TryAcquire())

	// Advance past the reset instant: next acquire refills first.
	now = now.Add(time.Hour + time.Second)
	assert.True(t, b.TryAcquire())

	remaining, _, resetAt := b.Status()
	assert.Equal(t, 1, remaining, "refill then single acquire")
	assert.True(t, resetAt.After(now), "reset instant advances")
}

func TestBucketShouldWarn(t *testing.T) {
	b := NewBucket(5, time.Hour)

	assert.False(t, b.ShouldWarn(2), "full bucket should not warn")

	for i := 0; i < 3; i++ {
		require.True(t, b.TryAcquire())
	}
	assert.True(t, b.ShouldWarn(2), "remaining=2 at threshold=2 warns")

	for i := 0; i < 2; i++ {
		require.True(t, b.TryAcquire())
	}
	assert.False(t, b.ShouldWarn(2), "empty bucket does not warn, it fails")
}

func TestBucketUpdateFromHeaders(t *testing.T) {
	b := NewBucket(10, time.Hour)

	resetEpoch := time.Now().Add(30 * time.Minute).Unix()
	b.UpdateFromHeaders(4, resetEpoch)

	remaining, capacity, resetAt := b.Status()
	assert.Equal(t, 4, remaining)
	assert.Equal(t, 10, capacity)
	assert.Equal(t, time.Unix(resetEpoch, 0).UnixMilli(), resetAt.UnixMilli())
}

func TestBucketUpdateFromHeadersClamps(t *testing.T) {
	b := NewBucket(5, time.Hour)
	future := time.Now().Add(time.Hour).Unix()

	b.UpdateFromHeaders(99, future)
	remaining, _, _ := b.Status()
	assert.Equal(t, 5, remaining, "remaining clamped to capacity")

	b.UpdateFromHeaders(-3, future)
	remaining, _, _ = b.Status()
	assert.Equal(t, 0, remaining, "negative remaining clamped to zero")
}
