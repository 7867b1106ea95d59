package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketBurst(t *testing.T) {
	tb := NewTokenBucket(60, 3)

	assert.True(t, tb.TryAcquire())
	assert.True(t, tb.TryAcquire())
	assert.True(t, tb.TryAcquire())
	assert.False(t, tb.TryAcquire(), "burst exhausted")
}

func TestTokenBucketRefills(t *testing.T) {
	tb := NewTokenBucket(6000, 1)
	require.True(t, tb.TryAcquire())
	require.False(t, tb.TryAcquire())

	// 100 tokens per second: one arrives within ~10ms.
	time.Sleep(30 * time.Millisecond)
	assert.True(t, tb.TryAcquire())
}

func TestTokenBucketWaitRespectsContext(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tb.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestJitterBounds(t *testing.T) {
	min, max := 10*time.Millisecond, 50*time.Millisecond
	for i := 0; i < 100; i++ {
		d := Jitter(min, max)
		assert.GreaterOrEqual(t, d, min)
		assert.LessOrEqual(t, d, max)
	}
}

func TestJitterDegenerateRange(t *testing.T) {
	assert.Equal(t, 5*time.Millisecond, Jitter(5*time.Millisecond, 5*time.Millisecond))
	assert.Equal(t, 5*time.Millisecond, Jitter(5*time.Millisecond, time.Millisecond))
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Sleep(ctx, time.Second, 2*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
