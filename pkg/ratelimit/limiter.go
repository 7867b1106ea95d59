package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter controls the rate of outbound requests.
type Limiter interface {
	// Wait blocks until a request is allowed or the context is cancelled.
	Wait(ctx context.Context) error

	// TryAcquire attempts to acquire permission without blocking.
	TryAcquire() bool
}

// TokenBucket implements a token bucket rate limiter. Tokens refill at a
// fixed interval up to a burst capacity.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time
}

// NewTokenBucket creates a token bucket allowing requestsPerMinute sustained
// with up to burstSize immediate requests.
func NewTokenBucket(requestsPerMinute int, burstSize int) *TokenBucket {
	if burstSize < 1 {
		burstSize = 1
	}
	return &TokenBucket{
		tokens:     float64(burstSize),
		maxTokens:  float64(burstSize),
		refillRate: float64(requestsPerMinute) / 60.0,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.TryAcquire() {
			return nil
		}

		tb.mu.Lock()
		needed := 1.0 - tb.tokens
		waitTime := time.Duration(needed / tb.refillRate * float64(time.Second))
		tb.mu.Unlock()

		if waitTime < 10*time.Millisecond {
			waitTime = 10 * time.Millisecond
		}

		timer := time.NewTimer(waitTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryAcquire attempts to take a token without blocking.
func (tb *TokenBucket) TryAcquire() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// refill adds tokens based on elapsed time. Caller must hold the lock.
func (tb *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.maxTokens {
		tb.tokens = tb.maxTokens
	}
	tb.lastRefill = now
}

// Jitter returns a random duration in [min, max]. Used to pace page fetches
// and downloads so request timing does not look mechanical.
func Jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// Sleep blocks for a jittered duration or until the context is cancelled.
func Sleep(ctx context.Context, min, max time.Duration) error {
	d := Jitter(min, max)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
