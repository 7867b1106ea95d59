package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"igclient/pkg/errors"
	"igclient/pkg/logger"
)

// BackoffStrategy determines the delay between retry attempts.
type BackoffStrategy interface {
	// NextDelay returns the delay before the given attempt (1-based).
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff doubles the delay each attempt up to a maximum, with
// optional jitter to avoid thundering herds.
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     bool
}

// NewExponentialBackoff creates an exponential backoff with sane defaults.
func NewExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:  1 * time.Second,
		MaxDelay:   2 * time.Minute,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return eb.BaseDelay
	}
	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}
	if eb.Jitter {
		delay = delay * (0.5 + rand.Float64()*0.5)
	}
	return time.Duration(delay)
}

// Config controls retry behavior.
type Config struct {
	MaxAttempts int
	Backoff     BackoffStrategy
	Logger      logger.Logger
}

// DefaultConfig returns a retry config suitable for download loops.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     NewExponentialBackoff(),
		Logger:      logger.GetLogger(),
	}
}

// Do executes fn with retries for transient failures. Typed errors that are
// not retryable abort immediately.
func Do(ctx context.Context, cfg *Config, operation string, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !errors.IsRetryable(errors.TypeOf(lastErr)) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.Backoff.NextDelay(attempt)
		if cfg.Logger != nil {
			cfg.Logger.WarnWithFields("retrying after failure", map[string]interface{}{
				"operation": operation,
				"attempt":   attempt,
				"delay":     delay,
				"error":     lastErr.Error(),
			})
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// DoWithResult executes fn with retries and returns its result.
func DoWithResult[T any](ctx context.Context, cfg *Config, operation string, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, operation, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}
