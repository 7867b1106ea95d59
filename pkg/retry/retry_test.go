package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igclient/pkg/errors"
	"igclient/pkg/logger"
)

func fastConfig(attempts int) *Config {
	return &Config{
		MaxAttempts: attempts,
		Backoff:     &ExponentialBackoff{BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2},
		Logger:      logger.NewTestLogger(),
	}
}

func TestDoRetriesTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), "fetch", func() error {
		calls++
		if calls < 3 {
			return errors.New(errors.ErrorTypeNetwork, "flaky")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentFailure(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), "fetch", func() error {
		calls++
		return errors.New(errors.ErrorTypeAuthRequired, "login wall")
	})

	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeAuthRequired, errors.TypeOf(err))
	assert.Equal(t, 1, calls, "auth failures do not improve with retries")
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), "fetch", func() error {
		calls++
		return errors.New(errors.ErrorTypeServerError, "still down")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	value, err := DoWithResult(context.Background(), fastConfig(3), "fetch", func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New(errors.ErrorTypeRateLimit, "slow down")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestDoRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastConfig(3), "fetch", func() error {
		return errors.New(errors.ErrorTypeNetwork, "flaky")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExponentialBackoffGrowth(t *testing.T) {
	eb := &ExponentialBackoff{BaseDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2, Jitter: false}

	assert.Equal(t, time.Second, eb.NextDelay(1))
	assert.Equal(t, 2*time.Second, eb.NextDelay(2))
	assert.Equal(t, 4*time.Second, eb.NextDelay(3))
	assert.Equal(t, time.Minute, eb.NextDelay(20), "capped at max delay")
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	eb := &ExponentialBackoff{BaseDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2, Jitter: true}
	for i := 0; i < 50; i++ {
		d := eb.NextDelay(2)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 2*time.Second)
	}
}
