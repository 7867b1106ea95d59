package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igclient/pkg/errors"
	"igclient/pkg/logger"
)

func TestResolveFirstSuccessStopsProbing(t *testing.T) {
	probed := []string{}
	probe := func(ctx context.Context, candidate string) (string, bool, error) {
		probed = append(probed, candidate)
		if candidate == "b" {
			return "payload", true, nil
		}
		return "", false, nil
	}

	value, winner, err := Resolve(context.Background(), []string{"a", "b", "c"}, probe, logger.NewTestLogger())
	require.NoError(t, err)
	assert.Equal(t, "payload", value)
	assert.Equal(t, "b", winner)
	assert.Equal(t, []string{"a", "b"}, probed, "candidates after the winner must not be probed")
}

func TestResolveExhaustedWhenAnswered(t *testing.T) {
	probe := func(ctx context.Context, candidate string) (int, bool, error) {
		return 0, false, nil
	}

	_, _, err := Resolve(context.Background(), []string{"a", "b"}, probe, logger.NewTestLogger())
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeResolutionExhausted, errors.TypeOf(err))
}

func TestResolveAllTransportFailuresIsNetworkError(t *testing.T) {
	probe := func(ctx context.Context, candidate string) (int, bool, error) {
		return 0, false, errors.New(errors.ErrorTypeNetwork, "dial timeout")
	}

	_, _, err := Resolve(context.Background(), []string{"a", "b", "c"}, probe, logger.NewTestLogger())
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeNetwork, errors.TypeOf(err),
		"transport-only failures say nothing about the target")
}

func TestResolveMixedFailuresIsExhausted(t *testing.T) {
	probe := func(ctx context.Context, candidate string) (int, bool, error) {
		if candidate == "a" {
			return 0, false, errors.New(errors.ErrorTypeNetwork, "dial timeout")
		}
		return 0, false, nil
	}

	_, _, err := Resolve(context.Background(), []string{"a", "b"}, probe, logger.NewTestLogger())
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeResolutionExhausted, errors.TypeOf(err))
}

func TestResolveAuthFailureShortCircuits(t *testing.T) {
	probed := 0
	probe := func(ctx context.Context, candidate string) (int, bool, error) {
		probed++
		return 0, false, errors.New(errors.ErrorTypeAuthRequired, "login wall")
	}

	_, _, err := Resolve(context.Background(), []string{"a", "b", "c"}, probe, logger.NewTestLogger())
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeAuthRequired, errors.TypeOf(err))
	assert.Equal(t, 1, probed, "an auth failure would repeat on every candidate")
}

func TestResolveEmptyChain(t *testing.T) {
	probe := func(ctx context.Context, candidate string) (int, bool, error) {
		t.Fatal("probe must not be called")
		return 0, false, nil
	}

	_, _, err := Resolve(context.Background(), nil, probe, logger.NewTestLogger())
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeResolutionExhausted, errors.TypeOf(err))
}

func TestResolveContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	probe := func(ctx context.Context, candidate string) (int, bool, error) {
		return 0, false, nil
	}

	_, _, err := Resolve(ctx, []string{"a"}, probe, logger.NewTestLogger())
	assert.ErrorIs(t, err, context.Canceled)
}
