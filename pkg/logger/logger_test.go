package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igclient/pkg/config"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":    zerolog.DebugLevel,
		"info":     zerolog.InfoLevel,
		"warn":     zerolog.WarnLevel,
		"warning":  zerolog.WarnLevel,
		"ERROR":    zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
	}
	for input, want := range cases {
		got, err := parseLogLevel(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := parseLogLevel("loud")
	assert.Error(t, err)
}

func TestNewRejectsInvalidLevel(t *testing.T) {
	_, err := New(&config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestTestLoggerCapturesMessages(t *testing.T) {
	log := NewTestLogger()

	log.Info("starting up")
	log.WarnWithFields("slow response", map[string]interface{}{"ms": 1500})
	log.WithField("username", "alice").Error("login failed")

	messages := log.GetMessages()
	require.Len(t, messages, 3)

	assert.True(t, log.HasMessage("starting up"))
	assert.False(t, log.HasMessage("never logged"))

	warnings := log.GetMessagesByLevel("WARN")
	require.Len(t, warnings, 1)
	assert.Equal(t, 1500, warnings[0].Fields["ms"])

	errors := log.GetMessagesByLevel("ERROR")
	require.Len(t, errors, 1)
	assert.Equal(t, "alice", errors[0].Fields["username"])
}

func TestTestLoggerFieldChaining(t *testing.T) {
	log := NewTestLogger()

	log.WithField("a", 1).WithField("b", 2).Info("chained")

	messages := log.GetMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, 1, messages[0].Fields["a"])
	assert.Equal(t, 2, messages[0].Fields["b"])
}

func TestTestLoggerClear(t *testing.T) {
	log := NewTestLogger()
	log.Info("one")
	log.Clear()
	assert.Empty(t, log.GetMessages())
}
