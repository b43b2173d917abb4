package logging

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	cfg := ConfigFromEnv()
	require.Equal(t, Config{Level: "debug", Format: "json"}, cfg)
}

func TestNewLoggerFromConfig(t *testing.T) {
	_, err := NewLoggerFromConfig(io.Discard, Config{Level: "info", Format: "console"})
	require.NoError(t, err)

	_, err = NewLoggerFromConfig(io.Discard, Config{Level: "loud", Format: "console"})
	require.ErrorContains(t, err, "invalid log level")

	_, err = NewLoggerFromConfig(io.Discard, Config{Level: "info", Format: "xml"})
	require.ErrorContains(t, err, "invalid log format")
}
