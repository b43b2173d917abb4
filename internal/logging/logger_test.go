package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContextWithLogger(t *testing.T) {
	testLogger := NewDiscardLogger()
	ctx := ContextWithLogger(context.Background(), testLogger)
	require.Same(t, testLogger, ctx.Value(loggerContextKey{}))
}

func TestLoggerFromContext(t *testing.T) {
	// This should give us the global logger if one was never explicitly added
	// to the context.
	logger := LoggerFromContext(context.Background())
	require.Same(t, globalLogger, logger)

	testLogger := NewDiscardLogger()
	ctx := context.WithValue(context.Background(), loggerContextKey{}, testLogger)
	require.Same(t, testLogger, LoggerFromContext(ctx))
}

func TestLoggerJSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLoggerWithOutput(buf, DebugLevel, JSONFormat).WithValues("image", "backstage")

	logger.Trace("dropped")
	require.Zero(t, buf.Len())

	logger.Warn("dockerfile not found", "path", "apps/backstage/Dockerfile")
	entry := map[string]any{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warning", entry["level"])
	require.Equal(t, "dockerfile not found", entry["msg"])
	require.Equal(t, "backstage", entry["image"])
	require.Equal(t, "apps/backstage/Dockerfile", entry["path"])

	buf.Reset()
	logger.Error(errors.New("boom"), "write failed", "dangling")
	entry = map[string]any{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "boom", entry["error"])
	require.Equal(t, "(MISSING)", entry["dangling"])
}
