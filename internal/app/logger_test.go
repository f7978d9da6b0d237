package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newLogger(buf, &Config{LogFormat: "json", LogLevel: "warn", AppEnv: "staging"})

	logger.Info("dropped")
	logger.Warn("source fetch failed", slog.String("source_type", "quote"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "source fetch failed", entry["msg"])
	require.Equal(t, "ledger-recon", entry["service"])
	require.Equal(t, "staging", entry["env"])
	require.Equal(t, "quote", entry["source_type"])
	require.Contains(t, entry, "source")
}

func TestLogLevel(t *testing.T) {
	require.Equal(t, slog.LevelInfo, logLevel(nil))
	require.Equal(t, slog.LevelDebug, logLevel(&Config{LogLevel: "DEBUG"}))
	require.Equal(t, slog.LevelWarn, logLevel(&Config{LogLevel: "warning"}))
	require.Equal(t, slog.LevelError, logLevel(&Config{LogLevel: "error"}))
	require.Equal(t, slog.LevelInfo, logLevel(&Config{LogLevel: "verbose"}))
}
