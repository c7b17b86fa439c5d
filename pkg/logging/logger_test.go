package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musallago/pkg/config"
)

func TestInit(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	tempDir := t.TempDir()
	serverLog := filepath.Join(tempDir, "server.log")
	requestLog := filepath.Join(tempDir, "requests.log")

	// A log from a previous run gets rotated to .old.
	require.NoError(t, os.WriteFile(serverLog, []byte("previous run\n"), 0o644))

	cfg := &config.LogConfig{
		Server:   config.LogSettings{Path: serverLog, Level: "DEBUG"},
		Requests: config.LogSettings{Path: requestLog, Level: "INFO"},
	}

	cleanup, err := Init(cfg)
	require.NoError(t, err)

	slog.Info("Cache initialised", "entries", 3)
	RequestLogger.Info("Network Request", "provider", "supabase")
	cleanup()

	old, err := os.ReadFile(serverLog + ".old")
	require.NoError(t, err)
	assert.Equal(t, "previous run\n", string(old))

	server, err := os.ReadFile(serverLog)
	require.NoError(t, err)
	assert.Contains(t, string(server), "Cache initialised")
	assert.NotContains(t, string(server), "Network Request")

	requests, err := os.ReadFile(requestLog)
	require.NoError(t, err)
	assert.Contains(t, string(requests), "provider=supabase")

	assert.Contains(t, Recent.Last(), "Cache initialised")
	assert.False(t, strings.HasSuffix(Recent.Last(), "\n"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"TRACE", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "ParseLevel(%q)", tt.in)
	}
}

func TestTrace(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	EnableTrace = false
	Trace(logger, "hidden")
	assert.Empty(t, buf.String())

	EnableTrace = true
	defer func() { EnableTrace = false }()
	Trace(logger, "shown", "key", "cached_places")
	assert.Contains(t, buf.String(), "shown")
}
