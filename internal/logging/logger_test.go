package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldbell/mango-v4-go/internal/config"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range cases {
		got, err := parseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseLevel("trace")
	require.Error(t, err)
}

func TestJSONConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := newWithConsole(&buf, "crank", config.LogConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	defer closeFn()

	logger.Debug("tick", "market", "SOL-PERP")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "crank", line["service"])
	assert.Equal(t, "tick", line["msg"])
	assert.Equal(t, "SOL-PERP", line["market"])
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := newWithConsole(&buf, "api", config.LogConfig{Level: "warn"})
	require.NoError(t, err)

	logger.Info("dropped")
	assert.Zero(t, buf.Len())
	logger.Warn("kept")
	assert.Contains(t, buf.String(), "msg=kept")
}

func TestFileAndConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "nested", "svc.log")
	logger, closeFn, err := newWithConsole(&buf, "svc", config.LogConfig{
		Output:    "both",
		FilePath:  path,
		MaxSizeMB: 1,
	})
	require.NoError(t, err)

	logger.Info("hello")
	require.NoError(t, closeFn())

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "msg=hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestInvalidOptions(t *testing.T) {
	_, _, err := New("svc", config.LogConfig{Format: "xml"})
	require.Error(t, err)

	_, _, err = New("svc", config.LogConfig{Output: "syslog"})
	require.Error(t, err)
}
