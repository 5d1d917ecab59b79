package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" DEBUG ": slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}

	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
}

func TestNewStructuredLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewStructuredLogger(Options{Module: "campusweb", Version: "v1.2.3", Level: "warn", Writer: &buf})

	l.Info("dropped")
	l.Warn("kept", "key", "value")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "campusweb", rec["module"])
	assert.Equal(t, "v1.2.3", rec["version"])
	assert.Equal(t, "value", rec["key"])
	assert.NotContains(t, rec, "source")
}

func TestNewStructuredLoggerTextDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewStructuredLogger(Options{Module: "campusweb", Level: "debug", Format: "TEXT", Writer: &buf})

	l.Debug("hello")
	out := buf.String()
	assert.Contains(t, out, "msg=hello")
	assert.Contains(t, out, "module=campusweb")
	assert.Contains(t, out, "source=")
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvVarLogLevel, "error")
	t.Setenv(EnvVarLogFormat, "text")

	o := FromEnv("m", "v")
	assert.Equal(t, Options{Module: "m", Version: "v", Level: "error", Format: "text"}, o)
}

func TestSetDefaultLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetDefaultLogger(Options{Module: "campusweb", Writer: &buf})
	NewLogLogger(slog.LevelError).Print("from std log")

	assert.Contains(t, buf.String(), "from std log")
}
