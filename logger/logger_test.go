package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	require := require.New(t)

	tests := []struct {
		name  string
		level LogLevel
		ok    bool
	}{
		{"debug", DebugLevel, true},
		{"INFO", InfoLevel, true},
		{"warning", WarnLevel, true},
		{"error", ErrorLevel, true},
		{"fatal", FatalLevel, true},
		{"verbose", InfoLevel, false},
	}

	for _, tt := range tests {
		level, ok := ParseLevel(tt.name)
		require.Equal(tt.level, level, tt.name)
		require.Equal(tt.ok, ok, tt.name)
	}

	require.Equal("warn", WarnLevel.String())
}

func TestSlogLogger(t *testing.T) {
	require := require.New(t)
	t.Setenv("ENV", "")

	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false)
	require.Equal(InfoLevel, l.Level())

	l.Debug("hidden")
	require.Zero(buf.Len())

	l.With("session", "abc").Info("opened", "addr", "127.0.0.1:5025")

	var rec map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &rec))
	require.Equal("opened", rec["msg"])
	require.Equal("abc", rec["session"])
	require.Equal("127.0.0.1:5025", rec["addr"])
	require.Contains(rec, "ts")

	buf.Reset()
	l.SetLevel(DebugLevel)
	require.Equal(DebugLevel, l.Level())
	l.Debug("visible")
	require.Contains(buf.String(), "visible")
}

func TestZapLogger(t *testing.T) {
	require := require.New(t)

	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZap(zap.New(core))
	require.Equal(DebugLevel, l.Level())

	l.SetLevel(WarnLevel)
	l.Info("dropped")
	l.With("session", "abc").Warn("stale reply discarded", "bytes", 12)

	entries := logs.All()
	require.Len(entries, 1)
	require.Equal("stale reply discarded", entries[0].Message)
	fields := entries[0].ContextMap()
	require.Equal("abc", fields["session"])
	require.EqualValues(12, fields["bytes"])
}

func TestZerologLogger(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	l := NewZerolog(zerolog.New(&buf))
	require.Equal(DebugLevel, l.Level())

	l.With("session", "abc").Error("faulted", "reason", "reset by peer")

	var rec map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &rec))
	require.Equal("faulted", rec["message"])
	require.Equal("error", rec["level"])
	require.Equal("abc", rec["session"])
	require.Equal("reset by peer", rec["reason"])

	buf.Reset()
	l.SetLevel(ErrorLevel)
	l.Warn("dropped")
	require.Zero(buf.Len())
}

func TestMockLogger(t *testing.T) {
	m := NewMockLogger().AllowAll()
	m.Warn("discarded", "bytes", 3)
	m.AssertCalled(t, "Warn", "discarded", []any{"bytes", 3})
}
