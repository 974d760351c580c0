package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
		"fatal":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for raw, want := range tests {
		assert.Equal(t, want, ParseLevel(raw), raw)
	}
}

func TestWithFieldAndError(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := FromCore(core)

	boom := errors.New("redis: connection refused")
	base.WithError(boom).WithField("scope", "events").Warn("rate limiter unavailable")
	base.Info("untouched")

	require.Equal(t, 2, logs.Len())
	first := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, first.Level)
	fields := first.ContextMap()
	assert.Equal(t, "events", fields["scope"])
	assert.Equal(t, boom.Error(), fields["error"])

	assert.Empty(t, logs.All()[1].ContextMap())
}

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("warn", &buf)

	log.Info("dropped")
	log.Warn("kept", zap.Int("status", 429))
	require.NoError(t, log.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, serviceName, entry["service"])
	assert.EqualValues(t, 429, entry["status"])
	assert.Contains(t, entry, "timestamp")
	assert.Contains(t, entry, "caller")
}
