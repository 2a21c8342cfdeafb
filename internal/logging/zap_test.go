package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZapLogger_WritesJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewZapLogger("debug", &buf)
	require.NoError(t, err)

	log.With("component", "ratelimit").Warn(context.Background(), "rate limit exceeded", "ip", "10.0.0.1", "path", "/login")
	require.NoError(t, log.Sync())

	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"msg":"rate limit exceeded"`)
	assert.Contains(t, out, `"component":"ratelimit"`)
	assert.Contains(t, out, `"ip":"10.0.0.1"`)
}

func TestZapLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewZapLogger("error", &buf)
	require.NoError(t, err)

	log.Info(context.Background(), "hidden")
	assert.Empty(t, buf.String())
}

func TestZapLogger_BadLevel(t *testing.T) {
	_, err := NewZapLogger("loud", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestNew_SelectsBackend(t *testing.T) {
	var buf bytes.Buffer

	l, err := New("zap", "info", &buf)
	require.NoError(t, err)
	assert.IsType(t, &ZapLogger{}, l)

	l, err = New("slog", "warn", &buf)
	require.NoError(t, err)
	assert.IsType(t, &SlogLogger{}, l)

	l.Info(context.Background(), "filtered")
	assert.Empty(t, buf.String())

	_, err = New("logrus", "info", &buf)
	assert.Error(t, err)

	_, err = New("slog", "verbose", &buf)
	assert.Error(t, err)
}

func TestNop_DoesNothing(t *testing.T) {
	var l Logger = Nop{}
	l.With("a", 1).Error(context.Background(), "x")
}
