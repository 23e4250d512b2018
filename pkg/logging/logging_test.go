package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestNewLoggerFromConfig_DiscardOutput(t *testing.T) {
	logger := NewLoggerFromConfig(&Config{
		Level:  "warn",
		Format: "auto",
		Output: "discard",
		Fields: map[string]any{"service": "tally"},
	})
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
}

func TestNewLoggerFromConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tally.log")
	logger := NewLoggerFromConfig(&Config{Level: "info", Format: "json", Output: path})
	logger.Info().Dur("delay", time.Second).Msg("reconnecting")

	data, err := readFile(path)
	require.NoError(t, err)
	assert.Contains(t, data, `"message":"reconnecting"`)
}

func TestContextLogger(t *testing.T) {
	tl := NewTestLogger(t)

	ctx := WithLogger(context.Background(), tl.Logger)
	ctx = WithComponent(ctx, "store")
	ctx = WithFields(ctx, map[string]any{"key": "tally.records.v1", "records": 3})

	FromContext(ctx).Info().Msg("slot restored")

	entries := tl.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "store", entries[0]["component"])
	assert.Equal(t, "tally.records.v1", entries[0]["key"])
	assert.EqualValues(t, 3, entries[0]["records"])
	assert.Equal(t, "slot restored", entries[0]["message"])
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
	assert.NotNil(t, Ctx(context.Background()))
}

func TestComponent(t *testing.T) {
	tl := NewTestLogger(t)
	Component(tl.Logger, "channel").Warn().Msg("reconnecting")
	tl.AssertContains(t, `"component":"channel"`)

	assert.NotNil(t, Component(nil, "sync"))
}

func TestRedirect(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&bytes.Buffer{}).Level(zerolog.WarnLevel)

	logger := Redirect(&base, &buf)
	logger.Info().Msg("dropped")
	logger.Warn().Msg("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"message":"kept"`)
	assert.Equal(t, zerolog.InfoLevel, Redirect(nil, &buf).GetLevel())
}

func TestCaptureLoggingForTest(t *testing.T) {
	tl := CaptureLoggingForTest(t)
	Default().Warn().Str("endpoint", "/api/entries").Msg("snapshot unavailable")
	assert.True(t, tl.Contains("snapshot unavailable"))
	assert.Equal(t, 1, tl.Count())
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}
