package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m), "log line: %s", buf.String())
	return m
}

func TestNewLogger_JSONDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "", LogFormatJSON)
	require.NoError(t, err)

	logger.Debug().Msg("hidden")
	assert.Zero(t, buf.Len(), "debug must be filtered at the default info level")

	logger.Info().Str("project_id", "p1").Msg("hello")
	line := decodeLine(t, &buf)
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "dp-gcp", line["service"])
	assert.Equal(t, "p1", line["project_id"])
	assert.Contains(t, line, "time")
	assert.NotContains(t, line, "trace_id")
}

func TestNewLogger_LevelIsCaseInsensitive(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "DEBUG", LogFormatJSON)
	require.NoError(t, err)

	logger.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestNewLogger_RejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(&bytes.Buffer{}, "verbose", LogFormatJSON)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verbose")
}

func TestNewLogger_RejectsUnknownFormat(t *testing.T) {
	_, err := NewLogger(&bytes.Buffer{}, "info", LogFormat("xml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")
}

func TestNewLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "info", LogFormatConsole)
	require.NoError(t, err)

	logger.Warn().Msg("careful")
	assert.Contains(t, buf.String(), "careful")
	assert.False(t, json.Valid(buf.Bytes()), "console output should not be JSON")
}

func TestNewLogger_StampsTraceIDs(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "info", LogFormatJSON)
	require.NoError(t, err)

	logger.Info().Ctx(ctx).Msg("traced")
	line := decodeLine(t, &buf)
	assert.Equal(t, span.SpanContext().TraceID().String(), line["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), line["span_id"])
}
