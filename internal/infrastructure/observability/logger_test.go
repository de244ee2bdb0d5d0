package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestWithContext_AddsTraceID(t *testing.T) {
	buf := captureLogs(t)

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	WithContext(ctx, "asset_id", "a1").Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "a1", entry["asset_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
}

func TestWithContext_NoSpan(t *testing.T) {
	buf := captureLogs(t)

	WithContext(context.Background()).Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "trace_id")
}

func TestInitMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, InitMetrics(reg))
	assert.Error(t, InitMetrics(reg), "collectors register once")

	HTTPRequests.WithLabelValues("GET", "/assets/{id}", "200").Inc()
	RepositoryCalls.WithLabelValues("GetAsset", "success").Inc()
	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "http_requests_total")
	assert.Contains(t, names, "repository_calls_total")
}

func TestInitTracing_Disabled(t *testing.T) {
	shutdown := InitTracing(context.Background(), "test", "")
	assert.NoError(t, shutdown(context.Background()))
}
