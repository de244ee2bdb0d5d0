package observability

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

func InitLogger() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

// WithContext returns the default logger enriched with the trace id of the
// span carried by ctx, if any.
func WithContext(ctx context.Context, attrs ...any) *slog.Logger {
	logger := slog.With(attrs...)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With("trace_id", sc.TraceID().String())
	}
	return logger
}
