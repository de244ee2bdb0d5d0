package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/honeynil/AssetMarketplace/internal/infrastructure/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// instrument starts a span and returns a func that records the call outcome
// in the span and in the repository metrics. Call it exactly once.
func instrument(ctx context.Context, tracerName, method string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, method, trace.WithAttributes(attrs...))
	start := time.Now()
	return ctx, func(err error) {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues(method, status).Inc()
		observability.RepositoryDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		span.End()
	}
}

func rollback(tx *sql.Tx, method string, err error) error {
	if rbErr := tx.Rollback(); rbErr != nil {
		slog.Error("rollback failed", "method", method, "error", rbErr)
		return fmt.Errorf("rollback failed: %v; original error: %w", rbErr, err)
	}
	return err
}
