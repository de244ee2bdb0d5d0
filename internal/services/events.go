package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/honeynil/AssetMarketplace/internal/infrastructure/kafka"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// emit publishes an event. Delivery failures are logged only: the database
// write the event describes has already been committed.
func emit(ctx context.Context, producer kafka.KafkaProducer, topic, key string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal Kafka event", "topic", topic, "key", key, "error", err)
		return
	}
	if err := producer.Send(ctx, topic, key, payload); err != nil {
		slog.Error("failed to send Kafka event", "topic", topic, "key", key, "error", err)
	}
}

func recordError(span trace.Span, err error, msg string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return err
}
