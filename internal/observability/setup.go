package observability

import (
	"context"

	"github.com/honeynil/AssetMarketplace/internal/infrastructure/observability"
	"github.com/prometheus/client_golang/prometheus"
)

func Setup(ctx context.Context, serviceName, otlpEndpoint string) (func(context.Context) error, error) {
	observability.InitLogger()
	if err := observability.InitMetrics(prometheus.DefaultRegisterer); err != nil {
		return nil, err
	}
	return observability.InitTracing(ctx, serviceName, otlpEndpoint), nil
}
