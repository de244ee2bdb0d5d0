package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Счётчик вызовов методов репозитория
	RepositoryCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_calls_total",
			Help: "Total number of repository method calls",
		},
		[]string{"method", "status"},
	)

	RepositoryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repository_duration_seconds",
			Help:    "Duration of repository method calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	TradesAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "marketplace_trades_accepted_total",
			Help: "Total number of accepted purchase requests",
		},
	)
)

// InitMetrics registers the collectors on reg. The HTTP exposition lives on
// the API router.
func InitMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{RepositoryCalls, RepositoryDuration, HTTPRequests, HTTPDuration, TradesAccepted} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
