package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/honeynil/AssetMarketplace/internal/handler"
	"github.com/honeynil/AssetMarketplace/internal/infrastructure/auth"
	"github.com/honeynil/AssetMarketplace/internal/infrastructure/observability"
	"github.com/honeynil/AssetMarketplace/internal/infrastructure/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsMiddleware labels requests by route template so that ids in the
// path do not blow up label cardinality.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}

		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		status := fmt.Sprintf("%d", recorder.status)
		observability.HTTPRequests.WithLabelValues(r.Method, endpoint, status).Inc()
		observability.HTTPDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// SetupRouter serves /metrics from gatherer, which must hold the collectors
// registered by observability.InitMetrics.
func SetupRouter(h *handler.Handler, redisClient redis.RedisClient, jwtSecret string, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	h.RegisterPublicRoutes(r)

	protected := r.NewRoute().Subrouter()
	protected.Use(auth.AuthMiddleware(redisClient, jwtSecret))
	h.RegisterProtectedRoutes(protected)

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}
