package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"method", "path"},
	)

	// OutboxDispatched counts messages resolved by the dispatch job, by outcome.
	OutboxDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_messages_processed_total",
			Help: "Outbox messages resolved by the dispatch job",
		},
		[]string{"outcome"},
	)

	OutboxPublishAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_publish_attempts_total",
			Help: "Publish attempts made by the dispatch job",
		},
	)

	OutboxRunsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_runs_skipped_total",
			Help: "Dispatch runs skipped because another run held the lock",
		},
	)

	// MatchingOutcomes counts delivery person selections: matched, none, reserved.
	MatchingOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_outcomes_total",
			Help: "Delivery person matching results",
		},
		[]string{"outcome"},
	)
)

const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomePoison    = "poison"
)

// NewMetricsMiddleware records request count and latency under the chi route pattern.
func NewMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, path).Observe(float64(time.Since(start).Milliseconds()))
	})
}
