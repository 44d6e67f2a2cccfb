// Package metrics provides Prometheus metrics for the picker gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Gateway route metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picker_http_requests_total",
			Help: "Total number of HTTP requests served by the gateway",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "picker_http_request_duration_seconds",
			Help:    "Gateway HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Backend call metrics
	backendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picker_backend_requests_total",
			Help: "Total number of requests sent to the backend",
		},
		[]string{"op", "status"},
	)

	backendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "picker_backend_request_duration_seconds",
			Help:    "Backend request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Session metrics
	sessionCreationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picker_session_creations_total",
			Help: "Total backend session bootstrap attempts",
		},
		[]string{"result"},
	)

	// Status merge metrics
	statusMergeFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "picker_status_merge_failures_total",
			Help: "Listings returned without knowledge-base status because the merge failed",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records a gateway HTTP request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordBackendRequest records one backend call. A status of 0 means the call never got a response.
func RecordBackendRequest(op string, status int, duration time.Duration) {
	label := strconv.Itoa(status)
	if status == 0 {
		label = "error"
	}
	backendRequestsTotal.WithLabelValues(op, label).Inc()
	backendRequestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordSessionCreation records a session bootstrap attempt.
func RecordSessionCreation(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	sessionCreationsTotal.WithLabelValues(result).Inc()
}

// RecordStatusMergeFailure records a listing that degraded to no status.
func RecordStatusMergeFailure() {
	statusMergeFailuresTotal.Inc()
}
