// Package metrics provides Prometheus metrics for the stash server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stash_uploads_total",
			Help: "Uploads bound to a column, by field kind and result",
		},
		[]string{"kind", "result"},
	)

	bytesStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stash_bytes_stored_total",
			Help: "Bytes accepted into storage",
		},
	)

	backendOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stash_backend_operation_duration_seconds",
			Help:    "Storage backend operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	backendOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stash_backend_operations_total",
			Help: "Storage backend operations",
		},
		[]string{"backend", "operation", "status"},
	)

	rateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stash_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"scope", "bucket"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stash_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stash_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Upload results.
const (
	ResultStored   = "stored"
	ResultEmpty    = "empty"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordUpload counts one bind attempt for a column of the given kind.
func RecordUpload(kind, result string) {
	uploadsTotal.WithLabelValues(kind, result).Inc()
}

func RecordBytesStored(n int64) {
	if n > 0 {
		bytesStored.Add(float64(n))
	}
}

// RecordBackendOp records a storage backend call.
func RecordBackendOp(backend, op string, d time.Duration, err error) {
	backendOpDuration.WithLabelValues(backend, op).Observe(d.Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	backendOpsTotal.WithLabelValues(backend, op, status).Inc()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route, status string, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func RecordRateLimited(scope, bucket string) {
	rateLimitedTotal.WithLabelValues(scope, bucket).Inc()
}
