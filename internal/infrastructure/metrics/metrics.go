// Package metrics provides Prometheus metrics for the docchat-api service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"jan-server/services/docchat-api/internal/domain/dispatch"
)

const (
	namespace = "jan"
	subsystem = "docchat_api"
)

var (
	// HTTPRequestsTotal counts handled HTTP requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// WorkerRequestsTotal counts outbound worker calls by operation and outcome.
	WorkerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "worker_requests_total",
			Help:      "Total number of document worker requests",
		},
		[]string{"operation", "outcome"},
	)

	// WorkerRequestDuration tracks worker call latency.
	WorkerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "worker_request_duration_seconds",
			Help:      "Document worker request latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"operation"},
	)

	// DispatchFailuresTotal counts fire-and-forget dispatches that failed.
	DispatchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatch_failures_total",
			Help:      "Total number of failed worker dispatches",
		},
		[]string{"kind"},
	)

	// DocumentTransitionsTotal counts applied document status transitions.
	DocumentTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "document_transitions_total",
			Help:      "Total number of document status transitions",
		},
		[]string{"from_status", "to_status"},
	)

	// UploadedBytes tracks the size of accepted uploads.
	UploadedBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "uploaded_bytes",
			Help:      "Size of stored uploads in bytes",
			Buckets:   []float64{1024, 10240, 102400, 1048576, 10485760},
		},
	)

	// WSConnections tracks open websocket connections.
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ws_connections",
			Help:      "Number of open websocket connections",
		},
	)

	// WSRooms tracks conversation rooms with at least one member.
	WSRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ws_rooms",
			Help:      "Number of conversation rooms with members",
		},
	)

	// WSDroppedFrames counts frames dropped because a client send buffer was full.
	WSDroppedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ws_dropped_frames_total",
			Help:      "Total number of websocket frames dropped for slow clients",
		},
	)

	// StaleDocumentsRequeued counts documents re-dispatched by the sweeper.
	StaleDocumentsRequeued = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stale_documents_requeued_total",
			Help:      "Total number of stale documents re-dispatched for ingestion",
		},
	)
)

// RecordHTTPRequest records one handled HTTP request.
func RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordWorkerCall records one outbound worker call.
func RecordWorkerCall(operation string, err error, elapsed time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	WorkerRequestsTotal.WithLabelValues(operation, outcome).Inc()
	WorkerRequestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordTransition records an applied document status change.
func RecordTransition(from, to string) {
	DocumentTransitionsTotal.WithLabelValues(from, to).Inc()
}

// DispatchSink counts dispatch failures before handing them to the next sink.
type DispatchSink struct {
	next dispatch.FailureSink
}

// NewDispatchSink wraps next with failure counting.
func NewDispatchSink(next dispatch.FailureSink) *DispatchSink {
	return &DispatchSink{next: next}
}

// DispatchFailed implements dispatch.FailureSink.
func (s *DispatchSink) DispatchFailed(kind dispatch.Kind, subject string, err error) {
	DispatchFailuresTotal.WithLabelValues(string(kind)).Inc()
	if s.next != nil {
		s.next.DispatchFailed(kind, subject, err)
	}
}
