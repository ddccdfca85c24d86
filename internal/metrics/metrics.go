// Package metrics provides Prometheus metrics for the event pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	// Event submission metrics
	EventsSubmittedTotal *prometheus.CounterVec
	EventsRejectedTotal  *prometheus.CounterVec

	// Task metrics
	TasksCompletedTotal *prometheus.CounterVec
	TaskDuration        *prometheus.HistogramVec
	TasksInFlight       prometheus.Gauge

	// Pipeline metrics
	ChunksEmbeddedTotal prometheus.Counter
	ChunksFailedTotal   prometheus.Counter
	DocumentsReadyTotal prometheus.Counter

	// Query metrics
	SearchQueriesTotal prometheus.Counter
	QAQueriesTotal     prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ServerStartTime time.Time
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	m := &Metrics{ServerStartTime: time.Now()}

	m.EventsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doculens_events_submitted_total",
			Help: "Total accepted events by type",
		},
		[]string{"event_type"},
	)
	m.EventsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doculens_events_rejected_total",
			Help: "Total synchronously rejected submissions by reason",
		},
		[]string{"reason"},
	)

	m.TasksCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doculens_tasks_completed_total",
			Help: "Total settled tasks by event type and outcome",
		},
		[]string{"event_type", "status"},
	)
	m.TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "doculens_task_duration_seconds",
			Help:    "Task execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"event_type"},
	)
	m.TasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "doculens_tasks_in_flight",
			Help: "Tasks currently being executed by workers",
		},
	)

	m.ChunksEmbeddedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "doculens_chunks_embedded_total",
			Help: "Total chunks embedded and persisted",
		},
	)
	m.ChunksFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "doculens_chunks_failed_total",
			Help: "Total chunks whose embedding retries were exhausted",
		},
	)
	m.DocumentsReadyTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "doculens_documents_ready_total",
			Help: "Total documents that reached the ready state",
		},
	)

	m.SearchQueriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "doculens_search_queries_total",
			Help: "Total executed search queries",
		},
	)
	m.QAQueriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "doculens_qa_queries_total",
			Help: "Total executed QA queries",
		},
	)

	m.HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doculens_http_requests_total",
			Help: "Total HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)
	m.HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "doculens_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	return m
}
