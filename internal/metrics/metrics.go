// Package metrics provides Prometheus metrics for the registry API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the registry. Each instance owns
// its registry so several servers (and tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Store metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec

	// Protocol metrics
	WritesTotal      *prometheus.CounterVec
	UndoPublishTotal *prometheus.CounterVec
	BootstrapsTotal  prometheus.Counter
	PublishedVersion prometheus.Gauge
	DraftVersion     prometheus.Gauge
}

// New creates and registers all registry metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)
	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "registry_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.StoreOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_store_operations_total",
			Help: "Total number of version store operations",
		},
		[]string{"backend", "operation", "status"},
	)
	m.StoreOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "registry_store_operation_duration_seconds",
			Help:    "Duration of version store operations in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"backend", "operation"},
	)

	m.WritesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_writes_total",
			Help: "Write attempts by mode and outcome (committed, conflict, write_failed, rejected)",
		},
		[]string{"mode", "outcome"},
	)
	m.UndoPublishTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_undo_publish_total",
			Help: "Undo-publish attempts by outcome",
		},
		[]string{"outcome"},
	)
	m.BootstrapsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_bootstraps_total",
			Help: "Number of times the meta document was created from seed documents",
		},
	)
	m.PublishedVersion = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_published_version",
			Help: "Numeric part of the current published version id",
		},
	)
	m.DraftVersion = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_draft_version",
			Help: "Numeric part of the current draft version id",
		},
	)

	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordStoreOperation records one version store operation.
func (m *Metrics) RecordStoreOperation(backend, operation, status string, duration time.Duration) {
	m.StoreOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	m.StoreOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// RecordWrite records the outcome of one write attempt.
func (m *Metrics) RecordWrite(mode, outcome string) {
	m.WritesTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordUndoPublish records the outcome of one undo-publish attempt.
func (m *Metrics) RecordUndoPublish(outcome string) {
	m.UndoPublishTotal.WithLabelValues(outcome).Inc()
}

// SetPointers updates the pointer gauges.
func (m *Metrics) SetPointers(published, draft int) {
	m.PublishedVersion.Set(float64(published))
	m.DraftVersion.Set(float64(draft))
}
