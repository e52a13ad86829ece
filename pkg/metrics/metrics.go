// Package metrics exposes the Prometheus instruments of the report service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, which keeps engines usable without instrumentation.
type Metrics struct {
	// Registry owns these metrics and backs the /metrics endpoint.
	Registry *prometheus.Registry

	httpDuration      *prometheus.HistogramVec
	pageQueryDuration *prometheus.HistogramVec
	storeCalls        *prometheus.CounterVec
	fieldsDiscovered  *prometheus.CounterVec
	rowsProjected     prometheus.Counter
	breakerState      *prometheus.GaugeVec
}

// New creates a private registry holding the Go runtime and process
// collectors plus every service metric.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegistry(reg)
}

// NewWithRegistry registers the service metrics, and nothing else, in reg.
// Each call needs its own registry.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "facturo_http_request_duration_seconds",
				Help:    "HTTP request latency by route and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		pageQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "facturo_page_query_duration_seconds",
				Help:    "Duration of paginated document queries.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		storeCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "facturo_store_calls_total",
				Help: "Document store calls by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		fieldsDiscovered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "facturo_fields_discovered_total",
				Help: "Fields added to registries by discovery.",
			},
			[]string{"collection"},
		),
		rowsProjected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "facturo_rows_projected_total",
				Help: "Report rows produced by flattening.",
			},
		),
		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "facturo_circuit_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open).",
			},
			[]string{"name"},
		),
	}
}

// ObserveHTTPRequest records one served request under its route pattern.
func (m *Metrics) ObserveHTTPRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

// ObservePageQuery records how long one GetPage call took.
func (m *Metrics) ObservePageQuery(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.pageQueryDuration.WithLabelValues(outcome(err)).Observe(d.Seconds())
}

// IncStoreCall counts a store call.
func (m *Metrics) IncStoreCall(operation string, err error) {
	if m == nil {
		return
	}
	m.storeCalls.WithLabelValues(operation, outcome(err)).Inc()
}

// AddFieldsDiscovered counts fields merged into a collection registry.
func (m *Metrics) AddFieldsDiscovered(collection string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.fieldsDiscovered.WithLabelValues(collection).Add(float64(n))
}

// AddRowsProjected counts flattened rows.
func (m *Metrics) AddRowsProjected(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsProjected.Add(float64(n))
}

// SetBreakerState publishes a breaker state transition.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
