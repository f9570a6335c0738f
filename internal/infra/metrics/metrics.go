// Package metrics exposes Prometheus instrumentation for log downloads.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector of one process. All Record methods are
// safe on a nil receiver so callers may run without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	// page fetches
	PagesFetched *prometheus.CounterVec
	FetchErrors  *prometheus.CounterVec
	FetchLatency prometheus.Histogram
	BytesWritten *prometheus.CounterVec

	// executor jobs
	JobsRunning prometheus.Gauge
	JobsTotal   *prometheus.CounterVec

	// whole runs
	RunsTotal *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PagesFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_fetched_total",
				Help:      "Total log pages fetched by stream",
			},
			[]string{"stream"},
		),
		FetchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_errors_total",
				Help:      "Total failed page fetches by stream",
			},
			[]string{"stream"},
		),
		FetchLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_latency_seconds",
				Help:      "Page fetch latency in seconds",
				Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		BytesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_written_total",
				Help:      "Total log bytes written to disk by stream",
			},
			[]string{"stream"},
		),
		JobsRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "jobs_running",
				Help:      "Number of executor jobs currently downloading",
			},
		),
		JobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Total executor jobs by status",
			},
			[]string{"status"},
		),
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total download runs by status",
			},
			[]string{"status"},
		),
	}
}

// RecordPage records one successful page fetch.
func (m *Metrics) RecordPage(stream string, latency time.Duration) {
	if m == nil {
		return
	}
	m.PagesFetched.WithLabelValues(stream).Inc()
	m.FetchLatency.Observe(latency.Seconds())
}

// RecordFetchError records one failed page fetch.
func (m *Metrics) RecordFetchError(stream string) {
	if m == nil {
		return
	}
	m.FetchErrors.WithLabelValues(stream).Inc()
}

// RecordWrite records bytes appended to a destination file.
func (m *Metrics) RecordWrite(stream string, n int) {
	if m == nil {
		return
	}
	m.BytesWritten.WithLabelValues(stream).Add(float64(n))
}

func (m *Metrics) RecordJobStart() {
	if m == nil {
		return
	}
	m.JobsRunning.Inc()
}

func (m *Metrics) RecordJobComplete(success bool) {
	if m == nil {
		return
	}
	m.JobsRunning.Dec()
	m.JobsTotal.WithLabelValues(outcome(success)).Inc()
}

// RecordRun records the terminal status of a run.
func (m *Metrics) RecordRun(status string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
}

// Handler serves this registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
