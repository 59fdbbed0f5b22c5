// Package metrics exposes Prometheus counters and histograms for the pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation names used as the "op" label.
const (
	OpIngest = "ingest"
	OpAsk    = "ask"
	OpClear  = "clear"
	OpDelete = "delete"
)

const namespace = "ragdoc"

// Metrics owns a private registry so several instances (tests, servers) never collide.
type Metrics struct {
	registry *prometheus.Registry

	ingestChunks prometheus.Counter
	operations   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// New creates the collectors and registers them with a fresh registry, along
// with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ingestChunks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_chunks_total",
			Help:      "Total number of chunks written to the vector collection",
		}),
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of pipeline operations by outcome",
		}, []string{"op", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of pipeline operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

// Observe records one finished operation. A nil receiver is a no-op.
func (m *Metrics) Observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(op, status).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// AddIngestedChunks counts chunks written by an ingest.
func (m *Metrics) AddIngestedChunks(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ingestChunks.Add(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
