// Package metrics exports benchmark timings as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"blobbench/internal/bench"
)

const namespace = "blobbench"

// Metrics records every benchmark run it observes.
type Metrics struct {
	registry *prometheus.Registry

	Duration         *prometheus.HistogramVec
	Runs             *prometheus.CounterVec
	RelationalErrors *prometheus.CounterVec
	PayloadBytes     *prometheus.HistogramVec
}

var _ bench.Observer = (*Metrics)(nil)

// New creates the collectors on a private registry together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Wall-clock latency of a benchmarked call, per backend and operation.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 18),
		}, []string{"backend", "operation"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total benchmark runs, per operation and winning backend.",
		}, []string{"operation", "winner"}),
		RelationalErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relational_errors_total",
			Help:      "Total runs whose relational path failed, per operation.",
		}, []string{"operation"}),
		PayloadBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payload_bytes",
			Help:      "Size of benchmarked payloads.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		}, []string{"operation"}),
	}

	m.registry.MustRegister(
		m.Duration,
		m.Runs,
		m.RelationalErrors,
		m.PayloadBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func label(b bench.Backend) string {
	if b == bench.ObjectStore {
		return "object"
	}
	return "relational"
}

func (m *Metrics) ObserveRun(res bench.Result) {
	op := res.Operation.String()

	m.Duration.WithLabelValues(label(bench.ObjectStore), op).Observe(res.Object.Elapsed.Seconds())
	if res.RelationalFailed() {
		m.RelationalErrors.WithLabelValues(op).Inc()
	} else {
		m.Duration.WithLabelValues(label(bench.RelationalStore), op).Observe(res.Relational.Elapsed.Seconds())
	}

	m.Runs.WithLabelValues(op, label(res.Winner())).Inc()
	m.PayloadBytes.WithLabelValues(op).Observe(float64(res.Size))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
