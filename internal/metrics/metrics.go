// Package metrics exposes the dataset pipeline's Prometheus collectors.
//
// All collectors live on a private registry so tests can build as many
// Metrics values as they like. Every method is safe to call on a nil
// *Metrics, which lets library code record unconditionally.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache lookup results.
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupError = "error"
)

type Metrics struct {
	reg *prometheus.Registry

	rowsEmitted  *prometheus.CounterVec // synthgen_rows_emitted_total
	batches      prometheus.Counter     // synthgen_batches_total
	cacheLookups *prometheus.CounterVec // synthgen_cache_lookups_total
	cacheWrites  *prometheus.CounterVec // synthgen_cache_writes_total
	requests     *prometheus.CounterVec // synthgen_generation_requests_total
	jobDuration  *prometheus.SummaryVec // synthgen_job_duration_seconds
}

func New() (*Metrics, error) {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		rowsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synthgen_rows_emitted_total",
				Help: "Data rows written to clients, partitioned by output format.",
			},
			[]string{"format"},
		),
		batches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "synthgen_batches_total",
				Help: "Row batches produced by the batch generator.",
			},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synthgen_cache_lookups_total",
				Help: "Dataset cache lookups by result (hit, miss, error).",
			},
			[]string{"result"},
		),
		cacheWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synthgen_cache_writes_total",
				Help: "Dataset cache writes by status.",
			},
			[]string{"status"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synthgen_generation_requests_total",
				Help: "Dataset generation requests by final status.",
			},
			[]string{"status"},
		),
		jobDuration: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:       "synthgen_job_duration_seconds",
				Help:       "Wall time of dataset jobs in seconds, partitioned by outcome.",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			[]string{"outcome"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.rowsEmitted, m.batches, m.cacheLookups, m.cacheWrites, m.requests, m.jobDuration,
	} {
		if err := m.reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register collector: %w", err)
		}
	}
	return m, nil
}

// Registry returns the private registry backing m.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) RowsEmitted(format string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsEmitted.WithLabelValues(format).Add(float64(n))
}

func (m *Metrics) BatchGenerated() {
	if m == nil {
		return
	}
	m.batches.Inc()
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) CacheWrite(status string) {
	if m == nil {
		return
	}
	m.cacheWrites.WithLabelValues(status).Inc()
}

func (m *Metrics) GenerationRequest(status string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(status).Inc()
}

// JobFinished records how long a job took since start.
func (m *Metrics) JobFinished(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
