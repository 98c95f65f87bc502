package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// RunMetrics contains Prometheus metrics covering whole orchestrator passes.
type RunMetrics struct {
	RunsTotal      *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	RecordsCreated prometheus.Counter
	RecordsUpdated prometheus.Counter
	registry       *prometheus.Registry
}

// NewRunMetrics creates a new instance of RunMetrics and registers it with
// the provided registry.
func NewRunMetrics(registry *prometheus.Registry) (*RunMetrics, error) {
	m := &RunMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register run metrics: %w", err)
	}
	return m, nil
}

func (m *RunMetrics) initMetrics() {
	m.RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_runs_total",
		Help: "Total number of orchestrator passes by result",
	}, []string{"result"})
	m.RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orchestrator_run_duration_seconds",
		Help:    "Duration of orchestrator passes in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})
	m.RecordsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_records_created_total",
		Help: "Total number of records created by orchestrator passes",
	})
	m.RecordsUpdated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_records_updated_total",
		Help: "Total number of records updated by orchestrator passes",
	})
}

// RecordRun records one finished orchestrator pass.
func (m *RunMetrics) RecordRun(result string, created, updated int, seconds float64) {
	m.RunsTotal.WithLabelValues(result).Inc()
	m.RunDuration.Observe(seconds)
	m.RecordsCreated.Add(float64(created))
	m.RecordsUpdated.Add(float64(updated))
}

// Describe implements the prometheus.Collector interface.
func (m *RunMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.RunsTotal.Describe(ch)
	ch <- m.RunDuration.Desc()
	ch <- m.RecordsCreated.Desc()
	ch <- m.RecordsUpdated.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *RunMetrics) Collect(ch chan<- prometheus.Metric) {
	m.RunsTotal.Collect(ch)
	ch <- m.RunDuration
	ch <- m.RecordsCreated
	ch <- m.RecordsUpdated
}
