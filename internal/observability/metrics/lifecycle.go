package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// LifecycleMetrics contains all Prometheus metrics related to lifecycle
// sweeps.
type LifecycleMetrics struct {
	SweepsTotal       prometheus.Counter
	SweepDuration     prometheus.Histogram
	RecordsDeprecated prometheus.Counter
	RecordsDeleted    prometheus.Counter
	RecordsFlagged    prometheus.Counter
	LedgerPruned      prometheus.Counter
	registry          *prometheus.Registry
}

// NewLifecycleMetrics creates a new instance of LifecycleMetrics and
// registers it with the provided registry.
func NewLifecycleMetrics(registry *prometheus.Registry) (*LifecycleMetrics, error) {
	m := &LifecycleMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register lifecycle metrics: %w", err)
	}
	return m, nil
}

func (m *LifecycleMetrics) initMetrics() {
	m.SweepsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lifecycle_sweeps_total",
		Help: "Total number of lifecycle sweeps executed",
	})
	m.SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lifecycle_sweep_duration_seconds",
		Help:    "Duration of lifecycle sweeps in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
	m.RecordsDeprecated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lifecycle_records_deprecated_total",
		Help: "Total number of records deprecated by sweeps",
	})
	m.RecordsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lifecycle_records_deleted_total",
		Help: "Total number of records permanently deleted by sweeps",
	})
	m.RecordsFlagged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lifecycle_records_flagged_total",
		Help: "Total number of records flagged for review by sweeps",
	})
	m.LedgerPruned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lifecycle_ledger_pruned_total",
		Help: "Total number of ledger rows pruned by sweeps",
	})
}

// RecordSweep records the outcome of one sweep.
func (m *LifecycleMetrics) RecordSweep(deprecated, deleted, flagged int, pruned int64, seconds float64) {
	m.SweepsTotal.Inc()
	m.SweepDuration.Observe(seconds)
	m.RecordsDeprecated.Add(float64(deprecated))
	m.RecordsDeleted.Add(float64(deleted))
	m.RecordsFlagged.Add(float64(flagged))
	m.LedgerPruned.Add(float64(pruned))
}

// Describe implements the prometheus.Collector interface.
func (m *LifecycleMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.SweepsTotal.Desc()
	ch <- m.SweepDuration.Desc()
	ch <- m.RecordsDeprecated.Desc()
	ch <- m.RecordsDeleted.Desc()
	ch <- m.RecordsFlagged.Desc()
	ch <- m.LedgerPruned.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *LifecycleMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.SweepsTotal
	ch <- m.SweepDuration
	ch <- m.RecordsDeprecated
	ch <- m.RecordsDeleted
	ch <- m.RecordsFlagged
	ch <- m.LedgerPruned
}
