// Package metrics provides custom Prometheus metrics for the engine's
// components.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DetectorMetrics contains all Prometheus metrics related to detector runs.
type DetectorMetrics struct {
	RunsTotal       *prometheus.CounterVec
	CandidatesFound *prometheus.CounterVec
	ProcessingTime  *prometheus.HistogramVec
	HealthStatus    *prometheus.GaugeVec
	registry        *prometheus.Registry
}

// NewDetectorMetrics creates a new instance of DetectorMetrics and registers
// it with the provided registry.
func NewDetectorMetrics(registry *prometheus.Registry) (*DetectorMetrics, error) {
	m := &DetectorMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register detector metrics: %w", err)
	}
	return m, nil
}

func (m *DetectorMetrics) initMetrics() {
	m.RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "detector_runs_total",
		Help: "Total number of detector invocations by result",
	}, []string{"detector", "result"})

	m.CandidatesFound = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "detector_candidates_total",
		Help: "Total number of candidates emitted per detector",
	}, []string{"detector"})

	m.ProcessingTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "detector_processing_seconds",
		Help:    "Detector processing time in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"detector"})

	m.HealthStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "detector_health_status",
		Help: "Detector health (0 healthy, 1 degraded, 2 failing)",
	}, []string{"detector"})
}

// RecordRun records one finished detector invocation.
func (m *DetectorMetrics) RecordRun(detector, result string, candidates int, seconds float64) {
	m.RunsTotal.WithLabelValues(detector, result).Inc()
	m.CandidatesFound.WithLabelValues(detector).Add(float64(candidates))
	m.ProcessingTime.WithLabelValues(detector).Observe(seconds)
}

// SetHealthStatus publishes the detector's current health classification.
func (m *DetectorMetrics) SetHealthStatus(detector, status string) {
	var v float64
	switch status {
	case "degraded":
		v = 1
	case "failing":
		v = 2
	}
	m.HealthStatus.WithLabelValues(detector).Set(v)
}

// Describe implements the prometheus.Collector interface.
func (m *DetectorMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.RunsTotal.Describe(ch)
	m.CandidatesFound.Describe(ch)
	m.ProcessingTime.Describe(ch)
	m.HealthStatus.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *DetectorMetrics) Collect(ch chan<- prometheus.Metric) {
	m.RunsTotal.Collect(ch)
	m.CandidatesFound.Collect(ch)
	m.ProcessingTime.Collect(ch)
	m.HealthStatus.Collect(ch)
}
