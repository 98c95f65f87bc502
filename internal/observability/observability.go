// Package observability provides metrics and monitoring capabilities for the
// engine.
package observability

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tkoskela/patternmind-go/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	Detector  *metrics.DetectorMetrics
	Lifecycle *metrics.LifecycleMetrics
	MQTT      *metrics.MQTTMetrics
	Run       *metrics.RunMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric
// collectors on a private registry.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	detectorMetrics, err := metrics.NewDetectorMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector metrics: %w", err)
	}
	lifecycleMetrics, err := metrics.NewLifecycleMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create lifecycle metrics: %w", err)
	}
	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}
	runMetrics, err := metrics.NewRunMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create run metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		Detector:  detectorMetrics,
		Lifecycle: lifecycleMetrics,
		MQTT:      mqttMetrics,
		Run:       runMetrics,
	}, nil
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
