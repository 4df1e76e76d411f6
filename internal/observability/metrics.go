// Package observability wires the Prometheus registry shared by all components.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/platescale/platescale/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry   *prometheus.Registry
	Estimation *metrics.EstimationMetrics
	Nutrition  *metrics.NutritionMetrics
	MQTT       *metrics.MQTTMetrics
}

// NewMetrics creates a registry with every collector registered, plus the
// Go runtime and process collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	estimation, err := metrics.NewEstimationMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create estimation metrics: %w", err)
	}
	nutrition, err := metrics.NewNutritionMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create nutrition metrics: %w", err)
	}
	mqtt, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	return &Metrics{
		registry:   registry,
		Estimation: estimation,
		Nutrition:  nutrition,
		MQTT:       mqtt,
	}, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
