// Package metrics provides Prometheus collectors for platescale components.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// EstimationMetrics covers the estimation pipeline and detector calls.
type EstimationMetrics struct {
	Estimates        *prometheus.CounterVec
	ItemFailures     *prometheus.CounterVec
	EstimateDuration prometheus.Histogram
	DetectorRequests *prometheus.CounterVec
	DetectorDuration prometheus.Histogram
}

// NewEstimationMetrics creates and registers the pipeline collectors.
func NewEstimationMetrics(registry *prometheus.Registry) (*EstimationMetrics, error) {
	m := &EstimationMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register estimation metrics: %w", err)
	}
	return m, nil
}

func (m *EstimationMetrics) initMetrics() {
	m.Estimates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "platescale_estimates_total",
		Help: "Total number of completed estimates by outcome tag.",
	}, []string{"outcome"})

	m.ItemFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "platescale_item_failures_total",
		Help: "Total number of food items that could not be estimated or enriched, by reason.",
	}, []string{"reason"})

	m.EstimateDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "platescale_estimate_duration_seconds",
		Help:    "End-to-end duration of an estimate in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	m.DetectorRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "platescale_detector_requests_total",
		Help: "Total number of detector calls by status.",
	}, []string{"status"})

	m.DetectorDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "platescale_detector_duration_seconds",
		Help:    "Duration of detector calls in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})
}

// RecordEstimate counts a finished estimate and its duration.
func (m *EstimationMetrics) RecordEstimate(outcome string, durationSeconds float64) {
	m.Estimates.WithLabelValues(outcome).Inc()
	m.EstimateDuration.Observe(durationSeconds)
}

// RecordItemFailure counts a per-item failure.
func (m *EstimationMetrics) RecordItemFailure(reason string) {
	m.ItemFailures.WithLabelValues(reason).Inc()
}

// RecordDetectorCall counts a detector call and its duration.
func (m *EstimationMetrics) RecordDetectorCall(status string, durationSeconds float64) {
	m.DetectorRequests.WithLabelValues(status).Inc()
	m.DetectorDuration.Observe(durationSeconds)
}

// Collect implements the prometheus.Collector interface.
func (m *EstimationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Estimates.Collect(ch)
	m.ItemFailures.Collect(ch)
	m.EstimateDuration.Collect(ch)
	m.DetectorRequests.Collect(ch)
	m.DetectorDuration.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *EstimationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Estimates.Describe(ch)
	m.ItemFailures.Describe(ch)
	m.EstimateDuration.Describe(ch)
	m.DetectorRequests.Describe(ch)
	m.DetectorDuration.Describe(ch)
}
