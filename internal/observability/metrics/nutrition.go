package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// NutritionMetrics covers the nutrition database client.
type NutritionMetrics struct {
	Lookups        *prometheus.CounterVec
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	LookupDuration prometheus.Histogram
}

// NewNutritionMetrics creates and registers the nutrition client collectors.
func NewNutritionMetrics(registry *prometheus.Registry) (*NutritionMetrics, error) {
	m := &NutritionMetrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platescale_nutrition_lookups_total",
			Help: "Total number of nutrition lookups sent upstream, by status.",
		}, []string{"status"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "platescale_nutrition_cache_hits_total",
			Help: "Total number of nutrition cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "platescale_nutrition_cache_misses_total",
			Help: "Total number of nutrition cache misses.",
		}),
		LookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "platescale_nutrition_lookup_duration_seconds",
			Help:    "Duration of upstream nutrition lookups in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 8),
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register nutrition metrics: %w", err)
	}
	return m, nil
}

// IncrementCacheHits increases the cache hit counter by one.
func (m *NutritionMetrics) IncrementCacheHits() {
	m.CacheHits.Inc()
}

// IncrementCacheMisses increases the cache miss counter by one.
func (m *NutritionMetrics) IncrementCacheMisses() {
	m.CacheMisses.Inc()
}

// RecordLookup counts an upstream lookup and its duration.
func (m *NutritionMetrics) RecordLookup(status string, durationSeconds float64) {
	m.Lookups.WithLabelValues(status).Inc()
	m.LookupDuration.Observe(durationSeconds)
}

// Collect implements the prometheus.Collector interface.
func (m *NutritionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Lookups.Collect(ch)
	ch <- m.CacheHits
	ch <- m.CacheMisses
	ch <- m.LookupDuration
}

// Describe implements the prometheus.Collector interface.
func (m *NutritionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Lookups.Describe(ch)
	ch <- m.CacheHits.Desc()
	ch <- m.CacheMisses.Desc()
	ch <- m.LookupDuration.Desc()
}
