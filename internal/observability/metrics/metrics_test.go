package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimationMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewEstimationMetrics(registry)
	require.NoError(t, err)

	m.RecordEstimate("YOLO_USE_PLATE_SIZE", 0.2)
	m.RecordEstimate("YOLO_USE_PLATE_SIZE", 0.3)
	m.RecordEstimate("NO_FOOD_DETECTED", 0.1)
	m.RecordItemFailure("unknown_label")
	m.RecordDetectorCall("ok", 0.05)

	assert.InDelta(t, 2, testutil.ToFloat64(m.Estimates.WithLabelValues("YOLO_USE_PLATE_SIZE")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Estimates.WithLabelValues("NO_FOOD_DETECTED")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ItemFailures.WithLabelValues("unknown_label")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.DetectorDuration))

	_, err = NewEstimationMetrics(registry)
	require.Error(t, err, "duplicate registration must fail")
}

func TestNutritionMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewNutritionMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.IncrementCacheHits()
	m.IncrementCacheMisses()
	m.IncrementCacheMisses()
	m.RecordLookup("not_found", 0.1)

	assert.InDelta(t, 1, testutil.ToFloat64(m.CacheHits), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.CacheMisses), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Lookups.WithLabelValues("not_found")), 0)
}

func TestMQTTMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.UpdateConnectionStatus(true)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ConnectionStatus), 0)
	m.UpdateConnectionStatus(false)
	assert.InDelta(t, 0, testutil.ToFloat64(m.ConnectionStatus), 0)

	m.IncrementMessagesPublished()
	m.IncrementErrors("publish")
	assert.InDelta(t, 1, testutil.ToFloat64(m.Messages), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Errors.WithLabelValues("publish")), 0)
}
