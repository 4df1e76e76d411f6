package assembly

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/platescale/platescale/internal/errors"
	"github.com/platescale/platescale/internal/estimator"
	"github.com/platescale/platescale/internal/logger"
	"github.com/platescale/platescale/internal/nutrition"
	"github.com/platescale/platescale/internal/observability/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeProvider serves canned facts and can block or fail per label.
type fakeProvider struct {
	facts    map[string]map[string]float64
	fail     map[string]error
	block    map[string]bool
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeProvider) Lookup(ctx context.Context, label string) (*nutrition.Facts, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	if f.block[label] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err, ok := f.fail[label]; ok {
		return nil, err
	}
	values, ok := f.facts[label]
	if !ok {
		return nil, fmt.Errorf("%w: %s", nutrition.ErrNotFound, label)
	}
	return &nutrition.Facts{Label: strings.ToUpper(label), Per100g: values}, nil
}

func newTestAssembler(t *testing.T, p nutrition.Provider, opts ...Option) (*Assembler, *metrics.EstimationMetrics) {
	t.Helper()
	m, err := metrics.NewEstimationMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	opts = append([]Option{WithLogger(logger.Discard()), WithMetrics(m)}, opts...)
	return New(p, opts...), m
}

func TestScale(t *testing.T) {
	t.Parallel()

	per100 := map[string]float64{"ENERC_KCAL": 266, "PROCNT": 11.43, "FAT": 0.04}
	scaled := Scale(per100, 150)

	assert.InDelta(t, 399.0, scaled["ENERC_KCAL"], 1e-9)
	assert.InDelta(t, 17.1, scaled["PROCNT"], 1e-9)
	assert.InDelta(t, 0.1, scaled["FAT"], 1e-9)
	assert.InDelta(t, 11.43, per100["PROCNT"], 0, "input must not be modified")
}

func TestScale_IdempotentForSameWeight(t *testing.T) {
	t.Parallel()

	per100 := map[string]float64{"ENERC_KCAL": 154, "PROCNT": 10.6, "CHOCDF": 0.7}
	for _, grams := range []float64{0, 12.34, 100, 237.5} {
		assert.Equal(t, Scale(per100, grams), Scale(per100, grams))
	}
	assert.Equal(t, map[string]float64{"ENERC_KCAL": 154, "PROCNT": 10.6, "CHOCDF": 0.7}, Scale(per100, 100))
}

func TestRoundWeight(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 123.46, RoundWeight(123.456), 1e-9)
	assert.InDelta(t, 0.0, RoundWeight(0.004), 1e-9)
}

func TestAssemble_PreservesOrderAndScales(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{facts: map[string]map[string]float64{
		"pizza":    {"ENERC_KCAL": 266},
		"omelette": {"ENERC_KCAL": 154},
		"apple":    {"ENERC_KCAL": 52},
	}}
	a, _ := newTestAssembler(t, p)

	labels := []string{"pizza", "omelette", "apple"}
	weights := []estimator.Result{
		{Label: "pizza", Grams: 200.004},
		{Label: "omelette", Grams: 50},
		{Label: "apple", Grams: 150},
	}
	items := a.Assemble(t.Context(), labels, weights)
	require.Len(t, items, 3)

	for i, item := range items {
		assert.Equal(t, labels[i], item.Label)
		assert.Equal(t, strings.ToUpper(labels[i]), item.MatchedLabel)
		assert.True(t, item.OK())
		assert.Empty(t, item.Error)
	}
	assert.InDelta(t, 200.0, items[0].Weight, 1e-9)
	assert.InDelta(t, 532.0, items[0].Nutrition["ENERC_KCAL"], 1e-9)
	assert.InDelta(t, 77.0, items[1].Nutrition["ENERC_KCAL"], 1e-9)
	assert.InDelta(t, 78.0, items[2].Nutrition["ENERC_KCAL"], 1e-9)
	assert.False(t, AllFailed(items))
}

func TestAssemble_LengthMismatch(t *testing.T) {
	t.Parallel()

	a, _ := newTestAssembler(t, &fakeProvider{})
	items := a.Assemble(t.Context(), []string{"pizza", "apple"}, []estimator.Result{{Label: "pizza", Grams: 1}})
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestAssemble_PerItemFailures(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{
		facts: map[string]map[string]float64{"pizza": {"ENERC_KCAL": 266}},
		fail:  map[string]error{"salad": errors.NewStd("upstream exploded")},
	}
	a, m := newTestAssembler(t, p)

	labels := []string{"sushi", "pizza", "salad", "cake"}
	weights := []estimator.Result{
		{Label: "sushi", Err: fmt.Errorf("%w: sushi", estimator.ErrUnknownFoodLabel)},
		{Label: "pizza", Grams: 100},
		{Label: "salad", Grams: 80},
		{Label: "cake", Grams: 60},
	}
	items := a.Assemble(t.Context(), labels, weights)
	require.Len(t, items, 4)

	assert.Equal(t, ReasonUnknownLabel, items[0].Reason)
	assert.ErrorIs(t, items[0].Err(), estimator.ErrUnknownFoodLabel)
	assert.True(t, items[1].OK())
	assert.Equal(t, ReasonNutritionFailed, items[2].Reason)
	assert.InDelta(t, 80.0, items[2].Weight, 0)
	assert.Equal(t, ReasonNutritionNotFound, items[3].Reason)
	assert.Nil(t, items[3].Nutrition)

	assert.InDelta(t, 1, testutil.ToFloat64(m.ItemFailures.WithLabelValues(ReasonUnknownLabel)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ItemFailures.WithLabelValues(ReasonNutritionFailed)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ItemFailures.WithLabelValues(ReasonNutritionNotFound)), 0)
}

func TestAssemble_SlowLookupTimesOutAlone(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{
		facts: map[string]map[string]float64{"pizza": {"ENERC_KCAL": 266}},
		block: map[string]bool{"rice": true},
	}
	a, _ := newTestAssembler(t, p, WithLookupTimeout(30*time.Millisecond))

	start := time.Now()
	items := a.Assemble(t.Context(),
		[]string{"rice", "pizza"},
		[]estimator.Result{{Label: "rice", Grams: 10}, {Label: "pizza", Grams: 10}})
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Len(t, items, 2)
	assert.ErrorIs(t, items[0].Err(), context.DeadlineExceeded)
	assert.True(t, items[1].OK())
}

func TestAssemble_BoundedConcurrency(t *testing.T) {
	t.Parallel()

	facts := map[string]map[string]float64{}
	var labels []string
	var weights []estimator.Result
	for i := range 12 {
		label := fmt.Sprintf("food-%d", i)
		facts[label] = map[string]float64{"ENERC_KCAL": 100}
		labels = append(labels, label)
		weights = append(weights, estimator.Result{Label: label, Grams: 100})
	}
	p := &fakeProvider{facts: facts}
	a, _ := newTestAssembler(t, p, WithConcurrency(3))

	items := a.Assemble(t.Context(), labels, weights)
	require.Len(t, items, 12)
	assert.LessOrEqual(t, p.peak.Load(), int32(3))
}

func TestAllFailed(t *testing.T) {
	t.Parallel()

	assert.False(t, AllFailed(nil))
	assert.True(t, AllFailed([]Item{{err: errors.NewStd("x")}}))
	assert.False(t, AllFailed([]Item{{err: errors.NewStd("x")}, {}}))
}
