package policy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platescale/platescale/internal/detection"
	"github.com/platescale/platescale/internal/reference"
)

func TestResolvePlateDiameter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want float64
	}{
		{"5.0", DefaultPlateDiameterCM},
		{"45.0", DefaultPlateDiameterCM},
		{"abc", DefaultPlateDiameterCM},
		{"", DefaultPlateDiameterCM},
		{"NaN", DefaultPlateDiameterCM},
		{"15.0", 15.0},
		{"30", 30.0},
		{" 10 ", 10.0},
		{"40", 40.0},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, ResolvePlateDiameter(tt.raw), 0)
		})
	}
}

func TestClampPlateDiameter(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, DefaultPlateDiameterCM, ClampPlateDiameter(9.99), 0)
	assert.InDelta(t, DefaultPlateDiameterCM, ClampPlateDiameter(40.01), 0)
	assert.InDelta(t, DefaultPlateDiameterCM, ClampPlateDiameter(math.Inf(1)), 0)
	assert.InDelta(t, DefaultPlateDiameterCM, ClampPlateDiameter(math.NaN()), 0)
	assert.InDelta(t, 22.5, ClampPlateDiameter(22.5), 0)
}

func split(t *testing.T, labels []string, areas []float64) detection.Partition {
	t.Helper()
	set, err := detection.FromArrays(labels, areas)
	require.NoError(t, err)
	p, _ := detection.Split(set)
	return p
}

func TestSelect_NoFood(t *testing.T) {
	t.Parallel()
	table := reference.Default()

	for _, plates := range [][]string{{}, {"plate"}, {"plate", "plate"}} {
		areas := make([]float64, len(plates))
		for i := range areas {
			areas[i] = 0.4
		}
		out := Select(table, split(t, plates, areas), 25)
		assert.Equal(t, TagNoFood, out.Tag)
		assert.Empty(t, out.Weights)
		assert.False(t, out.HasFood())
	}
}

func TestSelect_PlateModeUsesSumOfAllFractions(t *testing.T) {
	t.Parallel()
	table := reference.Default()

	p := split(t, []string{"plate", "omelette", "apple"}, []float64{0.5, 0.3, 0.1})
	require.NotNil(t, p.PlateArea)
	assert.InDelta(t, 0.5, *p.PlateArea, 1e-12)

	out := Select(table, p, 25)
	require.Equal(t, TagPlateMode, out.Tag)
	assert.InDelta(t, 0.9, out.PlatePixelArea, 1e-12)
	assert.InDelta(t, 25.0, out.PlateDiameterCM, 0)
	require.Len(t, out.Weights, 2)

	omelette, _ := table.Lookup("omelette")
	want := (0.3 / 0.9) * math.Pi * 12.5 * 12.5 * omelette.DepthCM * omelette.DensityGPerCM3
	assert.Equal(t, "omelette", out.Weights[0].Label)
	assert.InDelta(t, want, out.Weights[0].Grams, 1e-9)
	assert.Equal(t, "apple", out.Weights[1].Label)
}

func TestSelect_PlateModeClampsDiameter(t *testing.T) {
	t.Parallel()

	out := Select(reference.Default(), split(t, []string{"pizza", "plate"}, []float64{0.2, 0.6}), 80)
	require.Equal(t, TagPlateMode, out.Tag)
	assert.InDelta(t, DefaultPlateDiameterCM, out.PlateDiameterCM, 0)
}

func TestSelect_ZeroAreaPlateFallsBackToImageMode(t *testing.T) {
	t.Parallel()

	out := Select(reference.Default(), split(t, []string{"plate", "pizza"}, []float64{0, 0}), 25)
	assert.Equal(t, TagImageMode, out.Tag)
	assert.Zero(t, out.PlatePixelArea)
	assert.Zero(t, out.PlateDiameterCM)
	require.Len(t, out.Weights, 1)
	assert.True(t, out.Weights[0].OK(), "no item may fail for a missing plate reference")
	assert.Zero(t, out.Weights[0].Grams)
}

func TestSelect_ImageMode(t *testing.T) {
	t.Parallel()
	table := reference.Default()

	tests := []struct {
		name   string
		labels []string
		areas  []float64
	}{
		{"two foods no plate", []string{"pizza", "salad"}, []float64{0.3, 0.2}},
		{"ambiguous plates degrade", []string{"plate", "pizza", "plate"}, []float64{0.3, 0.2, 0.3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := Select(table, split(t, tt.labels, tt.areas), 25)
			assert.Equal(t, TagImageMode, out.Tag)
			assert.Zero(t, out.PlatePixelArea)
			for _, w := range out.Weights {
				assert.True(t, w.OK())
				assert.Positive(t, w.Grams)
			}
		})
	}
}

func TestSelect_ImageModeScenario(t *testing.T) {
	t.Parallel()
	table := reference.Default()
	g := table.Geometry()

	labels := []string{"omelette", "pizza", "burger"}
	areas := []float64{0.2, 0.3, 0.2}
	out := Select(table, split(t, labels, areas), 25)
	require.Equal(t, TagImageMode, out.Tag)
	require.Len(t, out.Weights, 3)

	for i, label := range labels {
		p, _ := table.Lookup(label)
		want := g.ImageHeightCM * g.ImageWidthCM * areas[i] * p.DepthCM * p.DensityGPerCM3 * g.AreaFillFraction
		assert.Equal(t, label, out.Weights[i].Label)
		assert.InDelta(t, want, out.Weights[i].Grams, 1e-9)
	}
}

func TestVisionDefault(t *testing.T) {
	t.Parallel()

	out := VisionDefault("pizza", 100)
	assert.Equal(t, TagVisionDefault, out.Tag)
	require.Len(t, out.Weights, 1)
	assert.InDelta(t, 100.0, out.Weights[0].Grams, 0)
	assert.True(t, out.HasFood())
}
