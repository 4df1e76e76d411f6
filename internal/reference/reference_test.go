package reference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platescale/platescale/internal/errors"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	table := Default()
	g := table.Geometry()
	assert.InDelta(t, 1200.0, g.ImageAreaCM2(), 1e-9)
	assert.InDelta(t, 0.8, g.AreaFillFraction, 1e-9)

	for _, label := range table.Labels() {
		p, ok := table.Lookup(label)
		require.True(t, ok, label)
		assert.Positive(t, p.DepthCM, label)
		assert.Positive(t, p.DensityGPerCM3, label)
	}
	assert.Contains(t, table.Labels(), "pizza")
	assert.NotContains(t, table.Labels(), "plate")
}

func TestLookup_NormalisesLabel(t *testing.T) {
	t.Parallel()

	table := Default()
	for _, label := range []string{"Pizza", "  PIZZA ", "pizza"} {
		p, ok := table.Lookup(label)
		require.True(t, ok, label)
		assert.InDelta(t, 1.2, p.DepthCM, 1e-9)
	}
	assert.False(t, table.Has("sushi"))
}

func TestEntries_ReturnsCopy(t *testing.T) {
	t.Parallel()

	table := Default()
	entries := table.Entries()
	entries["pizza"] = Params{DepthCM: 99, DensityGPerCM3: 99}

	p, _ := table.Lookup("pizza")
	assert.InDelta(t, 1.2, p.DepthCM, 1e-9)
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, table *Table)
	}{
		{
			name: "foods only keeps default geometry",
			yaml: "foods:\n  Sushi: {depth_cm: 2, density_g_per_cm3: 1.1}\n",
			check: func(t *testing.T, table *Table) {
				t.Helper()
				assert.Equal(t, []string{"sushi"}, table.Labels())
				assert.InDelta(t, DefaultImageHeightCM, table.Geometry().ImageHeightCM, 1e-9)
			},
		},
		{
			name: "custom geometry",
			yaml: "geometry: {image_height_cm: 10, image_width_cm: 20, area_fill_fraction: 1}\nfoods:\n  rice: {depth_cm: 2, density_g_per_cm3: 0.8}\n",
			check: func(t *testing.T, table *Table) {
				t.Helper()
				assert.InDelta(t, 200.0, table.Geometry().ImageAreaCM2(), 1e-9)
			},
		},
		{name: "zero density", yaml: "foods:\n  rice: {depth_cm: 2, density_g_per_cm3: 0}\n", wantErr: true},
		{name: "fill fraction above one", yaml: "geometry: {image_height_cm: 10, image_width_cm: 20, area_fill_fraction: 1.5}\nfoods:\n  rice: {depth_cm: 2, density_g_per_cm3: 0.8}\n", wantErr: true},
		{name: "no foods", yaml: "foods: {}\n", wantErr: true},
		{name: "malformed", yaml: "foods: [", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			table, err := Parse([]byte(tt.yaml))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, table)
		})
	}
}

func TestParse_ErrorCategories(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("foods: ["))
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))

	_, err = Parse([]byte("foods: {}\n"))
	assert.True(t, errors.IsCategory(err, errors.CategoryReference))
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "table.yaml")
	require.NoError(t, os.WriteFile(path, []byte("foods:\n  soup: {depth_cm: 3, density_g_per_cm3: 1}\n"), 0o600))

	table, err := Load(path)
	require.NoError(t, err)
	assert.True(t, table.Has("SOUP"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}
