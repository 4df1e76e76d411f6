// Package reference holds the per-label depth and density constants and the
// camera geometry used to turn pixel-area fractions into grams.
//
// A Table is immutable after construction and safe for concurrent use.
package reference

import (
	"fmt"
	"maps"
	"math"
	"os"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/platescale/platescale/internal/errors"
)

// Params are the physical assumptions for one food label.
type Params struct {
	DepthCM        float64 `yaml:"depth_cm" json:"depth_cm"`
	DensityGPerCM3 float64 `yaml:"density_g_per_cm3" json:"density_g_per_cm3"`
}

// Geometry describes the scene captured by the camera.
type Geometry struct {
	ImageHeightCM    float64 `yaml:"image_height_cm" json:"image_height_cm"`
	ImageWidthCM     float64 `yaml:"image_width_cm" json:"image_width_cm"`
	AreaFillFraction float64 `yaml:"area_fill_fraction" json:"area_fill_fraction"`
}

// ImageAreaCM2 is the physical area covered by the full frame.
func (g Geometry) ImageAreaCM2() float64 {
	return g.ImageHeightCM * g.ImageWidthCM
}

// Built-in scene geometry: a phone held roughly 30 cm above the plate.
const (
	DefaultImageHeightCM    = 30.0
	DefaultImageWidthCM     = 40.0
	DefaultAreaFillFraction = 0.8
)

var defaultParams = map[string]Params{
	"apple":    {DepthCM: 7.0, DensityGPerCM3: 0.80},
	"banana":   {DepthCM: 3.5, DensityGPerCM3: 0.94},
	"bread":    {DepthCM: 1.5, DensityGPerCM3: 0.27},
	"burger":   {DepthCM: 5.0, DensityGPerCM3: 0.60},
	"cake":     {DepthCM: 4.0, DensityGPerCM3: 0.45},
	"carrot":   {DepthCM: 2.5, DensityGPerCM3: 1.04},
	"fries":    {DepthCM: 2.0, DensityGPerCM3: 0.35},
	"omelette": {DepthCM: 1.5, DensityGPerCM3: 0.85},
	"orange":   {DepthCM: 7.0, DensityGPerCM3: 0.87},
	"pasta":    {DepthCM: 3.0, DensityGPerCM3: 0.60},
	"pizza":    {DepthCM: 1.2, DensityGPerCM3: 0.65},
	"rice":     {DepthCM: 2.5, DensityGPerCM3: 0.80},
	"salad":    {DepthCM: 4.0, DensityGPerCM3: 0.25},
	"sandwich": {DepthCM: 4.5, DensityGPerCM3: 0.50},
	"steak":    {DepthCM: 2.5, DensityGPerCM3: 1.05},
}

// Table maps normalised food labels to their Params.
type Table struct {
	geometry Geometry
	params   map[string]Params
}

// NormalizeLabel lower-cases and trims a detector label for lookup.
func NormalizeLabel(label string) string {
	// cases.Caser is stateful and must not be shared between goroutines
	return cases.Lower(cases.Und).String(strings.TrimSpace(label))
}

// New builds a validated Table. Labels are normalised; the input map is copied.
func New(geometry Geometry, params map[string]Params) (*Table, error) {
	t := &Table{
		geometry: geometry,
		params:   make(map[string]Params, len(params)),
	}
	for label, p := range params {
		t.params[NormalizeLabel(label)] = p
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Default returns the built-in table.
func Default() *Table {
	t, err := New(Geometry{
		ImageHeightCM:    DefaultImageHeightCM,
		ImageWidthCM:     DefaultImageWidthCM,
		AreaFillFraction: DefaultAreaFillFraction,
	}, defaultParams)
	if err != nil {
		panic(fmt.Sprintf("built-in reference table invalid: %v", err))
	}
	return t
}

// fileFormat is the YAML layout accepted by Load.
type fileFormat struct {
	Geometry *Geometry         `yaml:"geometry"`
	Foods    map[string]Params `yaml:"foods"`
}

// Load reads a YAML table. Missing geometry falls back to the built-in values.
//
//	geometry:
//	  image_height_cm: 30
//	  image_width_cm: 40
//	  area_fill_fraction: 0.8
//	foods:
//	  pizza: {depth_cm: 1.2, density_g_per_cm3: 0.65}
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("reference").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return Parse(data)
}

// Parse decodes a YAML table, see Load.
func Parse(data []byte) (*Table, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Newf("failed to parse reference table: %w", err).
			Component("reference").
			Category(errors.CategoryFileParsing).
			Build()
	}

	geometry := Default().geometry
	if f.Geometry != nil {
		geometry = *f.Geometry
	}
	return New(geometry, f.Foods)
}

func (t *Table) validate() error {
	var problems []string
	g := t.geometry
	if !positive(g.ImageHeightCM) || !positive(g.ImageWidthCM) {
		problems = append(problems, "image dimensions must be positive")
	}
	if !positive(g.AreaFillFraction) || g.AreaFillFraction > 1 {
		problems = append(problems, "area fill fraction must be in (0, 1]")
	}
	if len(t.params) == 0 {
		problems = append(problems, "at least one food label is required")
	}
	for _, label := range slices.Sorted(maps.Keys(t.params)) {
		p := t.params[label]
		if label == "" {
			problems = append(problems, "empty food label")
		}
		if !positive(p.DepthCM) || !positive(p.DensityGPerCM3) {
			problems = append(problems, fmt.Sprintf("%q: depth and density must be positive", label))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.Newf("invalid reference table: %s", strings.Join(problems, "; ")).
		Component("reference").
		Category(errors.CategoryReference).
		Build()
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Lookup returns the parameters for label, normalising it first.
func (t *Table) Lookup(label string) (Params, bool) {
	p, ok := t.params[NormalizeLabel(label)]
	return p, ok
}

// Has reports whether label is a known food.
func (t *Table) Has(label string) bool {
	_, ok := t.Lookup(label)
	return ok
}

// Geometry returns the scene geometry.
func (t *Table) Geometry() Geometry {
	return t.geometry
}

// Labels returns the known labels in sorted order.
func (t *Table) Labels() []string {
	return slices.Sorted(maps.Keys(t.params))
}

// Entries returns a copy of the label table.
func (t *Table) Entries() map[string]Params {
	return maps.Clone(t.params)
}
