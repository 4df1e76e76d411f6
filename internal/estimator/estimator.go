// Package estimator converts pixel-area fractions into grams using either the
// fixed camera geometry (image mode) or a detected plate of known diameter
// (plate mode).
package estimator

import (
	"math"

	"github.com/platescale/platescale/internal/detection"
	"github.com/platescale/platescale/internal/errors"
	"github.com/platescale/platescale/internal/reference"
)

var (
	// ErrUnknownFoodLabel is returned for labels absent from the reference table.
	ErrUnknownFoodLabel = errors.NewStd("unknown food label")
	// ErrMissingPlateReference is returned when plate mode has no usable plate area.
	ErrMissingPlateReference = errors.NewStd("missing plate reference")
)

// ImageWeight estimates grams from the fraction of the full frame an item covers:
//
//	H * W * fraction * depth * density * fill
func ImageWeight(table *reference.Table, label string, fraction float64) (float64, error) {
	p, err := lookup(table, label)
	if err != nil {
		return 0, err
	}
	g := table.Geometry()
	areaFood := g.ImageAreaCM2() * fraction
	return areaFood * p.DepthCM * p.DensityGPerCM3 * g.AreaFillFraction, nil
}

// PlateWeight estimates grams relative to a plate of diameterCM:
//
//	(foodFraction / plateFraction) * π(d/2)² * depth * density
//
// No fill correction applies; segmentation masks already trace the item.
func PlateWeight(table *reference.Table, label string, foodFraction, plateFraction, diameterCM float64) (float64, error) {
	if !(plateFraction > 0) || math.IsInf(plateFraction, 0) {
		return 0, errors.New(ErrMissingPlateReference).
			Component("estimator").
			Category(errors.CategoryEstimation).
			Context("plate_fraction", plateFraction).
			Build()
	}
	p, err := lookup(table, label)
	if err != nil {
		return 0, err
	}
	radius := diameterCM / 2
	plateArea := math.Pi * radius * radius
	areaRel := foodFraction / plateFraction
	return areaRel * plateArea * p.DepthCM * p.DensityGPerCM3, nil
}

func lookup(table *reference.Table, label string) (reference.Params, error) {
	p, ok := table.Lookup(label)
	if !ok {
		return reference.Params{}, errors.New(ErrUnknownFoodLabel).
			Component("estimator").
			Category(errors.CategoryNotFound).
			Context("label", label).
			Build()
	}
	return p, nil
}

// PlateReference carries the scale for plate mode.
type PlateReference struct {
	PixelArea  float64 // denominator pixel fraction
	DiameterCM float64
}

// Result is the estimate for one food item. Err is set when the item could
// not be estimated; Grams is then zero.
type Result struct {
	Label string
	Grams float64
	Err   error
}

// OK reports whether the estimate succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// EstimateBatch estimates every item in order. A nil plate selects image mode.
// Failures are recorded per item and never abort the batch.
func EstimateBatch(table *reference.Table, foods detection.Set, plate *PlateReference) []Result {
	results := make([]Result, len(foods))
	for i, item := range foods {
		var (
			grams float64
			err   error
		)
		if plate == nil {
			grams, err = ImageWeight(table, item.Label, item.PixelAreaFraction)
		} else {
			grams, err = PlateWeight(table, item.Label, item.PixelAreaFraction, plate.PixelArea, plate.DiameterCM)
		}
		results[i] = Result{Label: item.Label, Grams: grams, Err: err}
	}
	return results
}

// Failed returns the results carrying an error.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}
