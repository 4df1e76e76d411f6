// Package detection models the output of the object detector: an ordered
// list of labelled objects with the fraction of image pixels each covers.
package detection

import (
	"fmt"
	"math"

	"github.com/platescale/platescale/internal/errors"
	"github.com/platescale/platescale/internal/reference"
)

// PlateLabel is the detector class used as the physical scale reference.
const PlateLabel = "plate"

// Object is one detected item.
type Object struct {
	Label             string  `json:"label"`
	PixelAreaFraction float64 `json:"pixel_area_fraction"` // share of image pixels, in [0,1]
}

// IsPlate reports whether the object is the reference plate.
func (o Object) IsPlate() bool {
	return reference.NormalizeLabel(o.Label) == PlateLabel
}

// Set is the ordered detector output for one image. Order is significant and
// preserved by every operation downstream.
type Set []Object

// Labels returns the object labels in order.
func (s Set) Labels() []string {
	labels := make([]string, len(s))
	for i, o := range s {
		labels[i] = o.Label
	}
	return labels
}

// TotalFraction is the sum of all pixel-area fractions.
func (s Set) TotalFraction() float64 {
	var total float64
	for _, o := range s {
		total += o.PixelAreaFraction
	}
	return total
}

// FromArrays pairs the detector's parallel label and area arrays.
func FromArrays(labels []string, areas []float64) (Set, error) {
	if len(labels) != len(areas) {
		return nil, errors.Newf("detector returned %d labels but %d areas", len(labels), len(areas)).
			Component("detection").
			Category(errors.CategoryValidation).
			Build()
	}

	set := make(Set, len(labels))
	for i, label := range labels {
		area := areas[i]
		if math.IsNaN(area) || area < 0 || area > 1 {
			return nil, errors.Newf("pixel area fraction %v for %q at index %d outside [0,1]", area, label, i).
				Component("detection").
				Category(errors.CategoryValidation).
				Context("index", i).
				Build()
		}
		set[i] = Object{Label: label, PixelAreaFraction: area}
	}
	return set, nil
}

func (o Object) String() string {
	return fmt.Sprintf("%s(%.3f)", o.Label, o.PixelAreaFraction)
}
