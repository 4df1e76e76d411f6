package detection

import (
	"github.com/platescale/platescale/internal/errors"
)

// ErrAmbiguousReference is returned by Partition when more than one plate
// was detected. The accompanying Partition is still usable in image mode.
var ErrAmbiguousReference = errors.NewStd("more than one plate detected")

// Partition splits a Set into food items and the plate reference.
type Partition struct {
	Foods      Set      // non-plate objects, input order
	PlateArea  *float64 // plate pixel fraction, set only when exactly one plate exists
	PlateCount int
	FoodCount  int
	// TotalFraction is the sum over all objects, plate included.
	TotalFraction float64
}

// HasPlate reports whether a single usable plate reference was found.
func (p Partition) HasPlate() bool {
	return p.PlateArea != nil
}

// Split separates plate objects from food objects. With two or more plates
// it returns ErrAmbiguousReference together with a Partition carrying no
// plate area.
func Split(set Set) (Partition, error) {
	p := Partition{
		Foods:         make(Set, 0, len(set)),
		TotalFraction: set.TotalFraction(),
	}

	var plateArea float64
	for _, o := range set {
		if o.IsPlate() {
			p.PlateCount++
			plateArea = o.PixelAreaFraction
			continue
		}
		p.Foods = append(p.Foods, o)
	}
	p.FoodCount = len(p.Foods)

	switch p.PlateCount {
	case 0:
		return p, nil
	case 1:
		p.PlateArea = &plateArea
		return p, nil
	default:
		return p, errors.New(ErrAmbiguousReference).
			Component("detection").
			Category(errors.CategoryDetection).
			Context("plate_count", p.PlateCount).
			Build()
	}
}
