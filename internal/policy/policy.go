// Package policy decides between plate-relative and image-relative weight
// estimation for a detection result and reports which one was used.
package policy

import (
	"github.com/platescale/platescale/internal/detection"
	"github.com/platescale/platescale/internal/estimator"
	"github.com/platescale/platescale/internal/reference"
)

// Tag identifies the estimation path taken for a request.
type Tag string

const (
	TagPlateMode     Tag = "YOLO_USE_PLATE_SIZE"
	TagImageMode     Tag = "YOLO_USE_IMAGE_SIZE"
	TagVisionDefault Tag = "VISION_DEFAULT"
	TagNoFood        Tag = "NO_FOOD_DETECTED"
)

// Outcome is the result of mode selection. Weights is empty for TagNoFood.
type Outcome struct {
	Tag     Tag
	Weights []estimator.Result

	// PlateDiameterCM and PlatePixelArea are set for TagPlateMode only.
	PlateDiameterCM float64
	PlatePixelArea  float64
}

// Select picks the estimation mode for a partitioned detection set:
//
//	no food                  → NoFoodDetected, nothing computed
//	food and exactly 1 plate → plate mode, if the total fraction is positive
//	food otherwise           → image mode
//
// In plate mode the denominator is the sum of every detected fraction,
// food and plate alike, not the plate's own fraction.
func Select(table *reference.Table, p detection.Partition, plateDiameterCM float64) Outcome {
	if p.FoodCount == 0 {
		return NoFood()
	}

	// a zero total would leave plate mode without a denominator
	if p.PlateCount == 1 && p.TotalFraction > 0 {
		ref := &estimator.PlateReference{
			PixelArea:  p.TotalFraction,
			DiameterCM: ClampPlateDiameter(plateDiameterCM),
		}
		return Outcome{
			Tag:             TagPlateMode,
			Weights:         estimator.EstimateBatch(table, p.Foods, ref),
			PlateDiameterCM: ref.DiameterCM,
			PlatePixelArea:  ref.PixelArea,
		}
	}

	return Outcome{
		Tag:     TagImageMode,
		Weights: estimator.EstimateBatch(table, p.Foods, nil),
	}
}

// NoFood is the outcome for images without any food item.
func NoFood() Outcome {
	return Outcome{Tag: TagNoFood, Weights: []estimator.Result{}}
}

// VisionDefault is the outcome for a whole-image classification with an
// assumed weight.
func VisionDefault(label string, grams float64) Outcome {
	return Outcome{
		Tag:     TagVisionDefault,
		Weights: []estimator.Result{{Label: label, Grams: grams}},
	}
}

// HasFood reports whether the outcome carries any items.
func (o Outcome) HasFood() bool {
	return o.Tag != TagNoFood && len(o.Weights) > 0
}
