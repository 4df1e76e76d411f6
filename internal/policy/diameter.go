package policy

import (
	"math"
	"strconv"
	"strings"
)

// Plate diameter bounds in centimetres.
const (
	MinPlateDiameterCM     = 10.0
	MaxPlateDiameterCM     = 40.0
	DefaultPlateDiameterCM = 25.0
)

// ClampPlateDiameter returns v when it lies in [MinPlateDiameterCM,
// MaxPlateDiameterCM], otherwise DefaultPlateDiameterCM. Out-of-range input
// is replaced, not pinned to the nearest bound.
func ClampPlateDiameter(v float64) float64 {
	if math.IsNaN(v) || v < MinPlateDiameterCM || v > MaxPlateDiameterCM {
		return DefaultPlateDiameterCM
	}
	return v
}

// ResolvePlateDiameter parses a user-supplied diameter. Missing or
// unparsable input yields DefaultPlateDiameterCM.
func ResolvePlateDiameter(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultPlateDiameterCM
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return DefaultPlateDiameterCM
	}
	return ClampPlateDiameter(v)
}
