// Package nutrition looks up per-100g nutrient values for food labels in the
// Edamam food database.
package nutrition

import (
	"context"
	"time"

	"github.com/platescale/platescale/internal/errors"
)

// ErrNotFound is returned when the database has no usable match for a label.
var ErrNotFound = errors.NewStd("no nutrition data for label")

// Facts are the nutrient values for 100 g of a food.
type Facts struct {
	Label   string             `json:"label"`   // database label, may differ from the query
	Per100g map[string]float64 `json:"per100g"` // nutrient code → amount per 100 g
}

// Provider looks up nutrition facts for a label.
type Provider interface {
	Lookup(ctx context.Context, label string) (*Facts, error)
}

// Config configures the Edamam client.
type Config struct {
	BaseURL   string
	AppID     string
	AppKey    string
	Timeout   time.Duration // per-lookup timeout
	CacheTTL  time.Duration // 0 disables caching
	RateLimit float64       // requests per second, 0 = unlimited
	Burst     int
}

// DefaultConfig returns the public Edamam endpoint with conservative limits.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "https://api.edamam.com",
		Timeout:   10 * time.Second,
		CacheTTL:  24 * time.Hour,
		RateLimit: 2,
		Burst:     4,
	}
}
