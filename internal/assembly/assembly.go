// Package assembly joins weight estimates with nutrition lookups into the
// per-item response, scaling per-100g values to the estimated weight.
package assembly

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platescale/platescale/internal/errors"
	"github.com/platescale/platescale/internal/estimator"
	"github.com/platescale/platescale/internal/logger"
	"github.com/platescale/platescale/internal/nutrition"
	"github.com/platescale/platescale/internal/observability/metrics"
)

// Failure reasons reported on items and in metrics.
const (
	ReasonUnknownLabel      = "unknown_label"
	ReasonEstimationFailed  = "estimation_failed"
	ReasonNutritionNotFound = "nutrition_not_found"
	ReasonNutritionFailed   = "nutrition_failed"
)

const (
	defaultConcurrency   = 4
	defaultLookupTimeout = 10 * time.Second
)

// Item is one food entry of the response. Exactly one of Nutrition or Error
// is populated.
type Item struct {
	Label        string             `json:"label"`
	MatchedLabel string             `json:"matched_label,omitempty"`
	Nutrition    map[string]float64 `json:"nutrition,omitempty"`
	Weight       float64            `json:"weight"`
	Error        string             `json:"error,omitempty"`
	Reason       string             `json:"reason,omitempty"`

	err error
}

// Err returns the failure behind an error marker.
func (i Item) Err() error {
	return i.err
}

// OK reports whether the item carries nutrition data.
func (i Item) OK() bool {
	return i.err == nil
}

// Assembler runs nutrition lookups for a batch of estimates.
type Assembler struct {
	provider    nutrition.Provider
	concurrency int
	timeout     time.Duration
	log         logger.Logger
	metrics     *metrics.EstimationMetrics
}

// Option customises an Assembler.
type Option func(*Assembler)

// WithConcurrency bounds parallel lookups.
func WithConcurrency(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithLookupTimeout bounds each lookup.
func WithLookupTimeout(d time.Duration) Option {
	return func(a *Assembler) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Assembler) { a.log = l }
}

// WithMetrics records per-item failures.
func WithMetrics(m *metrics.EstimationMetrics) Option {
	return func(a *Assembler) { a.metrics = m }
}

// New creates an Assembler backed by provider.
func New(provider nutrition.Provider, opts ...Option) *Assembler {
	a := &Assembler{
		provider:    provider,
		concurrency: defaultConcurrency,
		timeout:     defaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.Global().Module("assembly")
	}
	return a
}

// Assemble zips labels with their weight estimates and fetches nutrition for
// each concurrently. Mismatched lengths yield an empty result. Output order
// matches input order; a failed item becomes an error marker and never
// affects its siblings.
func (a *Assembler) Assemble(ctx context.Context, labels []string, weights []estimator.Result) []Item {
	if len(labels) != len(weights) {
		a.log.Warn("label and weight counts differ, returning empty result",
			logger.Int("labels", len(labels)),
			logger.Int("weights", len(weights)))
		return []Item{}
	}

	items := make([]Item, len(labels))
	var g errgroup.Group
	g.SetLimit(a.concurrency)

	for i, label := range labels {
		w := weights[i]
		if !w.OK() {
			items[i] = a.failed(label, 0, w.Err, estimationReason(w.Err))
			continue
		}
		g.Go(func() error {
			items[i] = a.lookup(ctx, label, w.Grams)
			return nil
		})
	}
	_ = g.Wait()

	return items
}

func (a *Assembler) lookup(ctx context.Context, label string, grams float64) Item {
	lookupCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	facts, err := a.provider.Lookup(lookupCtx, label)
	if err != nil {
		reason := ReasonNutritionFailed
		if errors.Is(err, nutrition.ErrNotFound) {
			reason = ReasonNutritionNotFound
		}
		return a.failed(label, grams, err, reason)
	}

	return Item{
		Label:        label,
		MatchedLabel: facts.Label,
		Nutrition:    Scale(facts.Per100g, grams),
		Weight:       RoundWeight(grams),
	}
}

func (a *Assembler) failed(label string, grams float64, err error, reason string) Item {
	a.log.Warn("food item excluded from nutrition results",
		logger.String("label", label),
		logger.String("reason", reason),
		logger.Error(err))
	if a.metrics != nil {
		a.metrics.RecordItemFailure(reason)
	}
	return Item{
		Label:  label,
		Weight: RoundWeight(grams),
		Error:  err.Error(),
		Reason: reason,
		err:    err,
	}
}

func estimationReason(err error) string {
	if errors.Is(err, estimator.ErrUnknownFoodLabel) {
		return ReasonUnknownLabel
	}
	return ReasonEstimationFailed
}

// Scale converts per-100g nutrient values to grams, rounded to 1 decimal.
func Scale(per100g map[string]float64, grams float64) map[string]float64 {
	scaled := make(map[string]float64, len(per100g))
	for k, v := range per100g {
		scaled[k] = round(v/100*grams, 10)
	}
	return scaled
}

// RoundWeight rounds grams to 2 decimals.
func RoundWeight(grams float64) float64 {
	return round(grams, 100)
}

func round(v, ratio float64) float64 {
	return math.Round(v*ratio) / ratio
}

// AllFailed reports whether every item is an error marker. An empty slice
// is not considered failed.
func AllFailed(items []Item) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if it.OK() {
			return false
		}
	}
	return true
}
