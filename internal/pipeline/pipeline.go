// Package pipeline runs one estimate end to end: detection or
// classification, mode selection, weight estimation and nutrition assembly.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/platescale/platescale/internal/assembly"
	"github.com/platescale/platescale/internal/detection"
	"github.com/platescale/platescale/internal/detector"
	"github.com/platescale/platescale/internal/errors"
	"github.com/platescale/platescale/internal/estimator"
	"github.com/platescale/platescale/internal/logger"
	"github.com/platescale/platescale/internal/observability/metrics"
	"github.com/platescale/platescale/internal/policy"
	"github.com/platescale/platescale/internal/reference"
	"github.com/platescale/platescale/internal/vision"
)

// Estimation modes.
const (
	ModeDetection = "yolo"
	ModeVision    = "vision"
)

// Warning codes attached to an Estimate.
const (
	WarnAmbiguousPlates = "ambiguous_plates"
	WarnUnknownLabels   = "unknown_labels"
	WarnVisionFallback  = "vision_fallback"
)

// Estimate is the result of one run.
type Estimate struct {
	ID              string          `json:"id"`
	Outcome         policy.Tag      `json:"outcome"`
	PlateDiameterCM float64         `json:"plate_diameter_cm,omitempty"`
	Items           []assembly.Item `json:"items"`
	Warnings        []string        `json:"warnings,omitempty"`
}

// Publisher receives every completed estimate.
type Publisher interface {
	PublishJSON(ctx context.Context, v any) error
}

// Event is the published form of an Estimate.
type Event struct {
	*Estimate
	Timestamp time.Time `json:"timestamp"`
}

// Pipeline wires the collaborators of an estimate. Safe for concurrent use.
type Pipeline struct {
	table      *reference.Table
	detector   detector.Detector
	classifier vision.Classifier
	assembler  *assembly.Assembler
	publisher  Publisher
	metrics    *metrics.EstimationMetrics
	log        logger.Logger

	mode           string
	visionFallback bool
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithClassifier enables the whole-image classifier.
func WithClassifier(c vision.Classifier) Option {
	return func(p *Pipeline) { p.classifier = c }
}

// WithMode selects ModeDetection or ModeVision.
func WithMode(mode string) Option {
	return func(p *Pipeline) { p.mode = mode }
}

// WithVisionFallback classifies the whole image when detection finds no food.
func WithVisionFallback(enabled bool) Option {
	return func(p *Pipeline) { p.visionFallback = enabled }
}

// WithPublisher publishes every estimate.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithMetrics records outcomes.
func WithMetrics(m *metrics.EstimationMetrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// New validates the collaborators for the selected mode.
func New(table *reference.Table, det detector.Detector, asm *assembly.Assembler, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		table:     table,
		detector:  det,
		assembler: asm,
		mode:      ModeDetection,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Global().Module("pipeline")
	}

	switch {
	case table == nil || asm == nil:
		return nil, configError("reference table and assembler are required")
	case p.mode != ModeDetection && p.mode != ModeVision:
		return nil, configError("unknown estimation mode " + p.mode)
	case p.mode == ModeDetection && det == nil:
		return nil, configError("detection mode requires a detector")
	case p.mode == ModeVision && p.classifier == nil:
		return nil, configError("vision mode requires a classifier")
	case p.visionFallback && p.classifier == nil:
		return nil, configError("vision fallback requires a classifier")
	}
	return p, nil
}

func configError(msg string) error {
	return errors.Newf("%s", msg).
		Component("pipeline").
		Category(errors.CategoryConfiguration).
		Build()
}

// Mode returns the configured estimation mode.
func (p *Pipeline) Mode() string {
	return p.mode
}

// Estimate runs the pipeline on image. plateDiameter is the raw user input;
// missing or invalid values fall back to the default diameter.
func (p *Pipeline) Estimate(ctx context.Context, image []byte, plateDiameter string) (*Estimate, error) {
	start := time.Now()

	id := logger.TraceID(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = logger.WithTraceID(ctx, id)
	}
	log := p.log.WithContext(ctx)

	if len(image) == 0 {
		return nil, errors.Newf("image is empty").
			Component("pipeline").
			Category(errors.CategoryValidation).
			Build()
	}

	est := &Estimate{ID: id}

	var (
		outcome policy.Outcome
		err     error
	)
	if p.mode == ModeVision {
		outcome, err = p.classify(ctx, image)
	} else {
		outcome, err = p.detect(ctx, log, image, policy.ResolvePlateDiameter(plateDiameter), est)
	}
	if err != nil {
		return nil, err
	}

	if outcome.Tag == policy.TagNoFood && p.visionFallback && p.mode == ModeDetection {
		fallback, ferr := p.classify(ctx, image)
		switch {
		case ferr != nil:
			log.Warn("vision fallback failed", logger.Error(ferr))
		case fallback.HasFood():
			outcome = fallback
			est.Warnings = append(est.Warnings, WarnVisionFallback)
		}
	}

	est.Outcome = outcome.Tag
	est.PlateDiameterCM = outcome.PlateDiameterCM

	if unknown := unknownLabels(outcome.Weights); len(unknown) > 0 {
		log.Warn("detected labels missing from reference table", logger.Strings("labels", unknown))
		est.Warnings = append(est.Warnings, WarnUnknownLabels)
	}

	labels := make([]string, len(outcome.Weights))
	for i, w := range outcome.Weights {
		labels[i] = w.Label
	}
	est.Items = p.assembler.Assemble(ctx, labels, outcome.Weights)

	if allLookupsFailed(est.Items) {
		return nil, errors.Newf("all nutrition lookups failed").
			Component("pipeline").
			Category(errors.CategoryNutrition).
			Context("items", len(est.Items)).
			Build()
	}

	elapsed := time.Since(start)
	if p.metrics != nil {
		p.metrics.RecordEstimate(string(est.Outcome), elapsed.Seconds())
	}
	log.Info("estimate completed",
		logger.String("outcome", string(est.Outcome)),
		logger.Int("items", len(est.Items)),
		logger.Duration("elapsed", elapsed))

	p.publish(ctx, log, est)
	return est, nil
}

func (p *Pipeline) detect(ctx context.Context, log logger.Logger, image []byte, diameter float64, est *Estimate) (policy.Outcome, error) {
	labels, areas, err := p.detector.Detect(ctx, image)
	if err != nil {
		return policy.Outcome{}, categorize(err, errors.CategoryDetection, "detect")
	}

	set, err := detection.FromArrays(labels, areas)
	if err != nil {
		return policy.Outcome{}, errors.New(err).
			Component("pipeline").
			Category(errors.CategoryDetection).
			Context("operation", "normalize").
			Build()
	}

	partition, err := detection.Split(set)
	if err != nil {
		if !errors.Is(err, detection.ErrAmbiguousReference) {
			return policy.Outcome{}, err
		}
		log.Warn("multiple plates detected, using image size as reference",
			logger.Int("plates", partition.PlateCount))
		est.Warnings = append(est.Warnings, WarnAmbiguousPlates)
	}

	return policy.Select(p.table, partition, diameter), nil
}

func (p *Pipeline) classify(ctx context.Context, image []byte) (policy.Outcome, error) {
	labels, err := p.classifier.Classify(ctx, image)
	if err != nil {
		return policy.Outcome{}, categorize(err, errors.CategoryClassification, "classify")
	}
	label, ok := vision.FirstKnown(labels, p.table)
	if !ok {
		return policy.NoFood(), nil
	}
	return policy.VisionDefault(label, vision.DefaultGrams), nil
}

// categorize keeps collaborator errors that already carry a category and
// assigns category to the rest.
func categorize(err error, category errors.ErrorCategory, operation string) error {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return err
	}
	return errors.New(err).
		Component("pipeline").
		Category(category).
		Context("operation", operation).
		Build()
}

func (p *Pipeline) publish(ctx context.Context, log logger.Logger, est *Estimate) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishJSON(ctx, Event{Estimate: est, Timestamp: time.Now()}); err != nil {
		log.Warn("failed to publish estimate event", logger.Error(err))
	}
}

// unknownLabels returns the labels whose estimate failed because the
// reference table has no entry for them.
func unknownLabels(results []estimator.Result) []string {
	var unknown []string
	for _, r := range estimator.Failed(results) {
		if errors.Is(r.Err, estimator.ErrUnknownFoodLabel) {
			unknown = append(unknown, r.Label)
		}
	}
	return unknown
}

// allLookupsFailed reports whether nutrition was requested for at least one
// item and no request succeeded.
func allLookupsFailed(items []assembly.Item) bool {
	attempted := 0
	for _, it := range items {
		switch {
		case it.OK():
			return false
		case it.Reason == assembly.ReasonNutritionFailed || it.Reason == assembly.ReasonNutritionNotFound:
			attempted++
		}
	}
	return attempted > 0
}
