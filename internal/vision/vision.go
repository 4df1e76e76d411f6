// Package vision classifies a whole image with Google Cloud Vision label
// detection and picks the first label the reference table knows.
package vision

import (
	"context"
	"encoding/base64"
	"time"

	"google.golang.org/api/option"
	visionapi "google.golang.org/api/vision/v1"

	"github.com/platescale/platescale/internal/errors"
	"github.com/platescale/platescale/internal/logger"
	"github.com/platescale/platescale/internal/reference"
)

// DefaultGrams is the weight assumed for a whole-image classification.
const DefaultGrams = 100.0

const labelDetection = "LABEL_DETECTION"

// Classifier returns candidate labels for an image, best first.
type Classifier interface {
	Classify(ctx context.Context, image []byte) ([]string, error)
}

// Config for the Cloud Vision client.
type Config struct {
	APIKey     string
	Endpoint   string // empty uses the public endpoint
	MaxResults int64
	Timeout    time.Duration
}

// Client calls the Cloud Vision images:annotate endpoint.
type Client struct {
	svc        *visionapi.Service
	maxResults int64
	timeout    time.Duration
	log        logger.Logger
}

// NewClient creates a Cloud Vision client authenticated by API key.
func NewClient(ctx context.Context, cfg Config, log logger.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.Newf("vision API key is required").
			Component("vision").
			Category(errors.CategoryConfiguration).
			Build()
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := visionapi.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.New(err).
			Component("vision").
			Category(errors.CategoryConfiguration).
			Context("operation", "new_service").
			Build()
	}

	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log == nil {
		log = logger.Global().Module("vision")
	}

	return &Client{svc: svc, maxResults: cfg.MaxResults, timeout: cfg.Timeout, log: log}, nil
}

// Classify returns label descriptions in the order the API ranked them.
func (c *Client) Classify(ctx context.Context, image []byte) ([]string, error) {
	if len(image) == 0 {
		return nil, errors.Newf("empty image").
			Component("vision").
			Category(errors.CategoryValidation).
			Build()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &visionapi.BatchAnnotateImagesRequest{
		Requests: []*visionapi.AnnotateImageRequest{{
			Image:    &visionapi.Image{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []*visionapi.Feature{{Type: labelDetection, MaxResults: c.maxResults}},
		}},
	}

	start := time.Now()
	resp, err := c.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		category := errors.CategoryClassification
		if errors.Is(err, context.DeadlineExceeded) {
			category = errors.CategoryTimeout
		}
		return nil, errors.New(err).
			Component("vision").
			Category(category).
			Timing("annotate", time.Since(start)).
			Build()
	}

	if len(resp.Responses) == 0 {
		return []string{}, nil
	}
	first := resp.Responses[0]
	if first.Error != nil && first.Error.Message != "" {
		return nil, errors.Newf("label detection failed: %s", first.Error.Message).
			Component("vision").
			Category(errors.CategoryClassification).
			Context("code", first.Error.Code).
			Build()
	}

	labels := make([]string, 0, len(first.LabelAnnotations))
	for _, a := range first.LabelAnnotations {
		if a.Description != "" {
			labels = append(labels, a.Description)
		}
	}
	c.log.Debug("image classified",
		logger.Strings("labels", labels),
		logger.Duration("elapsed", time.Since(start)))

	return labels, nil
}

// FirstKnown returns the first label present in table, normalized.
func FirstKnown(labels []string, table *reference.Table) (string, bool) {
	for _, l := range labels {
		if table.Has(l) {
			return reference.NormalizeLabel(l), true
		}
	}
	return "", false
}
