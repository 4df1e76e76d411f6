// Package detector talks to the object detection inference service. The
// service receives an image as multipart field "file" and answers with
// parallel label and pixel-area-fraction arrays.
package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/platescale/platescale/internal/errors"
	"github.com/platescale/platescale/internal/httpclient"
	"github.com/platescale/platescale/internal/logger"
	"github.com/platescale/platescale/internal/observability/metrics"
)

const (
	formField       = "file"
	defaultFileName = "image.jpg"
	maxErrorBody    = 512
)

// Detector finds objects in an image. Both slices have equal length; an
// image without objects yields two empty slices.
type Detector interface {
	Detect(ctx context.Context, image []byte) (labels []string, areas []float64, err error)
}

// Config for the HTTP detector client.
type Config struct {
	URL       string
	HealthURL string // defaults to /health on the detector host
	Timeout   time.Duration
}

// Client is the HTTP Detector implementation.
type Client struct {
	url       string
	healthURL string
	timeout   time.Duration
	http      *httpclient.Client
	metrics   *metrics.EstimationMetrics
	log       logger.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the outbound HTTP client.
func WithHTTPClient(hc *httpclient.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMetrics records detector call counts and latency.
func WithMetrics(m *metrics.EstimationMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient validates cfg and creates a detector client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Newf("invalid detector URL %q", cfg.URL).
			Component("detector").
			Category(errors.CategoryConfiguration).
			Build()
	}

	healthURL := cfg.HealthURL
	if healthURL == "" {
		healthURL = (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/health"}).String()
	}

	c := &Client{
		url:       cfg.URL,
		healthURL: healthURL,
		timeout:   cfg.Timeout,
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httpclient.New(&httpclient.Config{DefaultTimeout: c.timeout})
	}
	if c.log == nil {
		c.log = logger.Global().Module("detector")
	}
	return c, nil
}

type detectResponse struct {
	Labels []string  `json:"labels"`
	Areas  []float64 `json:"areas"`
}

// Detect posts image to the inference service.
func (c *Client) Detect(ctx context.Context, image []byte) ([]string, []float64, error) {
	if len(image) == 0 {
		return nil, nil, errors.Newf("empty image").
			Component("detector").
			Category(errors.CategoryValidation).
			Build()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	labels, areas, err := c.detect(ctx, image)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		if errors.IsCategory(err, errors.CategoryTimeout) {
			status = "timeout"
		}
	}
	if c.metrics != nil {
		c.metrics.RecordDetectorCall(status, elapsed.Seconds())
	}
	if err != nil {
		return nil, nil, err
	}

	c.log.Debug("detection completed",
		logger.Int("objects", len(labels)),
		logger.Duration("elapsed", elapsed))
	return labels, areas, nil
}

func (c *Client) detect(ctx context.Context, image []byte) ([]string, []float64, error) {
	resp, err := c.http.PostMultipart(ctx, c.url, httpclient.FilePart{
		Field:    formField,
		FileName: defaultFileName,
		Data:     image,
	}, nil)
	if err != nil {
		category := errors.CategoryNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			category = errors.CategoryTimeout
		}
		return nil, nil, errors.New(err).
			Component("detector").
			Category(category).
			Context("url", c.url).
			Build()
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Debug("failed to close detector response body", logger.Error(cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, nil, errors.Newf("detector returned status %d: %s", resp.StatusCode, string(body)).
			Component("detector").
			Category(errors.CategoryDetection).
			Context("status_code", resp.StatusCode).
			Build()
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, nil, errors.New(fmt.Errorf("decode detector response: %w", err)).
			Component("detector").
			Category(errors.CategoryFileParsing).
			Build()
	}
	if len(out.Labels) != len(out.Areas) {
		return nil, nil, errors.Newf("detector returned %d labels and %d areas", len(out.Labels), len(out.Areas)).
			Component("detector").
			Category(errors.CategoryDetection).
			Build()
	}

	if out.Labels == nil {
		out.Labels = []string{}
	}
	if out.Areas == nil {
		out.Areas = []float64{}
	}
	return out.Labels, out.Areas, nil
}

// Health checks that the inference service is reachable.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.Get(ctx, c.healthURL)
	if err != nil {
		return errors.New(err).
			Component("detector").
			Category(errors.CategoryNetwork).
			Context("url", c.healthURL).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("detector unhealthy: status %d", resp.StatusCode).
			Component("detector").
			Category(errors.CategoryDetection).
			Build()
	}
	return nil
}
