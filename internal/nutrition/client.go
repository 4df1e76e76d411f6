package nutrition

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/platescale/platescale/internal/errors"
	"github.com/platescale/platescale/internal/httpclient"
	"github.com/platescale/platescale/internal/logger"
	"github.com/platescale/platescale/internal/observability/metrics"
	"github.com/platescale/platescale/internal/reference"
)

const (
	parserPath = "/api/food-database/v2/parser"

	// maxErrorPreview bounds how much of an error body is logged
	maxErrorPreview = 500
	maxResponseSize = 4 << 20
)

// Client queries the Edamam parser endpoint. Results are cached per
// normalised label, concurrent lookups for one label share a request, and
// upstream calls are rate limited.
type Client struct {
	config  Config
	http    *httpclient.Client
	cache   *cache.Cache
	limiter *rate.Limiter
	group   singleflight.Group
	metrics *metrics.NutritionMetrics
	log     logger.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient sets the outbound HTTP client.
func WithHTTPClient(hc *httpclient.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.NutritionMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient creates an Edamam client. AppID and AppKey are required.
func NewClient(config Config, opts ...Option) (*Client, error) {
	if config.AppID == "" || config.AppKey == "" {
		return nil, errors.Newf("edamam app id and app key are required").
			Component("nutrition").
			Category(errors.CategoryConfiguration).
			Build()
	}

	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	c := &Client{config: config}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httpclient.New(&httpclient.Config{DefaultTimeout: config.Timeout})
	}
	if c.log == nil {
		c.log = logger.Global().Module("nutrition")
	}
	if config.CacheTTL > 0 {
		c.cache = cache.New(config.CacheTTL, config.CacheTTL*2)
	}
	if config.RateLimit > 0 {
		burst := max(config.Burst, 1)
		c.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	c.log.Info("nutrition client initialized",
		logger.String("base_url", config.BaseURL),
		logger.Duration("cache_ttl", config.CacheTTL),
		logger.Float64("rate_limit", config.RateLimit))

	return c, nil
}

// Lookup returns the per-100g nutrients for label.
func (c *Client) Lookup(ctx context.Context, label string) (*Facts, error) {
	key := reference.NormalizeLabel(label)
	if key == "" {
		return nil, errors.New(ErrNotFound).
			Component("nutrition").
			Category(errors.CategoryValidation).
			Build()
	}

	if c.cache != nil {
		if cached, found := c.cache.Get(key); found {
			if facts, ok := cached.(*Facts); ok {
				if c.metrics != nil {
					c.metrics.IncrementCacheHits()
				}
				c.log.Debug("nutrition cache hit", logger.String("label", key))
				return facts.clone(), nil
			}
		}
		if c.metrics != nil {
			c.metrics.IncrementCacheMisses()
		}
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		return c.fetch(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	facts := v.(*Facts)
	if shared {
		c.log.Trace("nutrition lookup shared", logger.String("label", key))
	}
	return facts.clone(), nil
}

func (c *Client) fetch(ctx context.Context, label string) (*Facts, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.New(err).
				Component("nutrition").
				Category(errors.CategoryLimit).
				Context("label", label).
				Build()
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	facts, err := c.doRequest(reqCtx, label)
	status := lookupStatus(err)
	if c.metrics != nil {
		c.metrics.RecordLookup(status, time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(label, facts, cache.DefaultExpiration)
	}
	c.log.Debug("nutrition lookup completed",
		logger.String("label", label),
		logger.String("matched", facts.Label),
		logger.Int("nutrients", len(facts.Per100g)),
		logger.Duration("elapsed", time.Since(start)))
	return facts, nil
}

func lookupStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// parserResponse is the subset of the parser payload we use.
type parserResponse struct {
	Parsed []foodEntry `json:"parsed"`
	Hints  []foodEntry `json:"hints"`
}

type foodEntry struct {
	Food struct {
		FoodID    string             `json:"foodId"`
		Label     string             `json:"label"`
		Nutrients map[string]float64 `json:"nutrients"`
	} `json:"food"`
}

func (c *Client) doRequest(ctx context.Context, label string) (*Facts, error) {
	q := url.Values{}
	q.Set("app_id", c.config.AppID)
	q.Set("app_key", c.config.AppKey)
	q.Set("ingr", label)
	endpoint := c.config.BaseURL + parserPath + "?" + q.Encode()

	resp, err := c.http.Get(ctx, endpoint)
	if err != nil {
		category := errors.CategoryNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			category = errors.CategoryTimeout
		}
		return nil, errors.New(fmt.Errorf("edamam request failed: %w", err)).
			Component("nutrition").
			Category(category).
			Context("label", label).
			Build()
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.log.Debug("failed to close response body", logger.Error(closeErr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to read edamam response: %w", err)).
			Component("nutrition").
			Category(errors.CategoryNetwork).
			Build()
	}

	if resp.StatusCode >= http.StatusBadRequest {
		preview := string(body)
		if len(preview) > maxErrorPreview {
			preview = preview[:maxErrorPreview] + "..."
		}
		c.log.Warn("edamam returned error status",
			logger.Int("status_code", resp.StatusCode),
			logger.String("label", label),
			logger.String("body_preview", preview))

		category := errors.CategoryNutrition
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			category = errors.CategoryConfiguration
		case http.StatusNotFound:
			return nil, c.notFound(label)
		case http.StatusTooManyRequests:
			category = errors.CategoryLimit
		}
		return nil, errors.Newf("edamam returned status %d", resp.StatusCode).
			Component("nutrition").
			Category(category).
			Context("status_code", resp.StatusCode).
			Context("label", label).
			Build()
	}

	var parsed parserResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.New(fmt.Errorf("failed to decode edamam response: %w", err)).
			Component("nutrition").
			Category(errors.CategoryFileParsing).
			Context("label", label).
			Build()
	}

	entry, ok := parsed.first()
	if !ok || entry.Food.Label == "" || len(entry.Food.Nutrients) == 0 {
		return nil, c.notFound(label)
	}

	return &Facts{Label: entry.Food.Label, Per100g: entry.Food.Nutrients}, nil
}

// first prefers the exact parse and falls back to the first hint.
func (p parserResponse) first() (foodEntry, bool) {
	if len(p.Parsed) > 0 {
		return p.Parsed[0], true
	}
	if len(p.Hints) > 0 {
		return p.Hints[0], true
	}
	return foodEntry{}, false
}

func (c *Client) notFound(label string) error {
	return errors.New(fmt.Errorf("%w: %q", ErrNotFound, label)).
		Component("nutrition").
		Category(errors.CategoryNotFound).
		Context("label", label).
		Build()
}

func (f *Facts) clone() *Facts {
	return &Facts{Label: f.Label, Per100g: maps.Clone(f.Per100g)}
}
