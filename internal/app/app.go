// Package app assembles the platescale components from settings.
package app

import (
	"context"
	"net/http"

	"github.com/platescale/platescale/internal/assembly"
	"github.com/platescale/platescale/internal/conf"
	"github.com/platescale/platescale/internal/detector"
	"github.com/platescale/platescale/internal/errors"
	"github.com/platescale/platescale/internal/httpclient"
	"github.com/platescale/platescale/internal/logger"
	"github.com/platescale/platescale/internal/mqtt"
	"github.com/platescale/platescale/internal/nutrition"
	"github.com/platescale/platescale/internal/observability"
	"github.com/platescale/platescale/internal/pipeline"
	"github.com/platescale/platescale/internal/reference"
	"github.com/platescale/platescale/internal/vision"
)

// App holds the wired components. Close releases them.
type App struct {
	Settings  *conf.Settings
	Table     *reference.Table
	Metrics   *observability.Metrics
	Detector  *detector.Client // nil in vision mode
	Pipeline  *pipeline.Pipeline
	Publisher *mqtt.Publisher

	http *httpclient.Client
}

// LoadReferenceTable returns the built-in table or the configured override.
func LoadReferenceTable(s *conf.Settings) (*reference.Table, error) {
	if s.Estimation.ReferenceTable == "" {
		return reference.Default(), nil
	}
	return reference.Load(s.Estimation.ReferenceTable)
}

// Build wires every component described by s.
func Build(ctx context.Context, s *conf.Settings) (*App, error) {
	log := logger.Global().Module("app")

	table, err := LoadReferenceTable(s)
	if err != nil {
		return nil, err
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, errors.New(err).
			Component("app").
			Category(errors.CategoryConfiguration).
			Build()
	}

	a := &App{
		Settings: s,
		Table:    table,
		Metrics:  m,
		http:     httpclient.New(nil),
	}
	a.http.SetAfterResponseHook(outboundLogger(logger.Global().Module("httpclient")))

	nut, err := nutrition.NewClient(nutrition.Config{
		BaseURL:   s.Nutrition.BaseURL,
		AppID:     s.Nutrition.AppID,
		AppKey:    s.Nutrition.AppKey,
		Timeout:   s.Nutrition.Timeout,
		CacheTTL:  s.Nutrition.CacheTTL,
		RateLimit: s.Nutrition.RateLimit,
		Burst:     s.Nutrition.Burst,
	},
		nutrition.WithHTTPClient(a.http),
		nutrition.WithMetrics(m.Nutrition),
		nutrition.WithLogger(logger.Global().Module("nutrition")))
	if err != nil {
		return nil, err
	}

	asm := assembly.New(nut,
		assembly.WithConcurrency(s.Nutrition.Concurrency),
		assembly.WithLookupTimeout(s.Nutrition.Timeout),
		assembly.WithMetrics(m.Estimation),
		assembly.WithLogger(logger.Global().Module("assembly")))

	opts := []pipeline.Option{
		pipeline.WithMode(s.Estimation.Mode),
		pipeline.WithVisionFallback(s.Estimation.VisionFallback),
		pipeline.WithMetrics(m.Estimation),
		pipeline.WithLogger(logger.Global().Module("pipeline")),
	}

	var det detector.Detector
	if s.Estimation.Mode == conf.ModeDetection {
		a.Detector, err = detector.NewClient(detector.Config{
			URL:     s.Detector.URL,
			Timeout: s.Detector.Timeout,
		},
			detector.WithHTTPClient(a.http),
			detector.WithMetrics(m.Estimation),
			detector.WithLogger(logger.Global().Module("detector")))
		if err != nil {
			return nil, err
		}
		det = a.Detector
	}

	if s.Vision.Enabled {
		classifier, err := vision.NewClient(ctx, vision.Config{
			APIKey:     s.Vision.APIKey,
			Endpoint:   s.Vision.Endpoint,
			MaxResults: s.Vision.MaxResults,
			Timeout:    s.Vision.Timeout,
		}, logger.Global().Module("vision"))
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithClassifier(classifier))
	}

	a.Publisher, err = mqtt.Start(ctx, mqtt.Config{
		Enabled:        s.MQTT.Enabled,
		Broker:         s.MQTT.Broker,
		ClientID:       s.MQTT.ClientID,
		Username:       s.MQTT.Username,
		Password:       s.MQTT.Password,
		Topic:          s.MQTT.Topic,
		QoS:            s.MQTT.QoS,
		Retain:         s.MQTT.Retain,
		ConnectTimeout: s.MQTT.Timeout,
		PublishTimeout: s.MQTT.Timeout,
	}, m.MQTT, logger.Global().Module("mqtt"))
	if err != nil {
		a.Close()
		return nil, err
	}
	if a.Publisher.Enabled() {
		opts = append(opts, pipeline.WithPublisher(a.Publisher))
	}

	a.Pipeline, err = pipeline.New(table, det, asm, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}

	log.Info("components initialized",
		logger.String("mode", s.Estimation.Mode),
		logger.Bool("vision_fallback", s.Estimation.VisionFallback),
		logger.Bool("mqtt", a.Publisher.Enabled()),
		logger.Int("reference_labels", len(table.Labels())))

	return a, nil
}

// outboundLogger logs collaborator calls at debug level. Query strings carry
// credentials and are never logged.
func outboundLogger(log logger.Logger) func(*http.Request, *http.Response, error) {
	return func(req *http.Request, resp *http.Response, err error) {
		fields := []logger.Field{
			logger.String("method", req.Method),
			logger.String("host", req.URL.Host),
			logger.String("path", req.URL.Path),
		}
		if err != nil {
			log.Debug("outbound request failed", append(fields, logger.Error(err))...)
			return
		}
		log.Debug("outbound request", append(fields, logger.Int("status", resp.StatusCode))...)
	}
}

// Close disconnects the publisher and releases idle connections.
func (a *App) Close() {
	if a.Publisher != nil {
		a.Publisher.Close()
	}
	if a.http != nil {
		a.http.Close()
	}
}
