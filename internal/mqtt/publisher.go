package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/platescale/platescale/internal/logger"
	"github.com/platescale/platescale/internal/observability/metrics"
)

// Publisher sends JSON events to the configured topic.
type Publisher struct {
	client Client
	topic  string
	log    logger.Logger
}

// NewPublisher returns a Publisher over client. A nil client yields a
// publisher that drops every event.
func NewPublisher(c Client, topic string, log logger.Logger) *Publisher {
	if log == nil {
		log = logger.Global().Module("mqtt")
	}
	return &Publisher{client: c, topic: topic, log: log}
}

// Start connects the publisher when cfg is enabled and returns a disabled
// publisher otherwise.
func Start(ctx context.Context, cfg Config, m *metrics.MQTTMetrics, log logger.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return NewPublisher(nil, cfg.Topic, log), nil
	}
	c := NewClient(cfg, m, log)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return NewPublisher(c, cfg.Topic, log), nil
}

// Enabled reports whether events are actually sent.
func (p *Publisher) Enabled() bool {
	return p != nil && p.client != nil
}

// PublishJSON marshals v and publishes it.
func (p *Publisher) PublishJSON(ctx context.Context, v any) error {
	if !p.Enabled() {
		return nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.client.Publish(ctx, p.topic, payload)
}

// Close disconnects the underlying client.
func (p *Publisher) Close() {
	if p.Enabled() {
		p.client.Disconnect()
	}
}
