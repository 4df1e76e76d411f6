package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTTMetrics covers the estimate event publisher.
type MQTTMetrics struct {
	ConnectionStatus prometheus.Gauge
	Messages         prometheus.Counter
	Errors           *prometheus.CounterVec
}

// NewMQTTMetrics creates and registers the publisher collectors.
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{
		ConnectionStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "platescale_mqtt_connection_status",
			Help: "1 when connected to the MQTT broker, 0 otherwise.",
		}),
		Messages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "platescale_mqtt_messages_published_total",
			Help: "Total number of estimate events published.",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platescale_mqtt_errors_total",
			Help: "Total number of MQTT errors by operation.",
		}, []string{"operation"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

// UpdateConnectionStatus sets the connection gauge.
func (m *MQTTMetrics) UpdateConnectionStatus(connected bool) {
	if connected {
		m.ConnectionStatus.Set(1)
		return
	}
	m.ConnectionStatus.Set(0)
}

// IncrementMessagesPublished increases the published counter by one.
func (m *MQTTMetrics) IncrementMessagesPublished() {
	m.Messages.Inc()
}

// IncrementErrors counts an error for operation ("connect" or "publish").
func (m *MQTTMetrics) IncrementErrors(operation string) {
	m.Errors.WithLabelValues(operation).Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.ConnectionStatus
	ch <- m.Messages
	m.Errors.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.ConnectionStatus.Desc()
	ch <- m.Messages.Desc()
	m.Errors.Describe(ch)
}
