package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platescale/platescale/internal/errors"
	"github.com/platescale/platescale/internal/logger"
	"github.com/platescale/platescale/internal/observability/metrics"
)

// fakeToken completes immediately with err, or never when pending.
type fakeToken struct {
	paho.Token
	done chan struct{}
	err  error
}

func newToken(err error, pending bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if !pending {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakePaho records calls. Unused paho.Client methods panic via the nil embed.
type fakePaho struct {
	paho.Client

	mu             sync.Mutex
	opts           *paho.ClientOptions
	connected      bool
	connectErr     error
	publishPending bool
	messages       []published
	disconnects    int
}

func (f *fakePaho) Connect() paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = f.connectErr == nil
	return newToken(f.connectErr, false)
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload any) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, published{topic, qos, retained, payload.([]byte)})
	return newToken(nil, f.publishPending)
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnects++
}

func newFakeClient(t *testing.T, cfg Config, fake *fakePaho) (*client, *metrics.MQTTMetrics) {
	t.Helper()
	m, err := metrics.NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	c := newClient(cfg, m, logger.Discard(), func(o *paho.ClientOptions) paho.Client {
		fake.opts = o
		return fake
	})
	return c, m
}

func TestClient_ConnectPublishDisconnect(t *testing.T) {
	t.Parallel()

	fake := &fakePaho{}
	c, m := newFakeClient(t, Config{
		Broker:   "tcp://127.0.0.1:1883",
		ClientID: "test-client",
		QoS:      1,
		Retain:   true,
	}, fake)

	require.NoError(t, c.Connect(t.Context()))
	assert.True(t, c.IsConnected())
	assert.Equal(t, "test-client", fake.opts.ClientID)
	assert.True(t, fake.opts.AutoReconnect)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ConnectionStatus), 0)

	require.NoError(t, c.Publish(t.Context(), "platescale/estimates", []byte(`{"ok":true}`)))
	require.Len(t, fake.messages, 1)
	assert.Equal(t, "platescale/estimates", fake.messages[0].topic)
	assert.Equal(t, byte(1), fake.messages[0].qos)
	assert.True(t, fake.messages[0].retained)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Messages), 0)

	c.Disconnect()
	assert.False(t, c.IsConnected())
	assert.Equal(t, 1, fake.disconnects)
	assert.InDelta(t, 0, testutil.ToFloat64(m.ConnectionStatus), 0)
}

func TestClient_ConnectErrors(t *testing.T) {
	t.Parallel()

	t.Run("invalid broker", func(t *testing.T) {
		t.Parallel()
		c, m := newFakeClient(t, Config{Broker: "::not-a-url"}, &fakePaho{})
		err := c.Connect(t.Context())
		assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
		assert.InDelta(t, 1, testutil.ToFloat64(m.Errors.WithLabelValues("connect")), 0)
	})

	t.Run("broker refuses", func(t *testing.T) {
		t.Parallel()
		fake := &fakePaho{connectErr: errors.NewStd("not authorized")}
		c, _ := newFakeClient(t, Config{Broker: "tcp://127.0.0.1:1883"}, fake)
		err := c.Connect(t.Context())
		assert.True(t, errors.IsCategory(err, errors.CategoryMQTTConnection))
		assert.False(t, c.IsConnected())
	})
}

func TestClient_PublishErrors(t *testing.T) {
	t.Parallel()

	t.Run("not connected", func(t *testing.T) {
		t.Parallel()
		c, m := newFakeClient(t, Config{Broker: "tcp://127.0.0.1:1883"}, &fakePaho{})
		err := c.Publish(t.Context(), "topic", []byte("x"))
		assert.True(t, errors.IsCategory(err, errors.CategoryMQTTConnection))
		assert.InDelta(t, 1, testutil.ToFloat64(m.Errors.WithLabelValues("publish")), 0)
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		fake := &fakePaho{publishPending: true}
		c, _ := newFakeClient(t, Config{Broker: "tcp://127.0.0.1:1883", PublishTimeout: 20 * time.Millisecond}, fake)
		require.NoError(t, c.Connect(t.Context()))
		err := c.Publish(t.Context(), "topic", []byte("x"))
		assert.True(t, errors.IsCategory(err, errors.CategoryMQTTPublish))
	})

	t.Run("context cancelled", func(t *testing.T) {
		t.Parallel()
		fake := &fakePaho{publishPending: true}
		c, _ := newFakeClient(t, Config{Broker: "tcp://127.0.0.1:1883"}, fake)
		require.NoError(t, c.Connect(t.Context()))
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		err := c.Publish(ctx, "topic", []byte("x"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPublisher(t *testing.T) {
	t.Parallel()

	fake := &fakePaho{}
	c, _ := newFakeClient(t, Config{Broker: "tcp://127.0.0.1:1883"}, fake)
	require.NoError(t, c.Connect(t.Context()))

	p := NewPublisher(c, "platescale/estimates", logger.Discard())
	assert.True(t, p.Enabled())
	require.NoError(t, p.PublishJSON(t.Context(), map[string]any{"outcome": "YOLO_USE_IMAGE_SIZE"}))

	require.Len(t, fake.messages, 1)
	var got map[string]any
	require.NoError(t, json.Unmarshal(fake.messages[0].payload, &got))
	assert.Equal(t, "YOLO_USE_IMAGE_SIZE", got["outcome"])

	p.Close()
	assert.False(t, c.IsConnected())
}

func TestPublisher_Disabled(t *testing.T) {
	t.Parallel()

	p, err := Start(t.Context(), Config{Enabled: false}, nil, logger.Discard())
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.PublishJSON(t.Context(), map[string]string{"a": "b"}))
	p.Close()

	var nilPublisher *Publisher
	assert.NoError(t, nilPublisher.PublishJSON(t.Context(), nil))
}
