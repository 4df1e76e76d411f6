package detector

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platescale/platescale/internal/errors"
	"github.com/platescale/platescale/internal/logger"
	"github.com/platescale/platescale/internal/observability/metrics"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) (*Client, *metrics.EstimationMetrics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m, err := metrics.NewEstimationMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	c, err := NewClient(Config{URL: srv.URL + "/detect", Timeout: timeout},
		WithLogger(logger.Discard()), WithMetrics(m))
	require.NoError(t, err)
	return c, m
}

func TestDetect(t *testing.T) {
	t.Parallel()

	c, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/detect", r.URL.Path)

		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		assert.NoError(t, err)
		assert.Equal(t, "multipart/form-data", mediaType)

		part, err := multipart.NewReader(r.Body, params["boundary"]).NextPart()
		assert.NoError(t, err)
		assert.Equal(t, "file", part.FormName())
		data, _ := io.ReadAll(part)
		assert.Equal(t, "fake-jpeg", string(data))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"labels":["pizza","plate"],"areas":[0.2,0.5]}`)
	}, time.Second)

	labels, areas, err := c.Detect(t.Context(), []byte("fake-jpeg"))
	require.NoError(t, err)
	assert.Equal(t, []string{"pizza", "plate"}, labels)
	assert.Equal(t, []float64{0.2, 0.5}, areas)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DetectorRequests.WithLabelValues("ok")), 0)
}

func TestDetect_EmptyScene(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}, time.Second)

	labels, areas, err := c.Detect(t.Context(), []byte("img"))
	require.NoError(t, err)
	assert.NotNil(t, labels)
	assert.Empty(t, labels)
	assert.Empty(t, areas)
}

func TestDetect_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		category errors.ErrorCategory
	}{
		{"server error", http.StatusInternalServerError, "model crashed", errors.CategoryDetection},
		{"malformed json", http.StatusOK, "{not json", errors.CategoryFileParsing},
		{"length mismatch", http.StatusOK, `{"labels":["pizza"],"areas":[]}`, errors.CategoryDetection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, m := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}, time.Second)

			_, _, err := c.Detect(t.Context(), []byte("img"))
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, tt.category), "got %v", err)
			assert.InDelta(t, 1, testutil.ToFloat64(m.DetectorRequests.WithLabelValues("error")), 0)
		})
	}
}

func TestDetect_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	c, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}, 50*time.Millisecond)
	defer close(release)

	_, _, err := c.Detect(t.Context(), []byte("img"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryTimeout), "got %v", err)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DetectorRequests.WithLabelValues("timeout")), 0)
}

func TestDetect_EmptyImage(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	}, time.Second)

	_, _, err := c.Detect(t.Context(), nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestHealth(t *testing.T) {
	t.Parallel()

	var unhealthy atomic.Bool
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}, time.Second)

	require.NoError(t, c.Health(t.Context()))
	unhealthy.Store(true)
	assert.Error(t, c.Health(t.Context()))
}

func TestNewClient_InvalidURL(t *testing.T) {
	t.Parallel()

	for _, u := range []string{"", "not a url", "/detect"} {
		_, err := NewClient(Config{URL: u})
		assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration), u)
	}
}
