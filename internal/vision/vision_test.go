package vision

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platescale/platescale/internal/errors"
	"github.com/platescale/platescale/internal/logger"
	"github.com/platescale/platescale/internal/reference"
)

func newVisionServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(t.Context(), Config{APIKey: "test-key", Endpoint: srv.URL + "/", MaxResults: 5}, logger.Discard())
	require.NoError(t, err)
	return c
}

func TestClassify(t *testing.T) {
	t.Parallel()

	c := newVisionServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/images:annotate", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var req map[string]any
		assert.NoError(t, json.Unmarshal(body, &req))
		requests, _ := req["requests"].([]any)
		assert.Len(t, requests, 1)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"responses":[{"labelAnnotations":[
			{"description":"Food","score":0.98},
			{"description":"Pizza","score":0.95},
			{"description":"Cheese","score":0.9}]}]}`)
	})

	labels, err := c.Classify(t.Context(), []byte("jpeg bytes"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Food", "Pizza", "Cheese"}, labels)

	label, ok := FirstKnown(labels, reference.Default())
	assert.True(t, ok)
	assert.Equal(t, "pizza", label)
}

func TestClassify_ResponseError(t *testing.T) {
	t.Parallel()

	c := newVisionServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"responses":[{"error":{"code":3,"message":"Bad image data."}}]}`)
	})

	_, err := c.Classify(t.Context(), []byte("not an image"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryClassification))
	assert.Contains(t, err.Error(), "Bad image data.")
}

func TestClassify_HTTPError(t *testing.T) {
	t.Parallel()

	c := newVisionServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"code":403,"message":"API key not valid"}}`)
	})

	_, err := c.Classify(t.Context(), []byte("jpeg"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryClassification))
}

func TestClassify_EmptyImage(t *testing.T) {
	t.Parallel()

	c := newVisionServer(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	})
	_, err := c.Classify(t.Context(), nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestNewClient_RequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewClient(t.Context(), Config{}, logger.Discard())
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestFirstKnown(t *testing.T) {
	t.Parallel()

	table := reference.Default()
	label, ok := FirstKnown([]string{"Tableware", "Dish", "Omelette", "Apple"}, table)
	assert.True(t, ok)
	assert.Equal(t, "omelette", label)

	_, ok = FirstKnown([]string{"Tableware", "Cutlery"}, table)
	assert.False(t, ok)

	_, ok = FirstKnown(nil, table)
	assert.False(t, ok)
}
