package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casebot/internal/embedding"
)

type embeddingsRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// fakeServer answers each input with a 2-d vector whose first component is len(input).
func fakeServer(t *testing.T, hook func(w http.ResponseWriter) bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if hook != nil && hook(w) {
			return
		}
		var req embeddingsRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		type item struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		}
		data := make([]item, len(req.Input))
		for i, in := range req.Input {
			// reversed order to exercise index sorting
			data[len(req.Input)-1-i] = item{Index: i, Embedding: []float64{float64(len(in)), 1}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(t *testing.T, url string, batch int) *Client {
	t.Helper()
	t.Setenv("TEST_OPENAI_KEY", "test-key")
	c, err := NewClient(Config{BaseURL: url, APIKeyEnv: "TEST_OPENAI_KEY", BatchSize: batch, Concurrency: 2})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresKey(t *testing.T) {
	t.Setenv("TEST_MISSING_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "TEST_MISSING_KEY"})
	assert.Error(t, err)
}

func TestEmbedBatch_PreservesOrderAcrossBatches(t *testing.T) {
	srv, calls := fakeServer(t, nil)
	c := newTestClient(t, srv.URL, 2)

	texts := []string{"a", "bbb", "cc", "dddd", "eeeee"}
	vecs, err := c.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2, c.Dimension())

	for i, text := range texts {
		want := embedding.Normalize([]float64{float64(len(text)), 1})
		assert.InDeltaSlice(t, want, vecs[i], 1e-12)
	}
}

func TestEmbed_RetriesServerErrors(t *testing.T) {
	var failures atomic.Int32
	srv, calls := fakeServer(t, func(w http.ResponseWriter) bool {
		if failures.Add(1) <= 2 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return true
		}
		return false
	})
	c := newTestClient(t, srv.URL, 8)

	v, err := c.Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.Len(t, v, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbed_ClientErrorIsNotRetried(t *testing.T) {
	srv, calls := fakeServer(t, func(w http.ResponseWriter) bool {
		w.WriteHeader(http.StatusBadRequest)
		return true
	})
	c := newTestClient(t, srv.URL, 8)

	_, err := c.Embed(context.Background(), "abc")
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

// shortBody declares more bytes than it sends, so reading the response fails.
func shortBody(status int) func(w http.ResponseWriter) bool {
	return func(w http.ResponseWriter) bool {
		w.Header().Set("Content-Length", "64")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":`))
		return true
	}
}

func TestEmbed_ClientErrorReportsUnreadableBody(t *testing.T) {
	srv, calls := fakeServer(t, shortBody(http.StatusBadRequest))
	c := newTestClient(t, srv.URL, 8)

	_, err := c.Embed(context.Background(), "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "read body")
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbed_RetriesUnreadableSuccessBody(t *testing.T) {
	var attempts atomic.Int32
	srv, calls := fakeServer(t, func(w http.ResponseWriter) bool {
		if attempts.Add(1) == 1 {
			return shortBody(http.StatusOK)(w)
		}
		return false
	})
	c := newTestClient(t, srv.URL, 8)

	v, err := c.Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.Len(t, v, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbed_ClientErrorIncludesBody(t *testing.T) {
	srv, _ := fakeServer(t, func(w http.ResponseWriter) bool {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`))
		return true
	})
	c := newTestClient(t, srv.URL, 8)

	_, err := c.Embed(context.Background(), "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestEmbed_EnforcesConfiguredDimension(t *testing.T) {
	srv, _ := fakeServer(t, nil)
	t.Setenv("TEST_OPENAI_KEY", "test-key")
	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "TEST_OPENAI_KEY", Dimension: 3})
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "abc")
	assert.ErrorIs(t, err, embedding.ErrDimension)
}
