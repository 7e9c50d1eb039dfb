package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model string `json:"model"`
			Input any    `json:"input"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var inputs []string
		switch in := req.Input.(type) {
		case string:
			inputs = []string{in}
		case []any:
			for _, v := range in {
				inputs = append(inputs, v.(string))
			}
		}
		embs := make([][]float32, len(inputs))
		for i, in := range inputs {
			embs[i] = []float32{float32(len(in)), 0, 0}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "embeddings": embs})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbed_NormalizesAndLearnsDimension(t *testing.T) {
	srv := newFakeOllama(t)
	e, err := New(Config{BaseURL: srv.URL, Model: "all-minilm"})
	require.NoError(t, err)
	assert.Equal(t, 0, e.Dimension())

	v, err := e.Embed(context.Background(), "abcd")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0}, v)
	assert.Equal(t, 3, e.Dimension())
}

func TestEmbedBatch(t *testing.T) {
	srv := newFakeOllama(t)
	e, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float64{1, 0, 0}, vecs[1])

	empty, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEmbed_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer srv.Close()

	e, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), "x")
	assert.Error(t, err)
}
