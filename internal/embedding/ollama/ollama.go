package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	ollama "github.com/ollama/ollama/api"

	"casebot/internal/embedding"
)

// Embedder encodes text through a local Ollama server.
type Embedder struct {
	client    *ollama.Client
	model     string
	dimension atomic.Int64
}

var (
	_ embedding.Embedder = (*Embedder)(nil)
	_ embedding.Model    = (*Embedder)(nil)
)

// Config configures the Ollama embedder.
type Config struct {
	BaseURL   string
	Model     string
	Timeout   time.Duration
	Dimension int
}

// New creates an Ollama-backed embedder. BaseURL defaults to http://localhost:11434.
func New(cfg Config) (*Embedder, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "all-minilm"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	e := &Embedder{
		client: ollama.NewClient(parsed, &http.Client{Timeout: cfg.Timeout}),
		model:  cfg.Model,
	}
	e.dimension.Store(int64(cfg.Dimension))
	return e, nil
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "ollama" }

// Prepare returns e; the model lives on the server.
func (e *Embedder) Prepare(ctx context.Context, corpus []string) (embedding.Embedder, error) {
	return e, nil
}

// Dimension returns the configured or first observed embedding size.
func (e *Embedder) Dimension() int { return int(e.dimension.Load()) }

// Embed generates a unit-norm embedding for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	out, err := e.embed(ctx, text, 1)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch generates embeddings for texts using a single batch request.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	return e.embed(ctx, texts, len(texts))
}

func (e *Embedder) embed(ctx context.Context, input any, want int) ([][]float64, error) {
	resp, err := e.client.Embed(ctx, &ollama.EmbedRequest{
		Model: e.model,
		Input: input,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get embeddings from ollama: %w", err)
	}
	if len(resp.Embeddings) != want {
		return nil, errors.New("ollama returned wrong number of embeddings")
	}
	out := make([][]float64, len(resp.Embeddings))
	for i, raw := range resp.Embeddings {
		if len(raw) == 0 {
			return nil, errors.New("ollama returned an empty embedding")
		}
		e.dimension.CompareAndSwap(0, int64(len(raw)))
		if d := e.Dimension(); len(raw) != d {
			return nil, fmt.Errorf("%w: got %d, want %d", embedding.ErrDimension, len(raw), d)
		}
		out[i] = embedding.Normalize(embedding.Float32To64(raw))
	}
	return out, nil
}
