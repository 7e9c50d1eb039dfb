package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"casebot/internal/embedding"
)

// ErrNoEmbedding is returned when the service answers without usable vectors.
var ErrNoEmbedding = errors.New("no embedding returned")

// Client is an OpenAI-compatible embeddings client implementing the Embedder interface.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	client      *http.Client
	maxRetries  int
	batchSize   int
	concurrency int
	dimension   atomic.Int64
}

var (
	_ embedding.Embedder = (*Client)(nil)
	_ embedding.Model    = (*Client)(nil)
)

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Timeout     time.Duration
	BatchSize   int
	Concurrency int
	// Dimension, when set, is enforced on every response.
	Dimension int
	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: t}
	}
	c := &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      key,
		model:       cfg.Model,
		client:      hc,
		maxRetries:  5,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
	}
	c.dimension.Store(int64(cfg.Dimension))
	return c, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Prepare is not required for remote embedding; the dimension is learned from the first response.
func (c *Client) Prepare(ctx context.Context, corpus []string) (embedding.Embedder, error) {
	return c, nil
}

// Dimension returns the dimensionality of the produced embedding vectors,
// or 0 if it is not configured and no response has been seen yet.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	out, err := c.request(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch splits texts into batches and encodes them concurrently, preserving order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := c.request(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

type reqBody struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

func (c *Client) request(ctx context.Context, inputs []string) ([][]float64, error) {
	url := fmt.Sprintf("%s/embeddings", c.baseURL)
	data, err := json.Marshal(reqBody{Input: inputs, Model: c.model})
	if err != nil {
		return nil, err
	}
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, lastDelay(lastErr, attempt)); err != nil {
				return nil, err
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &retryableError{status: resp.Status, retryAfter: resp.Header.Get("Retry-After")}
			continue
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if resp.StatusCode >= 300 {
				return nil, fmt.Errorf("openai embeddings failed: %s: read body: %w", resp.Status, readErr)
			}
			lastErr = fmt.Errorf("read response body: %w", readErr)
			continue
		}
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("openai embeddings failed: %s: %s", resp.Status, bytes.TrimSpace(truncate(payload, 512)))
		}
		vecs, err := c.decode(payload, len(inputs))
		if err != nil {
			return nil, err
		}
		return vecs, nil
	}
	return nil, fmt.Errorf("openai embeddings failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) decode(payload []byte, want int) ([][]float64, error) {
	// Try OpenAI-compatible response first
	var openaiOut struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	var vecs [][]float64
	if err := json.Unmarshal(payload, &openaiOut); err == nil && len(openaiOut.Data) > 0 {
		sort.SliceStable(openaiOut.Data, func(i, j int) bool { return openaiOut.Data[i].Index < openaiOut.Data[j].Index })
		for _, d := range openaiOut.Data {
			vecs = append(vecs, d.Embedding)
		}
	} else {
		// Fallback to Ollama-native shape: { "embedding": [...] }
		var ollamaOut struct {
			Embedding []float64 `json:"embedding"`
		}
		if err := json.Unmarshal(payload, &ollamaOut); err == nil && len(ollamaOut.Embedding) > 0 {
			vecs = [][]float64{ollamaOut.Embedding}
		}
	}
	if len(vecs) != want {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", ErrNoEmbedding, len(vecs), want)
	}
	for i, v := range vecs {
		if len(v) == 0 {
			return nil, ErrNoEmbedding
		}
		c.dimension.CompareAndSwap(0, int64(len(v)))
		if d := c.Dimension(); len(v) != d {
			return nil, fmt.Errorf("%w: got %d, want %d", embedding.ErrDimension, len(v), d)
		}
		vecs[i] = embedding.Normalize(v)
	}
	return vecs, nil
}

type retryableError struct {
	status     string
	retryAfter string
}

func (e *retryableError) Error() string { return "openai embeddings failed: " + e.status }

func lastDelay(err error, attempt int) time.Duration {
	var re *retryableError
	if errors.As(err, &re) && re.retryAfter != "" {
		// Respect Retry-After if provided
		if secs, err := strconv.Atoi(re.retryAfter); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return retryDelay(attempt - 1)
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
