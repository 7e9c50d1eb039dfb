// Package hashing implements a deterministic, offline text encoder based on
// signed feature hashing of word unigrams and bigrams.
package hashing

import (
	"context"
	"hash/fnv"
	"strings"

	"casebot/internal/embedding"
)

// DefaultDimension matches the output size of common sentence-embedding models.
const DefaultDimension = 384

const bigramWeight = 0.5

// Embedder maps text into a fixed-size space by hashing its tokens.
// It needs no corpus preparation and is safe for concurrent use.
type Embedder struct {
	dimension int
}

var (
	_ embedding.Embedder = (*Embedder)(nil)
	_ embedding.Model    = (*Embedder)(nil)
)

// NewEmbedder creates a hashing embedder. Non-positive dimensions fall back to DefaultDimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Prepare returns e; hashing has no corpus state.
func (e *Embedder) Prepare(ctx context.Context, corpus []string) (embedding.Embedder, error) {
	return e, nil
}

// Embed computes the hashed embedding of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return e.vector(text), nil
}

// EmbedBatch computes embeddings for all texts in order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *Embedder) vector(text string) []float64 {
	vec := make([]float64, e.dimension)
	tokens := embedding.Tokenize(text)
	if len(tokens) == 0 {
		// No words: place the whole string in one bucket so distinct inputs stay distinct.
		bucket, _ := e.slot(strings.ToLower(strings.TrimSpace(text)))
		vec[bucket] = 1
		return vec
	}
	for i, tok := range tokens {
		e.add(vec, tok, 1)
		if i > 0 {
			e.add(vec, tokens[i-1]+" "+tok, bigramWeight)
		}
	}
	return embedding.Normalize(vec)
}

func (e *Embedder) add(vec []float64, feature string, weight float64) {
	bucket, sign := e.slot(feature)
	vec[bucket] += sign * weight
}

func (e *Embedder) slot(feature string) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	sign := 1.0
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(e.dimension)), sign
}
