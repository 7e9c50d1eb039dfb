package embedding

import (
	"context"
	"errors"
	"math"
)

// ErrDimension is returned when an encoder produces a vector of unexpected length.
var ErrDimension = errors.New("embedding has unexpected dimension")

// Embedder converts free text into a unit-norm vector of fixed dimension.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// Model produces an Embedder for a given corpus.
// Stateless encoders return themselves; corpus-fitted encoders return a fresh
// instance so embedders already handed out keep working unchanged.
type Model interface {
	Name() string
	Prepare(ctx context.Context, corpus []string) (Embedder, error)
}

// Normalize scales v to unit L2 norm in place. A zero vector becomes the first basis vector.
func Normalize(v []float64) []float64 {
	if len(v) == 0 {
		return v
	}
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		for i := range v {
			v[i] = 0
		}
		v[0] = 1
		return v
	}
	for i := range v {
		v[i] /= norm
	}
	return v
}

// Float32To64 widens an embedding returned by a remote service.
func Float32To64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// EmbedEach encodes texts one at a time with e.Embed. Implementations without a
// native batch call use it for EmbedBatch.
func EmbedEach(ctx context.Context, e Embedder, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
