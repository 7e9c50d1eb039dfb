package memory

import (
	"fmt"
	"sort"

	"casebot/internal/vectorstore"
)

// Index is an immutable in-memory vector index using brute-force inner product.
// Vectors are expected to be L2-normalized, which makes the score a cosine similarity.
type Index struct {
	dimension int
	vectors   [][]float64
}

var _ vectorstore.Index = (*Index)(nil)

// Build copies vectors into a new index. An empty vector set is valid.
func Build(dimension int, vectors [][]float64) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d: %w", dimension, vectorstore.ErrDimensionMismatch)
	}
	rows := make([][]float64, len(vectors))
	for i, v := range vectors {
		if len(v) != dimension {
			return nil, fmt.Errorf("row %d has %d components, want %d: %w", i, len(v), dimension, vectorstore.ErrDimensionMismatch)
		}
		rows[i] = append([]float64(nil), v...)
	}
	return &Index{dimension: dimension, vectors: rows}, nil
}

func (x *Index) Dimension() int { return x.dimension }

func (x *Index) Len() int { return len(x.vectors) }

// Search returns the min(k, Len()) rows most similar to query, by descending
// score with ties resolved by ascending row. It panics if query has the wrong dimension.
func (x *Index) Search(query []float64, k int) []vectorstore.Match {
	if len(query) != x.dimension {
		panic(fmt.Sprintf("memory index: query has %d components, index dimension is %d", len(query), x.dimension))
	}
	if k <= 0 || len(x.vectors) == 0 {
		return []vectorstore.Match{}
	}
	matches := make([]vectorstore.Match, len(x.vectors))
	for i := range x.vectors {
		matches[i] = vectorstore.Match{Row: i, Score: dot(x.vectors[i], query)}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k:k]
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
