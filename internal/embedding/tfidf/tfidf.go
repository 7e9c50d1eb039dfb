package tfidf

import (
	"context"
	"math"
	"sort"

	"casebot/internal/embedding"
)

// Model fits TF-IDF embedders to a corpus.
type Model struct{}

var _ embedding.Model = Model{}

// NewModel creates a TF-IDF model.
func NewModel() Model { return Model{} }

// Name returns the identifier of this embedder implementation.
func (Model) Name() string { return "tfidf" }

// Prepare builds the vocabulary and IDF values from the provided corpus and
// returns an embedder bound to them.
func (Model) Prepare(ctx context.Context, corpus []string) (embedding.Embedder, error) {
	// Build vocabulary and document frequencies
	df := make(map[string]int)
	for _, text := range corpus {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seen := make(map[string]struct{})
		for _, tok := range embedding.Tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	// Create stable ordering for vocabulary
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	e := &Embedder{
		vocabulary: make(map[string]int, len(terms)),
		idf:        make([]float64, len(terms)+1),
		dimension:  len(terms) + 1,
	}
	N := float64(len(corpus))
	for i, term := range terms {
		e.vocabulary[term] = i + 1
		// Smoothed IDF
		e.idf[i+1] = math.Log((1+N)/(1+float64(df[term]))) + 1.0
	}
	return e, nil
}

// Embedder is a TF-IDF vectorizer fitted to one corpus. Row 0 is reserved for
// text that contains no vocabulary term. It is immutable and safe for concurrent use.
type Embedder struct {
	vocabulary map[string]int
	idf        []float64
	dimension  int
}

var _ embedding.Embedder = (*Embedder)(nil)

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Vocabulary returns the number of distinct terms the embedder knows.
func (e *Embedder) Vocabulary() int { return len(e.vocabulary) }

// Embed computes the TF-IDF embedding for the given text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vec := make([]float64, e.dimension)
	tf := make(map[int]int)
	total := 0
	for _, tok := range embedding.Tokenize(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		vec[0] = 1
		return vec, nil
	}
	for idx, count := range tf {
		tfv := float64(count) / float64(total)
		vec[idx] = tfv * e.idf[idx]
	}
	return embedding.Normalize(vec), nil
}

// EmbedBatch computes embeddings for all texts in order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	return embedding.EmbedEach(ctx, e, texts)
}
