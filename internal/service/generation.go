package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"casebot/internal/domain"
	"casebot/internal/embedding"
	"casebot/internal/vectorstore"
	"casebot/internal/vectorstore/memory"
)

// Generation is one immutable snapshot of the corpus: the facts, the embedder
// fitted to them and the index over their embeddings. Row i of Index is Facts[i].
type Generation struct {
	ID       string
	BuiltAt  time.Time
	Facts    []domain.Fact
	Embedder embedding.Embedder
	Index    vectorstore.Index
}

// Len returns the number of facts in the generation.
func (g *Generation) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Facts)
}

// Build fits model to facts, encodes every fact and indexes the result.
// fallbackDim sizes the index when there are no facts and the embedder cannot
// report a dimension on its own.
func Build(ctx context.Context, model embedding.Model, facts []domain.Fact, fallbackDim int) (*Generation, error) {
	corpus := make([]string, len(facts))
	for i, f := range facts {
		corpus[i] = f.Canonical()
	}

	emb, err := model.Prepare(ctx, corpus)
	if err != nil {
		return nil, fmt.Errorf("prepare %s embedder: %w", model.Name(), err)
	}

	var vectors [][]float64
	if len(corpus) > 0 {
		vectors, err = emb.EmbedBatch(ctx, corpus)
		if err != nil {
			return nil, fmt.Errorf("embed %d facts: %w", len(corpus), err)
		}
		if len(vectors) != len(corpus) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d facts: %w", len(vectors), len(corpus), embedding.ErrDimension)
		}
	}

	dim := 0
	switch {
	case len(vectors) > 0:
		dim = len(vectors[0])
	case emb.Dimension() > 0:
		dim = emb.Dimension()
	default:
		dim = fallbackDim
	}
	index, err := memory.Build(dim, vectors)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	return &Generation{
		ID:       uuid.NewString(),
		BuiltAt:  time.Now(),
		Facts:    append([]domain.Fact(nil), facts...),
		Embedder: emb,
		Index:    index,
	}, nil
}
