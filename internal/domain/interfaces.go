package domain

import "context"

// Answer is the composed reply to a question.
type Answer struct {
	Text         string
	Count        int
	GenerationID string
	Hits         []Hit
}

// IngestResult reports the outcome of appending facts to the corpus.
type IngestResult struct {
	Added int
	Total int
}

// RAGService defines the operations exposed by the application core.
type RAGService interface {
	Ask(ctx context.Context, question string, topK int) (Answer, error)
	Retrieve(ctx context.Context, query string, topK int) ([]Hit, error)
	Ingest(ctx context.Context, facts []Fact) (IngestResult, error)
	Size() int
}
