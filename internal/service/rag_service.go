// Package service owns the current corpus generation and answers retrieval,
// question and ingestion requests against it.
package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"casebot/internal/composer"
	"casebot/internal/domain"
	"casebot/internal/embedding"
	"casebot/internal/embedding/hashing"
	"casebot/internal/factstore"
	"casebot/internal/logger"
)

// ErrRebuild is returned when facts were persisted but the new generation
// could not be built. The previous generation stays installed.
var ErrRebuild = errors.New("rebuild generation")

// Options configures a Service.
type Options struct {
	Backend  factstore.Backend
	Model    embedding.Model
	Composer composer.Composer
	Logger   *logger.Logger
	// FallbackDimension sizes an empty index; defaults to 384.
	FallbackDimension int
}

// RAGServiceImpl serves reads from an atomically swapped Generation.
// Writers are serialized and build the next generation off to the side.
type RAGServiceImpl struct {
	backend     factstore.Backend
	model       embedding.Model
	composer    composer.Composer
	log         *logger.Logger
	fallbackDim int

	current atomic.Pointer[Generation]
	writeMu sync.Mutex
}

var _ domain.RAGService = (*RAGServiceImpl)(nil)

// NewRAGService loads the corpus from the backend and installs the first generation.
func NewRAGService(ctx context.Context, opts Options) (*RAGServiceImpl, error) {
	if opts.Backend == nil {
		return nil, errors.New("service: backend is required")
	}
	if opts.Model == nil {
		opts.Model = hashing.NewEmbedder(hashing.DefaultDimension)
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.FallbackDimension <= 0 {
		opts.FallbackDimension = hashing.DefaultDimension
	}
	s := &RAGServiceImpl{
		backend:     opts.Backend,
		model:       opts.Model,
		composer:    opts.Composer,
		log:         opts.Logger,
		fallbackDim: opts.FallbackDimension,
	}

	facts, err := s.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load facts from %s: %w", s.backend.Location(), err)
	}
	gen, err := s.rebuild(ctx, facts)
	if err != nil {
		return nil, err
	}
	s.current.Store(gen)
	return s, nil
}

// Current returns the installed generation.
func (s *RAGServiceImpl) Current() *Generation { return s.current.Load() }

// GenerationID returns the ID of the installed generation.
func (s *RAGServiceImpl) GenerationID() string { return s.current.Load().ID }

// Size returns the number of facts in the current generation.
func (s *RAGServiceImpl) Size() int { return s.current.Load().Len() }

// Retrieve returns up to topK facts most similar to query, best first.
func (s *RAGServiceImpl) Retrieve(ctx context.Context, query string, topK int) ([]domain.Hit, error) {
	return s.retrieveFrom(ctx, s.current.Load(), query, topK)
}

// Ask retrieves the topK best facts for question and composes them into an answer.
func (s *RAGServiceImpl) Ask(ctx context.Context, question string, topK int) (domain.Answer, error) {
	gen := s.current.Load()
	hits, err := s.retrieveFrom(ctx, gen, question, topK)
	if err != nil {
		return domain.Answer{}, err
	}
	return domain.Answer{
		Text:         s.composer.Compose(hits),
		Count:        len(hits),
		GenerationID: gen.ID,
		Hits:         hits,
	}, nil
}

// retrieveFrom runs Retrieve against a fixed generation so Ask reports the
// generation its hits came from.
func (s *RAGServiceImpl) retrieveFrom(ctx context.Context, gen *Generation, query string, topK int) ([]domain.Hit, error) {
	if gen.Len() == 0 || topK <= 0 {
		return []domain.Hit{}, nil
	}
	vec, err := gen.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) != gen.Index.Dimension() {
		return nil, fmt.Errorf("query has %d components, index has %d: %w", len(vec), gen.Index.Dimension(), embedding.ErrDimension)
	}
	matches := gen.Index.Search(vec, min(topK, gen.Len()))
	hits := make([]domain.Hit, len(matches))
	for i, m := range matches {
		hits[i] = domain.Hit{Score: m.Score, Row: m.Row, Fact: gen.Facts[m.Row]}
	}
	return hits, nil
}

// Ingest appends facts to the backend, reloads the corpus and installs a new
// generation. Persist errors wrap factstore.ErrPersist and leave the current
// generation untouched; failures after the append wrap ErrRebuild.
func (s *RAGServiceImpl) Ingest(ctx context.Context, facts []domain.Fact) (domain.IngestResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if len(facts) == 0 {
		return domain.IngestResult{Added: 0, Total: s.Size()}, nil
	}

	added, err := s.backend.Append(ctx, facts)
	if err != nil {
		s.log.WithError(err).Error("append facts failed")
		return domain.IngestResult{}, err
	}

	// The records are durable now; the caller going away must not leave the
	// installed generation behind the store.
	ctx = context.WithoutCancel(ctx)
	loaded, err := s.backend.Load(ctx)
	if err != nil {
		s.log.WithError(err).Error("reload after append failed")
		return domain.IngestResult{Added: added, Total: s.Size()}, fmt.Errorf("%w: reload: %v", ErrRebuild, err)
	}
	gen, err := s.rebuild(ctx, loaded)
	if err != nil {
		return domain.IngestResult{Added: added, Total: s.Size()}, fmt.Errorf("%w: %v", ErrRebuild, err)
	}
	s.current.Store(gen)

	s.log.WithFields(map[string]any{
		"added":      added,
		"total":      gen.Len(),
		"generation": gen.ID,
	}).Info("ingested facts")
	return domain.IngestResult{Added: added, Total: gen.Len()}, nil
}

// Reload re-reads the backend and installs a new generation if the facts
// changed. It reports whether a swap happened.
func (s *RAGServiceImpl) Reload(ctx context.Context) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	loaded, err := s.backend.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load facts from %s: %w", s.backend.Location(), err)
	}
	if cur := s.current.Load(); cur != nil && reflect.DeepEqual(nonNil(cur.Facts), nonNil(loaded)) {
		s.log.Debug("facts unchanged, keeping generation")
		return false, nil
	}
	gen, err := s.rebuild(ctx, loaded)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRebuild, err)
	}
	s.current.Store(gen)
	return true, nil
}

func (s *RAGServiceImpl) rebuild(ctx context.Context, facts []domain.Fact) (*Generation, error) {
	start := time.Now()
	gen, err := Build(ctx, s.model, facts, s.fallbackDim)
	if err != nil {
		s.log.WithError(err).WithField("facts", len(facts)).Error("generation build failed")
		return nil, err
	}
	s.log.WithFields(map[string]any{
		"generation": gen.ID,
		"facts":      gen.Len(),
		"dimension":  gen.Index.Dimension(),
		"embedder":   gen.Embedder.Name(),
		"duration":   time.Since(start).String(),
	}).Info("generation built")
	return gen, nil
}

func nonNil(facts []domain.Fact) []domain.Fact {
	if facts == nil {
		return []domain.Fact{}
	}
	return facts
}
