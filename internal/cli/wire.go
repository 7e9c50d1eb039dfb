package cli

import (
	"context"
	"fmt"
	"time"

	"casebot/internal/composer"
	"casebot/internal/config"
	"casebot/internal/embedding"
	"casebot/internal/embedding/hashing"
	"casebot/internal/embedding/ollama"
	"casebot/internal/embedding/openai"
	"casebot/internal/embedding/tfidf"
	"casebot/internal/factstore"
	"casebot/internal/factstore/jsonl"
	"casebot/internal/factstore/sqlite"
	"casebot/internal/logger"
	"casebot/internal/service"
)

func newBackend(cfg *config.AppConfig, log *logger.Logger) (factstore.Backend, error) {
	switch cfg.Store.Type {
	case "jsonl", "":
		return jsonl.New(cfg.Store.Path, log), nil
	case "sqlite":
		return sqlite.Open(cfg.Store.Path, log)
	default:
		return nil, fmt.Errorf("unknown store: %s", cfg.Store.Type)
	}
}

// newModel selects the embedder. Remote embedders learn their dimension from
// the first response; the configured dimension only sizes an empty index.
func newModel(cfg *config.AppConfig) (embedding.Model, error) {
	switch cfg.Embedder.Type {
	case "hashing", "":
		return hashing.NewEmbedder(cfg.Embedder.Dimension), nil
	case "tfidf":
		return tfidf.NewModel(), nil
	case "openai":
		oc := cfg.Embedder.OpenAI
		if oc == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		return openai.NewClient(openai.Config{
			BaseURL:     oc.BaseURL,
			APIKeyEnv:   oc.APIKeyEnv,
			Model:       oc.Model,
			Timeout:     time.Duration(oc.TimeoutSecs) * time.Second,
			BatchSize:   oc.BatchSize,
			Concurrency: oc.Concurrency,
		})
	case "ollama":
		oc := cfg.Embedder.Ollama
		if oc == nil {
			return nil, fmt.Errorf("ollama embedder config missing")
		}
		return ollama.New(ollama.Config{
			BaseURL: oc.BaseURL,
			Model:   oc.Model,
			Timeout: time.Duration(oc.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

// openService assembles the backend, embedder and composer and loads the
// first generation. The caller closes the returned backend.
func openService(ctx context.Context, cfg *config.AppConfig) (*service.RAGServiceImpl, factstore.Backend, error) {
	log := logger.New("service")
	backend, err := newBackend(cfg, logger.New("factstore"))
	if err != nil {
		return nil, nil, err
	}
	model, err := newModel(cfg)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	svc, err := service.NewRAGService(ctx, service.Options{
		Backend:           backend,
		Model:             model,
		Composer:          composer.New(composer.LabelsFor(cfg.Answer.Locale)),
		Logger:            log,
		FallbackDimension: cfg.Embedder.Dimension,
	})
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	return svc, backend, nil
}
