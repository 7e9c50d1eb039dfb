package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AdminToken     string   `yaml:"admin_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// AskRate is the sustained /ask rate in requests per second; 0 disables limiting.
	AskRate     float64 `yaml:"ask_rate"`
	AskBurst    int     `yaml:"ask_burst"`
	DefaultTopK int     `yaml:"default_top_k"`
}

// StoreConfig selects and configures the fact backend.
type StoreConfig struct {
	Type            string `yaml:"type"`
	Path            string `yaml:"path"`
	Watch           bool   `yaml:"watch"`
	WatchDebounceMS int    `yaml:"watch_debounce_ms"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
}

// OllamaEmbedderConfig holds configuration for the Ollama embedder.
type OllamaEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	Dimension int                   `yaml:"dimension"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Ollama    *OllamaEmbedderConfig `yaml:"ollama,omitempty"`
}

// AnswerConfig configures answer composition.
type AnswerConfig struct {
	Locale string `yaml:"locale"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Answer   AnswerConfig   `yaml:"answer"`
	Log      LogConfig      `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	// Keys left out of the file keep their default; explicit empty values win.
	cfg := defaultConfig()
	cfg.Store.Path = "" // depends on store.type, filled below
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/casebot/config.yaml.
// If neither exists, it writes defaults to ~/.config/casebot/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnv(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the selected implementations exist.
func (c *AppConfig) Validate() error {
	switch c.Store.Type {
	case "jsonl", "sqlite":
	default:
		return fmt.Errorf("unknown store type %q", c.Store.Type)
	}
	switch c.Embedder.Type {
	case "hashing", "tfidf", "openai", "ollama":
	default:
		return fmt.Errorf("unknown embedder type %q", c.Embedder.Type)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "casebot", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Server: ServerConfig{
			Addr:           ":8080",
			AdminToken:     "change-me",
			AllowedOrigins: []string{"*"},
			AskRate:        20,
			AskBurst:       40,
			DefaultTopK:    6,
		},
		Store:    StoreConfig{Type: "jsonl", Path: "data/facts.jsonl", WatchDebounceMS: 250},
		Embedder: EmbedderConfig{Type: "hashing", Dimension: 384},
		Answer:   AnswerConfig{Locale: "en"},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	def := defaultConfig()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = def.Server.AllowedOrigins
	}
	if cfg.Server.AskBurst <= 0 {
		cfg.Server.AskBurst = max(1, int(cfg.Server.AskRate))
	}
	if cfg.Server.DefaultTopK <= 0 {
		cfg.Server.DefaultTopK = def.Server.DefaultTopK
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = def.Store.Type
	}
	if cfg.Store.Path == "" {
		if cfg.Store.Type == "sqlite" {
			cfg.Store.Path = "data/facts.db"
		} else {
			cfg.Store.Path = def.Store.Path
		}
	}
	if cfg.Store.WatchDebounceMS <= 0 {
		cfg.Store.WatchDebounceMS = def.Store.WatchDebounceMS
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = def.Embedder.Type
	}
	if cfg.Embedder.Dimension <= 0 {
		cfg.Embedder.Dimension = def.Embedder.Dimension
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
		if cfg.Embedder.OpenAI.Concurrency == 0 {
			cfg.Embedder.OpenAI.Concurrency = 4
		}
	}
	if cfg.Embedder.Type == "ollama" {
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaEmbedderConfig{}
		}
		if cfg.Embedder.Ollama.BaseURL == "" {
			cfg.Embedder.Ollama.BaseURL = "http://localhost:11434"
		}
		if cfg.Embedder.Ollama.Model == "" {
			cfg.Embedder.Ollama.Model = "all-minilm"
		}
		if cfg.Embedder.Ollama.TimeoutSecs == 0 {
			cfg.Embedder.Ollama.TimeoutSecs = 60
		}
	}
	if cfg.Answer.Locale == "" {
		cfg.Answer.Locale = def.Answer.Locale
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
}

// applyEnv lets deployment environment variables override file settings.
func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("DATA_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("CASEBOT_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v, ok := os.LookupEnv("ADMIN_TOKEN"); ok {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) > 0 {
			cfg.Server.AllowedOrigins = origins
		}
	}
	if v := os.Getenv("EMBED_MODEL"); v != "" {
		switch cfg.Embedder.Type {
		case "openai":
			if cfg.Embedder.OpenAI == nil {
				cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
			}
			cfg.Embedder.OpenAI.Model = v
		case "ollama":
			if cfg.Embedder.Ollama == nil {
				cfg.Embedder.Ollama = &OllamaEmbedderConfig{}
			}
			cfg.Embedder.Ollama.Model = v
		}
	}
}
