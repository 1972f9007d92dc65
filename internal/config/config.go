package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Embedding provider selectors.
const (
	ProviderStub   = "stub"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Defaults applied when neither the config file nor the environment sets a value.
const (
	DefaultDBPath    = "civicdocs.db"
	DefaultProvider  = ProviderStub
	DefaultDim       = 1536
	DefaultModel     = "text-embedding-3-small"
	DefaultSeed      = 42
	DefaultMaxChars  = 1400
	DefaultOverlap   = 120
	DefaultBatchSize = 128
	DefaultLogLevel  = "info"
)

// ErrUnknownProvider is returned by Validate for an unrecognized embedding provider.
var ErrUnknownProvider = errors.New("unknown embedding provider")

// OpenAIConfig configures the OpenAI-compatible embeddings endpoint.
type OpenAIConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"-"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// OllamaConfig configures an Ollama /api/embed endpoint.
type OllamaConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	Provider string       `yaml:"provider"`
	Dim      int          `yaml:"dim"`
	Model    string       `yaml:"model"`
	Seed     uint64       `yaml:"seed"`
	OpenAI   OpenAIConfig `yaml:"openai"`
	Ollama   OllamaConfig `yaml:"ollama"`
}

// ChunkerConfig holds the default chunking parameters for ingestion. An
// explicit overlap of 0 disables overlap.
type ChunkerConfig struct {
	MaxChars int `yaml:"max_chars"`
	Overlap  int `yaml:"overlap"`
}

// Config is the process-wide configuration, resolved once at start-up.
type Config struct {
	DBPath    string         `yaml:"db_path"`
	LogLevel  string         `yaml:"log_level"`
	BatchSize int            `yaml:"batch_size"`
	Embedder  EmbedderConfig `yaml:"embedder"`
	Chunker   ChunkerConfig  `yaml:"chunker"`
}

// Default returns a configuration populated with built-in defaults.
func Default() *Config {
	cfg := newConfig()
	applyDefaults(cfg)
	return cfg
}

// newConfig presets the fields whose zero value is a valid setting, so YAML
// can override them with zero.
func newConfig() *Config {
	return &Config{Chunker: ChunkerConfig{Overlap: DefaultOverlap}}
}

// Load resolves the configuration: defaults, then the YAML file at path (if it
// exists), then a .env file in the working directory, then the process
// environment. An empty path skips the YAML step.
func Load(path string) (*Config, error) {
	cfg := newConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Validate reports configuration errors that must abort the run.
func (c *Config) Validate() error {
	switch c.Embedder.Provider {
	case ProviderStub, ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Embedder.Provider)
	}
	if c.Embedder.Dim <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedder.Dim)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("CIVICDOCS_DB", &cfg.DBPath)
	str("CIVICDOCS_LOG_LEVEL", &cfg.LogLevel)
	str("CIVICDOCS_EMBED_PROVIDER", &cfg.Embedder.Provider)
	str("CIVICDOCS_EMBED_MODEL", &cfg.Embedder.Model)
	str("CIVICDOCS_OPENAI_BASE_URL", &cfg.Embedder.OpenAI.BaseURL)
	str("OPENAI_API_KEY", &cfg.Embedder.OpenAI.APIKey)
	str("CIVICDOCS_OLLAMA_URL", &cfg.Embedder.Ollama.BaseURL)
	if err := num("CIVICDOCS_EMBED_DIM", &cfg.Embedder.Dim); err != nil {
		return err
	}
	if err := num("CIVICDOCS_BATCH_SIZE", &cfg.BatchSize); err != nil {
		return err
	}
	cfg.Embedder.Provider = strings.ToLower(strings.TrimSpace(cfg.Embedder.Provider))
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Embedder.Provider == "" {
		cfg.Embedder.Provider = DefaultProvider
	}
	if cfg.Embedder.Dim == 0 {
		cfg.Embedder.Dim = DefaultDim
	}
	if cfg.Embedder.Seed == 0 {
		cfg.Embedder.Seed = DefaultSeed
	}
	if cfg.Embedder.Model == "" {
		switch cfg.Embedder.Provider {
		case ProviderOllama:
			cfg.Embedder.Model = "nomic-embed-text"
		default:
			cfg.Embedder.Model = DefaultModel
		}
	}
	if cfg.Embedder.OpenAI.BaseURL == "" {
		cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedder.Ollama.BaseURL == "" {
		cfg.Embedder.Ollama.BaseURL = "http://localhost:11434"
	}
	if cfg.Chunker.MaxChars == 0 {
		cfg.Chunker.MaxChars = DefaultMaxChars
	}
}
