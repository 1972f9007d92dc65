// Package embedder turns text into fixed-length float32 vectors.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civicdocs/internal/config"
)

// ErrMalformedResponse is returned when a provider answers with the wrong
// number of vectors or with vectors of differing length.
var ErrMalformedResponse = errors.New("malformed embedding response")

// Embedder embeds a batch of texts. The result has the same length and order
// as the input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Model is the identifier stored alongside every vector.
	Model() string
}

// New builds the embedder selected by cfg.Provider.
func New(cfg config.EmbedderConfig) (Embedder, error) {
	switch cfg.Provider {
	case config.ProviderStub:
		return NewStub(cfg.Model, cfg.Dim, cfg.Seed), nil
	case config.ProviderOpenAI:
		e, err := NewOpenAIEmbedder(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.Model, seconds(cfg.OpenAI.TimeoutSecs))
		if err != nil {
			return nil, err
		}
		return e, nil
	case config.ProviderOllama:
		return NewOllamaEmbedder(cfg.Ollama.BaseURL, cfg.Model, seconds(cfg.Ollama.TimeoutSecs)), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.Provider)
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// validate checks that a provider returned one vector per input and that all
// vectors share a dimension.
func validate(want int, vectors [][]float32) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: expected %d embeddings, got %d", ErrMalformedResponse, want, len(vectors))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: embedding %d is empty", ErrMalformedResponse, i)
		}
		if len(v) != len(vectors[0]) {
			return fmt.Errorf("%w: embedding %d has dimension %d, expected %d",
				ErrMalformedResponse, i, len(v), len(vectors[0]))
		}
	}
	return nil
}
