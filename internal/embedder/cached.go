package embedder

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached memoizes single-text embeddings in an LRU keyed by text. It serves
// the query path, where the same search is often repeated from the TUI or an
// MCP client; batch ingestion uses the wrapped embedder directly.
type Cached struct {
	next  Embedder
	cache *lru.Cache[string, []float32]
}

// NewCached wraps next with an LRU of the given size.
func NewCached(next Embedder, size int) (*Cached, error) {
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Cached{next: next, cache: c}, nil
}

// Model returns the wrapped embedder's model.
func (c *Cached) Model() string { return c.next.Model() }

// Embed returns cached vectors where available and embeds the misses in one
// batch. Returned vectors must not be modified.
func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missIdx  []int
		missText []string
	)
	for i, t := range texts {
		if v, ok := c.cache.Get(t); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missText = append(missText, t)
	}
	if len(missText) == 0 {
		return out, nil
	}

	vecs, err := c.next.Embed(ctx, missText)
	if err != nil {
		return nil, err
	}
	if err := validate(len(missText), vecs); err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		c.cache.Add(missText[j], vecs[j])
	}
	return out, nil
}
