package embedder

import (
	"context"
	"math/rand/v2"
)

// Stub produces pseudo-random normal vectors from a fixed seed. The generator
// is re-seeded on every call, so vector i of any batch is always the same
// regardless of the text: useful offline, meaningless for relevance.
type Stub struct {
	model string
	dim   int
	seed  uint64
}

// NewStub creates a stub embedder producing dim-length vectors.
func NewStub(model string, dim int, seed uint64) *Stub {
	return &Stub{model: model, dim: dim, seed: seed}
}

// Model returns the configured model name.
func (s *Stub) Model() string { return s.model }

// Embed returns len(texts) vectors drawn from N(0, 1).
func (s *Stub) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(s.seed, s.seed))
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, s.dim)
		for j := range v {
			v[j] = float32(rng.NormFloat64())
		}
		out[i] = v
	}
	return out, nil
}
