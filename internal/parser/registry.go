package parser

import (
	"path/filepath"
	"strings"
	"sync"
)

// Strategy is one way of extracting text from a file of a given format.
// Strategies for a format are tried in registration order.
type Strategy struct {
	Name    string
	Extract ExtractFunc
}

type formatSpec struct {
	format     Format
	strategies []Strategy
}

// Registry maps file extensions to formats and their ordered strategies.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]*formatSpec // extension (lowercase, without dot) → spec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]*formatSpec)}
}

// Register adds a format served by the given extensions and strategies.
// Registering an extension twice replaces the earlier entry.
func (r *Registry) Register(format Format, extensions []string, strategies ...Strategy) {
	spec := &formatSpec{format: format, strategies: strategies}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range extensions {
		r.specs[strings.ToLower(strings.TrimPrefix(ext, "."))] = spec
	}
}

func (r *Registry) lookup(path string) *formatSpec {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.specs[ext]
}

// Extensions returns the set of all registered file extensions (without dot).
func (r *Registry) Extensions() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make(map[string]bool, len(r.specs))
	for ext := range r.specs {
		exts[ext] = true
	}
	return exts
}
