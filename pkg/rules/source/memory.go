package source

import (
	"context"
	"sync"

	"forseti-hq/forseti/pkg/rules"
)

// MemorySource serves a fixed slice of definitions, useful for tests and
// embedded rule sets.
type MemorySource struct {
	mu   sync.RWMutex
	defs []rules.Definition
}

// NewMemorySource creates an in-memory definition source.
func NewMemorySource(defs ...rules.Definition) *MemorySource {
	return &MemorySource{defs: defs}
}

// Path returns the empty string; memory sources are not file-backed.
func (s *MemorySource) Path() string { return "" }

// Load returns a copy of the held definitions.
func (s *MemorySource) Load(context.Context) ([]rules.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rules.Definition, len(s.defs))
	copy(out, s.defs)
	return out, nil
}

// Replace swaps the held definitions, e.g. between manager reloads in a
// test.
func (s *MemorySource) Replace(defs ...rules.Definition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs = defs
}
