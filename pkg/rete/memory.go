package rete

import "forseti-hq/forseti/pkg/facts"

// factMemory stores the snapshots that passed a node's test, in arrival
// order. Ordered iteration keeps join output and hence conflict resolution
// deterministic for identical input sequences.
type factMemory struct {
	index map[string]int
	items []facts.Snapshot
}

func newFactMemory() *factMemory {
	return &factMemory{index: make(map[string]int)}
}

// Assert adds a snapshot; returns false if it was already present.
func (m *factMemory) Assert(s facts.Snapshot) bool {
	key := s.Key()
	if _, ok := m.index[key]; ok {
		return false
	}
	m.index[key] = len(m.items)
	m.items = append(m.items, s)
	return true
}

// Retract removes a snapshot; returns false if it was not present.
func (m *factMemory) Retract(s facts.Snapshot) bool {
	key := s.Key()
	pos, ok := m.index[key]
	if !ok {
		return false
	}
	delete(m.index, key)
	m.items = append(m.items[:pos], m.items[pos+1:]...)
	for i := pos; i < len(m.items); i++ {
		m.index[m.items[i].Key()] = i
	}
	return true
}

// Items returns the stored snapshots in arrival order. Callers must not
// mutate the memory while iterating.
func (m *factMemory) Items() []facts.Snapshot { return m.items }

func (m *factMemory) Len() int { return len(m.items) }

// tokenMemory is the token-side counterpart of factMemory.
type tokenMemory struct {
	index map[string]int
	items []Token
}

func newTokenMemory() *tokenMemory {
	return &tokenMemory{index: make(map[string]int)}
}

func (m *tokenMemory) Assert(t Token) bool {
	if _, ok := m.index[t.Key()]; ok {
		return false
	}
	m.index[t.Key()] = len(m.items)
	m.items = append(m.items, t)
	return true
}

func (m *tokenMemory) Retract(t Token) bool {
	pos, ok := m.index[t.Key()]
	if !ok {
		return false
	}
	delete(m.index, t.Key())
	m.items = append(m.items[:pos], m.items[pos+1:]...)
	for i := pos; i < len(m.items); i++ {
		m.index[m.items[i].Key()] = i
	}
	return true
}

func (m *tokenMemory) Items() []Token { return m.items }

func (m *tokenMemory) Len() int { return len(m.items) }
