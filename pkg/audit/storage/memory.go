package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"forseti-hq/forseti/pkg/audit"
)

// MemoryStorage implements audit.Storage with an in-memory map. It is
// intended for tests and short-lived tooling; records do not survive the
// process.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[string]*audit.Record
}

// NewMemoryStorage creates an in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*audit.Record),
	}
}

// Store persists a record to memory.
func (s *MemoryStorage) Store(_ context.Context, rec *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

// Get returns the record with the given ID.
func (s *MemoryStorage) Get(_ context.Context, id string) (*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, &audit.NotFoundError{ID: id}
	}
	cp := *rec
	return &cp, nil
}

// Query returns records matching the query, most recent first.
func (s *MemoryStorage) Query(_ context.Context, q *audit.Query) ([]*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*audit.Record
	for _, rec := range s.records {
		if matches(rec, q) {
			cp := *rec
			results = append(results, &cp)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].RecordedAt.After(results[j].RecordedAt)
	})

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	start := q.Offset
	if start > len(results) {
		return nil, nil
	}
	end := start + limit
	if end > len(results) {
		end = len(results)
	}
	return results[start:end], nil
}

// Count returns the number of stored records.
func (s *MemoryStorage) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// DeleteOlderThan removes records recorded before the cutoff.
func (s *MemoryStorage) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, rec := range s.records {
		if rec.RecordedAt.Before(cutoff) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close is a no-op for memory storage.
func (s *MemoryStorage) Close() error { return nil }

func matches(rec *audit.Record, q *audit.Query) bool {
	if q == nil {
		return true
	}
	if q.SessionID != "" && rec.SessionID != q.SessionID {
		return false
	}
	if q.RuleSetVersion != "" && rec.RuleSetVersion != q.RuleSetVersion {
		return false
	}
	if q.TerminalState != "" && rec.TerminalState != q.TerminalState {
		return false
	}
	if !q.Since.IsZero() && rec.RecordedAt.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && rec.RecordedAt.After(q.Until) {
		return false
	}
	return true
}
