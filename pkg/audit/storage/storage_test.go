package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"forseti-hq/forseti/pkg/audit"
)

func testRecord(sessionID string, recordedAt time.Time) *audit.Record {
	return &audit.Record{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		RuleSetVersion: "v1",
		TerminalState:  "converged",
		Cycles:         2,
		Firings: []audit.FiringRecord{
			{Cycle: 1, Rule: "large", Handles: []string{"fact#1"}, Explanation: "amount exceeds 10000"},
		},
		FinalFacts: []audit.FactRecord{
			{Handle: "fact#1", Type: "Transaction", Version: 1, Fields: map[string]any{"amount": 12500.0}},
		},
		Duration:   10 * time.Millisecond,
		RecordedAt: recordedAt,
	}
}

// storageUnderTest runs the same contract tests against every backend.
func storageUnderTest(t *testing.T) map[string]audit.Storage {
	sqlite, err := NewSQLiteStorage(&SQLiteConfig{
		Path:         filepath.Join(t.TempDir(), "audit.db"),
		MaxOpenConns: 2,
		WALMode:      true,
		BusyTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	return map[string]audit.Storage{
		"memory": NewMemoryStorage(),
		"sqlite": sqlite,
	}
}

func TestStorage_StoreAndGet(t *testing.T) {
	for name, s := range storageUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			ctx := context.Background()

			rec := testRecord("s-1", time.Now())
			if err := s.Store(ctx, rec); err != nil {
				t.Fatalf("Store() error = %v", err)
			}

			got, err := s.Get(ctx, rec.ID)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.SessionID != "s-1" || got.TerminalState != "converged" || got.Cycles != 2 {
				t.Errorf("got %+v", got)
			}
			if len(got.Firings) != 1 || got.Firings[0].Rule != "large" {
				t.Errorf("firings = %+v", got.Firings)
			}
			if len(got.FinalFacts) != 1 || got.FinalFacts[0].Type != "Transaction" {
				t.Errorf("final facts = %+v", got.FinalFacts)
			}
			if got.Duration != 10*time.Millisecond {
				t.Errorf("duration = %v", got.Duration)
			}
		})
	}
}

func TestStorage_GetMissing(t *testing.T) {
	for name, s := range storageUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()

			_, err := s.Get(context.Background(), "nope")
			var nf *audit.NotFoundError
			if !errors.As(err, &nf) {
				t.Errorf("Get() error = %v, want *NotFoundError", err)
			}
		})
	}
}

func TestStorage_QueryFilters(t *testing.T) {
	for name, s := range storageUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			ctx := context.Background()
			now := time.Now()

			for _, rec := range []*audit.Record{
				testRecord("s-1", now.Add(-2*time.Hour)),
				testRecord("s-1", now.Add(-time.Hour)),
				testRecord("s-2", now),
			} {
				if err := s.Store(ctx, rec); err != nil {
					t.Fatalf("Store() error = %v", err)
				}
			}

			bySession, err := s.Query(ctx, &audit.Query{SessionID: "s-1"})
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(bySession) != 2 {
				t.Errorf("session filter returned %d records, want 2", len(bySession))
			}

			recent, err := s.Query(ctx, &audit.Query{Since: now.Add(-30 * time.Minute)})
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(recent) != 1 || recent[0].SessionID != "s-2" {
				t.Errorf("since filter returned %+v", recent)
			}

			limited, err := s.Query(ctx, &audit.Query{Limit: 2})
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(limited) != 2 {
				t.Errorf("limit 2 returned %d records", len(limited))
			}
			// Most recent first.
			if limited[0].SessionID != "s-2" {
				t.Errorf("first record session = %q, want s-2", limited[0].SessionID)
			}
		})
	}
}

func TestStorage_CountAndDelete(t *testing.T) {
	for name, s := range storageUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			ctx := context.Background()
			now := time.Now()

			old := testRecord("s-old", now.AddDate(0, 0, -100))
			fresh := testRecord("s-new", now)
			for _, rec := range []*audit.Record{old, fresh} {
				if err := s.Store(ctx, rec); err != nil {
					t.Fatalf("Store() error = %v", err)
				}
			}

			count, err := s.Count(ctx)
			if err != nil || count != 2 {
				t.Fatalf("Count() = %d, %v, want 2", count, err)
			}

			deleted, err := s.DeleteOlderThan(ctx, now.AddDate(0, 0, -90))
			if err != nil {
				t.Fatalf("DeleteOlderThan() error = %v", err)
			}
			if deleted != 1 {
				t.Errorf("deleted %d records, want 1", deleted)
			}

			if _, err := s.Get(ctx, fresh.ID); err != nil {
				t.Errorf("recent record removed: %v", err)
			}
			if _, err := s.Get(ctx, old.ID); err == nil {
				t.Error("old record survived pruning")
			}
		})
	}
}
