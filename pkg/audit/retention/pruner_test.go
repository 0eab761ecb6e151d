package retention

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"forseti-hq/forseti/pkg/audit"
	"forseti-hq/forseti/pkg/audit/storage"
)

func storeRecord(t *testing.T, s audit.Storage, recordedAt time.Time) {
	t.Helper()
	err := s.Store(context.Background(), &audit.Record{
		ID:         uuid.NewString(),
		SessionID:  "s-1",
		RecordedAt: recordedAt,
	})
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
}

func TestPruner_DeletesOldRecords(t *testing.T) {
	s := storage.NewMemoryStorage()
	now := time.Now()
	storeRecord(t, s, now.AddDate(0, 0, -100))
	storeRecord(t, s, now.AddDate(0, 0, -10))
	storeRecord(t, s, now)

	p := NewPruner(s, &Config{RetentionDays: 30})
	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted %d records, want 1", deleted)
	}

	count, _ := s.Count(context.Background())
	if count != 2 {
		t.Errorf("%d records remain, want 2", count)
	}
}

func TestPruner_RetentionDisabled(t *testing.T) {
	s := storage.NewMemoryStorage()
	storeRecord(t, s, time.Now().AddDate(-1, 0, 0))

	p := NewPruner(s, &Config{RetentionDays: 0})
	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted %d records with retention disabled", deleted)
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	p := NewPruner(storage.NewMemoryStorage(), &Config{
		RetentionDays: 30,
		PruneSchedule: "not a cron expression",
	})

	if err := p.Scheduler().Start(context.Background()); err == nil {
		t.Fatal("Start() with invalid cron expression must fail")
	}
}

func TestScheduler_EmptyScheduleIsIdle(t *testing.T) {
	p := NewPruner(storage.NewMemoryStorage(), &Config{RetentionDays: 30})
	p.config.PruneSchedule = ""

	if err := p.Scheduler().Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if p.Scheduler().IsRunning() {
		t.Error("scheduler running without a schedule")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	p := NewPruner(storage.NewMemoryStorage(), DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Scheduler().Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !p.Scheduler().IsRunning() {
		t.Fatal("scheduler not running after Start")
	}
	if p.Scheduler().NextRun() == nil {
		t.Error("NextRun() = nil while running")
	}

	cancel()
	deadline := time.After(2 * time.Second)
	for p.Scheduler().IsRunning() {
		select {
		case <-deadline:
			t.Fatal("scheduler still running after context cancel")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
