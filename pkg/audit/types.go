package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"forseti-hq/forseti/pkg/engine"
	"forseti-hq/forseti/pkg/facts"
)

// Record is the complete audit trail of one inference session.
type Record struct {
	// Identity
	ID        string `json:"id"` // UUID v4
	SessionID string `json:"session_id"`

	// Decision provenance
	RuleSetVersion string `json:"rule_set_version"`
	TerminalState  string `json:"terminal_state"`
	Cycles         int    `json:"cycles"`

	// What fired, in order.
	Firings []FiringRecord `json:"firings"`

	// FinalFacts is the live fact state at the terminal state.
	FinalFacts []FactRecord `json:"final_facts"`

	// Timing
	Duration   time.Duration `json:"duration"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// FiringRecord is one rule firing (or aborted activation) in a session.
type FiringRecord struct {
	Cycle       int      `json:"cycle"`
	Rule        string   `json:"rule"`
	Handles     []string `json:"handles"`
	Explanation string   `json:"explanation,omitempty"`
	Skipped     bool     `json:"skipped,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// FactRecord is one live fact in a session's final state.
type FactRecord struct {
	Handle  string         `json:"handle"`
	Type    string         `json:"type"`
	Version int            `json:"version"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// NewRecord captures an engine result as an audit record.
func NewRecord(res *engine.Result) *Record {
	rec := &Record{
		ID:             uuid.NewString(),
		SessionID:      res.SessionID,
		RuleSetVersion: res.RuleSetVersion,
		TerminalState:  res.TerminalState.String(),
		Cycles:         res.Cycles,
		Duration:       res.Duration,
		RecordedAt:     time.Now(),
	}

	for _, e := range res.Trace {
		handles := make([]string, len(e.Handles))
		for i, h := range e.Handles {
			handles[i] = h.String()
		}
		rec.Firings = append(rec.Firings, FiringRecord{
			Cycle:       e.Cycle,
			Rule:        e.Rule,
			Handles:     handles,
			Explanation: e.Explanation,
			Skipped:     e.Skipped,
			Error:       e.Error,
		})
	}

	for _, s := range res.FinalFacts {
		fr := FactRecord{
			Handle:  s.Handle.String(),
			Type:    s.Type(),
			Version: s.Version,
		}
		if g, ok := s.Value.(facts.Generic); ok {
			fr.Fields = g.Fields
		}
		rec.FinalFacts = append(rec.FinalFacts, fr)
	}

	return rec
}

// Query filters stored audit records. Zero values mean "no filter".
type Query struct {
	SessionID      string
	RuleSetVersion string
	TerminalState  string
	Since          time.Time
	Until          time.Time

	// Limit caps the result size; 0 applies the backend default of 100.
	Limit  int
	Offset int
}

// Storage persists audit records.
type Storage interface {
	// Store persists one record.
	Store(ctx context.Context, rec *Record) error

	// Get returns the record with the given ID.
	Get(ctx context.Context, id string) (*Record, error)

	// Query returns records matching the query, most recent first.
	Query(ctx context.Context, q *Query) ([]*Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)

	// DeleteOlderThan removes records recorded before the cutoff and
	// returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases the backend.
	Close() error
}
