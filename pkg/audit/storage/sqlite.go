package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"forseti-hq/forseti/pkg/audit"
)

// SchemaVersion is the current audit schema version.
const SchemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS audit_records (
	id               TEXT PRIMARY KEY,
	session_id       TEXT NOT NULL,
	rule_set_version TEXT NOT NULL,
	terminal_state   TEXT NOT NULL,
	cycles           INTEGER NOT NULL,
	firings          TEXT NOT NULL,
	final_facts      TEXT NOT NULL,
	duration_us      INTEGER NOT NULL,
	recorded_at      TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_session ON audit_records(session_id);
CREATE INDEX IF NOT EXISTS idx_audit_recorded ON audit_records(recorded_at);
`

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/audit.db",
		MaxOpenConns: 10,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements audit.Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage creates a SQLite storage backend, initializing the
// schema and enabling WAL mode if configured.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: slog.Default().With("component", "audit.storage.sqlite"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("SQLite audit storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return audit.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return audit.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(schema); err != nil {
		return audit.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (?)", SchemaVersion); err != nil {
		return audit.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return audit.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return audit.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Store persists an audit record.
func (s *SQLiteStorage) Store(ctx context.Context, rec *audit.Record) error {
	firings, err := json.Marshal(rec.Firings)
	if err != nil {
		return audit.NewStorageError("sqlite", "marshal_firings", err)
	}
	finalFacts, err := json.Marshal(rec.FinalFacts)
	if err != nil {
		return audit.NewStorageError("sqlite", "marshal_facts", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_records (
			id, session_id, rule_set_version, terminal_state, cycles,
			firings, final_facts, duration_us, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.RuleSetVersion, rec.TerminalState, rec.Cycles,
		string(firings), string(finalFacts), rec.Duration.Microseconds(), rec.RecordedAt,
	)
	if err != nil {
		return audit.NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Get returns the record with the given ID.
func (s *SQLiteStorage) Get(ctx context.Context, id string) (*audit.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, rule_set_version, terminal_state, cycles,
		       firings, final_facts, duration_us, recorded_at
		FROM audit_records WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, &audit.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "get", err)
	}
	return rec, nil
}

// Query returns records matching the query, most recent first.
func (s *SQLiteStorage) Query(ctx context.Context, q *audit.Query) ([]*audit.Record, error) {
	var (
		where []string
		args  []any
	)
	if q.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, q.SessionID)
	}
	if q.RuleSetVersion != "" {
		where = append(where, "rule_set_version = ?")
		args = append(args, q.RuleSetVersion)
	}
	if q.TerminalState != "" {
		where = append(where, "terminal_state = ?")
		args = append(args, q.TerminalState)
	}
	if !q.Since.IsZero() {
		where = append(where, "recorded_at >= ?")
		args = append(args, q.Since)
	}
	if !q.Until.IsZero() {
		where = append(where, "recorded_at <= ?")
		args = append(args, q.Until)
	}

	query := `
		SELECT id, session_id, rule_set_version, terminal_state, cycles,
		       firings, final_facts, duration_us, recorded_at
		FROM audit_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY recorded_at DESC"

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT %d", limit)
	if q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	var records []*audit.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, audit.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", "rows", err)
	}
	return records, nil
}

// Count returns the number of stored records.
func (s *SQLiteStorage) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_records").Scan(&count); err != nil {
		return 0, audit.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// DeleteOlderThan removes records recorded before the cutoff.
func (s *SQLiteStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM audit_records WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "delete", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "rows_affected", err)
	}
	return deleted, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// scanner abstracts sql.Row and sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*audit.Record, error) {
	var (
		rec        audit.Record
		firings    string
		finalFacts string
		durationUS int64
	)
	err := sc.Scan(
		&rec.ID, &rec.SessionID, &rec.RuleSetVersion, &rec.TerminalState, &rec.Cycles,
		&firings, &finalFacts, &durationUS, &rec.RecordedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(firings), &rec.Firings); err != nil {
		return nil, fmt.Errorf("corrupt firings column: %w", err)
	}
	if err := json.Unmarshal([]byte(finalFacts), &rec.FinalFacts); err != nil {
		return nil, fmt.Errorf("corrupt final_facts column: %w", err)
	}
	rec.Duration = time.Duration(durationUS) * time.Microsecond
	return &rec, nil
}
