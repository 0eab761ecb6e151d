package config

import "time"

// Config is the complete forseti configuration.
type Config struct {
	// Engine contains inference loop configuration.
	Engine EngineConfig `yaml:"engine"`

	// Rules contains rule source configuration.
	Rules RulesConfig `yaml:"rules"`

	// Audit contains audit trail configuration.
	Audit AuditConfig `yaml:"audit"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig contains inference loop configuration.
type EngineConfig struct {
	// CycleLimit bounds the number of rule firings per session.
	// Default: 1000
	CycleLimit int `yaml:"cycle_limit"`
}

// RulesConfig contains rule source configuration.
type RulesConfig struct {
	// Path is the rule file or directory to load.
	// Default: "./rules.yaml"
	Path string `yaml:"path"`

	// Watch enables hot reload of rule files.
	// Default: false
	Watch bool `yaml:"watch"`

	// Schema declares the fact types rules may reference, with an
	// optional field list per type.
	Schema SchemaConfig `yaml:"schema"`
}

// SchemaConfig declares the fact type universe for declarative rules.
type SchemaConfig struct {
	FactTypes map[string][]string `yaml:"fact_types"`
}

// AuditConfig contains audit trail configuration.
type AuditConfig struct {
	// Enabled controls whether session results are recorded.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend selects the storage backend.
	// Options: "sqlite", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLitePath is the database file path for the sqlite backend.
	// Default: "data/audit.db"
	SQLitePath string `yaml:"sqlite_path"`

	// AsyncBuffer is the recorder's channel buffer size.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds a single storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// RetentionDays is how long records are kept. 0 keeps them forever.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`

	// RetentionSchedule is a cron expression for pruning runs.
	// Default: "0 3 * * *"
	RetentionSchedule string `yaml:"retention_schedule"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// ListenAddress is the address the metrics endpoint binds to.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// Namespace is the metric name prefix.
	// Default: "forseti"
	Namespace string `yaml:"namespace"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`
}
