package config

import (
	"fmt"
	"strings"
)

// FieldError represents a validation error for a specific configuration
// field.
type FieldError struct {
	// Field is the dotted path to the field (e.g., "audit.backend").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every validation problem in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks the configuration, returning a *ValidationError listing
// every problem, or nil when valid.
func Validate(cfg *Config) error {
	var errs []FieldError
	add := func(field, format string, args ...any) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.Engine.CycleLimit < 1 {
		add("engine.cycle_limit", "must be at least 1, got %d", cfg.Engine.CycleLimit)
	}

	if cfg.Rules.Path == "" {
		add("rules.path", "must not be empty")
	}

	switch cfg.Audit.Backend {
	case "sqlite":
		if cfg.Audit.SQLitePath == "" {
			add("audit.sqlite_path", "must not be empty for the sqlite backend")
		}
	case "memory":
	default:
		add("audit.backend", "unknown backend %q (want sqlite or memory)", cfg.Audit.Backend)
	}
	if cfg.Audit.AsyncBuffer < 1 {
		add("audit.async_buffer", "must be at least 1, got %d", cfg.Audit.AsyncBuffer)
	}
	if cfg.Audit.WriteTimeout <= 0 {
		add("audit.write_timeout", "must be positive, got %s", cfg.Audit.WriteTimeout)
	}
	if cfg.Audit.RetentionDays < 0 {
		add("audit.retention_days", "must not be negative, got %d", cfg.Audit.RetentionDays)
	}

	if cfg.Metrics.Enabled {
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			add("metrics.path", "must start with /, got %q", cfg.Metrics.Path)
		}
		if cfg.Metrics.ListenAddress == "" {
			add("metrics.listen_address", "must not be empty when metrics are enabled")
		}
		if cfg.Metrics.Namespace == "" {
			add("metrics.namespace", "must not be empty when metrics are enabled")
		}
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level", "unknown level %q (want debug, info, warn or error)", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		add("logging.format", "unknown format %q (want json or text)", cfg.Logging.Format)
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}
