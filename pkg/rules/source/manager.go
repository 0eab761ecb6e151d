package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"forseti-hq/forseti/pkg/engine"
	"forseti-hq/forseti/pkg/rules"
)

// Manager compiles a source's definitions and holds the active rule set.
// Updates are copy-on-write: Current returns the set compiled by the last
// successful reload, and a failed reload leaves it untouched.
type Manager struct {
	source Source
	schema rules.Schema
	logger *slog.Logger

	mu       sync.RWMutex
	current  *engine.RuleSet
	loadTime time.Time
	reloads  int
	onReload func(ruleCount int, err error)
}

// NewManager creates a manager and performs the initial load. A source
// that fails to load or compile fails construction; after that, bad
// reloads only log.
func NewManager(src Source, schema rules.Schema, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		source: src,
		schema: schema,
		logger: logger.With("component", "rule_manager"),
	}
	if err := m.Reload(context.Background()); err != nil {
		return nil, err
	}
	return m, nil
}

// Current returns the active rule set.
func (m *Manager) Current() *engine.RuleSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Version returns the active rule set's fingerprint.
func (m *Manager) Version() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Version()
}

// LoadTime returns when the active set was compiled.
func (m *Manager) LoadTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadTime
}

// Reloads returns the number of successful loads, the initial one
// included.
func (m *Manager) Reloads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reloads
}

// SetOnReload registers a hook called after every reload attempt with the
// active rule count on success, or the failure. Set it before Watch starts.
func (m *Manager) SetOnReload(hook func(ruleCount int, err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReload = hook
}

func (m *Manager) notifyReload(ruleCount int, err error) {
	m.mu.RLock()
	hook := m.onReload
	m.mu.RUnlock()
	if hook != nil {
		hook(ruleCount, err)
	}
}

// Reload loads and compiles the source's definitions, swapping the active
// set on success.
func (m *Manager) Reload(ctx context.Context) error {
	defs, err := m.source.Load(ctx)
	if err != nil {
		err = fmt.Errorf("failed to load rule definitions: %w", err)
		m.notifyReload(0, err)
		return err
	}

	compiled, err := rules.Compile(defs, m.schema)
	if err != nil {
		err = fmt.Errorf("failed to compile rule definitions: %w", err)
		m.notifyReload(0, err)
		return err
	}

	m.mu.Lock()
	m.current = compiled
	m.loadTime = time.Now()
	m.reloads++
	m.mu.Unlock()

	m.logger.Info("rule set activated",
		"version", compiled.Version(),
		"rule_count", compiled.Len(),
	)
	m.notifyReload(compiled.Len(), nil)
	return nil
}

// Watch blocks watching the source's path for changes, reloading on each
// change until ctx is cancelled. A reload failure keeps the previous set
// and keeps watching. Sources without a path converge to waiting for ctx.
func (m *Manager) Watch(ctx context.Context) error {
	path := m.source.Path()
	if path == "" {
		<-ctx.Done()
		return nil
	}

	w, err := NewWatcher(path, m.logger)
	if err != nil {
		return err
	}
	defer w.Close()

	return w.Watch(ctx, func() {
		if err := m.Reload(ctx); err != nil {
			m.logger.Error("rule reload failed, keeping previous set",
				"error", err,
			)
		}
	})
}
