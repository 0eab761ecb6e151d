package engine

import (
	"errors"
	"fmt"

	"forseti-hq/forseti/pkg/facts"
)

// Common sentinel errors
var (
	// ErrSessionAlreadyRun indicates Run was called twice on one session.
	// Sessions are single-shot: run, read out, discard.
	ErrSessionAlreadyRun = errors.New("session has already run")

	// ErrNilRuleSet indicates a session was created without a rule set.
	ErrNilRuleSet = errors.New("rule set cannot be nil")
)

// MalformedRuleSetError indicates structural problems detected when
// compiling a rule set. It is fatal: no session is ever created from a
// malformed set.
type MalformedRuleSetError struct {
	Errors []string
}

// Error returns the error message.
func (e *MalformedRuleSetError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("malformed rule set: %s", e.Errors[0])
	}
	return fmt.Sprintf("malformed rule set: %d errors: %v", len(e.Errors), e.Errors)
}

// StaleFactError indicates a rule action referenced a fact identity that
// was retracted earlier in the run. The activation is aborted and recorded
// in the trace; the session continues.
type StaleFactError struct {
	Handle facts.Handle
	Rule   string
}

// Error returns the error message.
func (e *StaleFactError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("rule %q: stale fact reference: %s", e.Rule, e.Handle)
	}
	return fmt.Sprintf("stale fact reference: %s", e.Handle)
}
