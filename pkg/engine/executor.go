package engine

import (
	"context"
	"fmt"
	"strings"

	"forseti-hq/forseti/pkg/facts"
)

// opKind classifies a buffered working memory operation.
type opKind int

const (
	opInsert opKind = iota
	opUpdate
	opRetract
)

type pendingOp struct {
	kind   opKind
	handle facts.Handle
	fact   facts.Fact
}

// ActionContext is what a rule's right-hand side executes against: the
// bound facts of the activation plus buffered access to the fact store.
//
// Mutations are buffered and applied only after the action returns
// successfully, so one action runs to completion against a consistent
// snapshot before the matching network re-evaluates anything, and an
// aborted action leaves working memory untouched.
type ActionContext struct {
	ctx     context.Context
	session *Session
	act     *Activation

	pending  []pendingOp
	retracts map[facts.Handle]struct{}
	notes    []string
}

func newActionContext(ctx context.Context, s *Session, act *Activation) *ActionContext {
	return &ActionContext{
		ctx:      ctx,
		session:  s,
		act:      act,
		retracts: make(map[facts.Handle]struct{}),
	}
}

// Context returns the run's context, for actions that consult deadlines.
func (a *ActionContext) Context() context.Context { return a.ctx }

// Rule returns the firing rule's name.
func (a *ActionContext) Rule() string { return a.act.Rule.Name }

// Bindings returns the activation's bound snapshots in condition order.
func (a *ActionContext) Bindings() []facts.Snapshot { return a.act.Token.Snapshots() }

// Binding returns the i-th bound snapshot.
func (a *ActionContext) Binding(i int) facts.Snapshot { return a.act.Token.Snapshots()[i] }

// Get reads the current snapshot of a handle. Reads see the store as it
// was when the action started; mutations buffered by this action are not
// visible.
func (a *ActionContext) Get(h facts.Handle) (facts.Snapshot, error) {
	return a.session.store.Get(h)
}

// Scan returns the live snapshots of a fact type, insertion-ordered.
func (a *ActionContext) Scan(factType string) []facts.Snapshot {
	return a.session.store.Scan(factType)
}

// Insert buffers the insertion of a new fact.
func (a *ActionContext) Insert(f facts.Fact) {
	a.pending = append(a.pending, pendingOp{kind: opInsert, fact: f})
}

// Update buffers the replacement of the fact bound to a handle.
func (a *ActionContext) Update(h facts.Handle, f facts.Fact) error {
	if err := a.checkLive(h); err != nil {
		return err
	}
	a.pending = append(a.pending, pendingOp{kind: opUpdate, handle: h, fact: f})
	return nil
}

// Retract buffers the removal of the fact bound to a handle.
func (a *ActionContext) Retract(h facts.Handle) error {
	if err := a.checkLive(h); err != nil {
		return err
	}
	a.retracts[h] = struct{}{}
	a.pending = append(a.pending, pendingOp{kind: opRetract, handle: h})
	return nil
}

// Explain appends one human-readable reason to the activation's trace
// entry. Reasons accumulate in call order.
func (a *ActionContext) Explain(format string, args ...any) {
	a.notes = append(a.notes, fmt.Sprintf(format, args...))
}

// checkLive rejects references to handles that are gone, distinguishing
// stale references (retracted earlier in the run, or by this very action)
// from handles that never existed.
func (a *ActionContext) checkLive(h facts.Handle) error {
	if _, gone := a.retracts[h]; gone {
		return &StaleFactError{Handle: h, Rule: a.act.Rule.Name}
	}
	if a.session.store.Live(h) {
		return nil
	}
	if a.session.store.WasRetracted(h) {
		return &StaleFactError{Handle: h, Rule: a.act.Rule.Name}
	}
	return &facts.NoSuchFactError{Handle: h}
}

// explanation joins the accumulated reasons for the trace entry.
func (a *ActionContext) explanation() string {
	return strings.Join(a.notes, "; ")
}

// flush applies the buffered mutations to the store in call order. Each
// application emits a change event, so the matching network re-evaluates
// affected activations here, after the action completed.
func (a *ActionContext) flush() {
	for _, op := range a.pending {
		var err error
		switch op.kind {
		case opInsert:
			_, err = a.session.store.Insert(op.fact)
		case opUpdate:
			err = a.session.store.Update(op.handle, op.fact)
		case opRetract:
			err = a.session.store.Retract(op.handle)
		}
		if err != nil {
			// Ops were validated at buffer time; a failure here means a
			// later op in the same batch invalidated an earlier target.
			a.session.logger.Warn("dropped buffered mutation",
				"rule", a.act.Rule.Name,
				"error", err,
			)
		}
	}
}
