package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"forseti-hq/forseti/pkg/facts"
	"forseti-hq/forseti/pkg/rete"
)

// newSessionID generates the audit correlation id for a session.
func newSessionID() string { return uuid.NewString() }

// DefaultCycleLimit bounds runaway rule sets that keep re-triggering
// themselves. Hitting it is surfaced as CycleLimitExceeded, not an error.
const DefaultCycleLimit = 1000

// TerminalState is the state the inference loop ended in.
type TerminalState int

const (
	// StateRunning means the session has not finished (only observable
	// before or during Run).
	StateRunning TerminalState = iota

	// StateConverged is the normal terminal state: the agenda drained and
	// re-matching the final facts would activate nothing.
	StateConverged

	// StateCycleLimitExceeded means the cycle ceiling or the caller's
	// context budget expired first. The result still carries the partial
	// fact state and trace.
	StateCycleLimitExceeded
)

// String returns the state name.
func (s TerminalState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateConverged:
		return "converged"
	case StateCycleLimitExceeded:
		return "cycle_limit_exceeded"
	default:
		return "unknown"
	}
}

// TraceEntry records one selected activation. Fired and skipped
// activations both get an entry; the engine never drops a firing silently.
type TraceEntry struct {
	// Cycle is the 1-based cycle number the activation was selected in.
	Cycle int

	// Rule is the fired rule's name.
	Rule string

	// Handles are the bound fact identities in condition order.
	Handles []facts.Handle

	// Explanation is the accumulated human-readable reasons from the
	// action's Explain calls.
	Explanation string

	// Skipped is true when the action aborted (e.g. a stale fact
	// reference) and its mutations were discarded.
	Skipped bool

	// Error is the abort reason when Skipped is set.
	Error string
}

// Result is what a session run hands back to the caller.
type Result struct {
	// SessionID identifies the session for audit correlation.
	SessionID string

	// RuleSetVersion is the fingerprint of the rule set the decision was
	// made under.
	RuleSetVersion string

	// TerminalState is StateConverged or StateCycleLimitExceeded.
	TerminalState TerminalState

	// FinalFacts is the working memory at termination, insertion-ordered.
	FinalFacts []facts.Snapshot

	// Trace is the ordered firing record.
	Trace []TraceEntry

	// Cycles is the number of activations selected.
	Cycles int

	// Duration is the wall-clock run time.
	Duration time.Duration
}

// Explanations returns the non-empty explanation texts of fired entries,
// in firing order. This is the "risk reasons" list callers present.
func (r *Result) Explanations() []string {
	var out []string
	for _, e := range r.Trace {
		if !e.Skipped && e.Explanation != "" {
			out = append(out, e.Explanation)
		}
	}
	return out
}

// SessionOption configures a session.
type SessionOption func(*Session)

// WithCycleLimit sets the activation ceiling. Values below one fall back
// to DefaultCycleLimit.
func WithCycleLimit(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.cycleLimit = n
		}
	}
}

// WithLogger sets the session's structured logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSessionID overrides the generated session identifier.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// Session is one isolated inference run: its own fact store, matching
// network and agenda over a shared, immutable rule set. Create, insert
// initial facts, Run once, read the result, discard.
type Session struct {
	id      string
	ruleSet *RuleSet
	store   *facts.Store
	network *rete.Network
	agenda  *Agenda
	logger  *slog.Logger

	cycleLimit int
	cycle      int
	state      TerminalState
	trace      []TraceEntry
	ran        bool
}

// NewSession builds a session over a compiled rule set.
func NewSession(rs *RuleSet, opts ...SessionOption) (*Session, error) {
	if rs == nil {
		return nil, ErrNilRuleSet
	}

	s := &Session{
		id:         newSessionID(),
		ruleSet:    rs,
		store:      facts.NewStore(),
		cycleLimit: DefaultCycleLimit,
		logger:     slog.Default().With("component", "engine.session"),
		state:      StateRunning,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.agenda = NewAgenda(rs)
	s.network = buildNetwork(rs, s.agenda)
	s.store.SetListener(facts.ListenerFunc(s.network.Apply))

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Insert adds an initial fact before Run. Rule actions use their
// ActionContext instead.
func (s *Session) Insert(f facts.Fact) (facts.Handle, error) {
	return s.store.Insert(f)
}

// Facts returns the current live snapshots, insertion-ordered.
func (s *Session) Facts() []facts.Snapshot { return s.store.All() }

// State returns the session's current state.
func (s *Session) State() TerminalState { return s.state }

// Run drives the inference loop to a terminal state: select the best
// activation, execute its action, apply the buffered mutations, re-match,
// repeat. It returns when the agenda drains (Converged), when the cycle
// ceiling is hit, or when ctx expires (both CycleLimitExceeded, with
// partial results). Run may be called once per session.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	if s.ran {
		return nil, ErrSessionAlreadyRun
	}
	s.ran = true
	start := time.Now()

	s.network.Seed()

	for {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("session budget expired",
				"session_id", s.id,
				"cycles", s.cycle,
				"error", err,
			)
			s.state = StateCycleLimitExceeded
			break
		}

		act, ok := s.agenda.Select()
		if !ok {
			s.state = StateConverged
			break
		}

		if s.cycle >= s.cycleLimit {
			s.logger.Warn("cycle limit exceeded, rule set likely self-triggering",
				"session_id", s.id,
				"limit", s.cycleLimit,
				"rule", act.Rule.Name,
			)
			s.state = StateCycleLimitExceeded
			break
		}

		s.cycle++
		s.fire(ctx, act)
	}

	res := &Result{
		SessionID:      s.id,
		RuleSetVersion: s.ruleSet.Version(),
		TerminalState:  s.state,
		FinalFacts:     s.store.All(),
		Trace:          s.trace,
		Cycles:         s.cycle,
		Duration:       time.Since(start),
	}

	s.logger.Info("session finished",
		"session_id", s.id,
		"terminal_state", s.state.String(),
		"cycles", s.cycle,
		"facts", len(res.FinalFacts),
		"duration", res.Duration,
	)
	return res, nil
}

// fire executes one activation's action and applies its mutations.
func (s *Session) fire(ctx context.Context, act *Activation) {
	entry := TraceEntry{
		Cycle:   s.cycle,
		Rule:    act.Rule.Name,
		Handles: act.Token.Handles(),
	}

	actx := newActionContext(ctx, s, act)
	if act.Rule.Action != nil {
		if err := act.Rule.Action(actx); err != nil {
			entry.Skipped = true
			entry.Error = err.Error()
			s.trace = append(s.trace, entry)
			s.logger.Warn("activation aborted",
				"session_id", s.id,
				"rule", act.Rule.Name,
				"cycle", s.cycle,
				"error", err,
			)
			return
		}
	}

	entry.Explanation = actx.explanation()
	s.trace = append(s.trace, entry)

	actx.flush()
}

// buildNetwork compiles the rule set's conditions into one session's
// matching network: a left-to-right chain per rule, seeded by the initial
// token, with alpha nodes registered by fact type.
func buildNetwork(rs *RuleSet, sink rete.ActivationSink) *rete.Network {
	n := rete.NewNetwork()

	for _, r := range rs.rules {
		var left rete.Node = n.Root()

		for _, c := range r.Conditions {
			switch c.Kind {
			case KindFilter:
				node := rete.NewJoinNode(adaptTest(c.Test))
				left.AddChild(node)
				n.NewAlpha(c.FactType, adaptPredicate(c.Predicate)).AddChild(node)
				left = node

			case KindJoin:
				node := rete.NewConstraintNode(adaptConstraint(c.Constraint))
				left.AddChild(node)
				left = node

			case KindNot:
				node := rete.NewNotNode(adaptTest(c.Test))
				left.AddChild(node)
				n.NewAlpha(c.FactType, adaptPredicate(c.Predicate)).AddChild(node)
				left = node

			case KindExists:
				node := rete.NewExistsNode(adaptTest(c.Test))
				left.AddChild(node)
				n.NewAlpha(c.FactType, adaptPredicate(c.Predicate)).AddChild(node)
				left = node

			case KindAggregate:
				node := rete.NewAggregateNode(
					adaptGroup(c.Aggregate.GroupBy),
					adaptValue(c.Aggregate.Value),
					c.Aggregate.Holds,
					adaptBindingGroup(c.Aggregate.BindingGroup),
				)
				left.AddChild(node)
				n.NewAlpha(c.FactType, adaptPredicate(c.Predicate)).AddChild(node)
				left = node
			}
		}

		left.AddChild(rete.NewTerminalNode(r.Name, sink))
	}
	return n
}

func adaptPredicate(p Predicate) rete.FactPredicate {
	if p == nil {
		return nil
	}
	return func(f facts.Fact) bool { return p(f) }
}

func adaptTest(t BindingTest) rete.JoinTest {
	if t == nil {
		return nil
	}
	return func(tok rete.Token, s facts.Snapshot) bool {
		return t(tok.Snapshots(), s)
	}
}

func adaptConstraint(c BindingConstraint) rete.TokenTest {
	if c == nil {
		return nil
	}
	return func(tok rete.Token) bool { return c(tok.Snapshots()) }
}

func adaptGroup(g func(facts.Fact) (string, bool)) rete.GroupFunc {
	if g == nil {
		return func(facts.Snapshot) (string, bool) { return "", true }
	}
	return func(s facts.Snapshot) (string, bool) { return g(s.Value) }
}

func adaptValue(v func(facts.Fact) float64) rete.ValueFunc {
	if v == nil {
		return nil
	}
	return func(s facts.Snapshot) float64 { return v(s.Value) }
}

func adaptBindingGroup(g func([]facts.Snapshot) string) rete.TokenGroupFunc {
	if g == nil {
		return nil
	}
	return func(t rete.Token) string { return g(t.Snapshots()) }
}
