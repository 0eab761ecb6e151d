package engine

import (
	"sort"

	"forseti-hq/forseti/pkg/rete"
)

// Activation is a candidate firing: one rule together with one fully
// consistent binding of facts to its conditions.
type Activation struct {
	Rule  *Rule
	Token rete.Token
}

func (a *Activation) key() string { return a.Rule.Name + "/" + a.Token.Key() }

// Agenda holds the currently satisfied activations awaiting execution. The
// matching network offers and withdraws activations as facts change; the
// inference loop selects them in conflict-resolution order.
//
// Selection order: higher rule priority first; among equal priority, more
// conditions (specificity) first; among ties, the binding with the most
// recent fact wins; any remaining ties break on rule name and binding key
// so the order is a strict total order and runs are reproducible.
type Agenda struct {
	rules map[string]*Rule
	items map[string]*Activation
}

// NewAgenda creates an empty agenda over the rule set's rules.
func NewAgenda(rs *RuleSet) *Agenda {
	rules := make(map[string]*Rule, rs.Len())
	for _, r := range rs.rules {
		rules[r.Name] = r
	}
	return &Agenda{
		rules: rules,
		items: make(map[string]*Activation),
	}
}

// Offer adds an activation. Implements rete.ActivationSink.
func (a *Agenda) Offer(ruleName string, t rete.Token) {
	r := a.rules[ruleName]
	if r == nil {
		return
	}
	act := &Activation{Rule: r, Token: t}
	a.items[act.key()] = act
}

// Withdraw removes an activation whose left-hand side no longer holds,
// including one already selected-but-not-fired. Implements
// rete.ActivationSink.
func (a *Agenda) Withdraw(ruleName string, t rete.Token) {
	delete(a.items, ruleName+"/"+t.Key())
}

// Select removes and returns the next activation to fire, or false when
// the agenda is exhausted.
func (a *Agenda) Select() (*Activation, bool) {
	if len(a.items) == 0 {
		return nil, false
	}

	candidates := make([]*Activation, 0, len(a.items))
	for _, act := range a.items {
		candidates = append(candidates, act)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return less(candidates[i], candidates[j])
	})

	best := candidates[0]
	delete(a.items, best.key())
	return best, true
}

// Len returns the number of pending activations.
func (a *Agenda) Len() int { return len(a.items) }

// less is the strict total order for conflict resolution.
func less(x, y *Activation) bool {
	if x.Rule.Priority != y.Rule.Priority {
		return x.Rule.Priority > y.Rule.Priority
	}
	if x.Rule.Specificity() != y.Rule.Specificity() {
		return x.Rule.Specificity() > y.Rule.Specificity()
	}
	if x.Token.Recency() != y.Token.Recency() {
		return x.Token.Recency() > y.Token.Recency()
	}
	if x.Rule.Name != y.Rule.Name {
		return x.Rule.Name < y.Rule.Name
	}
	return x.Token.Key() < y.Token.Key()
}
