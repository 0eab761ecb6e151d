package rete

import "forseti-hq/forseti/pkg/facts"

// GroupFunc extracts the aggregation group of a right-side fact. Returning
// ok=false excludes the fact from the aggregate entirely.
type GroupFunc func(facts.Snapshot) (group string, ok bool)

// ValueFunc extracts the value a fact contributes to a sum aggregate.
type ValueFunc func(facts.Snapshot) float64

// HoldsFunc decides whether the running aggregate of one group satisfies
// the condition's comparison, e.g. count >= 3 or sum > 50000.
type HoldsFunc func(sum float64, count int) bool

// TokenGroupFunc names the group a left token is gated on. A nil function
// gates every token on the single global group.
type TokenGroupFunc func(Token) string

// aggGroup is the running aggregate of one group.
type aggGroup struct {
	members map[string]float64 // snapshot key -> contribution
	sum     float64
}

// AggregateNode gates tokens on a running aggregate (count or sum) over a
// filtered fact set. The aggregate is maintained incrementally: each fact
// assertion or retraction adjusts one group's running totals, and tokens
// are asserted or withdrawn downstream only when the group's comparison
// result actually flips. The matching fact set is never rescanned.
//
// The aggregated facts are not bound into the token; like an existence
// test, the node passes the left token through unchanged while the
// comparison holds.
type AggregateNode struct {
	baseNode
	groupOf    GroupFunc
	valueOf    ValueFunc // nil for pure count aggregates
	holds      HoldsFunc
	tokenGroup TokenGroupFunc

	leftMemory *tokenMemory
	groups     map[string]*aggGroup
}

// NewAggregateNode creates an aggregate node.
func NewAggregateNode(groupOf GroupFunc, valueOf ValueFunc, holds HoldsFunc, tokenGroup TokenGroupFunc) *AggregateNode {
	return &AggregateNode{
		groupOf:    groupOf,
		valueOf:    valueOf,
		holds:      holds,
		tokenGroup: tokenGroup,
		leftMemory: newTokenMemory(),
		groups:     make(map[string]*aggGroup),
	}
}

func (a *AggregateNode) groupKey(t Token) string {
	if a.tokenGroup == nil {
		return ""
	}
	return a.tokenGroup(t)
}

func (a *AggregateNode) state(group string) bool {
	g, ok := a.groups[group]
	if !ok {
		return a.holds(0, 0)
	}
	return a.holds(g.sum, len(g.members))
}

func (a *AggregateNode) AssertToken(t Token) {
	if !a.leftMemory.Assert(t) {
		return
	}
	if a.state(a.groupKey(t)) {
		a.propagateAssertToken(t)
	}
}

func (a *AggregateNode) RetractToken(t Token) {
	if !a.leftMemory.Retract(t) {
		return
	}
	if a.state(a.groupKey(t)) {
		a.propagateRetractToken(t)
	}
}

func (a *AggregateNode) AssertFact(s facts.Snapshot) {
	group, ok := a.groupOf(s)
	if !ok {
		return
	}
	g := a.groups[group]
	if g == nil {
		g = &aggGroup{members: make(map[string]float64)}
		a.groups[group] = g
	}
	if _, dup := g.members[s.Key()]; dup {
		return
	}

	before := a.holds(g.sum, len(g.members))
	var contribution float64
	if a.valueOf != nil {
		contribution = a.valueOf(s)
	}
	g.members[s.Key()] = contribution
	g.sum += contribution
	after := a.holds(g.sum, len(g.members))

	if before != after {
		a.flip(group, after)
	}
}

func (a *AggregateNode) RetractFact(s facts.Snapshot) {
	group, ok := a.groupOf(s)
	if !ok {
		return
	}
	g := a.groups[group]
	if g == nil {
		return
	}
	contribution, member := g.members[s.Key()]
	if !member {
		return
	}

	before := a.holds(g.sum, len(g.members))
	delete(g.members, s.Key())
	g.sum -= contribution
	after := a.holds(g.sum, len(g.members))

	if len(g.members) == 0 {
		delete(a.groups, group)
	}
	if before != after {
		a.flip(group, after)
	}
}

// flip re-propagates every gated token of the group after its comparison
// result changed.
func (a *AggregateNode) flip(group string, nowHolds bool) {
	for _, t := range a.leftMemory.Items() {
		if a.groupKey(t) != group {
			continue
		}
		if nowHolds {
			a.propagateAssertToken(t)
		} else {
			a.propagateRetractToken(t)
		}
	}
}
