package engine

import "forseti-hq/forseti/pkg/facts"

// Default priorities for rule authors. Higher priorities fire first.
const (
	// PriorityHigh is for blocking and compliance rules.
	PriorityHigh = 100

	// PriorityMedium is for scoring and enrichment rules.
	PriorityMedium = 50

	// PriorityLow is for tagging and monitoring rules.
	PriorityLow = 10
)

// ConditionKind classifies one clause of a rule's left-hand side.
type ConditionKind int

const (
	// KindFilter binds one fact of a type matching a predicate.
	KindFilter ConditionKind = iota

	// KindJoin constrains facts bound by earlier conditions. It binds
	// nothing itself.
	KindJoin

	// KindNot holds while no fact of the type matches.
	KindNot

	// KindExists holds while at least one fact of the type matches.
	KindExists

	// KindAggregate holds while a running count/sum over matching facts
	// satisfies a comparison.
	KindAggregate
)

// String returns the condition kind name.
func (k ConditionKind) String() string {
	switch k {
	case KindFilter:
		return "filter"
	case KindJoin:
		return "join"
	case KindNot:
		return "not"
	case KindExists:
		return "exists"
	case KindAggregate:
		return "aggregate"
	default:
		return "unknown"
	}
}

// Predicate tests a single fact value.
type Predicate func(facts.Fact) bool

// BindingTest checks a candidate fact against the snapshots bound by
// earlier conditions, in condition order.
type BindingTest func(bound []facts.Snapshot, candidate facts.Snapshot) bool

// BindingConstraint checks a constraint over already-bound snapshots.
type BindingConstraint func(bound []facts.Snapshot) bool

// AggregateSpec configures an aggregate condition. Facts of the condition's
// type that pass its predicate contribute to a running aggregate per group;
// the condition holds for a binding while Holds reports true for the
// binding's group.
type AggregateSpec struct {
	// GroupBy extracts the aggregation group of a contributing fact.
	// Nil aggregates everything into one global group.
	GroupBy func(facts.Fact) (group string, ok bool)

	// Value extracts a fact's contribution to a sum aggregate.
	// Nil makes this a pure count aggregate.
	Value func(facts.Fact) float64

	// Holds compares the running aggregate against the rule's threshold,
	// e.g. func(_ float64, count int) bool { return count >= 3 }.
	Holds func(sum float64, count int) bool

	// BindingGroup names the group an activation's binding is gated on.
	// Nil gates every binding on the global group.
	BindingGroup func(bound []facts.Snapshot) string
}

// Condition is one clause of a compiled rule's left-hand side.
type Condition struct {
	Kind ConditionKind

	// FactType is the type the clause dispatches on. Unused for KindJoin.
	FactType string

	// Predicate filters facts of the type before they reach the clause.
	// Optional; nil accepts every fact of the type.
	Predicate Predicate

	// Test additionally constrains the candidate against earlier bindings.
	// Applies to KindFilter, KindNot and KindExists. Optional.
	Test BindingTest

	// Constraint is the KindJoin check over already-bound facts.
	Constraint BindingConstraint

	// Aggregate is the KindAggregate specification.
	Aggregate *AggregateSpec
}

// Filter returns a condition binding one fact of the type matching pred.
func Filter(factType string, pred Predicate) Condition {
	return Condition{Kind: KindFilter, FactType: factType, Predicate: pred}
}

// FilterWhere is Filter with an additional test against earlier bindings,
// the usual way to express an equi-join while still binding the fact.
func FilterWhere(factType string, pred Predicate, test BindingTest) Condition {
	return Condition{Kind: KindFilter, FactType: factType, Predicate: pred, Test: test}
}

// Join returns a condition constraining facts bound by earlier conditions.
func Join(constraint BindingConstraint) Condition {
	return Condition{Kind: KindJoin, Constraint: constraint}
}

// Not returns an absence condition: it holds while no fact of the type
// passes pred and test.
func Not(factType string, pred Predicate, test BindingTest) Condition {
	return Condition{Kind: KindNot, FactType: factType, Predicate: pred, Test: test}
}

// Exists returns an existence condition: it holds while at least one fact
// of the type passes pred and test. It binds nothing.
func Exists(factType string, pred Predicate, test BindingTest) Condition {
	return Condition{Kind: KindExists, FactType: factType, Predicate: pred, Test: test}
}

// Aggregate returns an aggregate condition over facts of the type.
func Aggregate(factType string, pred Predicate, spec AggregateSpec) Condition {
	return Condition{Kind: KindAggregate, FactType: factType, Predicate: pred, Aggregate: &spec}
}

// ActionFunc is a rule's right-hand side: a closure over the bound facts
// and the fact store, executed when the rule fires. Returning an error
// aborts this activation only; the session continues.
type ActionFunc func(*ActionContext) error

// Rule is an immutable compiled rule. Rules are built once, validated into
// a RuleSet, and never mutated during inference.
type Rule struct {
	// Name uniquely identifies the rule within its set.
	Name string

	// Priority orders conflicting activations; higher fires first.
	Priority int

	// Conditions is the ordered left-hand side.
	Conditions []Condition

	// Action is the right-hand side. A nil action fires trace-only.
	Action ActionFunc
}

// Specificity is the number of conditions, the second conflict-resolution
// criterion: a narrower match outranks a broader one at equal priority.
func (r *Rule) Specificity() int { return len(r.Conditions) }
