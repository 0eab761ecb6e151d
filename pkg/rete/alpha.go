package rete

import "forseti-hq/forseti/pkg/facts"

// FactPredicate tests a single fact value.
type FactPredicate func(facts.Fact) bool

// AlphaNode filters the fact stream of one type with a single-fact
// predicate and feeds the survivors to the right side of its children.
type AlphaNode struct {
	baseNode
	factType string
	pred     FactPredicate
	memory   *factMemory
}

// NewAlphaNode creates an alpha node. A nil predicate accepts every fact of
// the type.
func NewAlphaNode(factType string, pred FactPredicate) *AlphaNode {
	return &AlphaNode{factType: factType, pred: pred, memory: newFactMemory()}
}

// FactType returns the fact type this node filters.
func (a *AlphaNode) FactType() string { return a.factType }

func (a *AlphaNode) AssertFact(s facts.Snapshot) {
	if a.pred != nil && !a.pred(s.Value) {
		return
	}
	if a.memory.Assert(s) {
		a.propagateAssertFact(s)
	}
}

func (a *AlphaNode) RetractFact(s facts.Snapshot) {
	if a.memory.Retract(s) {
		a.propagateRetractFact(s)
	}
}

// AssertToken is a no-op; alpha nodes sit on the fact side of the network.
func (a *AlphaNode) AssertToken(Token) {}

// RetractToken is a no-op.
func (a *AlphaNode) RetractToken(Token) {}
