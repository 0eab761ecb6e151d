package rete

import "forseti-hq/forseti/pkg/facts"

// Node is implemented by every network node. Facts arrive from alpha nodes
// on the right; tokens flow from the previous condition on the left.
// Retractions mirror assertions exactly.
type Node interface {
	AssertFact(facts.Snapshot)
	RetractFact(facts.Snapshot)
	AssertToken(Token)
	RetractToken(Token)
	AddChild(Node)
}

// baseNode provides child management and propagation shared by all nodes.
type baseNode struct {
	children []Node
}

func (b *baseNode) AddChild(n Node) {
	b.children = append(b.children, n)
}

func (b *baseNode) propagateAssertFact(s facts.Snapshot) {
	for _, c := range b.children {
		c.AssertFact(s)
	}
}

func (b *baseNode) propagateRetractFact(s facts.Snapshot) {
	for _, c := range b.children {
		c.RetractFact(s)
	}
}

func (b *baseNode) propagateAssertToken(t Token) {
	for _, c := range b.children {
		c.AssertToken(t)
	}
}

func (b *baseNode) propagateRetractToken(t Token) {
	for _, c := range b.children {
		c.RetractToken(t)
	}
}
