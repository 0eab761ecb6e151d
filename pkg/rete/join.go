package rete

import "forseti-hq/forseti/pkg/facts"

// JoinTest checks whether a candidate fact is consistent with the facts a
// token has already bound.
type JoinTest func(t Token, s facts.Snapshot) bool

// JoinNode combines left tokens with right facts into longer tokens. It is
// the node behind every positive pattern: the right input is an alpha node
// for the pattern's fact type, the optional test constrains the new binding
// against earlier ones, and a nil test produces the cross product.
type JoinNode struct {
	baseNode
	test        JoinTest
	leftMemory  *tokenMemory
	rightMemory *factMemory
}

// NewJoinNode creates a join node with an optional join test.
func NewJoinNode(test JoinTest) *JoinNode {
	return &JoinNode{
		test:        test,
		leftMemory:  newTokenMemory(),
		rightMemory: newFactMemory(),
	}
}

func (j *JoinNode) matches(t Token, s facts.Snapshot) bool {
	return j.test == nil || j.test(t, s)
}

func (j *JoinNode) AssertToken(t Token) {
	if !j.leftMemory.Assert(t) {
		return
	}
	for _, s := range j.rightMemory.Items() {
		if j.matches(t, s) {
			j.propagateAssertToken(t.Extend(s))
		}
	}
}

func (j *JoinNode) RetractToken(t Token) {
	if !j.leftMemory.Retract(t) {
		return
	}
	for _, s := range j.rightMemory.Items() {
		if j.matches(t, s) {
			j.propagateRetractToken(t.Extend(s))
		}
	}
}

func (j *JoinNode) AssertFact(s facts.Snapshot) {
	if !j.rightMemory.Assert(s) {
		return
	}
	for _, t := range j.leftMemory.Items() {
		if j.matches(t, s) {
			j.propagateAssertToken(t.Extend(s))
		}
	}
}

func (j *JoinNode) RetractFact(s facts.Snapshot) {
	if !j.rightMemory.Retract(s) {
		return
	}
	for _, t := range j.leftMemory.Items() {
		if j.matches(t, s) {
			j.propagateRetractToken(t.Extend(s))
		}
	}
}

// TokenTest checks a constraint over the facts a token has already bound.
type TokenTest func(Token) bool

// ConstraintNode filters tokens with a predicate over already-bound facts.
// It binds no new fact, so it needs no memory: the test is deterministic on
// the token, and retraction replays it.
type ConstraintNode struct {
	baseNode
	test TokenTest
}

// NewConstraintNode creates a constraint node.
func NewConstraintNode(test TokenTest) *ConstraintNode {
	return &ConstraintNode{test: test}
}

func (c *ConstraintNode) AssertToken(t Token) {
	if c.test == nil || c.test(t) {
		c.propagateAssertToken(t)
	}
}

func (c *ConstraintNode) RetractToken(t Token) {
	if c.test == nil || c.test(t) {
		c.propagateRetractToken(t)
	}
}

// AssertFact is a no-op; constraint nodes have no fact input.
func (c *ConstraintNode) AssertFact(facts.Snapshot) {}

// RetractFact is a no-op.
func (c *ConstraintNode) RetractFact(facts.Snapshot) {}
