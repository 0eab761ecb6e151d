package rete

import "forseti-hq/forseti/pkg/facts"

// NotNode passes a token through only while no right fact matches it.
// A per-token match counter tracks the 0↔1 transitions that flip the
// token's downstream presence: absence is asserted when the counter drops
// to zero and withdrawn when it leaves zero.
type NotNode struct {
	baseNode
	test        JoinTest
	leftMemory  *tokenMemory
	rightMemory *factMemory
	counter     map[string]int // token key -> matching fact count
}

// NewNotNode creates a negation node. A nil test makes any fact reaching
// the right input a match, i.e. the condition is pure absence of the type.
func NewNotNode(test JoinTest) *NotNode {
	return &NotNode{
		test:        test,
		leftMemory:  newTokenMemory(),
		rightMemory: newFactMemory(),
		counter:     make(map[string]int),
	}
}

func (n *NotNode) matches(t Token, s facts.Snapshot) bool {
	return n.test == nil || n.test(t, s)
}

func (n *NotNode) AssertToken(t Token) {
	if !n.leftMemory.Assert(t) {
		return
	}
	count := 0
	for _, s := range n.rightMemory.Items() {
		if n.matches(t, s) {
			count++
		}
	}
	n.counter[t.Key()] = count
	if count == 0 {
		n.propagateAssertToken(t)
	}
}

func (n *NotNode) RetractToken(t Token) {
	if !n.leftMemory.Retract(t) {
		return
	}
	if n.counter[t.Key()] == 0 {
		n.propagateRetractToken(t)
	}
	delete(n.counter, t.Key())
}

func (n *NotNode) AssertFact(s facts.Snapshot) {
	if !n.rightMemory.Assert(s) {
		return
	}
	for _, t := range n.leftMemory.Items() {
		if n.matches(t, s) {
			if n.counter[t.Key()] == 0 {
				n.propagateRetractToken(t)
			}
			n.counter[t.Key()]++
		}
	}
}

func (n *NotNode) RetractFact(s facts.Snapshot) {
	if !n.rightMemory.Retract(s) {
		return
	}
	for _, t := range n.leftMemory.Items() {
		if n.matches(t, s) {
			n.counter[t.Key()]--
			if n.counter[t.Key()] == 0 {
				n.propagateAssertToken(t)
			}
		}
	}
}

// ExistsNode passes a token through only while at least one right fact
// matches it. It mirrors NotNode with the transition inverted: assertion on
// 0→1, withdrawal on 1→0.
type ExistsNode struct {
	baseNode
	test        JoinTest
	leftMemory  *tokenMemory
	rightMemory *factMemory
	counter     map[string]int
}

// NewExistsNode creates an existence node.
func NewExistsNode(test JoinTest) *ExistsNode {
	return &ExistsNode{
		test:        test,
		leftMemory:  newTokenMemory(),
		rightMemory: newFactMemory(),
		counter:     make(map[string]int),
	}
}

func (e *ExistsNode) matches(t Token, s facts.Snapshot) bool {
	return e.test == nil || e.test(t, s)
}

func (e *ExistsNode) AssertToken(t Token) {
	if !e.leftMemory.Assert(t) {
		return
	}
	count := 0
	for _, s := range e.rightMemory.Items() {
		if e.matches(t, s) {
			count++
		}
	}
	e.counter[t.Key()] = count
	if count > 0 {
		e.propagateAssertToken(t)
	}
}

func (e *ExistsNode) RetractToken(t Token) {
	if !e.leftMemory.Retract(t) {
		return
	}
	if e.counter[t.Key()] > 0 {
		e.propagateRetractToken(t)
	}
	delete(e.counter, t.Key())
}

func (e *ExistsNode) AssertFact(s facts.Snapshot) {
	if !e.rightMemory.Assert(s) {
		return
	}
	for _, t := range e.leftMemory.Items() {
		if e.matches(t, s) {
			if e.counter[t.Key()] == 0 {
				e.propagateAssertToken(t)
			}
			e.counter[t.Key()]++
		}
	}
}

func (e *ExistsNode) RetractFact(s facts.Snapshot) {
	if !e.rightMemory.Retract(s) {
		return
	}
	for _, t := range e.leftMemory.Items() {
		if e.matches(t, s) {
			e.counter[t.Key()]--
			if e.counter[t.Key()] == 0 {
				e.propagateRetractToken(t)
			}
		}
	}
}
