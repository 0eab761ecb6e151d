package rete

import "forseti-hq/forseti/pkg/facts"

// ActivationSink receives completed matches. The agenda implements it;
// an offered (rule, token) pair stays valid until explicitly withdrawn.
type ActivationSink interface {
	Offer(ruleName string, t Token)
	Withdraw(ruleName string, t Token)
}

// TerminalNode ends a rule's chain. Every token reaching it is a fully
// consistent binding of the rule's conditions.
type TerminalNode struct {
	baseNode
	ruleName string
	sink     ActivationSink
}

// NewTerminalNode creates a terminal node for the named rule.
func NewTerminalNode(ruleName string, sink ActivationSink) *TerminalNode {
	return &TerminalNode{ruleName: ruleName, sink: sink}
}

func (t *TerminalNode) AssertToken(tok Token) {
	t.sink.Offer(t.ruleName, tok)
}

func (t *TerminalNode) RetractToken(tok Token) {
	t.sink.Withdraw(t.ruleName, tok)
}

// AssertFact is a no-op; terminals only consume tokens.
func (t *TerminalNode) AssertFact(facts.Snapshot) {}

// RetractFact is a no-op.
func (t *TerminalNode) RetractFact(facts.Snapshot) {}
