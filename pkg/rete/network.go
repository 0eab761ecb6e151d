package rete

import "forseti-hq/forseti/pkg/facts"

// rootNode seeds every rule chain with the initial empty token, once per
// session. It is what lets a rule with zero conditions activate exactly
// once instead of re-activating whenever unrelated facts change.
type rootNode struct {
	baseNode
	seeded bool
}

func (r *rootNode) AssertFact(facts.Snapshot)  {}
func (r *rootNode) RetractFact(facts.Snapshot) {}
func (r *rootNode) AssertToken(Token)          {}
func (r *rootNode) RetractToken(Token)         {}

func (r *rootNode) seed() {
	if r.seeded {
		return
	}
	r.seeded = true
	r.propagateAssertToken(EmptyToken())
}

// Network is one session's matching network. It indexes alpha nodes by fact
// type so a working memory change reaches only the chains that reference
// that type, and implements facts.Listener so it can be registered directly
// on the session's store.
type Network struct {
	root   *rootNode
	alphas map[string][]*AlphaNode
}

// NewNetwork creates an empty network.
func NewNetwork() *Network {
	return &Network{
		root:   &rootNode{},
		alphas: make(map[string][]*AlphaNode),
	}
}

// Root returns the node every rule chain starts from.
func (n *Network) Root() Node { return n.root }

// NewAlpha creates and registers an alpha node for a fact type.
func (n *Network) NewAlpha(factType string, pred FactPredicate) *AlphaNode {
	a := NewAlphaNode(factType, pred)
	n.alphas[factType] = append(n.alphas[factType], a)
	return a
}

// Seed releases the initial token into the network. Called once when the
// session starts running, after the chains are built.
func (n *Network) Seed() { n.root.seed() }

// Apply routes one working memory change to the alpha nodes of the
// affected fact type. An update is a retraction of the old snapshot
// followed by an assertion of the new one.
func (n *Network) Apply(c facts.Change) {
	switch c.Kind {
	case facts.Inserted:
		n.assert(c.New)
	case facts.Retracted:
		n.retract(c.Old)
	case facts.Updated:
		n.retract(c.Old)
		n.assert(c.New)
	}
}

func (n *Network) assert(s facts.Snapshot) {
	for _, a := range n.alphas[s.Type()] {
		a.AssertFact(s)
	}
}

func (n *Network) retract(s facts.Snapshot) {
	for _, a := range n.alphas[s.Type()] {
		a.RetractFact(s)
	}
}
