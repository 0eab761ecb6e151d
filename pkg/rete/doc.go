// Package rete implements the incremental matching network of the rule
// engine. It is a discrimination network in the Rete family: facts enter
// through type-indexed alpha nodes (single-fact filters), partial matches
// flow left-to-right as tokens through join, constraint, negation,
// existence and aggregate nodes, and terminal nodes offer completed matches
// (activations) to the agenda.
//
// The point of the network is incrementality: one working memory mutation
// touches only the nodes registered for that fact's type and the partial
// matches that actually contain the changed fact, rather than rescanning
// every rule against every fact. Retraction is symmetric to assertion;
// any token containing a retracted fact is withdrawn all the way down to
// the agenda.
//
// # Network Shape
//
//	root ──(initial token)──▶ join ──▶ join ──▶ not ──▶ terminal
//	                            ▲        ▲       ▲
//	                          alpha    alpha   alpha
//	                         (type A) (type B) (type C)
//
// Each rule compiles into one left-to-right chain seeded by the session's
// initial token, so a rule with zero conditions activates exactly once per
// session.
//
// One Network instance belongs to one session: node memories are session
// state. The compiled rule set shared across sessions holds only the
// predicates, not the memories.
package rete
