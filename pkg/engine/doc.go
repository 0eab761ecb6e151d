// Package engine provides the forward-chaining inference core: compiled
// rule sets, isolated sessions, conflict resolution and the fixpoint loop
// that drives a set of typed facts to a stable decision.
//
// # Architecture
//
// The engine uses a four-layer design:
//
//  1. Fact Store (pkg/facts) - typed working memory with stable identities
//  2. Matching Network (pkg/rete) - incremental index over facts and partial joins
//  3. Agenda - satisfied activations ordered by the conflict-resolution policy
//  4. Inference Loop - select activation, execute action, re-match, repeat
//
// # Inference Flow
//
//	initial facts
//	       ↓
//	Matching Network (build activations)
//	       ↓
//	Agenda: priority → specificity → recency
//	       ↓
//	Fire activation → action mutates facts → network re-matches
//	       ↓ (repeat)
//	Converged (agenda empty) or CycleLimitExceeded
//
// # Basic Usage
//
//	rs, err := engine.NewRuleSet([]*engine.Rule{
//	    {
//	        Name:     "large-transaction",
//	        Priority: 10,
//	        Conditions: []engine.Condition{
//	            engine.Filter("Transaction", amountOver(10000)),
//	        },
//	        Action: func(actx *engine.ActionContext) error {
//	            actx.Explain("amount exceeds 10000")
//	            return nil
//	        },
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err) // *MalformedRuleSetError
//	}
//
//	session, _ := engine.NewSession(rs, engine.WithCycleLimit(100))
//	session.Insert(facts.NewGeneric("Transaction", map[string]any{"amount": 12500.0}))
//
//	result, err := session.Run(ctx)
//	fmt.Println(result.TerminalState, result.Trace)
//
// # Determinism
//
// For an identical rule set and identical initial fact sequence, Run
// produces an identical trace and identical final facts on every execution.
// Conflict resolution is a strict total order (priority, then condition
// count, then binding recency, then rule name, then binding key) and all
// internal iteration is insertion-ordered.
//
// # Thread Safety
//
// A RuleSet is immutable after construction and safe to share across any
// number of sessions without locking. A Session is single-threaded by
// design: one activation executes to completion before the next is
// selected. Run independent sessions on separate goroutines for
// parallelism.
package engine
