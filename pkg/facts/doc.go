// Package facts provides the working memory of a rule session: a typed,
// mutable collection of immutable fact snapshots with stable identities.
//
// A Fact is any value with a type tag. Inserting a fact into a Store assigns
// it a Handle that stays stable for the life of the session; updating a fact
// retracts the old snapshot and records a new one under the same handle with
// an incremented version. Handles are never reused after retraction.
//
// Every mutation emits a Change event to the registered listener, which is
// how the matching network observes working memory incrementally instead of
// rescanning it.
//
// # Basic Usage
//
//	store := facts.NewStore()
//	store.SetListener(network)
//
//	h, _ := store.Insert(facts.NewGeneric("Transaction", map[string]any{
//	    "amount": 12500,
//	}))
//
//	snap, _ := store.Get(h)
//	_ = store.Retract(h)
//
// # Thread Safety
//
// A Store belongs to exactly one session and is mutated only by that
// session's inference loop; it is not safe for concurrent use. Independent
// sessions own independent stores and may run in parallel.
package facts
