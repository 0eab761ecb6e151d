package rete

import (
	"testing"

	"forseti-hq/forseti/pkg/facts"
)

// collectingSink records offers and withdrawals for assertions in tests.
type collectingSink struct {
	active map[string]Token // ruleName + "/" + token key
}

func newCollectingSink() *collectingSink {
	return &collectingSink{active: make(map[string]Token)}
}

func (s *collectingSink) Offer(rule string, t Token)    { s.active[rule+"/"+t.Key()] = t }
func (s *collectingSink) Withdraw(rule string, t Token) { delete(s.active, rule+"/"+t.Key()) }

// buildStore wires a store to a network and returns both.
func buildStore(n *Network) *facts.Store {
	store := facts.NewStore()
	store.SetListener(facts.ListenerFunc(n.Apply))
	return store
}

func amountOver(threshold float64) FactPredicate {
	return func(f facts.Fact) bool {
		v, _ := f.(facts.Fielder).Field("amount")
		n, ok := v.(float64)
		return ok && n > threshold
	}
}

func fieldEq(name string, left, right int) JoinTest {
	return func(t Token, s facts.Snapshot) bool {
		lv, _ := t.Snapshots()[left].Value.(facts.Fielder).Field(name)
		rv, _ := s.Value.(facts.Fielder).Field(name)
		return lv == rv
	}
}

// singlePattern builds root -> join(alpha) -> terminal for one rule.
func singlePattern(n *Network, sink ActivationSink, rule, factType string, pred FactPredicate) {
	join := NewJoinNode(nil)
	n.Root().AddChild(join)
	n.NewAlpha(factType, pred).AddChild(join)
	join.AddChild(NewTerminalNode(rule, sink))
}

// TestNetwork_AlphaFilter tests single-fact filtering and retraction
func TestNetwork_AlphaFilter(t *testing.T) {
	n := NewNetwork()
	sink := newCollectingSink()
	singlePattern(n, sink, "large", "Transaction", amountOver(10000))
	n.Seed()
	store := buildStore(n)

	small, _ := store.Insert(facts.NewGeneric("Transaction", map[string]any{"amount": 50.0}))
	large, _ := store.Insert(facts.NewGeneric("Transaction", map[string]any{"amount": 12500.0}))

	if len(sink.active) != 1 {
		t.Fatalf("got %d activations, want 1", len(sink.active))
	}

	// Retracting the non-matching fact changes nothing.
	_ = store.Retract(small)
	if len(sink.active) != 1 {
		t.Fatalf("after unrelated retract: %d activations, want 1", len(sink.active))
	}

	// Retracting the matching fact withdraws the activation.
	_ = store.Retract(large)
	if len(sink.active) != 0 {
		t.Fatalf("after retract: %d activations, want 0", len(sink.active))
	}
}

// TestNetwork_UpdateRebindsActivation tests update as retract-plus-assert
func TestNetwork_UpdateRebindsActivation(t *testing.T) {
	n := NewNetwork()
	sink := newCollectingSink()
	singlePattern(n, sink, "large", "Transaction", amountOver(10000))
	n.Seed()
	store := buildStore(n)

	h, _ := store.Insert(facts.NewGeneric("Transaction", map[string]any{"amount": 12500.0}))
	if len(sink.active) != 1 {
		t.Fatalf("got %d activations, want 1", len(sink.active))
	}

	// Update below the threshold: activation must disappear.
	_ = store.Update(h, facts.NewGeneric("Transaction", map[string]any{"amount": 500.0}))
	if len(sink.active) != 0 {
		t.Fatalf("after lowering amount: %d activations, want 0", len(sink.active))
	}

	// And come back when it crosses the threshold again, as a new version.
	_ = store.Update(h, facts.NewGeneric("Transaction", map[string]any{"amount": 99000.0}))
	if len(sink.active) != 1 {
		t.Fatalf("after raising amount: %d activations, want 1", len(sink.active))
	}
	for _, tok := range sink.active {
		if tok.Snapshots()[0].Version != 3 {
			t.Errorf("activation bound version %d, want 3", tok.Snapshots()[0].Version)
		}
	}
}

// TestNetwork_Join tests two-pattern joins with a shared field
func TestNetwork_Join(t *testing.T) {
	n := NewNetwork()
	sink := newCollectingSink()

	// User joined with Transaction on user_id.
	userJoin := NewJoinNode(nil)
	n.Root().AddChild(userJoin)
	n.NewAlpha("User", nil).AddChild(userJoin)

	txnJoin := NewJoinNode(fieldEq("user_id", 0, 0))
	userJoin.AddChild(txnJoin)
	n.NewAlpha("Transaction", nil).AddChild(txnJoin)

	txnJoin.AddChild(NewTerminalNode("user-txn", sink))
	n.Seed()
	store := buildStore(n)

	u1, _ := store.Insert(facts.NewGeneric("User", map[string]any{"user_id": 1}))
	_, _ = store.Insert(facts.NewGeneric("User", map[string]any{"user_id": 2}))
	_, _ = store.Insert(facts.NewGeneric("Transaction", map[string]any{"user_id": 1}))
	_, _ = store.Insert(facts.NewGeneric("Transaction", map[string]any{"user_id": 1}))
	_, _ = store.Insert(facts.NewGeneric("Transaction", map[string]any{"user_id": 3}))

	if len(sink.active) != 2 {
		t.Fatalf("got %d activations, want 2 (user 1 x two txns)", len(sink.active))
	}

	// Retracting the user withdraws both joined activations.
	_ = store.Retract(u1)
	if len(sink.active) != 0 {
		t.Fatalf("after user retract: %d activations, want 0", len(sink.active))
	}
}

// TestNetwork_Not tests absence conditions flipping on insert and retract
func TestNetwork_Not(t *testing.T) {
	n := NewNetwork()
	sink := newCollectingSink()

	// Transaction with no TrustedDevice for the same user.
	txnJoin := NewJoinNode(nil)
	n.Root().AddChild(txnJoin)
	n.NewAlpha("Transaction", nil).AddChild(txnJoin)

	not := NewNotNode(fieldEq("user_id", 0, 0))
	txnJoin.AddChild(not)
	n.NewAlpha("TrustedDevice", nil).AddChild(not)

	not.AddChild(NewTerminalNode("untrusted", sink))
	n.Seed()
	store := buildStore(n)

	_, _ = store.Insert(facts.NewGeneric("Transaction", map[string]any{"user_id": 7}))
	if len(sink.active) != 1 {
		t.Fatalf("absence not detected: %d activations, want 1", len(sink.active))
	}

	// Inserting a matching device withdraws the activation.
	dev, _ := store.Insert(facts.NewGeneric("TrustedDevice", map[string]any{"user_id": 7}))
	if len(sink.active) != 0 {
		t.Fatalf("after device insert: %d activations, want 0", len(sink.active))
	}

	// A device for a different user does not count.
	_, _ = store.Insert(facts.NewGeneric("TrustedDevice", map[string]any{"user_id": 8}))
	if len(sink.active) != 0 {
		t.Fatalf("unrelated device flipped the condition: %d activations", len(sink.active))
	}

	// Retracting the device restores the activation.
	_ = store.Retract(dev)
	if len(sink.active) != 1 {
		t.Fatalf("after device retract: %d activations, want 1", len(sink.active))
	}
}

// TestNetwork_Exists tests existence conditions
func TestNetwork_Exists(t *testing.T) {
	n := NewNetwork()
	sink := newCollectingSink()

	userJoin := NewJoinNode(nil)
	n.Root().AddChild(userJoin)
	n.NewAlpha("User", nil).AddChild(userJoin)

	exists := NewExistsNode(fieldEq("user_id", 0, 0))
	userJoin.AddChild(exists)
	n.NewAlpha("Chargeback", nil).AddChild(exists)

	exists.AddChild(NewTerminalNode("has-chargeback", sink))
	n.Seed()
	store := buildStore(n)

	_, _ = store.Insert(facts.NewGeneric("User", map[string]any{"user_id": 1}))
	if len(sink.active) != 0 {
		t.Fatalf("exists satisfied with zero facts: %d activations", len(sink.active))
	}

	cb1, _ := store.Insert(facts.NewGeneric("Chargeback", map[string]any{"user_id": 1}))
	cb2, _ := store.Insert(facts.NewGeneric("Chargeback", map[string]any{"user_id": 1}))
	if len(sink.active) != 1 {
		t.Fatalf("got %d activations, want exactly 1 (exists binds nothing)", len(sink.active))
	}

	// One of two matches gone: still exists.
	_ = store.Retract(cb1)
	if len(sink.active) != 1 {
		t.Fatalf("after first retract: %d activations, want 1", len(sink.active))
	}

	// Last match gone: withdrawn.
	_ = store.Retract(cb2)
	if len(sink.active) != 0 {
		t.Fatalf("after last retract: %d activations, want 0", len(sink.active))
	}
}

// TestNetwork_AggregateCount tests incremental count aggregates per group
func TestNetwork_AggregateCount(t *testing.T) {
	n := NewNetwork()
	sink := newCollectingSink()

	userJoin := NewJoinNode(nil)
	n.Root().AddChild(userJoin)
	n.NewAlpha("User", nil).AddChild(userJoin)

	// count(FailedLogin by user_id) >= 3 for the bound user
	agg := NewAggregateNode(
		func(s facts.Snapshot) (string, bool) {
			v, ok := s.Value.(facts.Fielder).Field("user_id")
			if !ok {
				return "", false
			}
			return v.(string), true
		},
		nil,
		func(_ float64, count int) bool { return count >= 3 },
		func(t Token) string {
			v, _ := t.Snapshots()[0].Value.(facts.Fielder).Field("user_id")
			return v.(string)
		},
	)
	userJoin.AddChild(agg)
	n.NewAlpha("FailedLogin", nil).AddChild(agg)

	agg.AddChild(NewTerminalNode("brute-force", sink))
	n.Seed()
	store := buildStore(n)

	_, _ = store.Insert(facts.NewGeneric("User", map[string]any{"user_id": "u1"}))

	var logins []facts.Handle
	for i := 0; i < 2; i++ {
		h, _ := store.Insert(facts.NewGeneric("FailedLogin", map[string]any{"user_id": "u1"}))
		logins = append(logins, h)
	}
	// Noise in another group.
	_, _ = store.Insert(facts.NewGeneric("FailedLogin", map[string]any{"user_id": "u2"}))

	if len(sink.active) != 0 {
		t.Fatalf("threshold not reached but %d activations", len(sink.active))
	}

	h3, _ := store.Insert(facts.NewGeneric("FailedLogin", map[string]any{"user_id": "u1"}))
	logins = append(logins, h3)
	if len(sink.active) != 1 {
		t.Fatalf("threshold crossed but %d activations, want 1", len(sink.active))
	}

	// Fourth login keeps the condition holding without duplicating it.
	_, _ = store.Insert(facts.NewGeneric("FailedLogin", map[string]any{"user_id": "u1"}))
	if len(sink.active) != 1 {
		t.Fatalf("after fourth login: %d activations, want 1", len(sink.active))
	}

	// Retract down below the threshold: withdrawn.
	_ = store.Retract(logins[0])
	_ = store.Retract(logins[1])
	if len(sink.active) != 0 {
		t.Fatalf("below threshold but %d activations remain", len(sink.active))
	}
}

// TestNetwork_AggregateSum tests incremental sum aggregates with retraction
func TestNetwork_AggregateSum(t *testing.T) {
	n := NewNetwork()
	sink := newCollectingSink()

	agg := NewAggregateNode(
		func(s facts.Snapshot) (string, bool) { return "", true },
		func(s facts.Snapshot) float64 {
			v, _ := s.Value.(facts.Fielder).Field("amount")
			return v.(float64)
		},
		func(sum float64, _ int) bool { return sum > 50000 },
		nil,
	)
	n.Root().AddChild(agg)
	n.NewAlpha("Transaction", nil).AddChild(agg)
	agg.AddChild(NewTerminalNode("velocity", sink))
	n.Seed()
	store := buildStore(n)

	h1, _ := store.Insert(facts.NewGeneric("Transaction", map[string]any{"amount": 30000.0}))
	if len(sink.active) != 0 {
		t.Fatalf("sum below threshold but %d activations", len(sink.active))
	}

	_, _ = store.Insert(facts.NewGeneric("Transaction", map[string]any{"amount": 25000.0}))
	if len(sink.active) != 1 {
		t.Fatalf("sum crossed but %d activations, want 1", len(sink.active))
	}

	_ = store.Retract(h1)
	if len(sink.active) != 0 {
		t.Fatalf("after retract sum is 25000 but %d activations remain", len(sink.active))
	}
}

// TestNetwork_ZeroConditionChain tests that the seeded root fires once
func TestNetwork_ZeroConditionChain(t *testing.T) {
	n := NewNetwork()
	sink := newCollectingSink()
	n.Root().AddChild(NewTerminalNode("bootstrap", sink))
	n.Seed()
	store := buildStore(n)

	if len(sink.active) != 1 {
		t.Fatalf("got %d activations, want 1", len(sink.active))
	}

	// Unrelated fact churn must not re-offer the empty binding.
	h, _ := store.Insert(facts.NewGeneric("Noise", nil))
	_ = store.Retract(h)
	n.Seed() // idempotent

	if len(sink.active) != 1 {
		t.Fatalf("after churn: %d activations, want 1", len(sink.active))
	}
}

// TestNetwork_IncrementalMatchesNaive tests that incrementally maintained
// activations equal a from-scratch rescan after an arbitrary mutation mix.
func TestNetwork_IncrementalMatchesNaive(t *testing.T) {
	build := func() (*Network, *collectingSink) {
		n := NewNetwork()
		sink := newCollectingSink()
		singlePattern(n, sink, "large", "Transaction", amountOver(1000))

		txnJoin := NewJoinNode(nil)
		n.Root().AddChild(txnJoin)
		n.NewAlpha("Transaction", nil).AddChild(txnJoin)
		not := NewNotNode(fieldEq("user_id", 0, 0))
		txnJoin.AddChild(not)
		n.NewAlpha("TrustedDevice", nil).AddChild(not)
		not.AddChild(NewTerminalNode("untrusted", sink))

		n.Seed()
		return n, sink
	}

	net, incSink := build()
	store := buildStore(net)

	// A mutation mix touching every path: inserts, updates across the
	// threshold, retractions of both polarities.
	t1, _ := store.Insert(facts.NewGeneric("Transaction", map[string]any{"amount": 2500.0, "user_id": 1}))
	t2, _ := store.Insert(facts.NewGeneric("Transaction", map[string]any{"amount": 800.0, "user_id": 2}))
	d1, _ := store.Insert(facts.NewGeneric("TrustedDevice", map[string]any{"user_id": 1}))
	_ = store.Update(t2, facts.NewGeneric("Transaction", map[string]any{"amount": 1800.0, "user_id": 2}))
	_ = store.Retract(d1)
	_ = store.Update(t1, facts.NewGeneric("Transaction", map[string]any{"amount": 400.0, "user_id": 1}))

	// Naive baseline: rebuild an identical network and replay only the
	// final store contents.
	naiveNet, naiveSink := build()
	naiveStore := buildStore(naiveNet)
	for _, snap := range store.All() {
		_, _ = naiveStore.Insert(snap.Value)
	}

	if len(incSink.active) != len(naiveSink.active) {
		t.Fatalf("incremental has %d activations, naive rescan has %d",
			len(incSink.active), len(naiveSink.active))
	}

	// Compare by rule + bound fact values (handles differ across stores).
	type match struct{ rule, factType string }
	summarize := func(s *collectingSink) map[match]int {
		out := make(map[match]int)
		for key, tok := range s.active {
			rule := key[:len(key)-len(tok.Key())-1]
			for _, snap := range tok.Snapshots() {
				out[match{rule, snap.Type()}]++
			}
		}
		return out
	}
	inc, naive := summarize(incSink), summarize(naiveSink)
	for k, v := range naive {
		if inc[k] != v {
			t.Errorf("activation summary mismatch for %+v: incremental %d, naive %d", k, inc[k], v)
		}
	}
}
