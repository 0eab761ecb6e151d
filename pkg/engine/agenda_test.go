package engine

import (
	"testing"

	"forseti-hq/forseti/pkg/facts"
	"forseti-hq/forseti/pkg/rete"
)

func snap(h facts.Handle, seq uint64) facts.Snapshot {
	return facts.Snapshot{Handle: h, Version: 1, Seq: seq, Value: facts.NewGeneric("T", nil)}
}

func mustRuleSet(t *testing.T, rules []*Rule, opts ...RuleSetOption) *RuleSet {
	t.Helper()
	rs, err := NewRuleSet(rules, opts...)
	if err != nil {
		t.Fatalf("NewRuleSet() error = %v", err)
	}
	return rs
}

// TestAgenda_ConflictResolutionOrder tests the selection order across all
// four criteria: priority, specificity, recency, rule name.
func TestAgenda_ConflictResolutionOrder(t *testing.T) {
	oneCond := []Condition{Filter("T", nil)}
	twoCond := []Condition{Filter("T", nil), Not("U", nil, nil)}

	rules := []*Rule{
		{Name: "low", Priority: 5, Conditions: oneCond},
		{Name: "high", Priority: 50, Conditions: oneCond},
		{Name: "high-specific", Priority: 50, Conditions: twoCond},
		{Name: "alpha", Priority: 5, Conditions: oneCond},
	}
	rs := mustRuleSet(t, rules)
	ag := NewAgenda(rs)

	old := rete.NewToken(snap(1, 1))
	recent := rete.NewToken(snap(2, 9))

	// Offer in scrambled order.
	ag.Offer("low", recent)
	ag.Offer("alpha", recent)
	ag.Offer("high", old)
	ag.Offer("high-specific", old)
	ag.Offer("low", old)

	var got []string
	for {
		act, ok := ag.Select()
		if !ok {
			break
		}
		got = append(got, act.Rule.Name)
	}

	// high-specific beats high on specificity despite equal priority;
	// between the two priority-5 activations on the recent token, "alpha"
	// wins the name tie-break; the old "low" binding loses on recency.
	want := []string{"high-specific", "high", "alpha", "low", "low"}
	if len(got) != len(want) {
		t.Fatalf("selected %d activations, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("selection order = %v, want %v", got, want)
		}
	}
}

// TestAgenda_Withdraw tests that withdrawn activations never fire
func TestAgenda_Withdraw(t *testing.T) {
	rs := mustRuleSet(t, []*Rule{
		{Name: "r", Priority: 1, Conditions: []Condition{Filter("T", nil)}},
	})
	ag := NewAgenda(rs)

	tok := rete.NewToken(snap(1, 1))
	ag.Offer("r", tok)
	if ag.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", ag.Len())
	}

	ag.Withdraw("r", tok)
	if ag.Len() != 0 {
		t.Fatalf("Len() after withdraw = %d, want 0", ag.Len())
	}
	if _, ok := ag.Select(); ok {
		t.Fatal("Select() returned a withdrawn activation")
	}
}

// TestAgenda_OfferIsIdempotent tests that re-offering an identical binding
// does not duplicate it
func TestAgenda_OfferIsIdempotent(t *testing.T) {
	rs := mustRuleSet(t, []*Rule{
		{Name: "r", Priority: 1, Conditions: []Condition{Filter("T", nil)}},
	})
	ag := NewAgenda(rs)

	tok := rete.NewToken(snap(1, 1))
	ag.Offer("r", tok)
	ag.Offer("r", tok)

	if ag.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", ag.Len())
	}
}

// TestAgenda_UnknownRuleIgnored tests offers for rules outside the set
func TestAgenda_UnknownRuleIgnored(t *testing.T) {
	rs := mustRuleSet(t, []*Rule{
		{Name: "r", Priority: 1, Conditions: []Condition{Filter("T", nil)}},
	})
	ag := NewAgenda(rs)

	ag.Offer("ghost", rete.NewToken(snap(1, 1)))
	if ag.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", ag.Len())
	}
}
