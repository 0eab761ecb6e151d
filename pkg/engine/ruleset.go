package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// RuleSet is an immutable compiled collection of rules. It is created once,
// validated up front, and shared read-only by any number of sessions;
// "reloading" rules means compiling a new set and starting new sessions
// against it while old sessions keep the set they were created with.
type RuleSet struct {
	rules   []*Rule
	byName  map[string]*Rule
	types   map[string]struct{}
	version string
}

// RuleSetOption configures rule set compilation.
type RuleSetOption func(*ruleSetOptions)

type ruleSetOptions struct {
	factTypes []string
}

// WithFactTypes declares the closed set of fact types the rules may
// reference. A condition referencing any other type fails compilation.
// Without this option the type universe is open.
func WithFactTypes(types ...string) RuleSetOption {
	return func(o *ruleSetOptions) {
		o.factTypes = append(o.factTypes, types...)
	}
}

// NewRuleSet validates and compiles rules into an immutable set.
// Structural problems are reported together in one *MalformedRuleSetError.
func NewRuleSet(rules []*Rule, opts ...RuleSetOption) (*RuleSet, error) {
	var options ruleSetOptions
	for _, opt := range opts {
		opt(&options)
	}

	declared := make(map[string]struct{}, len(options.factTypes))
	for _, t := range options.factTypes {
		declared[t] = struct{}{}
	}

	rs := &RuleSet{
		rules:  make([]*Rule, 0, len(rules)),
		byName: make(map[string]*Rule, len(rules)),
		types:  declared,
	}

	var problems []string
	for i, r := range rules {
		if r == nil {
			problems = append(problems, fmt.Sprintf("rule %d is nil", i))
			continue
		}
		if r.Name == "" {
			problems = append(problems, fmt.Sprintf("rule %d has no name", i))
			continue
		}
		if _, dup := rs.byName[r.Name]; dup {
			problems = append(problems, fmt.Sprintf("duplicate rule name %q", r.Name))
			continue
		}
		problems = append(problems, validateConditions(r, declared)...)

		rs.rules = append(rs.rules, r)
		rs.byName[r.Name] = r
	}

	if len(problems) > 0 {
		return nil, &MalformedRuleSetError{Errors: problems}
	}

	rs.version = fingerprint(rs.rules)
	return rs, nil
}

// validateConditions checks one rule's left-hand side for structural
// problems.
func validateConditions(r *Rule, declared map[string]struct{}) []string {
	var problems []string
	bound := 0

	checkType := func(i int, factType string) {
		if factType == "" {
			problems = append(problems, fmt.Sprintf("rule %q condition %d: missing fact type", r.Name, i))
			return
		}
		if len(declared) > 0 {
			if _, ok := declared[factType]; !ok {
				problems = append(problems, fmt.Sprintf("rule %q condition %d: undeclared fact type %q", r.Name, i, factType))
			}
		}
	}

	for i, c := range r.Conditions {
		switch c.Kind {
		case KindFilter:
			checkType(i, c.FactType)
			bound++
		case KindJoin:
			if c.Constraint == nil {
				problems = append(problems, fmt.Sprintf("rule %q condition %d: join without constraint", r.Name, i))
			}
			if bound < 2 {
				problems = append(problems, fmt.Sprintf("rule %q condition %d: join requires at least two bound facts", r.Name, i))
			}
		case KindNot, KindExists:
			checkType(i, c.FactType)
		case KindAggregate:
			checkType(i, c.FactType)
			if c.Aggregate == nil || c.Aggregate.Holds == nil {
				problems = append(problems, fmt.Sprintf("rule %q condition %d: aggregate without comparison", r.Name, i))
			}
		default:
			problems = append(problems, fmt.Sprintf("rule %q condition %d: unknown kind %d", r.Name, i, int(c.Kind)))
		}
	}
	return problems
}

// Rules returns the compiled rules. The returned slice is a copy; the set
// itself stays immutable.
func (rs *RuleSet) Rules() []*Rule {
	out := make([]*Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// Rule returns the named rule, or nil.
func (rs *RuleSet) Rule(name string) *Rule { return rs.byName[name] }

// Len returns the number of rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// Version is a deterministic fingerprint over the rule structure, used to
// stamp audit records with the rule set a decision was made under.
func (rs *RuleSet) Version() string { return rs.version }

func fingerprint(rules []*Rule) string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = fmt.Sprintf("%s:%d:%d", r.Name, r.Priority, len(r.Conditions))
	}
	sort.Strings(names)

	h := sha256.New()
	for _, n := range names {
		fmt.Fprintln(h, n)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
