package rules

import (
	"fmt"

	"forseti-hq/forseti/pkg/engine"
	"forseti-hq/forseti/pkg/facts"
)

// Builder constructs a rule programmatically, for rules whose predicates
// or actions need arbitrary Go code. Declarative field tests and Go
// closures mix freely:
//
//	rule, err := rules.New("velocity").
//		Priority(engine.PriorityMedium).
//		When("Transaction", rules.Where("amount", rules.OperatorGreaterThan, 1000)).
//		Do(func(actx *engine.ActionContext) error {
//			actx.Explain("transaction burst")
//			return nil
//		}).
//		Rule()
type Builder struct {
	name     string
	priority int
	conds    []engine.Condition
	action   engine.ActionFunc
	problems []string
}

// New starts a rule definition.
func New(name string) *Builder {
	return &Builder{name: name}
}

// Where is a field test for use with When, Not and Exists.
func Where(field string, op Operator, value any) TestDef {
	return TestDef{Field: field, Op: op, Value: value}
}

// Priority sets the rule's conflict-resolution priority.
func (b *Builder) Priority(p int) *Builder {
	b.priority = p
	return b
}

// When binds one fact of the type passing every test.
func (b *Builder) When(factType string, tests ...TestDef) *Builder {
	b.conds = append(b.conds, engine.Filter(factType, b.predicate(factType, tests)))
	return b
}

// WhenFunc binds one fact of the type passing an arbitrary predicate.
func (b *Builder) WhenFunc(factType string, pred engine.Predicate) *Builder {
	b.conds = append(b.conds, engine.Filter(factType, pred))
	return b
}

// Not holds while no fact of the type passes every test.
func (b *Builder) Not(factType string, tests ...TestDef) *Builder {
	b.conds = append(b.conds, engine.Not(factType, b.predicate(factType, tests), nil))
	return b
}

// Exists holds while at least one fact of the type passes every test.
func (b *Builder) Exists(factType string, tests ...TestDef) *Builder {
	b.conds = append(b.conds, engine.Exists(factType, b.predicate(factType, tests), nil))
	return b
}

// Join constrains the facts bound so far.
func (b *Builder) Join(constraint engine.BindingConstraint) *Builder {
	b.conds = append(b.conds, engine.Join(constraint))
	return b
}

// JoinOn constrains two earlier bindings to agree on a field, by binding
// position.
func (b *Builder) JoinOn(left int, leftField string, right int, rightField string) *Builder {
	return b.Join(func(snaps []facts.Snapshot) bool {
		a, _ := fieldValue(snaps[left].Value, leftField)
		v, _ := fieldValue(snaps[right].Value, rightField)
		equal, err := evaluateEqual(a, v)
		return err == nil && equal
	})
}

// Aggregate adds a count/sum condition over facts of the type.
func (b *Builder) Aggregate(factType string, pred engine.Predicate, spec engine.AggregateSpec) *Builder {
	b.conds = append(b.conds, engine.Aggregate(factType, pred, spec))
	return b
}

// Do sets the rule's action.
func (b *Builder) Do(action engine.ActionFunc) *Builder {
	b.action = action
	return b
}

// SetTag sets an action appending the tag to the session's Tags fact.
func (b *Builder) SetTag(tag string) *Builder {
	return b.Do(func(actx *engine.ActionContext) error {
		return setTags(actx, []string{tag})
	})
}

// Rule finalizes the definition.
func (b *Builder) Rule() (*engine.Rule, error) {
	if b.name == "" {
		b.problems = append(b.problems, "rule has no name")
	}
	if len(b.problems) > 0 {
		return nil, &CompileError{Problems: b.problems}
	}
	return &engine.Rule{
		Name:       b.name,
		Priority:   b.priority,
		Conditions: b.conds,
		Action:     b.action,
	}, nil
}

func (b *Builder) predicate(factType string, tests []TestDef) engine.Predicate {
	for _, t := range tests {
		if t.Field == "" {
			b.problems = append(b.problems, fmt.Sprintf("rule %q: %s test without field", b.name, factType))
		}
		if !knownOperator(t.Op) {
			b.problems = append(b.problems, fmt.Sprintf("rule %q: unknown operator %q", b.name, t.Op))
		}
	}
	if len(tests) == 0 {
		return nil
	}

	tests = append([]TestDef(nil), tests...)
	return func(f facts.Fact) bool {
		for _, t := range tests {
			actual, _ := fieldValue(f, t.Field)
			ok, err := evaluateOperator(t.Op, actual, t.Value)
			if err != nil || !ok {
				return false
			}
		}
		return true
	}
}
