package rules

import (
	"fmt"
	"regexp"
	"strings"

	"forseti-hq/forseti/pkg/engine"
	"forseti-hq/forseti/pkg/facts"
)

// TagsFactType is the reserved fact type managed by set_tag actions. Each
// session holds at most one Tags fact with a "tags" field accumulating the
// tags set by fired rules.
const TagsFactType = "Tags"

// Compile validates definitions against the schema and compiles them into
// an immutable rule set. Disabled definitions are skipped. All structural
// problems are reported together in one *CompileError.
func Compile(defs []Definition, schema Schema) (*engine.RuleSet, error) {
	var (
		compiled []*engine.Rule
		problems []string
	)

	for i, def := range defs {
		if def.Name == "" {
			problems = append(problems, fmt.Sprintf("definition %d has no name", i))
			continue
		}
		if !def.IsEnabled() {
			continue
		}

		rule, errs := compileDefinition(def, schema)
		if len(errs) > 0 {
			problems = append(problems, errs...)
			continue
		}
		compiled = append(compiled, rule)
	}

	if len(problems) > 0 {
		return nil, &CompileError{Problems: problems}
	}

	if schema.Open() {
		return engine.NewRuleSet(compiled)
	}

	types := make([]string, 0, len(schema.FactTypes)+1)
	for t := range schema.FactTypes {
		types = append(types, t)
	}
	if _, declared := schema.FactTypes[TagsFactType]; !declared {
		types = append(types, TagsFactType)
	}

	return engine.NewRuleSet(compiled, engine.WithFactTypes(types...))
}

// bindings maps condition aliases to their position in a rule's token.
type bindings struct {
	index map[string]int
	types map[string]string // alias to fact type
}

func (b *bindings) add(alias, factType string) bool {
	if _, dup := b.index[alias]; dup {
		return false
	}
	b.index[alias] = len(b.index)
	b.types[alias] = factType
	return true
}

func compileDefinition(def Definition, schema Schema) (*engine.Rule, []string) {
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf("rule %q: ", def.Name)+fmt.Sprintf(format, args...))
	}

	bound := &bindings{index: map[string]int{}, types: map[string]string{}}
	var conditions []engine.Condition

	for i, c := range def.When {
		switch {
		case c.Join != nil:
			if c.Fact != "" || c.Aggregate != nil {
				fail("condition %d mixes clause forms", i)
				continue
			}
			cond, errs := compileJoin(def.Name, i, *c.Join, bound, schema)
			problems = append(problems, errs...)
			if len(errs) == 0 {
				conditions = append(conditions, cond)
			}

		case c.Aggregate != nil:
			if c.Fact != "" {
				fail("condition %d mixes clause forms", i)
				continue
			}
			cond, errs := compileAggregate(def.Name, i, *c.Aggregate, bound, schema)
			problems = append(problems, errs...)
			if len(errs) == 0 {
				conditions = append(conditions, cond)
			}

		case c.Fact != "":
			cond, errs := compileBinding(def.Name, i, c, bound, schema)
			problems = append(problems, errs...)
			if len(errs) == 0 {
				conditions = append(conditions, cond)
			}

		default:
			fail("condition %d is empty", i)
		}
	}

	action, errs := compileActions(def, bound, schema)
	problems = append(problems, errs...)

	if len(problems) > 0 {
		return nil, problems
	}
	return &engine.Rule{
		Name:       def.Name,
		Priority:   def.Priority,
		Conditions: conditions,
		Action:     action,
	}, nil
}

func compileBinding(rule string, i int, c ConditionDef, bound *bindings, schema Schema) (engine.Condition, []string) {
	var problems []string
	if !schema.HasType(c.Fact) {
		problems = append(problems, fmt.Sprintf("rule %q: condition %d: unknown fact type %q", rule, i, c.Fact))
	}
	pred, errs := compileTests(rule, i, c.Fact, c.Where, schema)
	problems = append(problems, errs...)

	switch c.Kind {
	case "", "filter":
		alias := c.As
		if alias == "" {
			alias = c.Fact
		}
		if !bound.add(alias, c.Fact) {
			problems = append(problems, fmt.Sprintf("rule %q: condition %d: duplicate binding alias %q", rule, i, alias))
		}
		return engine.Filter(c.Fact, pred), problems
	case "not":
		return engine.Not(c.Fact, pred, nil), problems
	case "exists":
		return engine.Exists(c.Fact, pred, nil), problems
	default:
		problems = append(problems, fmt.Sprintf("rule %q: condition %d: unknown kind %q", rule, i, c.Kind))
		return engine.Condition{}, problems
	}
}

// compileTests builds one predicate from a where block. Every test must
// pass; an evaluation error (type mismatch against a live fact) counts as
// no match.
func compileTests(rule string, i int, factType string, tests []TestDef, schema Schema) (engine.Predicate, []string) {
	var problems []string
	for _, t := range tests {
		if t.Field == "" {
			problems = append(problems, fmt.Sprintf("rule %q: condition %d: test without field", rule, i))
		} else if schema.HasType(factType) && !schema.HasField(factType, t.Field) {
			problems = append(problems, fmt.Sprintf("rule %q: condition %d: fact type %q has no field %q", rule, i, factType, t.Field))
		}
		if !knownOperator(t.Op) {
			problems = append(problems, fmt.Sprintf("rule %q: condition %d: unknown operator %q", rule, i, t.Op))
		}
	}
	if len(problems) > 0 || len(tests) == 0 {
		return nil, problems
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
	}, nil
}

func compileJoin(rule string, i int, j JoinDef, bound *bindings, schema Schema) (engine.Condition, []string) {
	var problems []string
	if len(j.Equal) != 2 {
		problems = append(problems, fmt.Sprintf("rule %q: condition %d: join needs exactly two refs, got %d", rule, i, len(j.Equal)))
		return engine.Condition{}, problems
	}

	refs := make([]fieldRef, 0, 2)
	for _, raw := range j.Equal {
		ref, err := resolveRef(raw, bound, schema)
		if err != nil {
			problems = append(problems, fmt.Sprintf("rule %q: condition %d: %v", rule, i, err))
			continue
		}
		refs = append(refs, ref)
	}
	if len(problems) > 0 {
		return engine.Condition{}, problems
	}

	return engine.Join(func(snaps []facts.Snapshot) bool {
		a, _ := fieldValue(snaps[refs[0].binding].Value, refs[0].field)
		b, _ := fieldValue(snaps[refs[1].binding].Value, refs[1].field)
		equal, err := evaluateEqual(a, b)
		return err == nil && equal
	}), nil
}

func compileAggregate(rule string, i int, a AggregateDef, bound *bindings, schema Schema) (engine.Condition, []string) {
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf("rule %q: condition %d: ", rule, i)+fmt.Sprintf(format, args...))
	}

	if !schema.HasType(a.Fact) {
		fail("unknown fact type %q", a.Fact)
	}
	if !knownOperator(a.Op) {
		fail("unknown operator %q", a.Op)
	}

	var value func(facts.Fact) float64
	switch a.Func {
	case "count":
		if a.Field != "" {
			fail("count aggregate takes no field")
		}
	case "sum":
		if a.Field == "" {
			fail("sum aggregate needs a field")
		} else {
			field := a.Field
			value = func(f facts.Fact) float64 {
				v, _ := fieldValue(f, field)
				n, _ := convertToFloat64(v)
				return n
			}
		}
	default:
		fail("unknown aggregate func %q", a.Func)
	}

	pred, errs := compileTests(rule, i, a.Fact, a.Where, schema)
	problems = append(problems, errs...)

	var groupBy func(facts.Fact) (string, bool)
	if a.GroupBy != "" {
		field := a.GroupBy
		groupBy = func(f facts.Fact) (string, bool) {
			v, ok := fieldValue(f, field)
			if !ok {
				return "", false
			}
			return fmt.Sprint(v), true
		}
	}

	var bindingGroup func([]facts.Snapshot) string
	if a.Group != "" {
		if a.GroupBy == "" {
			fail("group ref without group_by")
		}
		ref, err := resolveRef(a.Group, bound, schema)
		if err != nil {
			fail("%v", err)
		} else {
			bindingGroup = func(snaps []facts.Snapshot) string {
				v, _ := fieldValue(snaps[ref.binding].Value, ref.field)
				return fmt.Sprint(v)
			}
		}
	}

	if len(problems) > 0 {
		return engine.Condition{}, problems
	}

	op, threshold, isSum := a.Op, a.Threshold, a.Func == "sum"
	return engine.Aggregate(a.Fact, pred, engine.AggregateSpec{
		GroupBy: groupBy,
		Value:   value,
		Holds: func(sum float64, count int) bool {
			actual := float64(count)
			if isSum {
				actual = sum
			}
			ok, err := evaluateOperator(op, actual, threshold)
			return err == nil && ok
		},
		BindingGroup: bindingGroup,
	}), nil
}

// fieldRef is a compiled "alias.field" reference into a rule's bindings.
type fieldRef struct {
	binding int
	field   string
}

func resolveRef(raw string, bound *bindings, schema Schema) (fieldRef, error) {
	alias, field, ok := strings.Cut(raw, ".")
	if !ok || alias == "" || field == "" {
		return fieldRef{}, fmt.Errorf("malformed ref %q, want alias.field", raw)
	}
	idx, ok := bound.index[alias]
	if !ok {
		return fieldRef{}, fmt.Errorf("ref %q names no earlier binding", raw)
	}
	if t := bound.types[alias]; schema.HasType(t) && !schema.HasField(t, field) {
		return fieldRef{}, fmt.Errorf("ref %q: fact type %q has no field %q", raw, t, field)
	}
	return fieldRef{binding: idx, field: field}, nil
}

// fieldValue reads a named field off a fact.
func fieldValue(f facts.Fact, name string) (any, bool) {
	fielder, ok := f.(facts.Fielder)
	if !ok {
		return nil, false
	}
	return fielder.Field(name)
}

var refPattern = regexp.MustCompile(`\$\{(\w+)\.(\w+)\}`)

// compileTemplate turns a string with ${alias.field} placeholders into a
// render function over the firing's bound snapshots. Unknown aliases are a
// compile error; missing fields render as <nil>.
func compileTemplate(s string, bound *bindings) (func([]facts.Snapshot) string, error) {
	var badRef error
	for _, m := range refPattern.FindAllStringSubmatch(s, -1) {
		if _, ok := bound.index[m[1]]; !ok {
			badRef = fmt.Errorf("template ref %q names no binding", m[0])
			break
		}
	}
	if badRef != nil {
		return nil, badRef
	}
	if !refPattern.MatchString(s) {
		return func([]facts.Snapshot) string { return s }, nil
	}

	return func(snaps []facts.Snapshot) string {
		return refPattern.ReplaceAllStringFunc(s, func(m string) string {
			parts := refPattern.FindStringSubmatch(m)
			v, _ := fieldValue(snaps[bound.index[parts[1]]].Value, parts[2])
			return fmt.Sprint(v)
		})
	}, nil
}
