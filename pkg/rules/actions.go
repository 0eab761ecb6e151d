package rules

import (
	"fmt"

	"forseti-hq/forseti/pkg/engine"
	"forseti-hq/forseti/pkg/facts"
)

// actionStep is one compiled then-block action. Staged mutations are not
// visible to later steps of the same firing, so set_tag steps accumulate
// into pending instead of touching the store; the accumulated tags are
// applied once after the last step.
type actionStep func(actx *engine.ActionContext, pending *[]string) error

// compileActions turns a definition's then block into one ActionFunc
// running the declared actions in order. A definition with no actions
// compiles to a trace-only rule.
func compileActions(def Definition, bound *bindings, schema Schema) (engine.ActionFunc, []string) {
	var (
		steps    []actionStep
		problems []string
	)
	fail := func(i int, format string, args ...any) {
		problems = append(problems, fmt.Sprintf("rule %q: action %d: ", def.Name, i)+fmt.Sprintf(format, args...))
	}

	for i, a := range def.Then {
		switch a.Type {
		case ActionSetTag:
			if a.Tag == "" {
				fail(i, "set_tag without tag")
				continue
			}
			render, err := compileTemplate(a.Tag, bound)
			if err != nil {
				fail(i, "%v", err)
				continue
			}
			steps = append(steps, func(actx *engine.ActionContext, pending *[]string) error {
				*pending = append(*pending, render(actx.Bindings()))
				return nil
			})

		case ActionAssert:
			if a.Fact == "" {
				fail(i, "assert without fact type")
				continue
			}
			if !schema.HasType(a.Fact) && a.Fact != TagsFactType {
				fail(i, "unknown fact type %q", a.Fact)
				continue
			}
			fields, errs := compileFields(def.Name, i, a.Fact, a.Fields, bound, schema)
			problems = append(problems, errs...)
			if len(errs) > 0 {
				continue
			}
			factType := a.Fact
			steps = append(steps, func(actx *engine.ActionContext, _ *[]string) error {
				actx.Insert(facts.NewGeneric(factType, fields(actx.Bindings())))
				return nil
			})

		case ActionUpdate:
			idx, errs := resolveTarget(def.Name, i, a.Target, bound)
			problems = append(problems, errs...)
			fields, ferrs := compileFields(def.Name, i, bound.typeOf(a.Target), a.Fields, bound, schema)
			problems = append(problems, ferrs...)
			if len(errs) > 0 || len(ferrs) > 0 {
				continue
			}
			steps = append(steps, func(actx *engine.ActionContext, _ *[]string) error {
				target := actx.Binding(idx)
				next, ok := target.Value.(facts.Generic)
				if !ok {
					return fmt.Errorf("update target %s is not a generic fact", target.Handle)
				}
				for name, value := range fields(actx.Bindings()) {
					next = next.WithField(name, value)
				}
				return actx.Update(target.Handle, next)
			})

		case ActionRetract:
			idx, errs := resolveTarget(def.Name, i, a.Target, bound)
			problems = append(problems, errs...)
			if len(errs) > 0 {
				continue
			}
			steps = append(steps, func(actx *engine.ActionContext, _ *[]string) error {
				return actx.Retract(actx.Binding(idx).Handle)
			})

		case ActionExplain:
			if a.Message == "" {
				fail(i, "explain without message")
				continue
			}
			render, err := compileTemplate(a.Message, bound)
			if err != nil {
				fail(i, "%v", err)
				continue
			}
			steps = append(steps, func(actx *engine.ActionContext, _ *[]string) error {
				actx.Explain("%s", render(actx.Bindings()))
				return nil
			})

		default:
			fail(i, "unknown action type %q", a.Type)
		}
	}

	if len(problems) > 0 {
		return nil, problems
	}
	if len(steps) == 0 {
		return nil, nil
	}

	return func(actx *engine.ActionContext) error {
		var pending []string
		for _, step := range steps {
			if err := step(actx, &pending); err != nil {
				return err
			}
		}
		if len(pending) > 0 {
			return setTags(actx, pending)
		}
		return nil
	}, nil
}

func (b *bindings) typeOf(alias string) string { return b.types[alias] }

func resolveTarget(rule string, i int, target string, bound *bindings) (int, []string) {
	if target == "" {
		return 0, []string{fmt.Sprintf("rule %q: action %d: missing target", rule, i)}
	}
	idx, ok := bound.index[target]
	if !ok {
		return 0, []string{fmt.Sprintf("rule %q: action %d: target %q names no binding", rule, i, target)}
	}
	return idx, nil
}

// compileFields validates an action's field map and compiles its string
// values' templates. The returned function renders the final field map for
// one firing.
func compileFields(rule string, i int, factType string, in map[string]any, bound *bindings, schema Schema) (func([]facts.Snapshot) map[string]any, []string) {
	var problems []string
	static := make(map[string]any, len(in))
	templated := make(map[string]func([]facts.Snapshot) string)

	for name, value := range in {
		if factType != "" && schema.HasType(factType) && !schema.HasField(factType, name) {
			problems = append(problems, fmt.Sprintf("rule %q: action %d: fact type %q has no field %q", rule, i, factType, name))
			continue
		}
		if s, ok := value.(string); ok && refPattern.MatchString(s) {
			render, err := compileTemplate(s, bound)
			if err != nil {
				problems = append(problems, fmt.Sprintf("rule %q: action %d: field %q: %v", rule, i, name, err))
				continue
			}
			templated[name] = render
			continue
		}
		static[name] = value
	}

	if len(problems) > 0 {
		return nil, problems
	}

	return func(snaps []facts.Snapshot) map[string]any {
		out := make(map[string]any, len(static)+len(templated))
		for name, value := range static {
			out[name] = value
		}
		for name, render := range templated {
			out[name] = render(snaps)
		}
		return out
	}, nil
}

// setTags upserts the session's single Tags fact, appending every tag a
// firing accumulated in one mutation. Duplicate tags collapse so
// re-derivations stay idempotent.
func setTags(actx *engine.ActionContext, tags []string) error {
	existing := actx.Scan(TagsFactType)

	var (
		cur  facts.Snapshot
		gen  facts.Generic
		list []string
	)
	if len(existing) > 0 {
		cur = existing[0]
		var ok bool
		gen, ok = cur.Value.(facts.Generic)
		if !ok {
			return fmt.Errorf("tags fact %s is not a generic fact", cur.Handle)
		}
		v, _ := fieldValue(gen, "tags")
		list, _ = v.([]string)
	}

	// Copy so earlier snapshots keep their own tag list.
	next := make([]string, len(list), len(list)+len(tags))
	copy(next, list)
	for _, tag := range tags {
		dup := false
		for _, t := range next {
			if t == tag {
				dup = true
				break
			}
		}
		if !dup {
			next = append(next, tag)
		}
	}
	if len(next) == len(list) {
		return nil
	}

	if len(existing) == 0 {
		actx.Insert(facts.NewGeneric(TagsFactType, map[string]any{"tags": next}))
		return nil
	}
	return actx.Update(cur.Handle, gen.WithField("tags", next))
}

// Tags reads the tag list off a session's final fact state.
func Tags(snaps []facts.Snapshot) []string {
	for _, s := range snaps {
		if s.Type() != TagsFactType {
			continue
		}
		v, _ := fieldValue(s.Value, "tags")
		tags, _ := v.([]string)
		return tags
	}
	return nil
}
