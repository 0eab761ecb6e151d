package rules

import "gopkg.in/yaml.v3"

// Definition is one declaratively authored rule, usually unmarshalled from
// YAML. Compile turns a slice of definitions into an engine.RuleSet.
type Definition struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Enabled     *bool          `yaml:"enabled,omitempty"` // default: true
	Priority    int            `yaml:"priority,omitempty"`
	When        []ConditionDef `yaml:"when,omitempty"`
	Then        []ActionDef    `yaml:"then,omitempty"`
}

// IsEnabled returns true if the rule is enabled. Definitions are enabled by
// default unless explicitly disabled.
func (d *Definition) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// ConditionDef is one clause of a definition's when block. Exactly one of
// the clause forms applies:
//
//   - Fact set: a binding clause. Kind selects "filter" (the default, binds
//     the fact), "not" or "exists".
//   - Join set: an equality constraint across earlier bindings.
//   - Aggregate set: a count/sum condition over a fact type.
type ConditionDef struct {
	Fact  string    `yaml:"fact,omitempty"`
	As    string    `yaml:"as,omitempty"`
	Kind  string    `yaml:"kind,omitempty"`
	Where []TestDef `yaml:"where,omitempty"`

	Join      *JoinDef      `yaml:"join,omitempty"`
	Aggregate *AggregateDef `yaml:"aggregate,omitempty"`
}

// TestDef is a single field comparison.
type TestDef struct {
	Field string   `yaml:"field"`
	Op    Operator `yaml:"op"`
	Value any      `yaml:"value"`
}

// JoinDef constrains two earlier bindings to agree on a field. Each ref is
// "alias.field".
type JoinDef struct {
	Equal []string `yaml:"equal"`
}

// AggregateDef is a running count or sum over facts of one type.
type AggregateDef struct {
	Fact    string    `yaml:"fact"`
	Func    string    `yaml:"func"`              // count | sum
	Field   string    `yaml:"field,omitempty"`   // summed field, sum only
	GroupBy string    `yaml:"group_by,omitempty"`
	Where   []TestDef `yaml:"where,omitempty"`

	Op        Operator `yaml:"op"`
	Threshold float64  `yaml:"threshold"`

	// Group gates the binding on one group, as an "alias.field" ref into
	// an earlier binding. Empty gates on GroupBy's global group.
	Group string `yaml:"group,omitempty"`
}

// ActionType identifies a declarative action.
type ActionType string

const (
	// ActionSetTag appends a tag to the session's Tags fact, creating it
	// on first use.
	ActionSetTag ActionType = "set_tag"

	// ActionAssert inserts a new fact.
	ActionAssert ActionType = "assert"

	// ActionUpdate replaces fields of a bound fact.
	ActionUpdate ActionType = "update"

	// ActionRetract retracts a bound fact.
	ActionRetract ActionType = "retract"

	// ActionExplain records a human-readable reason in the firing's trace
	// entry.
	ActionExplain ActionType = "explain"
)

// ActionDef is one entry of a definition's then block. Which fields apply
// depends on Type:
//
//	set_tag: Tag
//	assert:  Fact, Fields
//	update:  Target (binding alias), Fields
//	retract: Target (binding alias)
//	explain: Message
//
// String values in Tag, Fields and Message may interpolate bound fields
// with ${alias.field}.
type ActionDef struct {
	Type    ActionType     `yaml:"type"`
	Tag     string         `yaml:"tag,omitempty"`
	Fact    string         `yaml:"fact,omitempty"`
	Target  string         `yaml:"target,omitempty"`
	Fields  map[string]any `yaml:"fields,omitempty"`
	Message string         `yaml:"message,omitempty"`
}

// Schema declares the fact types declarative rules may reference, with an
// optional field list per type. A schema with no fact types is open: every
// type and field reference is accepted. An empty field list leaves that
// type's fields unchecked.
type Schema struct {
	FactTypes map[string][]string `yaml:"fact_types"`
}

// Open reports whether the schema declares no types and so checks nothing.
func (s Schema) Open() bool { return len(s.FactTypes) == 0 }

// HasType reports whether the schema accepts the fact type.
func (s Schema) HasType(factType string) bool {
	if s.Open() {
		return true
	}
	_, ok := s.FactTypes[factType]
	return ok
}

// HasField reports whether the field is valid on the fact type. Types
// declared with no field list accept any field.
func (s Schema) HasField(factType, field string) bool {
	if s.Open() {
		return true
	}
	fields, ok := s.FactTypes[factType]
	if !ok {
		return false
	}
	if len(fields) == 0 {
		return true
	}
	for _, f := range fields {
		if f == field {
			return true
		}
	}
	return false
}

// ParseDefinitions unmarshals a YAML document holding a list of rule
// definitions under a top-level "rules" key.
func ParseDefinitions(data []byte) ([]Definition, error) {
	var doc struct {
		Rules []Definition `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Rules, nil
}
