package facts

import "fmt"

// Fact is the unit of data the engine reasons over. Implementations must be
// immutable value snapshots: "changing" a fact means calling Store.Update
// with a new value.
type Fact interface {
	// FactType returns the type tag used for condition dispatch,
	// e.g. "Transaction" or "UserProfile".
	FactType() string
}

// Fielder is implemented by facts whose fields can be looked up by name.
// Declaratively compiled conditions (field/operator/value clauses) require
// their facts to implement Fielder; programmatic predicates do not.
type Fielder interface {
	// Field returns the named field value and whether it exists.
	Field(name string) (any, bool)
}

// Handle is the opaque, stable identity of a fact within one session.
// It is unique for the session's lifetime and never reused after retraction.
type Handle uint64

// String formats the handle for traces and error messages.
func (h Handle) String() string { return fmt.Sprintf("fact#%d", uint64(h)) }

// Snapshot is one immutable version of a fact as recorded by the store.
// The matching network and rule actions always see snapshots, never live
// mutable values.
type Snapshot struct {
	// Handle is the fact's stable identity.
	Handle Handle

	// Version starts at 1 and increments on every update of the handle.
	Version int

	// Seq is a session-wide monotonically increasing sequence number
	// assigned at insert/update time. Conflict resolution uses it as the
	// recency signal.
	Seq uint64

	// Value is the immutable fact value.
	Value Fact
}

// Type returns the snapshot's fact type tag.
func (s Snapshot) Type() string { return s.Value.FactType() }

// Key identifies this exact snapshot (handle + version). Two snapshots of
// the same handle differ in key after an update.
func (s Snapshot) Key() string {
	return fmt.Sprintf("%d@%d", uint64(s.Handle), s.Version)
}

// Generic is a schemaless fact backed by a field map. It is the fact shape
// produced by declarative rule actions and fact files; domain code is free
// to implement Fact on its own structs instead.
type Generic struct {
	Type   string
	Fields map[string]any
}

// NewGeneric creates a generic fact with the given type tag and fields.
func NewGeneric(factType string, fields map[string]any) Generic {
	if fields == nil {
		fields = make(map[string]any)
	}
	return Generic{Type: factType, Fields: fields}
}

// FactType returns the fact's type tag.
func (g Generic) FactType() string { return g.Type }

// Field returns the named field value and whether it exists.
func (g Generic) Field(name string) (any, bool) {
	v, ok := g.Fields[name]
	return v, ok
}

// WithField returns a copy of the fact with one field replaced. The receiver
// is not modified, which keeps snapshots immutable.
func (g Generic) WithField(name string, value any) Generic {
	fields := make(map[string]any, len(g.Fields)+1)
	for k, v := range g.Fields {
		fields[k] = v
	}
	fields[name] = value
	return Generic{Type: g.Type, Fields: fields}
}
