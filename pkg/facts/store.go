package facts

// ChangeKind classifies a working memory mutation.
type ChangeKind int

const (
	// Inserted means a new fact entered working memory.
	Inserted ChangeKind = iota

	// Updated means an existing handle was rebound to a new snapshot.
	Updated

	// Retracted means a fact left working memory.
	Retracted
)

// String returns the change kind name.
func (k ChangeKind) String() string {
	switch k {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Retracted:
		return "retracted"
	default:
		return "unknown"
	}
}

// Change is the event emitted for every working memory mutation.
type Change struct {
	Kind ChangeKind

	// Old is the previous snapshot. Set for Updated and Retracted.
	Old Snapshot

	// New is the resulting snapshot. Set for Inserted and Updated.
	New Snapshot
}

// Listener consumes change events. The matching network implements this to
// keep its partial matches consistent with working memory.
type Listener interface {
	Apply(Change)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(Change)

// Apply invokes the function.
func (f ListenerFunc) Apply(c Change) { f(c) }

// Store is the working memory of one session. Scan and All iterate in
// insertion order, so downstream match and conflict-resolution behavior is
// reproducible for identical mutation sequences.
type Store struct {
	// live maps handle to its position in order.
	live map[Handle]int

	// order holds live snapshots in insertion order. Retraction leaves a
	// hole (zero Snapshot) rather than shifting, so positions stay stable.
	order []Snapshot

	// tombstones records handles that were live once and have been
	// retracted. Distinguishes "never existed" from "retracted" in errors.
	tombstones map[Handle]struct{}

	nextHandle Handle
	nextSeq    uint64

	listener Listener
}

// NewStore creates an empty working memory.
func NewStore() *Store {
	return &Store{
		live:       make(map[Handle]int),
		tombstones: make(map[Handle]struct{}),
		nextHandle: 1,
		nextSeq:    1,
	}
}

// SetListener registers the change event consumer. Only one listener is
// supported; the matching network is the intended consumer and fan-out, if
// ever needed, belongs on its side.
func (s *Store) SetListener(l Listener) { s.listener = l }

// Insert adds a fact to working memory and returns its new handle.
func (s *Store) Insert(f Fact) (Handle, error) {
	if f == nil {
		return 0, &NoSuchFactError{}
	}
	h := s.nextHandle
	s.nextHandle++

	snap := Snapshot{Handle: h, Version: 1, Seq: s.nextSeq, Value: f}
	s.nextSeq++

	s.live[h] = len(s.order)
	s.order = append(s.order, snap)

	s.emit(Change{Kind: Inserted, New: snap})
	return h, nil
}

// Update replaces the fact bound to handle with a new value. The handle
// stays stable; the version increments and the snapshot gets a fresh
// recency sequence.
func (s *Store) Update(h Handle, f Fact) error {
	pos, ok := s.live[h]
	if !ok {
		return s.missing(h)
	}
	old := s.order[pos]

	snap := Snapshot{Handle: h, Version: old.Version + 1, Seq: s.nextSeq, Value: f}
	s.nextSeq++
	s.order[pos] = snap

	s.emit(Change{Kind: Updated, Old: old, New: snap})
	return nil
}

// Retract removes the fact bound to handle from working memory. The handle
// is never reused.
func (s *Store) Retract(h Handle) error {
	pos, ok := s.live[h]
	if !ok {
		return s.missing(h)
	}
	old := s.order[pos]

	delete(s.live, h)
	s.order[pos] = Snapshot{}
	s.tombstones[h] = struct{}{}

	s.emit(Change{Kind: Retracted, Old: old})
	return nil
}

// Get returns the current snapshot for a handle.
func (s *Store) Get(h Handle) (Snapshot, error) {
	pos, ok := s.live[h]
	if !ok {
		return Snapshot{}, s.missing(h)
	}
	return s.order[pos], nil
}

// Live reports whether the handle is currently bound to a fact.
func (s *Store) Live(h Handle) bool {
	_, ok := s.live[h]
	return ok
}

// WasRetracted reports whether the handle existed and has been retracted.
func (s *Store) WasRetracted(h Handle) bool {
	_, ok := s.tombstones[h]
	return ok
}

// Scan returns all live snapshots of the given fact type in insertion order.
func (s *Store) Scan(factType string) []Snapshot {
	var out []Snapshot
	for _, snap := range s.order {
		if snap.Value != nil && snap.Type() == factType {
			out = append(out, snap)
		}
	}
	return out
}

// All returns every live snapshot in insertion order.
func (s *Store) All() []Snapshot {
	out := make([]Snapshot, 0, len(s.live))
	for _, snap := range s.order {
		if snap.Value != nil {
			out = append(out, snap)
		}
	}
	return out
}

// Len returns the number of live facts.
func (s *Store) Len() int { return len(s.live) }

func (s *Store) missing(h Handle) error {
	_, retracted := s.tombstones[h]
	return &NoSuchFactError{Handle: h, Retracted: retracted}
}

func (s *Store) emit(c Change) {
	if s.listener != nil {
		s.listener.Apply(c)
	}
}
