package rete

import (
	"strings"

	"forseti-hq/forseti/pkg/facts"
)

// Token is a partial match: the chain of fact snapshots accumulated while
// walking a rule's conditions left to right. Tokens are immutable; extending
// one allocates a new token.
type Token struct {
	snaps []facts.Snapshot
	key   string
}

// EmptyToken returns the initial token that seeds every rule chain.
func EmptyToken() Token { return Token{} }

// NewToken builds a token over the given snapshots.
func NewToken(snaps ...facts.Snapshot) Token {
	t := Token{snaps: snaps}
	t.key = computeKey(snaps)
	return t
}

// Extend returns a new token with one more snapshot appended.
func (t Token) Extend(s facts.Snapshot) Token {
	snaps := make([]facts.Snapshot, 0, len(t.snaps)+1)
	snaps = append(snaps, t.snaps...)
	snaps = append(snaps, s)
	return NewToken(snaps...)
}

// Key uniquely identifies the token by the handles and versions it binds.
// Memories and the agenda use it for dedup and withdrawal.
func (t Token) Key() string { return t.key }

// Snapshots returns the bound snapshots in condition order.
func (t Token) Snapshots() []facts.Snapshot { return t.snaps }

// Handles returns the bound fact identities in condition order.
func (t Token) Handles() []facts.Handle {
	out := make([]facts.Handle, len(t.snaps))
	for i, s := range t.snaps {
		out[i] = s.Handle
	}
	return out
}

// Recency returns the highest recency sequence among the bound snapshots,
// or zero for the empty token. Conflict resolution prefers higher values.
func (t Token) Recency() uint64 {
	var max uint64
	for _, s := range t.snaps {
		if s.Seq > max {
			max = s.Seq
		}
	}
	return max
}

// Len returns the number of bound snapshots.
func (t Token) Len() int { return len(t.snaps) }

func computeKey(snaps []facts.Snapshot) string {
	if len(snaps) == 0 {
		return ""
	}
	parts := make([]string, len(snaps))
	for i, s := range snaps {
		parts[i] = s.Key()
	}
	return strings.Join(parts, "|")
}
