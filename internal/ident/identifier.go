// Package ident defines the identity of an operation and the
// per-peer counter that assigns new ones.
package ident

import "fmt"

// PeerId is an opaque, comparable, lexicographically ordered peer
// identifier.
type PeerId string

// Identifier uniquely names an operation: (creator, op_number) is
// globally unique, and op_number is strictly monotonic per creator.
type Identifier struct {
	Creator  PeerId `json:"creator"`
	OpNumber uint64 `json:"op_number"`
}

// Head and Tail are the well-known identities agreed upon by all
// peers for the two sentinel delimiters.
var (
	Head = Identifier{Creator: "", OpNumber: 0}
	Tail = Identifier{Creator: "", OpNumber: 1}
)

func (id Identifier) String() string {
	return fmt.Sprintf("%s:%d", id.Creator, id.OpNumber)
}

// Less orders identifiers first by Creator, then by OpNumber. The
// integration algorithm only ever needs Creator comparison, but the
// full order is useful for deterministic iteration (tests, recovery
// dumps).
func (id Identifier) Less(other Identifier) bool {
	if id.Creator != other.Creator {
		return id.Creator < other.Creator
	}
	return id.OpNumber < other.OpNumber
}

// Sequencer issues strictly increasing op_numbers for a single
// creator. The zero value is not usable; construct with NewSequencer.
type Sequencer struct {
	self PeerId
	next uint64
}

// NewSequencer builds a Sequencer for self whose first issued
// identifier has op_number startAt. Callers recovering from a
// persisted history buffer must pass one greater than the highest
// op_number they previously issued, or risk violating the uniqueness
// invariant.
func NewSequencer(self PeerId, startAt uint64) *Sequencer {
	return &Sequencer{self: self, next: startAt}
}

// Next returns (self, counter) and then advances counter, so the first
// identifier a Sequencer issues has op_number startAt.
func (s *Sequencer) Next() Identifier {
	id := Identifier{Creator: s.self, OpNumber: s.next}
	s.next++
	return id
}

// Peek returns the op_number of the next identifier to be issued, without
// consuming it. Used by persistence layers that want to snapshot the
// counter alongside the frames it has already issued.
func (s *Sequencer) Peek() uint64 {
	return s.next
}
