// Package history implements the history buffer: the mapping from
// identifier to operation that the core owns, plus the pending index
// that lets a deferred operation be retried automatically once the
// dependency it was waiting on has executed.
package history

import (
	"sync"

	"collabtext/internal/ident"
	"collabtext/internal/op"
)

// Buffer owns every operation an engine instance has ever seen.
// Operations are created at issuance or parse time, registered here
// before any execution attempt, executed once their dependencies
// resolve, and never destroyed — there is no garbage collection or
// compaction, per spec §1's Non-goals.
type Buffer struct {
	mu sync.Mutex

	ops   map[ident.Identifier]op.Operation
	order []ident.Identifier // insertion order, for recovery iteration

	// pending maps a missing identifier to the set of operations
	// blocked on it — spec §5's "pending index from missing
	// identifier to the set of operations blocked on it".
	pending map[ident.Identifier][]op.Operation
}

// New returns an empty Buffer. Bootstrapping HEAD/TAIL is the
// engine's job (engine.New), not the buffer's — the buffer is pure
// storage plus retry bookkeeping.
func New() *Buffer {
	return &Buffer{
		ops:     make(map[ident.Identifier]op.Operation),
		pending: make(map[ident.Identifier][]op.Operation),
	}
}

// Get implements op.Store.
func (b *Buffer) Get(id ident.Identifier) (op.Operation, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.ops[id]
	return o, ok
}

// Has reports whether id has already been registered, regardless of
// execution state.
func (b *Buffer) Has(id ident.Identifier) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.ops[id]
	return ok
}

// Put registers o under its own identity. Registering the same
// identity twice is a no-op (idempotent registration — the
// duplicate-detection that matters is inside Execute, per spec §4.2).
func (b *Buffer) Put(o op.Operation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := o.Identity()
	if _, exists := b.ops[id]; exists {
		return
	}
	b.ops[id] = o
	b.order = append(b.order, id)
}

// All returns every registered operation in registration order, for
// recovery / snapshot iteration.
func (b *Buffer) All() []op.Operation {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]op.Operation, len(b.order))
	for i, id := range b.order {
		out[i] = b.ops[id]
	}
	return out
}

// Defer records that o is blocked waiting on missing. Execute calls
// this whenever it returns op.ErrUnresolvedReference so Wake can find
// it again later.
func (b *Buffer) Defer(missing ident.Identifier, o op.Operation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.pending[missing] {
		if existing.Identity() == o.Identity() {
			return
		}
	}
	b.pending[missing] = append(b.pending[missing], o)
}

// Wake returns (and clears) every operation that was waiting on id,
// so the caller can retry their execution; the engine calls it once
// the operation named id has executed.
func (b *Buffer) Wake(id ident.Identifier) []op.Operation {
	b.mu.Lock()
	defer b.mu.Unlock()
	blocked := b.pending[id]
	delete(b.pending, id)
	return blocked
}
