package op

import (
	"fmt"

	"collabtext/internal/ident"
)

// Ref is the two-variant value spec §9 calls for: either Bound to a
// live operation already known to the constructor, or Pending an
// identifier not yet present in the history buffer. It replaces the
// source's duck-typed "argument is either an identifier or an
// instantiated operation" with a concrete Go value instead of a
// runtime type switch on every access.
type Ref struct {
	Bound   Operation
	Pending *ident.Identifier
}

// BoundRef wraps an already-live operation. Used when a reference is
// constructed locally against an operation the constructor already
// holds (e.g. engine.Insert binding origin, prev and next to the
// neighbors it looked up).
func BoundRef(o Operation) Ref {
	return Ref{Bound: o}
}

// PendingRef wraps an identifier whose operation is not yet known.
// Used by the decoder, which only ever has identifiers to work with.
func PendingRef(id ident.Identifier) Ref {
	return Ref{Pending: &id}
}

// empty reports whether this Ref was never set at all (neither
// bound nor pending) — used by Delimiter, whose two reference fields
// are each individually optional.
func (r Ref) empty() bool {
	return r.Bound == nil && r.Pending == nil
}

// resolve attempts to bind r against store if it isn't already
// bound. Returns true if r is resolved (bound or legitimately empty)
// after the call. Idempotent: calling it again on an already-bound
// or empty Ref is a no-op that returns true, which is how "partial
// progress is retained" (spec §4.1) falls out for free — each
// Execute (via resolveRefs for Insert) just calls resolve again on
// every field, and fields already bound
// from a previous call return true immediately.
func (r *Ref) resolve(store Store) bool {
	if r.Bound != nil || r.Pending == nil {
		return true
	}
	if o, ok := store.Get(*r.Pending); ok {
		r.Bound = o
		r.Pending = nil
		return true
	}
	return false
}

// unresolvedError names which field of a multi-reference operation is
// still waiting on store, for resolveRefs to accumulate with
// go.uber.org/multierr instead of collapsing every field into one
// undifferentiated ErrUnresolvedReference.
func (r Ref) unresolvedError(field string) error {
	id, _ := r.Identity()
	return fmt.Errorf("op: %s reference %s: %w", field, id, ErrUnresolvedReference)
}

// Identity returns the identifier of the referenced operation,
// whether bound or still pending.
func (r Ref) Identity() (ident.Identifier, bool) {
	switch {
	case r.Bound != nil:
		return r.Bound.Identity(), true
	case r.Pending != nil:
		return *r.Pending, true
	default:
		return ident.Identifier{}, false
	}
}
