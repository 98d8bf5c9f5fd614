package op

import (
	"go.uber.org/multierr"

	"collabtext/internal/ident"
	"collabtext/internal/wire"
)

// clNode is implemented by every operation that participates in the
// complete list: Insert, ImmutableObject (via embedding), and
// Delimiter. It is unexported — CL traversal is an internal
// implementation detail of the integration algorithm, never part of
// the public Operation contract.
type clNode interface {
	Operation
	clPrev() Operation
	setCLPrev(Operation)
	clNext() Operation
	setCLNext(Operation)
	creator() ident.PeerId
}

// Insert is a single entry in the complete list. origin records the
// intended left neighbor at issuance and never changes once
// resolved; prevRef/nextRef start out as the creator's own
// neighbors at issuance time and are mutated in place by Integrate
// as concurrent siblings are discovered, per spec §4.3.
type Insert struct {
	base

	originRef Ref
	prevRef   Ref
	nextRef   Ref

	// PrevCL / NextCL are the current neighbors once resolved and
	// (for Insert's own slot) spliced into place. They alias
	// prevRef.Bound / nextRef.Bound after integration completes;
	// kept as a thin public accessor pair below rather than exposing
	// the Ref machinery.
	DeletedBy []*Delete

	// encodeFn lets ImmutableObject (and any future Insert-alike)
	// override which Encode the "executed" event fires with, since
	// Go has no virtual methods through embedding. Set to the
	// receiver's own Encode by the matching constructor.
	encodeFn func() wire.Frame

	// outer is the outermost concrete operation this Insert is
	// embedded in (itself, for a bare Insert; the *ImmutableObject,
	// when embedded by one). The integration algorithm must splice
	// this value into other nodes' prevRef/nextRef, never the bare
	// embedded *Insert pointer — otherwise a neighbor of an
	// ImmutableObject would end up pointing at a value that has
	// forgotten its own Content.
	outer Operation
}

// NewInsert constructs a locally- or remotely-originated Insert.
// origin, prev, and next are each either a live Operation (bound
// immediately) or a bare ident.Identifier (recorded pending) per the
// resolver contract in spec §4.1 — callers pass a Ref built with
// BoundRef or PendingRef.
func NewInsert(id ident.Identifier, origin, prev, next Ref) *Insert {
	ins := &Insert{
		base:      base{id: id},
		originRef: origin,
		prevRef:   prev,
		nextRef:   next,
	}
	ins.encodeFn = ins.Encode
	ins.outer = ins
	return ins
}

func (i *Insert) Origin() Operation { return i.originRef.Bound }
func (i *Insert) PrevCL() Operation { return i.prevRef.Bound }
func (i *Insert) NextCL() Operation { return i.nextRef.Bound }

func (i *Insert) clPrev() Operation       { return i.prevRef.Bound }
func (i *Insert) setCLPrev(o Operation)   { i.prevRef = BoundRef(o) }
func (i *Insert) clNext() Operation       { return i.nextRef.Bound }
func (i *Insert) setCLNext(o Operation)   { i.nextRef = BoundRef(o) }
func (i *Insert) creator() ident.PeerId   { return i.id.Creator }

// Deleted reports whether this insert is tombstoned: visible in the
// CL for structural purposes, but suppressed from user-facing views.
func (i *Insert) Deleted() bool { return len(i.DeletedBy) > 0 }

func (i *Insert) PendingIDs() []ident.Identifier {
	var ids []ident.Identifier
	for _, r := range [...]Ref{i.originRef, i.prevRef, i.nextRef} {
		if r.Pending != nil {
			ids = append(ids, *r.Pending)
		}
	}
	return ids
}

// resolveRefs attempts to bind every one of origin/prev/next against
// store, per spec §4.1's "partial progress is retained": a field
// already resolved on a previous call stays resolved even if a
// sibling field is still pending. Unlike a single bool, the returned
// error names every field still waiting, accumulated with
// go.uber.org/multierr rather than collapsing to "something is
// unresolved" — still satisfies errors.Is(err, ErrUnresolvedReference)
// since multierr's combined error unwraps to each wrapped cause.
func (i *Insert) resolveRefs(store Store) error {
	var err error
	if !i.originRef.resolve(store) {
		err = multierr.Append(err, i.originRef.unresolvedError("origin"))
	}
	if !i.prevRef.resolve(store) {
		err = multierr.Append(err, i.prevRef.unresolvedError("prev_cl"))
	}
	if !i.nextRef.resolve(store) {
		err = multierr.Append(err, i.nextRef.unresolvedError("next_cl"))
	}
	return err
}

// Execute runs the resolution + integration lifecycle described in
// spec §4.2/§4.3. Fatal traversal errors raised as panics inside the
// integration walk (the self-cycle assertion from spec §9's open
// question on getDistanceToOrigin) are recovered here and turned
// into an *ImpossibleLinkageError carrying this Insert's identifier,
// never left to crash the engine.
func (i *Insert) Execute(store Store) (err error) {
	if i.executed {
		return nil
	}
	if err := i.resolveRefs(store); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = &ImpossibleLinkageError{Identifier: i.id}
		}
	}()

	if err := integrateInsert(i.outer); err != nil {
		return err
	}

	i.executed = true
	i.Fire(EventExecuted, i.encodeFn())
	return nil
}

func (i *Insert) Encode() wire.Frame {
	uid := toFrameID(i.id)
	f := wire.Frame{
		Type: wire.KindInsert,
		UID:  uid,
		Prev: frameIDPtr(i.prevRef),
		Next: frameIDPtr(i.nextRef),
	}
	if originID, ok := i.originRef.Identity(); ok {
		if prevID, hasPrev := i.prevRef.Identity(); !hasPrev || originID != prevID {
			f.Origin = frameIDPtr(i.originRef)
		}
	}
	return f
}

// ImmutableObject extends Insert with an opaque, immutable content
// payload — the character/text-run/object a real binding hangs off
// the CL position Insert establishes.
type ImmutableObject struct {
	Insert
	Content []byte
}

func NewImmutableObject(id ident.Identifier, origin, prev, next Ref, content []byte) *ImmutableObject {
	obj := &ImmutableObject{
		Insert:  *NewInsert(id, origin, prev, next),
		Content: content,
	}
	obj.encodeFn = obj.Encode
	obj.outer = obj
	return obj
}

func (o *ImmutableObject) Encode() wire.Frame {
	f := o.Insert.Encode()
	f.Type = wire.KindImmutableObject
	f.Content = o.Content
	return f
}

// Decoding Insert and ImmutableObject frames is handled by Decode in
// codec.go, alongside the rest of the wire <-> operation dispatch.
