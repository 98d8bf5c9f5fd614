package op

import (
	"collabtext/internal/ident"
	"collabtext/internal/wire"
)

// Delimiter is one of the two sentinel endpoints of the complete
// list, per spec §3.5. HEAD has no prevRef; TAIL has no nextRef.
// isDeleted is always false for a delimiter — there is no DeletedBy
// field at all.
type Delimiter struct {
	base
	prevRef Ref
	nextRef Ref
}

// NewDelimiter constructs a delimiter. Pass a zero Ref for whichever
// side doesn't apply (HEAD's prev, TAIL's next).
func NewDelimiter(id ident.Identifier, prev, next Ref) *Delimiter {
	return &Delimiter{base: base{id: id}, prevRef: prev, nextRef: next}
}

func (dl *Delimiter) PrevCL() Operation { return dl.prevRef.Bound }
func (dl *Delimiter) NextCL() Operation { return dl.nextRef.Bound }

func (dl *Delimiter) clPrev() Operation     { return dl.prevRef.Bound }
func (dl *Delimiter) setCLPrev(o Operation) { dl.prevRef = BoundRef(o) }
func (dl *Delimiter) clNext() Operation     { return dl.nextRef.Bound }
func (dl *Delimiter) setCLNext(o Operation) { dl.nextRef = BoundRef(o) }
func (dl *Delimiter) creator() ident.PeerId { return dl.id.Creator }

func (dl *Delimiter) PendingIDs() []ident.Identifier {
	var ids []ident.Identifier
	if dl.prevRef.Pending != nil {
		ids = append(ids, *dl.prevRef.Pending)
	}
	if dl.nextRef.Pending != nil {
		ids = append(ids, *dl.nextRef.Pending)
	}
	return ids
}

// Execute implements spec §4.5's case list. Neither side named is
// only legitimate for HEAD or TAIL bootstrapping ahead of its
// sibling; any other delimiter in that shape is malformed. With only
// next named, the delimiter executes without linking anything. With
// only prev named, it links itself after prev, failing with
// ErrDuplicateOperation if prev already has a successor. With both
// named, it executes once at least one side resolves, attaching to
// each resolved neighbor whose facing slot is still empty.
func (dl *Delimiter) Execute(store Store) error {
	if dl.executed {
		return nil
	}

	hasPrev := !dl.prevRef.empty()
	hasNext := !dl.nextRef.empty()

	switch {
	case !hasPrev && !hasNext:
		// Neither side named: legitimate only for the two well-known
		// sentinels at the moment one of them is bootstrapped before
		// its sibling exists to be linked against. A decoded frame
		// claiming to be any other delimiter with nothing to attach
		// to is malformed.
		if dl.id != ident.Head && dl.id != ident.Tail {
			return &UnderspecifiedDelimiterError{Identifier: dl.id}
		}
		dl.executed = true
		dl.Fire(EventExecuted, dl.Encode())
		return nil

	case !hasPrev && hasNext:
		dl.executed = true
		dl.Fire(EventExecuted, dl.Encode())
		return nil

	case hasPrev && !hasNext:
		if !dl.prevRef.resolve(store) {
			return ErrUnresolvedReference
		}
		prevNode, ok := dl.prevRef.Bound.(clNode)
		if !ok {
			return &ImpossibleLinkageError{Identifier: dl.id}
		}
		if prevNode.clNext() != nil {
			return &DuplicateOperationError{Identifier: dl.id}
		}
		prevNode.setCLNext(Operation(dl))
		dl.setCLPrev(prevNode)
		dl.executed = true
		dl.Fire(EventExecuted, dl.Encode())
		return nil

	case hasPrev && hasNext:
		resolvedPrev := dl.prevRef.resolve(store)
		resolvedNext := dl.nextRef.resolve(store)
		if !resolvedPrev && !resolvedNext {
			return ErrUnresolvedReference
		}
		if resolvedPrev {
			if prevNode, ok := dl.prevRef.Bound.(clNode); ok && prevNode.clNext() == nil {
				prevNode.setCLNext(Operation(dl))
			}
		}
		if resolvedNext {
			if nextNode, ok := dl.nextRef.Bound.(clNode); ok && nextNode.clPrev() == nil {
				nextNode.setCLPrev(Operation(dl))
			}
		}
		dl.executed = true
		dl.Fire(EventExecuted, dl.Encode())
		return nil

	default:
		return &UnderspecifiedDelimiterError{Identifier: dl.id}
	}
}

func (dl *Delimiter) Encode() wire.Frame {
	f := wire.Frame{Type: wire.KindDelimiter, UID: toFrameID(dl.id)}
	if !dl.prevRef.empty() {
		f.Prev = frameIDPtr(dl.prevRef)
	}
	if !dl.nextRef.empty() {
		f.Next = frameIDPtr(dl.nextRef)
	}
	return f
}
