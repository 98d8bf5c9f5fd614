package op

import (
	"fmt"

	"collabtext/internal/ident"
	"collabtext/internal/wire"
)

func toFrameID(id ident.Identifier) wire.FrameIdentifier {
	return wire.FrameIdentifier{Creator: string(id.Creator), OpNumber: id.OpNumber}
}

func fromFrameID(f wire.FrameIdentifier) ident.Identifier {
	return ident.Identifier{Creator: ident.PeerId(f.Creator), OpNumber: f.OpNumber}
}

// frameIDPtr renders a Ref's identifier for the wire, whether bound
// or still pending, or nil if the Ref was never set at all.
func frameIDPtr(r Ref) *wire.FrameIdentifier {
	id, ok := r.Identity()
	if !ok {
		return nil
	}
	fid := toFrameID(id)
	return &fid
}

// Decode constructs an uninitialized operation from a wire.Frame per
// spec §4.6: reference fields start out Pending, to be resolved by
// Execute against the history buffer. A malformed frame — missing a
// field its variant requires — is a DecodeError per spec §7: the
// caller is expected to drop the message, not treat this as fatal to
// the engine.
func Decode(f wire.Frame) (Operation, error) {
	id := fromFrameID(f.UID)

	switch f.Type {
	case wire.KindDelete:
		if f.Deletes == nil {
			return nil, fmt.Errorf("op: decode Delete %s: missing deletes", id)
		}
		return NewDelete(id, PendingRef(fromFrameID(*f.Deletes))), nil

	case wire.KindInsert, wire.KindImmutableObject:
		if f.Prev == nil || f.Next == nil {
			return nil, fmt.Errorf("op: decode %s %s: missing prev/next", f.Type, id)
		}
		prevID := fromFrameID(*f.Prev)
		nextID := fromFrameID(*f.Next)
		originID := prevID
		if f.Origin != nil {
			originID = fromFrameID(*f.Origin)
		}
		if f.Type == wire.KindImmutableObject {
			return NewImmutableObject(id, PendingRef(originID), PendingRef(prevID), PendingRef(nextID), f.Content), nil
		}
		return NewInsert(id, PendingRef(originID), PendingRef(prevID), PendingRef(nextID)), nil

	case wire.KindDelimiter:
		var prev, next Ref
		if f.Prev != nil {
			prev = PendingRef(fromFrameID(*f.Prev))
		}
		if f.Next != nil {
			next = PendingRef(fromFrameID(*f.Next))
		}
		return NewDelimiter(id, prev, next), nil

	default:
		return nil, fmt.Errorf("op: decode: unknown frame type %q", f.Type)
	}
}
