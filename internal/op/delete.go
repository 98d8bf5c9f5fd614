package op

import (
	"collabtext/internal/ident"
	"collabtext/internal/wire"
)

// Delete removes an Insert from view without removing it from the
// complete list: execution appends self to target.DeletedBy. Per
// spec §4.4, double-apply is harmless — deletion is boolean-valued
// ("non-empty DeletedBy"), so redelivering the same Delete, or two
// independent Deletes of the same target racing each other, both
// converge to the same tombstoned state.
type Delete struct {
	base
	deletesRef Ref
}

func NewDelete(id ident.Identifier, target Ref) *Delete {
	return &Delete{base: base{id: id}, deletesRef: target}
}

func (d *Delete) Target() *Insert {
	if d.deletesRef.Bound == nil {
		return nil
	}
	if ins, ok := d.deletesRef.Bound.(*Insert); ok {
		return ins
	}
	if obj, ok := d.deletesRef.Bound.(*ImmutableObject); ok {
		return &obj.Insert
	}
	return nil
}

func (d *Delete) PendingIDs() []ident.Identifier {
	if d.deletesRef.Pending != nil {
		return []ident.Identifier{*d.deletesRef.Pending}
	}
	return nil
}

func (d *Delete) Execute(store Store) error {
	if d.executed {
		return nil
	}
	if !d.deletesRef.resolve(store) {
		return ErrUnresolvedReference
	}

	target := d.Target()
	if target == nil {
		return &ImpossibleLinkageError{Identifier: d.id}
	}
	for _, existing := range target.DeletedBy {
		if existing.id == d.id {
			d.executed = true
			return nil
		}
	}
	target.DeletedBy = append(target.DeletedBy, d)

	d.executed = true
	d.Fire(EventExecuted, d.Encode())
	return nil
}

func (d *Delete) Encode() wire.Frame {
	deletes := frameIDPtr(d.deletesRef)
	return wire.Frame{
		Type:    wire.KindDelete,
		UID:     toFrameID(d.id),
		Deletes: deletes,
	}
}
