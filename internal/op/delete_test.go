package op

import (
	"testing"

	"github.com/stretchr/testify/require"

	"collabtext/internal/ident"
)

func TestDeleteTombstonesTarget(t *testing.T) {
	targetID := ident.Identifier{Creator: "A", OpNumber: 1}
	target := NewInsert(targetID, BoundRef(nil), BoundRef(nil), BoundRef(nil))
	store := mapStore{targetID: target}

	delID := ident.Identifier{Creator: "B", OpNumber: 1}
	del := NewDelete(delID, PendingRef(targetID))

	require.False(t, target.Deleted())
	require.NoError(t, del.Execute(store))
	require.True(t, target.Deleted())
	require.Len(t, target.DeletedBy, 1)
	require.Same(t, del, target.DeletedBy[0])
}

func TestDeleteIsIdempotent(t *testing.T) {
	targetID := ident.Identifier{Creator: "A", OpNumber: 1}
	target := NewInsert(targetID, BoundRef(nil), BoundRef(nil), BoundRef(nil))
	store := mapStore{targetID: target}

	del := NewDelete(ident.Identifier{Creator: "B", OpNumber: 1}, PendingRef(targetID))
	require.NoError(t, del.Execute(store))
	require.NoError(t, del.Execute(store))
	require.Len(t, target.DeletedBy, 1)
}

func TestDeleteDedupesAgainstExistingDeletedBy(t *testing.T) {
	// Two separately-constructed Delete values carrying the same
	// identity (as happens on redelivery of the same frame) must not
	// double-tombstone.
	targetID := ident.Identifier{Creator: "A", OpNumber: 1}
	target := NewInsert(targetID, BoundRef(nil), BoundRef(nil), BoundRef(nil))
	store := mapStore{targetID: target}

	delID := ident.Identifier{Creator: "B", OpNumber: 1}
	first := NewDelete(delID, PendingRef(targetID))
	require.NoError(t, first.Execute(store))

	redelivered := NewDelete(delID, PendingRef(targetID))
	require.NoError(t, redelivered.Execute(store))
	require.Len(t, target.DeletedBy, 1)
}

func TestDeleteDefersOnUnresolvedTarget(t *testing.T) {
	targetID := ident.Identifier{Creator: "A", OpNumber: 1}
	del := NewDelete(ident.Identifier{Creator: "B", OpNumber: 1}, PendingRef(targetID))

	err := del.Execute(mapStore{})
	require.ErrorIs(t, err, ErrUnresolvedReference)
	require.Equal(t, []ident.Identifier{targetID}, del.PendingIDs())
}

func TestDeleteTargetAcceptsImmutableObject(t *testing.T) {
	targetID := ident.Identifier{Creator: "A", OpNumber: 1}
	obj := NewImmutableObject(targetID, BoundRef(nil), BoundRef(nil), BoundRef(nil), []byte("x"))
	store := mapStore{targetID: obj}

	del := NewDelete(ident.Identifier{Creator: "B", OpNumber: 1}, PendingRef(targetID))
	require.NoError(t, del.Execute(store))
	require.True(t, obj.Deleted())
	require.Same(t, &obj.Insert, del.Target())
}
