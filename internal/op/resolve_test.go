package op

import (
	"testing"

	"github.com/stretchr/testify/require"

	"collabtext/internal/ident"
)

type mapStore map[ident.Identifier]Operation

func (m mapStore) Get(id ident.Identifier) (Operation, bool) {
	o, ok := m[id]
	return o, ok
}

func TestRefEmpty(t *testing.T) {
	require.True(t, Ref{}.empty())
	require.False(t, BoundRef(NewDelete(ident.Head, Ref{})).empty())
	id := ident.Head
	require.False(t, PendingRef(id).empty())
}

func TestRefResolveBoundIsNoop(t *testing.T) {
	target := NewDelete(ident.Head, Ref{})
	r := BoundRef(target)
	require.True(t, r.resolve(mapStore{}))
	require.Same(t, target, r.Bound)
}

func TestRefResolvePendingSucceedsOnceRegistered(t *testing.T) {
	id := ident.Identifier{Creator: "A", OpNumber: 1}
	target := NewDelete(id, Ref{})
	store := mapStore{id: target}

	r := PendingRef(id)
	require.True(t, r.resolve(store))
	require.Same(t, target, r.Bound)
	require.Nil(t, r.Pending)
}

func TestRefResolvePendingFailsWhenMissing(t *testing.T) {
	id := ident.Identifier{Creator: "A", OpNumber: 1}
	r := PendingRef(id)
	require.False(t, r.resolve(mapStore{}))
	require.Nil(t, r.Bound)
}

func TestRefResolveIsIdempotent(t *testing.T) {
	id := ident.Identifier{Creator: "A", OpNumber: 1}
	target := NewDelete(id, Ref{})
	store := mapStore{id: target}

	r := PendingRef(id)
	require.True(t, r.resolve(store))
	// Calling resolve again with an empty store still succeeds: the
	// Ref already bound, so resolve never consults the store again.
	require.True(t, r.resolve(mapStore{}))
}

func TestRefIdentity(t *testing.T) {
	_, ok := Ref{}.Identity()
	require.False(t, ok)

	id := ident.Identifier{Creator: "A", OpNumber: 1}
	boundID, ok := BoundRef(NewDelete(id, Ref{})).Identity()
	require.True(t, ok)
	require.Equal(t, id, boundID)

	pendingID, ok := PendingRef(id).Identity()
	require.True(t, ok)
	require.Equal(t, id, pendingID)
}
