package history

import (
	"testing"

	"github.com/stretchr/testify/require"

	"collabtext/internal/ident"
	"collabtext/internal/op"
)

func mkID(creator string, n uint64) ident.Identifier {
	return ident.Identifier{Creator: ident.PeerId(creator), OpNumber: n}
}

func TestPutGetHas(t *testing.T) {
	b := New()
	id := mkID("A", 1)

	_, ok := b.Get(id)
	require.False(t, ok)
	require.False(t, b.Has(id))

	d := op.NewDelete(id, op.BoundRef(nil))
	b.Put(d)

	require.True(t, b.Has(id))
	got, ok := b.Get(id)
	require.True(t, ok)
	require.Equal(t, d, got)
}

func TestPutIsIdempotent(t *testing.T) {
	b := New()
	id := mkID("A", 1)

	first := op.NewDelete(id, op.BoundRef(nil))
	second := op.NewDelete(id, op.BoundRef(nil))
	b.Put(first)
	b.Put(second)

	got, ok := b.Get(id)
	require.True(t, ok)
	require.Same(t, first, got)
}

func TestAllReturnsRegistrationOrder(t *testing.T) {
	b := New()
	idA := mkID("A", 1)
	idB := mkID("B", 1)
	idC := mkID("C", 1)

	opA := op.NewDelete(idA, op.BoundRef(nil))
	opB := op.NewDelete(idB, op.BoundRef(nil))
	opC := op.NewDelete(idC, op.BoundRef(nil))
	b.Put(opB)
	b.Put(opA)
	b.Put(opC)

	all := b.All()
	require.Len(t, all, 3)
	require.Equal(t, idB, all[0].Identity())
	require.Equal(t, idA, all[1].Identity())
	require.Equal(t, idC, all[2].Identity())
}

func TestDeferAndWake(t *testing.T) {
	b := New()
	missing := mkID("A", 1)
	waiter := op.NewDelete(mkID("B", 1), op.PendingRef(missing))

	b.Defer(missing, waiter)

	// Waking an unrelated id returns nothing and doesn't clear it.
	require.Empty(t, b.Wake(mkID("Z", 9)))

	woken := b.Wake(missing)
	require.Len(t, woken, 1)
	require.Equal(t, waiter.Identity(), woken[0].Identity())

	// Wake clears the pending set; a second call returns nothing.
	require.Empty(t, b.Wake(missing))
}

func TestDeferDedupesSameWaiterTwice(t *testing.T) {
	b := New()
	missing := mkID("A", 1)
	waiter := op.NewDelete(mkID("B", 1), op.PendingRef(missing))

	b.Defer(missing, waiter)
	b.Defer(missing, waiter)

	require.Len(t, b.Wake(missing), 1)
}
