package op

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"collabtext/internal/ident"
)

// chain builds a minimal HEAD-TAIL complete list with no intervening
// nodes, ready for integrateInsert calls to splice into.
func chain() (*Delimiter, *Delimiter) {
	head := NewDelimiter(ident.Head, Ref{}, Ref{})
	tail := NewDelimiter(ident.Tail, BoundRef(head), Ref{})
	head.nextRef = BoundRef(tail)
	return head, tail
}

func newIns(creator string, n uint64, origin, prev, next Operation) *Insert {
	id := ident.Identifier{Creator: ident.PeerId(creator), OpNumber: n}
	ins := NewInsert(id, BoundRef(origin), BoundRef(prev), BoundRef(next))
	return ins
}

func TestIntegrateInsertIntoEmptyChain(t *testing.T) {
	head, tail := chain()
	x := newIns("A", 1, head, head, tail)

	require.NoError(t, integrateInsert(Operation(x)))
	require.Same(t, Operation(head), x.PrevCL())
	require.Same(t, Operation(tail), x.NextCL())
	require.Same(t, Operation(x), head.NextCL())
	require.Same(t, Operation(x), tail.PrevCL())
}

func TestIntegrateInsertIsIdempotent(t *testing.T) {
	head, tail := chain()
	x := newIns("A", 1, head, head, tail)
	require.NoError(t, integrateInsert(Operation(x)))
	require.NoError(t, integrateInsert(Operation(x)))
	require.Same(t, Operation(x), head.NextCL())
}

func TestIntegrateSameOriginLowerCreatorWinsLeft(t *testing.T) {
	// Two concurrent inserts at the same origin (HEAD): whichever
	// creator sorts lower ends up left, regardless of integration
	// order, per spec §4.3 case 1.
	head, tail := chain()

	a := newIns("A", 1, head, head, tail)
	require.NoError(t, integrateInsert(Operation(a)))

	b := newIns("B", 1, head, head, tail)
	require.NoError(t, integrateInsert(Operation(b)))

	require.Same(t, Operation(a), head.NextCL())
	require.Same(t, Operation(b), a.NextCL())
	require.Same(t, Operation(tail), b.NextCL())
}

func TestIntegrateSameOriginReverseIntegrationOrderSameResult(t *testing.T) {
	// Integrating the higher creator first, then the lower: the lower
	// creator must still end up left of the higher one.
	head, tail := chain()

	b := newIns("B", 1, head, head, tail)
	require.NoError(t, integrateInsert(Operation(b)))

	a := newIns("A", 1, head, head, tail)
	require.NoError(t, integrateInsert(Operation(a)))

	require.Same(t, Operation(a), head.NextCL())
	require.Same(t, Operation(b), a.NextCL())
	require.Same(t, Operation(tail), b.NextCL())
}

func TestIntegrateDistinctOriginsPreserveInsertionOrder(t *testing.T) {
	// x anchors off HEAD; y is issued afterwards (not concurrently) and
	// origins off x, so it must land immediately after x regardless
	// of creator comparison.
	head, tail := chain()

	x := newIns("Z", 1, head, head, tail)
	require.NoError(t, integrateInsert(Operation(x)))

	y := newIns("A", 1, x, x, tail)
	require.NoError(t, integrateInsert(Operation(y)))

	require.Same(t, Operation(x), head.NextCL())
	require.Same(t, Operation(y), x.NextCL())
	require.Same(t, Operation(tail), y.NextCL())
}

func TestDistanceToOriginSelfCyclePanics(t *testing.T) {
	head, tail := chain()
	x := newIns("A", 1, head, head, tail)
	// Simulate the corrupted CL link distanceToOrigin guards against:
	// a node whose own prevCL points back at itself.
	x.prevRef = BoundRef(Operation(x))

	require.Panics(t, func() {
		distanceToOrigin(x)
	})
}

func TestInsertExecuteRecoversImpossibleLinkage(t *testing.T) {
	head, tail := chain()

	y := newIns("B", 1, head, head, tail)
	require.NoError(t, integrateInsert(Operation(y)))
	// Corrupt y's own prevCL after integration so that scanning past
	// it during a later, concurrent integration hits the self-cycle
	// guard instead of completing normally.
	y.prevRef = BoundRef(Operation(y))

	z := newIns("A", 1, head, head, tail)
	err := z.Execute(mapStore{})
	require.ErrorIs(t, err, ErrImpossibleLinkage)

	var linkageErr *ImpossibleLinkageError
	require.True(t, errors.As(err, &linkageErr))
	require.Equal(t, z.Identity(), linkageErr.Identifier)
}
