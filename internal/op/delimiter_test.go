package op

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"collabtext/internal/ident"
)

func TestDelimiterHeadShape(t *testing.T) {
	head := NewDelimiter(ident.Head, Ref{}, Ref{})
	require.NoError(t, head.Execute(mapStore{}))
	require.True(t, head.IsExecuted())
	require.Nil(t, head.PrevCL())
}

func TestDelimiterTailShapeLinksToPrev(t *testing.T) {
	head := NewDelimiter(ident.Head, Ref{}, Ref{})
	require.NoError(t, head.Execute(mapStore{}))

	tail := NewDelimiter(ident.Tail, BoundRef(head), Ref{})
	require.NoError(t, tail.Execute(mapStore{}))

	require.Same(t, tail, head.NextCL())
	require.Same(t, head, tail.PrevCL())
}

func TestDelimiterTailShapeRejectsDoubleLink(t *testing.T) {
	head := NewDelimiter(ident.Head, Ref{}, Ref{})
	require.NoError(t, head.Execute(mapStore{}))

	first := NewDelimiter(ident.Tail, BoundRef(head), Ref{})
	require.NoError(t, first.Execute(mapStore{}))

	conflicting := NewDelimiter(ident.Identifier{Creator: "X", OpNumber: 9}, BoundRef(head), Ref{})
	err := conflicting.Execute(mapStore{})
	require.ErrorIs(t, err, ErrDuplicateOperation)

	var dupErr *DuplicateOperationError
	require.True(t, errors.As(err, &dupErr))
	require.Equal(t, conflicting.Identity(), dupErr.Identifier)
}

func TestDelimiterBothSetSymmetricAttach(t *testing.T) {
	head := NewDelimiter(ident.Head, Ref{}, Ref{})
	tail := NewDelimiter(ident.Tail, Ref{}, Ref{})

	mid := NewDelimiter(ident.Identifier{Creator: "X", OpNumber: 1}, BoundRef(head), BoundRef(tail))
	require.NoError(t, mid.Execute(mapStore{}))

	require.Same(t, mid, head.NextCL())
	require.Same(t, mid, tail.PrevCL())
}

func TestDelimiterUnderspecifiedIsFatal(t *testing.T) {
	bad := NewDelimiter(ident.Identifier{Creator: "X", OpNumber: 1}, Ref{}, Ref{})
	// A non-sentinel delimiter with neither side named is also what
	// Decode builds from a Delimiter frame carrying neither prev nor
	// next.
	bad.prevRef = Ref{}
	bad.nextRef = Ref{}
	err := bad.Execute(mapStore{})
	require.ErrorIs(t, err, ErrUnderspecifiedDelimiter)

	var underErr *UnderspecifiedDelimiterError
	require.True(t, errors.As(err, &underErr))
	require.Equal(t, bad.Identity(), underErr.Identifier)
}

func TestDelimiterExecuteIsIdempotent(t *testing.T) {
	head := NewDelimiter(ident.Head, Ref{}, Ref{})
	require.NoError(t, head.Execute(mapStore{}))
	require.NoError(t, head.Execute(mapStore{}))
}
