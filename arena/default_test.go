package arena_test

import (
	"testing"

	"github.com/memforge/heapkit/arena"
	"github.com/stretchr/testify/require"
)

func TestDefaultHeapRoundTrip(t *testing.T) {
	p := arena.Alloc(24)
	require.NotNil(t, p)
	require.Len(t, p, 24)
	require.Equal(t, 24, arena.SizeOf(p))

	p = arena.Realloc(p, 48)
	require.NotNil(t, p)
	require.Equal(t, 48, arena.SizeOf(p))

	arena.Free(p)
	require.Zero(t, arena.SizeOf(p))
}

func TestDefaultHeapCalloc(t *testing.T) {
	p := arena.Calloc(4, 16)
	require.NotNil(t, p)
	require.Len(t, p, 64)
	for i := range p {
		require.Zero(t, p[i])
	}
	arena.Free(p)
}

func TestDefaultIsStable(t *testing.T) {
	require.Same(t, arena.Default(), arena.Default())
}
