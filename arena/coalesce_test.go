package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// tile is one (payloadSize, free) pair; tiles walks the tiling and returns
// them in physical order.
type tile struct {
	payload int
	free    bool
}

func tiles(t *testing.T, h *Heap) []tile {
	t.Helper()

	var out []tile
	err := h.VisitBlocks(func(info BlockInfo) error {
		out = append(out, tile{payload: info.PayloadSize, free: info.Free})
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestCoalesceForward(t *testing.T) {
	h := newTestHeap(t, nil)
	defer h.Close()

	a := h.Alloc(64)
	b := h.Alloc(64)
	c := h.Alloc(64)
	require.NotNil(t, a)
	require.NotNil(t, b)
	require.NotNil(t, c)

	// freeing b leaves it alone; freeing a then absorbs b forward
	h.Free(b)
	h.Free(a)

	layout := tiles(t, h)
	require.Len(t, layout, 3)
	require.True(t, layout[0].free)
	require.Equal(t, 96+headerSize+96+footerSize, layout[0].payload)
	require.False(t, layout[1].free)

	require.NoError(t, h.Validate())
}

func TestCoalesceBackward(t *testing.T) {
	h := newTestHeap(t, nil)
	defer h.Close()

	a := h.Alloc(64)
	b := h.Alloc(64)
	c := h.Alloc(64)
	require.NotNil(t, a)
	require.NotNil(t, b)
	require.NotNil(t, c)

	// freeing a first, then b: b's forward neighbor is live, so the
	// merge happens backward into a
	h.Free(a)
	h.Free(b)

	layout := tiles(t, h)
	require.Len(t, layout, 3)
	require.True(t, layout[0].free)
	require.Equal(t, 96+headerSize+96+footerSize, layout[0].payload)
	require.False(t, layout[1].free)

	require.NoError(t, h.Validate())
}

func TestCoalesceBothSides(t *testing.T) {
	h := newTestHeap(t, nil)
	defer h.Close()

	a := h.Alloc(64)
	b := h.Alloc(64)
	c := h.Alloc(64)
	d := h.Alloc(64)
	require.NotNil(t, a)
	require.NotNil(t, b)
	require.NotNil(t, c)
	require.NotNil(t, d)

	h.Free(a)
	h.Free(c)
	h.Free(b)

	layout := tiles(t, h)
	require.Len(t, layout, 3)
	require.True(t, layout[0].free)
	require.Equal(t, 3*96+2*(headerSize+footerSize), layout[0].payload)
	require.False(t, layout[1].free)

	require.NoError(t, h.Validate())
}

func TestCoalesceReclassifiesSurvivor(t *testing.T) {
	h := newTestHeap(t, nil)
	defer h.Close()

	a := h.Alloc(64)
	b := h.Alloc(64)
	c := h.Alloc(64)
	require.NotNil(t, a)
	require.NotNil(t, b)
	require.NotNil(t, c)

	// a alone is class 2 (payload 96); merged with b it becomes
	// payload 272, class 4
	h.Free(b)
	h.Free(a)

	require.Empty(t, freeListOffsets(h, 2))
	merged := freeListOffsets(h, classOf(96+headerSize+96+footerSize))
	require.Len(t, merged, 1)
	require.Equal(t, 0, merged[0])

	require.NoError(t, h.Validate())
}

func TestNoAdjacentFreeAfterAnySequence(t *testing.T) {
	h := newTestHeap(t, nil)
	defer h.Close()

	var ptrs [][]byte
	for i := 0; i < 12; i++ {
		p := h.Alloc((i%4 + 1) * 48)
		require.NotNil(t, p)
		ptrs = append(ptrs, p)
	}

	order := []int{7, 2, 9, 0, 5, 11, 3, 8, 1, 10, 6, 4}
	for _, i := range order {
		h.Free(ptrs[i])
		require.NoError(t, h.Validate())
	}

	// everything merged back into one free block spanning the arena
	layout := tiles(t, h)
	require.Len(t, layout, 1)
	require.True(t, layout[0].free)
	require.Equal(t, h.cfg.HeapSize-headerSize-footerSize, layout[0].payload)
}

func TestBoundaryTagsOffSkipsBackwardMerge(t *testing.T) {
	h := newTestHeap(t, func(cfg *Config) {
		cfg.BoundaryTags = false
	})
	defer h.Close()

	a := h.Alloc(64)
	b := h.Alloc(64)
	c := h.Alloc(64)
	require.NotNil(t, a)
	require.NotNil(t, b)
	require.NotNil(t, c)

	// without boundary tags b cannot merge backward into a
	h.Free(a)
	h.Free(b)

	layout := tiles(t, h)
	require.Len(t, layout, 4)
	require.True(t, layout[0].free)
	require.True(t, layout[1].free)
	require.False(t, layout[2].free)

	require.NoError(t, h.Validate())

	// forward merging still works
	h.Free(c)
	layout = tiles(t, h)
	require.True(t, layout[2].free)
	require.Len(t, layout, 3)
}
