package arena

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func newTestHeap(t *testing.T, mutate func(*Config)) *Heap {
	t.Helper()

	cfg := DefaultConfig()
	cfg.DebugLevel = 0
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	if mutate != nil {
		mutate(&cfg)
	}

	h, err := New(cfg)
	require.NoError(t, err)
	return h
}

func TestClassOf(t *testing.T) {
	cases := []struct {
		size  int
		class int
	}{
		{1, 0},
		{32, 0},
		{33, 1},
		{64, 1},
		{65, 2},
		{128, 2},
		{129, 3},
		{256, 3},
		{257, 4},
		{512, 4},
		{513, 5},
		{1024, 5},
		{1025, 6},
		{2048, 6},
		{2049, 7},
		{1 << 20, 7},
	}
	for _, c := range cases {
		require.Equal(t, c.class, classOf(c.size), "classOf(%d)", c.size)
	}
}

func TestLayoutConstants(t *testing.T) {
	require.Equal(t, 0, headerSize%Alignment)
	require.Equal(t, 0, footerSize%Alignment)
	require.Equal(t, 0, MinBlockSize%Alignment)
	require.Equal(t, 80, MinBlockSize)
}

func TestHeaderRoundTrip(t *testing.T) {
	h := newTestHeap(t, nil)
	defer h.Close()

	b := h.blockAt(0)
	require.Equal(t, SentinelValue, b.startSentinel())
	require.Equal(t, SentinelValue, b.endSentinel())
	require.True(t, b.isFree())
	require.Equal(t, h.cfg.HeapSize-headerSize-footerSize, b.payloadSize())
	require.False(t, b.listPrev().valid())
	require.False(t, b.listNext().valid())

	b.setRequestSize(123)
	require.Equal(t, 123, b.requestSize())
	b.setAllocID(99)
	require.Equal(t, uint64(99), b.allocID())
	b.setAddressTag(liveTag)
	require.Equal(t, liveTag, b.addressTag())
}

func TestFooterMirrorsHeader(t *testing.T) {
	h := newTestHeap(t, nil)
	defer h.Close()

	b := h.blockAt(0)
	require.Equal(t, FooterSentinel, b.footerSentinel())
	require.Equal(t, b.payloadSize(), b.footerPayloadSize())
	require.Equal(t, b.isFree(), b.footerFree())

	b.setFree(false)
	b.writeFooter()
	require.False(t, b.footerFree())
	require.Equal(t, b.payloadSize(), b.footerPayloadSize())
}

func TestPhysicalNavigation(t *testing.T) {
	h := newTestHeap(t, nil)
	defer h.Close()

	p := h.Alloc(100)
	require.NotNil(t, p)

	first := h.blockAt(0)
	second := first.nextPhysical()
	require.True(t, second.valid())
	require.Equal(t, headerSize+first.payloadSize()+footerSize, second.off)

	back := second.prevPhysical()
	require.True(t, back.valid())
	require.Equal(t, 0, back.off)

	// the first block has nothing before it
	require.False(t, first.prevPhysical().valid())

	// the last block has nothing after it
	last := second
	for {
		next := last.nextPhysical()
		if !next.valid() {
			break
		}
		last = next
	}
	require.False(t, last.nextPhysical().valid())
}

func TestPrevPhysicalWithoutBoundaryTags(t *testing.T) {
	h := newTestHeap(t, func(cfg *Config) {
		cfg.BoundaryTags = false
	})
	defer h.Close()

	p := h.Alloc(100)
	require.NotNil(t, p)

	second := h.blockAt(0).nextPhysical()
	require.True(t, second.valid())
	require.False(t, second.prevPhysical().valid())
}

func TestPrevPhysicalCorruptedFooterReadsAsNone(t *testing.T) {
	h := newTestHeap(t, nil)
	defer h.Close()

	p := h.Alloc(100)
	require.NotNil(t, p)

	first := h.blockAt(0)
	second := first.nextPhysical()
	require.True(t, second.valid())

	h.arena[first.footerOff()+offFooterSentinel] ^= 0xFF
	require.False(t, second.prevPhysical().valid())
}
