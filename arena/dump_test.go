package arena

import (
	"bytes"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/require"
)

func TestVisitBlocksTilesTheWholeArena(t *testing.T) {
	h := newTestHeap(t, nil)
	defer h.Close()

	for i := 0; i < 5; i++ {
		require.NotNil(t, h.Alloc(64*(i+1)))
	}

	walked := 0
	err := h.VisitBlocks(func(info BlockInfo) error {
		walked += headerSize + info.PayloadSize + footerSize
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, h.Size(), walked)
}

func TestVisitBlocksReportsLiveState(t *testing.T) {
	h := newTestHeap(t, nil)
	defer h.Close()

	p := h.Alloc(100)
	require.NotNil(t, p)

	var infos []BlockInfo
	err := h.VisitBlocks(func(info BlockInfo) error {
		infos = append(infos, info)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, infos, 2)

	require.False(t, infos[0].Free)
	require.Equal(t, 100, infos[0].RequestSize)
	require.Equal(t, uint64(1), infos[0].AllocID)
	require.True(t, infos[1].Free)
	require.Zero(t, infos[1].AllocID)
}

func TestVisitBlocksStopsOnError(t *testing.T) {
	h := newTestHeap(t, nil)
	defer h.Close()

	require.NotNil(t, h.Alloc(32))

	visited := 0
	err := h.VisitBlocks(func(info BlockInfo) error {
		visited++
		return errStop
	})
	require.ErrorIs(t, err, errStop)
	require.Equal(t, 1, visited)
}

func TestWriteHeapMapProducesValidJSON(t *testing.T) {
	h := newTestHeap(t, nil)
	defer h.Close()

	require.NotNil(t, h.Alloc(100))
	require.NotNil(t, h.Alloc(200))

	writer := jwriter.NewWriter()
	h.WriteHeapMap(&writer)
	require.NoError(t, writer.Error())

	var parsed struct {
		HeapSize int
		Blocks   []struct {
			Offset      int
			PayloadSize int
			Free        bool
		}
	}
	require.NoError(t, json.Unmarshal(writer.Bytes(), &parsed))

	require.Equal(t, h.Size(), parsed.HeapSize)
	require.Len(t, parsed.Blocks, 3)
	require.Zero(t, parsed.Blocks[0].Offset)
	for i := 1; i < len(parsed.Blocks); i++ {
		require.Greater(t, parsed.Blocks[i].Offset, parsed.Blocks[i-1].Offset)
	}
}

func TestWriteStatsProducesValidJSON(t *testing.T) {
	h := newTestHeap(t, nil)
	defer h.Close()

	require.NotNil(t, h.Alloc(100))

	writer := jwriter.NewWriter()
	h.WriteStats(&writer)
	require.NoError(t, writer.Error())

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(writer.Bytes(), &parsed))

	require.EqualValues(t, 1, parsed["TotalAllocations"])
	require.EqualValues(t, 1, parsed["AllocatedBlocks"])
	require.Contains(t, parsed, "ClassAllocatedBytes")
	require.Len(t, parsed["ClassAllocatedBytes"], 8)
}

func TestVisualizeDrawsTheArena(t *testing.T) {
	h := newTestHeap(t, nil)
	defer h.Close()

	// a quarter of the arena in one live block shows up as used cells
	require.NotNil(t, h.Alloc(h.Capacity() / 4))

	var buf bytes.Buffer
	h.Visualize(&buf, 40)

	out := buf.String()
	lines := strings.Split(out, "\n")
	require.Len(t, lines[0], 40)
	require.Contains(t, lines[0], "#")
	require.Contains(t, lines[0], ".")
	require.Contains(t, out, "Legend")
}

func TestDetailedStatsMatchesRunningCounters(t *testing.T) {
	h := newTestHeap(t, nil)
	defer h.Close()

	require.NotNil(t, h.Alloc(100))
	require.NotNil(t, h.Alloc(5000))
	p := h.Alloc(64)
	require.NotNil(t, p)
	h.Free(p)

	detailed := h.DetailedStats()
	stats := h.Stats()

	require.Equal(t, stats.AllocatedBytes, detailed.AllocatedBytes)
	require.Equal(t, stats.AllocatedBlocks, detailed.AllocatedBlocks)
	require.Equal(t, stats.FreeBytes, detailed.FreeBytes)
	require.Equal(t, stats.FreeBlocks, detailed.FreeBlocks)
	require.Equal(t, stats.LargestFreeBlock, detailed.LargestFreeBlock)
	require.Equal(t, stats.SmallestFreeBlock, detailed.SmallestFreeBlock)
	require.Equal(t, 144, detailed.AllocationSizeMin)
	require.Equal(t, 5040, detailed.AllocationSizeMax)
}

func TestUsageBreakdownSumsToWhole(t *testing.T) {
	h := newTestHeap(t, nil)
	defer h.Close()

	require.NotNil(t, h.Alloc(4096))

	used, free, overhead, _ := h.UsageBreakdown()
	require.InDelta(t, 100.0, used+free+overhead, 0.01)
	require.Positive(t, used)
	require.Positive(t, free)
	require.Positive(t, overhead)
}
