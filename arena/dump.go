package arena

import (
	"fmt"
	"io"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/memforge/heapkit"
	"golang.org/x/exp/slog"
)

// BlockInfo describes one arena tile for external dumpers.
type BlockInfo struct {
	// Offset is the block's position from the arena base.
	Offset int
	// PayloadSize is the bytes between the block's header and footer.
	PayloadSize int
	// RequestSize is the user-visible size last requested, 0 when free.
	RequestSize int
	// Free is the block's current state.
	Free bool
	// AllocID is the id of the allocation occupying the block, 0 when free.
	AllocID uint64
}

// VisitBlocks walks the arena tiling from low to high address and calls fn
// once per block. The walk stops early on fn's first error, which is
// returned, or when a corrupted header is met.
func (h *Heap) VisitBlocks(fn func(BlockInfo) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized {
		return nil
	}

	off := 0
	for off+headerSize <= len(h.arena) {
		b := h.blockAt(off)
		if b.startSentinel() != SentinelValue {
			h.logger.Error("memory corruption: heap walk stopped at corrupted block",
				slog.String("where", "VisitBlocks"),
				slog.Int("offset", off))
			return nil
		}

		info := BlockInfo{
			Offset:      off,
			PayloadSize: b.payloadSize(),
			Free:        b.isFree(),
		}
		if !info.Free {
			info.RequestSize = b.requestSize()
			info.AllocID = b.allocID()
		}
		err := fn(info)
		if err != nil {
			return err
		}

		off += headerSize + b.payloadSize() + h.footerOverhead()
	}

	return nil
}

// WriteHeapMap streams a JSON description of every block in the arena, low
// to high, into the provided writer.
func (h *Heap) WriteHeapMap(writer *jwriter.Writer) {
	obj := writer.Object()
	defer obj.End()

	obj.Name("HeapSize").Int(h.cfg.HeapSize)

	arr := obj.Name("Blocks").Array()
	defer arr.End()

	_ = h.VisitBlocks(func(info BlockInfo) error {
		blockObj := arr.Object()
		defer blockObj.End()

		blockObj.Name("Offset").Int(info.Offset)
		blockObj.Name("PayloadSize").Int(info.PayloadSize)
		blockObj.Name("Free").Bool(info.Free)
		if !info.Free {
			blockObj.Name("RequestSize").Int(info.RequestSize)
			blockObj.Name("AllocID").Int(int(info.AllocID))
		}
		return nil
	})
}

// WriteStats streams the current statistics snapshot as JSON into the
// provided writer.
func (h *Heap) WriteStats(writer *jwriter.Writer) {
	stats := h.Stats()

	obj := writer.Object()
	defer obj.End()

	obj.Name("AllocatedBytes").Int(stats.AllocatedBytes)
	obj.Name("AllocatedBlocks").Int(stats.AllocatedBlocks)
	obj.Name("FreeBytes").Int(stats.FreeBytes)
	obj.Name("FreeBlocks").Int(stats.FreeBlocks)
	obj.Name("TotalAllocations").Int(stats.TotalAllocations)
	obj.Name("TotalFrees").Int(stats.TotalFrees)
	obj.Name("FailedAllocations").Int(stats.FailedAllocations)
	obj.Name("RequestedBytes").Int(stats.RequestedBytes)
	obj.Name("OverheadBytes").Int(stats.OverheadBytes)
	obj.Name("LargestFreeBlock").Int(stats.LargestFreeBlock)
	obj.Name("SmallestFreeBlock").Int(stats.SmallestFreeBlock)
	obj.Name("FragmentationIndex").Float64(stats.FragmentationIndex())

	classes := obj.Name("ClassAllocatedBytes").Array()
	for _, bytes := range stats.ClassAllocatedBytes {
		classes.Int(bytes)
	}
	classes.End()
}

// DetailedStats walks the arena tiling and gathers per-block extremes on
// top of the basic counters. Unlike Stats it is derived from the physical
// layout, not the running counters, so it is available even when
// statistics are disabled.
func (h *Heap) DetailedStats() heapkit.DetailedStatistics {
	var stats heapkit.DetailedStatistics
	stats.Clear()

	_ = h.VisitBlocks(func(info BlockInfo) error {
		if info.Free {
			stats.AddFreeRegion(info.PayloadSize)
		} else {
			stats.AddAllocation(info.PayloadSize)
		}
		return nil
	})

	stats.FreeRegionCount = stats.FreeBlocks
	if stats.FreeBlocks > 0 {
		stats.LargestFreeBlock = stats.FreeRegionSizeMax
		stats.SmallestFreeBlock = stats.FreeRegionSizeMin
	}
	return stats
}

// Visualize writes a one-line ASCII strip of the arena to w: '#' for used
// payload, '.' for free payload, 'o' for metadata overhead.
func (h *Heap) Visualize(w io.Writer, width int) {
	if width <= 0 {
		width = 60
	}

	strip := make([]byte, width)
	for i := range strip {
		strip[i] = '.'
	}

	bytesPerCell := float64(h.cfg.HeapSize) / float64(width)

	_ = h.VisitBlocks(func(info BlockInfo) error {
		start := int(float64(info.Offset) / bytesPerCell)
		headerEnd := start + int(float64(headerSize)/bytesPerCell)
		dataEnd := headerEnd + int(float64(info.PayloadSize)/bytesPerCell)
		footerEnd := dataEnd + int(float64(h.footerOverhead())/bytesPerCell)

		fill := func(from, to int, c byte) {
			for i := from; i < to && i < width; i++ {
				strip[i] = c
			}
		}

		fill(start, headerEnd, 'o')
		if info.Free {
			fill(headerEnd, dataEnd, '.')
		} else {
			fill(headerEnd, dataEnd, '#')
		}
		fill(dataEnd, footerEnd, 'o')
		return nil
	})

	fmt.Fprintf(w, "%s\n", strip)
	fmt.Fprintf(w, "Legend: #=Used, .=Free, o=Overhead\n")
}

// UsageBreakdown reports the arena's used, free and overhead shares as
// percentages of the whole, plus the fragmentation index as a percentage.
func (h *Heap) UsageBreakdown() (usedPercent, freePercent, overheadPercent, fragmentation float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized {
		return 0, 0, 0, 0
	}

	var usedBytes, freeBytes int
	var blocks int
	off := 0
	for off+headerSize <= len(h.arena) {
		b := h.blockAt(off)
		if b.startSentinel() != SentinelValue {
			break
		}
		if b.isFree() {
			freeBytes += b.payloadSize()
		} else {
			usedBytes += b.payloadSize()
		}
		blocks++
		off += headerSize + b.payloadSize() + h.footerOverhead()
	}

	overheadBytes := blocks * (headerSize + h.footerOverhead())
	total := float64(usedBytes + freeBytes + overheadBytes)
	if total == 0 {
		return 0, 0, 0, 0
	}

	usedPercent = float64(usedBytes) / total * 100
	freePercent = float64(freeBytes) / total * 100
	overheadPercent = float64(overheadBytes) / total * 100
	fragmentation = h.stats.FragmentationIndex() * 100
	return usedPercent, freePercent, overheadPercent, fragmentation
}
