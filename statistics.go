package heapkit

import (
	"math"
	"time"
)

// NumSizeClasses is the number of segregated size classes heaps group free
// blocks into. The first seven classes have fixed upper bounds; the eighth
// is a catch-all for everything larger.
const NumSizeClasses = 8

// Statistics is a snapshot of the counters a heap maintains while it serves
// allocations. All byte counts refer to payload bytes unless stated
// otherwise; cumulative counters (TotalAllocations, RequestedBytes, ...)
// only ever grow over the heap's lifetime.
type Statistics struct {
	// AllocatedBytes is the payload bytes currently held by live blocks.
	AllocatedBytes int
	// FreeBytes is the payload bytes currently held by free blocks.
	FreeBytes int
	// AllocatedBlocks is the number of currently live blocks.
	AllocatedBlocks int
	// FreeBlocks is the number of currently free blocks.
	FreeBlocks int

	// TotalAllocations counts every allocation attempt, including failures.
	TotalAllocations int
	// TotalFrees counts every successful free.
	TotalFrees int
	// FailedAllocations counts allocation attempts that found no block.
	FailedAllocations int

	// RequestedBytes is the cumulative sum of user-requested sizes.
	RequestedBytes int
	// OverheadBytes is the cumulative metadata and padding bytes consumed
	// by allocations (headers, footers, alignment slack).
	OverheadBytes int

	// FreeRegionCount is the number of discrete free blocks, recomputed
	// from the free lists after each mutating operation.
	FreeRegionCount int
	// LargestFreeBlock is the payload size of the largest free block.
	LargestFreeBlock int
	// SmallestFreeBlock is the payload size of the smallest free block, or
	// 0 when no free blocks exist.
	SmallestFreeBlock int

	// ClassAllocatedBytes is the live payload bytes per size class.
	ClassAllocatedBytes [NumSizeClasses]int

	// AllocTime and FreeTime are the cumulative wall-clock time spent
	// inside Alloc and Free respectively.
	AllocTime time.Duration
	FreeTime  time.Duration
}

func (s *Statistics) Clear() {
	*s = Statistics{}
}

// FragmentationIndex reports how badly the free space is shattered:
// 0 means all free bytes sit in one block, values approaching 1 mean the
// largest free block is a vanishing share of the free space.
func (s *Statistics) FragmentationIndex() float64 {
	if s.FreeBlocks <= 1 || s.FreeBytes == 0 {
		return 0
	}
	return 1.0 - float64(s.LargestFreeBlock)/float64(s.FreeBytes)
}

// DetailedStatistics extends Statistics with extreme values gathered during
// a full arena walk.
type DetailedStatistics struct {
	Statistics
	AllocationSizeMin int
	AllocationSizeMax int
	FreeRegionSizeMin int
	FreeRegionSizeMax int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.AllocationSizeMin = math.MaxInt
	s.AllocationSizeMax = 0
	s.FreeRegionSizeMin = math.MaxInt
	s.FreeRegionSizeMax = 0
}

func (s *DetailedStatistics) AddAllocation(size int) {
	s.AllocatedBlocks++
	s.AllocatedBytes += size

	if size < s.AllocationSizeMin {
		s.AllocationSizeMin = size
	}

	if size > s.AllocationSizeMax {
		s.AllocationSizeMax = size
	}
}

func (s *DetailedStatistics) AddFreeRegion(size int) {
	s.FreeBlocks++
	s.FreeBytes += size

	if size < s.FreeRegionSizeMin {
		s.FreeRegionSizeMin = size
	}

	if size > s.FreeRegionSizeMax {
		s.FreeRegionSizeMax = size
	}
}
