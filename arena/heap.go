// Package arena implements a dynamic memory allocator over a single
// fixed-size byte region. Blocks carry their metadata in band: a
// sentinel-guarded header, an optional mirroring footer (the boundary tag),
// and optional red zones around every user region. Free blocks are
// organized into eight segregated free lists searched best-fit within a
// class with fallback to larger classes.
package arena

import (
	"math"
	"runtime"
	"time"
	"unsafe"

	"github.com/dolthub/swiss"
	"github.com/memforge/heapkit"
	"github.com/memforge/heapkit/internal/utils"
	"github.com/pkg/errors"
	"golang.org/x/exp/slog"
)

// Heap manages a single fixed-size arena and serves allocations out of it.
// The arena is tiled end to end by blocks; free blocks are registered in
// eight segregated free lists, live blocks in a used list. All state is
// guarded by one mutex (a no-op when Config.ThreadSafe is false).
type Heap struct {
	mu     utils.OptionalMutex
	cfg    Config
	logger *slog.Logger

	arena       []byte
	freeLists   [heapkit.NumSizeClasses]int
	usedList    int
	nextAllocID uint64
	initialized bool

	records *swiss.Map[int, *AllocationRecord]
	stats   heapkit.Statistics
}

// New constructs a heap from the provided configuration. The arena is
// acquired and initialized immediately.
func New(cfg Config) (*Heap, error) {
	if cfg.HeapSize == 0 {
		cfg.HeapSize = DefaultHeapSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if err := heapkit.CheckMultiple(uint(cfg.HeapSize), Alignment, "heap size"); err != nil {
		return nil, err
	}
	if cfg.HeapSize < headerSize+MinBlockSize+footerSize {
		return nil, errors.Errorf("heap size %d cannot hold a single block", cfg.HeapSize)
	}

	h := &Heap{
		cfg:    cfg,
		logger: cfg.Logger,
	}
	h.mu.UseMutex = cfg.ThreadSafe
	h.initialize()

	return h, nil
}

// initialize acquires the arena, zero-fills it and shapes it into one free
// block spanning the whole region. It is idempotent and safe to call from
// any operation that finds the heap uninitialized.
func (h *Heap) initialize() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.initialized {
		return
	}

	heapkit.DebugCheckPow2(uint(Alignment), "alignment")

	h.arena = make([]byte, h.cfg.HeapSize)
	for i := range h.freeLists {
		h.freeLists[i] = noBlock
	}
	h.usedList = noBlock
	h.nextAllocID = 1
	if h.cfg.LeakDetection {
		h.records = swiss.NewMap[int, *AllocationRecord](64)
	}

	first := h.blockAt(0)
	first.initHeader(h.cfg.HeapSize-headerSize-h.footerOverhead(), true)
	first.writeFooter()
	h.addToFreeList(first)

	if h.cfg.EnableStats {
		h.stats.Clear()
		h.stats.FreeBytes = first.payloadSize()
		h.stats.FreeBlocks = 1
		h.stats.FreeRegionCount = 1
		h.stats.LargestFreeBlock = first.payloadSize()
		h.stats.SmallestFreeBlock = first.payloadSize()
	}

	h.initialized = true
	if h.cfg.DebugLevel > 0 {
		h.logger.Info("heap initialized", slog.Int("heapSize", h.cfg.HeapSize))
	}
}

// Close releases the arena and all bookkeeping. Operations on a closed heap
// lazily re-initialize it with a fresh arena.
func (h *Heap) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized {
		return
	}

	h.records = nil
	h.arena = nil
	for i := range h.freeLists {
		h.freeLists[i] = noBlock
	}
	h.usedList = noBlock
	h.initialized = false

	if h.cfg.DebugLevel > 0 {
		h.logger.Info("heap closed")
	}
}

// Capacity returns the largest single request the empty heap can satisfy.
func (h *Heap) Capacity() int {
	return h.cfg.HeapSize - headerSize - h.footerOverhead() - h.guardOverhead()
}

// Size returns the arena size the heap was configured with.
func (h *Heap) Size() int {
	return h.cfg.HeapSize
}

// Alloc carves a zeroed region of exactly size bytes out of the arena and
// returns it. The returned slice's length and capacity both equal size; it
// must be handed back to Free or Realloc unsliced. Alloc returns nil when
// size is zero or no free block can hold the request.
func (h *Heap) Alloc(size int) []byte {
	file, line := h.leakSite()
	return h.alloc(size, file, line)
}

func (h *Heap) alloc(size int, file string, line int) []byte {
	if !h.initialized {
		h.initialize()
	}
	if size <= 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var start time.Time
	if h.cfg.EnableStats {
		h.stats.TotalAllocations++
		h.stats.RequestedBytes += size
		start = time.Now()
	}

	aligned := heapkit.AlignUp(size+h.guardOverhead(), Alignment)
	h.walkRegistries("Alloc")

	b := h.findBestFit(aligned)
	if !b.valid() {
		if h.cfg.EnableStats {
			h.stats.FailedAllocations++
		}
		return nil
	}

	preSize := b.payloadSize()
	h.removeFromFreeList(b, classOf(preSize))
	if preSize >= aligned+MinBlockSize {
		h.splitBlock(b, aligned)
	}

	b.setFree(false)
	b.setRequestSize(size)
	b.setAddressTag(liveTag)
	id := h.nextAllocID
	h.nextAllocID++
	b.setAllocID(id)
	h.addToUsedList(b)
	b.writeFooter()

	payload := b.payloadSize()
	if h.cfg.EnableStats {
		h.stats.FreeBytes -= preSize
		h.stats.FreeBlocks--
		if payload != preSize {
			h.stats.FreeBytes += preSize - payload - headerSize - h.footerOverhead()
			h.stats.FreeBlocks++
		}
		h.stats.AllocatedBytes += payload
		h.stats.AllocatedBlocks++
		h.stats.OverheadBytes += headerSize + h.footerOverhead() + (payload - size)
		h.stats.ClassAllocatedBytes[classOf(payload)] += payload
	}

	userOff := b.payloadOff()
	if h.cfg.MemoryGuards {
		userOff += Alignment
		h.stampGuards(userOff, size)
	}

	user := h.arena[userOff : userOff+size : userOff+size]
	for i := range user {
		user[i] = 0
	}

	if h.cfg.LeakDetection {
		h.records.Put(userOff, &AllocationRecord{
			Offset:  userOff,
			Size:    size,
			AllocID: id,
			File:    file,
			Line:    line,
		})
	}

	if h.cfg.EnableStats {
		h.stats.AllocTime += time.Since(start)
		h.updateFragmentationStats()
	}

	return user
}

// Free returns a region handed out by Alloc to the heap and merges it with
// any free neighbors. Freeing nil is a no-op; freeing the same region twice
// is reported and otherwise ignored.
func (h *Heap) Free(p []byte) {
	if !h.initialized {
		h.initialize()
	}
	if p == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.freeLocked(p)
}

func (h *Heap) freeLocked(p []byte) {
	h.walkRegistries("Free")

	var start time.Time
	if h.cfg.EnableStats {
		start = time.Now()
	}

	userOff, ok := h.offsetOf(p)
	if !ok {
		h.logger.Error("memory error: pointer is outside heap bounds",
			slog.String("where", "Free"))
		return
	}

	blockOff := userOff - headerSize
	if h.cfg.MemoryGuards {
		blockOff -= Alignment
	}

	b := h.blockAt(blockOff)
	if !h.validateBlock(b, "Free") {
		return
	}

	if b.isFree() {
		h.logger.Error("double free detected",
			slog.Int("offset", userOff),
			slog.Uint64("id", b.allocID()))
		return
	}

	if h.cfg.MemoryGuards && !h.checkGuards(userOff, b.requestSize()) {
		h.logger.Error("buffer overrun detected",
			slog.Int("offset", userOff),
			slog.Uint64("id", b.allocID()))
	}

	payload := b.payloadSize()
	if h.cfg.EnableStats {
		h.stats.AllocatedBytes -= payload
		h.stats.AllocatedBlocks--
		h.stats.FreeBytes += payload
		h.stats.FreeBlocks++
		h.stats.TotalFrees++
		h.stats.ClassAllocatedBytes[classOf(payload)] -= payload
	}

	b.setFree(true)
	b.setAddressTag(0)
	h.removeFromUsedList(b)
	h.addToFreeList(b)
	b.writeFooter()

	h.coalesce(b)

	if h.cfg.LeakDetection {
		h.records.Delete(userOff)
	}

	if h.cfg.EnableStats {
		h.stats.FreeTime += time.Since(start)
		h.updateFragmentationStats()
	}
}

// SizeOf returns the user-visible size of a live region, or 0 when p does
// not resolve to a live, intact block. It reads stable header fields of a
// presumed-live block and takes no lock.
func (h *Heap) SizeOf(p []byte) int {
	if p == nil || !h.initialized {
		return 0
	}

	userOff, ok := h.offsetOf(p)
	if !ok {
		return 0
	}

	blockOff := userOff - headerSize
	if h.cfg.MemoryGuards {
		blockOff -= Alignment
	}
	if blockOff < 0 || blockOff+headerSize > len(h.arena) {
		return 0
	}

	b := h.blockAt(blockOff)
	if b.startSentinel() != SentinelValue || b.endSentinel() != SentinelValue || b.isFree() {
		return 0
	}
	return b.requestSize()
}

// Realloc resizes a region. A nil p behaves like Alloc; a zero size behaves
// like Free and returns nil. Shrinks happen in place, splitting off the
// excess when it can stand as a block of its own. Grows allocate a new
// region, copy the old contents and free the old region; on allocation
// failure nil is returned and the old region stays intact.
//
// Realloc is not atomic: the grow path re-enters Alloc and Free, so a
// concurrent caller may be served from the freed space before Realloc
// returns.
func (h *Heap) Realloc(p []byte, size int) []byte {
	file, line := h.leakSite()
	return h.realloc(p, size, file, line)
}

func (h *Heap) realloc(p []byte, size int, file string, line int) []byte {
	if p == nil {
		return h.alloc(size, file, line)
	}
	if size <= 0 {
		h.Free(p)
		return nil
	}

	current := h.SizeOf(p)
	if current == 0 {
		return nil
	}

	h.mu.Lock()

	userOff, ok := h.offsetOf(p)
	if !ok {
		h.mu.Unlock()
		return nil
	}
	blockOff := userOff - headerSize
	if h.cfg.MemoryGuards {
		blockOff -= Alignment
	}
	b := h.blockAt(blockOff)

	required := heapkit.AlignUp(size+h.guardOverhead(), Alignment)
	if required <= b.payloadSize() {
		preSize := b.payloadSize()
		if preSize >= required+MinBlockSize {
			h.splitBlock(b, required)
			b.writeFooter()

			payload := b.payloadSize()
			if payload != preSize {
				if h.cfg.EnableStats {
					remaining := preSize - payload - headerSize - h.footerOverhead()
					h.stats.AllocatedBytes -= preSize - payload
					h.stats.FreeBytes += remaining
					h.stats.FreeBlocks++
					h.stats.ClassAllocatedBytes[classOf(preSize)] -= preSize
					h.stats.ClassAllocatedBytes[classOf(payload)] += payload
				}

				// the split-off tail may now touch a free neighbor
				tail := b.nextPhysical()
				if tail.valid() && tail.isFree() {
					h.coalesce(tail)
				}
			}
		}

		b.setRequestSize(size)
		if h.cfg.MemoryGuards {
			h.stampGuards(userOff, size)
		}
		if h.cfg.EnableStats {
			h.updateFragmentationStats()
		}

		h.mu.Unlock()
		return h.arena[userOff : userOff+size : userOff+size]
	}

	// The mutex is not recursive, so the grow path has to release it
	// around the inner Alloc and Free.
	h.mu.Unlock()

	np := h.alloc(size, file, line)
	if np == nil {
		return nil
	}

	n := current
	if size < n {
		n = size
	}
	copy(np, h.arena[userOff:userOff+n])

	h.Free(p)
	return np
}

// Calloc allocates a zeroed region for count elements of elemSize bytes
// each. It returns nil when the product would overflow.
func (h *Heap) Calloc(count, elemSize int) []byte {
	file, line := h.leakSite()
	if count > 0 && elemSize > math.MaxInt/count {
		return nil
	}
	return h.alloc(count*elemSize, file, line)
}

// Stats returns a snapshot of the heap's counters. The zero value is
// returned when statistics are disabled.
func (h *Heap) Stats() heapkit.Statistics {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// stampGuards fills both red zones flanking the user region with GuardValue.
func (h *Heap) stampGuards(userOff, size int) {
	for i := userOff - Alignment; i < userOff; i++ {
		h.arena[i] = GuardValue
	}
	for i := userOff + size; i < userOff+size+Alignment; i++ {
		h.arena[i] = GuardValue
	}
}

// checkGuards reports whether both red zones still carry GuardValue.
func (h *Heap) checkGuards(userOff, size int) bool {
	for i := userOff - Alignment; i < userOff; i++ {
		if h.arena[i] != GuardValue {
			return false
		}
	}
	for i := userOff + size; i < userOff+size+Alignment; i++ {
		if h.arena[i] != GuardValue {
			return false
		}
	}
	return true
}

// offsetOf recovers the arena offset behind a user slice. It reports false
// for slices that do not point into the arena.
func (h *Heap) offsetOf(p []byte) (int, bool) {
	if len(h.arena) == 0 || p == nil {
		return 0, false
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(h.arena)))
	ptr := uintptr(unsafe.Pointer(unsafe.SliceData(p)))
	if ptr < base || ptr >= base+uintptr(len(h.arena)) {
		return 0, false
	}
	return int(ptr - base), true
}

// updateFragmentationStats recomputes the free-block extremes from a walk of
// all free lists.
func (h *Heap) updateFragmentationStats() {
	h.stats.FreeRegionCount = 0
	h.stats.LargestFreeBlock = 0
	h.stats.SmallestFreeBlock = math.MaxInt

	for class := 0; class < heapkit.NumSizeClasses; class++ {
		for cur := h.blockAt(h.freeLists[class]); cur.valid(); cur = cur.listNext() {
			h.stats.FreeRegionCount++
			if cur.payloadSize() > h.stats.LargestFreeBlock {
				h.stats.LargestFreeBlock = cur.payloadSize()
			}
			if cur.payloadSize() < h.stats.SmallestFreeBlock {
				h.stats.SmallestFreeBlock = cur.payloadSize()
			}
		}
	}
	if h.stats.FreeRegionCount == 0 {
		h.stats.SmallestFreeBlock = 0
	}
}

// leakSite captures the caller's call site when leak detection is on.
func (h *Heap) leakSite() (string, int) {
	if !h.cfg.LeakDetection {
		return "", 0
	}
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "unknown", 0
	}
	return file, line
}
