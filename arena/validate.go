package arena

import (
	"github.com/memforge/heapkit"
	"github.com/pkg/errors"
	"golang.org/x/exp/slog"
)

var _ heapkit.Validatable = &Heap{}

// validateBlock checks a block's bounds and sentinels, reporting each
// violation through the heap's logger. It returns false when the block
// cannot be trusted. Violations are never fatal.
func (h *Heap) validateBlock(b block, where string) bool {
	if !b.valid() {
		return false
	}

	if b.off < 0 || b.off+headerSize > len(h.arena) {
		h.logger.Error("memory error: block is outside heap bounds",
			slog.String("where", where),
			slog.Int("offset", b.off))
		return false
	}

	ok := true
	if b.startSentinel() != SentinelValue {
		h.logger.Error("memory corruption: block start sentinel corrupted",
			slog.String("where", where),
			slog.Int("offset", b.off))
		ok = false
	}
	if b.endSentinel() != SentinelValue {
		h.logger.Error("memory corruption: block end sentinel corrupted",
			slog.String("where", where),
			slog.Int("offset", b.off))
		ok = false
	}

	if b.payloadSize() > h.cfg.HeapSize {
		h.logger.Error("memory error: block has invalid size",
			slog.String("where", where),
			slog.Int("offset", b.off),
			slog.Int("payloadSize", b.payloadSize()))
		return false
	}

	if h.cfg.BoundaryTags && b.footerOff()+footerSize <= len(h.arena) {
		if b.footerSentinel() != FooterSentinel {
			h.logger.Error("memory corruption: block footer sentinel corrupted",
				slog.String("where", where),
				slog.Int("offset", b.off))
			ok = false
		}
	}

	return ok
}

// walkRegistries re-walks the free lists and the used list, flagging blocks
// whose free flag disagrees with the registry holding them and comparing
// the counts against the statistics. It only runs at debug level 2 and
// above.
func (h *Heap) walkRegistries(where string) {
	if h.cfg.DebugLevel < 2 {
		return
	}

	var freeCount, usedCount int
	for class := 0; class < heapkit.NumSizeClasses; class++ {
		for cur := h.blockAt(h.freeLists[class]); cur.valid(); cur = cur.listNext() {
			h.validateBlock(cur, where)
			if !cur.isFree() {
				h.logger.Error("heap error: block in free list is marked as used",
					slog.String("where", where),
					slog.Int("offset", cur.off))
			}
			freeCount++
		}
	}

	for cur := h.blockAt(h.usedList); cur.valid(); cur = cur.listNext() {
		h.validateBlock(cur, where)
		if cur.isFree() {
			h.logger.Error("heap error: block in used list is marked as free",
				slog.String("where", where),
				slog.Int("offset", cur.off))
		}
		usedCount++
	}

	if h.cfg.EnableStats {
		if h.stats.FreeBlocks != freeCount || h.stats.AllocatedBlocks != usedCount {
			h.logger.Error("heap error: stats mismatch",
				slog.String("where", where),
				slog.Int("statsFree", h.stats.FreeBlocks),
				slog.Int("walkedFree", freeCount),
				slog.Int("statsUsed", h.stats.AllocatedBlocks),
				slog.Int("walkedUsed", usedCount))
		}
	}
}

// Validate performs a full consistency check of the heap: the physical
// tiling, every sentinel and footer mirror, registry membership, the
// no-adjacent-free invariant, and (when enabled) the statistics counters.
// It should not be possible for a correctly functioning heap to return an
// error here, but this assists in diagnosing issues.
//
// Validate assumes the caller holds no concurrent mutators; it takes no
// lock, so it can also be called while the heap's mutex is held.
func (h *Heap) Validate() error {
	if !h.initialized {
		return nil
	}

	type seen struct {
		free  bool
		class int
	}
	registered := map[int]seen{}

	for class := 0; class < heapkit.NumSizeClasses; class++ {
		prev := h.none()
		for cur := h.blockAt(h.freeLists[class]); cur.valid(); cur = cur.listNext() {
			if _, dup := registered[cur.off]; dup {
				return errors.Errorf("block at offset %d is linked in more than one registry", cur.off)
			}
			registered[cur.off] = seen{free: true, class: class}

			if !cur.isFree() {
				return errors.Errorf("block at offset %d is in free list %d but is not free", cur.off, class)
			}
			if classOf(cur.payloadSize()) != class {
				return errors.Errorf("block at offset %d with payload %d sits in free list %d, expected %d",
					cur.off, cur.payloadSize(), class, classOf(cur.payloadSize()))
			}
			if cur.listPrev().off != prev.off {
				return errors.Errorf("block at offset %d has a broken back reference in free list %d", cur.off, class)
			}
			prev = cur
		}
	}

	prev := h.none()
	for cur := h.blockAt(h.usedList); cur.valid(); cur = cur.listNext() {
		if _, dup := registered[cur.off]; dup {
			return errors.Errorf("block at offset %d is linked in more than one registry", cur.off)
		}
		registered[cur.off] = seen{free: false}

		if cur.isFree() {
			return errors.Errorf("block at offset %d is in the used list but is free", cur.off)
		}
		if cur.listPrev().off != prev.off {
			return errors.Errorf("block at offset %d has a broken back reference in the used list", cur.off)
		}
		prev = cur
	}

	var freeBytes, usedBytes int
	var freeCount, usedCount int
	prevFree := false

	off := 0
	for off+headerSize <= len(h.arena) {
		b := h.blockAt(off)

		if b.startSentinel() != SentinelValue || b.endSentinel() != SentinelValue {
			return errors.Errorf("block at offset %d has corrupted header sentinels", off)
		}
		if b.payloadSize() <= 0 || b.payloadOff()+b.payloadSize()+h.footerOverhead() > len(h.arena) {
			return errors.Errorf("block at offset %d has invalid payload size %d", off, b.payloadSize())
		}
		if h.cfg.BoundaryTags {
			if b.footerSentinel() != FooterSentinel {
				return errors.Errorf("block at offset %d has a corrupted footer sentinel", off)
			}
			if b.footerPayloadSize() != b.payloadSize() || b.footerFree() != b.isFree() {
				return errors.Errorf("block at offset %d has a footer that does not mirror its header", off)
			}
		}

		reg, ok := registered[off]
		if !ok {
			return errors.Errorf("block at offset %d is not linked in any registry", off)
		}
		if reg.free != b.isFree() {
			return errors.Errorf("block at offset %d is registered inconsistently with its free flag", off)
		}
		delete(registered, off)

		if b.isFree() {
			// without boundary tags a free block cannot merge backward,
			// so adjacent free pairs are possible and tolerated
			if prevFree && h.cfg.BoundaryTags {
				return errors.Errorf("blocks at offset %d and its predecessor are both free", off)
			}
			freeBytes += b.payloadSize()
			freeCount++
		} else {
			usedBytes += b.payloadSize()
			usedCount++
		}
		prevFree = b.isFree()

		off += headerSize + b.payloadSize() + h.footerOverhead()
	}

	if off != len(h.arena) {
		return errors.Errorf("physical walk ended at offset %d, expected %d", off, len(h.arena))
	}
	if len(registered) != 0 {
		return errors.Errorf("%d registered blocks were not reached by the physical walk", len(registered))
	}

	if h.cfg.EnableStats {
		if h.stats.FreeBytes != freeBytes || h.stats.FreeBlocks != freeCount {
			return errors.Errorf("free stats (%d bytes in %d blocks) do not match the walk (%d bytes in %d blocks)",
				h.stats.FreeBytes, h.stats.FreeBlocks, freeBytes, freeCount)
		}
		if h.stats.AllocatedBytes != usedBytes || h.stats.AllocatedBlocks != usedCount {
			return errors.Errorf("allocation stats (%d bytes in %d blocks) do not match the walk (%d bytes in %d blocks)",
				h.stats.AllocatedBytes, h.stats.AllocatedBlocks, usedBytes, usedCount)
		}
	}

	return nil
}
