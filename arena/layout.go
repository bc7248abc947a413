package arena

import (
	"github.com/memforge/heapkit"
)

const (
	// Alignment is the payload alignment. User pointers are always
	// multiples of it, and it doubles as the width of each guard band.
	Alignment = 16

	// SentinelValue brackets every block header at both ends.
	SentinelValue uint32 = 0xCAFEBABE
	// FooterSentinel marks every block footer.
	FooterSentinel uint32 = 0xDEADBEEF
	// GuardValue is the byte stamped across red zones.
	GuardValue byte = 0xFE

	// headerSize is the size of the on-arena block header. The layout is
	// fixed little-endian:
	//
	//	 0  startSentinel  uint32
	//	 4  payloadSize    uint64
	//	12  free           uint8 (3 pad bytes follow)
	//	16  listPrev       int64 (arena offset, -1 none)
	//	24  listNext       int64 (arena offset, -1 none)
	//	32  requestSize    uint64
	//	40  addressTag     uint64 (liveTag when live, 0 when free)
	//	48  allocID        uint64
	//	56  endSentinel    uint32 (4 pad bytes follow)
	headerSize = 64

	// footerSize is the size of the on-arena boundary tag:
	//
	//	 0  payloadSize    uint64
	//	 8  free           uint8 (3 pad bytes follow)
	//	12  footerSentinel uint32
	footerSize = 16

	// MinBlockSize is the smallest payload a block may carry: the aligned
	// size of a header plus sixteen bytes.
	MinBlockSize = (headerSize + 16 + Alignment - 1) &^ (Alignment - 1)

	// liveTag is the addressTag value stamped into live headers.
	liveTag uint64 = 0xDEADBEEF

	// noBlock is the offset that stands in for "no block".
	noBlock = -1
)

// header field offsets
const (
	offStartSentinel = 0
	offPayloadSize   = 4
	offFree          = 12
	offListPrev      = 16
	offListNext      = 24
	offRequestSize   = 32
	offAddressTag    = 40
	offAllocID       = 48
	offEndSentinel   = 56
)

// footer field offsets, relative to the footer's first byte
const (
	offFooterSize     = 0
	offFooterFree     = 8
	offFooterSentinel = 12
)

// classBounds holds the inclusive payload upper bound of every size class
// except the catch-all last one.
var classBounds = [heapkit.NumSizeClasses - 1]int{32, 64, 128, 256, 512, 1024, 2048}

// classOf maps a payload size to the index of the lowest size class whose
// bound can hold it.
func classOf(size int) int {
	for i, bound := range classBounds {
		if size <= bound {
			return i
		}
	}
	return heapkit.NumSizeClasses - 1
}

// footerOverhead returns the per-block footer overhead under the heap's
// configuration.
func (h *Heap) footerOverhead() int {
	if h.cfg.BoundaryTags {
		return footerSize
	}
	return 0
}

// guardOverhead returns the extra payload bytes a request needs for its two
// red zones under the heap's configuration.
func (h *Heap) guardOverhead() int {
	if h.cfg.MemoryGuards {
		return 2 * Alignment
	}
	return 0
}
