package arena

import (
	"math"

	"github.com/memforge/heapkit"
)

// findBestFit locates a free block whose payload can hold size bytes.
// Within the request's home class the whole list is scanned for the block
// with the least slack, short-circuiting on an exact fit. When the home
// class has nothing, the head of the first nonempty higher class is taken:
// class bounds are monotone, so any block there is large enough.
func (h *Heap) findBestFit(size int) block {
	class := classOf(size)
	best := h.none()
	smallestSlack := math.MaxInt

	for cur := h.blockAt(h.freeLists[class]); cur.valid(); cur = cur.listNext() {
		h.validateBlock(cur, "findBestFit")
		if cur.isFree() && cur.payloadSize() >= size {
			slack := cur.payloadSize() - size
			if slack == 0 {
				return cur
			}
			if slack < smallestSlack {
				smallestSlack = slack
				best = cur
			}
		}
	}
	if best.valid() {
		return best
	}

	for c := class + 1; c < heapkit.NumSizeClasses; c++ {
		if h.freeLists[c] != noBlock {
			return h.blockAt(h.freeLists[c])
		}
	}
	return h.none()
}

// splitBlock trims b down to size payload bytes and carves the excess into
// a fresh free block tiled immediately after it. Nothing happens when the
// excess would be too small to stand on its own.
func (h *Heap) splitBlock(b block, size int) {
	h.validateBlock(b, "splitBlock")

	remaining := b.payloadSize() - size - headerSize - h.footerOverhead()
	if remaining < MinBlockSize+h.guardOverhead() {
		return
	}

	b.setPayloadSize(size)
	b.writeFooter()

	nb := h.blockAt(b.off + headerSize + size + h.footerOverhead())
	nb.initHeader(remaining, true)
	nb.writeFooter()
	h.addToFreeList(nb)

	h.validateBlock(b, "splitBlock after")
	h.validateBlock(nb, "splitBlock remainder")
}
