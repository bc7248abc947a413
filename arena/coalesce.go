package arena

// coalesce merges the freshly freed block with its physical neighbors:
// forward first, then backward when boundary tags allow it. The lower block
// always absorbs the higher one. The survivor stays linked in a free list;
// when absorbing a neighbor moves it into a different size class it is
// unlinked from its old class before growing and re-inserted afterwards.
// The returned block is the survivor; b must not be used after a backward
// merge.
func (h *Heap) coalesce(b block) block {
	next := b.nextPhysical()
	if next.valid() && next.isFree() {
		h.validateBlock(next, "coalesce next")
		h.removeFromFreeList(next, classOf(next.payloadSize()))
		h.absorb(b, next)
	}

	prev := b.prevPhysical()
	if prev.valid() && prev.isFree() {
		h.removeFromFreeList(b, classOf(b.payloadSize()))
		h.absorb(prev, b)
		return prev
	}

	return b
}

// absorb grows the free block low by the full extent of the unlinked block
// high tiled directly after it, keeping low's free-list membership
// consistent with its new size.
func (h *Heap) absorb(low block, high block) {
	oldClass := classOf(low.payloadSize())
	grown := low.payloadSize() + headerSize + high.payloadSize() + h.footerOverhead()

	if classOf(grown) != oldClass {
		h.removeFromFreeList(low, oldClass)
		low.setPayloadSize(grown)
		low.writeFooter()
		h.addToFreeList(low)
	} else {
		low.setPayloadSize(grown)
		low.writeFooter()
	}

	if h.cfg.EnableStats {
		h.stats.FreeBlocks--
		h.stats.FreeBytes += headerSize + h.footerOverhead()
	}
}
