package arena

// addToFreeList links a block into the free list of its size class. The
// default position is the head; when CacheLocality is on, the four smallest
// classes are instead kept in ascending address order so that forward scans
// touch physically adjacent blocks.
func (h *Heap) addToFreeList(b block) {
	b.setFree(true)
	class := classOf(b.payloadSize())

	if h.cfg.CacheLocality && class < 4 {
		h.addToFreeListOrdered(b, class)
		return
	}

	b.setListPrev(h.none())
	b.setListNext(h.blockAt(h.freeLists[class]))
	if h.freeLists[class] != noBlock {
		h.blockAt(h.freeLists[class]).setListPrev(b)
	}
	h.freeLists[class] = b.off
}

func (h *Heap) addToFreeListOrdered(b block, class int) {
	prev := h.none()
	cur := h.blockAt(h.freeLists[class])
	for cur.valid() && cur.off < b.off {
		prev = cur
		cur = cur.listNext()
	}

	b.setListPrev(prev)
	b.setListNext(cur)
	if cur.valid() {
		cur.setListPrev(b)
	}
	if prev.valid() {
		prev.setListNext(b)
	} else {
		h.freeLists[class] = b.off
	}
}

// removeFromFreeList unlinks a block from the free list it currently sits
// in. Callers pass the class of the list the block was inserted under; when
// a block grows during coalescing that class no longer matches its payload
// size, so it cannot be derived here.
func (h *Heap) removeFromFreeList(b block, class int) {
	prev := b.listPrev()
	next := b.listNext()

	if prev.valid() {
		prev.setListNext(next)
	} else if h.freeLists[class] == b.off {
		h.freeLists[class] = next.off
	} else {
		panic("block has no list predecessor but is not the head of its free list")
	}
	if next.valid() {
		next.setListPrev(prev)
	}

	b.setListPrev(h.none())
	b.setListNext(h.none())
}

func (h *Heap) addToUsedList(b block) {
	b.setFree(false)
	b.setListPrev(h.none())
	b.setListNext(h.blockAt(h.usedList))
	if h.usedList != noBlock {
		h.blockAt(h.usedList).setListPrev(b)
	}
	h.usedList = b.off
}

func (h *Heap) removeFromUsedList(b block) {
	prev := b.listPrev()
	next := b.listNext()

	if prev.valid() {
		prev.setListNext(next)
	} else if h.usedList == b.off {
		h.usedList = next.off
	} else {
		panic("block has no list predecessor but is not the head of the used list")
	}
	if next.valid() {
		next.setListPrev(prev)
	}

	b.setListPrev(h.none())
	b.setListNext(h.none())
}
