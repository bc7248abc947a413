package arena

import (
	"encoding/binary"
)

// block is a zero-copy view of one arena tile. All accessors read and write
// the header bytes in place; the view itself is a value and carries no
// state beyond its offset. An offset of noBlock stands in for "no block".
type block struct {
	h   *Heap
	off int
}

func (b block) valid() bool {
	return b.off != noBlock
}

func (h *Heap) blockAt(off int) block {
	return block{h: h, off: off}
}

func (h *Heap) none() block {
	return block{h: h, off: noBlock}
}

func (b block) startSentinel() uint32 {
	return binary.LittleEndian.Uint32(b.h.arena[b.off+offStartSentinel:])
}

func (b block) endSentinel() uint32 {
	return binary.LittleEndian.Uint32(b.h.arena[b.off+offEndSentinel:])
}

func (b block) payloadSize() int {
	return int(binary.LittleEndian.Uint64(b.h.arena[b.off+offPayloadSize:]))
}

func (b block) setPayloadSize(size int) {
	binary.LittleEndian.PutUint64(b.h.arena[b.off+offPayloadSize:], uint64(size))
}

func (b block) isFree() bool {
	return b.h.arena[b.off+offFree] != 0
}

func (b block) setFree(free bool) {
	if free {
		b.h.arena[b.off+offFree] = 1
	} else {
		b.h.arena[b.off+offFree] = 0
	}
}

func (b block) listPrev() block {
	return b.h.blockAt(int(int64(binary.LittleEndian.Uint64(b.h.arena[b.off+offListPrev:]))))
}

func (b block) setListPrev(p block) {
	binary.LittleEndian.PutUint64(b.h.arena[b.off+offListPrev:], uint64(int64(p.off)))
}

func (b block) listNext() block {
	return b.h.blockAt(int(int64(binary.LittleEndian.Uint64(b.h.arena[b.off+offListNext:]))))
}

func (b block) setListNext(n block) {
	binary.LittleEndian.PutUint64(b.h.arena[b.off+offListNext:], uint64(int64(n.off)))
}

func (b block) requestSize() int {
	return int(binary.LittleEndian.Uint64(b.h.arena[b.off+offRequestSize:]))
}

func (b block) setRequestSize(size int) {
	binary.LittleEndian.PutUint64(b.h.arena[b.off+offRequestSize:], uint64(size))
}

func (b block) addressTag() uint64 {
	return binary.LittleEndian.Uint64(b.h.arena[b.off+offAddressTag:])
}

func (b block) setAddressTag(tag uint64) {
	binary.LittleEndian.PutUint64(b.h.arena[b.off+offAddressTag:], tag)
}

func (b block) allocID() uint64 {
	return binary.LittleEndian.Uint64(b.h.arena[b.off+offAllocID:])
}

func (b block) setAllocID(id uint64) {
	binary.LittleEndian.PutUint64(b.h.arena[b.off+offAllocID:], id)
}

// initHeader stamps a fresh header over the block's first headerSize bytes:
// both sentinels, the payload size and free flag, and cleared links and
// identity fields.
func (b block) initHeader(payloadSize int, free bool) {
	binary.LittleEndian.PutUint32(b.h.arena[b.off+offStartSentinel:], SentinelValue)
	b.setPayloadSize(payloadSize)
	b.setFree(free)
	b.setListPrev(b.h.none())
	b.setListNext(b.h.none())
	b.setRequestSize(0)
	b.setAddressTag(0)
	b.setAllocID(0)
	binary.LittleEndian.PutUint32(b.h.arena[b.off+offEndSentinel:], SentinelValue)
}

// payloadOff returns the arena offset of the first payload byte.
func (b block) payloadOff() int {
	return b.off + headerSize
}

// footerOff returns the arena offset of the block's footer. Only meaningful
// when boundary tags are enabled.
func (b block) footerOff() int {
	return b.off + headerSize + b.payloadSize()
}

// writeFooter mirrors the header's payload size and free flag into the
// boundary tag. A no-op when boundary tags are disabled.
func (b block) writeFooter() {
	if !b.h.cfg.BoundaryTags {
		return
	}
	foot := b.footerOff()
	binary.LittleEndian.PutUint64(b.h.arena[foot+offFooterSize:], uint64(b.payloadSize()))
	if b.isFree() {
		b.h.arena[foot+offFooterFree] = 1
	} else {
		b.h.arena[foot+offFooterFree] = 0
	}
	binary.LittleEndian.PutUint32(b.h.arena[foot+offFooterSentinel:], FooterSentinel)
}

// footerSentinel reads the boundary tag's sentinel field.
func (b block) footerSentinel() uint32 {
	return binary.LittleEndian.Uint32(b.h.arena[b.footerOff()+offFooterSentinel:])
}

// footerPayloadSize reads the boundary tag's payload size mirror.
func (b block) footerPayloadSize() int {
	return int(binary.LittleEndian.Uint64(b.h.arena[b.footerOff()+offFooterSize:]))
}

// footerFree reads the boundary tag's free flag mirror.
func (b block) footerFree() bool {
	return b.h.arena[b.footerOff()+offFooterFree] != 0
}

// nextPhysical returns the block tiled immediately after this one, or no
// block when this block ends the arena.
func (b block) nextPhysical() block {
	off := b.off + headerSize + b.payloadSize() + b.h.footerOverhead()
	if off+headerSize > len(b.h.arena) {
		return b.h.none()
	}
	return b.h.blockAt(off)
}

// prevPhysical walks the preceding boundary tag back to the block tiled
// immediately before this one. Any corruption along the way, or boundary
// tags being disabled, reads as "no previous block".
func (b block) prevPhysical() block {
	if !b.h.cfg.BoundaryTags || b.off <= 0 {
		return b.h.none()
	}
	footOff := b.off - footerSize
	if footOff < 0 {
		return b.h.none()
	}
	if binary.LittleEndian.Uint32(b.h.arena[footOff+offFooterSentinel:]) != FooterSentinel {
		return b.h.none()
	}
	prevPayload := int(binary.LittleEndian.Uint64(b.h.arena[footOff+offFooterSize:]))
	prevOff := footOff - prevPayload - headerSize
	if prevOff < 0 || prevPayload < 0 || prevPayload > len(b.h.arena) {
		return b.h.none()
	}
	prev := b.h.blockAt(prevOff)
	if prev.startSentinel() != SentinelValue || prev.endSentinel() != SentinelValue {
		return b.h.none()
	}
	return prev
}
