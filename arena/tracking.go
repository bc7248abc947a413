package arena

import (
	"sort"

	"golang.org/x/exp/slog"
)

// AllocationRecord describes one live allocation for leak reporting.
// Records live outside the arena so leak bookkeeping never consumes
// allocator capacity.
type AllocationRecord struct {
	// Offset is the arena offset of the user region.
	Offset int
	// Size is the user-visible size that was requested.
	Size int
	// AllocID is the allocation's monotonically assigned id.
	AllocID uint64
	// File and Line locate the call site that made the allocation.
	File string
	Line int
}

// VisitRecords calls fn once per live allocation record, in allocation-id
// order. It returns fn's first error, or nil. Records are only kept when
// leak detection is enabled.
func (h *Heap) VisitRecords(fn func(AllocationRecord) error) error {
	h.mu.Lock()
	records := h.collectRecords()
	h.mu.Unlock()

	for _, rec := range records {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// CheckLeaks reports every allocation that is still live, logging one
// record per leak plus a summary. The returned slice is sorted by
// allocation id and empty when nothing leaked or leak detection is off.
func (h *Heap) CheckLeaks() []AllocationRecord {
	h.mu.Lock()
	records := h.collectRecords()
	h.mu.Unlock()

	var leakBytes int
	for _, rec := range records {
		leakBytes += rec.Size
		h.logger.Warn("potential leak",
			slog.Int("offset", rec.Offset),
			slog.Int("size", rec.Size),
			slog.Uint64("id", rec.AllocID),
			slog.String("file", rec.File),
			slog.Int("line", rec.Line))
	}

	if len(records) == 0 {
		if h.cfg.DebugLevel > 0 {
			h.logger.Info("no memory leaks detected")
		}
	} else {
		h.logger.Warn("leak check finished",
			slog.Int("leaks", len(records)),
			slog.Int("bytes", leakBytes))
	}

	return records
}

func (h *Heap) collectRecords() []AllocationRecord {
	if h.records == nil {
		return nil
	}

	records := make([]AllocationRecord, 0, h.records.Count())
	h.records.Iter(func(_ int, rec *AllocationRecord) bool {
		records = append(records, *rec)
		return false
	})
	sort.Slice(records, func(i, j int) bool {
		return records[i].AllocID < records[j].AllocID
	})
	return records
}
