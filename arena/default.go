package arena

import (
	"math"
	"runtime"
	"sync"
)

var (
	defaultHeap *Heap
	defaultOnce sync.Once
)

// Default returns the process-wide heap, constructing it with
// DefaultConfig on first use.
func Default() *Heap {
	defaultOnce.Do(func() {
		h, err := New(DefaultConfig())
		if err != nil {
			panic(err)
		}
		defaultHeap = h
	})
	return defaultHeap
}

// Alloc allocates from the process-wide heap.
func Alloc(size int) []byte {
	h := Default()
	file, line := defaultSite(h)
	return h.alloc(size, file, line)
}

// Free returns a region to the process-wide heap.
func Free(p []byte) {
	Default().Free(p)
}

// Realloc resizes a region on the process-wide heap.
func Realloc(p []byte, size int) []byte {
	h := Default()
	file, line := defaultSite(h)
	return h.realloc(p, size, file, line)
}

// Calloc allocates a zeroed region for count elements of elemSize bytes
// each from the process-wide heap.
func Calloc(count, elemSize int) []byte {
	h := Default()
	if count > 0 && elemSize > math.MaxInt/count {
		return nil
	}
	file, line := defaultSite(h)
	return h.alloc(count*elemSize, file, line)
}

// SizeOf reports the user-visible size of a region on the process-wide heap.
func SizeOf(p []byte) int {
	return Default().SizeOf(p)
}

func defaultSite(h *Heap) (string, int) {
	if !h.cfg.LeakDetection {
		return "", 0
	}
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "unknown", 0
	}
	return file, line
}
