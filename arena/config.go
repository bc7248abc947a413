package arena

import (
	"golang.org/x/exp/slog"
)

const (
	// DefaultHeapSize is the arena size used when Config.HeapSize is zero.
	DefaultHeapSize = 1024 * 1024
)

// Config carries the construction-time settings for a Heap. The zero value
// is usable but turns every feature off; DefaultConfig returns the settings
// a debugging-oriented build would use.
type Config struct {
	// HeapSize is the size in bytes of the managed arena. It must be a
	// multiple of Alignment. Defaults to DefaultHeapSize when zero.
	HeapSize int

	// ThreadSafe guards all heap state with a mutex. When false the
	// consumer must guarantee single-threaded access, but performance may
	// improve because internal mutexes are not used.
	ThreadSafe bool

	// DebugLevel selects how chatty and paranoid the heap is. Level 0 logs
	// only error diagnostics and leak reports, level 1 also logs lifecycle
	// events, level 2 and above also re-walks the registries on entry to
	// Alloc and Free.
	DebugLevel int

	// EnableStats maintains the counters reported by Stats.
	EnableStats bool

	// MemoryGuards reserves a red zone of Alignment bytes on both sides
	// of every user region, stamped with GuardValue and checked on free.
	MemoryGuards bool

	// BoundaryTags mirrors each header into a footer at the block's high
	// edge. Disabling this removes backward coalescing.
	BoundaryTags bool

	// CacheLocality keeps the free lists of the four smallest size
	// classes sorted by address so forward scans land on physically
	// nearby blocks.
	CacheLocality bool

	// LeakDetection records every live allocation with its call site so
	// CheckLeaks can report what was never freed.
	LeakDetection bool

	// Logger receives all diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the fully instrumented configuration: thread safety,
// statistics, guard bytes, boundary tags, locality-ordered small classes and
// leak detection all on.
func DefaultConfig() Config {
	return Config{
		HeapSize:      DefaultHeapSize,
		ThreadSafe:    true,
		DebugLevel:    1,
		EnableStats:   true,
		MemoryGuards:  true,
		BoundaryTags:  true,
		CacheLocality: true,
		LeakDetection: true,
	}
}
