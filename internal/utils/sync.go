package utils

import (
	"sync"
)

// OptionalMutex is a mutex that can be compiled down to nothing: when
// UseMutex is false every method is a no-op and callers get single-threaded
// performance with no locking overhead.
type OptionalMutex struct {
	Mutex    sync.Mutex
	UseMutex bool
}

func (m *OptionalMutex) Lock() {
	if m.UseMutex {
		m.Mutex.Lock()
	}
}

func (m *OptionalMutex) Unlock() {
	if m.UseMutex {
		m.Mutex.Unlock()
	}
}
