// Package thread tracks the execution contexts known to the leak detector.
//
// A tracked thread is a goroutine the runtime has registered together with
// its stack bounds. Known bounds are what make fast (frame-pointer) stack
// unwinding trustworthy, and they are what the leak check scans for roots.
//
// Registration order is part of the bootstrap contract: the goroutine that
// drives bootstrap registers first and must receive id 0. Ids are assigned
// by an atomic counter and are never reused for the process lifetime.
//
// Lookups are served from a sync.Map so the fatal-signal handler can resolve
// the current thread without taking any lock shared with ordinary code.
package thread

import (
	"sync"
	"sync/atomic"
)

// Thread is one tracked execution context.
//
// Immutable after registration; the unwinder and the signal handler read it
// concurrently with no synchronization beyond the registry lookup.
type Thread struct {
	// ID is the registration ordinal. The bootstrap thread is always 0.
	ID uint32

	// GID is the runtime goroutine id this thread maps to.
	GID int64

	// StackBegin and StackEnd are the known stack bounds, low and high
	// address respectively. The fast unwinder refuses to follow a frame
	// pointer outside (StackBegin, StackEnd).
	StackBegin uintptr
	StackEnd   uintptr

	// OSTid is the operating-system thread id at registration time,
	// recorded for diagnostics only (goroutines migrate between threads).
	OSTid int
}

var (
	// threads maps goroutine id → *Thread. Lock-free reads.
	threads sync.Map

	// nextID allocates registration ordinals. Add(1)-1 gives 0 first.
	nextID atomic.Uint32

	// registerMu serializes writers so concurrent registrations cannot
	// interleave id allocation with map insertion.
	registerMu sync.Mutex
)

// RegisterCurrent registers the calling goroutine and returns its Thread.
//
// The stack bounds are probed from the current stack pointer and the
// platform stack limit. Registering an already-registered goroutine returns
// the existing Thread unchanged; ids are never reassigned.
func RegisterCurrent() *Thread {
	lo, hi := currentStackBounds()
	return RegisterCurrentBounds(lo, hi)
}

// RegisterCurrentBounds registers the calling goroutine with explicit stack
// bounds. The unwinder tests drive this with synthetic stacks.
func RegisterCurrentBounds(stackBegin, stackEnd uintptr) *Thread {
	gid := currentGoroutineID()

	registerMu.Lock()
	defer registerMu.Unlock()

	if existing, ok := threads.Load(gid); ok {
		return existing.(*Thread)
	}
	t := &Thread{
		ID:         nextID.Add(1) - 1,
		GID:        gid,
		StackBegin: stackBegin,
		StackEnd:   stackEnd,
		OSTid:      osThreadID(),
	}
	threads.Store(gid, t)
	return t
}

// Current returns the calling goroutine's Thread, or nil when it was never
// registered. Safe from the signal path: one sync.Map load, no locks.
func Current() *Thread {
	if v, ok := threads.Load(currentGoroutineID()); ok {
		return v.(*Thread)
	}
	return nil
}

// Get returns the thread with the given registration id, or nil.
func Get(id uint32) *Thread {
	var found *Thread
	threads.Range(func(_, v interface{}) bool {
		if t := v.(*Thread); t.ID == id {
			found = t
			return false
		}
		return true
	})
	return found
}

// Count returns the number of registered threads.
func Count() int {
	n := 0
	threads.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// Reset drops all registrations and restarts id allocation. Test hook, not
// safe for concurrent use.
func Reset() {
	threads = sync.Map{}
	nextID.Store(0)
}
