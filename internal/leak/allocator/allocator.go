// Package allocator is the boundary to the instrumented allocator.
//
// Bootstrap activates the allocator before any component below it may
// allocate: the thread registry's storage is itself a tracked allocation.
// The free-list and size-class internals live with the allocator proper;
// this package carries only what bootstrap and the leak check consume: the
// activation state and the live-allocation table.
package allocator

import (
	"sync"
	"sync/atomic"
)

var (
	active atomic.Bool

	mu   sync.Mutex
	live map[uintptr]uintptr // addr → size
)

// Activate marks the replacement allocator as the active allocator.
//
// Strictly ordered before thread-registry bootstrap. Idempotent.
func Activate() {
	active.Store(true)
	mu.Lock()
	if live == nil {
		live = make(map[uintptr]uintptr)
	}
	mu.Unlock()
}

// Active reports whether the replacement allocator is active.
func Active() bool {
	return active.Load()
}

// RecordAlloc tracks a live allocation. Called by the instrumented
// allocation sites; a call before activation is dropped, the allocator is
// not yet attributing memory.
func RecordAlloc(addr, size uintptr) {
	if !active.Load() {
		return
	}
	mu.Lock()
	live[addr] = size
	mu.Unlock()
}

// RecordFree removes a tracked allocation.
func RecordFree(addr uintptr) {
	if !active.Load() {
		return
	}
	mu.Lock()
	delete(live, addr)
	mu.Unlock()
}

// LiveStats returns the number of tracked allocations and their total size.
func LiveStats() (count int, bytes uintptr) {
	mu.Lock()
	defer mu.Unlock()
	for _, size := range live {
		count++
		bytes += size
	}
	return count, bytes
}

// Reset deactivates the allocator and drops the live table. Test hook.
func Reset() {
	active.Store(false)
	mu.Lock()
	live = nil
	mu.Unlock()
}
