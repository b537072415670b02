// Package leak provides the public API for the Pure-Go leak detector.
//
// See doc.go for detailed documentation and examples.
package leak

import internal "github.com/kolkov/leakdetector/internal/leak/api"

// Init initializes the leak detector runtime.
//
// This function must run before any other leak detector operation. The
// leakdetector tool automatically inserts this call at the beginning of the
// main() function; for manual instrumentation:
//
//	func main() {
//		leak.Init()
//		defer leak.Fini()
//		// ... rest of program
//	}
//
// Init is safe to call multiple times: the first call runs the one-time
// bootstrap sequence, later calls are no-ops. Calling Init from code that
// itself runs during bootstrap is a contract violation and aborts the
// process: a partially-initialized runtime cannot serve a nested request.
func Init() {
	internal.Init()
}

// Fini finalizes the leak detector at normal program termination.
//
// Fini drains the scheduled exit hooks, which is where the exit-time leak
// check runs when enabled. The leakdetector tool injects this as
// `defer leak.Fini()`; the hooks therefore run after all other deferred
// exit-time work. If the check finds leaks, the process exits with the
// reserved exit code (default 23).
//
// Safe to call multiple times; only the first call runs the hooks.
func Fini() {
	internal.Fini()
}

// RecordAlloc records a live allocation at the given address.
//
// This function is inserted by instrumentation at allocation sites. Calls
// before Init completes, or with leak detection disabled, are no-ops.
func RecordAlloc(addr, size uintptr) {
	internal.RecordAlloc(addr, size)
}

// RecordFree records that the allocation at addr was released.
func RecordFree(addr uintptr) {
	internal.RecordFree(addr)
}

// DoLeakCheck runs the leak check immediately and returns the number of
// leaked allocations. Unlike the exit-time check it never terminates the
// process. Usable at any time after Init.
func DoLeakCheck() int {
	return internal.DoLeakCheck()
}

// PrintStackTrace prints the caller's current stack trace to the
// configured report destination. Usable by instrumented code at any time
// after Init completes.
func PrintStackTrace() {
	internal.PrintStackTrace()
}

// RegisterThread registers the calling goroutine with the thread registry
// and returns its tracked-thread id. Registration gives the goroutine
// known stack bounds, enabling fast unwinding and root scanning for it.
// The goroutine that called Init is registered automatically as thread 0.
func RegisterThread() uint32 {
	return internal.RegisterCurrentThread()
}
