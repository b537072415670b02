// Package atexit schedules callbacks for normal process termination.
//
// Go has no C-style atexit, so the runtime drains these hooks from its own
// finalization entry point (leak.Fini, injected as `defer leak.Fini()` by
// the leakdetector tool). Hooks run exactly once, in LIFO order, after all
// other exit-time work the program performs. Fatal-signal termination does
// not run them: exit-time leak checking is best effort and only meaningful
// for normal termination paths.
package atexit

import "sync"

var (
	mu    sync.Mutex
	hooks []func()
	ran   bool
)

// Register schedules fn to run at normal process termination.
//
// Registration after the hooks have already run is a silent no-op; the
// termination path has passed and there is nothing left to attach to.
func Register(fn func()) {
	mu.Lock()
	defer mu.Unlock()
	if ran {
		return
	}
	hooks = append(hooks, fn)
}

// Run executes all registered hooks in LIFO order, exactly once.
//
// Subsequent calls return immediately. Safe for concurrent callers; only
// one of them drains the hooks.
func Run() {
	mu.Lock()
	if ran {
		mu.Unlock()
		return
	}
	ran = true
	pending := hooks
	hooks = nil
	mu.Unlock()

	for i := len(pending) - 1; i >= 0; i-- {
		pending[i]()
	}
}

// Registered returns the number of pending hooks. Test hook.
func Registered() int {
	mu.Lock()
	defer mu.Unlock()
	return len(hooks)
}

// Reset clears all state. Test hook, not safe for concurrent use.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	hooks = nil
	ran = false
}
