// Package api implements the leak detector's runtime core: the init-state
// guard, the bootstrap sequence, and the entry points instrumented code
// calls at run time.
//
// Bootstrap ordering is a hard contract, because each step depends on the
// previous one being live:
//
//	resolve configuration   (failures after this point are reportable)
//	activate allocator      (the registry's storage is itself an allocation)
//	register thread 0       (fast unwinding needs bounds before any trap)
//	install signal traps    (skipped without platform support)
//	schedule exit-time check
//
// The sequence runs exactly once, driven by whichever goroutine first
// reaches Init. There is no cancellation and no timeout: bootstrap either
// completes or the process aborts on a contract violation.
package api

import (
	"os"
	"sync/atomic"

	"github.com/kolkov/leakdetector/internal/leak/allocator"
	"github.com/kolkov/leakdetector/internal/leak/atexit"
	"github.com/kolkov/leakdetector/internal/leak/check"
	"github.com/kolkov/leakdetector/internal/leak/config"
	"github.com/kolkov/leakdetector/internal/leak/report"
	"github.com/kolkov/leakdetector/internal/leak/signals"
	"github.com/kolkov/leakdetector/internal/leak/thread"
	"github.com/kolkov/leakdetector/internal/leak/unwind"
)

var (
	// cfg is the immutable configuration snapshot, published at the end of
	// option resolution and read-only ever after.
	cfg atomic.Pointer[config.Flags]

	// exitProcess terminates the process after a failed exit-time check.
	// Swapped in tests.
	exitProcess = os.Exit

	// bootstraps counts completed bootstrap sequences. The guard's whole
	// point is that this never exceeds 1; tests assert on it.
	bootstraps atomic.Int32
)

// Init brings the leak detector to its operational state.
//
// Safe to call any number of times: the first caller runs the bootstrap
// sequence, callers arriving after completion return immediately. A caller
// observing bootstrap in progress is a re-entrant invocation (typically
// instrumented code running inside bootstrap itself) and aborts the
// process. That case is a programming error with no recovery path:
// partially-initialized global subsystems cannot serve a nested request.
func Init() {
	switch {
	case initState.CompareAndSwap(int32(StateUninitialized), int32(StateInitializing)):
		runBootstrap()
		initState.Store(int32(StateInitialized))
	case State() == StateInitialized:
		// Already done; no side effects.
	default:
		report.Fatalf("re-entrant bootstrap: Init called while initialization is already running")
	}
}

// runBootstrap executes the ordered sequence. Called with the state guard
// held (StateInitializing), on exactly one goroutine.
func runBootstrap() {
	// Configuration first: verbosity and log destination become live as a
	// side effect, so every later failure is reportable.
	f := config.Resolve()
	cfg.Store(f)

	// The replacement allocator must be active before the registry below
	// allocates its storage.
	allocator.Activate()

	// The bootstrap goroutine is the distinguished tracked thread 0. Any
	// other id means bootstrap ran twice or out of order.
	t := thread.RegisterCurrent()
	if t.ID != 0 {
		report.Fatalf("thread registry assigned id %d to the bootstrap thread, want 0", t.ID)
	}

	// Traps come after thread 0 exists: the handler's fast path consults
	// its stack bounds. Absence of signal delivery skips this step only.
	if f.HandleFatalSignals {
		signals.Install(signals.Options{
			FastUnwind: f.FastUnwindOnFatal,
			MaxDepth:   f.MallocContextSize,
		})
	}

	// Exit-time leak check, only when both switches agree.
	if f.DetectLeaks && f.LeakCheckAtExit {
		atexit.Register(exitLeakCheck)
	}

	bootstraps.Add(1)
	report.VPrintf(1, "==leakdetector== initialized (exitcode=%d, malloc_context_size=%d)\n",
		f.Exitcode, f.MallocContextSize)
}

// Config returns the resolved runtime configuration.
//
// The returned value is immutable: produced once during bootstrap and
// shared read-only by every component. Nil before Init completes.
func Config() *config.Flags {
	return cfg.Load()
}

// Fini runs the scheduled exit hooks.
//
// The leakdetector tool injects `defer leak.Fini()` at the top of main, so
// the hooks run after all other exit-time work. Hooks run exactly once;
// further calls are no-ops. A fatal signal never reaches this path; exit
// hooks are best effort, meaningful only for normal termination.
func Fini() {
	atexit.Run()
}

// exitLeakCheck is the scheduled exit hook: run the leak check and leave
// through the reserved exit code when leaks were found.
func exitLeakCheck() {
	sum := check.Run()
	if sum.Leaks == 0 {
		report.VPrintf(1, "==leakdetector== no leaks detected\n")
		return
	}
	f := cfg.Load()
	report.Printf("==leakdetector== ERROR: detected memory leaks\n")
	report.Printf("SUMMARY: LeakDetector: %d byte(s) leaked in %d allocation(s).\n", sum.Bytes, sum.Leaks)
	exitProcess(f.Exitcode)
}

// DoLeakCheck runs the leak check on demand and returns the number of
// leaked allocations. Unlike the exit hook it never terminates the
// process; instrumented code may call it at any point after Init.
func DoLeakCheck() int {
	sum := check.Run()
	if sum.Leaks > 0 {
		report.Printf("SUMMARY: LeakDetector: %d byte(s) leaked in %d allocation(s).\n", sum.Bytes, sum.Leaks)
	}
	return sum.Leaks
}

// PrintStackTrace prints the caller's current stack through the report
// sink. Usable by instrumented code at any time after Init completes; the
// unwind strategy follows the fatal-trace preference so manual traces and
// crash traces agree.
func PrintStackTrace() {
	var ctx unwind.Context
	unwind.CaptureInto(&ctx, 1)

	wantFast := false
	depth := unwind.MaxDepth
	if f := cfg.Load(); f != nil {
		wantFast = f.FastUnwindOnFatal
		depth = f.MallocContextSize
	}

	var tr unwind.Trace
	unwind.Unwind(unwind.Request{
		Context:  &ctx,
		WantFast: wantFast,
		MaxDepth: depth,
	}, thread.Current(), &tr)

	report.Printf("%s", report.FormatFrames(tr.PCs()))
}

// RegisterCurrentThread registers the calling goroutine with the thread
// registry, enabling fast unwinding for it. The bootstrap thread is
// registered automatically; instrumented goroutine starts call this for
// workers whose stacks should be unwindable and scannable.
func RegisterCurrentThread() uint32 {
	return thread.RegisterCurrent().ID
}

// RecordAlloc tracks a live allocation. Entry point for instrumented
// allocation sites; inactive (and free) before bootstrap completes or when
// leak detection is disabled.
func RecordAlloc(addr, size uintptr) {
	if f := cfg.Load(); f == nil || !f.DetectLeaks {
		return
	}
	allocator.RecordAlloc(addr, size)
}

// RecordFree removes a tracked allocation.
func RecordFree(addr uintptr) {
	if f := cfg.Load(); f == nil || !f.DetectLeaks {
		return
	}
	allocator.RecordFree(addr)
}

// Reset returns the runtime to its pre-bootstrap state.
//
// Test setup/teardown only. NOT safe while other goroutines use the
// runtime, and deliberately impossible to reach from Init: the production
// state machine is monotonic.
func Reset() {
	signals.Uninstall()
	atexit.Reset()
	allocator.Reset()
	thread.Reset()
	cfg.Store(nil)
	bootstraps.Store(0)
	initState.Store(int32(StateUninitialized))
}
