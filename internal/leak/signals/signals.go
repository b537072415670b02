// Package signals installs the leak detector's fatal-signal traps.
//
// On delivery of a fatal signal (invalid memory access, illegal
// instruction, abort, ...) the handler captures and prints a stack trace
// and a dump of all goroutine stacks, then restores the platform's default
// disposition and re-raises so normal fatal-signal handling (usually
// process termination) continues.
//
// The handler path honors the signal-safe subset: everything it touches is
// preallocated at install time, the tracked-thread lookup is lock-free, and
// the trace printer formats into its own fixed buffer. On platforms without
// signal delivery Install is a no-op and the rest of bootstrap is
// unaffected.
package signals

import (
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"

	"github.com/kolkov/leakdetector/internal/leak/platform"
	"github.com/kolkov/leakdetector/internal/leak/report"
	"github.com/kolkov/leakdetector/internal/leak/thread"
	"github.com/kolkov/leakdetector/internal/leak/unwind"
)

// Options carries the configuration slice the handler needs. Copied at
// install time; the handler never reads shared mutable state.
type Options struct {
	// FastUnwind selects the frame-pointer strategy for crash traces.
	FastUnwind bool

	// MaxDepth bounds the captured trace.
	MaxDepth int
}

// handlerState is everything a delivery needs, allocated once at install
// time so the delivery path itself allocates nothing.
type handlerState struct {
	opts     Options
	ctx      unwind.Context
	tr       unwind.Trace
	printer  *report.TracePrinter
	headers  map[os.Signal]string
	stackBuf []byte
}

// stackBufSize holds the all-goroutine dump. Truncation past this size loses
// the oldest goroutines, which is acceptable for a crash report.
const stackBufSize = 64 << 10

var (
	installed atomic.Bool
	notifyCh  chan os.Signal
	state     *handlerState

	// continueFatal restores the default disposition and re-raises.
	// Swapped in tests, which have no interest in dying.
	continueFatal = reraise
)

// Install registers handlers for the platform's fatal-signal set.
//
// Returns true when traps are active. Idempotent. Returns false when the
// platform has no signal delivery; the caller proceeds without traps.
func Install(opts Options) bool {
	if !platform.SupportsFatalSignalTraps() {
		return false
	}
	sigs := fatalSignalSet()
	if len(sigs) == 0 {
		return false
	}
	if !installed.CompareAndSwap(false, true) {
		return true
	}

	st := &handlerState{
		opts:     opts,
		printer:  report.NewTracePrinter(),
		headers:  make(map[os.Signal]string, len(sigs)),
		stackBuf: make([]byte, stackBufSize),
	}
	// Headers are preformatted so delivery does no string building.
	for _, sig := range sigs {
		st.headers[sig] = "==leakdetector== FATAL: " + sig.String() + " received; stack trace:"
	}
	state = st

	notifyCh = make(chan os.Signal, 1)
	signal.Notify(notifyCh, sigs...)
	go watch(notifyCh)
	return true
}

// Uninstall removes the traps. Test hook.
func Uninstall() {
	if !installed.CompareAndSwap(true, false) {
		return
	}
	signal.Stop(notifyCh)
	close(notifyCh)
}

// Installed reports whether the traps are active.
func Installed() bool {
	return installed.Load()
}

// watch is the delivery goroutine. It exists for the lifetime of the traps
// and owns the handler state exclusively during each delivery.
func watch(ch chan os.Signal) {
	for sig := range ch {
		deliver(sig)
	}
}

// deliver handles one fatal signal: resolve the tracked thread, unwind,
// print, continue the platform's fatal handling.
//
// Delivery happens on the watch goroutine, so the raw trace describes the
// delivery site rather than the interrupted code. The all-goroutine dump
// that follows is what carries the interrupted stacks; it goes into the
// preallocated buffer, nothing on this path allocates.
func deliver(sig os.Signal) {
	st := state

	// The delivery snapshot is the opaque context of this signal frame.
	unwind.CaptureInto(&st.ctx, 1)
	th := thread.Current()

	req := unwind.Request{
		Context:  &st.ctx,
		WantFast: st.opts.FastUnwind,
		MaxDepth: st.opts.MaxDepth,
	}
	unwind.Unwind(req, th, &st.tr)

	header, ok := st.headers[sig]
	if !ok {
		header = "==leakdetector== FATAL: fatal signal received; stack trace:"
	}
	st.printer.PrintRaw(header, st.tr.PCs())

	n := runtime.Stack(st.stackBuf, true)
	report.Output().Write(st.stackBuf[:n])

	continueFatal(sig)
}
