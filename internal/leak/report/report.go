// Package report owns the leak detector's diagnostic output path.
//
// All runtime components print through this package: configuration warnings,
// stack traces, leak summaries and fatal contract violations. The output
// destination and verbosity are applied once, as the final step of option
// resolution, before any other component runs, so later failures are
// reportable.
//
// Signal-safety: the raw trace path (TracePrinter) writes preformatted bytes
// through a destination resolved at configuration time. It performs no heap
// allocation and takes no locks, so it is usable from the fatal-signal
// handler. Symbolized output (FormatFrames, the external symbolizer) is
// reserved for ordinary code paths.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
)

// sink is the resolved output destination.
//
// Stored behind an atomic pointer so the signal path can read it without a
// lock. The destination is replaced only during option resolution.
type sink struct {
	w    io.Writer
	path string
}

var (
	// output is the current report destination. Defaults to stderr so that
	// failures before option resolution are still visible.
	output atomic.Pointer[sink]

	// verbosity gates non-essential diagnostics. 0 means warnings only
	// through explicit Printf calls; VPrintf output requires level >= 1.
	verbosity atomic.Int32

	// dieCallback is invoked by Die after the fatal diagnostic is written.
	// Replaced in tests to observe abort behavior without killing the
	// test process.
	dieCallback atomic.Pointer[func()]
)

func init() {
	output.Store(&sink{w: os.Stderr, path: "stderr"})
	exit := func() { os.Exit(1) }
	dieCallback.Store(&exit)
}

// SetLogPath directs all reports to the given destination.
//
// Recognized values:
//   - "stderr" (default) and "stdout": the process streams
//   - anything else: a file path, created or truncated
//
// Called once at the end of option resolution. Returns an error when the
// file cannot be opened; the previous destination stays active in that case.
func SetLogPath(path string) error {
	switch path {
	case "", "stderr":
		output.Store(&sink{w: os.Stderr, path: "stderr"})
		return nil
	case "stdout":
		output.Store(&sink{w: os.Stdout, path: "stdout"})
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("cannot open log path %q: %w", path, err)
	}
	output.Store(&sink{w: f, path: path})
	return nil
}

// SetOutput redirects reports to an arbitrary writer. Test hook.
func SetOutput(w io.Writer) {
	output.Store(&sink{w: w, path: "custom"})
}

// Output returns the current report destination.
func Output() io.Writer {
	return output.Load().w
}

// LogPath returns the name of the current report destination.
func LogPath() string {
	return output.Load().path
}

// SetVerbosity applies the resolved verbosity level process-wide.
func SetVerbosity(level int) {
	verbosity.Store(int32(level))
}

// Verbosity returns the current verbosity level.
func Verbosity() int {
	return int(verbosity.Load())
}

// Printf writes an unconditional report line.
func Printf(format string, args ...interface{}) {
	fmt.Fprintf(output.Load().w, format, args...)
}

// VPrintf writes a report line only when verbosity is at least level.
func VPrintf(level int, format string, args ...interface{}) {
	if int(verbosity.Load()) >= level {
		fmt.Fprintf(output.Load().w, format, args...)
	}
}

// Fatalf reports a contract violation and aborts the process.
//
// This is the sanitizer CHECK failure path: the message identifies the
// violated invariant, and there is no recovery; continuing would operate on
// undefined global state.
func Fatalf(format string, args ...interface{}) {
	fmt.Fprintf(output.Load().w, "==leakdetector== FATAL: "+format+"\n", args...)
	Die()
}

// Die terminates the process through the registered die callback.
func Die() {
	(*dieCallback.Load())()
}

// SetDieCallback replaces the abort action and returns the previous one.
//
// Tests install a callback that records the abort (and panics or returns)
// instead of exiting. Not for production use.
func SetDieCallback(fn func()) (prev func()) {
	prev = *dieCallback.Load()
	dieCallback.Store(&fn)
	return prev
}

// FormatFrames renders program counters as a human-readable stack trace.
//
// Output format follows the runtime's conventions:
//
//	  main.leaky()
//	      /path/to/main.go:14
//
// Frames from the Go runtime itself are filtered out; they are never the
// interesting part of a leak or crash trace. When an external symbolizer is
// configured it is consulted first (see symbolizer.go).
func FormatFrames(pcs []uintptr) string {
	if len(pcs) == 0 {
		return "  <empty stack>\n"
	}
	if s, ok := symbolizeExternal(pcs); ok {
		return s
	}
	return formatWithRuntime(pcs)
}

// formatWithRuntime symbolizes using the runtime's own line tables.
func formatWithRuntime(pcs []uintptr) string {
	frames := callersFrames(pcs)
	var buf strings.Builder
	for {
		frame, more := frames.Next()
		if frame.PC == 0 {
			break
		}
		if strings.HasPrefix(frame.Function, "runtime.") {
			if !more {
				break
			}
			continue
		}
		fmt.Fprintf(&buf, "  %s()\n", frame.Function)
		fmt.Fprintf(&buf, "      %s:%d\n", frame.File, frame.Line)
		if !more {
			break
		}
	}
	if buf.Len() == 0 {
		return "  <runtime internal>\n"
	}
	return buf.String()
}
