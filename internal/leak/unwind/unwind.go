// Package unwind produces stack traces for the leak detector.
//
// Two strategies, selected per request:
//
//   - Fast: walk the frame-pointer chain starting at the supplied frame
//     pointer. Cheap, but only trustworthy within a tracked thread whose
//     stack bounds are known: every candidate frame pointer is validated
//     to lie strictly inside those bounds before it is dereferenced, and a
//     frame outside them ends the walk early with a shorter trace, never an
//     error or an out-of-bounds read.
//   - Precise: context-directed. Uses the program-counter snapshot captured
//     with the request, or the runtime's caller records when no snapshot
//     exists. Needs no prior stack-bounds knowledge, costs more, and may
//     differ in frame count from a fast walk of the same logical stack.
//
// Unknown or partially-initialized threads always take the precise path.
//
// Everything in this package is allocation-free and lock-free: results go
// into a caller-supplied fixed-capacity Trace, so the fatal-signal handler
// may call it during arbitrary signal delivery.
package unwind

import (
	"runtime"
	"unsafe"

	"github.com/kolkov/leakdetector/internal/leak/thread"
)

// MaxDepth is the fixed trace capacity. Requests asking for more are
// clamped; requests asking for less stop early.
const MaxDepth = 64

const ptrSize = unsafe.Sizeof(uintptr(0))

// Trace is a bounded sequence of return addresses, newest first.
//
// Fixed capacity so it can live in preallocated handler state. The zero
// value is ready to use.
type Trace struct {
	pcs [MaxDepth]uintptr
	n   int
}

// PCs returns the captured return addresses, newest first.
func (t *Trace) PCs() []uintptr { return t.pcs[:t.n] }

// Size returns the number of captured return addresses.
func (t *Trace) Size() int { return t.n }

// Reset empties the trace for reuse.
func (t *Trace) Reset() { t.n = 0 }

func (t *Trace) push(pc uintptr) {
	if t.n < len(t.pcs) {
		t.pcs[t.n] = pc
		t.n++
	}
}

// Context is the opaque platform context delivered with a signal frame: a
// program-counter snapshot taken at delivery time. The precise strategy
// replays it without touching the faulting stack.
type Context struct {
	pcs [MaxDepth]uintptr
	n   int
}

// CaptureInto fills ctx with the current goroutine's caller records,
// skipping skip frames (0 identifies the caller of CaptureInto itself).
// Allocation-free; ctx is typically preallocated handler state.
func CaptureInto(ctx *Context, skip int) {
	ctx.n = runtime.Callers(skip+2, ctx.pcs[:])
}

// PCs returns the snapshot's program counters.
func (c *Context) PCs() []uintptr { return c.pcs[:c.n] }

// Request describes one unwind: where to start, which strategy to prefer,
// and how deep to go.
type Request struct {
	// PC is the program counter of the newest frame.
	PC uintptr

	// FP is the frame pointer to start a fast walk from. Zero means no
	// frame pointer is available and forces the precise strategy.
	FP uintptr

	// Context is the delivery snapshot for the precise strategy. May be
	// nil, in which case the precise path uses live caller records.
	Context *Context

	// WantFast requests the frame-pointer strategy. Honored only when the
	// calling thread is tracked and the architecture maintains frame
	// pointers.
	WantFast bool

	// MaxDepth bounds the result; clamped to [1, MaxDepth].
	MaxDepth int
}

// WillUseFastUnwind reports whether a fast-unwind request can be honored on
// this architecture. Go keeps frame pointers on amd64 and arm64; elsewhere
// the chain is not reliably present and the precise path is used instead.
func WillUseFastUnwind(requested bool) bool {
	if !requested {
		return false
	}
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return true
	default:
		return false
	}
}

// Unwind fills tr according to req.
//
// th is the resolved tracked thread for the requesting context, or nil when
// unknown. The fast strategy runs only when requested, supported, th is
// non-nil with recorded bounds, and the request carries a starting frame
// pointer; everything else falls back to precise. A zero FP means the
// requester has no frame to walk from, and a fast walk started there would
// fail the bounds check on its first step and lose the whole stack.
func Unwind(req Request, th *thread.Thread, tr *Trace) {
	tr.Reset()
	depth := req.MaxDepth
	if depth <= 0 || depth > MaxDepth {
		depth = MaxDepth
	}

	if WillUseFastUnwind(req.WantFast) && th != nil && req.FP != 0 {
		fastUnwind(req.PC, req.FP, th.StackBegin, th.StackEnd, depth, tr)
		return
	}
	preciseUnwind(req, depth, tr)
}

// IsValidFrame reports whether fp can be dereferenced as a frame record:
// pointer-aligned and strictly inside (lo, hi) with room for the saved
// frame pointer and return address.
func IsValidFrame(fp, lo, hi uintptr) bool {
	return fp > lo && fp+2*ptrSize <= hi && fp%ptrSize == 0
}

// fastUnwind walks the frame-pointer chain.
//
// Frame layout per the Go ABI: [fp] holds the caller's frame pointer,
// [fp+ptrSize] the return address. The walk stops at depth, at the first
// frame outside (lo, hi), at a zero return address, or when the chain stops
// moving toward the stack base. All of those yield a shorter trace.
func fastUnwind(pc, fp, lo, hi uintptr, depth int, tr *Trace) {
	tr.push(pc)
	for tr.n < depth && IsValidFrame(fp, lo, hi) {
		next := *(*uintptr)(unsafe.Pointer(fp))
		ret := *(*uintptr)(unsafe.Pointer(fp + ptrSize))
		if ret == 0 {
			break
		}
		tr.push(ret)
		if next <= fp {
			// The chain must ascend; anything else is corruption or
			// the sentinel frame.
			break
		}
		fp = next
	}
}

// preciseUnwind replays the delivery snapshot, or captures live caller
// records when the request has no context.
func preciseUnwind(req Request, depth int, tr *Trace) {
	if req.Context != nil && req.Context.n > 0 {
		if req.PC != 0 {
			tr.push(req.PC)
		}
		for _, pc := range req.Context.PCs() {
			if tr.n >= depth {
				break
			}
			tr.push(pc)
		}
		return
	}
	// No context: the requesting frame itself is the newest interesting
	// frame. Skip runtime.Callers, preciseUnwind and Unwind.
	n := runtime.Callers(3, tr.pcs[:depth])
	tr.n = n
}
