//go:build unix

package thread

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// defaultStackLimit is used when the platform reports an unlimited or
// implausible stack rlimit. 8 MiB matches the common Linux default.
const defaultStackLimit = 8 << 20

// maxStackLimit caps the span derived from the rlimit. A value this large
// reads as effectively unlimited and falls back to the default.
const maxStackLimit = 1 << 30

// currentStackBounds derives usable stack bounds for the calling goroutine.
//
// The low bound is the current stack pointer, approximated by the address of
// a local; every live frame sits at a higher address. The high bound is the
// low bound plus the platform stack rlimit; an unlimited or implausible
// rlimit falls back to defaultStackLimit. The bounds only have to contain
// every valid frame pointer: the fast unwinder treats anything outside them
// as the end of the walk, not an error.
func currentStackBounds() (lo, hi uintptr) {
	var probe byte
	sp := uintptr(unsafe.Pointer(&probe))

	limit := uintptr(defaultStackLimit)
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_STACK, &rl); err == nil {
		limit = clampStackLimit(uint64(rl.Cur))
	}
	return sp, sp + limit
}

// clampStackLimit validates a raw RLIMIT_STACK value. Finite limits are used
// as reported; zero and anything at or above maxStackLimit (which includes
// every RLIM_INFINITY encoding) take the default.
func clampStackLimit(cur uint64) uintptr {
	if cur == 0 || cur >= maxStackLimit {
		return defaultStackLimit
	}
	return uintptr(cur)
}
