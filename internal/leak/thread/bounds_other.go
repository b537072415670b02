//go:build !unix

package thread

import "unsafe"

const defaultStackLimit = 8 << 20

// currentStackBounds derives usable stack bounds for the calling goroutine.
// Without a stack rlimit to consult, the span defaults to 8 MiB above the
// current stack pointer.
func currentStackBounds() (lo, hi uintptr) {
	var probe byte
	sp := uintptr(unsafe.Pointer(&probe))
	return sp, sp + defaultStackLimit
}
