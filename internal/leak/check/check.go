// Package check is the boundary to the leak-check algorithm.
//
// The mark/sweep scan that decides which allocations are unreachable is a
// separate concern; bootstrap's only responsibilities are scheduling the
// check at exit and using the reserved exit code when it finds leaks. The
// default checker treats every allocation still live at exit as leaked,
// which is exact for programs that free everything they own. A product with
// a real reachability scanner installs it via SetChecker.
package check

import (
	"sync/atomic"

	"github.com/kolkov/leakdetector/internal/leak/allocator"
)

// Summary is the result of one leak check.
type Summary struct {
	// Leaks is the number of leaked allocations.
	Leaks int

	// Bytes is the total size of leaked allocations.
	Bytes uintptr
}

// Checker produces a leak Summary for the current process state.
type Checker func() Summary

var checker atomic.Pointer[Checker]

func init() {
	def := Checker(defaultChecker)
	checker.Store(&def)
}

// defaultChecker reports the allocator's live table as leaked.
func defaultChecker() Summary {
	count, bytes := allocator.LiveStats()
	return Summary{Leaks: count, Bytes: bytes}
}

// SetChecker installs a replacement leak-check implementation and returns
// the previous one.
func SetChecker(c Checker) (prev Checker) {
	prev = *checker.Load()
	checker.Store(&c)
	return prev
}

// Run executes the installed leak check once and returns its summary.
func Run() Summary {
	return (*checker.Load())()
}
