package api

import "sync/atomic"

// InitState is the bootstrap state machine.
//
// Transitions are monotonic and never revisited:
//
//	StateUninitialized → StateInitializing → StateInitialized
//
// The first transition is a compare-and-swap observed by at most one
// caller; correctness rests on that single atomic step, not on convention.
// No component outside this package reads or writes the state directly.
type InitState int32

const (
	// StateUninitialized: bootstrap has not started.
	StateUninitialized InitState = iota

	// StateInitializing: bootstrap is running on exactly one goroutine.
	// Observing this state from Init is a fatal contract violation.
	StateInitializing

	// StateInitialized: bootstrap completed; Init is a no-op from here on.
	StateInitialized
)

// String returns the state name for diagnostics.
func (s InitState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateInitialized:
		return "initialized"
	default:
		return "unknown"
	}
}

// initState holds the current InitState.
var initState atomic.Int32

// State returns the current bootstrap state. Diagnostic accessor; callers
// must not branch on it to decide whether to call Init; Init itself is the
// only entry point to the guard.
func State() InitState {
	return InitState(initState.Load())
}
