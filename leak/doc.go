// Package leak provides a Pure-Go leak detector runtime API without CGO dependency.
//
// This package is the public surface of a standalone leak-detection runtime
// that links into ordinary Go programs compiled with CGO_ENABLED=0. The
// package brings the runtime to an operational state (configuration,
// tracked-thread registry, fatal-signal traps, exit-time leak check) and
// exposes the entry points instrumented code calls while the program runs.
//
// # Quick Start
//
// The leak package is automatically injected by the leakdetector tool:
//
//	$ leakdetector run myprogram.go
//
// For manual instrumentation:
//
//	package main
//
//	import "github.com/kolkov/leakdetector/leak"
//
//	func main() {
//		leak.Init()
//		defer leak.Fini()
//		// ... rest of program
//	}
//
// # Configuration
//
// Runtime options arrive as a space-delimited "key=value" string in the
// LEAKDETECTOR_OPTIONS environment variable:
//
//	$ LEAKDETECTOR_OPTIONS="verbosity=1 exitcode=42" ./myprogram
//
// A product can embed defaults at build time instead:
//
//	$ go build -ldflags "-X github.com/kolkov/leakdetector/internal/leak/config.DefaultOptions=detect_leaks=0"
//
// Unrecognized options are warnings, never errors; "help=1" prints every
// recognized option. LEAKDETECTOR_SYMBOLIZER_PATH optionally names an
// external symbolizer executable used when printing reports.
//
// # Exit code
//
// When the exit-time leak check finds leaks the process exits with the
// reserved code 23 (configurable via "exitcode="), distinct from the
// program's own exit codes so scripts can branch on it.
//
// # API Overview
//
// The package provides functions for:
//   - Initialization and finalization: [Init], [Fini]
//   - Allocation tracking: [RecordAlloc], [RecordFree]
//   - On-demand checking and traces: [DoLeakCheck], [PrintStackTrace]
//   - Thread registration: [RegisterThread]
//   - Version information: [GetInfo], [Version]
//
// # Compatibility
//
// Platform support:
//   - Operating systems: Linux, macOS, Windows (no fatal-signal traps)
//   - Go version: 1.24 or later
//   - CGO requirement: None (works with CGO_ENABLED=0)
package leak
