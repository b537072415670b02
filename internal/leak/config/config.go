// Package config resolves the leak detector's runtime configuration.
//
// Options arrive as space-delimited "key=value" strings from up to four
// sources, merged in increasing precedence:
//
//  1. hard-coded common defaults
//  2. tool overrides compiled into this runtime (leak detection on by
//     default, the reserved leak exit code, the stack-capture depth)
//  3. a default-options string embeddable at build time via
//     -ldflags "-X .../config.DefaultOptions=..."
//  4. the LEAKDETECTOR_OPTIONS environment variable
//
// Later sources override earlier ones only for the options they mention.
// Unrecognized option names are warnings, never errors. The resolved Flags
// value is immutable: it is produced exactly once during bootstrap and every
// other component holds a read-only reference.
package config

import (
	"github.com/kolkov/leakdetector/internal/leak/platform"
	"github.com/kolkov/leakdetector/internal/leak/report"
)

// Environment variables consumed by the resolver.
const (
	// EnvOptions supplies the runtime options string.
	EnvOptions = "LEAKDETECTOR_OPTIONS"

	// EnvSymbolizerPath names an external symbolizer executable, consulted
	// lazily by report printing. Optional.
	EnvSymbolizerPath = "LEAKDETECTOR_SYMBOLIZER_PATH"
)

// Tool-specific override constants. These are the compiled-in defaults that
// distinguish the leak detector from a generic sanitizer runtime.
const (
	// DefaultExitcode is the reserved process exit code for "leaks found",
	// distinct from ordinary program exit codes so scripts can branch on it.
	DefaultExitcode = 23

	// DefaultContextSize is the default stack-capture depth for allocation
	// and crash traces.
	DefaultContextSize = 30

	// MinContextSize is the floor for malloc_context_size; a capture depth
	// below this produces traces too short to attribute a leak.
	MinContextSize = 1

	// MaxContextSize matches the unwinder's fixed trace capacity.
	MaxContextSize = 64
)

// DefaultOptions is the compiled-in default-options string.
//
// Products embed defaults without relying on the environment:
//
//	go build -ldflags "-X github.com/kolkov/leakdetector/internal/leak/config.DefaultOptions=exitcode=5"
var DefaultOptions string

// Flags is the immutable runtime configuration snapshot.
//
// Never mutated after Resolve returns; all components share one instance.
type Flags struct {
	// DetectLeaks enables leak detection as a whole. With it off the exit
	// hook is never scheduled and the reserved exit code is never used.
	DetectLeaks bool

	// LeakCheckAtExit schedules the leak check at normal process exit.
	LeakCheckAtExit bool

	// Exitcode is used when the exit-time leak check finds leaks.
	Exitcode int

	// Verbosity gates diagnostics. 0 is silent except for reports.
	Verbosity int

	// LogPath is the report destination: "stderr", "stdout" or a file path.
	LogPath string

	// FastUnwindOnFatal selects frame-pointer unwinding inside the
	// fatal-signal handler. Off by default: the precise path needs no
	// prior stack-bounds knowledge.
	FastUnwindOnFatal bool

	// MallocContextSize is the stack-capture depth, clamped to
	// [MinContextSize, MaxContextSize].
	MallocContextSize int

	// HandleFatalSignals installs the fatal-signal traps. Ignored on
	// platforms without signal delivery.
	HandleFatalSignals bool

	// ExternalSymbolizerPath points at an addr2line-compatible executable.
	// Normally sourced from LEAKDETECTOR_SYMBOLIZER_PATH.
	ExternalSymbolizerPath string

	// Help requests the option descriptions to be printed. Not fatal; the
	// resolver continues normally afterwards.
	Help bool

	// Unknown collects option names no source recognized. Reported as
	// warnings when verbosity permits.
	Unknown []string
}

// commonDefaults returns source (1): the generic sanitizer-style defaults.
func commonDefaults() Flags {
	return Flags{
		DetectLeaks:        false,
		LeakCheckAtExit:    true,
		Exitcode:           1,
		Verbosity:          0,
		LogPath:            "stderr",
		FastUnwindOnFatal:  false,
		MallocContextSize:  DefaultContextSize,
		HandleFatalSignals: true,
	}
}

// applyToolOverrides applies source (2): the leak-detector-specific defaults.
func applyToolOverrides(f *Flags) {
	f.DetectLeaks = true
	f.Exitcode = DefaultExitcode
	f.MallocContextSize = DefaultContextSize
	if path, ok := platform.ReadEnvOption(EnvSymbolizerPath); ok {
		f.ExternalSymbolizerPath = path
	}
}

// Resolve produces the runtime configuration from all four sources.
//
// Side effect, deliberately inside the resolver: the resolved verbosity and
// log destination are applied process-wide before Resolve returns, so every
// later bootstrap failure is reportable. A help request prints the flag
// descriptions and continues.
func Resolve() *Flags {
	f := commonDefaults()
	applyToolOverrides(&f)

	parseInto(&f, DefaultOptions)
	if env, ok := platform.ReadEnvOption(EnvOptions); ok {
		parseInto(&f, env)
	}

	f.clamp()

	// Output must be live before anything else touches the runtime.
	report.SetVerbosity(f.Verbosity)
	if err := report.SetLogPath(f.LogPath); err != nil {
		report.Printf("==leakdetector== WARNING: %v, reports stay on %s\n", err, report.LogPath())
	}
	report.SetSymbolizerPath(f.ExternalSymbolizerPath)

	if f.Verbosity > 0 && len(f.Unknown) > 0 {
		report.Printf("==leakdetector== WARNING: found %d unrecognized flag(s):\n", len(f.Unknown))
		for _, name := range f.Unknown {
			report.Printf("    %s\n", name)
		}
	}
	if f.Help {
		PrintFlagDescriptions(report.Output())
	}
	return &f
}

// clamp normalizes out-of-range numeric options instead of rejecting them.
func (f *Flags) clamp() {
	if f.MallocContextSize < MinContextSize {
		f.MallocContextSize = MinContextSize
	}
	if f.MallocContextSize > MaxContextSize {
		f.MallocContextSize = MaxContextSize
	}
}
