// Package platform answers capability questions for the leak detector runtime.
//
// The bootstrap sequence is identical on every platform; components that
// depend on an OS facility (fatal-signal delivery, environment variables,
// subprocess spawning) query this package instead of branching on build tags
// themselves. A missing capability degrades the corresponding feature, it
// never fails bootstrap.
package platform

import (
	"os"
	"runtime"
)

// SupportsFatalSignalTraps reports whether the platform can deliver fatal
// signals (SIGSEGV, SIGBUS, ...) to a handler installed by this process.
//
// When this returns false the signal trap installer is skipped entirely.
func SupportsFatalSignalTraps() bool {
	switch runtime.GOOS {
	case "js", "wasip1", "plan9", "windows":
		return false
	default:
		return true
	}
}

// HasEnvironment reports whether process environment variables are available.
//
// Some embedded targets run without an environment; option resolution then
// uses only the built-in defaults and the compiled-in default-options string.
func HasEnvironment() bool {
	switch runtime.GOOS {
	case "js", "wasip1":
		return false
	default:
		return true
	}
}

// CanSpawnSubprocess reports whether spawning an external process (the
// symbolizer) is safe on this platform.
func CanSpawnSubprocess() bool {
	switch runtime.GOOS {
	case "js", "wasip1", "plan9":
		return false
	default:
		return true
	}
}

// ReadEnvOption returns the value of the named environment variable, or
// ("", false) when the variable is unset or the platform has no environment.
func ReadEnvOption(name string) (string, bool) {
	if !HasEnvironment() {
		return "", false
	}
	return os.LookupEnv(name)
}
