package leak

import internal "github.com/kolkov/leakdetector/internal/leak/api"

// Version information for the Pure-Go Leak Detector.
const (
	// Version is the current version of the leak detector runtime.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides runtime information about the leak detector.
type Info struct {
	// Version is the runtime version string.
	Version string

	// Initialized indicates whether bootstrap has completed.
	Initialized bool
}

// GetInfo returns information about the leak detector runtime.
//
// Example:
//
//	info := leak.GetInfo()
//	fmt.Printf("Leak Detector %s (initialized=%v)\n", info.Version, info.Initialized)
func GetInfo() Info {
	return Info{
		Version:     Version,
		Initialized: internal.State() == internal.StateInitialized,
	}
}
