package report

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kolkov/leakdetector/internal/leak/platform"
)

// External symbolizer support.
//
// A product can point LEAKDETECTOR_SYMBOLIZER_PATH (surfaced through the
// resolved configuration) at an addr2line-compatible executable. The
// symbolizer is consulted lazily, at the first symbolized report, and only
// on platforms where spawning a subprocess is safe. Any failure degrades
// silently to the runtime's own line tables.

var (
	symbolizerPath atomic.Pointer[string]

	// symbolizerProbe runs once: a configured path that does not exist or
	// is not executable disables the external symbolizer for the process.
	symbolizerProbe sync.Once
	symbolizerOK    bool
)

// SetSymbolizerPath records the external symbolizer executable.
//
// Empty path disables external symbolization. The executable is not probed
// here; probing happens at the first report that needs it.
func SetSymbolizerPath(path string) {
	symbolizerPath.Store(&path)
}

// SymbolizerPath returns the configured symbolizer executable path.
func SymbolizerPath() string {
	if p := symbolizerPath.Load(); p != nil {
		return *p
	}
	return ""
}

// symbolizeExternal tries the external symbolizer for the given PCs.
//
// Returns (formatted, true) on success. Every failure mode (no configured
// path, unsupported platform, missing executable, tool error) returns
// ("", false) so the caller falls back to runtime symbolization.
func symbolizeExternal(pcs []uintptr) (string, bool) {
	path := SymbolizerPath()
	if path == "" || !platform.CanSpawnSubprocess() {
		return "", false
	}
	symbolizerProbe.Do(func() {
		info, err := os.Stat(path)
		symbolizerOK = err == nil && !info.IsDir()
		if !symbolizerOK {
			VPrintf(1, "==leakdetector== WARNING: symbolizer %q unavailable, using runtime symbolization\n", path)
		}
	})
	if !symbolizerOK {
		return "", false
	}

	args := make([]string, 0, len(pcs))
	for _, pc := range pcs {
		args = append(args, fmt.Sprintf("0x%x", pc))
	}
	out, err := exec.Command(path, args...).Output()
	if err != nil {
		return "", false
	}

	var buf strings.Builder
	for _, line := range bytes.Split(bytes.TrimSpace(out), []byte("\n")) {
		buf.WriteString("  ")
		buf.Write(line)
		buf.WriteString("\n")
	}
	if buf.Len() == 0 {
		return "", false
	}
	return buf.String(), true
}
