// Package runtime provides runtime library linking for injected code.
//
// This package handles linking the Pure-Go leak detector runtime into
// programs processed by the leakdetector tool. It locates the runtime
// package and builds the go.mod overlay that makes it importable from the
// temporary build workspace.
package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

// RuntimePackagePath returns the import path for the leak detector runtime.
//
// This is the package injected main functions import to call leak.Init and
// leak.Fini.
//
// Uses the public API wrapper instead of the internal package so injected
// code builds outside this repository.
//
// Returns: "github.com/kolkov/leakdetector/leak"
func RuntimePackagePath() string {
	return "github.com/kolkov/leakdetector/leak"
}

// DefaultOptionsLinkSymbol returns the linker symbol that carries build-time
// default runtime options.
//
// Passing `-ldflags "-X <symbol>=detect_leaks=0"` bakes an options string
// into the binary. The LEAKDETECTOR_OPTIONS environment variable still
// overrides baked defaults at run time.
func DefaultOptionsLinkSymbol() string {
	return "github.com/kolkov/leakdetector/internal/leak/config.DefaultOptions"
}

// ValidateRuntimeAvailable checks if the runtime library is available.
//
// This verifies that the leak detector runtime package can be found and
// imported. If the package is missing, it provides instructions for
// installing it.
//
// Returns:
//   - nil if runtime is available
//   - error with installation instructions if missing
func ValidateRuntimeAvailable() error {
	// In development (running from source) the runtime is in internal/leak/api
	projectRoot, err := findProjectRoot()
	if err == nil {
		runtimePath := filepath.Join(projectRoot, "internal", "leak", "api")
		if _, err := os.Stat(runtimePath); err == nil {
			return nil
		}
	}

	// Outside the development tree we rely on the published module; the
	// overlay is skipped and 'go mod tidy' resolves the import.
	return nil
}

// findProjectRoot finds the root of a leakdetector development checkout.
//
// It walks up from the current working directory looking for the runtime
// marker (the internal/leak/api directory). A plain go.mod is not enough of
// a marker, it would match the user's own project. Failure means the tool
// runs outside a checkout and the published module serves the import.
//
// Returns:
//   - Project root path
//   - Error if root cannot be found
func findProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := cwd
	for {
		// internal/leak/api is the runtime marker
		runtimePath := filepath.Join(dir, "internal", "leak", "api")
		if _, err := os.Stat(runtimePath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("could not find leakdetector project root")
}

// findOriginalGoMod finds the go.mod file of the project being injected.
//
// This walks up from the given directory looking for a go.mod file. This is
// different from findProjectRoot which finds leakdetector's own root.
//
// Parameters:
//   - startDir: Directory to start searching from (usually the source file's directory)
//
// Returns:
//   - Path to go.mod file
//   - Empty string if no go.mod found
func findOriginalGoMod(startDir string) string {
	dir := startDir
	for {
		modPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(modPath); err == nil {
			return modPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// BuildFlags returns additional flags needed for building injected code.
//
// Returns:
//   - Slice of build flags to pass to 'go build'
func BuildFlags() []string {
	// The runtime needs no CGO, no build tags, and no special linking
	return []string{}
}

// ModFileOverlay creates a temporary go.mod overlay for injected code.
//
// When running from the development tree, the overlay replaces the remote
// runtime import with the local checkout. It also preserves replace
// directives from the original project's go.mod, converting relative paths
// to absolute paths (the temp directory has a different working directory).
//
// Parameters:
//   - tempDir: Temporary directory where injected code is being built
//   - sourceDir: Directory of the source file being injected (to find the original go.mod)
//
// Returns:
//   - Path to overlay file (renamed to go.mod by the caller)
//   - Empty string when not in development mode
//   - Error if overlay creation fails
func ModFileOverlay(tempDir, sourceDir string) (string, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		// Not in development mode - use the published package
		//nolint:nilerr // Error indicates published mode, not a failure
		return "", nil
	}

	var content strings.Builder
	content.WriteString("module injected\n\n")
	content.WriteString("go 1.24\n\n")
	content.WriteString("require github.com/kolkov/leakdetector v0.0.0\n\n")
	content.WriteString(fmt.Sprintf("replace github.com/kolkov/leakdetector => %s\n", projectRoot))

	// Carry over the original project's replace directives
	if sourceDir != "" {
		originalGoMod := findOriginalGoMod(sourceDir)
		if originalGoMod != "" {
			replaceDirectives := extractReplaceDirectives(originalGoMod)
			if replaceDirectives != "" {
				content.WriteString("\n// Replace directives from original go.mod:\n")
				content.WriteString(replaceDirectives)
			}
		}
	}

	overlayPath := filepath.Join(tempDir, "go.mod.overlay")
	if err := os.WriteFile(overlayPath, []byte(content.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to create go.mod overlay: %w", err)
	}

	return overlayPath, nil
}

// extractReplaceDirectives reads a go.mod file and extracts replace
// directives, converting relative paths to absolute paths.
//
// Parameters:
//   - goModPath: Path to the go.mod file to parse
//
// Returns:
//   - String containing replace directives with absolute paths
func extractReplaceDirectives(goModPath string) string {
	data, err := os.ReadFile(goModPath)
	if err != nil {
		return ""
	}

	modFile, err := modfile.Parse(goModPath, data, nil)
	if err != nil {
		return ""
	}

	if len(modFile.Replace) == 0 {
		return ""
	}

	goModDir := filepath.Dir(goModPath)
	var result strings.Builder

	for _, rep := range modFile.Replace {
		newPath := rep.New.Path

		// Local paths have no version and are filesystem paths
		if rep.New.Version == "" && isLocalPath(newPath) {
			if !filepath.IsAbs(newPath) {
				absPath, err := filepath.Abs(filepath.Join(goModDir, newPath))
				if err == nil {
					newPath = absPath
				}
			}
		}

		if rep.Old.Version != "" {
			// Replace specific version: replace foo v1.0.0 => bar
			if rep.New.Version != "" {
				result.WriteString(fmt.Sprintf("replace %s %s => %s %s\n",
					rep.Old.Path, rep.Old.Version, newPath, rep.New.Version))
			} else {
				result.WriteString(fmt.Sprintf("replace %s %s => %s\n",
					rep.Old.Path, rep.Old.Version, newPath))
			}
		} else {
			// Replace all versions: replace foo => bar
			if rep.New.Version != "" {
				result.WriteString(fmt.Sprintf("replace %s => %s %s\n",
					rep.Old.Path, newPath, rep.New.Version))
			} else {
				result.WriteString(fmt.Sprintf("replace %s => %s\n",
					rep.Old.Path, newPath))
			}
		}
	}

	return result.String()
}

// isLocalPath checks if a path is a local filesystem path (not a module path).
//
// Local paths start with ./, ../, /, or a drive letter on Windows.
func isLocalPath(path string) bool {
	if strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") {
		return true
	}
	if filepath.IsAbs(path) {
		return true
	}
	// Windows drive letter check (e.g., C:\)
	if len(path) >= 2 && path[1] == ':' {
		return true
	}
	// Relative paths like "subdir/module" have a separator but no dots
	if strings.ContainsAny(path, `/\`) && !strings.Contains(path, ".") {
		return true
	}
	return false
}
