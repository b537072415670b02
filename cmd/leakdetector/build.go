// build.go implements the 'leakdetector build' command.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kolkov/leakdetector/cmd/leakdetector/runtime"
)

// buildCommand implements the 'leakdetector build' command.
//
// This command injects the leak detector bootstrap into Go source files and
// builds them with the runtime linked in. It acts as a drop-in replacement
// for 'go build' for single-main programs.
//
// Flow:
//  1. Parse arguments (source files + runtime options + go build flags)
//  2. Create temporary workspace
//  3. Inject leak.Init()/leak.Fini() into main()
//  4. Setup runtime linking (go.mod overlay)
//  5. Call 'go build' with the injected code
//  6. Cleanup temporary files
//
// Example:
//
//	leakdetector build main.go
//	leakdetector build -out myapp main.go helper.go
//	leakdetector build -o detect_leaks=0 main.go
func buildCommand(args []string) {
	config, err := parseBuildArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := runtime.ValidateRuntimeAvailable(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Leak detector runtime not found\n")
		fmt.Fprintf(os.Stderr, "%v\n", err)
		fmt.Fprintf(os.Stderr, "\nPlease ensure the runtime is installed:\n")
		fmt.Fprintf(os.Stderr, "  go get github.com/kolkov/leakdetector/leak\n")
		os.Exit(1)
	}

	workspace, err := createWorkspace()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating workspace: %v\n", err)
		os.Exit(1)
	}
	defer workspace.cleanup()

	if err := injectSources(config, workspace); err != nil {
		fmt.Fprintf(os.Stderr, "Error injecting bootstrap: %v\n", err)
		os.Exit(1)
	}

	if err := workspace.setupRuntimeLinking(config); err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up runtime: %v\n", err)
		os.Exit(1)
	}

	if err := workspace.build(config); err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(1)
	}

	if config.outputFile != "" {
		fmt.Printf("Built successfully: %s\n", config.outputFile)
		if opts := config.optionsString(); opts != "" {
			fmt.Printf("Run with: LEAKDETECTOR_OPTIONS=%q %s\n", opts, config.outputFile)
		}
	}
}

// buildConfig holds configuration for the build and run commands.
type buildConfig struct {
	// Source files to inject and build
	sourceFiles []string

	// Output binary name (from -out flag)
	outputFile string

	// Runtime options collected from -o key=value flags
	options []string

	// Additional go build flags
	buildFlags []string

	// Working directory for build
	workDir string

	// Verbose output flag (-v)
	verbose bool
}

// optionsString joins the collected runtime options into the space-delimited
// form LEAKDETECTOR_OPTIONS expects. Project-file options come first so the
// command line wins when the same key appears in both.
func (c *buildConfig) optionsString() string {
	projectOpts := loadProjectOptions(c.workDir)
	all := append(projectOpts, c.options...)
	return strings.Join(all, " ")
}

// parseBuildArgs parses command-line arguments for 'leakdetector build'.
//
// It separates:
//   - Source files (.go files or directories)
//   - Output file (-out flag)
//   - Runtime options (-o key=value, repeatable)
//   - Go build flags (everything else starting with -)
//
// Returns buildConfig with parsed arguments.
func parseBuildArgs(args []string) (*buildConfig, error) {
	config := &buildConfig{
		sourceFiles: []string{},
		buildFlags:  []string{},
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	config.workDir = cwd

	expectingValue := false
	for i := 0; i < len(args); i++ {
		arg := args[i]

		// If previous flag expects a value, this is it (even if it starts with -)
		// Example: -ldflags "-s -w"
		if expectingValue {
			config.buildFlags = append(config.buildFlags, arg)
			expectingValue = false
			continue
		}

		// Handle -out flag (output binary)
		if arg == "-out" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("-out flag requires an argument")
			}
			i++
			config.outputFile = args[i]
			continue
		}
		if strings.HasPrefix(arg, "-out=") {
			config.outputFile = strings.TrimPrefix(arg, "-out=")
			continue
		}

		// Handle -o flag (runtime option key=value)
		if arg == "-o" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("-o flag requires a key=value argument")
			}
			i++
			if !strings.Contains(args[i], "=") {
				return nil, fmt.Errorf("-o expects key=value, got %q", args[i])
			}
			config.options = append(config.options, args[i])
			continue
		}
		if strings.HasPrefix(arg, "-o=") {
			config.options = append(config.options, strings.TrimPrefix(arg, "-o="))
			continue
		}

		// Handle -v flag (verbose output)
		if arg == "-v" {
			config.verbose = true
			continue
		}

		// Handle flags (starts with -)
		if strings.HasPrefix(arg, "-") {
			// It's a build flag - pass through to go build
			config.buildFlags = append(config.buildFlags, arg)
			expectingValue = needsValue(arg)
			continue
		}

		// No dash prefix - source file, directory, or package path
		config.sourceFiles = append(config.sourceFiles, arg)
	}

	// Default: build current directory if no sources specified
	if len(config.sourceFiles) == 0 {
		config.sourceFiles = []string{"."}
	}

	return config, nil
}

// needsValue returns true if the flag expects a following value.
func needsValue(flag string) bool {
	valueFlags := []string{
		"-ldflags", "-gcflags", "-asmflags", "-gccgoflags",
		"-tags", "-installsuffix", "-buildmode", "-mod",
		"-modfile", "-overlay", "-pkgdir", "-toolexec",
	}

	for _, vf := range valueFlags {
		// Already has = format (e.g., -ldflags=-s)
		if strings.HasPrefix(flag, vf+"=") {
			return false
		}
		// Exact match - needs next arg
		if flag == vf {
			return true
		}
	}

	return false
}

// workspace represents a temporary workspace for injected code.
type workspace struct {
	// Root directory of workspace
	dir string

	// Source directory (where injected .go files go)
	srcDir string
}

// createWorkspace creates a temporary workspace for building injected code.
func createWorkspace() (*workspace, error) {
	dir, err := os.MkdirTemp("", "leakdetector-build-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	srcDir := filepath.Join(dir, "src")
	if err := os.MkdirAll(srcDir, 0755); err != nil {
		_ = os.RemoveAll(dir) // Cleanup on error, ignore removal errors
		return nil, fmt.Errorf("failed to create src directory: %w", err)
	}

	return &workspace{
		dir:    dir,
		srcDir: srcDir,
	}, nil
}

// cleanup removes the temporary workspace.
func (w *workspace) cleanup() {
	if w.dir != "" {
		_ = os.RemoveAll(w.dir) // Best effort cleanup, ignore errors
	}
}

// setupRuntimeLinking creates a go.mod overlay for runtime linking.
func (w *workspace) setupRuntimeLinking(config *buildConfig) error {
	sourceDir := config.workDir
	if len(config.sourceFiles) > 0 && filepath.Ext(config.sourceFiles[0]) == ".go" {
		sourceDir = filepath.Dir(absPath(config.sourceFiles[0], config.workDir))
	}

	overlayPath, err := runtime.ModFileOverlay(w.dir, sourceDir)
	if err != nil {
		return fmt.Errorf("failed to create go.mod overlay: %w", err)
	}

	// If an overlay was created, rename it to go.mod and tidy
	if overlayPath != "" {
		goModPath := filepath.Join(w.dir, "go.mod")
		if err := os.Rename(overlayPath, goModPath); err != nil {
			return fmt.Errorf("failed to setup go.mod: %w", err)
		}

		tidyCmd := exec.Command("go", "mod", "tidy")
		tidyCmd.Dir = w.dir // go.mod is in workspace root, not src/
		tidyCmd.Stdout = os.Stdout
		tidyCmd.Stderr = os.Stderr
		if err := tidyCmd.Run(); err != nil {
			return fmt.Errorf("failed to tidy go.mod: %w", err)
		}
	}

	return nil
}

// build runs 'go build' on the injected code in the workspace.
//
// When runtime options were given, they are baked into the binary as the
// build-time default string so the built artifact carries its configuration
// without needing LEAKDETECTOR_OPTIONS set at run time. The environment
// variable still overrides baked defaults.
func (w *workspace) build(config *buildConfig) error {
	args := []string{"build"}

	if config.outputFile != "" {
		outputPath := config.outputFile
		if !filepath.IsAbs(outputPath) {
			outputPath = filepath.Join(config.workDir, outputPath)
		}
		args = append(args, "-o", outputPath)
	}

	if opts := config.optionsString(); opts != "" {
		// The options string contains spaces; quote the -X value so the go
		// command's ldflags splitting keeps it as one linker argument.
		args = append(args, "-ldflags",
			fmt.Sprintf("-X '%s=%s'", runtime.DefaultOptionsLinkSymbol(), opts))
	}

	args = append(args, config.buildFlags...)
	args = append(args, runtime.BuildFlags()...)

	// Build from workspace src directory
	args = append(args, ".")

	cmd := exec.Command("go", args...)
	cmd.Dir = w.srcDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

// injectSources injects the bootstrap into all source files and writes them
// to the workspace.
func injectSources(config *buildConfig, workspace *workspace) error {
	goFiles, err := collectGoFiles(config.sourceFiles, config.workDir)
	if err != nil {
		return fmt.Errorf("failed to collect source files: %w", err)
	}

	if len(goFiles) == 0 {
		return fmt.Errorf("no Go source files found")
	}

	injected := false
	for _, srcPath := range goFiles {
		result, err := injectFile(srcPath)
		if err != nil {
			return fmt.Errorf("failed to inject %s: %w", srcPath, err)
		}

		// Flatten directory structure: single-main programs only
		outPath := filepath.Join(workspace.srcDir, filepath.Base(srcPath))
		if err := os.WriteFile(outPath, []byte(result.Code), 0644); err != nil {
			return fmt.Errorf("failed to write injected file %s: %w", outPath, err)
		}

		if result.Injected {
			injected = true
			if config.verbose {
				fmt.Printf("Injected bootstrap: %s -> %s\n", srcPath, outPath)
			}
		}
	}

	if !injected {
		return fmt.Errorf("no main() function found in source files")
	}

	return nil
}

// collectGoFiles finds all .go files from the given sources.
//
// Sources can be:
//   - .go files directly
//   - directories (scans for .go files)
//   - "." for current directory
func collectGoFiles(sources []string, workDir string) ([]string, error) {
	var goFiles []string

	for _, src := range sources {
		srcPath := absPath(src, workDir)

		info, err := os.Stat(srcPath)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", src, err)
		}

		if info.IsDir() {
			entries, err := os.ReadDir(srcPath)
			if err != nil {
				return nil, fmt.Errorf("cannot read directory %s: %w", srcPath, err)
			}

			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}

				name := entry.Name()
				// Include only .go files (exclude _test.go for build)
				if strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go") {
					goFiles = append(goFiles, filepath.Join(srcPath, name))
				}
			}
		} else if strings.HasSuffix(srcPath, ".go") {
			goFiles = append(goFiles, srcPath)
		}
	}

	return goFiles, nil
}

// absPath makes a path absolute relative to workDir.
func absPath(path, workDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workDir, path)
}
