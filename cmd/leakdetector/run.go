// run.go implements the 'leakdetector run' command.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/kolkov/leakdetector/internal/leak/config"
)

// runCommand implements the 'leakdetector run' command.
//
// This command injects the leak detector bootstrap into Go source files,
// builds them temporarily, and immediately executes the resulting binary.
// It acts as a drop-in replacement for 'go run'.
//
// Flow:
//  1. Parse arguments (runtime options + source files + program arguments)
//  2. Build the injected binary to a temp location
//  3. Execute binary with LEAKDETECTOR_OPTIONS assembled from the project
//     file and -o flags
//  4. Forward stdin/stdout/stderr
//  5. Return the program's exit code (23 means leaks were found)
//
// Example:
//
//	leakdetector run main.go
//	leakdetector run main.go arg1 arg2
//	leakdetector run -o verbosity=1 main.go --program-flag=value
func runCommand(args []string) {
	config, programArgs, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	tempBinary, err := buildTemporary(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = os.Remove(tempBinary) }() // Best effort cleanup

	exitCode := executeBinary(tempBinary, programArgs, config.optionsString())
	os.Exit(exitCode)
}

// parseRunArgs separates runtime options and source files from program
// arguments.
//
// Supported forms:
//
//	leakdetector run [-o key=value]... file.go [arguments...]
//	leakdetector run file1.go file2.go [arguments...]
//
// Everything after the source files belongs to the program.
//
// Returns:
//   - buildConfig for compilation
//   - programArgs to pass to the executable
//   - error if parsing fails
func parseRunArgs(args []string) (*buildConfig, []string, error) {
	if len(args) == 0 {
		return nil, nil, fmt.Errorf("no source files specified")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	config := &buildConfig{workDir: cwd}
	var programArgs []string

	sawGoFile := false
	inProgramArgs := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if inProgramArgs {
			programArgs = append(programArgs, arg)
			continue
		}

		// Runtime options come before source files
		if !sawGoFile && arg == "-o" {
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("-o flag requires a key=value argument")
			}
			i++
			config.options = append(config.options, args[i])
			continue
		}
		if !sawGoFile && len(arg) > 3 && arg[:3] == "-o=" {
			config.options = append(config.options, arg[3:])
			continue
		}

		if filepath.Ext(arg) == ".go" {
			config.sourceFiles = append(config.sourceFiles, arg)
			sawGoFile = true
			continue
		}

		// Not a .go file after seeing .go files - program args start here
		if sawGoFile {
			inProgramArgs = true
			programArgs = append(programArgs, arg)
			continue
		}

		// Not a .go file before any .go file - pass through to go build
		config.buildFlags = append(config.buildFlags, arg)
	}

	if len(config.sourceFiles) == 0 {
		return nil, nil, fmt.Errorf("no Go source files specified")
	}

	return config, programArgs, nil
}

// buildTemporary builds the injected code to a temporary binary.
//
// Returns:
//   - Path to temporary binary
//   - Error if build fails
func buildTemporary(config *buildConfig) (string, error) {
	tempBinary, err := os.CreateTemp("", "leakdetector-run-*.exe")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempBinary.Name()
	_ = tempBinary.Close() // Ignore close error on temp file

	config.outputFile = tempPath

	workspace, err := createWorkspace()
	if err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}
	defer workspace.cleanup()

	if err := injectSources(config, workspace); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("failed to inject bootstrap: %w", err)
	}

	if err := workspace.setupRuntimeLinking(config); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("failed to setup runtime: %w", err)
	}

	if err := workspace.build(config); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("build failed: %w", err)
	}

	return tempPath, nil
}

// executeBinary runs the injected binary with given arguments.
//
// The assembled runtime options go to the child through LEAKDETECTOR_OPTIONS.
// A value already present in the environment wins over the assembled string,
// so users can still override the project configuration per invocation.
//
// Returns:
//   - Exit code of the process (0 = success, 23 = leaks found by default)
func executeBinary(binaryPath string, args []string, options string) int {
	cmd := exec.Command(binaryPath, args...)

	cmd.Env = os.Environ()
	if _, set := os.LookupEnv(config.EnvOptions); !set && options != "" {
		cmd.Env = append(cmd.Env, config.EnvOptions+"="+options)
	}

	// Forward streams
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		// Other error (failed to start, etc.)
		fmt.Fprintf(os.Stderr, "Error executing binary: %v\n", err)
		return 1
	}

	return 0
}
