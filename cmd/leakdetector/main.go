// Package main implements the leakdetector CLI tool.
//
// The leakdetector tool runs Go programs under the Pure-Go leak detector
// without a custom toolchain or CGO. It works by:
//
//  1. Parsing the program's main file with go/ast
//  2. Injecting leak.Init() / defer leak.Fini() at the top of main()
//  3. Linking the leak detector runtime via a go.mod overlay
//  4. Building/running the resulting code with runtime options applied
//
// Usage:
//
//	leakdetector build main.go          # Build with leak checking linked in
//	leakdetector run main.go [args...]  # Run with leak checking
//
// Runtime options can come from -o flags, a .leakdetector.yml project file,
// or the LEAKDETECTOR_OPTIONS environment variable.
package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "build":
		buildCommand(os.Args[2:])
	case "run":
		runCommand(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("leakdetector version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`leakdetector - Pure-Go Leak Detector Tool

USAGE:
    leakdetector <command> [arguments]

COMMANDS:
    build      Build Go program with leak checking linked in
    run        Run Go program with leak checking
    version    Show version information
    help       Show this help message

EXAMPLES:
    # Run a program with leak checking
    leakdetector run main.go

    # Pass runtime options
    leakdetector run -o verbosity=1 -o exitcode=42 main.go

    # Build a checked binary
    leakdetector build -out myapp main.go

ABOUT:
    leakdetector links the Pure-Go leak detector runtime into ordinary Go
    programs. It injects leak.Init()/leak.Fini() into main(), builds the
    program, and applies runtime options through LEAKDETECTOR_OPTIONS.

    When the exit-time leak check finds leaks, the program exits with the
    reserved code 23 (configurable) so scripts can tell "leaks found" apart
    from the program's own exit codes.

    Project defaults can live in a .leakdetector.yml file next to go.mod:

        options:
          verbosity: 1
          exitcode: 42

FOR MORE INFORMATION:
    Repository: https://github.com/kolkov/leakdetector
`)
}
