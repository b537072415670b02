package config

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// flagDesc describes one recognized option: how to parse it and the help
// text printed for help=1.
type flagDesc struct {
	name string
	desc string
	set  func(f *Flags, value string) error
}

// flagTable is the single registry of recognized options. Parsing and help
// output both walk this table, so the two can never drift apart.
var flagTable = []flagDesc{
	{"detect_leaks", "Enable leak detection.",
		boolFlag(func(f *Flags, v bool) { f.DetectLeaks = v })},
	{"leak_check_at_exit", "Run the leak check at normal process exit.",
		boolFlag(func(f *Flags, v bool) { f.LeakCheckAtExit = v })},
	{"exitcode", "Process exit code when the exit-time check finds leaks.",
		intFlag(func(f *Flags, v int) { f.Exitcode = v })},
	{"verbosity", "Diagnostic verbosity level (0 = quiet).",
		intFlag(func(f *Flags, v int) { f.Verbosity = v })},
	{"log_path", "Report destination: stderr, stdout or a file path.",
		stringFlag(func(f *Flags, v string) { f.LogPath = v })},
	{"fast_unwind_on_fatal", "Use frame-pointer unwinding in the fatal-signal handler.",
		boolFlag(func(f *Flags, v bool) { f.FastUnwindOnFatal = v })},
	{"malloc_context_size", "Stack-capture depth for allocation and crash traces.",
		intFlag(func(f *Flags, v int) { f.MallocContextSize = v })},
	{"handle_fatal_signals", "Install fatal-signal traps when the platform supports them.",
		boolFlag(func(f *Flags, v bool) { f.HandleFatalSignals = v })},
	{"external_symbolizer_path", "External symbolizer executable (normally via " + EnvSymbolizerPath + ").",
		stringFlag(func(f *Flags, v string) { f.ExternalSymbolizerPath = v })},
	{"help", "Print the recognized options and continue.",
		boolFlag(func(f *Flags, v bool) { f.Help = v })},
}

func boolFlag(assign func(*Flags, bool)) func(*Flags, string) error {
	return func(f *Flags, value string) error {
		v, err := parseBool(value)
		if err != nil {
			return err
		}
		assign(f, v)
		return nil
	}
}

func intFlag(assign func(*Flags, int)) func(*Flags, string) error {
	return func(f *Flags, value string) error {
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer %q", value)
		}
		assign(f, v)
		return nil
	}
}

func stringFlag(assign func(*Flags, string)) func(*Flags, string) error {
	return func(f *Flags, value string) error {
		assign(f, value)
		return nil
	}
}

// parseBool accepts the sanitizer's boolean spellings.
func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "1", "true", "yes":
		return true, nil
	case "0", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", value)
}

// parseInto merges one options string into f.
//
// Grammar: whitespace-delimited "key=value" pairs. A bare key without '='
// and an option with an unparsable value are both treated as unrecognized:
// recorded for the warning path, never fatal. Options the string does not
// mention keep their prior values.
func parseInto(f *Flags, options string) {
	for _, field := range strings.Fields(options) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			f.Unknown = append(f.Unknown, field)
			continue
		}
		desc := lookupFlag(key)
		if desc == nil {
			f.Unknown = append(f.Unknown, key)
			continue
		}
		if err := desc.set(f, value); err != nil {
			f.Unknown = append(f.Unknown, key)
		}
	}
}

func lookupFlag(name string) *flagDesc {
	for i := range flagTable {
		if flagTable[i].name == name {
			return &flagTable[i]
		}
	}
	return nil
}

// PrintFlagDescriptions writes the help text for every recognized option.
//
// Triggered by help=1 in any options source. Printing help does not abort
// resolution; the process continues with the resolved configuration.
func PrintFlagDescriptions(w io.Writer) {
	names := make([]string, 0, len(flagTable))
	for _, d := range flagTable {
		names = append(names, d.name)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "Available flags for LeakDetector (%s):\n", EnvOptions)
	for _, name := range names {
		d := lookupFlag(name)
		fmt.Fprintf(w, "\t%s\n\t\t- %s\n", d.name, d.desc)
	}
}
