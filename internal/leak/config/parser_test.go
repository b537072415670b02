package config

import (
	"strings"
	"testing"
)

// TestParseBool verifies the sanitizer boolean spellings.
func TestParseBool(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    bool
		wantErr bool
	}{
		{name: "one", input: "1", want: true},
		{name: "zero", input: "0", want: false},
		{name: "true", input: "true", want: true},
		{name: "false", input: "false", want: false},
		{name: "yes", input: "yes", want: true},
		{name: "no", input: "no", want: false},
		{name: "mixed_case", input: "True", want: true},
		{name: "empty", input: "", wantErr: true},
		{name: "numeric_two", input: "2", wantErr: true},
		{name: "garbage", input: "maybe", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBool(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseBool(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseBool(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("parseBool(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// TestParseInto_KnownOptions verifies each recognized option reaches its field.
func TestParseInto_KnownOptions(t *testing.T) {
	f := commonDefaults()
	parseInto(&f, "detect_leaks=1 leak_check_at_exit=0 exitcode=42 verbosity=2 "+
		"log_path=stdout fast_unwind_on_fatal=1 malloc_context_size=10 "+
		"handle_fatal_signals=0 external_symbolizer_path=/usr/bin/addr2line help=1")

	if !f.DetectLeaks {
		t.Error("detect_leaks=1 not applied")
	}
	if f.LeakCheckAtExit {
		t.Error("leak_check_at_exit=0 not applied")
	}
	if f.Exitcode != 42 {
		t.Errorf("exitcode = %d, want 42", f.Exitcode)
	}
	if f.Verbosity != 2 {
		t.Errorf("verbosity = %d, want 2", f.Verbosity)
	}
	if f.LogPath != "stdout" {
		t.Errorf("log_path = %q, want stdout", f.LogPath)
	}
	if !f.FastUnwindOnFatal {
		t.Error("fast_unwind_on_fatal=1 not applied")
	}
	if f.MallocContextSize != 10 {
		t.Errorf("malloc_context_size = %d, want 10", f.MallocContextSize)
	}
	if f.HandleFatalSignals {
		t.Error("handle_fatal_signals=0 not applied")
	}
	if f.ExternalSymbolizerPath != "/usr/bin/addr2line" {
		t.Errorf("external_symbolizer_path = %q", f.ExternalSymbolizerPath)
	}
	if !f.Help {
		t.Error("help=1 not applied")
	}
	if len(f.Unknown) != 0 {
		t.Errorf("unexpected unknown flags: %v", f.Unknown)
	}
}

// TestParseInto_Unrecognized verifies unknown options are collected, never fatal.
func TestParseInto_Unrecognized(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		unknown []string
	}{
		{
			name:    "unknown_key",
			input:   "frobnicate=1",
			unknown: []string{"frobnicate"},
		},
		{
			name:    "bare_key_without_value",
			input:   "detect_leaks",
			unknown: []string{"detect_leaks"},
		},
		{
			name:    "bad_bool_value",
			input:   "detect_leaks=2",
			unknown: []string{"detect_leaks"},
		},
		{
			name:    "bad_int_value",
			input:   "exitcode=lots",
			unknown: []string{"exitcode"},
		},
		{
			name:    "mixed_known_and_unknown",
			input:   "verbosity=1 no_such_option=7 exitcode=9",
			unknown: []string{"no_such_option"},
		},
		{
			name:    "empty_string",
			input:   "",
			unknown: nil,
		},
		{
			name:    "whitespace_only",
			input:   "   \t  ",
			unknown: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := commonDefaults()
			parseInto(&f, tt.input)
			if len(f.Unknown) != len(tt.unknown) {
				t.Fatalf("Unknown = %v, want %v", f.Unknown, tt.unknown)
			}
			for i, name := range tt.unknown {
				if f.Unknown[i] != name {
					t.Errorf("Unknown[%d] = %q, want %q", i, f.Unknown[i], name)
				}
			}
		})
	}
}

// TestParseInto_LastWins verifies that within one string the last mention of
// an option wins.
func TestParseInto_LastWins(t *testing.T) {
	f := commonDefaults()
	parseInto(&f, "exitcode=5 exitcode=9")
	if f.Exitcode != 9 {
		t.Errorf("exitcode = %d, want 9 (last mention)", f.Exitcode)
	}
}

// TestParseInto_PreservesUnmentioned verifies options absent from the string
// keep their prior values.
func TestParseInto_PreservesUnmentioned(t *testing.T) {
	f := commonDefaults()
	f.Exitcode = 77
	parseInto(&f, "verbosity=3")
	if f.Exitcode != 77 {
		t.Errorf("exitcode = %d, want 77 (unmentioned option changed)", f.Exitcode)
	}
}

// TestClamp verifies malloc_context_size normalization.
func TestClamp(t *testing.T) {
	tests := []struct {
		name  string
		input int
		want  int
	}{
		{name: "below_floor", input: 0, want: MinContextSize},
		{name: "negative", input: -5, want: MinContextSize},
		{name: "in_range", input: 16, want: 16},
		{name: "at_ceiling", input: MaxContextSize, want: MaxContextSize},
		{name: "above_ceiling", input: 1000, want: MaxContextSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := commonDefaults()
			f.MallocContextSize = tt.input
			f.clamp()
			if f.MallocContextSize != tt.want {
				t.Errorf("clamp(%d) = %d, want %d", tt.input, f.MallocContextSize, tt.want)
			}
		})
	}
}

// TestPrintFlagDescriptions verifies every registered option shows up in help.
func TestPrintFlagDescriptions(t *testing.T) {
	var buf strings.Builder
	PrintFlagDescriptions(&buf)
	out := buf.String()

	for _, d := range flagTable {
		if !strings.Contains(out, d.name) {
			t.Errorf("help output missing option %q", d.name)
		}
	}
	if !strings.Contains(out, EnvOptions) {
		t.Errorf("help output does not name %s", EnvOptions)
	}
}
