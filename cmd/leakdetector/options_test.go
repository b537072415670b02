package main

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadProjectOptions verifies yaml options load in sorted order.
func TestLoadProjectOptions(t *testing.T) {
	dir := t.TempDir()
	yml := `options:
  verbosity: "1"
  exitcode: "42"
  detect_leaks: "true"
`
	if err := writeFile(dir, projectConfigName, yml); err != nil {
		t.Fatal(err)
	}

	got := loadProjectOptions(dir)
	want := []string{"detect_leaks=true", "exitcode=42", "verbosity=1"}
	if !equalStrings(got, want) {
		t.Errorf("loadProjectOptions = %v, want %v", got, want)
	}
}

// TestLoadProjectOptions_Missing verifies the no-config case.
func TestLoadProjectOptions_Missing(t *testing.T) {
	dir := t.TempDir()
	// go.mod bounds the search so it cannot escape the temp dir.
	if err := writeFile(dir, "go.mod", "module example.com/x\n"); err != nil {
		t.Fatal(err)
	}

	if got := loadProjectOptions(dir); got != nil {
		t.Errorf("loadProjectOptions = %v for missing config, want nil", got)
	}
}

// TestLoadProjectOptions_Malformed verifies broken yaml degrades to no
// options instead of failing the build.
func TestLoadProjectOptions_Malformed(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(dir, projectConfigName, "options: [not a map\n"); err != nil {
		t.Fatal(err)
	}

	if got := loadProjectOptions(dir); got != nil {
		t.Errorf("loadProjectOptions = %v for malformed config, want nil", got)
	}
}

// TestFindProjectConfig_WalksUp verifies the config is found from a
// subdirectory and the search stops at the go.mod boundary.
func TestFindProjectConfig_WalksUp(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "cmd", "app")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(root, projectConfigName, "options: {}\n"); err != nil {
		t.Fatal(err)
	}

	if got := findProjectConfig(sub); got != filepath.Join(root, projectConfigName) {
		t.Errorf("findProjectConfig = %q, want the root config", got)
	}

	// A go.mod between the subdir and the config hides it: configs do not
	// cross project boundaries.
	nested := filepath.Join(root, "nested")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(nested, "go.mod", "module example.com/nested\n"); err != nil {
		t.Fatal(err)
	}
	if got := findProjectConfig(nested); got != "" {
		t.Errorf("findProjectConfig = %q across a go.mod boundary, want empty", got)
	}
}

// TestOptionsString verifies command-line options append after project
// options so the command line wins during parsing.
func TestOptionsString(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(dir, projectConfigName, "options:\n  exitcode: \"5\"\n"); err != nil {
		t.Fatal(err)
	}

	c := &buildConfig{workDir: dir, options: []string{"exitcode=9"}}
	if got := c.optionsString(); got != "exitcode=5 exitcode=9" {
		t.Errorf("optionsString = %q, want project options first", got)
	}
}
