// options.go loads project-level runtime options from .leakdetector.yml.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// projectConfigName is the per-project configuration file, looked up next
// to the project's go.mod.
const projectConfigName = ".leakdetector.yml"

// projectConfig mirrors the .leakdetector.yml layout:
//
//	options:
//	  verbosity: 1
//	  exitcode: 42
//	  detect_leaks: true
type projectConfig struct {
	Options map[string]string `yaml:"options"`
}

// loadProjectOptions reads runtime options from the project's
// .leakdetector.yml, walking up from startDir to find it.
//
// Returns the options as "key=value" strings in deterministic (sorted)
// order. A missing file means no project options; a malformed file prints
// a warning and is otherwise ignored so a broken config never blocks a
// build.
func loadProjectOptions(startDir string) []string {
	path := findProjectConfig(startDir)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot read %s: %v\n", path, err)
		return nil
	}

	var pc projectConfig
	if err := yaml.Unmarshal(data, &pc); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot parse %s: %v\n", path, err)
		return nil
	}

	keys := make([]string, 0, len(pc.Options))
	for k := range pc.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	opts := make([]string, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, k+"="+pc.Options[k])
	}
	return opts
}

// findProjectConfig walks up from startDir looking for .leakdetector.yml.
// The search stops at the directory holding go.mod: the config belongs to
// a project, not to arbitrary parent directories.
func findProjectConfig(startDir string) string {
	dir := startDir
	for {
		cfgPath := filepath.Join(dir, projectConfigName)
		if _, err := os.Stat(cfgPath); err == nil {
			return cfgPath
		}

		// go.mod marks the project boundary
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return ""
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
