// Package versions maps ERiC releases to the parameter struct layouts they expect.
//
// The engine's print and crypto parameter structs carry a version field and their
// layout changes between releases. Only releases listed here have been checked
// against the installed headers; everything else is reported as unknown.
package versions

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Config describes the struct versions a given ERiC release expects.
type Config struct {
	Version            string
	PrintParamVersion  uint32
	CryptoParamVersion uint32
}

var supported = []string{
	"41.6.2.0",
}

var configs = map[string]Config{
	"41.6.2.0": {
		Version:            "41.6.2.0",
		PrintParamVersion:  4,
		CryptoParamVersion: 3,
	},
}

// Default is the release assumed when neither an explicit version nor a
// detectable one is available.
var Default = supported[0]

// Lookup returns the configuration for version. The second result is false for
// releases that are not in the registry; no fallback is applied here.
func Lookup(version string) (Config, bool) {
	cfg, ok := configs[version]
	return cfg, ok
}

// Supported returns the supported release strings in preference order.
func Supported() []string {
	out := make([]string, len(supported))
	copy(out, supported)
	return out
}

// IsSupported reports whether version is in the registry.
func IsSupported(version string) bool {
	_, ok := configs[version]
	return ok
}

var versionPattern = regexp.MustCompile(`(\d+\.\d+\.\d+\.\d+)`)

// Detect extracts a release string from an installation path such as
// /opt/ERiC-41.6.2.0/Linux-x86_64 or /opt/eric/41.6.2.0/Linux-x86_64.
// Path components are checked from the leaf upwards.
func Detect(path string) (string, bool) {
	if strings.TrimSpace(path) == "" {
		return "", false
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	current := filepath.Clean(path)
	for {
		parent := filepath.Dir(current)
		if parent == current {
			return "", false
		}
		if m := versionPattern.FindString(filepath.Base(current)); m != "" {
			return m, true
		}
		current = parent
	}
}
