// Package loader locates an ERiC installation and maps its shared libraries
// into the process.
//
// ERiC binaries are never bundled. The installation root comes from an explicit
// argument or the ERIC_HOME environment variable, and its layout is fixed by the
// vendor: the API library under lib/ and the toolkit under erictoolkit/.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// EnvHome names the installation root.
const EnvHome = "ERIC_HOME"

// Installation layout.
const (
	APISubdir     = "lib"
	ToolkitSubdir = "erictoolkit"
	APILibrary    = "ericapi"
	ToolkitLib    = "erictoolkit"
)

// LoadError reports a missing installation or a library that could not be opened.
// It is never retryable.
type LoadError struct {
	Path string
	Err  error
	Hint string
}

func (e *LoadError) Error() string {
	var b strings.Builder
	b.WriteString("eric: load")
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, " (%s)", e.Hint)
	}
	return b.String()
}

func (e *LoadError) Unwrap() error { return e.Err }

// ResolveHome returns the installation root: explicit if non-empty, else
// $ERIC_HOME. The result is absolute with a leading ~ expanded.
func ResolveHome(explicit string) (string, error) {
	home := strings.TrimSpace(explicit)
	if home == "" {
		home = strings.TrimSpace(os.Getenv(EnvHome))
	}
	if home == "" {
		return "", &LoadError{
			Path: "$" + EnvHome,
			Err:  fmt.Errorf("%s is not set and no installation root was given", EnvHome),
			Hint: "install the ERiC distribution separately and point ERIC_HOME at its root, e.g. /opt/eric/Linux-x86_64",
		}
	}
	if home == "~" || strings.HasPrefix(home, "~/") {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return "", &LoadError{Path: home, Err: err}
		}
		home = filepath.Join(userHome, strings.TrimPrefix(home, "~"))
	}
	abs, err := filepath.Abs(home)
	if err != nil {
		return "", &LoadError{Path: home, Err: err}
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return abs, nil
}

// LibraryPath returns the platform file name of library inside home/subdir.
func LibraryPath(home, subdir, library string) string {
	return filepath.Join(home, subdir, libraryFileName(library))
}

// SharedLibrary is a dynamic library mapped into the process.
type SharedLibrary struct {
	path   string
	handle uintptr
}

// Path returns the file the library was opened from.
func (l *SharedLibrary) Path() string { return l.path }

// Lookup returns the address of the named export.
func (l *SharedLibrary) Lookup(name string) (uintptr, error) {
	if l == nil || l.handle == 0 {
		return 0, fmt.Errorf("lookup %s: library not open", name)
	}
	return dlsym(l.handle, name)
}

var (
	cacheMu sync.Mutex
	cache   = map[string]*SharedLibrary{}
)

// Open maps the library at path. Libraries stay mapped for the lifetime of the
// process; opening the same path twice returns the cached handle.
func Open(path string) (*SharedLibrary, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if lib, ok := cache[path]; ok {
		return lib, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{
			Path: path,
			Err:  fmt.Errorf("library does not exist: %w", err),
			Hint: "set ERIC_HOME to the root of the ERiC distribution",
		}
	}
	handle, err := dlopen(path)
	if err != nil {
		return nil, &LoadError{
			Path: path,
			Err:  err,
			Hint: "ensure dependent libraries (libericxerces, plugins) are available",
		}
	}
	lib := &SharedLibrary{path: path, handle: handle}
	cache[path] = lib
	return lib, nil
}
