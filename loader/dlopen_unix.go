//go:build darwin || freebsd || linux || netbsd

package loader

import (
	"runtime"

	"github.com/ebitengine/purego"
)

func dlopen(path string) (uintptr, error) {
	// RTLD_GLOBAL so engine plugins can resolve symbols from the core libraries.
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

func dlsym(handle uintptr, name string) (uintptr, error) {
	return purego.Dlsym(handle, name)
}

func libraryFileName(library string) string {
	if runtime.GOOS == "darwin" {
		return "lib" + library + ".dylib"
	}
	return "lib" + library + ".so"
}
