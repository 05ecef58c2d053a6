//go:build !(darwin || freebsd || linux || netbsd)

package ffi

import (
	"fmt"
	"runtime"

	"github.com/VanDung-dev/eric-go/loader"
)

// Load is unavailable on platforms without dlopen.
func Load(home string) (*Library, error) {
	return nil, &loader.LoadError{
		Path: home,
		Err:  fmt.Errorf("dynamic loading is not supported on %s", runtime.GOOS),
	}
}
