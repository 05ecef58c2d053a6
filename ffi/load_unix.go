//go:build darwin || freebsd || linux || netbsd

package ffi

import (
	"fmt"

	"github.com/ebitengine/purego"

	"github.com/VanDung-dev/eric-go/loader"
)

// Load maps the API and toolkit libraries below home and binds every symbol.
// A missing required symbol is a load error; optional ones stay nil.
func Load(home string) (*Library, error) {
	api, err := loader.Open(loader.LibraryPath(home, loader.APISubdir, loader.APILibrary))
	if err != nil {
		return nil, err
	}
	if _, err := loader.Open(loader.LibraryPath(home, loader.ToolkitSubdir, loader.ToolkitLib)); err != nil {
		return nil, err
	}

	sym := &Symbols{}
	for _, s := range sym.table() {
		addr, err := api.Lookup(s.name)
		if err != nil {
			if s.required {
				return nil, &loader.LoadError{
					Path: api.Path(),
					Err:  fmt.Errorf("missing symbol %s: %w", s.name, err),
					Hint: "the installed ERiC release does not match this binding",
				}
			}
			continue
		}
		purego.RegisterFunc(s.fn, addr)
	}
	return NewLibrary(sym), nil
}
