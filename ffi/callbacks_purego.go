//go:build (darwin || linux) && (amd64 || arm64)

package ffi

import (
	"sync"

	"github.com/ebitengine/purego"
)

// purego callbacks can never be freed, so each trampoline is created once.
var (
	logOnce      sync.Once
	logFn        uintptr
	progressOnce sync.Once
	progressFn   uintptr
)

func logTrampoline() (uintptr, bool) {
	logOnce.Do(func() {
		logFn = purego.NewCallback(func(kategorie *byte, loglevel int32, nachricht *byte, _ uintptr) {
			dispatchLog(kategorie, loglevel, nachricht)
		})
	})
	return logFn, true
}

func progressTrampoline() (uintptr, bool) {
	progressOnce.Do(func() {
		progressFn = purego.NewCallback(func(id, pos, max uint32, _ uintptr) {
			dispatchProgress(id, pos, max)
		})
	})
	return progressFn, true
}
