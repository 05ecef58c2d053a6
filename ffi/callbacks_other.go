//go:build !((darwin || linux) && (amd64 || arm64))

package ffi

func logTrampoline() (uintptr, bool) { return 0, false }

func progressTrampoline() (uintptr, bool) { return 0, false }
