// Package ffi provides the low-level binding to the ERiC engine.
//
// This package contains:
//   - the exported native entry points as a purego symbol table (symbols.go)
//   - return buffer and certificate handles that release exactly once
//   - the versioned print/crypto parameter struct layouts (params.go)
//   - log and progress callback trampolines (callbacks.go)
//   - return code translation (errors.go)
//
// Every method returns the engine's raw return code. A nil *Library or a missing
// symbol fails closed with one of the negative wrapper codes instead of calling
// into native code. Conversion of codes into Go errors happens only in Check.
//
// The engine is not documented as re-entrant. Callers must serialize all calls
// against one Library and keep a single initialized session per process.
package ffi
