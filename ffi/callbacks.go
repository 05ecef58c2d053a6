package ffi

import (
	"sync/atomic"
	"unsafe"
)

// LogSink receives engine log lines.
type LogSink func(category string, level LogLevel, message string)

// ProgressSink receives engine progress reports.
type ProgressSink func(id, position, max uint32)

// The engine keeps one callback of each kind per process, so the sinks are
// process-wide as well.
var (
	logSink      atomic.Pointer[LogSink]
	progressSink atomic.Pointer[ProgressSink]
)

// RegisterLogCallback calls EricRegistriereLogCallback. A nil sink unregisters.
func (l *Library) RegisterLogCallback(sink LogSink, writeLogFile bool) int {
	s, code := l.symbols()
	if code != CodeOK {
		return code
	}
	if s.EricRegistriereLogCallback == nil {
		return CodeSymbolMissing
	}
	if sink == nil {
		logSink.Store(nil)
		return int(s.EricRegistriereLogCallback(0, boolFlag(writeLogFile), 0))
	}
	fn, ok := logTrampoline()
	if !ok {
		return CodeCallbacksUnsupported
	}
	logSink.Store(&sink)
	return int(s.EricRegistriereLogCallback(fn, boolFlag(writeLogFile), 0))
}

// RegisterProgressCallback calls EricRegistriereGlobalenFortschrittCallback.
// A nil sink unregisters.
func (l *Library) RegisterProgressCallback(sink ProgressSink) int {
	s, code := l.symbols()
	if code != CodeOK {
		return code
	}
	if s.EricRegistriereGlobalenFortschrittCallback == nil {
		return CodeSymbolMissing
	}
	if sink == nil {
		progressSink.Store(nil)
		return int(s.EricRegistriereGlobalenFortschrittCallback(0, 0))
	}
	fn, ok := progressTrampoline()
	if !ok {
		return CodeCallbacksUnsupported
	}
	progressSink.Store(&sink)
	return int(s.EricRegistriereGlobalenFortschrittCallback(fn, 0))
}

func dispatchLog(category *byte, level int32, message *byte) {
	if p := logSink.Load(); p != nil {
		(*p)(goString(category), LogLevel(level), goString(message))
	}
}

func dispatchProgress(id, position, max uint32) {
	if p := progressSink.Load(); p != nil {
		(*p)(id, position, max)
	}
}

// goString copies a NUL-terminated C string.
func goString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}
