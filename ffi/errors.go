package ffi

import (
	"errors"
	"fmt"
)

// Sentinels for wrapper-local codes. An *EngineError carrying one of these codes
// unwraps to the matching sentinel.
var (
	ErrLibraryNotLoaded     = errors.New("eric library not loaded")
	ErrSymbolMissing        = errors.New("eric symbol missing")
	ErrInvalidHandle        = errors.New("invalid or released eric handle")
	ErrUnsupportedLayout    = errors.New("unsupported parameter struct version")
	ErrCallbacksUnsupported = errors.New("native callbacks unsupported on this platform")
)

var localErrors = map[int]error{
	CodeLibraryNotLoaded:     ErrLibraryNotLoaded,
	CodeSymbolMissing:        ErrSymbolMissing,
	CodeInvalidHandle:        ErrInvalidHandle,
	CodeUnsupportedLayout:    ErrUnsupportedLayout,
	CodeCallbacksUnsupported: ErrCallbacksUnsupported,
}

// MessageSource looks up the human-readable text for a return code.
type MessageSource interface {
	ErrorMessage(code int) (string, bool)
}

// EngineError is a non-zero return code from a native call.
type EngineError struct {
	Op      string
	Code    int
	Message string
}

func (e *EngineError) Error() string {
	msg := fmt.Sprintf("eric: %s: code %d", e.Op, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *EngineError) Unwrap() error { return localErrors[e.Code] }

// Check converts a return code into an error. Zero is success; any other code
// yields an *EngineError. The message is taken from src when it can provide one,
// otherwise the error carries the code alone.
func Check(code int, op string, src MessageSource) error {
	if code == CodeOK {
		return nil
	}
	e := &EngineError{Op: op, Code: code}
	if local, ok := localErrors[code]; ok {
		e.Message = local.Error()
		return e
	}
	if src != nil {
		if text, ok := src.ErrorMessage(code); ok {
			e.Message = text
		}
	}
	return e
}

// CodeOf extracts the return code from an *EngineError in err's chain.
func CodeOf(err error) (int, bool) {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code, true
	}
	return 0, false
}
