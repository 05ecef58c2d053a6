package ffi

import (
	"errors"
	"testing"
)

type staticMessages map[int]string

func (m staticMessages) ErrorMessage(code int) (string, bool) {
	text, ok := m[code]
	return text, ok
}

func TestCheckOK(t *testing.T) {
	if err := Check(CodeOK, "EricInitialisiere", nil); err != nil {
		t.Fatalf("Expected nil error for CodeOK, got %v", err)
	}
}

func TestCheckEngineError(t *testing.T) {
	err := Check(CodeGlobalUnknown, "EricBearbeiteVorgang", staticMessages{CodeGlobalUnknown: "boom"})
	if err == nil {
		t.Fatal("Expected error for non-zero code")
	}

	var ee *EngineError
	if !errors.As(err, &ee) {
		t.Fatalf("Expected *EngineError, got %T", err)
	}
	if ee.Code != CodeGlobalUnknown {
		t.Errorf("Expected code %d, got %d", CodeGlobalUnknown, ee.Code)
	}
	if ee.Message != "boom" {
		t.Errorf("Expected message 'boom', got %q", ee.Message)
	}
	if ee.Op != "EricBearbeiteVorgang" {
		t.Errorf("Expected op EricBearbeiteVorgang, got %s", ee.Op)
	}
}

func TestCheckWithoutMessage(t *testing.T) {
	err := Check(CodeGlobalPruefFehler, "EricCheckXML", staticMessages{})
	code, ok := CodeOf(err)
	if !ok || code != CodeGlobalPruefFehler {
		t.Fatalf("Expected code %d, got %d (ok=%v)", CodeGlobalPruefFehler, code, ok)
	}
	var ee *EngineError
	errors.As(err, &ee)
	if ee.Message != "" {
		t.Errorf("Expected empty message, got %q", ee.Message)
	}

	if err := Check(CodeGlobalPruefFehler, "EricCheckXML", nil); err == nil {
		t.Error("Expected error with nil message source")
	}
}

func TestCheckLocalCodesUnwrap(t *testing.T) {
	cases := map[int]error{
		CodeLibraryNotLoaded:     ErrLibraryNotLoaded,
		CodeSymbolMissing:        ErrSymbolMissing,
		CodeInvalidHandle:        ErrInvalidHandle,
		CodeUnsupportedLayout:    ErrUnsupportedLayout,
		CodeCallbacksUnsupported: ErrCallbacksUnsupported,
	}
	for code, sentinel := range cases {
		err := Check(code, "op", staticMessages{code: "should not be used"})
		if !errors.Is(err, sentinel) {
			t.Errorf("Code %d: expected errors.Is(%v)", code, sentinel)
		}
		var ee *EngineError
		errors.As(err, &ee)
		if ee.Message != sentinel.Error() {
			t.Errorf("Code %d: expected local message, got %q", code, ee.Message)
		}
	}
}

func TestCodeOfNonEngineError(t *testing.T) {
	if _, ok := CodeOf(errors.New("plain")); ok {
		t.Error("Expected ok=false for a plain error")
	}
}

func TestNilLibraryFailsClosed(t *testing.T) {
	var l *Library

	if code := l.Initialize("/opt/eric", "/tmp"); code != CodeLibraryNotLoaded {
		t.Errorf("Initialize: expected %d, got %d", CodeLibraryNotLoaded, code)
	}
	if code := l.Shutdown(); code != CodeLibraryNotLoaded {
		t.Errorf("Shutdown: expected %d, got %d", CodeLibraryNotLoaded, code)
	}
	if _, code := l.NewBuffer(); code != CodeLibraryNotLoaded {
		t.Errorf("NewBuffer: expected %d, got %d", CodeLibraryNotLoaded, code)
	}
	if _, code := l.OpenCertificate("/certs/x.pfx"); code != CodeLibraryNotLoaded {
		t.Errorf("OpenCertificate: expected %d, got %d", CodeLibraryNotLoaded, code)
	}
	if code := l.ProcessTransaction(&Transaction{}); code != CodeLibraryNotLoaded {
		t.Errorf("ProcessTransaction: expected %d, got %d", CodeLibraryNotLoaded, code)
	}
	if code := l.RegisterLogCallback(nil, false); code != CodeLibraryNotLoaded {
		t.Errorf("RegisterLogCallback: expected %d, got %d", CodeLibraryNotLoaded, code)
	}
	if _, ok := l.ErrorMessage(CodeGlobalUnknown); ok {
		t.Error("ErrorMessage: expected ok=false")
	}
}

func TestMissingSymbolFailsClosed(t *testing.T) {
	l := NewLibrary(&Symbols{})

	if code := l.Initialize("/opt/eric", "/tmp"); code != CodeSymbolMissing {
		t.Errorf("Expected %d, got %d", CodeSymbolMissing, code)
	}
	if code := l.Version(nil); code != CodeSymbolMissing {
		t.Errorf("Expected %d, got %d", CodeSymbolMissing, code)
	}
}
