package ffi

import (
	"runtime"
)

// Library is a bound ERiC engine. The zero value and a nil *Library fail closed.
type Library struct {
	sym *Symbols
}

// NewLibrary wraps an already bound symbol table.
func NewLibrary(sym *Symbols) *Library {
	return &Library{sym: sym}
}

func (l *Library) symbols() (*Symbols, int) {
	if l == nil || l.sym == nil {
		return nil, CodeLibraryNotLoaded
	}
	return l.sym, CodeOK
}

// Initialize calls EricInitialisiere.
func (l *Library) Initialize(pluginPath, logPath string) int {
	s, code := l.symbols()
	if code != CodeOK {
		return code
	}
	if s.EricInitialisiere == nil {
		return CodeSymbolMissing
	}
	return int(s.EricInitialisiere(pluginPath, logPath))
}

// Shutdown calls EricBeende.
func (l *Library) Shutdown() int {
	s, code := l.symbols()
	if code != CodeOK {
		return code
	}
	if s.EricBeende == nil {
		return CodeSymbolMissing
	}
	return int(s.EricBeende())
}

// Transaction carries the arguments of EricBearbeiteVorgang.
type Transaction struct {
	XML             string
	DatenartVersion string
	Flags           Flag
	Print           *PrintParameters
	Crypto          *CryptoParameters
	// TransferHandle is passed by reference; the engine may update it.
	TransferHandle *uint32
	Response       *Buffer
	ServerResponse *Buffer
}

// ProcessTransaction calls EricBearbeiteVorgang. Response is required;
// ServerResponse may be nil.
func (l *Library) ProcessTransaction(tx *Transaction) int {
	s, code := l.symbols()
	if code != CodeOK {
		return code
	}
	if s.EricBearbeiteVorgang == nil {
		return CodeSymbolMissing
	}
	if tx == nil || !tx.Response.valid(l) {
		return CodeInvalidHandle
	}
	var server uintptr
	if tx.ServerResponse != nil {
		if !tx.ServerResponse.valid(l) {
			return CodeInvalidHandle
		}
		server = tx.ServerResponse.handle
	}

	var pinner runtime.Pinner
	defer pinner.Unpin()

	druck, code := encodePrint(tx.Print, &pinner)
	if code != CodeOK {
		return code
	}
	crypto, code := encodeCrypto(tx.Crypto, &pinner)
	if code != CodeOK {
		return code
	}

	rc := s.EricBearbeiteVorgang(
		tx.XML,
		tx.DatenartVersion,
		uint32(tx.Flags),
		druck,
		crypto,
		tx.TransferHandle,
		tx.Response.handle,
		server,
	)
	runtime.KeepAlive(tx)
	return int(rc)
}

// CheckXML calls EricCheckXML. The engine writes error details to errBuf.
func (l *Library) CheckXML(xml, datenartVersion string, errBuf *Buffer) int {
	s, code := l.symbols()
	if code != CodeOK {
		return code
	}
	if s.EricCheckXML == nil {
		return CodeSymbolMissing
	}
	if !errBuf.valid(l) {
		return CodeInvalidHandle
	}
	return int(s.EricCheckXML(xml, datenartVersion, errBuf.handle))
}

// ErrorText calls EricHoleFehlerText, writing the text for code into buf.
func (l *Library) ErrorText(code int, buf *Buffer) int {
	s, rc := l.symbols()
	if rc != CodeOK {
		return rc
	}
	if s.EricHoleFehlerText == nil {
		return CodeSymbolMissing
	}
	if !buf.valid(l) {
		return CodeInvalidHandle
	}
	return int(s.EricHoleFehlerText(int32(code), buf.handle))
}

// ErrorMessage fetches the engine's text for code. It reports false when the
// text cannot be obtained, e.g. before initialization.
func (l *Library) ErrorMessage(code int) (string, bool) {
	buf, rc := l.NewBuffer()
	if rc != CodeOK {
		return "", false
	}
	defer buf.Close()

	if l.ErrorText(code, buf) != CodeOK {
		return "", false
	}
	text := buf.String()
	return text, text != ""
}

// Version calls EricVersion, writing the engine's version XML into buf.
func (l *Library) Version(buf *Buffer) int {
	s, code := l.symbols()
	if code != CodeOK {
		return code
	}
	if s.EricVersion == nil {
		return CodeSymbolMissing
	}
	if !buf.valid(l) {
		return CodeInvalidHandle
	}
	return int(s.EricVersion(buf.handle))
}
