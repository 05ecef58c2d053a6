// Package ffitest provides an in-process stand-in for the ERiC engine.
//
// Engine implements ffi.Symbols in Go and decodes the parameter structs at the
// byte offsets the native engine would read them from, so tests exercise the
// same layouts without an ERiC installation.
package ffitest

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sync"
	"unsafe"

	"github.com/VanDung-dev/eric-go/ffi"
)

// Codes returned by the fake for credential failures. They lie in the engine's
// positive code range so they reach callers as *ffi.EngineError.
const (
	CodeCertificateNotFound = 610201101
	CodePINWrong            = 610201102
	CodeNotInitialized      = 610001901
	CodeCertificateInvalid  = 610201016
)

// Call records one EricBearbeiteVorgang invocation.
type Call struct {
	XML               string
	DatenartVersion   string
	Flags             ffi.Flag
	PrintVersion      uint32
	Preview           bool
	PDFName           string
	CryptoVersion     uint32
	CertificateHandle uint32
	PIN               string
	PINIsNull         bool
	HadTransferHandle bool
	HadServerResponse bool
}

// Engine is a fake engine. Configure the exported fields before handing out
// Symbols; inspect counters afterwards.
type Engine struct {
	mu sync.Mutex

	// DatenartVersions accepted by the fake. Others fail with CodeGlobalUnknown.
	DatenartVersions map[string]bool
	// Certificates maps keystore paths to their PIN.
	Certificates map[string]string
	// ErrorTexts overrides the text returned for a code.
	ErrorTexts map[int]string
	// InitCode and ShutdownCode are returned by EricInitialisiere/EricBeende.
	InitCode     int32
	ShutdownCode int32
	// NextTransferHandle is written through the transfer handle pointer on send.
	NextTransferHandle uint32
	VersionText        string

	initialized bool
	pluginPath  string
	logPath     string

	buffers    map[uintptr][]byte
	nextBuffer uintptr
	created    int
	freed      int
	doubleFree int

	certs      map[uint32]string
	nextCert   uint32
	certOpened int
	certClosed int

	initCalls      int
	shutdownCalls  int
	calls          []Call
	logCallbacks   int
	logCallbackSet bool
	progressCalls  int
}

// New returns a fake that accepts the datenartVersion "Test_1" and a
// certificate "/certs/test.pfx" with PIN "123456".
func New() *Engine {
	return &Engine{
		DatenartVersions:   map[string]bool{"Test_1": true},
		Certificates:       map[string]string{"/certs/test.pfx": "123456"},
		ErrorTexts:         map[int]string{},
		NextTransferHandle: 42,
		VersionText:        "<EricVersion><Bibliothek><Name>libericapi</Name><Version>41.6.2.0</Version></Bibliothek></EricVersion>",
		buffers:            map[uintptr][]byte{},
		certs:              map[uint32]string{},
	}
}

// Library returns an ffi.Library bound to the fake.
func (e *Engine) Library() *ffi.Library {
	return ffi.NewLibrary(e.Symbols())
}

// Symbols returns the fake's symbol table.
func (e *Engine) Symbols() *ffi.Symbols {
	return &ffi.Symbols{
		EricInitialisiere:            e.initialise,
		EricBeende:                   e.beende,
		EricBearbeiteVorgang:         e.bearbeiteVorgang,
		EricCheckXML:                 e.checkXML,
		EricHoleFehlerText:           e.holeFehlerText,
		EricRueckgabepufferErzeugen:  e.pufferErzeugen,
		EricRueckgabepufferFreigeben: e.pufferFreigeben,
		EricRueckgabepufferInhalt:    e.pufferInhalt,
		EricRueckgabepufferLaenge:    e.pufferLaenge,
		EricGetHandleToCertificate:   e.getCertificate,
		EricCloseHandleToCertificate: e.closeCertificate,
		EricRegistriereLogCallback: func(fn uintptr, _ uint32, _ uintptr) int32 {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.logCallbacks++
			e.logCallbackSet = fn != 0
			return ffi.CodeOK
		},
		EricRegistriereGlobalenFortschrittCallback: func(fn uintptr, _ uintptr) int32 {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.progressCalls++
			return ffi.CodeOK
		},
		EricVersion: func(puffer uintptr) int32 {
			e.mu.Lock()
			defer e.mu.Unlock()
			return e.write(puffer, e.VersionText)
		},
	}
}

func (e *Engine) initialise(pluginPath, logPath string) int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initCalls++
	if e.InitCode != ffi.CodeOK {
		return e.InitCode
	}
	if e.initialized {
		return ffi.CodeGlobalUnknown
	}
	e.initialized = true
	e.pluginPath = pluginPath
	e.logPath = logPath
	return ffi.CodeOK
}

func (e *Engine) beende() int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shutdownCalls++
	if e.ShutdownCode != ffi.CodeOK {
		return e.ShutdownCode
	}
	if !e.initialized {
		return CodeNotInitialized
	}
	e.initialized = false
	return ffi.CodeOK
}

func (e *Engine) bearbeiteVorgang(datenpuffer, datenartVersion string, flags uint32, druck, crypto unsafe.Pointer, transfer *uint32, rueckgabe, serverantwort uintptr) int32 {
	e.mu.Lock()
	defer e.mu.Unlock()

	call := Call{
		XML:               datenpuffer,
		DatenartVersion:   datenartVersion,
		Flags:             ffi.Flag(flags),
		HadTransferHandle: transfer != nil,
		HadServerResponse: serverantwort != 0,
	}
	if druck != nil {
		call.PrintVersion = *(*uint32)(druck)
		call.Preview = *(*uint32)(unsafe.Add(druck, 4)) != 0
		call.PDFName = cString(*(**byte)(unsafe.Add(druck, 16)))
	}
	if crypto != nil {
		call.CryptoVersion = *(*uint32)(crypto)
		call.CertificateHandle = *(*uint32)(unsafe.Add(crypto, 4))
		pin := *(**byte)(unsafe.Add(crypto, 8))
		call.PINIsNull = pin == nil
		call.PIN = cString(pin)
	}
	e.calls = append(e.calls, call)

	if !e.initialized {
		return CodeNotInitialized
	}
	if _, ok := e.buffers[rueckgabe]; !ok {
		return ffi.CodeGlobalUnknown
	}
	if !e.DatenartVersions[datenartVersion] {
		e.write(rueckgabe, fmt.Sprintf("<EricBearbeiteVorgang><Fehler>unknown datenartVersion %s</Fehler></EricBearbeiteVorgang>", datenartVersion))
		return ffi.CodeGlobalUnknown
	}
	if err := wellFormed(datenpuffer); err != nil {
		e.write(rueckgabe, fmt.Sprintf("<EricBearbeiteVorgang><Fehler>%s</Fehler></EricBearbeiteVorgang>", escape(err.Error())))
		return ffi.CodeGlobalPruefFehler
	}
	if ffi.Flag(flags).Has(ffi.FlagSend) {
		if crypto == nil {
			return ffi.CodeGlobalUnknown
		}
		path, ok := e.certs[call.CertificateHandle]
		if !ok {
			return CodeCertificateInvalid
		}
		if e.Certificates[path] != call.PIN {
			return CodePINWrong
		}
		if transfer != nil {
			*transfer = e.NextTransferHandle
		}
		if serverantwort != 0 {
			e.write(serverantwort, "<Elster><TransferHeader><Ergebnis>ok</Ergebnis></TransferHeader></Elster>")
		}
	}
	e.write(rueckgabe, "<EricBearbeiteVorgang><Erfolg><Telenummer>fake</Telenummer></Erfolg></EricBearbeiteVorgang>")
	return ffi.CodeOK
}

func (e *Engine) checkXML(doc, datenartVersion string, fehlertext uintptr) int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.buffers[fehlertext]; !ok {
		return ffi.CodeGlobalUnknown
	}
	if !e.DatenartVersions[datenartVersion] {
		e.write(fehlertext, "unknown datenartVersion "+datenartVersion)
		return ffi.CodeGlobalUnknown
	}
	if err := wellFormed(doc); err != nil {
		e.write(fehlertext, err.Error())
		return ffi.CodeGlobalPruefFehler
	}
	return ffi.CodeOK
}

func (e *Engine) holeFehlerText(code int32, puffer uintptr) int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return CodeNotInitialized
	}
	text, ok := e.ErrorTexts[int(code)]
	if !ok {
		text = fmt.Sprintf("fake engine error %d", code)
	}
	return e.write(puffer, text)
}

func (e *Engine) pufferErzeugen() uintptr {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextBuffer++
	e.buffers[e.nextBuffer] = []byte{0}
	e.created++
	return e.nextBuffer
}

func (e *Engine) pufferFreigeben(h uintptr) int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.buffers[h]; !ok {
		e.doubleFree++
		return ffi.CodeGlobalUnknown
	}
	delete(e.buffers, h)
	e.freed++
	return ffi.CodeOK
}

func (e *Engine) pufferInhalt(h uintptr) *byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.buffers[h]
	if !ok {
		return nil
	}
	return &b[0]
}

func (e *Engine) pufferLaenge(h uintptr) uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.buffers[h]
	if !ok {
		return 0
	}
	return uint32(len(b) - 1)
}

func (e *Engine) getCertificate(h *uint32, pinSupport *uint32, path string) int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.Certificates[path]; !ok {
		return CodeCertificateNotFound
	}
	e.nextCert++
	e.certs[e.nextCert] = path
	e.certOpened++
	*h = e.nextCert
	*pinSupport = 1
	return ffi.CodeOK
}

func (e *Engine) closeCertificate(h uint32) int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.certs[h]; !ok {
		return ffi.CodeGlobalUnknown
	}
	delete(e.certs, h)
	e.certClosed++
	return ffi.CodeOK
}

// write replaces a buffer's content. Callers hold e.mu.
func (e *Engine) write(h uintptr, text string) int32 {
	if _, ok := e.buffers[h]; !ok {
		return ffi.CodeGlobalUnknown
	}
	b := make([]byte, len(text)+1)
	copy(b, text)
	e.buffers[h] = b
	return ffi.CodeOK
}

// Initialized reports whether the fake is between initialize and shutdown.
func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

// InitCalls returns how often EricInitialisiere was called.
func (e *Engine) InitCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initCalls
}

// ShutdownCalls returns how often EricBeende was called.
func (e *Engine) ShutdownCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdownCalls
}

// Paths returns the plugin and log paths passed to EricInitialisiere.
func (e *Engine) Paths() (pluginPath, logPath string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pluginPath, e.logPath
}

// OpenBuffers returns the number of buffers created and not yet freed.
func (e *Engine) OpenBuffers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.buffers)
}

// BuffersCreated returns the total number of buffers created.
func (e *Engine) BuffersCreated() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.created
}

// DoubleFrees returns the number of frees on unknown or released handles.
func (e *Engine) DoubleFrees() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doubleFree
}

// OpenCertificates returns the number of certificate handles not yet closed.
func (e *Engine) OpenCertificates() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.certs)
}

// CertificatesOpened returns the total number of certificate handles issued.
func (e *Engine) CertificatesOpened() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.certOpened
}

// LogCallbackRegistrations returns how often a log callback was registered.
func (e *Engine) LogCallbackRegistrations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.logCallbacks
}

// LogCallbackSet reports whether a log callback is currently registered.
func (e *Engine) LogCallbackSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.logCallbackSet
}

// Calls returns the recorded EricBearbeiteVorgang invocations.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.calls))
	copy(out, e.calls)
	return out
}

// LastCall returns the most recent EricBearbeiteVorgang invocation.
func (e *Engine) LastCall() (Call, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.calls) == 0 {
		return Call{}, false
	}
	return e.calls[len(e.calls)-1], true
}

func wellFormed(doc string) error {
	if doc == "" {
		return fmt.Errorf("empty document")
	}
	dec := xml.NewDecoder(bytes.NewReader([]byte(doc)))
	sawElement := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			if !sawElement {
				return fmt.Errorf("no root element")
			}
			return nil
		}
		if err != nil {
			return err
		}
		if _, ok := tok.(xml.StartElement); ok {
			sawElement = true
		}
	}
}

func escape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func cString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}
