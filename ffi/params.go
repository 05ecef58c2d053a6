package ffi

import (
	"runtime"
	"unsafe"
)

// PrintParameters describe PDF output. Version selects the struct layout and
// comes from the release's versions.Config.
type PrintParameters struct {
	Version uint32
	Preview bool
	Duplex  bool
	PDFName string
	Footer  string
}

// CryptoParameters carry the signing credential. An empty PIN is passed as NULL.
type CryptoParameters struct {
	Version     uint32
	Certificate *Certificate
	PIN         string
}

// eric_druck_parameter_t, version 4.
type druckParameterV4 struct {
	version                  uint32
	vorschau                 uint32
	ersteSeite               uint32
	duplexDruck              uint32
	pdfName                  *byte
	fussText                 *byte
	pdfCallback              uintptr
	pdfCallbackBenutzerdaten uintptr
}

// eric_verschluesselungs_parameter_t, version 3.
type verschluesselungsParameterV3 struct {
	version          uint32
	zertifikatHandle uint32
	pin              *byte
	abrufCode        *byte
}

// cString returns a pinned NUL-terminated copy of s, or nil for "".
func cString(s string, pinner *runtime.Pinner) *byte {
	if s == "" {
		return nil
	}
	b := make([]byte, len(s)+1)
	copy(b, s)
	pinner.Pin(&b[0])
	return &b[0]
}

func boolFlag(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

func encodePrint(p *PrintParameters, pinner *runtime.Pinner) (unsafe.Pointer, int) {
	if p == nil {
		return nil, CodeOK
	}
	switch p.Version {
	case 4:
		d := &druckParameterV4{
			version:     4,
			vorschau:    boolFlag(p.Preview),
			duplexDruck: boolFlag(p.Duplex),
			pdfName:     cString(p.PDFName, pinner),
			fussText:    cString(p.Footer, pinner),
		}
		pinner.Pin(d)
		return unsafe.Pointer(d), CodeOK
	default:
		return nil, CodeUnsupportedLayout
	}
}

func encodeCrypto(p *CryptoParameters, pinner *runtime.Pinner) (unsafe.Pointer, int) {
	if p == nil {
		return nil, CodeOK
	}
	if p.Certificate == nil || p.Certificate.closed {
		return nil, CodeInvalidHandle
	}
	switch p.Version {
	case 3:
		v := &verschluesselungsParameterV3{
			version:          3,
			zertifikatHandle: p.Certificate.handle,
			pin:              cString(p.PIN, pinner),
		}
		pinner.Pin(v)
		return unsafe.Pointer(v), CodeOK
	default:
		return nil, CodeUnsupportedLayout
	}
}
