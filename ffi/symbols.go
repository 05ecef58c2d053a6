package ffi

import "unsafe"

// Symbols holds the native entry points. Field names match the exported C
// symbols; argument order and types follow ericapi.h.
type Symbols struct {
	EricInitialisiere            func(pluginPfad, logPfad string) int32
	EricBeende                   func() int32
	EricBearbeiteVorgang         func(datenpuffer, datenartVersion string, flags uint32, druckParameter, cryptoParameter unsafe.Pointer, transferHandle *uint32, rueckgabeXMLPuffer, serverantwortXMLPuffer uintptr) int32
	EricCheckXML                 func(xml, datenartVersion string, fehlertextPuffer uintptr) int32
	EricHoleFehlerText           func(fehlerkode int32, rueckgabePuffer uintptr) int32
	EricRueckgabepufferErzeugen  func() uintptr
	EricRueckgabepufferFreigeben func(handle uintptr) int32
	EricRueckgabepufferInhalt    func(handle uintptr) *byte
	EricRueckgabepufferLaenge    func(handle uintptr) uint32
	EricGetHandleToCertificate   func(hToken *uint32, iInfoPinSupport *uint32, pathToKeystore string) int32
	EricCloseHandleToCertificate func(hToken uint32) int32

	// Optional.
	EricRegistriereLogCallback                 func(funktion uintptr, schreibeEricLogDatei uint32, benutzerdaten uintptr) int32
	EricRegistriereGlobalenFortschrittCallback func(funktion uintptr, benutzerdaten uintptr) int32
	EricVersion                                func(rueckgabePuffer uintptr) int32
}

type symbol struct {
	name     string
	fn       any
	required bool
}

func (s *Symbols) table() []symbol {
	return []symbol{
		{"EricInitialisiere", &s.EricInitialisiere, true},
		{"EricBeende", &s.EricBeende, true},
		{"EricBearbeiteVorgang", &s.EricBearbeiteVorgang, true},
		{"EricCheckXML", &s.EricCheckXML, true},
		{"EricHoleFehlerText", &s.EricHoleFehlerText, true},
		{"EricRueckgabepufferErzeugen", &s.EricRueckgabepufferErzeugen, true},
		{"EricRueckgabepufferFreigeben", &s.EricRueckgabepufferFreigeben, true},
		{"EricRueckgabepufferInhalt", &s.EricRueckgabepufferInhalt, true},
		{"EricRueckgabepufferLaenge", &s.EricRueckgabepufferLaenge, true},
		{"EricGetHandleToCertificate", &s.EricGetHandleToCertificate, true},
		{"EricCloseHandleToCertificate", &s.EricCloseHandleToCertificate, true},
		{"EricRegistriereLogCallback", &s.EricRegistriereLogCallback, false},
		{"EricRegistriereGlobalenFortschrittCallback", &s.EricRegistriereGlobalenFortschrittCallback, false},
		{"EricVersion", &s.EricVersion, false},
	}
}
