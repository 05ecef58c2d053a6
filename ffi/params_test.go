package ffi

import (
	"runtime"
	"testing"
	"unsafe"
)

func TestDruckParameterLayout(t *testing.T) {
	var d druckParameterV4
	if off := unsafe.Offsetof(d.pdfName); off != 16 {
		t.Errorf("Expected pdfName at offset 16, got %d", off)
	}
	if off := unsafe.Offsetof(d.fussText); off != 16+unsafe.Sizeof(uintptr(0)) {
		t.Errorf("Unexpected fussText offset %d", off)
	}
}

func TestVerschluesselungsParameterLayout(t *testing.T) {
	var v verschluesselungsParameterV3
	if off := unsafe.Offsetof(v.zertifikatHandle); off != 4 {
		t.Errorf("Expected zertifikatHandle at offset 4, got %d", off)
	}
	if off := unsafe.Offsetof(v.pin); off != 8 {
		t.Errorf("Expected pin at offset 8, got %d", off)
	}
}

func TestEncodePrint(t *testing.T) {
	var pinner runtime.Pinner
	defer pinner.Unpin()

	p, code := encodePrint(nil, &pinner)
	if code != CodeOK || p != nil {
		t.Fatalf("Expected nil pointer for nil params, got %v (code %d)", p, code)
	}

	p, code = encodePrint(&PrintParameters{Version: 4, Preview: true, PDFName: "/tmp/out.pdf"}, &pinner)
	if code != CodeOK {
		t.Fatalf("Expected CodeOK, got %d", code)
	}
	d := (*druckParameterV4)(p)
	if d.version != 4 || d.vorschau != 1 || d.duplexDruck != 0 {
		t.Errorf("Unexpected header %+v", d)
	}
	if got := goString(d.pdfName); got != "/tmp/out.pdf" {
		t.Errorf("Expected pdfName /tmp/out.pdf, got %q", got)
	}
	if d.fussText != nil {
		t.Error("Expected NULL fussText for empty footer")
	}
}

func TestEncodeUnsupportedLayout(t *testing.T) {
	var pinner runtime.Pinner
	defer pinner.Unpin()

	if _, code := encodePrint(&PrintParameters{Version: 99}, &pinner); code != CodeUnsupportedLayout {
		t.Errorf("Expected CodeUnsupportedLayout, got %d", code)
	}
	cert := &Certificate{handle: 7}
	if _, code := encodeCrypto(&CryptoParameters{Version: 1, Certificate: cert}, &pinner); code != CodeUnsupportedLayout {
		t.Errorf("Expected CodeUnsupportedLayout, got %d", code)
	}
}

func TestEncodeCrypto(t *testing.T) {
	var pinner runtime.Pinner
	defer pinner.Unpin()

	cert := &Certificate{handle: 7}
	p, code := encodeCrypto(&CryptoParameters{Version: 3, Certificate: cert, PIN: "1234"}, &pinner)
	if code != CodeOK {
		t.Fatalf("Expected CodeOK, got %d", code)
	}
	v := (*verschluesselungsParameterV3)(p)
	if v.zertifikatHandle != 7 {
		t.Errorf("Expected handle 7, got %d", v.zertifikatHandle)
	}
	if goString(v.pin) != "1234" {
		t.Errorf("Expected pin 1234, got %q", goString(v.pin))
	}
	if v.abrufCode != nil {
		t.Error("Expected NULL abrufCode")
	}

	p, _ = encodeCrypto(&CryptoParameters{Version: 3, Certificate: cert}, &pinner)
	if (*verschluesselungsParameterV3)(p).pin != nil {
		t.Error("Expected NULL pin for empty PIN")
	}

	cert.closed = true
	if _, code := encodeCrypto(&CryptoParameters{Version: 3, Certificate: cert}, &pinner); code != CodeInvalidHandle {
		t.Errorf("Expected CodeInvalidHandle for closed certificate, got %d", code)
	}
}

func TestDispatchLog(t *testing.T) {
	var gotCategory, gotMessage string
	var gotLevel LogLevel
	sink := LogSink(func(category string, level LogLevel, message string) {
		gotCategory, gotLevel, gotMessage = category, level, message
	})
	logSink.Store(&sink)
	defer logSink.Store(nil)

	category := []byte("eric.ctrl\x00")
	message := []byte("Ende\x00")
	dispatchLog(&category[0], int32(LogWarn), &message[0])

	if gotCategory != "eric.ctrl" || gotMessage != "Ende" || gotLevel != LogWarn {
		t.Errorf("Unexpected dispatch: %q %v %q", gotCategory, gotLevel, gotMessage)
	}
}

func TestGoStringNil(t *testing.T) {
	if goString(nil) != "" {
		t.Error("Expected empty string for nil pointer")
	}
}
