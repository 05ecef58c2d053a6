package ffi

import (
	"strings"
	"unsafe"
)

// Buffer is an engine return buffer (EricRueckgabepufferHandle). It is owned by
// the caller that created it and must be closed exactly once. Not safe for
// concurrent use.
type Buffer struct {
	lib      *Library
	handle   uintptr
	released bool
}

// NewBuffer calls EricRueckgabepufferErzeugen.
func (l *Library) NewBuffer() (*Buffer, int) {
	s, code := l.symbols()
	if code != CodeOK {
		return nil, code
	}
	if s.EricRueckgabepufferErzeugen == nil {
		return nil, CodeSymbolMissing
	}
	h := s.EricRueckgabepufferErzeugen()
	if h == 0 {
		return nil, CodeInvalidHandle
	}
	return &Buffer{lib: l, handle: h}, CodeOK
}

func (b *Buffer) valid(l *Library) bool {
	return b != nil && !b.released && b.handle != 0 && b.lib == l
}

// Len calls EricRueckgabepufferLaenge. A released buffer has length zero.
func (b *Buffer) Len() int {
	if b == nil || b.released {
		return 0
	}
	s, code := b.lib.symbols()
	if code != CodeOK || s.EricRueckgabepufferLaenge == nil {
		return 0
	}
	return int(s.EricRueckgabepufferLaenge(b.handle))
}

// Bytes copies the buffer content out of engine memory. A released buffer
// yields nil without touching the handle.
func (b *Buffer) Bytes() []byte {
	n := b.Len()
	if n == 0 {
		return nil
	}
	s, _ := b.lib.symbols()
	if s.EricRueckgabepufferInhalt == nil {
		return nil
	}
	p := s.EricRueckgabepufferInhalt(b.handle)
	if p == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, unsafe.Slice(p, n))
	return out
}

// String decodes the content as UTF-8, replacing invalid sequences.
func (b *Buffer) String() string {
	return strings.ToValidUTF8(string(b.Bytes()), "�")
}

// Released reports whether Close has been called.
func (b *Buffer) Released() bool {
	return b == nil || b.released
}

// Close calls EricRueckgabepufferFreigeben once. Later calls return CodeOK
// without calling into the engine.
func (b *Buffer) Close() int {
	if b == nil || b.released {
		return CodeOK
	}
	b.released = true
	s, code := b.lib.symbols()
	if code != CodeOK {
		return code
	}
	if s.EricRueckgabepufferFreigeben == nil {
		return CodeSymbolMissing
	}
	return int(s.EricRueckgabepufferFreigeben(b.handle))
}
