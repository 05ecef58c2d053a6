package ffi

// Certificate is an unlocked credential (EricZertifikatHandle). It must be
// closed exactly once.
type Certificate struct {
	lib        *Library
	handle     uint32
	pinSupport uint32
	closed     bool
}

// OpenCertificate calls EricGetHandleToCertificate for the keystore at path.
func (l *Library) OpenCertificate(path string) (*Certificate, int) {
	s, code := l.symbols()
	if code != CodeOK {
		return nil, code
	}
	if s.EricGetHandleToCertificate == nil {
		return nil, CodeSymbolMissing
	}
	var handle, pinSupport uint32
	rc := int(s.EricGetHandleToCertificate(&handle, &pinSupport, path))
	if rc != CodeOK {
		return nil, rc
	}
	return &Certificate{lib: l, handle: handle, pinSupport: pinSupport}, CodeOK
}

// Handle returns the raw engine handle.
func (c *Certificate) Handle() uint32 { return c.handle }

// PINSupport returns the iInfoPinSupport bit field reported by the engine.
func (c *Certificate) PINSupport() uint32 { return c.pinSupport }

// Closed reports whether Close has been called.
func (c *Certificate) Closed() bool { return c == nil || c.closed }

// Close calls EricCloseHandleToCertificate once. Later calls return CodeOK.
func (c *Certificate) Close() int {
	if c == nil || c.closed {
		return CodeOK
	}
	c.closed = true
	s, code := c.lib.symbols()
	if code != CodeOK {
		return code
	}
	if s.EricCloseHandleToCertificate == nil {
		return CodeSymbolMissing
	}
	return int(s.EricCloseHandleToCertificate(c.handle))
}
