package bridge

import (
	"errors"
	"time"

	"github.com/VanDung-dev/eric-go/api"
	"github.com/VanDung-dev/eric-go/ffi"
)

// ValidateRequest is the input to Validate.
type ValidateRequest struct {
	XML             string
	DatenartVersion string
	// PDFPath requests a preview PDF when non-empty.
	PDFPath string
}

// SendRequest is the input to Send.
type SendRequest struct {
	XML             string
	DatenartVersion string
	CertificatePath string
	// PIN unlocks the certificate. Empty passes NULL.
	PIN     string
	PDFPath string
	// TransferHandle resumes a multi-step send when non-nil.
	TransferHandle *uint32
}

// Validate runs EricBearbeiteVorgang with the validate flag.
//
// When the engine rejects the document the returned Result carries the code,
// message and validation response, and the error is an *ffi.EngineError.
func (c *Client) Validate(req ValidateRequest) (*Result, error) {
	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}
	start := time.Now()
	flags := ffi.FlagValidate
	printParams := c.printParams(req.PDFPath, true)
	if printParams != nil {
		flags |= ffi.FlagPrint
	}
	res, err := c.process(&ffi.Transaction{
		XML:             req.XML,
		DatenartVersion: req.DatenartVersion,
		Flags:           flags,
		Print:           printParams,
	})
	c.metrics.RecordWorkflow("validate", err == nil, time.Since(start))
	return res, err
}

// Send validates and transmits the document signed with the certificate at
// req.CertificatePath. The certificate handle is closed before Send returns,
// whatever the outcome.
func (c *Client) Send(req SendRequest) (res *Result, err error) {
	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() {
		c.metrics.RecordWorkflow("send", err == nil, time.Since(start))
	}()

	flags := ffi.FlagValidate | ffi.FlagSend
	printParams := c.printParams(req.PDFPath, false)
	if printParams != nil {
		flags |= ffi.FlagPrint
	}

	cert, rc := c.lib.OpenCertificate(req.CertificatePath)
	c.metrics.RecordCall("EricGetHandleToCertificate", rc, time.Since(start))
	if err := ffi.Check(rc, "EricGetHandleToCertificate", c.lib); err != nil {
		return nil, err
	}
	c.metrics.HandleOpened(api.HandleCertificate)
	defer func() {
		if rc := c.call("EricCloseHandleToCertificate", cert.Close); rc != ffi.CodeOK {
			c.log.Warn().Int("code", rc).Msg("close certificate handle")
		}
		c.metrics.HandleReleased(api.HandleCertificate)
	}()

	var transfer *uint32
	if req.TransferHandle != nil {
		v := *req.TransferHandle
		transfer = &v
	}
	return c.process(&ffi.Transaction{
		XML:             req.XML,
		DatenartVersion: req.DatenartVersion,
		Flags:           flags,
		Print:           printParams,
		Crypto: &ffi.CryptoParameters{
			Version:     c.version.CryptoParamVersion,
			Certificate: cert,
			PIN:         req.PIN,
		},
		TransferHandle: transfer,
	})
}

// CheckXML runs EricCheckXML, a schema check without the full processing chain.
func (c *Client) CheckXML(xml, datenartVersion string) (*Result, error) {
	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}
	buf, err := c.newBuffer()
	if err != nil {
		return nil, err
	}
	defer c.releaseBuffer(buf)

	rc := c.call("EricCheckXML", func() int { return c.lib.CheckXML(xml, datenartVersion, buf) })
	res := &Result{Code: rc, ValidationResponse: buf.String()}
	if err := ffi.Check(rc, "EricCheckXML", c.lib); err != nil {
		res.Message = messageOf(err)
		return res, err
	}
	return res, nil
}

// EngineVersion returns the engine's version description.
func (c *Client) EngineVersion() (string, error) {
	if err := c.ensureInitialized(); err != nil {
		return "", err
	}
	buf, err := c.newBuffer()
	if err != nil {
		return "", err
	}
	defer c.releaseBuffer(buf)

	rc := c.call("EricVersion", func() int { return c.lib.Version(buf) })
	if err := ffi.Check(rc, "EricVersion", c.lib); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (c *Client) printParams(pdfPath string, preview bool) *ffi.PrintParameters {
	if pdfPath == "" {
		return nil
	}
	return &ffi.PrintParameters{
		Version: c.version.PrintParamVersion,
		Preview: preview,
		PDFName: pdfPath,
	}
}

// process runs EricBearbeiteVorgang with fresh return buffers and releases
// them before returning.
func (c *Client) process(tx *ffi.Transaction) (*Result, error) {
	resp, err := c.newBuffer()
	if err != nil {
		return nil, err
	}
	defer c.releaseBuffer(resp)

	server, err := c.newBuffer()
	if err != nil {
		return nil, err
	}
	defer c.releaseBuffer(server)

	tx.Response = resp
	tx.ServerResponse = server
	rc := c.call("EricBearbeiteVorgang", func() int { return c.lib.ProcessTransaction(tx) })

	res := &Result{
		Code:               rc,
		ValidationResponse: resp.String(),
		ServerResponse:     server.String(),
		TransferHandle:     tx.TransferHandle,
	}
	if err := ffi.Check(rc, "EricBearbeiteVorgang", c.lib); err != nil {
		res.Message = messageOf(err)
		c.log.Debug().Int("code", rc).Str("datenart_version", tx.DatenartVersion).Msg("engine rejected transaction")
		return res, err
	}
	return res, nil
}

func messageOf(err error) string {
	var ee *ffi.EngineError
	if errors.As(err, &ee) {
		return ee.Message
	}
	return err.Error()
}
