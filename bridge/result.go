package bridge

import (
	"io"
)

// Result is the outcome of a validate or send workflow.
type Result struct {
	Code int
	// Message is the engine's text for a non-zero Code.
	Message            string
	ValidationResponse string
	ServerResponse     string
	// TransferHandle is set when the caller passed one in; it can be threaded
	// into a follow-up Send.
	TransferHandle *uint32
}

// OK reports whether the engine returned success.
func (r *Result) OK() bool { return r != nil && r.Code == 0 }

// WriteValidationResponse writes the validation response as UTF-8.
func (r *Result) WriteValidationResponse(w io.Writer) error {
	_, err := io.WriteString(w, r.ValidationResponse)
	return err
}
