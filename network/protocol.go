// Package network exposes a single engine session over ZeroMQ.
//
// The ERiC engine keeps process-wide state and is not re-entrant, so one
// process owns the session and serves validate and send requests from other
// processes one at a time. Server binds a ROUTER socket; Client connects with a
// DEALER socket and matches replies to requests by ID. Messages are single JSON
// frames.
//
// Requests carry certificate PINs in the clear; bind the service to a loopback
// or ipc:// address.
package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/VanDung-dev/eric-go/bridge"
)

// Operations understood by Server.
const (
	OpValidate = "validate"
	OpSend     = "send"
	OpCheck    = "check"
	OpVersion  = "version"
)

// Response statuses.
const (
	// StatusOK means the engine returned success.
	StatusOK = "ok"
	// StatusRejected means the engine ran and returned a non-zero code.
	StatusRejected = "rejected"
	// StatusError means the request never reached the engine or could not be
	// completed.
	StatusError = "error"
)

// Common errors for network operations
var (
	ErrServerNotRunning = errors.New("server is not running")
	ErrClientClosed     = errors.New("client is closed")
	ErrSendFailed       = errors.New("failed to send message")
)

// Request is one engine operation.
type Request struct {
	ID              string    `json:"id"`
	Op              string    `json:"op"`
	XML             string    `json:"xml,omitempty"`
	DatenartVersion string    `json:"datenart_version,omitempty"`
	CertificatePath string    `json:"certificate_path,omitempty"`
	PIN             string    `json:"pin,omitempty"`
	PDFPath         string    `json:"pdf_path,omitempty"`
	TransferHandle  *uint32   `json:"transfer_handle,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Response answers the Request with the same ID.
type Response struct {
	ID                 string    `json:"id"`
	Status             string    `json:"status"`
	Code               int       `json:"code"`
	Message            string    `json:"message,omitempty"`
	ValidationResponse string    `json:"validation_response,omitempty"`
	ServerResponse     string    `json:"server_response,omitempty"`
	TransferHandle     *uint32   `json:"transfer_handle,omitempty"`
	Version            string    `json:"version,omitempty"`
	Error              string    `json:"error,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// Result converts the response back into a bridge result.
func (r *Response) Result() *bridge.Result {
	return &bridge.Result{
		Code:               r.Code,
		Message:            r.Message,
		ValidationResponse: r.ValidationResponse,
		ServerResponse:     r.ServerResponse,
		TransferHandle:     r.TransferHandle,
	}
}

// Err returns nil for StatusOK and a descriptive error otherwise.
func (r *Response) Err() error {
	switch r.Status {
	case StatusOK:
		return nil
	case StatusRejected:
		return fmt.Errorf("eric: engine returned %d: %s", r.Code, r.Message)
	default:
		return fmt.Errorf("eric service: %s", r.Error)
	}
}

func decodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}
	if req.ID == "" {
		return nil, errors.New("request without id")
	}
	return &req, nil
}
