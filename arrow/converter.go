package arrow

import (
	"errors"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/VanDung-dev/eric-go/bridge"
	"github.com/VanDung-dev/eric-go/ffi"
)

// Entry is one row of a report.
type Entry struct {
	Document           string        `json:"document"`
	Workflow           string        `json:"workflow"`
	DatenartVersion    string        `json:"datenart_version"`
	Code               int64         `json:"code"`
	Message            string        `json:"message,omitempty"`
	ValidationResponse string        `json:"validation_response,omitempty"`
	ServerResponse     string        `json:"server_response,omitempty"`
	TransferHandle     *uint32       `json:"transfer_handle,omitempty"`
	Duration           time.Duration `json:"duration"`
	Timestamp          time.Time     `json:"timestamp"`
}

// NewEntry builds a row from a workflow outcome. err is consulted only when
// res is nil, so usage and load failures still get a row.
func NewEntry(document, workflow, datenartVersion string, res *bridge.Result, err error, started time.Time) Entry {
	e := Entry{
		Document:        document,
		Workflow:        workflow,
		DatenartVersion: datenartVersion,
		Duration:        time.Since(started),
		Timestamp:       started.UTC(),
	}
	switch {
	case res != nil:
		e.Code = int64(res.Code)
		e.Message = res.Message
		e.ValidationResponse = res.ValidationResponse
		e.ServerResponse = res.ServerResponse
		e.TransferHandle = res.TransferHandle
	case err != nil:
		e.Code = int64(ffi.CodeGlobalUnknown)
		if code, ok := ffi.CodeOf(err); ok {
			e.Code = int64(code)
		}
		e.Message = err.Error()
	}
	return e
}

// Converter turns report entries into Arrow records and back.
type Converter struct {
	allocator memory.Allocator
	schema    *arrow.Schema
}

// NewConverter creates a Converter with the default memory allocator.
func NewConverter() *Converter {
	return NewConverterWithAllocator(memory.DefaultAllocator)
}

// NewConverterWithAllocator creates a Converter using mem.
func NewConverterWithAllocator(mem memory.Allocator) *Converter {
	return &Converter{
		allocator: mem,
		schema:    ReportSchema(),
	}
}

// Schema returns the report schema.
func (c *Converter) Schema() *arrow.Schema { return c.schema }

// EntriesToRecord converts entries to a single record. The caller releases it.
func (c *Converter) EntriesToRecord(entries []Entry) (arrow.Record, error) {
	if len(entries) == 0 {
		return nil, errors.New("empty entries slice")
	}

	builder := array.NewRecordBuilder(c.allocator, c.schema)
	defer builder.Release()

	document := builder.Field(colDocument).(*array.StringBuilder)
	workflow := builder.Field(colWorkflow).(*array.StringBuilder)
	dav := builder.Field(colDatenartVersion).(*array.StringBuilder)
	code := builder.Field(colCode).(*array.Int64Builder)
	message := builder.Field(colMessage).(*array.StringBuilder)
	validation := builder.Field(colValidationResponse).(*array.StringBuilder)
	server := builder.Field(colServerResponse).(*array.StringBuilder)
	transfer := builder.Field(colTransferHandle).(*array.Uint32Builder)
	duration := builder.Field(colDurationMS).(*array.Int64Builder)
	timestamp := builder.Field(colTimestamp).(*array.TimestampBuilder)

	for _, e := range entries {
		document.Append(e.Document)
		workflow.Append(e.Workflow)
		dav.Append(e.DatenartVersion)
		code.Append(e.Code)
		appendOptional(message, e.Message)
		appendOptional(validation, e.ValidationResponse)
		appendOptional(server, e.ServerResponse)
		if e.TransferHandle != nil {
			transfer.Append(*e.TransferHandle)
		} else {
			transfer.AppendNull()
		}
		duration.Append(e.Duration.Milliseconds())
		timestamp.Append(arrow.Timestamp(e.Timestamp.UnixMilli()))
	}

	return builder.NewRecord(), nil
}

func appendOptional(b *array.StringBuilder, s string) {
	if s == "" {
		b.AppendNull()
		return
	}
	b.Append(s)
}

// RecordToEntries converts a report record back to entries. Strings are copied
// out of the record's buffers. Durations and timestamps come back at
// millisecond precision.
func (c *Converter) RecordToEntries(record arrow.Record) ([]Entry, error) {
	if record == nil || record.NumRows() == 0 {
		return nil, nil
	}
	if err := ValidateSchema(record, c.schema); err != nil {
		return nil, err
	}

	document := record.Column(colDocument).(*array.String)
	workflow := record.Column(colWorkflow).(*array.String)
	dav := record.Column(colDatenartVersion).(*array.String)
	code := record.Column(colCode).(*array.Int64)
	message := record.Column(colMessage).(*array.String)
	validation := record.Column(colValidationResponse).(*array.String)
	server := record.Column(colServerResponse).(*array.String)
	transfer := record.Column(colTransferHandle).(*array.Uint32)
	duration := record.Column(colDurationMS).(*array.Int64)
	timestamp := record.Column(colTimestamp).(*array.Timestamp)

	entries := make([]Entry, record.NumRows())
	for i := range entries {
		e := Entry{
			Document:           strings.Clone(document.Value(i)),
			Workflow:           strings.Clone(workflow.Value(i)),
			DatenartVersion:    strings.Clone(dav.Value(i)),
			Code:               code.Value(i),
			Message:            optional(message, i),
			ValidationResponse: optional(validation, i),
			ServerResponse:     optional(server, i),
			Duration:           time.Duration(duration.Value(i)) * time.Millisecond,
			Timestamp:          timestamp.Value(i).ToTime(arrow.Millisecond),
		}
		if !transfer.IsNull(i) {
			h := transfer.Value(i)
			e.TransferHandle = &h
		}
		entries[i] = e
	}
	return entries, nil
}

func optional(col *array.String, i int) string {
	if col.IsNull(i) {
		return ""
	}
	return strings.Clone(col.Value(i))
}
