package arrow

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// Column positions in ReportSchema.
const (
	colDocument = iota
	colWorkflow
	colDatenartVersion
	colCode
	colMessage
	colValidationResponse
	colServerResponse
	colTransferHandle
	colDurationMS
	colTimestamp
	numColumns
)

// ReportSchema returns the schema of a workflow report.
//
// Fields:
//   - document: string - input file or request ID
//   - workflow: string - "validate", "send" or "check"
//   - datenart_version: string
//   - code: int64 - engine return code, 0 on success
//   - message: string (nullable) - engine error text
//   - validation_response: string (nullable)
//   - server_response: string (nullable)
//   - transfer_handle: uint32 (nullable)
//   - duration_ms: int64
//   - timestamp: timestamp[ms, UTC]
func ReportSchema() *arrow.Schema {
	return arrow.NewSchema(
		[]arrow.Field{
			{Name: "document", Type: arrow.BinaryTypes.String},
			{Name: "workflow", Type: arrow.BinaryTypes.String},
			{Name: "datenart_version", Type: arrow.BinaryTypes.String},
			{Name: "code", Type: arrow.PrimitiveTypes.Int64},
			{Name: "message", Type: arrow.BinaryTypes.String, Nullable: true},
			{Name: "validation_response", Type: arrow.BinaryTypes.String, Nullable: true},
			{Name: "server_response", Type: arrow.BinaryTypes.String, Nullable: true},
			{Name: "transfer_handle", Type: arrow.PrimitiveTypes.Uint32, Nullable: true},
			{Name: "duration_ms", Type: arrow.PrimitiveTypes.Int64},
			{Name: "timestamp", Type: arrow.FixedWidthTypes.Timestamp_ms},
		},
		nil,
	)
}

// ValidateSchema checks if a record matches the expected schema.
func ValidateSchema(record arrow.Record, expected *arrow.Schema) error {
	if record == nil {
		return errors.New("record is nil")
	}

	actual := record.Schema()
	if actual.NumFields() != expected.NumFields() {
		return fmt.Errorf("field count mismatch: got %d, expected %d",
			actual.NumFields(), expected.NumFields())
	}
	for i := 0; i < actual.NumFields(); i++ {
		got, want := actual.Field(i), expected.Field(i)
		if got.Name != want.Name {
			return fmt.Errorf("field %d name mismatch: got %s, expected %s", i, got.Name, want.Name)
		}
		if !arrow.TypeEqual(got.Type, want.Type) {
			return fmt.Errorf("field %s type mismatch: got %s, expected %s", got.Name, got.Type, want.Type)
		}
	}
	return nil
}
