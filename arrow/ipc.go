package arrow

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ErrNoRecords is returned when an IPC stream holds a schema but no batches.
var ErrNoRecords = errors.New("no records in IPC data")

// WriteReport writes entries to w as a single-batch Arrow IPC stream.
func (c *Converter) WriteReport(w io.Writer, entries []Entry) error {
	record, err := c.EntriesToRecord(entries)
	if err != nil {
		return err
	}
	defer record.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(c.schema), ipc.WithAllocator(c.allocator))
	if err := writer.Write(record); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

// ReadReport reads every batch of a report stream.
func (c *Converter) ReadReport(r io.Reader) ([]Entry, error) {
	reader, err := ipc.NewReader(r, ipc.WithSchema(c.schema), ipc.WithAllocator(c.allocator))
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}
	defer reader.Release()

	var entries []Entry
	for reader.Next() {
		batch, err := c.RecordToEntries(reader.Record())
		if err != nil {
			return nil, err
		}
		entries = append(entries, batch...)
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// SerializeToIPC serializes a record to IPC stream bytes.
func SerializeToIPC(record arrow.Record) ([]byte, error) {
	var buf bytes.Buffer

	writer := ipc.NewWriter(&buf, ipc.WithSchema(record.Schema()))
	if err := writer.Write(record); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeFromIPC reads the first record of an IPC stream. The caller
// releases it.
func DeserializeFromIPC(data []byte) (arrow.Record, error) {
	reader, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}
	defer reader.Release()

	if !reader.Next() {
		if err := reader.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNoRecords
	}
	record := reader.Record()
	record.Retain()
	return record, nil
}
