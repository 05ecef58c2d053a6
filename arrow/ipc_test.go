package arrow

import (
	"bytes"
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/ipc"
)

func TestWriteReadReport(t *testing.T) {
	c := NewConverter()

	var buf bytes.Buffer
	if err := c.WriteReport(&buf, sampleEntries()); err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}

	entries, err := c.ReadReport(&buf)
	if err != nil {
		t.Fatalf("ReadReport failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[1].Message != "Prüffehler: Größe €" {
		t.Errorf("Unexpected message: %q", entries[1].Message)
	}
}

func TestReadReportRejectsGarbage(t *testing.T) {
	if _, err := NewConverter().ReadReport(bytes.NewReader([]byte("not arrow"))); err == nil {
		t.Error("Expected error for invalid stream")
	}
}

func TestSerializeDeserialize(t *testing.T) {
	record, err := NewConverter().EntriesToRecord(sampleEntries())
	if err != nil {
		t.Fatalf("EntriesToRecord failed: %v", err)
	}
	defer record.Release()

	data, err := SerializeToIPC(record)
	if err != nil {
		t.Fatalf("SerializeToIPC failed: %v", err)
	}
	got, err := DeserializeFromIPC(data)
	if err != nil {
		t.Fatalf("DeserializeFromIPC failed: %v", err)
	}
	defer got.Release()

	if got.NumRows() != record.NumRows() {
		t.Errorf("Expected %d rows, got %d", record.NumRows(), got.NumRows())
	}
	if err := ValidateSchema(got, ReportSchema()); err != nil {
		t.Errorf("Schema mismatch after round trip: %v", err)
	}
}

func TestDeserializeSchemaOnly(t *testing.T) {
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(ReportSchema()))
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err := DeserializeFromIPC(buf.Bytes())
	if !errors.Is(err, ErrNoRecords) {
		t.Errorf("Expected ErrNoRecords, got %v", err)
	}
}

// FuzzEntriesRoundTrip checks that report rows survive Arrow encoding.
// Run with: go test -fuzz=FuzzEntriesRoundTrip -fuzztime=30s ./arrow/
func FuzzEntriesRoundTrip(f *testing.F) {
	f.Add("est.xml", "ESt_2020", int64(0), "", "<Erfolg/>")
	f.Add("", "", int64(610001002), "Prüffehler", "")
	f.Add("a\x00b", "UStVA_2024", int64(-1), "€", "<x/>")

	c := NewConverter()

	f.Fuzz(func(t *testing.T, document, dav string, code int64, message, response string) {
		in := []Entry{{
			Document:           document,
			Workflow:           "validate",
			DatenartVersion:    dav,
			Code:               code,
			Message:            message,
			ValidationResponse: response,
		}}

		var buf bytes.Buffer
		if err := c.WriteReport(&buf, in); err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}
		out, err := c.ReadReport(&buf)
		if err != nil {
			t.Fatalf("ReadReport failed: %v", err)
		}
		if len(out) != 1 {
			t.Fatalf("Expected 1 entry, got %d", len(out))
		}
		got := out[0]
		if got.Document != document || got.DatenartVersion != dav || got.Code != code ||
			got.Message != message || got.ValidationResponse != response {
			t.Errorf("Round trip mismatch: got %+v, want %+v", got, in[0])
		}
	})
}
