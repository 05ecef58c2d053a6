package document

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDecodeUTF8Passthrough(t *testing.T) {
	in := `<?xml version="1.0" encoding="UTF-8"?><Name>Müller</Name>`
	got, err := Decode([]byte(in))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got != in {
		t.Errorf("Decode() = %q, want %q", got, in)
	}
}

func TestDecodeStripsBOM(t *testing.T) {
	got, err := Decode(append([]byte{0xEF, 0xBB, 0xBF}, "<a>ä</a>"...))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got != "<a>ä</a>" {
		t.Errorf("Decode() = %q", got)
	}
}

func TestDecodeISO885915(t *testing.T) {
	// 0xA4 is the euro sign in ISO-8859-15 and 0xFC is ü.
	raw := []byte("<?xml version='1.0' encoding='ISO-8859-15'?><Betrag>12 \xa4</Betrag><Name>M\xfcller</Name>")

	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := "<?xml version='1.0' encoding='UTF-8'?><Betrag>12 €</Betrag><Name>Müller</Name>"
	if got != want {
		t.Errorf("Decode() = %q, want %q", got, want)
	}
}

func TestDecodeLatin1(t *testing.T) {
	raw := []byte(`<?xml version="1.0" encoding="ISO-8859-1"?><Ort>K` + "\xf6" + `ln</Ort>`)
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !strings.Contains(got, "<Ort>Köln</Ort>") || !strings.Contains(got, `encoding="UTF-8"`) {
		t.Errorf("Decode() = %q", got)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"invalid utf8 without declaration", []byte("<a>\xff</a>")},
		{"invalid utf8 declared utf8", []byte(`<?xml version="1.0" encoding="utf-8"?><a>` + "\xff</a>")},
		{"unknown encoding", []byte(`<?xml version="1.0" encoding="x-klingon"?><a/>`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.raw); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "est.xml")
	if err := os.WriteFile(path, []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-15\"?><a>\xa4</a>"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !strings.HasSuffix(got, "<a>€</a>") {
		t.Errorf("Load() = %q", got)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.xml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReplaceHerstellerID(t *testing.T) {
	in := "<Elster><HerstellerID>74931</HerstellerID><X/><HerstellerID></HerstellerID></Elster>"
	got := ReplaceHerstellerID(in, NeutralHerstellerID)
	want := "<Elster><HerstellerID>00000</HerstellerID><X/><HerstellerID>00000</HerstellerID></Elster>"
	if got != want {
		t.Errorf("ReplaceHerstellerID() = %q, want %q", got, want)
	}
	if got := ReplaceHerstellerID("<a/>", "1"); got != "<a/>" {
		t.Errorf("unexpected rewrite without element: %q", got)
	}
}

func FuzzDecode(f *testing.F) {
	f.Add([]byte(`<?xml version="1.0" encoding="ISO-8859-15"?><a>` + "\xa4</a>"))
	f.Add([]byte("<a>plain</a>"))
	f.Add([]byte{0xEF, 0xBB, 0xBF})
	f.Fuzz(func(t *testing.T, raw []byte) {
		got, err := Decode(raw)
		if err != nil {
			return
		}
		if !utf8.ValidString(got) {
			t.Errorf("Decode returned invalid UTF-8: %q", got)
		}
	})
}
