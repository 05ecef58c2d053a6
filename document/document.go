// Package document prepares ELSTER XML input for the engine, which only
// accepts UTF-8.
package document

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/ianaindex"
)

// Hersteller-IDs used by the ELSTER sample documents.
const (
	PlaceholderHerstellerID = "74931"
	NeutralHerstellerID     = "00000"
)

var (
	utf8BOM        = []byte{0xEF, 0xBB, 0xBF}
	declEncoding   = regexp.MustCompile(`^(<\?xml[^>]*?\bencoding\s*=\s*)(["'])([^"']*)(["'])`)
	herstellerIDRe = regexp.MustCompile(`<HerstellerID>[^<]*</HerstellerID>`)
)

// Load reads the XML file at path and returns it as UTF-8.
func Load(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	doc, err := Decode(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	return doc, nil
}

// Decode converts raw XML to UTF-8 using the encoding named in its XML
// declaration, then rewrites the declaration to say UTF-8. Documents without a
// declared encoding must already be UTF-8.
func Decode(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	m := declEncoding.FindSubmatchIndex(raw)
	if m == nil {
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("document is not valid UTF-8 and declares no encoding")
		}
		return string(raw), nil
	}

	name := string(raw[m[6]:m[7]])
	if isUTF8(name) {
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("document declares %s but is not valid UTF-8", name)
		}
		return string(raw), nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return "", fmt.Errorf("unsupported document encoding %q", name)
	}
	body, err := enc.NewDecoder().Bytes(raw[m[1]:])
	if err != nil {
		return "", fmt.Errorf("transcode from %s: %w", name, err)
	}

	var b strings.Builder
	b.Grow(m[1] + len(body))
	b.Write(raw[:m[6]])
	b.WriteString("UTF-8")
	b.Write(raw[m[7]:m[1]])
	b.Write(body)
	return b.String(), nil
}

func isUTF8(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "utf-8", "utf8":
		return true
	}
	return false
}

// ReplaceHerstellerID sets every HerstellerID element to id. Validation-only
// runs use it to swap the sample placeholder for NeutralHerstellerID.
func ReplaceHerstellerID(doc, id string) string {
	return herstellerIDRe.ReplaceAllLiteralString(doc, "<HerstellerID>"+id+"</HerstellerID>")
}
