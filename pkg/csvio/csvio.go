// Package csvio reads and writes the semicolon-separated, BOM-prefixed CSV
// dialect spreadsheet tools produce for locales where ',' is the decimal separator.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	Separator = ';'
	MIMEType  = "text/csv; charset=utf-8"
)

// Record is one non-blank CSV record together with the line it started on.
type Record struct {
	Line   int
	Fields []string
}

// Field returns the trimmed value at idx, or "" when the record is shorter.
func (r Record) Field(idx int) string {
	if idx < 0 || idx >= len(r.Fields) {
		return ""
	}
	return strings.TrimSpace(r.Fields[idx])
}

// blank reports a whitespace-only line. A line of bare separators is not blank.
func (r Record) blank() bool {
	return len(r.Fields) == 1 && strings.TrimSpace(r.Fields[0]) == ""
}

// NewReader returns a quote-aware reader for the dialect. A leading UTF-8 BOM is
// dropped. Malformed quoting is reported as a *csv.ParseError.
func NewReader(r io.Reader) *csv.Reader {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(decoded)
	cr.Comma = Separator
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = false
	return cr
}

// ReadRecords reads every record from r, dropping whitespace-only lines.
func ReadRecords(r io.Reader) ([]Record, error) {
	cr := NewReader(r)
	var out []Record
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		rec := Record{Line: line, Fields: fields}
		if rec.blank() {
			continue
		}
		out = append(out, rec)
	}
}

// EscapeField quotes v when it contains a separator, a quote or a line break.
// Internal quotes are doubled.
func EscapeField(v string) string {
	if !strings.ContainsAny(v, ",\";\r\n") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

func writeRow(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(Separator)
		}
		b.WriteString(EscapeField(f))
	}
}

// Serialize renders header and rows as one payload: fields joined by ';',
// rows joined by '\n', prefixed with the UTF-8 byte order mark.
func Serialize(header []string, rows [][]string) []byte {
	var b strings.Builder
	lines := 0
	if len(header) > 0 {
		writeRow(&b, header)
		lines++
	}
	for _, row := range rows {
		if lines > 0 {
			b.WriteByte('\n')
		}
		writeRow(&b, row)
		lines++
	}

	out, _, err := transform.String(unicode.UTF8BOM.NewEncoder(), b.String())
	if err != nil {
		// the encoder only fails on invalid UTF-8; fall back to a manual prefix
		return append([]byte("\uFEFF"), b.String()...)
	}
	return []byte(out)
}
