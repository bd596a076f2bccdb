package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Export errors.
var (
	ErrInvalidSeparator = errors.New("unsupported separator")
	ErrInvalidEncoding  = errors.New("unsupported output encoding")
	ErrUnencodable      = errors.New("character cannot be represented in output encoding")
)

// Encoding names an output character encoding.
type Encoding string

const (
	EncodingUTF8BOM   Encoding = "utf-8-sig"
	EncodingUTF8      Encoding = "utf-8"
	EncodingLatin1    Encoding = "latin1"
	EncodingISO8859_1 Encoding = "iso-8859-1"
)

// Encodings lists the supported output encodings in display order.
var Encodings = []Encoding{EncodingUTF8BOM, EncodingUTF8, EncodingLatin1, EncodingISO8859_1}

// ParseEncoding resolves an encoding name. Empty means utf-8-sig.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "utf-8-sig", "utf8-sig", "utf-8-bom":
		return EncodingUTF8BOM, nil
	case "utf-8", "utf8":
		return EncodingUTF8, nil
	case "latin1", "latin-1":
		return EncodingLatin1, nil
	case "iso-8859-1", "iso8859-1":
		return EncodingISO8859_1, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEncoding, s)
}

// isLatin1 reports whether e encodes to ISO-8859-1.
func (e Encoding) isLatin1() bool {
	return e == EncodingLatin1 || e == EncodingISO8859_1
}

// Separators lists the supported field separators by display name.
var Separators = map[string]rune{
	"comma":     ',',
	"semicolon": ';',
	"pipe":      '|',
	"tab":       '\t',
}

// ParseSeparator resolves a separator given either by name or as the
// character itself. Empty means comma.
func ParseSeparator(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case ",", ";", "|", "\t":
		return rune(s[0]), nil
	case `\t`:
		return '\t', nil
	}
	if r, ok := Separators[strings.ToLower(strings.TrimSpace(s))]; ok {
		return r, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSeparator, s)
}

// ExportOptions controls the delimited output.
type ExportOptions struct {
	Separator rune     // zero means comma
	Encoding  Encoding // empty means utf-8-sig
}

// ExportStats describes a finished export.
type ExportStats struct {
	Rows   int    `json:"rows"`   // data rows, header excluded
	Bytes  int64  `json:"bytes"`  // encoded bytes written
	Digest uint64 `json:"digest"` // xxh3 of the encoded bytes
}

// DigestHex returns the digest as 16 hex digits.
func (s ExportStats) DigestHex() string {
	return fmt.Sprintf("%016x", s.Digest)
}

// Export writes t as a header row followed by one record per row.
//
// For Latin-1 outputs every cell is checked before it is written; a
// character outside ISO-8859-1 fails the export with ErrUnencodable naming
// the column and row.
func Export(w io.Writer, t Table, opts ExportOptions) (ExportStats, error) {
	sep := opts.Separator
	if sep == 0 {
		sep = ','
	}
	if !isSeparator(sep) {
		return ExportStats{}, fmt.Errorf("%w: %q", ErrInvalidSeparator, sep)
	}
	enc := opts.Encoding
	if enc == "" {
		enc = EncodingUTF8BOM
	}
	if _, err := ParseEncoding(string(enc)); err != nil {
		return ExportStats{}, err
	}

	hasher := xxh3.New()
	counter := &countingWriter{}
	sink := io.MultiWriter(w, hasher, counter)

	var out io.Writer = sink
	var encoder *transform.Writer
	switch {
	case enc == EncodingUTF8BOM:
		encoder = transform.NewWriter(sink, unicode.UTF8BOM.NewEncoder())
		out = encoder
	case enc.isLatin1():
		encoder = transform.NewWriter(sink, charmap.ISO8859_1.NewEncoder())
		out = encoder
	}

	cw := csv.NewWriter(out)
	cw.Comma = sep

	header := t.Names()
	if enc.isLatin1() {
		if err := checkLatin1(header, -1, header); err != nil {
			return ExportStats{}, err
		}
	}
	if err := cw.Write(header); err != nil {
		return ExportStats{}, fmt.Errorf("write header: %w", err)
	}

	rows := t.Rows()
	record := make([]string, len(t.Columns))
	for i := 0; i < rows; i++ {
		for j, v := range t.Row(i) {
			record[j] = FormatValue(v)
		}
		if enc.isLatin1() {
			if err := checkLatin1(record, i, header); err != nil {
				return ExportStats{}, err
			}
		}
		if err := cw.Write(record); err != nil {
			return ExportStats{}, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return ExportStats{}, fmt.Errorf("flush: %w", err)
	}
	if encoder != nil {
		if err := encoder.Close(); err != nil {
			return ExportStats{}, fmt.Errorf("encode: %w", err)
		}
	}

	return ExportStats{Rows: rows, Bytes: counter.n, Digest: hasher.Sum64()}, nil
}

func isSeparator(r rune) bool {
	switch r {
	case ',', ';', '|', '\t':
		return true
	}
	return false
}

// checkLatin1 returns ErrUnencodable for the first cell of record holding a
// rune outside ISO-8859-1. row is -1 for the header.
func checkLatin1(record []string, row int, header []string) error {
	for j, cell := range record {
		for _, r := range cell {
			if _, ok := charmap.ISO8859_1.EncodeRune(r); ok {
				continue
			}
			col := ""
			if j < len(header) {
				col = header[j]
			}
			if row < 0 {
				return fmt.Errorf("%w: %q in header %q", ErrUnencodable, r, col)
			}
			return fmt.Errorf("%w: %q in column %q, row %d", ErrUnencodable, r, col, row+1)
		}
	}
	return nil
}

// countingWriter counts bytes passed through it.
type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

// OutputFileName derives the default export name: "report.xlsx" becomes
// "report_converted.csv".
func OutputFileName(input string) string {
	base := input
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	if base == "" {
		base = "output"
	}
	return base + "_converted.csv"
}
