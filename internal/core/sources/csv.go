package sources

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sheetcsv/internal/core"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	// ctxCheckInterval is how many records are read between context checks.
	ctxCheckInterval = 4096

	// sniffSize bounds how much of the first line is inspected for a separator.
	sniffSize = 64 * 1024
)

// LoadCSV reads delimited text. The first record is the header.
//
// Cells are typed per column: a column whose non-empty cells are all
// integers becomes int, all numbers becomes float, all true/false becomes
// bool, anything else stays text. Empty cells are null.
func LoadCSV(ctx context.Context, r io.Reader, opts core.LoadOptions) (core.Table, error) {
	decoded, err := decodeInput(r, opts.Encoding)
	if err != nil {
		return core.Table{}, err
	}
	br := bufio.NewReaderSize(decoded, sniffSize)

	sep := opts.Separator
	if sep == 0 {
		sep = sniffSeparator(br)
	}

	cr := csv.NewReader(br)
	cr.Comma = sep
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return core.Table{}, core.ErrEmptyFile
	}
	if err != nil {
		return core.Table{}, fmt.Errorf("read csv header: %w", err)
	}

	var records [][]string
	width := len(header)
	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return core.Table{}, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return core.Table{}, fmt.Errorf("read csv: %w", err)
		}
		if isBlankRecord(rec) {
			continue
		}
		width = max(width, len(rec))
		records = append(records, rec)
	}

	names := headerNames(header, width)
	columns := make([]core.Column, width)
	cells := make([]string, len(records))
	for j := range width {
		for i, rec := range records {
			if j < len(rec) {
				cells[i] = rec[j]
			} else {
				cells[i] = ""
			}
		}
		columns[j] = core.NewColumn(names[j], typeCells(cells))
	}
	return core.Table{Columns: columns}, nil
}

// decodeInput converts r to UTF-8. An empty name reads UTF-8 and honors a
// UTF-8 or UTF-16 byte order mark.
func decodeInput(r io.Reader, name string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8", "utf-8-sig":
		return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
	case "latin1", "latin-1", "iso-8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "cp1252", "windows-1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	case "utf-16", "utf16":
		return transform.NewReader(r, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()), nil
	}
	return nil, fmt.Errorf("%w: %q", core.ErrInvalidEncoding, name)
}

// sniffSeparator picks the most frequent candidate separator on the first
// line. Comma wins ties and empty input.
func sniffSeparator(br *bufio.Reader) rune {
	line, _ := br.Peek(sniffSize)
	if i := strings.IndexByte(string(line), '\n'); i >= 0 {
		line = line[:i]
	}
	best, bestCount := ',', strings.Count(string(line), ",")
	for _, c := range []rune{';', '\t', '|'} {
		if n := strings.Count(string(line), string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

func isBlankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// cellKind is the narrowest type every non-empty cell of a column fits.
type cellKind int

const (
	cellInt cellKind = iota
	cellFloat
	cellBool
	cellText
)

// typeCells converts raw cells into values of a single column-wide type.
func typeCells(cells []string) []core.Value {
	kind := detectCellKind(cells)
	values := make([]core.Value, len(cells))
	for i, c := range cells {
		s := strings.TrimSpace(c)
		if s == "" {
			continue
		}
		switch kind {
		case cellInt:
			n, _ := strconv.ParseInt(s, 10, 64)
			values[i] = core.Int(n)
		case cellFloat:
			f, _ := strconv.ParseFloat(s, 64)
			values[i] = core.Float(f)
		case cellBool:
			values[i] = core.Bool(strings.EqualFold(s, "true"))
		default:
			values[i] = core.Text(c)
		}
	}
	return values
}

func detectCellKind(cells []string) cellKind {
	ints, floats, bools, nonEmpty := true, true, true, 0
	for _, c := range cells {
		s := strings.TrimSpace(c)
		if s == "" {
			continue
		}
		nonEmpty++
		if ints {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				ints = false
			}
		}
		if floats && !isFloatLiteral(s) {
			floats = false
		}
		if bools && !strings.EqualFold(s, "true") && !strings.EqualFold(s, "false") {
			bools = false
		}
		if !ints && !floats && !bools {
			return cellText
		}
	}
	switch {
	case nonEmpty == 0:
		return cellText
	case ints:
		return cellInt
	case floats:
		return cellFloat
	case bools:
		return cellBool
	default:
		return cellText
	}
}

// isFloatLiteral accepts decimal and exponent notation but not the special
// spellings ParseFloat also knows ("inf", "nan", hex floats).
func isFloatLiteral(s string) bool {
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' || r == '-' || r == '+' || r == 'e' || r == 'E':
		default:
			return false
		}
	}
	return true
}
