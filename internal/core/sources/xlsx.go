package sources

import (
	"context"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/sheetcsv/internal/core"
	"github.com/xuri/excelize/v2"
)

// LoadXLSX reads one sheet of an Excel workbook. Row 1 is the header; each
// following row is a record. Cells keep the type Excel stored: numbers
// become int when whole and float otherwise, date-formatted numbers become
// times, booleans stay booleans and everything else is text.
func LoadXLSX(ctx context.Context, r io.Reader, opts core.LoadOptions) (core.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return core.Table{}, fmt.Errorf("read workbook: %w", err)
	}
	defer f.Close()

	sheet, err := pickSheet(f, opts.Sheet)
	if err != nil {
		return core.Table{}, err
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return core.Table{}, fmt.Errorf("read workbook sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return core.Table{}, core.ErrEmptyFile
	}

	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}

	cr := &cellReader{f: f, sheet: sheet, date1904: uses1904(f), dateStyles: make(map[int]bool)}
	data := rows[1:]
	columns := make([][]core.Value, width)
	for j := range columns {
		columns[j] = make([]core.Value, len(data))
	}

	for i, row := range data {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return core.Table{}, err
			}
		}
		for j, raw := range row {
			// Row i of data is sheet row i+2.
			columns[j][i] = cr.value(j+1, i+2, raw)
		}
	}

	names := headerNames(rows[0], width)
	table := core.Table{Columns: make([]core.Column, width)}
	for j := range width {
		table.Columns[j] = core.NewColumn(names[j], columns[j])
	}
	return table, nil
}

// Sheets lists the sheet names of a workbook in tab order.
func Sheets(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func pickSheet(f *excelize.File, name string) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", core.ErrEmptyFile
	}
	if name == "" {
		return sheets[0], nil
	}
	for _, s := range sheets {
		if s == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", core.ErrSheetNotFound, name)
}

func uses1904(f *excelize.File) bool {
	props, err := f.GetWorkbookProps()
	if err != nil || props.Date1904 == nil {
		return false
	}
	return *props.Date1904
}

// cellReader types individual cells of one sheet.
type cellReader struct {
	f          *excelize.File
	sheet      string
	date1904   bool
	dateStyles map[int]bool // style index -> has a date number format
}

// value types the raw cell text found at column col, row row (1-based).
func (c *cellReader) value(col, row int, raw string) core.Value {
	if raw == "" {
		return core.Null()
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return core.Text(raw)
	}
	typ, err := c.f.GetCellType(c.sheet, cell)
	if err != nil {
		return core.Text(raw)
	}

	switch typ {
	case excelize.CellTypeBool:
		return core.Bool(raw == "1" || strings.EqualFold(raw, "true"))
	case excelize.CellTypeError:
		return core.Null()
	case excelize.CellTypeDate:
		if t, ok := parseISODate(raw); ok {
			return core.Time(t)
		}
		return core.Text(raw)
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return core.Text(raw)
		}
		if c.isDateCell(cell) {
			t, err := excelize.ExcelDateToTime(f, c.date1904)
			if err != nil {
				return core.Null()
			}
			return core.Time(t)
		}
		return number(f)
	default:
		return core.Text(raw)
	}
}

// number keeps whole values as integers.
func number(f float64) core.Value {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return core.Int(int64(f))
	}
	return core.Float(f)
}

func (c *cellReader) isDateCell(cell string) bool {
	idx, err := c.f.GetCellStyle(c.sheet, cell)
	if err != nil || idx == 0 {
		return false
	}
	if isDate, ok := c.dateStyles[idx]; ok {
		return isDate
	}
	isDate := false
	if style, err := c.f.GetStyle(idx); err == nil && style != nil {
		isDate = isDateFormat(style.NumFmt, style.CustomNumFmt)
	}
	c.dateStyles[idx] = isDate
	return isDate
}

// builtinDateFormats are the built-in number format IDs that render dates or times.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	27: true, 30: true, 36: true, 45: true, 46: true, 47: true, 50: true, 57: true,
}

var (
	quotedOrEscaped = regexp.MustCompile(`"[^"]*"|\\.|\[[^\]]*\]`)
	dateTokens      = regexp.MustCompile(`(?i)[ymdhs]`)
)

func isDateFormat(id int, custom *string) bool {
	if custom != nil && *custom != "" {
		code := quotedOrEscaped.ReplaceAllString(*custom, "")
		return dateTokens.MatchString(code)
	}
	return builtinDateFormats[id]
}

func parseISODate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
