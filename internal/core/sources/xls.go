package sources

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf16"

	"github.com/JonMunkholm/sheetcsv/internal/core"
	"github.com/richardlehane/mscfb"
	"github.com/xuri/excelize/v2"
)

// BIFF8 record types read by the legacy loader.
const (
	recFormula    = 0x0006
	recEOF        = 0x000A
	recDateMode   = 0x0022
	recFilePass   = 0x002F
	recContinue   = 0x003C
	recBoundSheet = 0x0085
	recMulRK      = 0x00BD
	recSST        = 0x00FC
	recLabelSST   = 0x00FD
	recRString    = 0x00D6
	recXF         = 0x00E0
	recNumber     = 0x0203
	recLabel      = 0x0204
	recBoolErr    = 0x0205
	recString     = 0x0207
	recRK         = 0x027E
	recFormat     = 0x041E
	recBOF        = 0x0809
)

const (
	biff8Version  = 0x0600
	bofGlobals    = 0x0005
	bofWorksheet  = 0x0010
	sheetTypeWork = 0x00
)

var (
	errNotBIFF8  = errors.New("only Excel 97-2003 (BIFF8) .xls workbooks are supported")
	errEncrypted = errors.New("workbook is password protected")
	errTruncated = errors.New("truncated record")
)

// LoadXLS reads one sheet of a legacy Excel 97-2003 workbook. Cells are
// typed the same way as LoadXLSX: whole numbers become int, other numbers
// float, date-formatted numbers times, booleans stay booleans and strings
// are text. Error cells and empty strings are null.
func LoadXLS(ctx context.Context, r io.Reader, opts core.LoadOptions) (core.Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return core.Table{}, fmt.Errorf("read workbook: %w", err)
	}
	book, err := openBIFF(raw)
	if err != nil {
		return core.Table{}, fmt.Errorf("read workbook: %w", err)
	}

	sheet, err := book.pickSheet(opts.Sheet)
	if err != nil {
		return core.Table{}, err
	}
	grid, err := book.readSheet(ctx, sheet)
	if err != nil {
		return core.Table{}, err
	}
	if grid.rows == 0 {
		return core.Table{}, core.ErrEmptyFile
	}

	header := make([]string, grid.width)
	data := max(grid.rows-1, 0)
	columns := make([][]core.Value, grid.width)
	for j := range columns {
		columns[j] = make([]core.Value, data)
	}
	for _, c := range grid.cells {
		if c.row == 0 {
			header[c.col] = core.FormatValue(c.value)
			continue
		}
		columns[c.col][c.row-1] = c.value
	}

	names := headerNames(header, grid.width)
	table := core.Table{Columns: make([]core.Column, grid.width)}
	for j := range grid.width {
		table.Columns[j] = core.NewColumn(names[j], columns[j])
	}
	return table, nil
}

// XLSSheets lists the worksheet names of a legacy workbook in tab order.
func XLSSheets(r io.Reader) ([]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	book, err := openBIFF(raw)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	names := make([]string, len(book.sheets))
	for i, s := range book.sheets {
		names[i] = s.name
	}
	return names, nil
}

// biffBook holds the workbook stream and the globals needed to type cells.
type biffBook struct {
	stream    []byte
	sheets    []biffSheet
	sst       []string
	xfFormats []int          // XF index -> number format id
	formats   map[int]string // custom number formats by id
	date1904  bool
	dateXF    map[int]bool
}

type biffSheet struct {
	name   string
	offset int // position of the sheet's BOF in the stream
}

type biffRecord struct {
	typ  uint16
	data []byte
}

// openBIFF extracts the Workbook stream from the compound file in raw and
// reads its globals substream.
func openBIFF(raw []byte) (*biffBook, error) {
	doc, err := mscfb.New(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	var stream []byte
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if entry.Name != "Workbook" {
			continue
		}
		if stream, err = io.ReadAll(entry); err != nil {
			return nil, err
		}
		break
	}
	if stream == nil {
		// BIFF5 and older keep a "Book" stream instead.
		return nil, errNotBIFF8
	}

	book := &biffBook{stream: stream, formats: make(map[int]string), dateXF: make(map[int]bool)}
	if err := book.readGlobals(); err != nil {
		return nil, err
	}
	return book, nil
}

// record reads the record at off and returns it with the next offset.
func (b *biffBook) record(off int) (biffRecord, int, error) {
	if off+4 > len(b.stream) {
		return biffRecord{}, 0, io.ErrUnexpectedEOF
	}
	typ := binary.LittleEndian.Uint16(b.stream[off:])
	size := int(binary.LittleEndian.Uint16(b.stream[off+2:]))
	end := off + 4 + size
	if end > len(b.stream) {
		return biffRecord{}, 0, io.ErrUnexpectedEOF
	}
	return biffRecord{typ: typ, data: b.stream[off+4 : end]}, end, nil
}

func (b *biffBook) readGlobals() error {
	rec, off, err := b.record(0)
	if err != nil {
		return err
	}
	if rec.typ != recBOF || len(rec.data) < 4 ||
		binary.LittleEndian.Uint16(rec.data) != biff8Version ||
		binary.LittleEndian.Uint16(rec.data[2:]) != bofGlobals {
		return errNotBIFF8
	}

	var sst [][]byte
	inSST := false
	for {
		rec, off, err = b.record(off)
		if err != nil {
			return err
		}
		if rec.typ == recContinue && inSST {
			sst = append(sst, rec.data)
			continue
		}
		inSST = false

		switch rec.typ {
		case recEOF:
			if sst != nil {
				strs, err := readSST(sst)
				if err != nil {
					return fmt.Errorf("shared strings: %w", err)
				}
				b.sst = strs
			}
			return nil
		case recFilePass:
			return errEncrypted
		case recDateMode:
			b.date1904 = len(rec.data) >= 2 && binary.LittleEndian.Uint16(rec.data) == 1
		case recFormat:
			if len(rec.data) < 5 {
				return errTruncated
			}
			id := int(binary.LittleEndian.Uint16(rec.data))
			n := int(binary.LittleEndian.Uint16(rec.data[2:]))
			s, _, err := decodeChars(rec.data[5:], n, rec.data[4]&0x01 != 0)
			if err != nil {
				return err
			}
			b.formats[id] = s
		case recXF:
			if len(rec.data) < 4 {
				return errTruncated
			}
			b.xfFormats = append(b.xfFormats, int(binary.LittleEndian.Uint16(rec.data[2:])))
		case recBoundSheet:
			if len(rec.data) < 8 {
				return errTruncated
			}
			if rec.data[5] != sheetTypeWork {
				continue
			}
			name, _, err := decodeChars(rec.data[8:], int(rec.data[6]), rec.data[7]&0x01 != 0)
			if err != nil {
				return err
			}
			b.sheets = append(b.sheets, biffSheet{name: name, offset: int(binary.LittleEndian.Uint32(rec.data))})
		case recSST:
			sst = [][]byte{rec.data}
			inSST = true
		}
	}
}

func (b *biffBook) pickSheet(name string) (biffSheet, error) {
	if len(b.sheets) == 0 {
		return biffSheet{}, core.ErrEmptyFile
	}
	if name == "" {
		return b.sheets[0], nil
	}
	for _, s := range b.sheets {
		if s.name == name {
			return s, nil
		}
	}
	return biffSheet{}, fmt.Errorf("%w: %q", core.ErrSheetNotFound, name)
}

// isDateXF reports whether cells with extended format xf render as dates.
func (b *biffBook) isDateXF(xf int) bool {
	if isDate, ok := b.dateXF[xf]; ok {
		return isDate
	}
	isDate := false
	if xf >= 0 && xf < len(b.xfFormats) {
		id := b.xfFormats[xf]
		if custom, ok := b.formats[id]; ok {
			isDate = isDateFormat(id, &custom)
		} else {
			isDate = isDateFormat(id, nil)
		}
	}
	b.dateXF[xf] = isDate
	return isDate
}

// number types a numeric cell, honoring date formats.
func (b *biffBook) number(xf int, f float64) core.Value {
	if !b.isDateXF(xf) {
		return number(f)
	}
	t, err := excelize.ExcelDateToTime(f, b.date1904)
	if err != nil {
		return core.Null()
	}
	return core.Time(t)
}

type biffCell struct {
	row, col int
	value    core.Value
}

// biffGrid is the non-null content of one worksheet.
type biffGrid struct {
	cells []biffCell
	rows  int // highest used row + 1
	width int // highest used column + 1
}

func (g *biffGrid) add(row, col int, v core.Value) {
	if v.IsNull() || (v.Kind == core.KindText && v.Text == "") {
		return
	}
	g.cells = append(g.cells, biffCell{row: row, col: col, value: v})
	g.rows = max(g.rows, row+1)
	g.width = max(g.width, col+1)
}

func (b *biffBook) readSheet(ctx context.Context, sheet biffSheet) (biffGrid, error) {
	var grid biffGrid
	rec, off, err := b.record(sheet.offset)
	if err != nil {
		return grid, err
	}
	if rec.typ != recBOF || len(rec.data) < 4 || binary.LittleEndian.Uint16(rec.data[2:]) != bofWorksheet {
		return grid, fmt.Errorf("sheet %q: %w", sheet.name, errNotBIFF8)
	}

	// A string formula's value follows in a STRING record.
	pendingRow, pendingCol := -1, -1
	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return grid, err
			}
		}
		rec, off, err = b.record(off)
		if err != nil {
			return grid, fmt.Errorf("sheet %q: %w", sheet.name, err)
		}
		d := rec.data

		switch rec.typ {
		case recEOF:
			return grid, nil
		case recNumber:
			if len(d) < 14 {
				return grid, errTruncated
			}
			row, col, xf := cellRef(d)
			grid.add(row, col, b.number(xf, math.Float64frombits(binary.LittleEndian.Uint64(d[6:]))))
		case recRK:
			if len(d) < 10 {
				return grid, errTruncated
			}
			row, col, xf := cellRef(d)
			grid.add(row, col, b.number(xf, decodeRK(binary.LittleEndian.Uint32(d[6:]))))
		case recMulRK:
			if len(d) < 6 {
				return grid, errTruncated
			}
			row := int(binary.LittleEndian.Uint16(d))
			first := int(binary.LittleEndian.Uint16(d[2:]))
			for i, p := 0, 4; p+6 <= len(d)-2; i, p = i+1, p+6 {
				xf := int(binary.LittleEndian.Uint16(d[p:]))
				grid.add(row, first+i, b.number(xf, decodeRK(binary.LittleEndian.Uint32(d[p+2:]))))
			}
		case recLabelSST:
			if len(d) < 10 {
				return grid, errTruncated
			}
			row, col, _ := cellRef(d)
			if i := int(binary.LittleEndian.Uint32(d[6:])); i < len(b.sst) {
				grid.add(row, col, core.Text(b.sst[i]))
			}
		case recLabel, recRString:
			if len(d) < 9 {
				return grid, errTruncated
			}
			row, col, _ := cellRef(d)
			s, _, err := decodeChars(d[9:], int(binary.LittleEndian.Uint16(d[6:])), d[8]&0x01 != 0)
			if err != nil {
				return grid, err
			}
			grid.add(row, col, core.Text(s))
		case recBoolErr:
			if len(d) < 8 {
				return grid, errTruncated
			}
			row, col, _ := cellRef(d)
			if d[7] == 0 {
				grid.add(row, col, core.Bool(d[6] != 0))
			}
		case recFormula:
			if len(d) < 14 {
				return grid, errTruncated
			}
			row, col, xf := cellRef(d)
			val := d[6:14]
			if val[6] != 0xFF || val[7] != 0xFF {
				grid.add(row, col, b.number(xf, math.Float64frombits(binary.LittleEndian.Uint64(val))))
				continue
			}
			switch val[0] {
			case 0:
				pendingRow, pendingCol = row, col
			case 1:
				grid.add(row, col, core.Bool(val[2] != 0))
			}
		case recString:
			if pendingRow < 0 || len(d) < 3 {
				continue
			}
			s, _, err := decodeChars(d[3:], int(binary.LittleEndian.Uint16(d)), d[2]&0x01 != 0)
			if err != nil {
				return grid, err
			}
			grid.add(pendingRow, pendingCol, core.Text(s))
			pendingRow, pendingCol = -1, -1
		}
	}
}

func cellRef(d []byte) (row, col, xf int) {
	return int(binary.LittleEndian.Uint16(d)),
		int(binary.LittleEndian.Uint16(d[2:])),
		int(binary.LittleEndian.Uint16(d[4:]))
}

// decodeRK unpacks the compressed number format used by RK and MULRK.
func decodeRK(rk uint32) float64 {
	var f float64
	if rk&0x02 != 0 {
		f = float64(int32(rk) >> 2)
	} else {
		f = math.Float64frombits(uint64(rk&0xFFFFFFFC) << 32)
	}
	if rk&0x01 != 0 {
		f /= 100
	}
	return f
}

// decodeChars reads n characters stored as Latin-1 bytes or UTF-16LE units
// and returns the string with the number of bytes consumed.
func decodeChars(b []byte, n int, wide bool) (string, int, error) {
	size := n
	if wide {
		size = 2 * n
	}
	if size > len(b) {
		return "", 0, errTruncated
	}
	units := make([]uint16, n)
	for i := range units {
		if wide {
			units[i] = binary.LittleEndian.Uint16(b[2*i:])
		} else {
			units[i] = uint16(b[i])
		}
	}
	return string(utf16.Decode(units)), size, nil
}

// sstReader walks the SST record and its CONTINUE records as one stream.
// A string's characters may break across records; each continuation then
// starts with a flag byte giving the width of the remaining characters.
type sstReader struct {
	segs [][]byte
	seg  int
	pos  int
}

func (r *sstReader) advance() error {
	for r.pos >= len(r.segs[r.seg]) {
		if r.seg+1 >= len(r.segs) {
			return errTruncated
		}
		r.seg++
		r.pos = 0
	}
	return nil
}

func (r *sstReader) bytes(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		if err := r.advance(); err != nil {
			return nil, err
		}
		take := min(n-len(out), len(r.segs[r.seg])-r.pos)
		out = append(out, r.segs[r.seg][r.pos:r.pos+take]...)
		r.pos += take
	}
	return out, nil
}

func (r *sstReader) skip(n int) error {
	_, err := r.bytes(n)
	return err
}

func (r *sstReader) chars(n int, wide bool) (string, error) {
	units := make([]uint16, 0, n)
	for len(units) < n {
		if r.pos >= len(r.segs[r.seg]) {
			if r.seg+1 >= len(r.segs) {
				return "", errTruncated
			}
			r.seg++
			r.pos = 0
			flag, err := r.bytes(1)
			if err != nil {
				return "", err
			}
			wide = flag[0]&0x01 != 0
		}
		seg := r.segs[r.seg]
		for len(units) < n && r.pos < len(seg) {
			if wide {
				if r.pos+2 > len(seg) {
					return "", errTruncated
				}
				units = append(units, binary.LittleEndian.Uint16(seg[r.pos:]))
				r.pos += 2
			} else {
				units = append(units, uint16(seg[r.pos]))
				r.pos++
			}
		}
	}
	return string(utf16.Decode(units)), nil
}

// readSST decodes the shared string table.
func readSST(segs [][]byte) ([]string, error) {
	r := &sstReader{segs: segs}
	head, err := r.bytes(8)
	if err != nil {
		return nil, err
	}
	unique := int(binary.LittleEndian.Uint32(head[4:]))

	strs := make([]string, 0, min(unique, 1<<16))
	for range unique {
		h, err := r.bytes(3)
		if err != nil {
			return nil, err
		}
		n := int(binary.LittleEndian.Uint16(h))
		flags := h[2]

		runs, ext := 0, 0
		if flags&0x08 != 0 {
			b, err := r.bytes(2)
			if err != nil {
				return nil, err
			}
			runs = int(binary.LittleEndian.Uint16(b))
		}
		if flags&0x04 != 0 {
			b, err := r.bytes(4)
			if err != nil {
				return nil, err
			}
			ext = int(binary.LittleEndian.Uint32(b))
		}

		s, err := r.chars(n, flags&0x01 != 0)
		if err != nil {
			return nil, err
		}
		if err := r.skip(4*runs + ext); err != nil {
			return nil, err
		}
		strs = append(strs, s)
	}
	return strs, nil
}
