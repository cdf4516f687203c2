// Package sheet reads and writes the spreadsheet files exchanged with
// operations staff. It knows nothing about business schemas: decoding yields
// header-labelled rows of typed cells, encoding writes a flat table.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
)

// ErrMalformedInput matches every *MalformedInputError via errors.Is.
var ErrMalformedInput = errors.New("invalid spreadsheet")

var errNoWorksheet = errors.New("workbook has no worksheets")

// MalformedInputError reports a payload that cannot be read as a spreadsheet.
type MalformedInputError struct {
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid spreadsheet: %s: %v", e.Reason, e.Err)
	}
	return "invalid spreadsheet: " + e.Reason
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

func (e *MalformedInputError) Is(target error) bool { return target == ErrMalformedInput }

// RawRow is one data row keyed by the literal header text of its sheet.
// Values are string, float64, bool, time.Time, or nil for an empty cell.
type RawRow struct {
	headers []string
	values  []any
}

// NewRawRow builds a row from parallel header and value slices.
// Missing trailing values read as nil.
func NewRawRow(headers []string, values []any) RawRow {
	return RawRow{headers: headers, values: values}
}

// Headers returns the header labels in sheet order.
func (r RawRow) Headers() []string { return r.headers }

// At returns the value in column i, or nil when the row is shorter.
func (r RawRow) At(i int) any {
	if i < 0 || i >= len(r.values) {
		return nil
	}
	return r.values[i]
}

// Get returns the value under the first header exactly equal to key.
func (r RawRow) Get(key string) (any, bool) {
	for i, h := range r.headers {
		if h == key {
			return r.At(i), true
		}
	}
	return nil, false
}

// IsBlank reports whether every cell is empty or whitespace.
func (r RawRow) IsBlank() bool {
	for _, v := range r.values {
		switch val := v.(type) {
		case nil:
		case string:
			if strings.TrimSpace(val) != "" {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Sheet is the decoded first worksheet of a workbook.
type Sheet struct {
	Name    string
	Headers []string
	rows    [][]any
}

// Len returns the number of data rows, blank rows included.
func (s *Sheet) Len() int { return len(s.rows) }

// Rows yields data rows in sheet order with their 1-based index
// (the header row is not counted). The sequence can be ranged over again.
func (s *Sheet) Rows() iter.Seq2[int, RawRow] {
	return func(yield func(int, RawRow) bool) {
		for i, vals := range s.rows {
			if !yield(i+1, RawRow{headers: s.Headers, values: vals}) {
				return
			}
		}
	}
}

// Decode parses an .xlsx payload, falling back to the legacy .xls format.
// Only the first worksheet is read; its first row is the header.
func Decode(r io.Reader) (*Sheet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &MalformedInputError{Reason: "read failed", Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &MalformedInputError{Reason: "empty file"}
	}

	s, err := decodeXLSX(data)
	if err == nil {
		return s, nil
	}
	if errors.Is(err, errNoWorksheet) {
		return nil, &MalformedInputError{Reason: "no worksheet", Err: err}
	}

	s, xlsErr := decodeXLS(data)
	if xlsErr == nil {
		return s, nil
	}
	if errors.Is(xlsErr, errNoWorksheet) {
		return nil, &MalformedInputError{Reason: "no worksheet", Err: xlsErr}
	}
	return nil, &MalformedInputError{Reason: "unsupported workbook format", Err: err}
}

func decodeXLSX(data []byte) (*Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	names := f.GetSheetList()
	if len(names) == 0 {
		return nil, errNoWorksheet
	}
	name := names[0]

	// Raw values keep numeric cells (and dates stored as serials) unformatted.
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read rows of %q: %w", name, err)
	}

	s := &Sheet{Name: name}
	if len(rows) == 0 {
		return s, nil
	}
	s.Headers = rows[0]

	for i, row := range rows[1:] {
		excelRow := i + 2
		vals := make([]any, len(s.Headers))
		for c := 0; c < len(row) && c < len(s.Headers); c++ {
			vals[c] = xlsxCell(f, name, c+1, excelRow, row[c])
		}
		s.rows = append(s.rows, vals)
	}
	return s, nil
}

// xlsxCell turns a raw cell string into a typed value using the stored cell type.
func xlsxCell(f *excelize.File, sheet string, col, row int, raw string) any {
	if raw == "" {
		return nil
	}
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return raw
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return raw
	}

	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true")
	case excelize.CellTypeDate:
		if t, ok := parseISOCell(raw); ok {
			return t
		}
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return raw
}

var isoCellLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseISOCell(s string) (time.Time, bool) {
	for _, layout := range isoCellLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// decodeXLS reads BIFF8 workbooks. Cells come back as display text.
func decodeXLS(data []byte) (*Sheet, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if len(wb.GetSheets()) == 0 {
		return nil, errNoWorksheet
	}
	sh, err := wb.GetSheet(0)
	if err != nil {
		return nil, fmt.Errorf("open first .xls sheet: %w", err)
	}

	s := &Sheet{Name: sh.GetName()}
	for i, row := range sh.GetRows() {
		var cells []string
		for _, cell := range row.GetCols() {
			cells = append(cells, cell.GetString())
		}
		if i == 0 {
			s.Headers = cells
			continue
		}
		vals := make([]any, len(s.Headers))
		for c := 0; c < len(cells) && c < len(s.Headers); c++ {
			if cells[c] != "" {
				vals[c] = cells[c]
			}
		}
		s.rows = append(s.rows, vals)
	}
	return s, nil
}
