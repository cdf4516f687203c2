package sheet

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of the workbooks produced by Encode.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const defaultSheetName = "Sheet1"

// Column describes one output column. Width 0 sizes the column from its header.
type Column struct {
	Header string
	Width  float64
}

// Encode writes a single-worksheet workbook: a bold header row followed by
// rows in the given order. Cell values may be string, bool, any integer or
// float type, time.Time (rendered as yyyy-mm-dd) or nil (left empty).
// An empty rows slice still yields a valid workbook with the header row.
func Encode(sheetName string, columns []Column, rows [][]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if sheetName == "" {
		sheetName = defaultSheetName
	}
	if sheetName != defaultSheetName {
		if err := f.SetSheetName(defaultSheetName, sheetName); err != nil {
			return nil, fmt.Errorf("rename sheet: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E0E0E0"}},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	dateFmt := "yyyy-mm-dd"
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	if err != nil {
		return nil, fmt.Errorf("date style: %w", err)
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, col.Header); err != nil {
			return nil, fmt.Errorf("write header %q: %w", col.Header, err)
		}
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheetName, name, name, columnWidth(col)); err != nil {
			return nil, err
		}
	}
	if len(columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(columns), 1)
		if err := f.SetCellStyle(sheetName, "A1", last, headerStyle); err != nil {
			return nil, fmt.Errorf("style header: %w", err)
		}
	}

	for r, row := range rows {
		for c, v := range row {
			if c >= len(columns) {
				break
			}
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, err
			}
			if t, ok := v.(time.Time); ok {
				if t.IsZero() {
					continue
				}
				if err := f.SetCellValue(sheetName, cell, t.UTC()); err != nil {
					return nil, fmt.Errorf("write %s: %w", cell, err)
				}
				if err := f.SetCellStyle(sheetName, cell, cell, dateStyle); err != nil {
					return nil, err
				}
				continue
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, fmt.Errorf("write %s: %w", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidth(col Column) float64 {
	if col.Width > 0 {
		return col.Width
	}
	w := float64(utf8.RuneCountInString(col.Header)) + 4
	if w < 12 {
		w = 12
	}
	return w
}
