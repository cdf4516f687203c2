package core

import (
	"iter"

	"github.com/JonMunkholm/ispcrm/internal/sheet"
)

// Normalize builds a record holding every field of the schema. Fields
// missing from raw take their neutral or default value, and derived
// fields are recomputed.
func (s *ImportSchema) Normalize(raw map[string]any) Record {
	rec := make(Record, len(s.Fields))
	for _, f := range s.Fields {
		if f.Computed {
			rec[f.Name] = NormalizeValue(nil, f)
			continue
		}
		rec[f.Name] = NormalizeValue(raw[f.Name], f)
	}
	s.Derived.Apply(rec)
	return rec
}

// Records binds the sheet headers and yields one normalized record per
// data row. Fully blank rows are dropped without renumbering the rest.
func (s *ImportSchema) Records(sh *sheet.Sheet) (iter.Seq2[int, Record], HeaderBinding) {
	binding := BindHeaders(sh.Headers, s.Aliases())
	seq := func(yield func(int, Record) bool) {
		for i, row := range sh.Rows() {
			if row.IsBlank() {
				continue
			}
			if !yield(i, s.Normalize(binding.Apply(row))) {
				return
			}
		}
	}
	return seq, binding
}

// ExportRow projects an entity onto the export columns.
func (s *ImportSchema) ExportRow(e Entity) []any {
	row := make([]any, len(s.Export))
	for i, c := range s.Export {
		row[i] = exportValue(e.Fields[c.Field])
	}
	return row
}

// exportValue converts a field value to a cell value the encoder accepts.
func exportValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if val == "" {
			return nil
		}
		return val
	case interface{ InexactFloat64() float64 }:
		return val.InexactFloat64()
	default:
		return val
	}
}

// ExportColumns returns the encoder column layout of the schema.
func (s *ImportSchema) ExportColumns() []sheet.Column {
	cols := make([]sheet.Column, len(s.Export))
	for i, c := range s.Export {
		cols[i] = sheet.Column{Header: c.Header, Width: c.Width}
	}
	return cols
}
