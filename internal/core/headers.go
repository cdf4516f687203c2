package core

import (
	"sort"
	"strings"
	"unicode"

	"github.com/JonMunkholm/ispcrm/internal/sheet"
	"github.com/schollz/closestmatch"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// AliasTable maps each canonical field to its accepted sheet headers in
// priority order.
type AliasTable map[string][]string

// Resolve maps one row onto canonical fields. An exact alias match wins;
// otherwise the first row header equal to an alias after normalization is
// used. Fields matched by neither are absent from the result.
func Resolve(row sheet.RawRow, aliases AliasTable) map[string]any {
	b := BindHeaders(row.Headers(), aliases)
	return b.Apply(row)
}

// HeaderBinding is the column index of every resolved field of one sheet.
type HeaderBinding struct {
	columns map[string]int
	headers []string
}

// BindHeaders resolves the header row once so every row of a sheet shares
// the same field-to-column mapping.
func BindHeaders(headers []string, aliases AliasTable) HeaderBinding {
	b := HeaderBinding{columns: make(map[string]int, len(aliases)), headers: headers}

	exact := make(map[string]int, len(headers))
	normalized := make([]string, len(headers))
	for i, h := range headers {
		if _, seen := exact[h]; !seen {
			exact[h] = i
		}
		normalized[i] = normalizeHeader(h)
	}

	for field, list := range aliases {
		if col, ok := exactColumn(exact, list); ok {
			b.columns[field] = col
			continue
		}

		wanted := make(map[string]struct{}, len(list))
		for _, a := range list {
			if n := normalizeHeader(a); n != "" {
				wanted[n] = struct{}{}
			}
		}
		for i, n := range normalized {
			if _, ok := wanted[n]; ok {
				b.columns[field] = i
				break
			}
		}
	}
	return b
}

func exactColumn(exact map[string]int, aliases []string) (int, bool) {
	for _, a := range aliases {
		if col, ok := exact[a]; ok {
			return col, true
		}
	}
	return 0, false
}

// Apply returns the raw value of every bound field.
func (b HeaderBinding) Apply(row sheet.RawRow) map[string]any {
	out := make(map[string]any, len(b.columns))
	for field, col := range b.columns {
		out[field] = row.At(col)
	}
	return out
}

// Column returns the column bound to field.
func (b HeaderBinding) Column(field string) (int, bool) {
	col, ok := b.columns[field]
	return col, ok
}

// Unbound returns the non-empty headers no field was bound to, in sheet order.
func (b HeaderBinding) Unbound() []string {
	used := make(map[int]bool, len(b.columns))
	for _, col := range b.columns {
		used[col] = true
	}
	var out []string
	for i, h := range b.headers {
		if used[i] || strings.TrimSpace(h) == "" {
			continue
		}
		out = append(out, h)
	}
	return out
}

// normalizeHeader folds compatibility forms, drops all whitespace and uppercases.
func normalizeHeader(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return cases.Upper(language.Und).String(s)
}

// suggestHeaders pairs each unbound header with the closest known alias.
func suggestHeaders(unbound []string, aliases AliasTable) []UnmappedHeader {
	if len(unbound) == 0 {
		return []UnmappedHeader{}
	}

	byNorm := make(map[string]string)
	for _, list := range aliases {
		for _, a := range list {
			n := normalizeHeader(a)
			if n == "" {
				continue
			}
			if _, ok := byNorm[n]; !ok {
				byNorm[n] = strings.Join(strings.Fields(a), " ")
			}
		}
	}
	keys := make([]string, 0, len(byNorm))
	for k := range byNorm {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var cm *closestmatch.ClosestMatch
	if len(keys) > 0 {
		cm = closestmatch.New(keys, []int{2, 3})
	}

	out := make([]UnmappedHeader, 0, len(unbound))
	for _, h := range unbound {
		u := UnmappedHeader{Header: h}
		if cm != nil {
			if best := cm.Closest(normalizeHeader(h)); best != "" {
				u.Suggestion = byNorm[best]
			}
		}
		out = append(out, u)
	}
	return out
}
