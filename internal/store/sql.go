package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/ispcrm/internal/core"
)

// WhereBuilder builds parameterized WHERE clauses.
// Conditions are ANDed together in the order they are added.
type WhereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

// NewWhereBuilder creates a builder whose first placeholder is $1.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{argIndex: 1}
}

// NewWhereBuilderAt creates a builder whose first placeholder is $start,
// for statements that bind other parameters first.
func NewWhereBuilderAt(start int) *WhereBuilder {
	return &WhereBuilder{argIndex: start}
}

// Add appends "column = $n". The column is used verbatim.
func (w *WhereBuilder) Add(column string, value any) {
	w.conditions = append(w.conditions, fmt.Sprintf("%s = $%d", column, w.argIndex))
	w.args = append(w.args, value)
	w.argIndex++
}

// AddMonth appends a calendar-month match on a date column, any year.
func (w *WhereBuilder) AddMonth(column string, month time.Month) {
	w.conditions = append(w.conditions, fmt.Sprintf("EXTRACT(MONTH FROM %s) = $%d", column, w.argIndex))
	w.args = append(w.args, int(month))
	w.argIndex++
}

// AddBefore appends "column < $n".
func (w *WhereBuilder) AddBefore(column string, t time.Time) {
	w.conditions = append(w.conditions, fmt.Sprintf("%s < $%d", column, w.argIndex))
	w.args = append(w.args, t)
	w.argIndex++
}

// AddDistinct appends "column IS DISTINCT FROM $n", which also matches NULL.
func (w *WhereBuilder) AddDistinct(column string, value any) {
	w.conditions = append(w.conditions, fmt.Sprintf("%s IS DISTINCT FROM $%d", column, w.argIndex))
	w.args = append(w.args, value)
	w.argIndex++
}

// NextArgIndex returns the next placeholder number.
func (w *WhereBuilder) NextArgIndex() int {
	return w.argIndex
}

// Build returns the clause with a leading " WHERE " and its arguments,
// or "" and nil when no condition was added.
func (w *WhereBuilder) Build() (string, []any) {
	if len(w.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(w.conditions, " AND "), w.args
}

// quoteIdentifier quotes a SQL identifier to prevent injection.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// fieldColumns returns the quoted storage columns of every field, in
// schema order.
func fieldColumns(schema *core.ImportSchema) []string {
	cols := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		cols[i] = quoteIdentifier(f.DBColumn)
	}
	return cols
}

// scopeColumn returns the quoted parent column, or "" for unscoped schemas.
func scopeColumn(schema *core.ImportSchema) string {
	if !schema.Scoped() {
		return ""
	}
	return quoteIdentifier(schema.Scope.Column)
}

// selectList is the column list read back into an Entity:
// id, scope (or NULL), fields..., created_at, updated_at.
func selectList(schema *core.ImportSchema) string {
	scope := "NULL::text"
	if col := scopeColumn(schema); col != "" {
		scope = col + "::text"
	}
	parts := append([]string{"id::text", scope}, fieldColumns(schema)...)
	parts = append(parts, "created_at", "updated_at")
	return strings.Join(parts, ", ")
}

// buildInsert returns the INSERT statement for schema and its arguments.
func buildInsert(schema *core.ImportSchema, scope string, fields core.Record) (string, []any) {
	cols := fieldColumns(schema)
	args := make([]any, 0, len(cols)+1)
	if col := scopeColumn(schema); col != "" {
		cols = append([]string{col}, cols...)
		args = append(args, core.ToPgUUID(scope))
	}
	for _, f := range schema.Fields {
		args = append(args, core.ToPgValue(fields[f.Name], f))
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		quoteIdentifier(schema.Table),
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		selectList(schema),
	)
	return query, args
}

// buildUpdate returns the UPDATE statement that overwrites every field of
// the entity with the given ID.
func buildUpdate(schema *core.ImportSchema, id string, fields core.Record) (string, []any) {
	sets := make([]string, len(schema.Fields))
	args := make([]any, 0, len(schema.Fields)+1)
	for i, f := range schema.Fields {
		sets[i] = fmt.Sprintf("%s = $%d", quoteIdentifier(f.DBColumn), i+1)
		args = append(args, core.ToPgValue(fields[f.Name], f))
	}
	args = append(args, core.ToPgUUID(id))
	query := fmt.Sprintf("UPDATE %s SET %s, updated_at = now() WHERE id = $%d RETURNING %s",
		quoteIdentifier(schema.Table),
		strings.Join(sets, ", "),
		len(args),
		selectList(schema),
	)
	return query, args
}

// buildFindByKey returns the lookup of at most two entities in scope whose
// key fields are equal to key. Unknown key fields are ignored.
func buildFindByKey(schema *core.ImportSchema, scope string, key core.Record) (string, []any) {
	wb := NewWhereBuilder()
	if col := scopeColumn(schema); col != "" {
		wb.Add(col, core.ToPgUUID(scope))
	}
	for _, f := range schema.Fields {
		v, ok := key[f.Name]
		if !ok {
			continue
		}
		wb.Add(quoteIdentifier(f.DBColumn), core.ToPgValue(v, f))
	}
	where, args := wb.Build()
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY created_at, id LIMIT 2",
		selectList(schema), quoteIdentifier(schema.Table), where)
	return query, args
}

// buildList returns the export query for filter.
func buildList(schema *core.ImportSchema, filter core.ListFilter) (string, []any) {
	wb := NewWhereBuilder()
	if col := scopeColumn(schema); col != "" && filter.Scope != "" {
		wb.Add(col, core.ToPgUUID(filter.Scope))
	}
	if filter.Month != nil && filter.MonthField != "" {
		if f, ok := schema.Field(filter.MonthField); ok {
			wb.AddMonth(quoteIdentifier(f.DBColumn), *filter.Month)
		}
	}
	where, args := wb.Build()
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY created_at, id",
		selectList(schema), quoteIdentifier(schema.Table), where)
	return query, args
}

// buildExpire returns the bulk status update of the schema's expiry rule.
func buildExpire(schema *core.ImportSchema, now time.Time) (string, []any, error) {
	rule := schema.Expiry
	if rule == nil {
		return "", nil, fmt.Errorf("%s has no expiry rule", schema.Entity)
	}
	dateField, _ := schema.Field(rule.DateField)
	statusField, _ := schema.Field(rule.StatusField)

	wb := NewWhereBuilderAt(2)
	// A date expires from its first instant, so today's expiries are included.
	wb.AddBefore(quoteIdentifier(dateField.DBColumn)+"::timestamptz", now)
	wb.AddDistinct(quoteIdentifier(statusField.DBColumn), rule.Status)
	where, args := wb.Build()

	query := fmt.Sprintf("UPDATE %s SET %s = $1, updated_at = now()%s",
		quoteIdentifier(schema.Table),
		quoteIdentifier(statusField.DBColumn),
		where,
	)
	return query, append([]any{rule.Status}, args...), nil
}
