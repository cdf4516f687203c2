package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
)

var (
	registry   = make(map[string]*ImportSchema)
	registryMu sync.RWMutex
)

// Register adds an import schema to the registry.
// Panics if the entity is already registered or the schema is inconsistent.
func Register(schema ImportSchema) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[schema.Entity]; exists {
		panic(fmt.Sprintf("schema already registered: %s", schema.Entity))
	}
	if err := schema.prepare(); err != nil {
		panic(fmt.Sprintf("schema %s: %v", schema.Entity, err))
	}

	registry[schema.Entity] = &schema
}

// Get returns the schema registered for entity.
func Get(entity string) (*ImportSchema, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	s, ok := registry[entity]
	return s, ok
}

// Lookup is Get with an UnknownEntityError for missing schemas.
func Lookup(entity string) (*ImportSchema, error) {
	s, ok := Get(entity)
	if !ok {
		return nil, &UnknownEntityError{Entity: entity}
	}
	return s, nil
}

// All returns every registered schema sorted by entity key.
func All() []*ImportSchema {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]*ImportSchema, 0, len(registry))
	for _, s := range registry {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Entity < result[j].Entity
	})
	return result
}

// AddAliases appends header aliases to a registered field. Existing aliases
// keep their priority.
func AddAliases(entity, field string, aliases ...string) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	s, ok := registry[entity]
	if !ok {
		return &UnknownEntityError{Entity: entity}
	}
	for i := range s.Fields {
		if s.Fields[i].Name != field {
			continue
		}
		if s.Fields[i].Computed {
			return fmt.Errorf("field %s.%s is computed and cannot be imported", entity, field)
		}
		for _, a := range aliases {
			if a == "" || containsString(s.Fields[i].Aliases, a) {
				continue
			}
			s.Fields[i].Aliases = append(s.Fields[i].Aliases, a)
		}
		return nil
	}
	return fmt.Errorf("unknown field %s.%s", entity, field)
}

// Clear removes all registered schemas.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]*ImportSchema)
}

// prepare fills defaults and checks that every referenced field exists.
func (s *ImportSchema) prepare() error {
	if s.Entity == "" {
		return fmt.Errorf("entity key is required")
	}
	if s.Table == "" {
		s.Table = toSnake(s.Entity)
	}
	if s.SheetName == "" {
		s.SheetName = s.Label
	}
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.DBColumn == "" {
			f.DBColumn = toSnake(f.Name)
		}
		if len(f.Aliases) == 0 && !f.Computed {
			f.Aliases = []string{f.Name}
		}
	}

	check := func(name string) error {
		if _, ok := s.Field(name); !ok {
			return fmt.Errorf("unknown field %q", name)
		}
		return nil
	}
	if err := check(s.Identity); err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	for _, m := range s.Match {
		for _, name := range m {
			if err := check(name); err != nil {
				return fmt.Errorf("match strategy: %w", err)
			}
		}
	}
	if d := s.Derived; d != nil {
		for _, name := range []string{d.Base, d.Secondary, d.Percent, d.Amount, d.Total} {
			if err := check(name); err != nil {
				return fmt.Errorf("derived rule: %w", err)
			}
		}
	}
	if s.Code != nil {
		if err := check(s.Code.Field); err != nil {
			return fmt.Errorf("code rule: %w", err)
		}
	}
	if s.MonthField != "" {
		if err := check(s.MonthField); err != nil {
			return fmt.Errorf("month field: %w", err)
		}
	}
	if e := s.Expiry; e != nil {
		for _, name := range []string{e.DateField, e.StatusField} {
			if err := check(name); err != nil {
				return fmt.Errorf("expiry rule: %w", err)
			}
		}
	}
	for i, c := range s.Export {
		if err := check(c.Field); err != nil {
			return fmt.Errorf("export column: %w", err)
		}
		if c.Header == "" {
			s.Export[i].Header = c.Field
		}
	}
	return nil
}

// Field returns the spec of a canonical field.
func (s *ImportSchema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Aliases returns the header alias table of the importable fields.
func (s *ImportSchema) Aliases() AliasTable {
	t := make(AliasTable, len(s.Fields))
	for _, f := range s.Fields {
		if f.Computed {
			continue
		}
		t[f.Name] = append([]string(nil), f.Aliases...)
	}
	return t
}

// Scoped reports whether records belong to a parent entity.
func (s *ImportSchema) Scoped() bool { return s.Scope != nil }

func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
