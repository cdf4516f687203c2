package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/ispcrm/internal/core"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Memory is a Store held in process memory. It backs dry runs and tests.
type Memory struct {
	mu       sync.RWMutex
	parents  map[string]map[string]bool // parent table -> id
	entities map[string][]*core.Entity  // entity key -> rows in insertion order
	audits   []core.AuditEntry
	now      func() time.Time
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		parents:  make(map[string]map[string]bool),
		entities: make(map[string][]*core.Entity),
		now:      time.Now,
	}
}

// AddParent registers a cluster or client group. An empty id gets a new UUID.
func (m *Memory) AddParent(table, id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		id = uuid.NewString()
	}
	if m.parents[table] == nil {
		m.parents[table] = make(map[string]bool)
	}
	m.parents[table][id] = true
	return id
}

// Audits returns a copy of the audit entries written so far.
func (m *Memory) Audits() []core.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]core.AuditEntry(nil), m.audits...)
}

func (m *Memory) FindByKey(_ context.Context, schema *core.ImportSchema, scope string, key core.Record) ([]core.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.Entity
	for _, e := range m.entities[schema.Entity] {
		if e.Scope != scope || !matchesKey(e.Fields, key) {
			continue
		}
		out = append(out, copyEntity(e))
		if len(out) == 2 {
			break
		}
	}
	return out, nil
}

func (m *Memory) Create(_ context.Context, schema *core.ImportSchema, scope string, fields core.Record) (*core.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	e := &core.Entity{
		ID:        uuid.NewString(),
		Scope:     scope,
		Fields:    fields.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.entities[schema.Entity] = append(m.entities[schema.Entity], e)
	out := copyEntity(e)
	return &out, nil
}

func (m *Memory) Update(_ context.Context, schema *core.ImportSchema, id string, fields core.Record) (*core.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.find(schema, id)
	if e == nil {
		return nil, &core.NotFoundError{Entity: schema.Entity, ID: id}
	}
	e.Fields = fields.Clone()
	e.UpdatedAt = m.now().UTC()
	out := copyEntity(e)
	return &out, nil
}

func (m *Memory) Get(_ context.Context, schema *core.ImportSchema, id string) (*core.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e := m.find(schema, id)
	if e == nil {
		return nil, &core.NotFoundError{Entity: schema.Entity, ID: id}
	}
	out := copyEntity(e)
	return &out, nil
}

func (m *Memory) CountAll(_ context.Context, schema *core.ImportSchema) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities[schema.Entity]), nil
}

func (m *Memory) FindParent(_ context.Context, schema *core.ImportSchema, scope string) (bool, error) {
	if !schema.Scoped() {
		return true, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parents[schema.Scope.Parent][scope], nil
}

func (m *Memory) List(_ context.Context, schema *core.ImportSchema, filter core.ListFilter) ([]core.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []core.Entity{}
	for _, e := range m.entities[schema.Entity] {
		if filter.Scope != "" && e.Scope != filter.Scope {
			continue
		}
		if filter.Month != nil && filter.MonthField != "" {
			t, ok := e.Fields[filter.MonthField].(time.Time)
			if !ok || t.Month() != *filter.Month {
				continue
			}
		}
		out = append(out, copyEntity(e))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) ExpireBefore(_ context.Context, schema *core.ImportSchema, now time.Time) (int64, error) {
	rule := schema.Expiry
	if rule == nil {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, e := range m.entities[schema.Entity] {
		t, ok := e.Fields[rule.DateField].(time.Time)
		if !ok || !t.Before(now) {
			continue
		}
		if s, _ := e.Fields[rule.StatusField].(string); s == rule.Status {
			continue
		}
		e.Fields = e.Fields.Clone()
		e.Fields[rule.StatusField] = rule.Status
		e.UpdatedAt = m.now().UTC()
		n++
	}
	return n, nil
}

func (m *Memory) InsertAudit(_ context.Context, entry core.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, entry)
	return nil
}

func (m *Memory) find(schema *core.ImportSchema, id string) *core.Entity {
	for _, e := range m.entities[schema.Entity] {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func copyEntity(e *core.Entity) core.Entity {
	out := *e
	out.Fields = e.Fields.Clone()
	return out
}

func matchesKey(fields, key core.Record) bool {
	for k, want := range key {
		if !equalValue(fields[k], want) {
			return false
		}
	}
	return true
}

// equalValue compares normalized values the way the database would.
func equalValue(a, b any) bool {
	switch av := a.(type) {
	case decimal.Decimal:
		bv, ok := b.(decimal.Decimal)
		return ok && av.Equal(bv)
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	default:
		return a == nil && b == nil
	}
}
