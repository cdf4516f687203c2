package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory Store for core tests. The real in-memory store
// lives in internal/store, which imports this package.
type fakeStore struct {
	mu       sync.Mutex
	parents  map[string]bool
	entities map[string][]*Entity
	audits   []AuditEntry
	seq      int

	createErr error
	updateErr error
	findErr   error
	auditErr  error
}

func newFakeStore(parents ...string) *fakeStore {
	f := &fakeStore{
		parents:  make(map[string]bool),
		entities: make(map[string][]*Entity),
	}
	for _, p := range parents {
		f.parents[p] = true
	}
	return f
}

func (f *fakeStore) FindByKey(_ context.Context, schema *ImportSchema, scope string, key Record) ([]Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []Entity
	for _, e := range f.entities[schema.Entity] {
		if e.Scope != scope {
			continue
		}
		match := true
		for k, v := range key {
			if !sameValue(e.Fields[k], v) {
				match = false
				break
			}
		}
		if match {
			out = append(out, *e)
			if len(out) == 2 {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) Create(_ context.Context, schema *ImportSchema, scope string, fields Record) (*Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	now := time.Now()
	e := &Entity{ID: fmt.Sprintf("id-%d", f.seq), Scope: scope, Fields: fields.Clone(), CreatedAt: now, UpdatedAt: now}
	f.entities[schema.Entity] = append(f.entities[schema.Entity], e)
	cp := *e
	return &cp, nil
}

func (f *fakeStore) Update(_ context.Context, schema *ImportSchema, id string, fields Record) (*Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	for _, e := range f.entities[schema.Entity] {
		if e.ID == id {
			e.Fields = fields.Clone()
			e.UpdatedAt = time.Now()
			cp := *e
			return &cp, nil
		}
	}
	return nil, &NotFoundError{Entity: schema.Entity, ID: id}
}

func (f *fakeStore) Get(_ context.Context, schema *ImportSchema, id string) (*Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entities[schema.Entity] {
		if e.ID == id {
			cp := *e
			cp.Fields = e.Fields.Clone()
			return &cp, nil
		}
	}
	return nil, &NotFoundError{Entity: schema.Entity, ID: id}
}

func (f *fakeStore) CountAll(_ context.Context, schema *ImportSchema) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entities[schema.Entity]), nil
}

func (f *fakeStore) FindParent(_ context.Context, _ *ImportSchema, scope string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.parents[scope], nil
}

func (f *fakeStore) List(_ context.Context, schema *ImportSchema, filter ListFilter) ([]Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Entity
	for _, e := range f.entities[schema.Entity] {
		if filter.Scope != "" && e.Scope != filter.Scope {
			continue
		}
		if filter.Month != nil {
			t, ok := e.Fields[filter.MonthField].(time.Time)
			if !ok || t.Month() != *filter.Month {
				continue
			}
		}
		out = append(out, *e)
	}
	return out, nil
}

func (f *fakeStore) ExpireBefore(_ context.Context, schema *ImportSchema, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rule := schema.Expiry
	var n int64
	for _, e := range f.entities[schema.Entity] {
		t, ok := e.Fields[rule.DateField].(time.Time)
		if !ok || !t.Before(now) || e.Fields[rule.StatusField] == rule.Status {
			continue
		}
		e.Fields[rule.StatusField] = rule.Status
		n++
	}
	return n, nil
}

func (f *fakeStore) InsertAudit(_ context.Context, entry AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.auditErr != nil {
		return f.auditErr
	}
	f.audits = append(f.audits, entry)
	return nil
}

func (f *fakeStore) all(entity string) []*Entity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Entity(nil), f.entities[entity]...)
}

func sameValue(a, b any) bool {
	switch av := a.(type) {
	case decimal.Decimal:
		bv, ok := b.(decimal.Decimal)
		return ok && av.Equal(bv)
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	default:
		return a == b
	}
}

// siteSchema is a scoped schema with a derived rule, a month field and an
// expiry rule.
func siteSchema() ImportSchema {
	return ImportSchema{
		Entity: "sites",
		Label:  "Sites",
		Scope:  &Scope{Param: "groupId", Column: "group_id", Parent: "groups"},
		Fields: []FieldSpec{
			{Name: "tag", Type: FieldText, Aliases: []string{"Tag", "Site Tag"}, Trim: true},
			{Name: "name", Type: FieldText, Aliases: []string{"Name"}},
			{Name: "lanIp", Type: FieldText, Aliases: []string{"LAN-IP"}, Trim: true, Rules: "omitempty,ip"},
			{Name: "status", Type: FieldText, Aliases: []string{"Status"}, Default: "Active"},
			{Name: "charge", Type: FieldDecimal, Aliases: []string{"Charge"}},
			{Name: "setup", Type: FieldDecimal, Aliases: []string{"Setup"}},
			{Name: "taxPct", Type: FieldDecimal, Aliases: []string{"Tax"}},
			{Name: "tax", Type: FieldDecimal, Computed: true},
			{Name: "total", Type: FieldDecimal, Computed: true},
			{Name: "activated", Type: FieldDate, Aliases: []string{"Activated"}},
			{Name: "expires", Type: FieldDate, Aliases: []string{"Expires"}},
			{Name: "validity", Type: FieldInt, Aliases: []string{"Validity"}, Rules: "gte=0"},
		},
		Identity: "tag",
		Match:    []MatchStrategy{{"tag"}},
		Derived:  &DerivedRule{Base: "charge", Secondary: "setup", Percent: "taxPct", Amount: "tax", Total: "total"},
		Export: []ExportColumn{
			{Field: "tag", Header: "Tag"},
			{Field: "name", Header: "Name"},
			{Field: "lanIp", Header: "LAN-IP"},
			{Field: "status", Header: "Status"},
			{Field: "charge", Header: "Charge"},
			{Field: "setup", Header: "Setup"},
			{Field: "taxPct", Header: "Tax"},
			{Field: "tax", Header: "Tax Amount"},
			{Field: "total", Header: "Total"},
			{Field: "activated", Header: "Activated"},
			{Field: "expires", Header: "Expires"},
			{Field: "validity", Header: "Validity"},
		},
		MonthField: "activated",
		Expiry:     &ExpiryRule{DateField: "expires", StatusField: "status", Status: "Expired"},
	}
}

// accountSchema is unscoped, generates codes and matches on two strategies.
func accountSchema() ImportSchema {
	return ImportSchema{
		Entity: "accounts",
		Label:  "Accounts",
		Fields: []FieldSpec{
			{Name: "code", Type: FieldText, Aliases: []string{"Code"}, Trim: true},
			{Name: "phone", Type: FieldText, Aliases: []string{"Phone"}, Trim: true},
			{Name: "name", Type: FieldText, Aliases: []string{"Name"}},
			{Name: "email", Type: FieldText, Aliases: []string{"Email"}, Trim: true, Rules: "omitempty,email"},
		},
		Identity: "phone",
		Match:    []MatchStrategy{{"code"}, {"phone"}},
		Code:     &CodeRule{Field: "code", Format: "ACC-%03d"},
		Export: []ExportColumn{
			{Field: "code", Header: "Code"},
			{Field: "phone", Header: "Phone"},
			{Field: "name", Header: "Name"},
			{Field: "email", Header: "Email"},
		},
	}
}

// withTestSchemas replaces the registry with the test schemas for one test.
func withTestSchemas(t testing.TB) (sites, accounts *ImportSchema) {
	t.Helper()
	Clear()
	Register(siteSchema())
	Register(accountSchema())
	t.Cleanup(Clear)
	sites, _ = Get("sites")
	accounts, _ = Get("accounts")
	return sites, accounts
}

// records turns literal rows into a record sequence, normalized by schema.
func records(schema *ImportSchema, rows ...map[string]any) func(func(int, Record) bool) {
	return func(yield func(int, Record) bool) {
		for i, raw := range rows {
			if !yield(i+1, schema.Normalize(raw)) {
				return
			}
		}
	}
}
