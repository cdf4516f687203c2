package core

import (
	"context"
	"fmt"
	"sort"
)

// GetRecord returns one stored entity.
func (s *Service) GetRecord(ctx context.Context, entity, id string) (*Entity, error) {
	schema, err := Lookup(entity)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, schema, id)
}

// CreateRecord normalizes a single payload the way sheet rows are
// normalized, validates it and stores it in scope.
func (s *Service) CreateRecord(ctx context.Context, entity, scope string, payload map[string]any) (*Entity, error) {
	schema, err := Lookup(entity)
	if err != nil {
		return nil, err
	}
	if !schema.Scoped() {
		scope = ""
	}
	if err := CheckScope(ctx, s.store, schema, scope); err != nil {
		return nil, err
	}

	rec := schema.Normalize(payload)
	if err := s.validateRecord(schema, rec); err != nil {
		return nil, err
	}
	if c := schema.Code; c != nil && isEmptyValue(rec[c.Field]) {
		code, _, err := nextCode(ctx, s.store, schema, scope, 0)
		if err != nil {
			return nil, err
		}
		rec[c.Field] = code
	}

	created, err := s.store.Create(ctx, schema, scope, rec)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", schema.Entity, err)
	}
	s.audit(ctx, AuditLogParams{
		Action:   ActionRecordCreate,
		Entity:   schema.Entity,
		Scope:    scope,
		RecordID: created.ID,
		Detail:   map[string]any{schema.Identity: NormalizeText(rec[schema.Identity])},
	})
	return created, nil
}

// UpdateRecord applies a partial payload. Fields not in the payload keep
// their stored value, and derived fields are recomputed from the merged
// values.
func (s *Service) UpdateRecord(ctx context.Context, entity, id string, payload map[string]any) (*Entity, error) {
	schema, err := Lookup(entity)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.Get(ctx, schema, id)
	if err != nil {
		return nil, err
	}

	merged := existing.Fields.Clone()
	changed := make([]string, 0, len(payload))
	for name, v := range payload {
		f, ok := schema.Field(name)
		if !ok || f.Computed {
			continue
		}
		merged[name] = NormalizeValue(v, f)
		changed = append(changed, name)
	}
	sort.Strings(changed)
	if c := schema.Code; c != nil && isEmptyValue(merged[c.Field]) {
		merged[c.Field] = existing.Fields[c.Field]
	}
	schema.Derived.Apply(merged)

	if err := s.validateRecord(schema, merged); err != nil {
		return nil, err
	}

	updated, err := s.store.Update(ctx, schema, id, merged)
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", schema.Entity, id, err)
	}
	s.audit(ctx, AuditLogParams{
		Action:   ActionRecordUpdate,
		Entity:   schema.Entity,
		Scope:    existing.Scope,
		RecordID: id,
		Detail:   map[string]any{"fields": changed},
	})
	return updated, nil
}
