package core

import (
	"context"
	"fmt"
	"time"
)

// Store is the record storage the pipeline reads and writes through.
// Implementations live in internal/store.
type Store interface {
	// FindByKey returns up to two entities in scope whose fields equal key.
	// Two results mean the key is ambiguous.
	FindByKey(ctx context.Context, schema *ImportSchema, scope string, key Record) ([]Entity, error)
	Create(ctx context.Context, schema *ImportSchema, scope string, fields Record) (*Entity, error)
	Update(ctx context.Context, schema *ImportSchema, id string, fields Record) (*Entity, error)
	// Get returns a *NotFoundError when no entity has the ID.
	Get(ctx context.Context, schema *ImportSchema, id string) (*Entity, error)
	// CountAll counts every entity of the schema, across scopes.
	CountAll(ctx context.Context, schema *ImportSchema) (int, error)
	// FindParent reports whether the scope's parent exists.
	FindParent(ctx context.Context, schema *ImportSchema, scope string) (bool, error)
	List(ctx context.Context, schema *ImportSchema, filter ListFilter) ([]Entity, error)
	// ExpireBefore sets the expiry status on entities whose date field is
	// before now and returns how many changed.
	ExpireBefore(ctx context.Context, schema *ImportSchema, now time.Time) (int64, error)
	InsertAudit(ctx context.Context, entry AuditEntry) error
}

// ListFilter narrows List. Empty Scope lists every scope.
type ListFilter struct {
	Scope      string
	Month      *time.Month
	MonthField string
}

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record not found: %s %s", e.Entity, e.ID)
}

// InvalidScopeError reports a scope whose parent does not exist.
type InvalidScopeError struct {
	Entity string
	Param  string
	Scope  string
}

func (e *InvalidScopeError) Error() string {
	if e.Scope == "" {
		return fmt.Sprintf("invalid scope: %s is required for %s", e.Param, e.Entity)
	}
	return fmt.Sprintf("invalid scope: %s %q does not exist", e.Param, e.Scope)
}

// UnknownEntityError reports an entity key with no registered schema.
type UnknownEntityError struct {
	Entity string
}

func (e *UnknownEntityError) Error() string {
	return "unknown entity: " + e.Entity
}

// ValidationError reports a single-record payload that failed a field rule.
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	if e.Rule == "required" {
		return "required field: " + e.Field
	}
	return fmt.Sprintf("invalid field value: %s must satisfy %q", e.Field, e.Rule)
}
