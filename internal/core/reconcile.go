package core

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"
)

// maxCodeAttempts bounds the search for a free generated code.
const maxCodeAttempts = 1000

// genericRowError is reported for storage failures with no mapped message.
const genericRowError = "Row could not be saved (Code: ERR000). Please try again or contact support"

// Reconciler upserts normalized records of one schema into a Store.
type Reconciler struct {
	schema *ImportSchema
	store  Store
	logger *slog.Logger
}

// NewReconciler returns a reconciler for schema. A nil logger uses slog.Default.
func NewReconciler(schema *ImportSchema, store Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{schema: schema, store: store, logger: logger}
}

// reconcileState is the per-call bookkeeping of one Reconcile run.
type reconcileState struct {
	seen     map[string]struct{}
	nextCode int // 0 until the first generated code
}

// Reconcile creates or updates one entity per record, in sequence order.
// The scope is verified before the first record is pulled. Row failures
// become skips; only an invalid scope, a failed scope lookup or context
// cancellation end the call early. On cancellation the partial outcome is
// returned with the context error.
func (r *Reconciler) Reconcile(ctx context.Context, records iter.Seq2[int, Record], scope string) (*ImportOutcome, error) {
	if !r.schema.Scoped() {
		scope = ""
	}
	if err := CheckScope(ctx, r.store, r.schema, scope); err != nil {
		return nil, err
	}

	out := &ImportOutcome{
		Entity:          r.schema.Entity,
		Scope:           scope,
		Skips:           []RowSkip{},
		UnmappedHeaders: []UnmappedHeader{},
	}
	st := &reconcileState{seen: make(map[string]struct{})}

	for row, rec := range records {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		r.reconcileRow(ctx, st, out, scope, row, rec)
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func (r *Reconciler) reconcileRow(ctx context.Context, st *reconcileState, out *ImportOutcome, scope string, row int, rec Record) {
	identity := strings.TrimSpace(NormalizeText(rec[r.schema.Identity]))
	if identity == "" {
		out.skip(RowSkip{
			Row:     row,
			Reason:  SkipMissingIdentity,
			Message: fmt.Sprintf("missing required identifying field %s", r.schema.Identity),
		})
		return
	}
	if _, dup := st.seen[identity]; dup {
		out.skip(RowSkip{
			Row:      row,
			Reason:   SkipDuplicateInBatch,
			Identity: identity,
			Message:  fmt.Sprintf("%s %s already appears earlier in this file", r.schema.Identity, identity),
		})
		return
	}
	st.seen[identity] = struct{}{}

	existing, err := r.match(ctx, scope, rec)
	if err != nil {
		r.storageSkip(out, row, identity, err)
		return
	}

	fields := rec.Clone()
	if existing != nil {
		if c := r.schema.Code; c != nil && isEmptyValue(fields[c.Field]) {
			fields[c.Field] = existing.Fields[c.Field]
		}
		r.schema.Derived.Apply(fields)
		if _, err := r.store.Update(ctx, r.schema, existing.ID, fields); err != nil {
			r.storageSkip(out, row, identity, err)
			return
		}
		out.Updated++
		return
	}

	if c := r.schema.Code; c != nil && isEmptyValue(fields[c.Field]) {
		code, err := r.generateCode(ctx, st, scope)
		if err != nil {
			r.storageSkip(out, row, identity, err)
			return
		}
		fields[c.Field] = code
	}
	r.schema.Derived.Apply(fields)
	if _, err := r.store.Create(ctx, r.schema, scope, fields); err != nil {
		r.storageSkip(out, row, identity, err)
		return
	}
	out.Created++
}

// match returns the entity found by the first strategy whose fields are all
// present and which resolves to exactly one entity.
func (r *Reconciler) match(ctx context.Context, scope string, rec Record) (*Entity, error) {
	return matchEntity(ctx, r.store, r.schema, scope, rec)
}

func matchEntity(ctx context.Context, store Store, schema *ImportSchema, scope string, rec Record) (*Entity, error) {
strategies:
	for _, strategy := range schema.Match {
		key := make(Record, len(strategy))
		for _, field := range strategy {
			v := rec[field]
			if isEmptyValue(v) {
				continue strategies
			}
			key[field] = v
		}
		found, err := store.FindByKey(ctx, schema, scope, key)
		if err != nil {
			return nil, fmt.Errorf("match on %s: %w", strings.Join(strategy, "+"), err)
		}
		if len(found) == 1 {
			return &found[0], nil
		}
	}
	return nil, nil
}

// generateCode returns the next free code, starting after the stored count.
func (r *Reconciler) generateCode(ctx context.Context, st *reconcileState, scope string) (string, error) {
	code, next, err := nextCode(ctx, r.store, r.schema, scope, st.nextCode)
	if err != nil {
		return "", err
	}
	st.nextCode = next
	return code, nil
}

// nextCode formats codes from start (or CountAll+1 when start is 0) until
// one is unused. It returns the code and the sequence number after it.
func nextCode(ctx context.Context, store Store, schema *ImportSchema, scope string, start int) (string, int, error) {
	n := start
	if n == 0 {
		count, err := store.CountAll(ctx, schema)
		if err != nil {
			return "", 0, fmt.Errorf("count %s: %w", schema.Entity, err)
		}
		n = count + 1
	}
	for i := 0; i < maxCodeAttempts; i, n = i+1, n+1 {
		code := fmt.Sprintf(schema.Code.Format, n)
		found, err := store.FindByKey(ctx, schema, scope, Record{schema.Code.Field: code})
		if err != nil {
			return "", 0, fmt.Errorf("check code %s: %w", code, err)
		}
		if len(found) == 0 {
			return code, n + 1, nil
		}
	}
	return "", 0, fmt.Errorf("no free %s code after %d attempts", schema.Code.Field, maxCodeAttempts)
}

func (r *Reconciler) storageSkip(out *ImportOutcome, row int, identity string, err error) {
	msg := genericRowError
	if IsUserFacing(err) {
		msg = FormatUserError(err)
		r.logger.Warn("import row rejected", "row", row, "identity", identity, "error", err)
	} else {
		r.logger.Error("import row failed", "row", row, "identity", identity, "error", err)
	}
	out.skip(RowSkip{Row: row, Reason: SkipStorageError, Identity: identity, Message: msg})
}

// CheckScope verifies that a scoped schema's parent exists.
func CheckScope(ctx context.Context, store Store, schema *ImportSchema, scope string) error {
	if !schema.Scoped() {
		return nil
	}
	if strings.TrimSpace(scope) == "" {
		return &InvalidScopeError{Entity: schema.Entity, Param: schema.Scope.Param}
	}
	ok, err := store.FindParent(ctx, schema, scope)
	if err != nil {
		return fmt.Errorf("look up %s %s: %w", schema.Scope.Param, scope, err)
	}
	if !ok {
		return &InvalidScopeError{Entity: schema.Entity, Param: schema.Scope.Param, Scope: scope}
	}
	return nil
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case time.Time:
		return val.IsZero()
	default:
		return false
	}
}
