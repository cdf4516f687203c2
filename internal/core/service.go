package core

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JonMunkholm/ispcrm/internal/logging"
	"github.com/JonMunkholm/ispcrm/internal/sheet"
	"github.com/go-playground/validator/v10"
)

// ImportTimeout is the default maximum duration of one import.
var ImportTimeout = 10 * time.Minute

// ServiceConfig tunes import admission.
type ServiceConfig struct {
	MaxConcurrent int
	MaxWait       time.Duration
	Timeout       time.Duration
}

// Service runs imports, exports and single-record writes for every
// registered schema against one Store.
type Service struct {
	store    Store
	limiter  *ImportLimiter
	locks    scopeLocks
	validate *validator.Validate
	timeout  time.Duration
	now      func() time.Time
}

// NewService creates a Service over store.
func NewService(store Store, cfg ServiceConfig) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = ImportTimeout
	}
	return &Service{
		store:    store,
		limiter:  NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		validate: validator.New(),
		timeout:  timeout,
		now:      time.Now,
	}
}

// ListSchemas returns every registered schema.
func (s *Service) ListSchemas() []*ImportSchema {
	return All()
}

// LimiterStatus reports import slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running imports finish or ctx ends.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// Import decodes a workbook and upserts its rows into scope.
//
// The whole call fails only for an unknown entity, an unreadable workbook,
// an invalid scope, a busy limiter or cancellation. Every other problem is
// reported per row in the outcome.
func (s *Service) Import(ctx context.Context, entity, scope, fileName string, r io.Reader) (*ImportOutcome, error) {
	schema, err := Lookup(entity)
	if err != nil {
		return nil, err
	}
	if !schema.Scoped() {
		scope = ""
	}

	logger := logging.WithFields(ctx,
		"entity", schema.Entity,
		"scope", scope,
		"file", fileName,
	)

	if err := s.limiter.Acquire(ctx); err != nil {
		logger.Warn("import rejected", "error", err)
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	release, err := s.locks.acquire(ctx, schema.Entity+"/"+scope)
	if err != nil {
		return nil, err
	}
	defer release()

	start := s.now()
	logger.Info("import started")

	sh, err := sheet.Decode(r)
	if err != nil {
		logger.Warn("import rejected", "error", err)
		return nil, err
	}

	records, binding := schema.Records(sh)
	out, err := NewReconciler(schema, s.store, logger).Reconcile(ctx, records, scope)
	if out == nil {
		logger.Warn("import aborted", "error", err)
		return nil, err
	}
	out.UnmappedHeaders = suggestHeaders(binding.Unbound(), schema.Aliases())
	out.Duration = s.now().Sub(start)

	s.audit(ctx, AuditLogParams{
		Action: ActionImport,
		Entity: schema.Entity,
		Scope:  scope,
		Detail: map[string]any{
			"file":     fileName,
			"rows":     sh.Len(),
			"created":  out.Created,
			"updated":  out.Updated,
			"skipped":  out.Skipped,
			"complete": err == nil,
		},
	})

	if err != nil {
		logger.Warn("import interrupted",
			"created", out.Created,
			"updated", out.Updated,
			"skipped", out.Skipped,
			"error", err,
		)
		return out, err
	}
	logger.Info("import completed",
		"rows", sh.Len(),
		"created", out.Created,
		"updated", out.Updated,
		"skipped", out.Skipped,
		"unmapped_headers", len(out.UnmappedHeaders),
		"duration_ms", out.Duration.Milliseconds(),
	)
	return out, nil
}

// Export encodes the entities matching req as a workbook.
// Exporting nothing is not an error: the sheet has a header row only.
func (s *Service) Export(ctx context.Context, req ExportRequest) (*ExportFile, error) {
	schema, err := Lookup(req.Entity)
	if err != nil {
		return nil, err
	}
	if !schema.Scoped() {
		req.Scope = ""
	}
	if err := CheckScope(ctx, s.store, schema, req.Scope); err != nil {
		return nil, err
	}

	filter := ListFilter{Scope: req.Scope}
	if req.Month != nil && schema.MonthField != "" {
		filter.Month = req.Month
		filter.MonthField = schema.MonthField
	} else {
		req.Month = nil
	}

	entities, err := s.store.List(ctx, schema, filter)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", schema.Entity, err)
	}

	rows := make([][]any, len(entities))
	for i, e := range entities {
		rows[i] = schema.ExportRow(e)
	}
	data, err := sheet.Encode(schema.SheetName, schema.ExportColumns(), rows)
	if err != nil {
		return nil, fmt.Errorf("encode %s export: %w", schema.Entity, err)
	}

	file := &ExportFile{
		Name:        s.exportName(schema, req),
		ContentType: sheet.ContentType,
		Data:        data,
		Rows:        len(rows),
	}

	detail := map[string]any{"rows": file.Rows, "file": file.Name}
	if req.Month != nil {
		detail["month"] = req.Month.String()
	}
	s.audit(ctx, AuditLogParams{Action: ActionExport, Entity: schema.Entity, Scope: req.Scope, Detail: detail})

	logging.FromContext(ctx).Info("export completed",
		"entity", schema.Entity,
		"scope", req.Scope,
		"rows", file.Rows,
		"bytes", len(file.Data),
	)
	return file, nil
}

func (s *Service) exportName(schema *ImportSchema, req ExportRequest) string {
	now := s.now()
	if schema.FileName != nil {
		return schema.FileName(req, now)
	}
	return fmt.Sprintf("%s_All_%s.xlsx", strings.ReplaceAll(schema.Label, " ", ""), now.UTC().Format("2006-01-02"))
}

// Template returns an empty workbook carrying the export headers, which
// the importer accepts unchanged.
func (s *Service) Template(entity string) (*ExportFile, error) {
	schema, err := Lookup(entity)
	if err != nil {
		return nil, err
	}
	data, err := sheet.Encode(schema.SheetName, schema.ExportColumns(), nil)
	if err != nil {
		return nil, fmt.Errorf("encode %s template: %w", schema.Entity, err)
	}
	return &ExportFile{
		Name:        strings.ReplaceAll(schema.Label, " ", "") + "_Template.xlsx",
		ContentType: sheet.ContentType,
		Data:        data,
	}, nil
}

// ExpireDue applies every schema's expiry rule as of now and returns the
// number of records changed.
func (s *Service) ExpireDue(ctx context.Context) (int64, error) {
	now := s.now()
	var total int64
	for _, schema := range All() {
		if schema.Expiry == nil {
			continue
		}
		n, err := s.store.ExpireBefore(ctx, schema, now)
		if err != nil {
			return total, fmt.Errorf("expire %s: %w", schema.Entity, err)
		}
		total += n
		if n > 0 {
			s.audit(ctx, AuditLogParams{
				Action: ActionExpirySweep,
				Entity: schema.Entity,
				Detail: map[string]any{"expired": n, "status": schema.Expiry.Status},
			})
		}
	}
	return total, nil
}
