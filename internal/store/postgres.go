package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/ispcrm/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// PoolConfig tunes the connection pool.
type PoolConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Connect opens and pings a connection pool.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Postgres stores entities in the tables created by schema.sql. SQL is
// generated from each schema's field columns.
type Postgres struct {
	db DBTX
}

// NewPostgres returns a store over db.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates missing tables and indexes. It is idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// AddParent creates a cluster or client group and returns its ID.
func (p *Postgres) AddParent(ctx context.Context, table, name string) (string, error) {
	var id string
	query := fmt.Sprintf("INSERT INTO %s (name) VALUES ($1) RETURNING id::text", quoteIdentifier(table))
	if err := p.db.QueryRow(ctx, query, name).Scan(&id); err != nil {
		return "", wrapPgError("insert parent", err)
	}
	return id, nil
}

func (p *Postgres) FindByKey(ctx context.Context, schema *core.ImportSchema, scope string, key core.Record) ([]core.Entity, error) {
	if schema.Scoped() && !core.ToPgUUID(scope).Valid {
		return nil, nil
	}
	query, args := buildFindByKey(schema, scope, key)
	return p.queryEntities(ctx, schema, query, args...)
}

func (p *Postgres) Create(ctx context.Context, schema *core.ImportSchema, scope string, fields core.Record) (*core.Entity, error) {
	query, args := buildInsert(schema, scope, fields)
	e, err := scanEntity(p.db.QueryRow(ctx, query, args...), schema)
	if err != nil {
		return nil, wrapPgError("insert "+schema.Table, err)
	}
	return e, nil
}

func (p *Postgres) Update(ctx context.Context, schema *core.ImportSchema, id string, fields core.Record) (*core.Entity, error) {
	if !core.ToPgUUID(id).Valid {
		return nil, &core.NotFoundError{Entity: schema.Entity, ID: id}
	}
	query, args := buildUpdate(schema, id, fields)
	e, err := scanEntity(p.db.QueryRow(ctx, query, args...), schema)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &core.NotFoundError{Entity: schema.Entity, ID: id}
	}
	if err != nil {
		return nil, wrapPgError("update "+schema.Table, err)
	}
	return e, nil
}

func (p *Postgres) Get(ctx context.Context, schema *core.ImportSchema, id string) (*core.Entity, error) {
	if !core.ToPgUUID(id).Valid {
		return nil, &core.NotFoundError{Entity: schema.Entity, ID: id}
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", selectList(schema), quoteIdentifier(schema.Table))
	e, err := scanEntity(p.db.QueryRow(ctx, query, core.ToPgUUID(id)), schema)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &core.NotFoundError{Entity: schema.Entity, ID: id}
	}
	if err != nil {
		return nil, wrapPgError("get "+schema.Table, err)
	}
	return e, nil
}

func (p *Postgres) CountAll(ctx context.Context, schema *core.ImportSchema) (int, error) {
	var n int
	query := "SELECT count(*) FROM " + quoteIdentifier(schema.Table)
	if err := p.db.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, wrapPgError("count "+schema.Table, err)
	}
	return n, nil
}

// FindParent reports whether the scope's parent row exists. A scope that
// is not a UUID cannot exist.
func (p *Postgres) FindParent(ctx context.Context, schema *core.ImportSchema, scope string) (bool, error) {
	if !schema.Scoped() {
		return true, nil
	}
	id := core.ToPgUUID(scope)
	if !id.Valid {
		return false, nil
	}
	var ok bool
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)", quoteIdentifier(schema.Scope.Parent))
	if err := p.db.QueryRow(ctx, query, id).Scan(&ok); err != nil {
		return false, wrapPgError("find "+schema.Scope.Parent, err)
	}
	return ok, nil
}

func (p *Postgres) List(ctx context.Context, schema *core.ImportSchema, filter core.ListFilter) ([]core.Entity, error) {
	query, args := buildList(schema, filter)
	return p.queryEntities(ctx, schema, query, args...)
}

func (p *Postgres) ExpireBefore(ctx context.Context, schema *core.ImportSchema, now time.Time) (int64, error) {
	query, args, err := buildExpire(schema, now)
	if err != nil {
		return 0, err
	}
	tag, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, wrapPgError("expire "+schema.Table, err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) InsertAudit(ctx context.Context, e core.AuditEntry) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO audit_log (id, action, severity, entity, scope, record_id,
			user_id, user_email, ip_address, user_agent, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		core.ToPgUUID(e.ID),
		string(e.Action),
		string(e.Severity),
		e.Entity,
		core.ToPgText(e.Scope),
		core.ToPgText(e.RecordID),
		core.ToPgText(e.UserID),
		core.ToPgText(e.UserEmail),
		core.ToPgText(e.IPAddress),
		core.ToPgText(e.UserAgent),
		nullJSON(e.Detail),
		e.CreatedAt,
	)
	if err != nil {
		return wrapPgError("insert audit_log", err)
	}
	return nil
}

func (p *Postgres) queryEntities(ctx context.Context, schema *core.ImportSchema, query string, args ...any) ([]core.Entity, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapPgError("query "+schema.Table, err)
	}
	defer rows.Close()

	var out []core.Entity
	for rows.Next() {
		e, err := scanEntity(rows, schema)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapPgError("read "+schema.Table, err)
	}
	return out, nil
}

// scanEntity reads one row in selectList order.
func scanEntity(row pgx.Row, schema *core.ImportSchema) (*core.Entity, error) {
	var (
		id, scope            pgtype.Text
		createdAt, updatedAt pgtype.Timestamptz
	)
	values := make([]any, len(schema.Fields))
	dest := make([]any, 0, len(schema.Fields)+4)
	dest = append(dest, &id, &scope)
	for i, f := range schema.Fields {
		values[i] = scanTarget(f.Type)
		dest = append(dest, values[i])
	}
	dest = append(dest, &createdAt, &updatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	e := &core.Entity{
		ID:        id.String,
		Scope:     scope.String,
		Fields:    make(core.Record, len(schema.Fields)),
		CreatedAt: createdAt.Time,
		UpdatedAt: updatedAt.Time,
	}
	for i, f := range schema.Fields {
		e.Fields[f.Name] = fromScanned(values[i])
	}
	return e, nil
}

func scanTarget(t core.FieldType) any {
	switch t {
	case core.FieldInt:
		return new(pgtype.Int8)
	case core.FieldDecimal:
		return new(pgtype.Numeric)
	case core.FieldDate:
		return new(pgtype.Date)
	default:
		return new(pgtype.Text)
	}
}

// fromScanned converts a scan target to its normalized field value.
func fromScanned(v any) any {
	switch val := v.(type) {
	case *pgtype.Int8:
		return val.Int64
	case *pgtype.Numeric:
		return core.FromPgNumeric(*val)
	case *pgtype.Date:
		if !val.Valid || val.InfinityModifier != pgtype.Finite {
			return nil
		}
		return val.Time
	case *pgtype.Text:
		return val.String
	default:
		return nil
	}
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// wrapPgError adds the operation and, for constraint violations, the
// constraint name. The driver message is kept so MapError still matches it.
func wrapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName != "" {
		return fmt.Errorf("%s (constraint %s): %w", op, pgErr.ConstraintName, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
