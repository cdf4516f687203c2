package core

import (
	"time"
)

// FieldType represents the normalized type of a canonical field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldInt
	FieldDecimal
	FieldDate
)

func (t FieldType) String() string {
	switch t {
	case FieldInt:
		return "int"
	case FieldDecimal:
		return "decimal"
	case FieldDate:
		return "date"
	default:
		return "text"
	}
}

// FieldSpec defines one canonical field of an entity.
type FieldSpec struct {
	Name       string              // Canonical field name: "rtNumber"
	DBColumn   string              // Storage column (derived from Name when empty)
	Type       FieldType           // Normalized type
	Aliases    []string            // Literal sheet headers, first wins
	Trim       bool                // Trim surrounding whitespace (identifiers)
	Default    string              // Text used when the normalized value is empty
	Normalizer func(string) string // Optional transformation applied to non-empty text
	Rules      string              // validator tag checked on single-record writes
	Computed   bool                // Derived field, never read from input
}

// Scope describes the parent entity that partitions an entity's records.
type Scope struct {
	Param  string // Request parameter naming the parent: "clusterId"
	Column string // Storage column holding the parent ID: "cluster_id"
	Parent string // Parent table: "clusters"
}

// MatchStrategy is an ordered tuple of fields looked up together inside a scope.
type MatchStrategy []string

// DerivedRule names the fields feeding and receiving ComputeDerived.
type DerivedRule struct {
	Base      string
	Secondary string
	Percent   string
	Amount    string
	Total     string
}

// CodeRule generates a human-readable code for created entities that
// arrive without one, e.g. CUST-0001.
type CodeRule struct {
	Field  string
	Format string // fmt verb receiving the sequence number
}

// ExpiryRule marks records whose date field has passed with a status.
type ExpiryRule struct {
	DateField   string
	StatusField string
	Status      string // "Expired"
}

// ExportColumn maps a field to the header used in exported sheets.
type ExportColumn struct {
	Field  string
	Header string
	Width  float64
}

// ExportRequest carries the filters of one export call.
type ExportRequest struct {
	Entity string
	Scope  string
	Month  *time.Month // optional, filters on ImportSchema.MonthField
}

// FileNameFunc builds the download name of an export.
type FileNameFunc func(req ExportRequest, now time.Time) string

// ImportSchema is the per-entity configuration of the import/export pipeline.
type ImportSchema struct {
	Entity     string // URL key: "loadshare"
	Label      string // Display name: "Load Share"
	Table      string // Storage table
	Scope      *Scope // nil for unscoped entities
	Fields     []FieldSpec
	Identity   string // Field whose emptiness skips a row
	Match      []MatchStrategy
	Derived    *DerivedRule
	Code       *CodeRule
	Export     []ExportColumn
	SheetName  string
	MonthField string // Date field used by the export month filter
	Expiry     *ExpiryRule
	FileName   FileNameFunc
}

// Record is a normalized row keyed by canonical field name. Values are
// string, int64, decimal.Decimal, time.Time or nil (empty date).
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Entity is a stored record.
type Entity struct {
	ID        string    `json:"id"`
	Scope     string    `json:"scope,omitempty"`
	Fields    Record    `json:"fields"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SkipReason classifies a row that was not persisted.
type SkipReason string

const (
	SkipMissingIdentity  SkipReason = "missing_identity"
	SkipDuplicateInBatch SkipReason = "duplicate_in_batch"
	SkipStorageError     SkipReason = "storage_error"
)

// RowSkip records one skipped row. Row is 1-based, header excluded.
type RowSkip struct {
	Row      int        `json:"row"`
	Reason   SkipReason `json:"reason"`
	Identity string     `json:"identity,omitempty"`
	Message  string     `json:"message"`
}

// UnmappedHeader is a sheet header that bound to no field.
type UnmappedHeader struct {
	Header     string `json:"header"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ImportOutcome is the result of one import call.
type ImportOutcome struct {
	Entity          string           `json:"entity"`
	Scope           string           `json:"scope,omitempty"`
	Created         int              `json:"created"`
	Updated         int              `json:"updated"`
	Skipped         int              `json:"skipped"`
	Skips           []RowSkip        `json:"skips"`
	UnmappedHeaders []UnmappedHeader `json:"unmappedHeaders"`
	Duration        time.Duration    `json:"-"`
}

func (o *ImportOutcome) skip(s RowSkip) {
	o.Skipped++
	o.Skips = append(o.Skips, s)
}

// MissingIdentifiers returns the rows skipped for an empty identity.
func (o *ImportOutcome) MissingIdentifiers() []int {
	rows := []int{}
	for _, s := range o.Skips {
		if s.Reason == SkipMissingIdentity {
			rows = append(rows, s.Row)
		}
	}
	return rows
}

// DuplicateIdentifiers returns the identities repeated inside the batch.
func (o *ImportOutcome) DuplicateIdentifiers() []string {
	ids := []string{}
	for _, s := range o.Skips {
		if s.Reason == SkipDuplicateInBatch {
			ids = append(ids, s.Identity)
		}
	}
	return ids
}

// ExportFile is an encoded export ready for download.
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
	Rows        int
}
