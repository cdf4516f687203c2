package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/JonMunkholm/ispcrm/internal/logging"
	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionImport       AuditAction = "import"
	ActionExport       AuditAction = "export"
	ActionRecordCreate AuditAction = "record_create"
	ActionRecordUpdate AuditAction = "record_update"
	ActionExpirySweep  AuditAction = "expiry_sweep"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID        string          `json:"id"`
	Action    AuditAction     `json:"action"`
	Severity  AuditSeverity   `json:"severity"`
	Entity    string          `json:"entity"`
	Scope     string          `json:"scope,omitempty"`
	RecordID  string          `json:"recordId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	UserEmail string          `json:"userEmail,omitempty"`
	IPAddress string          `json:"ipAddress,omitempty"`
	UserAgent string          `json:"userAgent,omitempty"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// AuditLogParams contains parameters for creating an audit log entry.
type AuditLogParams struct {
	Action   AuditAction
	Entity   string
	Scope    string
	RecordID string
	Detail   map[string]any
}

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionImport, ActionExpirySweep:
		return SeverityHigh
	case ActionExport:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// LogAudit writes an audit entry. Caller identity, IP and user agent come
// from ctx.
func (s *Service) LogAudit(ctx context.Context, params AuditLogParams) (*AuditEntry, error) {
	entry := AuditEntry{
		ID:        uuid.New().String(),
		Action:    params.Action,
		Severity:  determineSeverity(params.Action),
		Entity:    params.Entity,
		Scope:     params.Scope,
		RecordID:  params.RecordID,
		IPAddress: IPAddressFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
		CreatedAt: s.now().UTC(),
	}
	if a, ok := ActorFromContext(ctx); ok {
		entry.UserID = a.ID
		entry.UserEmail = a.Email
	}
	if params.Detail != nil {
		if b, err := json.Marshal(params.Detail); err == nil {
			entry.Detail = b
		}
	}

	if err := s.store.InsertAudit(ctx, entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// audit writes an entry and only logs failures; a lost audit line never
// fails the operation it describes.
func (s *Service) audit(ctx context.Context, params AuditLogParams) {
	if _, err := s.LogAudit(context.WithoutCancel(ctx), params); err != nil {
		logging.FromContext(ctx).Error("audit log write failed",
			"action", params.Action,
			"entity", params.Entity,
			"error", err,
		)
	}
}
