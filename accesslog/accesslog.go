// Package accesslog defines the append-only access audit log Entry.
package accesslog

import (
	"time"

	"github.com/xraph/custos/id"
)

// Result classifies the outcome of the logged action.
type Result string

// Log entry results.
const (
	ResultSuccess Result = "SUCCESS"
	ResultFailed  Result = "FAILED"
	ResultDenied  Result = "DENIED"
	ResultError   Result = "ERROR"
)

// Entry is a single access audit record. Entries are write-once: no
// operation in this engine updates or deletes them. References to
// other entities are by id only and survive their deactivation.
type Entry struct {
	ID             id.LogEntryID  `json:"id" db:"id"`
	PrincipalID    string         `json:"principal_id" db:"principal_id"`
	RoleUsed       string         `json:"role_used,omitempty" db:"role_used"`
	PermissionUsed string         `json:"permission_used,omitempty" db:"permission_used"`
	Action         string         `json:"action" db:"action"`
	Resource       string         `json:"resource" db:"resource"`
	Description    string         `json:"description,omitempty" db:"description"`
	TargetID       string         `json:"target_id,omitempty" db:"target_id"`
	Result         Result         `json:"result" db:"result"`
	ErrorMessage   string         `json:"error_message,omitempty" db:"error_message"`
	SourceIP       string         `json:"source_ip,omitempty" db:"source_ip"`
	UserAgent      string         `json:"user_agent,omitempty" db:"user_agent"`
	Metadata       map[string]any `json:"metadata,omitempty" db:"metadata"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// QueryFilter contains filters for querying the audit log. Results are
// always ordered descending by timestamp.
type QueryFilter struct {
	PrincipalID string     `json:"principal_id,omitempty"`
	Action      string     `json:"action,omitempty"`
	Result      Result     `json:"result,omitempty"`
	SourceIP    string     `json:"source_ip,omitempty"`
	After       *time.Time `json:"after,omitempty"`
	Before      *time.Time `json:"before,omitempty"`
	Limit       int        `json:"limit,omitempty"`
	Offset      int        `json:"offset,omitempty"`
}
