// Package request defines the PermissionRequest entity for the
// approval-gated assignment workflow.
package request

import (
	"time"

	"github.com/xraph/custos/id"
	"github.com/xraph/custos/scope"
)

// Status is the lifecycle state of a permission request.
type Status string

// Request statuses. APPROVED, REJECTED, and EXPIRED are terminal; a
// request never leaves a terminal state.
const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
)

// Terminal reports whether s permits no further transition.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusExpired
}

// Priority orders requests for reviewers.
type Priority string

// Request priorities.
const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Request is a pending ask for a role assignment, resolved by a
// reviewer. On approval it yields at most one assignment.
type Request struct {
	ID               id.RequestID     `json:"id" db:"id"`
	RequestedBy      string           `json:"requested_by" db:"requested_by"`
	RequestedFor     string           `json:"requested_for" db:"requested_for"`
	RoleID           id.RoleID        `json:"role_id" db:"role_id"`
	ExtraPermissions []string         `json:"extra_permissions,omitempty" db:"extra_permissions"`
	Scope            scope.Scope      `json:"scope,omitzero" db:"scope"`
	Reason           string           `json:"reason" db:"reason"`
	Justification    string           `json:"justification,omitempty" db:"justification"`
	DurationDays     int              `json:"duration_days,omitempty" db:"duration_days"`
	Priority         Priority         `json:"priority" db:"priority"`
	Status           Status           `json:"status" db:"status"`
	ReviewedBy       string           `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt       *time.Time       `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewNotes      string           `json:"review_notes,omitempty" db:"review_notes"`
	RequestedAt      time.Time        `json:"requested_at" db:"requested_at"`
	ExpiresAt        *time.Time       `json:"expires_at,omitempty" db:"expires_at"`
	AssignmentID     *id.AssignmentID `json:"assignment_id,omitempty" db:"assignment_id"`
	Metadata         map[string]any   `json:"metadata,omitempty" db:"metadata"`
}

// Lapsed reports whether a PENDING request has outlived its expiry at
// the given time. Lapsing is evaluated lazily at read time; the
// persisted status may still say PENDING.
func (r *Request) Lapsed(now time.Time) bool {
	return r.Status == StatusPending && r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// EffectiveStatus returns the status with lazy expiry applied.
func (r *Request) EffectiveStatus(now time.Time) Status {
	if r.Lapsed(now) {
		return StatusExpired
	}
	return r.Status
}

// ListFilter contains filters for listing requests.
type ListFilter struct {
	RequestedBy  string     `json:"requested_by,omitempty"`
	RequestedFor string     `json:"requested_for,omitempty"`
	RoleID       *id.RoleID `json:"role_id,omitempty"`
	Status       Status     `json:"status,omitempty"`
	Priority     Priority   `json:"priority,omitempty"`
	Limit        int        `json:"limit,omitempty"`
	Offset       int        `json:"offset,omitempty"`
}
