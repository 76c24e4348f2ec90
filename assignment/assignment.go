// Package assignment defines the Assignment entity (role→principal binding).
package assignment

import (
	"time"

	"github.com/xraph/custos/id"
	"github.com/xraph/custos/scope"
)

// Status is the persisted lifecycle state of an assignment.
type Status string

// Assignment statuses. REVOKED is terminal. EXPIRED is a reporting
// convenience: validity is always re-derived from ExpiresAt at read
// time, never trusted from this field.
const (
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusExpired   Status = "EXPIRED"
	StatusRevoked   Status = "REVOKED"
)

// Valid reports whether s is a known assignment status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusExpired, StatusRevoked:
		return true
	default:
		return false
	}
}

// Assignment binds a role to a principal, optionally narrowed to a
// scope and optionally expiring. Assignments mutate via status
// transition, never row deletion.
//
// Invariant: (principal, role, scope) is unique among non-revoked rows.
type Assignment struct {
	ID           id.AssignmentID `json:"id" db:"id"`
	PrincipalID  string          `json:"principal_id" db:"principal_id"`
	RoleID       id.RoleID       `json:"role_id" db:"role_id"`
	Scope        scope.Scope     `json:"scope,omitzero" db:"scope"`
	Status       Status          `json:"status" db:"status"`
	GrantedAt    time.Time       `json:"granted_at" db:"granted_at"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty" db:"expires_at"`
	LastUsed     *time.Time      `json:"last_used,omitempty" db:"last_used"`
	IsPrimary    bool            `json:"is_primary" db:"is_primary"`
	GrantedBy    string          `json:"granted_by,omitempty" db:"granted_by"`
	ApprovedBy   string          `json:"approved_by,omitempty" db:"approved_by"`
	ApprovalDate *time.Time      `json:"approval_date,omitempty" db:"approval_date"`
	Reason       string          `json:"reason,omitempty" db:"reason"`
	Notes        string          `json:"notes,omitempty" db:"notes"`
	RevokedBy    string          `json:"revoked_by,omitempty" db:"revoked_by"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// Expired reports whether the assignment's expiry has passed at the
// given time, independent of the persisted status.
func (a *Assignment) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && !now.Before(*a.ExpiresAt)
}

// Effective reports whether the assignment confers its role at the
// given time: persisted status ACTIVE and expiry (lazily evaluated)
// not yet passed.
func (a *Assignment) Effective(now time.Time) bool {
	return a.Status == StatusActive && !a.Expired(now)
}

// Covers reports whether the assignment authorizes actions in the
// given scope: an unscoped assignment covers everything, a scoped one
// only the identical (kind, id).
func (a *Assignment) Covers(sc scope.Scope) bool {
	return a.Scope.IsZero() || a.Scope.Equal(sc)
}

// ListFilter contains filters for listing assignments.
type ListFilter struct {
	PrincipalID string       `json:"principal_id,omitempty"`
	RoleID      *id.RoleID   `json:"role_id,omitempty"`
	Scope       *scope.Scope `json:"scope,omitempty"`
	Status      Status       `json:"status,omitempty"`
	// EffectiveAt restricts results to assignments effective at the
	// given instant (status ACTIVE and not lazily expired).
	EffectiveAt *time.Time `json:"effective_at,omitempty"`
	Limit       int        `json:"limit,omitempty"`
	Offset      int        `json:"offset,omitempty"`
}
