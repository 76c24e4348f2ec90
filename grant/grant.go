// Package grant defines the Grant entity (role→permission binding).
package grant

import (
	"time"

	"github.com/xraph/custos/id"
)

// Grant links a permission to a role, optionally temporary and
// optionally guarded by structured conditions. Grants mutate via
// status transition (active → inactive), never row deletion.
//
// Invariant: IsTemporary implies ExpiresAt is set.
type Grant struct {
	ID           id.GrantID      `json:"id" db:"id"`
	RoleID       id.RoleID       `json:"role_id" db:"role_id"`
	PermissionID id.PermissionID `json:"permission_id" db:"permission_id"`
	CanDelegate  bool            `json:"can_delegate" db:"can_delegate"`
	IsTemporary  bool            `json:"is_temporary" db:"is_temporary"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty" db:"expires_at"`
	Conditions   map[string]any  `json:"conditions,omitempty" db:"conditions"`
	Restrictions map[string]any  `json:"restrictions,omitempty" db:"restrictions"`
	GrantedBy    string          `json:"granted_by,omitempty" db:"granted_by"`
	IsActive     bool            `json:"is_active" db:"is_active"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// Expired reports whether the grant's expiry has passed at the given
// time. Expiry is always evaluated lazily against the caller's clock,
// never against a persisted status.
func (g *Grant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && !now.Before(*g.ExpiresAt)
}

// Effective reports whether the grant confers its permission at the
// given time.
func (g *Grant) Effective(now time.Time) bool {
	return g.IsActive && !g.Expired(now)
}

// ListFilter contains filters for listing grants.
type ListFilter struct {
	RoleID       *id.RoleID       `json:"role_id,omitempty"`
	PermissionID *id.PermissionID `json:"permission_id,omitempty"`
	IsActive     *bool            `json:"is_active,omitempty"`
	Limit        int              `json:"limit,omitempty"`
	Offset       int              `json:"offset,omitempty"`
}
