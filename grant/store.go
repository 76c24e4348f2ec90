package grant

import (
	"context"

	"github.com/xraph/custos/id"
)

// Store defines persistence operations for role grants.
type Store interface {
	// CreateGrant persists a new grant. Returns custos.ErrDuplicateGrant
	// if an active grant for the same (role, permission) pair exists.
	CreateGrant(ctx context.Context, g *Grant) error

	// GetGrant retrieves a grant by ID.
	GetGrant(ctx context.Context, grantID id.GrantID) (*Grant, error)

	// UpdateGrant persists changes to a grant.
	UpdateGrant(ctx context.Context, g *Grant) error

	// ListGrants returns grants matching the filter.
	ListGrants(ctx context.Context, filter *ListFilter) ([]*Grant, error)

	// CountGrants returns the number of grants matching the filter.
	CountGrants(ctx context.Context, filter *ListFilter) (int64, error)

	// ListGrantsForRoles returns all active grants attached to any of the
	// given roles. Used on the authorization hot path.
	ListGrantsForRoles(ctx context.Context, roleIDs []id.RoleID) ([]*Grant, error)
}
