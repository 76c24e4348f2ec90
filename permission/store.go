package permission

import (
	"context"

	"github.com/xraph/custos/id"
)

// Store defines persistence operations for permissions.
type Store interface {
	// CreatePermission persists a new permission. Returns
	// custos.ErrDuplicateCode if the code is already taken.
	CreatePermission(ctx context.Context, p *Permission) error

	// GetPermission retrieves a permission by ID.
	GetPermission(ctx context.Context, permID id.PermissionID) (*Permission, error)

	// GetPermissionByCode retrieves a permission by its unique code.
	GetPermissionByCode(ctx context.Context, code string) (*Permission, error)

	// UpdatePermission persists changes to a permission.
	UpdatePermission(ctx context.Context, p *Permission) error

	// ListPermissions returns permissions matching the filter.
	ListPermissions(ctx context.Context, filter *ListFilter) ([]*Permission, error)

	// CountPermissions returns the number of permissions matching the filter.
	CountPermissions(ctx context.Context, filter *ListFilter) (int64, error)
}
