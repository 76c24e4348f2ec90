package assignment

import (
	"context"
	"time"

	"github.com/xraph/custos/id"
)

// Store defines persistence operations for role assignments.
//
// CreateAssignment and ActivateAssignment perform the role capacity
// check and the write as one atomic unit; two concurrent calls must
// not jointly exceed maxAssignees.
type Store interface {
	// CreateAssignment persists a new assignment after checking, in the
	// same transaction, that the role holds fewer than maxAssignees
	// ACTIVE assignments (0 = unlimited) and that no non-revoked
	// assignment exists for the same (principal, role, scope). Live
	// rows whose expiry has passed as of now are retired to EXPIRED in
	// the same unit first: a lapsed holder neither occupies a seat nor
	// blocks re-assignment. Returns custos.ErrCapacityExceeded or
	// custos.ErrDuplicateAssignment.
	CreateAssignment(ctx context.Context, a *Assignment, maxAssignees int, now time.Time) error

	// GetAssignment retrieves an assignment by ID.
	GetAssignment(ctx context.Context, asgnID id.AssignmentID) (*Assignment, error)

	// UpdateAssignment persists changes to an assignment.
	UpdateAssignment(ctx context.Context, a *Assignment) error

	// ActivateAssignment transitions an assignment back to ACTIVE,
	// re-running the capacity check atomically with the same lapsed-row
	// retirement as CreateAssignment. A target whose own expiry has
	// passed is rejected with custos.ErrInvalidState.
	ActivateAssignment(ctx context.Context, asgnID id.AssignmentID, maxAssignees int, now time.Time) (*Assignment, error)

	// TouchAssignment stamps last_used. Best-effort; callers ignore
	// failures.
	TouchAssignment(ctx context.Context, asgnID id.AssignmentID, usedAt time.Time) error

	// ListAssignments returns assignments matching the filter.
	ListAssignments(ctx context.Context, filter *ListFilter) ([]*Assignment, error)

	// CountAssignments returns the number of assignments matching the filter.
	CountAssignments(ctx context.Context, filter *ListFilter) (int64, error)

	// CountActiveForRole returns the number of ACTIVE assignments held
	// against a role.
	CountActiveForRole(ctx context.Context, roleID id.RoleID) (int64, error)

	// MarkExpiredAssignments transitions ACTIVE assignments whose expiry
	// has passed to EXPIRED. Reporting convenience only; correctness
	// never depends on it running.
	MarkExpiredAssignments(ctx context.Context, now time.Time) (int64, error)
}
