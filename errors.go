package custos

import "errors"

var (
	// ErrDuplicateCode is returned when a permission code is already taken.
	ErrDuplicateCode = errors.New("custos: permission code already exists")

	// ErrDuplicateName is returned when a role name is already taken.
	ErrDuplicateName = errors.New("custos: role name already exists")

	// ErrDuplicateGrant is returned when an active grant already links the
	// role and permission.
	ErrDuplicateGrant = errors.New("custos: permission already granted to role")

	// ErrDuplicateAssignment is returned when a non-revoked assignment
	// already exists for the same (principal, role, scope).
	ErrDuplicateAssignment = errors.New("custos: role already assigned to principal")

	// ErrValidation is returned when a structural invariant is violated,
	// e.g. a temporary grant without an expiry or a non-future expires_at.
	ErrValidation = errors.New("custos: validation failed")

	// ErrCapacityExceeded is returned when a role's assignee limit is reached.
	ErrCapacityExceeded = errors.New("custos: role max assignees exceeded")

	// ErrInvalidState is returned when an operation is illegal for the
	// entity's current state, e.g. approving a non-PENDING request.
	ErrInvalidState = errors.New("custos: operation invalid for current state")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("custos: not found")
)
