package custos

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/custos/accesslog"
	"github.com/xraph/custos/assignment"
	"github.com/xraph/custos/id"
	"github.com/xraph/custos/role"
	"github.com/xraph/custos/scope"
)

// AssignRoleInput holds the fields for a new role assignment.
type AssignRoleInput struct {
	PrincipalID string
	RoleID      id.RoleID
	Scope       scope.Scope
	ExpiresAt   *time.Time
	IsPrimary   bool
	GrantedBy   string
	ApprovedBy  string
	Reason      string
	Notes       string
}

// AssignRole binds a role to a principal. The capacity check against
// role.MaxAssignees and the insert run as one atomic store operation,
// so two concurrent calls cannot jointly exceed the limit.
func (e *Engine) AssignRole(ctx context.Context, in AssignRoleInput) (*assignment.Assignment, error) {
	r, a, err := e.buildAssignment(ctx, in)
	if err != nil {
		return nil, err
	}

	if err := e.store.CreateAssignment(ctx, a, r.MaxAssignees, a.GrantedAt); err != nil {
		e.audit(ctx, RecordInput{
			PrincipalID:  in.GrantedBy,
			Action:       ActionRoleAssign,
			Resource:     "assignment",
			Description:  fmt.Sprintf("assign role %s to %s", r.Name, in.PrincipalID),
			TargetID:     in.PrincipalID,
			RoleUsed:     r.ID.String(),
			Result:       accesslog.ResultFailed,
			ErrorMessage: err.Error(),
		})
		return nil, fmt.Errorf("custos: assign role %q: %w", r.Name, err)
	}

	e.invalidatePrincipal(ctx, a.PrincipalID)
	if e.plugins != nil {
		e.plugins.EmitRoleAssigned(ctx, a)
	}
	e.audit(ctx, RecordInput{
		PrincipalID: in.GrantedBy,
		Action:      ActionRoleAssign,
		Resource:    "assignment",
		Description: fmt.Sprintf("assigned role %s to %s", r.Name, in.PrincipalID),
		TargetID:    a.ID.String(),
		RoleUsed:    r.ID.String(),
		Result:      accesslog.ResultSuccess,
	})
	return a, nil
}

// buildAssignment validates the input and constructs the row. Shared
// with the approval workflow.
func (e *Engine) buildAssignment(ctx context.Context, in AssignRoleInput) (*role.Role, *assignment.Assignment, error) {
	if in.PrincipalID == "" {
		return nil, nil, fmt.Errorf("%w: principal is required", ErrValidation)
	}
	if err := in.Scope.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := e.now().UTC()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, nil, fmt.Errorf("%w: expires_at must be strictly in the future", ErrValidation)
	}

	r, err := e.store.GetRole(ctx, in.RoleID)
	if err != nil {
		return nil, nil, fmt.Errorf("custos: assign role: %w", err)
	}
	if !r.IsActive {
		return nil, nil, fmt.Errorf("%w: role %q is deactivated", ErrInvalidState, r.Name)
	}

	a := &assignment.Assignment{
		ID:          id.NewAssignmentID(),
		PrincipalID: in.PrincipalID,
		RoleID:      in.RoleID,
		Scope:       in.Scope,
		Status:      assignment.StatusActive,
		GrantedAt:   now,
		ExpiresAt:   in.ExpiresAt,
		IsPrimary:   in.IsPrimary,
		GrantedBy:   in.GrantedBy,
		ApprovedBy:  in.ApprovedBy,
		Reason:      in.Reason,
		Notes:       in.Notes,
		UpdatedAt:   now,
	}
	if in.ApprovedBy != "" {
		a.ApprovalDate = &now
	}
	return r, a, nil
}

// ExtendExpiry pushes an ACTIVE assignment's expiry out by
// additionalDays, counted from the later of now and the current
// expiry. An unbounded assignment gains an expiry counted from now.
func (e *Engine) ExtendExpiry(ctx context.Context, asgnID id.AssignmentID, additionalDays int, extendedBy string) (*assignment.Assignment, error) {
	if additionalDays <= 0 {
		return nil, fmt.Errorf("%w: additional_days must be > 0", ErrValidation)
	}

	a, err := e.store.GetAssignment(ctx, asgnID)
	if err != nil {
		return nil, fmt.Errorf("custos: extend expiry: %w", err)
	}

	now := e.now().UTC()
	if !a.Effective(now) {
		return nil, fmt.Errorf("%w: assignment is not active", ErrInvalidState)
	}

	base := now
	if a.ExpiresAt != nil && a.ExpiresAt.After(base) {
		base = *a.ExpiresAt
	}
	expires := base.AddDate(0, 0, additionalDays)
	a.ExpiresAt = &expires
	a.UpdatedAt = now

	if err := e.store.UpdateAssignment(ctx, a); err != nil {
		return nil, fmt.Errorf("custos: extend expiry: %w", err)
	}

	e.invalidatePrincipal(ctx, a.PrincipalID)
	e.audit(ctx, RecordInput{
		PrincipalID: extendedBy,
		Action:      ActionAssignmentExtend,
		Resource:    "assignment",
		Description: fmt.Sprintf("extended expiry by %d days", additionalDays),
		TargetID:    a.ID.String(),
		RoleUsed:    a.RoleID.String(),
		Result:      accesslog.ResultSuccess,
	})
	return a, nil
}

// RevokeAssignment terminally revokes an assignment. A second call on
// an already-REVOKED row is a no-op, not an error.
func (e *Engine) RevokeAssignment(ctx context.Context, asgnID id.AssignmentID, reason, revokedBy string) (*assignment.Assignment, error) {
	a, err := e.store.GetAssignment(ctx, asgnID)
	if err != nil {
		return nil, fmt.Errorf("custos: revoke assignment: %w", err)
	}
	if a.Status == assignment.StatusRevoked {
		return a, nil
	}

	a.Status = assignment.StatusRevoked
	a.Reason = reason
	a.RevokedBy = revokedBy
	a.UpdatedAt = e.now().UTC()

	if err := e.store.UpdateAssignment(ctx, a); err != nil {
		return nil, fmt.Errorf("custos: revoke assignment: %w", err)
	}

	e.invalidatePrincipal(ctx, a.PrincipalID)
	if e.plugins != nil {
		e.plugins.EmitAssignmentRevoked(ctx, a)
	}
	e.audit(ctx, RecordInput{
		PrincipalID: revokedBy,
		Action:      ActionAssignmentRevoke,
		Resource:    "assignment",
		Description: "revoked assignment: " + reason,
		TargetID:    a.ID.String(),
		RoleUsed:    a.RoleID.String(),
		Result:      accesslog.ResultSuccess,
	})
	return a, nil
}

// SuspendAssignment pauses an ACTIVE assignment without terminalizing it.
func (e *Engine) SuspendAssignment(ctx context.Context, asgnID id.AssignmentID, reason, suspendedBy string) (*assignment.Assignment, error) {
	a, err := e.store.GetAssignment(ctx, asgnID)
	if err != nil {
		return nil, fmt.Errorf("custos: suspend assignment: %w", err)
	}
	if a.Status != assignment.StatusActive {
		return nil, fmt.Errorf("%w: only an active assignment can be suspended", ErrInvalidState)
	}

	a.Status = assignment.StatusSuspended
	a.Notes = reason
	a.UpdatedAt = e.now().UTC()

	if err := e.store.UpdateAssignment(ctx, a); err != nil {
		return nil, fmt.Errorf("custos: suspend assignment: %w", err)
	}

	e.invalidatePrincipal(ctx, a.PrincipalID)
	e.audit(ctx, RecordInput{
		PrincipalID: suspendedBy,
		Action:      ActionAssignmentSuspend,
		Resource:    "assignment",
		Description: "suspended assignment: " + reason,
		TargetID:    a.ID.String(),
		RoleUsed:    a.RoleID.String(),
		Result:      accesslog.ResultSuccess,
	})
	return a, nil
}

// ReactivateAssignment resumes a SUSPENDED assignment. The role's
// capacity check is re-run atomically; a seat freed while suspended may
// have been taken.
func (e *Engine) ReactivateAssignment(ctx context.Context, asgnID id.AssignmentID, reactivatedBy string) (*assignment.Assignment, error) {
	a, err := e.store.GetAssignment(ctx, asgnID)
	if err != nil {
		return nil, fmt.Errorf("custos: reactivate assignment: %w", err)
	}
	if a.Status != assignment.StatusSuspended {
		return nil, fmt.Errorf("%w: only a suspended assignment can be reactivated", ErrInvalidState)
	}

	r, err := e.store.GetRole(ctx, a.RoleID)
	if err != nil {
		return nil, fmt.Errorf("custos: reactivate assignment: %w", err)
	}

	a, err = e.store.ActivateAssignment(ctx, asgnID, r.MaxAssignees, e.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("custos: reactivate assignment: %w", err)
	}

	e.invalidatePrincipal(ctx, a.PrincipalID)
	e.audit(ctx, RecordInput{
		PrincipalID: reactivatedBy,
		Action:      ActionAssignmentReactivate,
		Resource:    "assignment",
		Description: "reactivated assignment",
		TargetID:    a.ID.String(),
		RoleUsed:    a.RoleID.String(),
		Result:      accesslog.ResultSuccess,
	})
	return a, nil
}

// GetAssignment retrieves an assignment by ID.
func (e *Engine) GetAssignment(ctx context.Context, asgnID id.AssignmentID) (*assignment.Assignment, error) {
	return e.store.GetAssignment(ctx, asgnID)
}

// ListAssignments returns assignments matching the filter.
func (e *Engine) ListAssignments(ctx context.Context, filter *assignment.ListFilter) ([]*assignment.Assignment, error) {
	return e.store.ListAssignments(ctx, filter)
}
