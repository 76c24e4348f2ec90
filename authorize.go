package custos

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/custos/accesslog"
	"github.com/xraph/custos/assignment"
	"github.com/xraph/custos/id"
	"github.com/xraph/custos/scope"
)

// IsAuthorized reports whether the principal holds the permission in
// the given scope. This is the hot path.
//
// The answer is true iff an ACTIVE, non-expired assignment for the
// principal (unscoped, or scoped to exactly sc) links to an active role
// holding an active, non-expired grant for an active permission with
// the given code, and the grant's conditions hold. Expiry is evaluated
// lazily against the engine clock, never against persisted status.
//
// Every check writes an audit entry and, when allowed, stamps
// last_used on the winning assignment — cached and uncached alike.
func (e *Engine) IsAuthorized(ctx context.Context, principalID, code string, sc scope.Scope) (bool, error) {
	if principalID == "" || code == "" {
		return false, fmt.Errorf("%w: principal and permission code are required", ErrValidation)
	}
	if err := sc.Validate(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if e.cache != nil {
		if d, ok := e.cache.Get(ctx, principalID, code, sc); ok {
			e.recordCheck(ctx, principalID, code, sc, d)
			return d.Allowed, nil
		}
	}

	allowed, winner, err := e.authorize(ctx, principalID, code, sc)
	if err != nil {
		return false, err
	}

	d := Decision{Allowed: allowed}
	if winner != nil {
		d.AssignmentID = winner.ID
		d.RoleID = winner.RoleID
	}

	if e.cache != nil {
		e.cache.Set(ctx, principalID, code, sc, d)
	}

	e.recordCheck(ctx, principalID, code, sc, d)
	return allowed, nil
}

// recordCheck stamps last_used and writes the audit entry for a
// decision, whether it came from the store walk or the cache.
func (e *Engine) recordCheck(ctx context.Context, principalID, code string, sc scope.Scope, d Decision) {
	result := accesslog.ResultDenied
	var roleUsed string
	if d.Allowed {
		result = accesslog.ResultSuccess
		roleUsed = d.RoleID.String()
		e.touchLastUsed(ctx, d.AssignmentID)
	}
	e.audit(ctx, RecordInput{
		PrincipalID:    principalID,
		Action:         ActionAuthorizeCheck,
		Resource:       "permission",
		Description:    "authorization check for " + code,
		PermissionUsed: code,
		RoleUsed:       roleUsed,
		TargetID:       sc.String(),
		Result:         result,
	})
}

// authorize walks assignments → roles → grants and returns the winning
// assignment, if any.
func (e *Engine) authorize(ctx context.Context, principalID, code string, sc scope.Scope) (bool, *assignment.Assignment, error) {
	now := e.now().UTC()

	p, err := e.store.GetPermissionByCode(ctx, code)
	if err != nil || p == nil || !p.IsActive {
		// An unknown or deactivated permission authorizes nobody.
		return false, nil, nil
	}

	candidates, err := e.store.ListAssignments(ctx, &assignment.ListFilter{
		PrincipalID: principalID,
		EffectiveAt: &now,
	})
	if err != nil {
		return false, nil, fmt.Errorf("custos: authorize: %w", err)
	}

	covering := make([]*assignment.Assignment, 0, len(candidates))
	roleIDs := make([]id.RoleID, 0, len(candidates))
	for _, a := range candidates {
		if a.Covers(sc) {
			covering = append(covering, a)
			roleIDs = append(roleIDs, a.RoleID)
		}
	}
	if len(covering) == 0 {
		return false, nil, nil
	}

	grants, err := e.store.ListGrantsForRoles(ctx, roleIDs)
	if err != nil {
		return false, nil, fmt.Errorf("custos: authorize: %w", err)
	}

	info := clientInfoFromContext(ctx)
	for _, g := range grants {
		if g.PermissionID.String() != p.ID.String() || !g.Effective(now) {
			continue
		}
		if len(g.Conditions) > 0 && !evaluateConditions(g.Conditions, info, now) {
			continue
		}

		r, err := e.store.GetRole(ctx, g.RoleID)
		if err != nil || r == nil || !r.IsActive {
			continue
		}

		for _, a := range covering {
			if a.RoleID.String() == g.RoleID.String() {
				return true, a, nil
			}
		}
	}
	return false, nil, nil
}

// touchLastUsed stamps last_used on the winning assignment.
// Best-effort; a failed stamp never fails the check.
func (e *Engine) touchLastUsed(ctx context.Context, asgnID id.AssignmentID) {
	if !e.config.lastUsedEnabled() {
		return
	}
	if err := e.store.TouchAssignment(ctx, asgnID, e.now().UTC()); err != nil {
		e.logger.Debug("custos: last_used stamp failed",
			slog.String("assignment", asgnID.String()),
			slog.String("error", err.Error()))
	}
}
