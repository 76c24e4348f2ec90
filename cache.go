package custos

import (
	"context"

	"github.com/xraph/custos/id"
	"github.com/xraph/custos/scope"
)

// Decision is the outcome of an authorization check. The winning
// assignment and role travel with the verdict so that a cached hit can
// still stamp last_used and write its audit entry.
type Decision struct {
	Allowed      bool
	AssignmentID id.AssignmentID
	RoleID       id.RoleID
}

// Cache provides caching for authorization decisions. Decisions are
// keyed by (principal, permission code, scope). The engine invalidates
// per-principal on assignment mutations and wholesale on catalog or
// grant mutations; correctness never depends on the cache.
type Cache interface {
	// Get returns a cached decision, if available.
	Get(ctx context.Context, principalID, code string, sc scope.Scope) (Decision, bool)

	// Set stores a decision in the cache.
	Set(ctx context.Context, principalID, code string, sc scope.Scope, d Decision)

	// InvalidatePrincipal removes all cached decisions for a principal.
	InvalidatePrincipal(ctx context.Context, principalID string)

	// InvalidateAll removes all cached decisions.
	InvalidateAll(ctx context.Context)
}
