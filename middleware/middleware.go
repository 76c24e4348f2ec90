// Package middleware provides HTTP authorization middleware for Custos.
package middleware

import (
	"encoding/json"

	"github.com/xraph/forge"

	"github.com/xraph/custos"
	"github.com/xraph/custos/scope"
)

// Require enforces that the requesting principal holds the permission.
// The principal is resolved from the request context (Authsome user >
// anonymous) and the check runs against the unscoped permission.
func Require(eng *custos.Engine, code string) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			allowed, err := eng.IsAuthorized(ctx.Context(), resolvePrincipal(ctx), code, scope.Unscoped)
			if err != nil || !allowed {
				return denyResponse(ctx)
			}
			return next(ctx)
		}
	}
}

// RequireInScope enforces the permission within a specific scope. The
// scope ID is read from the named route parameter, so a route like
// /courses/:courseId can gate on the course being accessed.
func RequireInScope(eng *custos.Engine, code string, kind scope.Kind, param string) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			sc := scope.Scope{Kind: kind, ID: ctx.Param(param)}
			allowed, err := eng.IsAuthorized(ctx.Context(), resolvePrincipal(ctx), code, sc)
			if err != nil || !allowed {
				return denyResponse(ctx)
			}
			return next(ctx)
		}
	}
}

// RequireAny allows the request if the principal holds ANY of the
// permissions (unscoped).
func RequireAny(eng *custos.Engine, codes ...string) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			principal := resolvePrincipal(ctx)
			for _, code := range codes {
				allowed, err := eng.IsAuthorized(ctx.Context(), principal, code, scope.Unscoped)
				if err == nil && allowed {
					return next(ctx)
				}
			}
			return denyResponse(ctx)
		}
	}
}

// RequireAll allows the request only if the principal holds ALL of the
// permissions (unscoped).
func RequireAll(eng *custos.Engine, codes ...string) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			principal := resolvePrincipal(ctx)
			for _, code := range codes {
				allowed, err := eng.IsAuthorized(ctx.Context(), principal, code, scope.Unscoped)
				if err != nil || !allowed {
					return denyResponse(ctx)
				}
			}
			return next(ctx)
		}
	}
}

// resolvePrincipal extracts the principal from context.
// Priority: Forge user ID (from Authsome) → anonymous.
func resolvePrincipal(ctx forge.Context) string {
	if userID := forge.UserIDFromContext(ctx.Context()); userID != "" {
		return userID
	}
	return "anonymous"
}

func denyResponse(ctx forge.Context) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(403)
	return json.NewEncoder(ctx.Response()).Encode(map[string]string{"error": "access denied"})
}
