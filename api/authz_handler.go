package api

import (
	"net/http"

	"github.com/xraph/forge"
)

func (a *API) registerAuthzRoutes(router forge.Router) error {
	g := router.Group("/v1/authz", forge.WithGroupTags("authorization"))

	if err := g.POST("/check", a.check,
		forge.WithSummary("Authorization check"),
		forge.WithDescription("Reports whether the principal holds the permission in the given scope."),
		forge.WithOperationID("authzCheck"),
		forge.WithRequestSchema(AuthorizeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Check result", AuthorizeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/enforce", a.enforce,
		forge.WithSummary("Enforce authorization"),
		forge.WithDescription("Returns 200 if allowed, 403 if denied."),
		forge.WithOperationID("authzEnforce"),
		forge.WithRequestSchema(AuthorizeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Allowed", AuthorizeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/sweep", a.sweep,
		forge.WithSummary("Sweep expired records"),
		forge.WithDescription("Transitions overdue ACTIVE assignments and PENDING requests to EXPIRED."),
		forge.WithOperationID("authzSweep"),
		forge.WithResponseSchema(http.StatusOK, "Sweep result", SweepResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) check(ctx forge.Context, req *AuthorizeRequest) (*AuthorizeResponse, error) {
	if req.PrincipalID == "" || req.Permission == "" {
		return nil, forge.BadRequest("principal_id and permission are required")
	}
	sc, err := parseScope(req.Scope)
	if err != nil {
		return nil, err
	}

	allowed, err := a.eng.IsAuthorized(ctx.Context(), req.PrincipalID, req.Permission, sc)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &AuthorizeResponse{Allowed: allowed}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) enforce(ctx forge.Context, req *AuthorizeRequest) (*AuthorizeResponse, error) {
	if req.PrincipalID == "" || req.Permission == "" {
		return nil, forge.BadRequest("principal_id and permission are required")
	}
	sc, err := parseScope(req.Scope)
	if err != nil {
		return nil, err
	}

	allowed, err := a.eng.IsAuthorized(ctx.Context(), req.PrincipalID, req.Permission, sc)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &AuthorizeResponse{Allowed: allowed}
	if !allowed {
		return resp, ctx.JSON(http.StatusForbidden, resp)
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) sweep(ctx forge.Context, _ *struct{}) (*SweepResponse, error) {
	res, err := a.eng.SweepExpired(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}

	resp := &SweepResponse{
		ExpiredAssignments: res.ExpiredAssignments,
		ExpiredRequests:    res.ExpiredRequests,
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}
