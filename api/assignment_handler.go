package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/custos"
	"github.com/xraph/custos/assignment"
	"github.com/xraph/custos/id"
)

func (a *API) registerAssignmentRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("assignments"))

	if err := g.POST("/assignments", a.assignRole,
		forge.WithSummary("Assign role"),
		forge.WithDescription("Binds a role to a principal, enforcing role capacity."),
		forge.WithOperationID("assignRole"),
		forge.WithRequestSchema(AssignRoleRequest{}),
		forge.WithCreatedResponse(&assignment.Assignment{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/assignments/:assignmentId", a.getAssignment,
		forge.WithSummary("Get assignment"),
		forge.WithOperationID("getAssignment"),
		forge.WithResponseSchema(http.StatusOK, "Assignment details", &assignment.Assignment{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/assignments", a.listAssignments,
		forge.WithSummary("List assignments"),
		forge.WithOperationID("listAssignments"),
		forge.WithRequestSchema(ListAssignmentsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Assignment list", ListResponse[*assignment.Assignment]{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/assignments/:assignmentId/revoke", a.revokeAssignment,
		forge.WithSummary("Revoke assignment"),
		forge.WithOperationID("revokeAssignment"),
		forge.WithRequestSchema(AssignmentActionRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Revoked assignment", &assignment.Assignment{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/assignments/:assignmentId/suspend", a.suspendAssignment,
		forge.WithSummary("Suspend assignment"),
		forge.WithOperationID("suspendAssignment"),
		forge.WithRequestSchema(AssignmentActionRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Suspended assignment", &assignment.Assignment{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/assignments/:assignmentId/reactivate", a.reactivateAssignment,
		forge.WithSummary("Reactivate assignment"),
		forge.WithDescription("Transitions a SUSPENDED assignment back to ACTIVE, re-checking capacity."),
		forge.WithOperationID("reactivateAssignment"),
		forge.WithResponseSchema(http.StatusOK, "Reactivated assignment", &assignment.Assignment{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/assignments/:assignmentId/extend", a.extendAssignment,
		forge.WithSummary("Extend assignment expiry"),
		forge.WithOperationID("extendAssignment"),
		forge.WithRequestSchema(ExtendExpiryRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Extended assignment", &assignment.Assignment{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) assignRole(ctx forge.Context, req *AssignRoleRequest) (*assignment.Assignment, error) {
	if req.PrincipalID == "" || req.RoleID == "" {
		return nil, forge.BadRequest("principal_id and role_id are required")
	}
	roleID, err := id.ParseRoleID(req.RoleID)
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}
	sc, err := parseScope(req.Scope)
	if err != nil {
		return nil, err
	}
	expiresAt, err := parseTimePtr(req.ExpiresAt)
	if err != nil {
		return nil, err
	}

	asgn, err := a.eng.AssignRole(ctx.Context(), custos.AssignRoleInput{
		PrincipalID: req.PrincipalID,
		RoleID:      roleID,
		Scope:       sc,
		ExpiresAt:   expiresAt,
		IsPrimary:   req.IsPrimary,
		GrantedBy:   actor(ctx),
		Reason:      req.Reason,
		Notes:       req.Notes,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return asgn, ctx.JSON(http.StatusCreated, asgn)
}

func (a *API) getAssignment(ctx forge.Context, _ *GetAssignmentRequest) (*assignment.Assignment, error) {
	asgnID, err := id.ParseAssignmentID(ctx.Param("assignmentId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid assignment ID: %v", err))
	}

	asgn, err := a.eng.GetAssignment(ctx.Context(), asgnID)
	if err != nil {
		return nil, mapError(err)
	}

	return asgn, ctx.JSON(http.StatusOK, asgn)
}

func (a *API) listAssignments(ctx forge.Context, req *ListAssignmentsRequest) (*ListResponse[*assignment.Assignment], error) {
	filter := &assignment.ListFilter{
		PrincipalID: req.PrincipalID,
		Status:      assignment.Status(req.Status),
		Limit:       defaultLimit(req.Limit),
		Offset:      req.Offset,
	}
	if req.RoleID != "" {
		roleID, err := id.ParseRoleID(req.RoleID)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
		}
		filter.RoleID = &roleID
	}

	asgns, err := a.eng.ListAssignments(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}
	total, err := a.eng.Store().CountAssignments(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ListResponse[*assignment.Assignment]{
		Items:  asgns,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) revokeAssignment(ctx forge.Context, req *AssignmentActionRequest) (*assignment.Assignment, error) {
	asgnID, err := id.ParseAssignmentID(ctx.Param("assignmentId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid assignment ID: %v", err))
	}

	asgn, err := a.eng.RevokeAssignment(ctx.Context(), asgnID, req.Reason, actor(ctx))
	if err != nil {
		return nil, mapError(err)
	}

	return asgn, ctx.JSON(http.StatusOK, asgn)
}

func (a *API) suspendAssignment(ctx forge.Context, req *AssignmentActionRequest) (*assignment.Assignment, error) {
	asgnID, err := id.ParseAssignmentID(ctx.Param("assignmentId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid assignment ID: %v", err))
	}

	asgn, err := a.eng.SuspendAssignment(ctx.Context(), asgnID, req.Reason, actor(ctx))
	if err != nil {
		return nil, mapError(err)
	}

	return asgn, ctx.JSON(http.StatusOK, asgn)
}

func (a *API) reactivateAssignment(ctx forge.Context, _ *GetAssignmentRequest) (*assignment.Assignment, error) {
	asgnID, err := id.ParseAssignmentID(ctx.Param("assignmentId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid assignment ID: %v", err))
	}

	asgn, err := a.eng.ReactivateAssignment(ctx.Context(), asgnID, actor(ctx))
	if err != nil {
		return nil, mapError(err)
	}

	return asgn, ctx.JSON(http.StatusOK, asgn)
}

func (a *API) extendAssignment(ctx forge.Context, req *ExtendExpiryRequest) (*assignment.Assignment, error) {
	asgnID, err := id.ParseAssignmentID(ctx.Param("assignmentId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid assignment ID: %v", err))
	}

	asgn, err := a.eng.ExtendExpiry(ctx.Context(), asgnID, req.AdditionalDays, actor(ctx))
	if err != nil {
		return nil, mapError(err)
	}

	return asgn, ctx.JSON(http.StatusOK, asgn)
}
