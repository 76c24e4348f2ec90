package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/custos"
	"github.com/xraph/custos/grant"
	"github.com/xraph/custos/id"
	"github.com/xraph/custos/role"
)

func (a *API) registerRoleRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("roles"))

	if err := g.POST("/roles", a.createRole,
		forge.WithSummary("Create role"),
		forge.WithDescription("Registers a new role in the catalog."),
		forge.WithOperationID("createRole"),
		forge.WithRequestSchema(CreateRoleRequest{}),
		forge.WithCreatedResponse(&role.Role{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/roles/:roleId", a.getRole,
		forge.WithSummary("Get role"),
		forge.WithOperationID("getRole"),
		forge.WithResponseSchema(http.StatusOK, "Role details", &role.Role{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/roles/:roleId", a.updateRole,
		forge.WithSummary("Update role"),
		forge.WithOperationID("updateRole"),
		forge.WithRequestSchema(UpdateRoleRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated role", &role.Role{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/roles/:roleId", a.deactivateRole,
		forge.WithSummary("Deactivate role"),
		forge.WithDescription("Soft-deactivates a role. System roles cannot be deactivated."),
		forge.WithOperationID("deactivateRole"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/roles", a.listRoles,
		forge.WithSummary("List roles"),
		forge.WithOperationID("listRoles"),
		forge.WithRequestSchema(ListRolesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Role list", ListResponse[*role.Role]{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/roles/:roleId/grants", a.createGrant,
		forge.WithSummary("Grant permission to role"),
		forge.WithOperationID("createGrant"),
		forge.WithRequestSchema(CreateGrantRequest{}),
		forge.WithCreatedResponse(&grant.Grant{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/roles/:roleId/grants", a.listRoleGrants,
		forge.WithSummary("List role grants"),
		forge.WithOperationID("listRoleGrants"),
		forge.WithResponseSchema(http.StatusOK, "Grant list", []*grant.Grant{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/grants/:grantId", a.revokeGrant,
		forge.WithSummary("Revoke grant"),
		forge.WithOperationID("revokeGrant"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) createRole(ctx forge.Context, req *CreateRoleRequest) (*role.Role, error) {
	if req.Name == "" {
		return nil, forge.BadRequest("name is required")
	}

	r, err := a.eng.CreateRole(ctx.Context(), custos.CreateRoleInput{
		Name:           req.Name,
		NameEN:         req.NameEN,
		Description:    req.Description,
		Level:          role.Level(req.Level),
		HierarchyLevel: req.HierarchyLevel,
		MaxAssignees:   req.MaxAssignees,
		IsDefault:      req.IsDefault,
		IsSystemRole:   req.IsSystemRole,
		Restrictions:   req.Restrictions,
		Settings:       req.Settings,
		CreatedBy:      actor(ctx),
	})
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusCreated, r)
}

func (a *API) getRole(ctx forge.Context, _ *GetRoleRequest) (*role.Role, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	r, err := a.eng.GetRole(ctx.Context(), roleID)
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) updateRole(ctx forge.Context, req *UpdateRoleRequest) (*role.Role, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	// Unspecified fields keep their current values.
	current, err := a.eng.GetRole(ctx.Context(), roleID)
	if err != nil {
		return nil, mapError(err)
	}
	description := current.Description
	if req.Description != "" {
		description = req.Description
	}
	maxAssignees := current.MaxAssignees
	if req.MaxAssignees != nil {
		maxAssignees = *req.MaxAssignees
	}
	restrictions := current.Restrictions
	if req.Restrictions != nil {
		restrictions = req.Restrictions
	}
	settings := current.Settings
	if req.Settings != nil {
		settings = req.Settings
	}

	r, err := a.eng.UpdateRole(ctx.Context(), roleID, description, maxAssignees, restrictions, settings, actor(ctx))
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) deactivateRole(ctx forge.Context, _ *GetRoleRequest) (*struct{}, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	if err := a.eng.DeactivateRole(ctx.Context(), roleID, actor(ctx)); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listRoles(ctx forge.Context, req *ListRolesRequest) (*ListResponse[*role.Role], error) {
	filter := &role.ListFilter{
		Level:  role.Level(req.Level),
		Search: req.Search,
		Limit:  defaultLimit(req.Limit),
		Offset: req.Offset,
	}

	roles, err := a.eng.ListRoles(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}
	total, err := a.eng.Store().CountRoles(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ListResponse[*role.Role]{
		Items:  roles,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) createGrant(ctx forge.Context, req *CreateGrantRequest) (*grant.Grant, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}
	permID, err := id.ParsePermissionID(req.PermissionID)
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid permission ID: %v", err))
	}
	expiresAt, err := parseTimePtr(req.ExpiresAt)
	if err != nil {
		return nil, err
	}

	g, err := a.eng.GrantPermission(ctx.Context(), custos.GrantInput{
		RoleID:       roleID,
		PermissionID: permID,
		CanDelegate:  req.CanDelegate,
		IsTemporary:  req.IsTemporary,
		ExpiresAt:    expiresAt,
		Conditions:   req.Conditions,
		Restrictions: req.Restrictions,
		GrantedBy:    actor(ctx),
	})
	if err != nil {
		return nil, mapError(err)
	}

	return g, ctx.JSON(http.StatusCreated, g)
}

func (a *API) listRoleGrants(ctx forge.Context, _ *GetRoleRequest) ([]*grant.Grant, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	grants, err := a.eng.ListGrants(ctx.Context(), &grant.ListFilter{RoleID: &roleID})
	if err != nil {
		return nil, mapError(err)
	}

	return grants, ctx.JSON(http.StatusOK, grants)
}

func (a *API) revokeGrant(ctx forge.Context, _ *GetGrantRequest) (*struct{}, error) {
	grantID, err := id.ParseGrantID(ctx.Param("grantId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid grant ID: %v", err))
	}

	if err := a.eng.RevokeGrant(ctx.Context(), grantID, actor(ctx)); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}
