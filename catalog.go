package custos

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/custos/accesslog"
	"github.com/xraph/custos/grant"
	"github.com/xraph/custos/id"
	"github.com/xraph/custos/permission"
	"github.com/xraph/custos/role"
)

// CreatePermissionInput holds the fields for a new catalog permission.
type CreatePermissionInput struct {
	Name             string
	Code             string
	Description      string
	Category         string
	RiskLevel        permission.RiskLevel
	RequiresApproval bool
	AutoExpire       bool
	ExpireDays       int
	CreatedBy        string
}

// CreatePermission registers a new permission in the catalog.
func (e *Engine) CreatePermission(ctx context.Context, in CreatePermissionInput) (*permission.Permission, error) {
	if in.Name == "" || in.Code == "" {
		return nil, fmt.Errorf("%w: permission name and code are required", ErrValidation)
	}
	if !in.RiskLevel.Valid() {
		return nil, fmt.Errorf("%w: unknown risk level %q", ErrValidation, in.RiskLevel)
	}
	if in.AutoExpire && in.ExpireDays <= 0 {
		return nil, fmt.Errorf("%w: auto_expire requires expire_days > 0", ErrValidation)
	}

	now := e.now().UTC()
	p := &permission.Permission{
		ID:               id.NewPermissionID(),
		Name:             in.Name,
		Code:             in.Code,
		Description:      in.Description,
		Category:         in.Category,
		RiskLevel:        in.RiskLevel,
		RequiresApproval: in.RequiresApproval,
		AutoExpire:       in.AutoExpire,
		ExpireDays:       in.ExpireDays,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := e.store.CreatePermission(ctx, p); err != nil {
		return nil, fmt.Errorf("custos: create permission %q: %w", in.Code, err)
	}

	if e.plugins != nil {
		e.plugins.EmitPermissionCreated(ctx, p)
	}
	e.audit(ctx, RecordInput{
		PrincipalID: in.CreatedBy,
		Action:      ActionPermissionCreate,
		Resource:    "permission",
		Description: "created permission " + in.Code,
		TargetID:    p.ID.String(),
		Result:      accesslog.ResultSuccess,
	})
	return p, nil
}

// UpdatePermission changes a permission's descriptive fields. Code and
// risk level are immutable after creation.
func (e *Engine) UpdatePermission(ctx context.Context, permID id.PermissionID, name, description, category string, updatedBy string) (*permission.Permission, error) {
	p, err := e.store.GetPermission(ctx, permID)
	if err != nil {
		return nil, fmt.Errorf("custos: update permission: %w", err)
	}

	if name != "" {
		p.Name = name
	}
	p.Description = description
	p.Category = category
	p.UpdatedAt = e.now().UTC()

	if err := e.store.UpdatePermission(ctx, p); err != nil {
		return nil, fmt.Errorf("custos: update permission: %w", err)
	}

	e.audit(ctx, RecordInput{
		PrincipalID: updatedBy,
		Action:      ActionPermissionUpdate,
		Resource:    "permission",
		Description: "updated permission " + p.Code,
		TargetID:    p.ID.String(),
		Result:      accesslog.ResultSuccess,
	})
	return p, nil
}

// DeactivatePermission soft-deactivates a permission. Idempotent.
// Deactivated permissions never authorize but stay referenced by
// existing grants and audit entries.
func (e *Engine) DeactivatePermission(ctx context.Context, permID id.PermissionID, deactivatedBy string) error {
	p, err := e.store.GetPermission(ctx, permID)
	if err != nil {
		return fmt.Errorf("custos: deactivate permission: %w", err)
	}
	if !p.IsActive {
		return nil
	}

	p.IsActive = false
	p.UpdatedAt = e.now().UTC()
	if err := e.store.UpdatePermission(ctx, p); err != nil {
		return fmt.Errorf("custos: deactivate permission: %w", err)
	}

	e.invalidateAll(ctx)
	e.audit(ctx, RecordInput{
		PrincipalID: deactivatedBy,
		Action:      ActionPermissionDeactivate,
		Resource:    "permission",
		Description: "deactivated permission " + p.Code,
		TargetID:    p.ID.String(),
		Result:      accesslog.ResultSuccess,
	})
	return nil
}

// GetPermission retrieves a permission by ID.
func (e *Engine) GetPermission(ctx context.Context, permID id.PermissionID) (*permission.Permission, error) {
	return e.store.GetPermission(ctx, permID)
}

// GetPermissionByCode retrieves a permission by its unique code.
func (e *Engine) GetPermissionByCode(ctx context.Context, code string) (*permission.Permission, error) {
	return e.store.GetPermissionByCode(ctx, code)
}

// ListPermissions returns permissions matching the filter.
func (e *Engine) ListPermissions(ctx context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	return e.store.ListPermissions(ctx, filter)
}

// ──────────────────────────────────────────────────
// Roles
// ──────────────────────────────────────────────────

// CreateRoleInput holds the fields for a new role.
type CreateRoleInput struct {
	Name           string
	NameEN         string
	Description    string
	Level          role.Level
	HierarchyLevel int
	MaxAssignees   int
	IsDefault      bool
	IsSystemRole   bool
	Restrictions   map[string]any
	Settings       map[string]any
	CreatedBy      string
}

// CreateRole registers a new role in the catalog.
func (e *Engine) CreateRole(ctx context.Context, in CreateRoleInput) (*role.Role, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrValidation)
	}
	if !in.Level.Valid() {
		return nil, fmt.Errorf("%w: unknown role level %q", ErrValidation, in.Level)
	}
	if in.MaxAssignees < 0 {
		return nil, fmt.Errorf("%w: max_assignees must be >= 0", ErrValidation)
	}

	now := e.now().UTC()
	r := &role.Role{
		ID:             id.NewRoleID(),
		Name:           in.Name,
		NameEN:         in.NameEN,
		Description:    in.Description,
		Level:          in.Level,
		HierarchyLevel: in.HierarchyLevel,
		MaxAssignees:   in.MaxAssignees,
		IsDefault:      in.IsDefault,
		IsSystemRole:   in.IsSystemRole,
		Restrictions:   in.Restrictions,
		Settings:       in.Settings,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := e.store.CreateRole(ctx, r); err != nil {
		return nil, fmt.Errorf("custos: create role %q: %w", in.Name, err)
	}

	if e.plugins != nil {
		e.plugins.EmitRoleCreated(ctx, r)
	}
	e.audit(ctx, RecordInput{
		PrincipalID: in.CreatedBy,
		Action:      ActionRoleCreate,
		Resource:    "role",
		Description: "created role " + r.Name,
		TargetID:    r.ID.String(),
		Result:      accesslog.ResultSuccess,
	})
	return r, nil
}

// UpdateRole changes a role's descriptive fields and capacity. Name and
// level are immutable after creation.
func (e *Engine) UpdateRole(ctx context.Context, roleID id.RoleID, description string, maxAssignees int, restrictions, settings map[string]any, updatedBy string) (*role.Role, error) {
	r, err := e.store.GetRole(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("custos: update role: %w", err)
	}
	if maxAssignees < 0 {
		return nil, fmt.Errorf("%w: max_assignees must be >= 0", ErrValidation)
	}

	r.Description = description
	r.MaxAssignees = maxAssignees
	r.Restrictions = restrictions
	r.Settings = settings
	r.UpdatedAt = e.now().UTC()

	if err := e.store.UpdateRole(ctx, r); err != nil {
		return nil, fmt.Errorf("custos: update role: %w", err)
	}

	e.audit(ctx, RecordInput{
		PrincipalID: updatedBy,
		Action:      ActionRoleUpdate,
		Resource:    "role",
		Description: "updated role " + r.Name,
		TargetID:    r.ID.String(),
		Result:      accesslog.ResultSuccess,
	})
	return r, nil
}

// DeactivateRole soft-deactivates a role. Idempotent. System roles
// cannot be deactivated.
func (e *Engine) DeactivateRole(ctx context.Context, roleID id.RoleID, deactivatedBy string) error {
	r, err := e.store.GetRole(ctx, roleID)
	if err != nil {
		return fmt.Errorf("custos: deactivate role: %w", err)
	}
	if r.IsSystemRole {
		return fmt.Errorf("%w: system role %q cannot be deactivated", ErrInvalidState, r.Name)
	}
	if !r.IsActive {
		return nil
	}

	r.IsActive = false
	r.UpdatedAt = e.now().UTC()
	if err := e.store.UpdateRole(ctx, r); err != nil {
		return fmt.Errorf("custos: deactivate role: %w", err)
	}

	e.invalidateAll(ctx)
	e.audit(ctx, RecordInput{
		PrincipalID: deactivatedBy,
		Action:      ActionRoleDeactivate,
		Resource:    "role",
		Description: "deactivated role " + r.Name,
		TargetID:    r.ID.String(),
		Result:      accesslog.ResultSuccess,
	})
	return nil
}

// GetRole retrieves a role by ID.
func (e *Engine) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	return e.store.GetRole(ctx, roleID)
}

// GetRoleByName retrieves a role by its unique name.
func (e *Engine) GetRoleByName(ctx context.Context, name string) (*role.Role, error) {
	return e.store.GetRoleByName(ctx, name)
}

// ListRoles returns roles matching the filter.
func (e *Engine) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	return e.store.ListRoles(ctx, filter)
}

// ──────────────────────────────────────────────────
// Grants
// ──────────────────────────────────────────────────

// GrantInput holds the fields linking a permission to a role.
type GrantInput struct {
	RoleID       id.RoleID
	PermissionID id.PermissionID
	CanDelegate  bool
	IsTemporary  bool
	ExpiresAt    *time.Time
	Conditions   map[string]any
	Restrictions map[string]any
	GrantedBy    string
}

// GrantPermission attaches a permission to a role.
func (e *Engine) GrantPermission(ctx context.Context, in GrantInput) (*grant.Grant, error) {
	if in.IsTemporary && in.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: temporary grant requires expires_at", ErrValidation)
	}

	r, err := e.store.GetRole(ctx, in.RoleID)
	if err != nil {
		return nil, fmt.Errorf("custos: grant permission: %w", err)
	}
	p, err := e.store.GetPermission(ctx, in.PermissionID)
	if err != nil {
		return nil, fmt.Errorf("custos: grant permission: %w", err)
	}
	if !r.IsActive || !p.IsActive {
		return nil, fmt.Errorf("%w: cannot grant on a deactivated role or permission", ErrInvalidState)
	}

	now := e.now().UTC()
	g := &grant.Grant{
		ID:           id.NewGrantID(),
		RoleID:       in.RoleID,
		PermissionID: in.PermissionID,
		CanDelegate:  in.CanDelegate,
		IsTemporary:  in.IsTemporary,
		ExpiresAt:    in.ExpiresAt,
		Conditions:   in.Conditions,
		Restrictions: in.Restrictions,
		GrantedBy:    in.GrantedBy,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := e.store.CreateGrant(ctx, g); err != nil {
		return nil, fmt.Errorf("custos: grant %s to %s: %w", p.Code, r.Name, err)
	}

	e.invalidateAll(ctx)
	if e.plugins != nil {
		e.plugins.EmitPermissionGranted(ctx, g)
	}
	e.audit(ctx, RecordInput{
		PrincipalID:    in.GrantedBy,
		Action:         ActionGrantCreate,
		Resource:       "grant",
		Description:    fmt.Sprintf("granted %s to role %s", p.Code, r.Name),
		TargetID:       g.ID.String(),
		PermissionUsed: p.Code,
		Result:         accesslog.ResultSuccess,
	})
	return g, nil
}

// RevokeGrant marks a grant inactive. Idempotent.
func (e *Engine) RevokeGrant(ctx context.Context, grantID id.GrantID, revokedBy string) error {
	g, err := e.store.GetGrant(ctx, grantID)
	if err != nil {
		return fmt.Errorf("custos: revoke grant: %w", err)
	}
	if !g.IsActive {
		return nil
	}

	g.IsActive = false
	g.UpdatedAt = e.now().UTC()
	if err := e.store.UpdateGrant(ctx, g); err != nil {
		return fmt.Errorf("custos: revoke grant: %w", err)
	}

	e.invalidateAll(ctx)
	if e.plugins != nil {
		e.plugins.EmitGrantRevoked(ctx, grantID)
	}
	e.audit(ctx, RecordInput{
		PrincipalID: revokedBy,
		Action:      ActionGrantRevoke,
		Resource:    "grant",
		Description: "revoked grant",
		TargetID:    grantID.String(),
		Result:      accesslog.ResultSuccess,
	})
	return nil
}

// GetGrant retrieves a grant by ID.
func (e *Engine) GetGrant(ctx context.Context, grantID id.GrantID) (*grant.Grant, error) {
	return e.store.GetGrant(ctx, grantID)
}

// ListGrants returns grants matching the filter.
func (e *Engine) ListGrants(ctx context.Context, filter *grant.ListFilter) ([]*grant.Grant, error) {
	return e.store.ListGrants(ctx, filter)
}
