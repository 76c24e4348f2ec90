// Package plugin defines the plugin system for Custos.
// Plugins are notified of lifecycle events (request submitted, role
// assigned, alert raised, etc.) and can react — notification delivery,
// metrics, outbox rows. Delivery itself is entirely external.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about.
package plugin

import (
	"context"

	"github.com/xraph/custos/accesslog"
	"github.com/xraph/custos/alert"
	"github.com/xraph/custos/assignment"
	"github.com/xraph/custos/grant"
	"github.com/xraph/custos/id"
	"github.com/xraph/custos/permission"
	"github.com/xraph/custos/request"
	"github.com/xraph/custos/role"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// ──────────────────────────────────────────────────
// Catalog lifecycle hooks
// ──────────────────────────────────────────────────

// PermissionCreated is called after a permission is created.
type PermissionCreated interface {
	OnPermissionCreated(ctx context.Context, p *permission.Permission) error
}

// RoleCreated is called after a role is created.
type RoleCreated interface {
	OnRoleCreated(ctx context.Context, r *role.Role) error
}

// PermissionGranted is called after a permission is granted to a role.
type PermissionGranted interface {
	OnPermissionGranted(ctx context.Context, g *grant.Grant) error
}

// GrantRevoked is called after a grant is revoked.
type GrantRevoked interface {
	OnGrantRevoked(ctx context.Context, grantID id.GrantID) error
}

// ──────────────────────────────────────────────────
// Assignment lifecycle hooks
// ──────────────────────────────────────────────────

// RoleAssigned is called after a role is assigned to a principal.
type RoleAssigned interface {
	OnRoleAssigned(ctx context.Context, a *assignment.Assignment) error
}

// AssignmentRevoked is called after an assignment is revoked.
type AssignmentRevoked interface {
	OnAssignmentRevoked(ctx context.Context, a *assignment.Assignment) error
}

// ──────────────────────────────────────────────────
// Request workflow hooks (notification dispatcher seam)
// ──────────────────────────────────────────────────

// RequestSubmitted is called after a permission request is created.
type RequestSubmitted interface {
	OnRequestSubmitted(ctx context.Context, r *request.Request) error
}

// RequestApproved is called after a request is approved and its
// assignment created.
type RequestApproved interface {
	OnRequestApproved(ctx context.Context, r *request.Request, a *assignment.Assignment) error
}

// RequestRejected is called after a request is rejected.
type RequestRejected interface {
	OnRequestRejected(ctx context.Context, r *request.Request) error
}

// ──────────────────────────────────────────────────
// Alert lifecycle hooks
// ──────────────────────────────────────────────────

// AlertRaised is called after a security alert is raised.
type AlertRaised interface {
	OnAlertRaised(ctx context.Context, a *alert.Alert) error
}

// AlertTransitioned is called after an alert changes status.
type AlertTransitioned interface {
	OnAlertTransitioned(ctx context.Context, a *alert.Alert, from alert.Status) error
}

// ──────────────────────────────────────────────────
// Audit side channel
// ──────────────────────────────────────────────────

// AuditWriteFailed is called when an audit log write fails. Audit
// failures never fail the triggering business operation; this hook is
// the side channel through which they surface.
type AuditWriteFailed interface {
	OnAuditWriteFailed(ctx context.Context, e *accesslog.Entry, err error) error
}

// ──────────────────────────────────────────────────
// Shutdown hook
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
