package plugin

import (
	"context"
	"log/slog"

	"github.com/xraph/custos/accesslog"
	"github.com/xraph/custos/alert"
	"github.com/xraph/custos/assignment"
	"github.com/xraph/custos/grant"
	"github.com/xraph/custos/id"
	"github.com/xraph/custos/permission"
	"github.com/xraph/custos/request"
	"github.com/xraph/custos/role"
)

// Named entry types pair a hook with the plugin name for logging.

type permissionCreatedEntry struct {
	name string
	hook PermissionCreated
}
type roleCreatedEntry struct {
	name string
	hook RoleCreated
}
type permissionGrantedEntry struct {
	name string
	hook PermissionGranted
}
type grantRevokedEntry struct {
	name string
	hook GrantRevoked
}
type roleAssignedEntry struct {
	name string
	hook RoleAssigned
}
type assignmentRevokedEntry struct {
	name string
	hook AssignmentRevoked
}
type requestSubmittedEntry struct {
	name string
	hook RequestSubmitted
}
type requestApprovedEntry struct {
	name string
	hook RequestApproved
}
type requestRejectedEntry struct {
	name string
	hook RequestRejected
}
type alertRaisedEntry struct {
	name string
	hook AlertRaised
}
type alertTransitionedEntry struct {
	name string
	hook AlertTransitioned
}
type auditWriteFailedEntry struct {
	name string
	hook AuditWriteFailed
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	permissionCreated []permissionCreatedEntry
	roleCreated       []roleCreatedEntry
	permissionGranted []permissionGrantedEntry
	grantRevoked      []grantRevokedEntry
	roleAssigned      []roleAssignedEntry
	assignmentRevoked []assignmentRevokedEntry
	requestSubmitted  []requestSubmittedEntry
	requestApproved   []requestApprovedEntry
	requestRejected   []requestRejectedEntry
	alertRaised       []alertRaisedEntry
	alertTransitioned []alertTransitionedEntry
	auditWriteFailed  []auditWriteFailedEntry
	shutdown          []shutdownEntry
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(PermissionCreated); ok {
		r.permissionCreated = append(r.permissionCreated, permissionCreatedEntry{name, h})
	}
	if h, ok := p.(RoleCreated); ok {
		r.roleCreated = append(r.roleCreated, roleCreatedEntry{name, h})
	}
	if h, ok := p.(PermissionGranted); ok {
		r.permissionGranted = append(r.permissionGranted, permissionGrantedEntry{name, h})
	}
	if h, ok := p.(GrantRevoked); ok {
		r.grantRevoked = append(r.grantRevoked, grantRevokedEntry{name, h})
	}
	if h, ok := p.(RoleAssigned); ok {
		r.roleAssigned = append(r.roleAssigned, roleAssignedEntry{name, h})
	}
	if h, ok := p.(AssignmentRevoked); ok {
		r.assignmentRevoked = append(r.assignmentRevoked, assignmentRevokedEntry{name, h})
	}
	if h, ok := p.(RequestSubmitted); ok {
		r.requestSubmitted = append(r.requestSubmitted, requestSubmittedEntry{name, h})
	}
	if h, ok := p.(RequestApproved); ok {
		r.requestApproved = append(r.requestApproved, requestApprovedEntry{name, h})
	}
	if h, ok := p.(RequestRejected); ok {
		r.requestRejected = append(r.requestRejected, requestRejectedEntry{name, h})
	}
	if h, ok := p.(AlertRaised); ok {
		r.alertRaised = append(r.alertRaised, alertRaisedEntry{name, h})
	}
	if h, ok := p.(AlertTransitioned); ok {
		r.alertTransitioned = append(r.alertTransitioned, alertTransitionedEntry{name, h})
	}
	if h, ok := p.(AuditWriteFailed); ok {
		r.auditWriteFailed = append(r.auditWriteFailed, auditWriteFailedEntry{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// ──────────────────────────────────────────────────
// Catalog event emitters
// ──────────────────────────────────────────────────

// EmitPermissionCreated notifies all plugins that implement PermissionCreated.
func (r *Registry) EmitPermissionCreated(ctx context.Context, p *permission.Permission) {
	for _, e := range r.permissionCreated {
		if err := e.hook.OnPermissionCreated(ctx, p); err != nil {
			r.logHookError("OnPermissionCreated", e.name, err)
		}
	}
}

// EmitRoleCreated notifies all plugins that implement RoleCreated.
func (r *Registry) EmitRoleCreated(ctx context.Context, rl *role.Role) {
	for _, e := range r.roleCreated {
		if err := e.hook.OnRoleCreated(ctx, rl); err != nil {
			r.logHookError("OnRoleCreated", e.name, err)
		}
	}
}

// EmitPermissionGranted notifies all plugins that implement PermissionGranted.
func (r *Registry) EmitPermissionGranted(ctx context.Context, g *grant.Grant) {
	for _, e := range r.permissionGranted {
		if err := e.hook.OnPermissionGranted(ctx, g); err != nil {
			r.logHookError("OnPermissionGranted", e.name, err)
		}
	}
}

// EmitGrantRevoked notifies all plugins that implement GrantRevoked.
func (r *Registry) EmitGrantRevoked(ctx context.Context, grantID id.GrantID) {
	for _, e := range r.grantRevoked {
		if err := e.hook.OnGrantRevoked(ctx, grantID); err != nil {
			r.logHookError("OnGrantRevoked", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Assignment event emitters
// ──────────────────────────────────────────────────

// EmitRoleAssigned notifies all plugins that implement RoleAssigned.
func (r *Registry) EmitRoleAssigned(ctx context.Context, a *assignment.Assignment) {
	for _, e := range r.roleAssigned {
		if err := e.hook.OnRoleAssigned(ctx, a); err != nil {
			r.logHookError("OnRoleAssigned", e.name, err)
		}
	}
}

// EmitAssignmentRevoked notifies all plugins that implement AssignmentRevoked.
func (r *Registry) EmitAssignmentRevoked(ctx context.Context, a *assignment.Assignment) {
	for _, e := range r.assignmentRevoked {
		if err := e.hook.OnAssignmentRevoked(ctx, a); err != nil {
			r.logHookError("OnAssignmentRevoked", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Request event emitters
// ──────────────────────────────────────────────────

// EmitRequestSubmitted notifies all plugins that implement RequestSubmitted.
func (r *Registry) EmitRequestSubmitted(ctx context.Context, req *request.Request) {
	for _, e := range r.requestSubmitted {
		if err := e.hook.OnRequestSubmitted(ctx, req); err != nil {
			r.logHookError("OnRequestSubmitted", e.name, err)
		}
	}
}

// EmitRequestApproved notifies all plugins that implement RequestApproved.
func (r *Registry) EmitRequestApproved(ctx context.Context, req *request.Request, a *assignment.Assignment) {
	for _, e := range r.requestApproved {
		if err := e.hook.OnRequestApproved(ctx, req, a); err != nil {
			r.logHookError("OnRequestApproved", e.name, err)
		}
	}
}

// EmitRequestRejected notifies all plugins that implement RequestRejected.
func (r *Registry) EmitRequestRejected(ctx context.Context, req *request.Request) {
	for _, e := range r.requestRejected {
		if err := e.hook.OnRequestRejected(ctx, req); err != nil {
			r.logHookError("OnRequestRejected", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Alert event emitters
// ──────────────────────────────────────────────────

// EmitAlertRaised notifies all plugins that implement AlertRaised.
func (r *Registry) EmitAlertRaised(ctx context.Context, a *alert.Alert) {
	for _, e := range r.alertRaised {
		if err := e.hook.OnAlertRaised(ctx, a); err != nil {
			r.logHookError("OnAlertRaised", e.name, err)
		}
	}
}

// EmitAlertTransitioned notifies all plugins that implement AlertTransitioned.
func (r *Registry) EmitAlertTransitioned(ctx context.Context, a *alert.Alert, from alert.Status) {
	for _, e := range r.alertTransitioned {
		if err := e.hook.OnAlertTransitioned(ctx, a, from); err != nil {
			r.logHookError("OnAlertTransitioned", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Audit side channel emitter
// ──────────────────────────────────────────────────

// EmitAuditWriteFailed notifies all plugins that implement AuditWriteFailed.
func (r *Registry) EmitAuditWriteFailed(ctx context.Context, entry *accesslog.Entry, err error) {
	for _, e := range r.auditWriteFailed {
		if hookErr := e.hook.OnAuditWriteFailed(ctx, entry, err); hookErr != nil {
			r.logHookError("OnAuditWriteFailed", e.name, hookErr)
		}
	}
}

// ──────────────────────────────────────────────────
// Shutdown emitter
// ──────────────────────────────────────────────────

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the pipeline.
func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}
