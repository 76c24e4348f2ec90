// Package custos provides an access-control engine for Go services.
//
// Custos manages a catalog of permissions and roles, scoped and
// time-bound role assignments, an approval-gated permission request
// workflow, an append-only access audit log, and a security alert
// lifecycle. It is a library-level core: authentication, principal
// directories, scope resolution, and notification delivery are
// external collaborators.
//
//	eng, err := custos.NewEngine(
//	    custos.WithStore(memStore),
//	)
//	ok, err := eng.IsAuthorized(ctx, "user_123", "grade.override",
//	    scope.New(scope.KindDepartment, "cs"))
package custos

// ClientInfo carries request-level client metadata into audit log
// entries. It travels on the context via WithClientInfo.
type ClientInfo struct {
	SourceIP  string `json:"source_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Audit action names recorded by the engine's own operations.
const (
	ActionPermissionCreate     = "permission.create"
	ActionPermissionUpdate     = "permission.update"
	ActionPermissionDeactivate = "permission.deactivate"
	ActionRoleCreate           = "role.create"
	ActionRoleUpdate           = "role.update"
	ActionRoleDeactivate       = "role.deactivate"
	ActionGrantCreate          = "grant.create"
	ActionGrantRevoke          = "grant.revoke"
	ActionRoleAssign           = "assignment.create"
	ActionAssignmentRevoke     = "assignment.revoke"
	ActionAssignmentSuspend    = "assignment.suspend"
	ActionAssignmentReactivate = "assignment.reactivate"
	ActionAssignmentExtend     = "assignment.extend"
	ActionAuthorizeCheck       = "authorize.check"
	ActionRequestSubmit        = "request.submit"
	ActionRequestApprove       = "request.approve"
	ActionRequestReject        = "request.reject"
	ActionAlertRaise           = "alert.raise"
	ActionAlertTransition      = "alert.transition"
)
