package api

// ──────────────────────────────────────────────────
// Authorization requests
// ──────────────────────────────────────────────────

// AuthorizeRequest is the request body for an authorization check.
type AuthorizeRequest struct {
	PrincipalID string `json:"principal_id" description:"Principal identifier"`
	Permission  string `json:"permission" description:"Permission code"`
	Scope       string `json:"scope,omitempty" description:"Scope as kind:id, empty for unscoped"`
}

// ──────────────────────────────────────────────────
// Permission requests
// ──────────────────────────────────────────────────

// CreatePermissionRequest is the body for creating a permission.
type CreatePermissionRequest struct {
	Name             string `json:"name" description:"Display name"`
	Code             string `json:"code" description:"Unique permission code (e.g. grades.edit)"`
	Description      string `json:"description,omitempty" description:"Human-readable description"`
	Category         string `json:"category,omitempty" description:"Catalog category"`
	RiskLevel        string `json:"risk_level,omitempty" description:"Risk level (LOW, MEDIUM, HIGH, CRITICAL)"`
	RequiresApproval bool   `json:"requires_approval,omitempty" description:"Whether grants need an approval workflow"`
	AutoExpire       bool   `json:"auto_expire,omitempty" description:"Whether assignments auto-expire"`
	ExpireDays       int    `json:"expire_days,omitempty" description:"Auto-expiry window in days"`
}

// UpdatePermissionRequest is the body for updating a permission.
type UpdatePermissionRequest struct {
	Name        string `json:"name,omitempty" description:"Display name"`
	Description string `json:"description,omitempty" description:"Human-readable description"`
	Category    string `json:"category,omitempty" description:"Catalog category"`
}

// GetPermissionRequest is the path parameter for getting a permission.
type GetPermissionRequest struct {
	PermissionID string `path:"permissionId" description:"Permission ID"`
}

// ListPermissionsRequest holds query parameters.
type ListPermissionsRequest struct {
	Category  string `query:"category" description:"Filter by category"`
	RiskLevel string `query:"risk_level" description:"Filter by risk level"`
	Search    string `query:"search" description:"Search by name or code"`
	Limit     int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset    int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Role requests
// ──────────────────────────────────────────────────

// CreateRoleRequest is the body for creating a role.
type CreateRoleRequest struct {
	Name           string         `json:"name" description:"Unique role name"`
	NameEN         string         `json:"name_en,omitempty" description:"English display name"`
	Description    string         `json:"description,omitempty" description:"Human-readable description"`
	Level          string         `json:"level" description:"Organizational level (SYSTEM, UNIVERSITY, COLLEGE, DEPARTMENT, COURSE)"`
	HierarchyLevel int            `json:"hierarchy_level,omitempty" description:"Numeric rank within the level"`
	MaxAssignees   int            `json:"max_assignees,omitempty" description:"Maximum ACTIVE assignees (0 = unlimited)"`
	IsDefault      bool           `json:"is_default,omitempty" description:"Default role flag"`
	IsSystemRole   bool           `json:"is_system_role,omitempty" description:"System role flag"`
	Restrictions   map[string]any `json:"restrictions,omitempty" description:"Restriction settings"`
	Settings       map[string]any `json:"settings,omitempty" description:"Custom settings"`
}

// UpdateRoleRequest is the body for updating a role.
type UpdateRoleRequest struct {
	Description  string         `json:"description,omitempty" description:"Human-readable description"`
	MaxAssignees *int           `json:"max_assignees,omitempty" description:"Maximum ACTIVE assignees (0 = unlimited)"`
	Restrictions map[string]any `json:"restrictions,omitempty" description:"Restriction settings"`
	Settings     map[string]any `json:"settings,omitempty" description:"Custom settings"`
}

// GetRoleRequest is the path parameter for getting a role.
type GetRoleRequest struct {
	RoleID string `path:"roleId" description:"Role ID"`
}

// ListRolesRequest holds query parameters for listing roles.
type ListRolesRequest struct {
	Level  string `query:"level" description:"Filter by organizational level"`
	Search string `query:"search" description:"Search by name"`
	Limit  int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Grant requests
// ──────────────────────────────────────────────────

// CreateGrantRequest is the body for granting a permission to a role.
type CreateGrantRequest struct {
	PermissionID string         `json:"permission_id" description:"Permission ID to grant"`
	CanDelegate  bool           `json:"can_delegate,omitempty" description:"Whether assignees may delegate"`
	IsTemporary  bool           `json:"is_temporary,omitempty" description:"Temporary grant flag"`
	ExpiresAt    string         `json:"expires_at,omitempty" description:"Expiration time (RFC3339), required when temporary"`
	Conditions   map[string]any `json:"conditions,omitempty" description:"Evaluation conditions"`
	Restrictions map[string]any `json:"restrictions,omitempty" description:"Restriction settings"`
}

// GetGrantRequest is the path parameter for a grant.
type GetGrantRequest struct {
	GrantID string `path:"grantId" description:"Grant ID"`
}

// ──────────────────────────────────────────────────
// Assignment requests
// ──────────────────────────────────────────────────

// AssignRoleRequest is the body for assigning a role to a principal.
type AssignRoleRequest struct {
	PrincipalID string `json:"principal_id" description:"Principal identifier"`
	RoleID      string `json:"role_id" description:"Role ID to assign"`
	Scope       string `json:"scope,omitempty" description:"Scope as kind:id, empty for unscoped"`
	ExpiresAt   string `json:"expires_at,omitempty" description:"Expiration time (RFC3339)"`
	IsPrimary   bool   `json:"is_primary,omitempty" description:"Primary role flag"`
	Reason      string `json:"reason,omitempty" description:"Assignment reason"`
	Notes       string `json:"notes,omitempty" description:"Free-form notes"`
}

// GetAssignmentRequest is the path parameter for getting an assignment.
type GetAssignmentRequest struct {
	AssignmentID string `path:"assignmentId" description:"Assignment ID"`
}

// ListAssignmentsRequest holds query parameters.
type ListAssignmentsRequest struct {
	PrincipalID string `query:"principal_id" description:"Filter by principal"`
	RoleID      string `query:"role_id" description:"Filter by role ID"`
	Status      string `query:"status" description:"Filter by status"`
	Limit       int    `query:"limit" description:"Maximum results"`
	Offset      int    `query:"offset" description:"Results to skip"`
}

// AssignmentActionRequest is the body for revoke/suspend actions.
type AssignmentActionRequest struct {
	Reason string `json:"reason,omitempty" description:"Reason for the action"`
}

// ExtendExpiryRequest is the body for extending an assignment.
type ExtendExpiryRequest struct {
	AdditionalDays int `json:"additional_days" description:"Days to add to the current expiry"`
}

// ──────────────────────────────────────────────────
// Permission request workflow
// ──────────────────────────────────────────────────

// SubmitRequestRequest is the body for opening a permission request.
type SubmitRequestRequest struct {
	RequestedFor     string         `json:"requested_for" description:"Principal the role is requested for"`
	RoleID           string         `json:"role_id" description:"Requested role ID"`
	ExtraPermissions []string       `json:"extra_permissions,omitempty" description:"Extra permission codes"`
	Scope            string         `json:"scope,omitempty" description:"Scope as kind:id"`
	Reason           string         `json:"reason,omitempty" description:"Request reason"`
	Justification    string         `json:"justification,omitempty" description:"Business justification"`
	DurationDays     int            `json:"duration_days,omitempty" description:"Assignment duration in days (0 = indefinite)"`
	Priority         string         `json:"priority,omitempty" description:"Priority (LOW, NORMAL, HIGH, URGENT)"`
	Metadata         map[string]any `json:"metadata,omitempty" description:"Custom metadata"`
}

// GetRequestRequest is the path parameter for a permission request.
type GetRequestRequest struct {
	RequestID string `path:"requestId" description:"Request ID"`
}

// ListRequestsRequest holds query parameters.
type ListRequestsRequest struct {
	RequestedBy  string `query:"requested_by" description:"Filter by requester"`
	RequestedFor string `query:"requested_for" description:"Filter by target principal"`
	Status       string `query:"status" description:"Filter by status"`
	Priority     string `query:"priority" description:"Filter by priority"`
	Limit        int    `query:"limit" description:"Maximum results"`
	Offset       int    `query:"offset" description:"Results to skip"`
}

// ReviewRequestRequest is the body for approving or rejecting a request.
type ReviewRequestRequest struct {
	Notes string `json:"notes,omitempty" description:"Review notes"`
}

// ──────────────────────────────────────────────────
// Access log requests
// ──────────────────────────────────────────────────

// ListAccessLogsRequest holds query parameters for querying the audit log.
type ListAccessLogsRequest struct {
	PrincipalID string `query:"principal_id" description:"Filter by principal"`
	Action      string `query:"action" description:"Filter by action"`
	Result      string `query:"result" description:"Filter by result"`
	SourceIP    string `query:"source_ip" description:"Filter by source IP"`
	After       string `query:"after" description:"After timestamp (RFC3339)"`
	Before      string `query:"before" description:"Before timestamp (RFC3339)"`
	Limit       int    `query:"limit" description:"Maximum results"`
	Offset      int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Alert requests
// ──────────────────────────────────────────────────

// RaiseAlertRequest is the body for opening a security alert.
type RaiseAlertRequest struct {
	Title       string         `json:"title" description:"Alert title"`
	Description string         `json:"description,omitempty" description:"Alert details"`
	Severity    string         `json:"severity,omitempty" description:"Severity (INFO, LOW, MEDIUM, HIGH, CRITICAL)"`
	ThreatType  string         `json:"threat_type,omitempty" description:"Threat classification"`
	PrincipalID string         `json:"principal_id,omitempty" description:"Implicated principal"`
	SourceIP    string         `json:"source_ip,omitempty" description:"Source IP"`
	Metadata    map[string]any `json:"metadata,omitempty" description:"Custom metadata"`
}

// GetAlertRequest is the path parameter for an alert.
type GetAlertRequest struct {
	AlertID string `path:"alertId" description:"Alert ID"`
}

// ListAlertsRequest holds query parameters.
type ListAlertsRequest struct {
	Status      string `query:"status" description:"Filter by status"`
	Severity    string `query:"severity" description:"Filter by severity"`
	PrincipalID string `query:"principal_id" description:"Filter by principal"`
	ThreatType  string `query:"threat_type" description:"Filter by threat type"`
	After       string `query:"after" description:"After timestamp (RFC3339)"`
	Before      string `query:"before" description:"Before timestamp (RFC3339)"`
	Limit       int    `query:"limit" description:"Maximum results"`
	Offset      int    `query:"offset" description:"Results to skip"`
}

// AlertActionRequest is the body for alert lifecycle transitions.
type AlertActionRequest struct {
	Notes string `json:"notes,omitempty" description:"Transition notes"`
}

// AppendActionRequest is the body for recording a response action.
type AppendActionRequest struct {
	Action string `json:"action" description:"Action taken (e.g. account locked)"`
}
