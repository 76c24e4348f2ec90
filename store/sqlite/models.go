package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/custos/accesslog"
	"github.com/xraph/custos/alert"
	"github.com/xraph/custos/assignment"
	"github.com/xraph/custos/grant"
	"github.com/xraph/custos/id"
	"github.com/xraph/custos/permission"
	"github.com/xraph/custos/request"
	"github.com/xraph/custos/role"
	"github.com/xraph/custos/scope"
)

// ──────────────────────────────────────────────────
// Permission model
// ──────────────────────────────────────────────────

type permissionModel struct {
	grove.BaseModel  `grove:"table:custos_permissions"`
	ID               string    `grove:"id,pk"`
	Name             string    `grove:"name,notnull"`
	Code             string    `grove:"code,notnull"`
	Description      string    `grove:"description"`
	Category         string    `grove:"category"`
	RiskLevel        string    `grove:"risk_level,notnull"`
	RequiresApproval bool      `grove:"requires_approval,notnull"`
	AutoExpire       bool      `grove:"auto_expire,notnull"`
	ExpireDays       int       `grove:"expire_days,notnull"`
	IsActive         bool      `grove:"is_active,notnull"`
	CreatedAt        time.Time `grove:"created_at,notnull"`
	UpdatedAt        time.Time `grove:"updated_at,notnull"`
}

func permissionToModel(p *permission.Permission) *permissionModel {
	return &permissionModel{
		ID:               p.ID.String(),
		Name:             p.Name,
		Code:             p.Code,
		Description:      p.Description,
		Category:         p.Category,
		RiskLevel:        string(p.RiskLevel),
		RequiresApproval: p.RequiresApproval,
		AutoExpire:       p.AutoExpire,
		ExpireDays:       p.ExpireDays,
		IsActive:         p.IsActive,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func permissionFromModel(m *permissionModel) *permission.Permission {
	pid, _ := id.ParsePermissionID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &permission.Permission{
		ID:               pid,
		Name:             m.Name,
		Code:             m.Code,
		Description:      m.Description,
		Category:         m.Category,
		RiskLevel:        permission.RiskLevel(m.RiskLevel),
		RequiresApproval: m.RequiresApproval,
		AutoExpire:       m.AutoExpire,
		ExpireDays:       m.ExpireDays,
		IsActive:         m.IsActive,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Role model
// ──────────────────────────────────────────────────

type roleModel struct {
	grove.BaseModel `grove:"table:custos_roles"`
	ID              string    `grove:"id,pk"`
	Name            string    `grove:"name,notnull"`
	NameEN          string    `grove:"name_en"`
	Description     string    `grove:"description"`
	Level           string    `grove:"level,notnull"`
	HierarchyLevel  int       `grove:"hierarchy_level,notnull"`
	MaxAssignees    int       `grove:"max_assignees,notnull"`
	IsDefault       bool      `grove:"is_default,notnull"`
	IsSystemRole    bool      `grove:"is_system_role,notnull"`
	Restrictions    string    `grove:"restrictions"` // JSON text
	Settings        string    `grove:"settings"`     // JSON text
	IsActive        bool      `grove:"is_active,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func roleToModel(r *role.Role) (*roleModel, error) {
	restrictions, err := json.Marshal(r.Restrictions)
	if err != nil {
		return nil, fmt.Errorf("marshal role restrictions: %w", err)
	}
	settings, err := json.Marshal(r.Settings)
	if err != nil {
		return nil, fmt.Errorf("marshal role settings: %w", err)
	}
	return &roleModel{
		ID:             r.ID.String(),
		Name:           r.Name,
		NameEN:         r.NameEN,
		Description:    r.Description,
		Level:          string(r.Level),
		HierarchyLevel: r.HierarchyLevel,
		MaxAssignees:   r.MaxAssignees,
		IsDefault:      r.IsDefault,
		IsSystemRole:   r.IsSystemRole,
		Restrictions:   string(restrictions),
		Settings:       string(settings),
		IsActive:       r.IsActive,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

func roleFromModel(m *roleModel) (*role.Role, error) {
	rid, _ := id.ParseRoleID(m.ID) //nolint:errcheck // stored IDs are always valid
	restrictions, err := unmarshalMap(m.Restrictions)
	if err != nil {
		return nil, fmt.Errorf("unmarshal role restrictions: %w", err)
	}
	settings, err := unmarshalMap(m.Settings)
	if err != nil {
		return nil, fmt.Errorf("unmarshal role settings: %w", err)
	}
	return &role.Role{
		ID:             rid,
		Name:           m.Name,
		NameEN:         m.NameEN,
		Description:    m.Description,
		Level:          role.Level(m.Level),
		HierarchyLevel: m.HierarchyLevel,
		MaxAssignees:   m.MaxAssignees,
		IsDefault:      m.IsDefault,
		IsSystemRole:   m.IsSystemRole,
		Restrictions:   restrictions,
		Settings:       settings,
		IsActive:       m.IsActive,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}

// ──────────────────────────────────────────────────
// Grant model
// ──────────────────────────────────────────────────

type grantModel struct {
	grove.BaseModel `grove:"table:custos_grants"`
	ID              string     `grove:"id,pk"`
	RoleID          string     `grove:"role_id,notnull"`
	PermissionID    string     `grove:"permission_id,notnull"`
	CanDelegate     bool       `grove:"can_delegate,notnull"`
	IsTemporary     bool       `grove:"is_temporary,notnull"`
	ExpiresAt       *time.Time `grove:"expires_at"`
	Conditions      string     `grove:"conditions"`   // JSON text
	Restrictions    string     `grove:"restrictions"` // JSON text
	GrantedBy       string     `grove:"granted_by"`
	IsActive        bool       `grove:"is_active,notnull"`
	CreatedAt       time.Time  `grove:"created_at,notnull"`
	UpdatedAt       time.Time  `grove:"updated_at,notnull"`
}

func grantToModel(g *grant.Grant) (*grantModel, error) {
	conditions, err := json.Marshal(g.Conditions)
	if err != nil {
		return nil, fmt.Errorf("marshal grant conditions: %w", err)
	}
	restrictions, err := json.Marshal(g.Restrictions)
	if err != nil {
		return nil, fmt.Errorf("marshal grant restrictions: %w", err)
	}
	return &grantModel{
		ID:           g.ID.String(),
		RoleID:       g.RoleID.String(),
		PermissionID: g.PermissionID.String(),
		CanDelegate:  g.CanDelegate,
		IsTemporary:  g.IsTemporary,
		ExpiresAt:    g.ExpiresAt,
		Conditions:   string(conditions),
		Restrictions: string(restrictions),
		GrantedBy:    g.GrantedBy,
		IsActive:     g.IsActive,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}, nil
}

func grantFromModel(m *grantModel) (*grant.Grant, error) {
	gid, _ := id.ParseGrantID(m.ID)                //nolint:errcheck // stored IDs are always valid
	rid, _ := id.ParseRoleID(m.RoleID)             //nolint:errcheck // stored IDs are always valid
	pid, _ := id.ParsePermissionID(m.PermissionID) //nolint:errcheck // stored IDs are always valid
	conditions, err := unmarshalMap(m.Conditions)
	if err != nil {
		return nil, fmt.Errorf("unmarshal grant conditions: %w", err)
	}
	restrictions, err := unmarshalMap(m.Restrictions)
	if err != nil {
		return nil, fmt.Errorf("unmarshal grant restrictions: %w", err)
	}
	return &grant.Grant{
		ID:           gid,
		RoleID:       rid,
		PermissionID: pid,
		CanDelegate:  m.CanDelegate,
		IsTemporary:  m.IsTemporary,
		ExpiresAt:    m.ExpiresAt,
		Conditions:   conditions,
		Restrictions: restrictions,
		GrantedBy:    m.GrantedBy,
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}, nil
}

// ──────────────────────────────────────────────────
// Assignment model
// ──────────────────────────────────────────────────

type assignmentModel struct {
	grove.BaseModel `grove:"table:custos_assignments"`
	ID              string     `grove:"id,pk"`
	PrincipalID     string     `grove:"principal_id,notnull"`
	RoleID          string     `grove:"role_id,notnull"`
	Scope           string     `grove:"scope"` // "kind:id", empty = unscoped
	Status          string     `grove:"status,notnull"`
	GrantedAt       time.Time  `grove:"granted_at,notnull"`
	ExpiresAt       *time.Time `grove:"expires_at"`
	LastUsed        *time.Time `grove:"last_used"`
	IsPrimary       bool       `grove:"is_primary,notnull"`
	GrantedBy       string     `grove:"granted_by"`
	ApprovedBy      string     `grove:"approved_by"`
	ApprovalDate    *time.Time `grove:"approval_date"`
	Reason          string     `grove:"reason"`
	Notes           string     `grove:"notes"`
	RevokedBy       string     `grove:"revoked_by"`
	UpdatedAt       time.Time  `grove:"updated_at,notnull"`
}

func assignmentToModel(a *assignment.Assignment) *assignmentModel {
	return &assignmentModel{
		ID:           a.ID.String(),
		PrincipalID:  a.PrincipalID,
		RoleID:       a.RoleID.String(),
		Scope:        a.Scope.String(),
		Status:       string(a.Status),
		GrantedAt:    a.GrantedAt,
		ExpiresAt:    a.ExpiresAt,
		LastUsed:     a.LastUsed,
		IsPrimary:    a.IsPrimary,
		GrantedBy:    a.GrantedBy,
		ApprovedBy:   a.ApprovedBy,
		ApprovalDate: a.ApprovalDate,
		Reason:       a.Reason,
		Notes:        a.Notes,
		RevokedBy:    a.RevokedBy,
		UpdatedAt:    a.UpdatedAt,
	}
}

func assignmentFromModel(m *assignmentModel) (*assignment.Assignment, error) {
	aid, _ := id.ParseAssignmentID(m.ID) //nolint:errcheck // stored IDs are always valid
	rid, _ := id.ParseRoleID(m.RoleID)   //nolint:errcheck // stored IDs are always valid
	sc, err := scope.Parse(m.Scope)
	if err != nil {
		return nil, fmt.Errorf("parse assignment scope: %w", err)
	}
	return &assignment.Assignment{
		ID:           aid,
		PrincipalID:  m.PrincipalID,
		RoleID:       rid,
		Scope:        sc,
		Status:       assignment.Status(m.Status),
		GrantedAt:    m.GrantedAt,
		ExpiresAt:    m.ExpiresAt,
		LastUsed:     m.LastUsed,
		IsPrimary:    m.IsPrimary,
		GrantedBy:    m.GrantedBy,
		ApprovedBy:   m.ApprovedBy,
		ApprovalDate: m.ApprovalDate,
		Reason:       m.Reason,
		Notes:        m.Notes,
		RevokedBy:    m.RevokedBy,
		UpdatedAt:    m.UpdatedAt,
	}, nil
}

// ──────────────────────────────────────────────────
// Request model
// ──────────────────────────────────────────────────

type requestModel struct {
	grove.BaseModel  `grove:"table:custos_requests"`
	ID               string     `grove:"id,pk"`
	RequestedBy      string     `grove:"requested_by,notnull"`
	RequestedFor     string     `grove:"requested_for,notnull"`
	RoleID           string     `grove:"role_id,notnull"`
	ExtraPermissions string     `grove:"extra_permissions"` // JSON text
	Scope            string     `grove:"scope"`
	Reason           string     `grove:"reason"`
	Justification    string     `grove:"justification"`
	DurationDays     int        `grove:"duration_days,notnull"`
	Priority         string     `grove:"priority,notnull"`
	Status           string     `grove:"status,notnull"`
	ReviewedBy       string     `grove:"reviewed_by"`
	ReviewedAt       *time.Time `grove:"reviewed_at"`
	ReviewNotes      string     `grove:"review_notes"`
	RequestedAt      time.Time  `grove:"requested_at,notnull"`
	ExpiresAt        *time.Time `grove:"expires_at"`
	AssignmentID     *string    `grove:"assignment_id"`
	Metadata         string     `grove:"metadata"` // JSON text
}

func requestToModel(r *request.Request) (*requestModel, error) {
	extra, err := json.Marshal(r.ExtraPermissions)
	if err != nil {
		return nil, fmt.Errorf("marshal request extra permissions: %w", err)
	}
	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal request metadata: %w", err)
	}
	m := &requestModel{
		ID:               r.ID.String(),
		RequestedBy:      r.RequestedBy,
		RequestedFor:     r.RequestedFor,
		RoleID:           r.RoleID.String(),
		ExtraPermissions: string(extra),
		Scope:            r.Scope.String(),
		Reason:           r.Reason,
		Justification:    r.Justification,
		DurationDays:     r.DurationDays,
		Priority:         string(r.Priority),
		Status:           string(r.Status),
		ReviewedBy:       r.ReviewedBy,
		ReviewedAt:       r.ReviewedAt,
		ReviewNotes:      r.ReviewNotes,
		RequestedAt:      r.RequestedAt,
		ExpiresAt:        r.ExpiresAt,
		Metadata:         string(metadata),
	}
	if r.AssignmentID != nil {
		s := r.AssignmentID.String()
		m.AssignmentID = &s
	}
	return m, nil
}

func requestFromModel(m *requestModel) (*request.Request, error) {
	reqID, _ := id.ParseRequestID(m.ID) //nolint:errcheck // stored IDs are always valid
	rid, _ := id.ParseRoleID(m.RoleID)  //nolint:errcheck // stored IDs are always valid
	sc, err := scope.Parse(m.Scope)
	if err != nil {
		return nil, fmt.Errorf("parse request scope: %w", err)
	}
	var extra []string
	if m.ExtraPermissions != "" && m.ExtraPermissions != "null" {
		if err := json.Unmarshal([]byte(m.ExtraPermissions), &extra); err != nil {
			return nil, fmt.Errorf("unmarshal request extra permissions: %w", err)
		}
	}
	metadata, err := unmarshalMap(m.Metadata)
	if err != nil {
		return nil, fmt.Errorf("unmarshal request metadata: %w", err)
	}
	r := &request.Request{
		ID:               reqID,
		RequestedBy:      m.RequestedBy,
		RequestedFor:     m.RequestedFor,
		RoleID:           rid,
		ExtraPermissions: extra,
		Scope:            sc,
		Reason:           m.Reason,
		Justification:    m.Justification,
		DurationDays:     m.DurationDays,
		Priority:         request.Priority(m.Priority),
		Status:           request.Status(m.Status),
		ReviewedBy:       m.ReviewedBy,
		ReviewedAt:       m.ReviewedAt,
		ReviewNotes:      m.ReviewNotes,
		RequestedAt:      m.RequestedAt,
		ExpiresAt:        m.ExpiresAt,
		Metadata:         metadata,
	}
	if m.AssignmentID != nil {
		aid, err := id.ParseAssignmentID(*m.AssignmentID)
		if err == nil {
			r.AssignmentID = &aid
		}
	}
	return r, nil
}

// ──────────────────────────────────────────────────
// Access log model
// ──────────────────────────────────────────────────

type logEntryModel struct {
	grove.BaseModel `grove:"table:custos_access_logs"`
	ID              string    `grove:"id,pk"`
	PrincipalID     string    `grove:"principal_id,notnull"`
	RoleUsed        string    `grove:"role_used"`
	PermissionUsed  string    `grove:"permission_used"`
	Action          string    `grove:"action,notnull"`
	Resource        string    `grove:"resource,notnull"`
	Description     string    `grove:"description"`
	TargetID        string    `grove:"target_id"`
	Result          string    `grove:"result,notnull"`
	ErrorMessage    string    `grove:"error_message"`
	SourceIP        string    `grove:"source_ip"`
	UserAgent       string    `grove:"user_agent"`
	Metadata        string    `grove:"metadata"` // JSON text
	CreatedAt       time.Time `grove:"created_at,notnull"`
}

func logEntryToModel(e *accesslog.Entry) (*logEntryModel, error) {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal log entry metadata: %w", err)
	}
	return &logEntryModel{
		ID:             e.ID.String(),
		PrincipalID:    e.PrincipalID,
		RoleUsed:       e.RoleUsed,
		PermissionUsed: e.PermissionUsed,
		Action:         e.Action,
		Resource:       e.Resource,
		Description:    e.Description,
		TargetID:       e.TargetID,
		Result:         string(e.Result),
		ErrorMessage:   e.ErrorMessage,
		SourceIP:       e.SourceIP,
		UserAgent:      e.UserAgent,
		Metadata:       string(metadata),
		CreatedAt:      e.CreatedAt,
	}, nil
}

func logEntryFromModel(m *logEntryModel) (*accesslog.Entry, error) {
	lid, _ := id.ParseLogEntryID(m.ID) //nolint:errcheck // stored IDs are always valid
	metadata, err := unmarshalMap(m.Metadata)
	if err != nil {
		return nil, fmt.Errorf("unmarshal log entry metadata: %w", err)
	}
	return &accesslog.Entry{
		ID:             lid,
		PrincipalID:    m.PrincipalID,
		RoleUsed:       m.RoleUsed,
		PermissionUsed: m.PermissionUsed,
		Action:         m.Action,
		Resource:       m.Resource,
		Description:    m.Description,
		TargetID:       m.TargetID,
		Result:         accesslog.Result(m.Result),
		ErrorMessage:   m.ErrorMessage,
		SourceIP:       m.SourceIP,
		UserAgent:      m.UserAgent,
		Metadata:       metadata,
		CreatedAt:      m.CreatedAt,
	}, nil
}

// ──────────────────────────────────────────────────
// Alert model
// ──────────────────────────────────────────────────

type alertModel struct {
	grove.BaseModel    `grove:"table:custos_alerts"`
	ID                 string     `grove:"id,pk"`
	Title              string     `grove:"title,notnull"`
	Description        string     `grove:"description"`
	Severity           string     `grove:"severity,notnull"`
	Status             string     `grove:"status,notnull"`
	PrincipalID        string     `grove:"principal_id"`
	ThreatType         string     `grove:"threat_type"`
	SourceIP           string     `grove:"source_ip"`
	ActionsTaken       string     `grove:"actions_taken"` // JSON text
	InvestigatedBy     string     `grove:"investigated_by"`
	InvestigationNotes string     `grove:"investigation_notes"`
	Metadata           string     `grove:"metadata"` // JSON text
	DetectedAt         time.Time  `grove:"detected_at,notnull"`
	ResolvedAt         *time.Time `grove:"resolved_at"`
	UpdatedAt          time.Time  `grove:"updated_at,notnull"`
}

func alertToModel(a *alert.Alert) (*alertModel, error) {
	actions, err := json.Marshal(a.ActionsTaken)
	if err != nil {
		return nil, fmt.Errorf("marshal alert actions taken: %w", err)
	}
	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal alert metadata: %w", err)
	}
	return &alertModel{
		ID:                 a.ID.String(),
		Title:              a.Title,
		Description:        a.Description,
		Severity:           string(a.Severity),
		Status:             string(a.Status),
		PrincipalID:        a.PrincipalID,
		ThreatType:         a.ThreatType,
		SourceIP:           a.SourceIP,
		ActionsTaken:       string(actions),
		InvestigatedBy:     a.InvestigatedBy,
		InvestigationNotes: a.InvestigationNotes,
		Metadata:           string(metadata),
		DetectedAt:         a.DetectedAt,
		ResolvedAt:         a.ResolvedAt,
		UpdatedAt:          a.UpdatedAt,
	}, nil
}

func alertFromModel(m *alertModel) (*alert.Alert, error) {
	aid, _ := id.ParseAlertID(m.ID) //nolint:errcheck // stored IDs are always valid
	var actions []string
	if m.ActionsTaken != "" && m.ActionsTaken != "null" {
		if err := json.Unmarshal([]byte(m.ActionsTaken), &actions); err != nil {
			return nil, fmt.Errorf("unmarshal alert actions taken: %w", err)
		}
	}
	metadata, err := unmarshalMap(m.Metadata)
	if err != nil {
		return nil, fmt.Errorf("unmarshal alert metadata: %w", err)
	}
	return &alert.Alert{
		ID:                 aid,
		Title:              m.Title,
		Description:        m.Description,
		Severity:           alert.Severity(m.Severity),
		Status:             alert.Status(m.Status),
		PrincipalID:        m.PrincipalID,
		ThreatType:         m.ThreatType,
		SourceIP:           m.SourceIP,
		ActionsTaken:       actions,
		InvestigatedBy:     m.InvestigatedBy,
		InvestigationNotes: m.InvestigationNotes,
		Metadata:           metadata,
		DetectedAt:         m.DetectedAt,
		ResolvedAt:         m.ResolvedAt,
		UpdatedAt:          m.UpdatedAt,
	}, nil
}

// unmarshalMap decodes JSON text columns that may be empty or "null".
func unmarshalMap(s string) (map[string]any, error) {
	if s == "" || s == "null" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}
