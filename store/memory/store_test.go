package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/custos"
	"github.com/xraph/custos/accesslog"
	"github.com/xraph/custos/alert"
	"github.com/xraph/custos/assignment"
	"github.com/xraph/custos/grant"
	"github.com/xraph/custos/id"
	"github.com/xraph/custos/permission"
	"github.com/xraph/custos/request"
	"github.com/xraph/custos/role"
	"github.com/xraph/custos/store"
)

// Compile-time check that *Store implements store.Store.
var _ store.Store = (*Store)(nil)

func TestPermissionCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	p := &permission.Permission{
		ID:        id.NewPermissionID(),
		Name:      "Manage Grades",
		Code:      "grades.manage",
		Category:  "academic",
		RiskLevel: permission.RiskHigh,
		IsActive:  true,
	}

	if err := s.CreatePermission(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetPermission(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Code != "grades.manage" {
		t.Fatalf("expected grades.manage, got %s", got.Code)
	}

	got, err = s.GetPermissionByCode(ctx, "grades.manage")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID.String() != p.ID.String() {
		t.Fatal("code lookup mismatch")
	}

	p.Description = "full grade management"
	if err := s.UpdatePermission(ctx, p); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetPermission(ctx, p.ID)
	if got.Description != "full grade management" {
		t.Fatal("update failed")
	}

	count, _ := s.CountPermissions(ctx, &permission.ListFilter{Category: "academic"})
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}
}

func TestPermissionDuplicateCode(t *testing.T) {
	ctx := context.Background()
	s := New()

	_ = s.CreatePermission(ctx, &permission.Permission{ID: id.NewPermissionID(), Name: "A", Code: "dup.code"})
	err := s.CreatePermission(ctx, &permission.Permission{ID: id.NewPermissionID(), Name: "B", Code: "dup.code"})
	if !errors.Is(err, custos.ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}
}

func TestRoleCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	r := &role.Role{
		ID:       id.NewRoleID(),
		Name:     "department-head",
		Level:    role.LevelDepartment,
		IsActive: true,
	}

	if err := s.CreateRole(ctx, r); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetRoleByName(ctx, "department-head")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID.String() != r.ID.String() {
		t.Fatal("name lookup mismatch")
	}

	err = s.CreateRole(ctx, &role.Role{ID: id.NewRoleID(), Name: "department-head"})
	if !errors.Is(err, custos.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}

	list, _ := s.ListRoles(ctx, &role.ListFilter{Level: role.LevelDepartment})
	if len(list) != 1 {
		t.Fatalf("expected 1 role, got %d", len(list))
	}
}

func TestGrantDuplicate(t *testing.T) {
	ctx := context.Background()
	s := New()

	roleID := id.NewRoleID()
	permID := id.NewPermissionID()

	g := &grant.Grant{ID: id.NewGrantID(), RoleID: roleID, PermissionID: permID, IsActive: true}
	if err := s.CreateGrant(ctx, g); err != nil {
		t.Fatal(err)
	}

	err := s.CreateGrant(ctx, &grant.Grant{ID: id.NewGrantID(), RoleID: roleID, PermissionID: permID, IsActive: true})
	if !errors.Is(err, custos.ErrDuplicateGrant) {
		t.Fatalf("expected ErrDuplicateGrant, got %v", err)
	}

	// Revoking the grant frees the pair for a fresh grant.
	g.IsActive = false
	if err := s.UpdateGrant(ctx, g); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateGrant(ctx, &grant.Grant{ID: id.NewGrantID(), RoleID: roleID, PermissionID: permID, IsActive: true}); err != nil {
		t.Fatalf("expected regrant to succeed, got %v", err)
	}
}

func TestListGrantsForRoles(t *testing.T) {
	ctx := context.Background()
	s := New()

	r1 := id.NewRoleID()
	r2 := id.NewRoleID()
	_ = s.CreateGrant(ctx, &grant.Grant{ID: id.NewGrantID(), RoleID: r1, PermissionID: id.NewPermissionID(), IsActive: true})
	_ = s.CreateGrant(ctx, &grant.Grant{ID: id.NewGrantID(), RoleID: r2, PermissionID: id.NewPermissionID(), IsActive: true})
	_ = s.CreateGrant(ctx, &grant.Grant{ID: id.NewGrantID(), RoleID: r2, PermissionID: id.NewPermissionID(), IsActive: false})

	grants, err := s.ListGrantsForRoles(ctx, []id.RoleID{r1, r2})
	if err != nil {
		t.Fatal(err)
	}
	if len(grants) != 2 {
		t.Fatalf("expected 2 active grants, got %d", len(grants))
	}
}

func TestAssignmentCapacity(t *testing.T) {
	ctx := context.Background()
	s := New()
	roleID := id.NewRoleID()

	mk := func(principal string) *assignment.Assignment {
		return &assignment.Assignment{
			ID:          id.NewAssignmentID(),
			PrincipalID: principal,
			RoleID:      roleID,
			Status:      assignment.StatusActive,
			GrantedAt:   time.Now(),
		}
	}

	now := time.Now()
	if err := s.CreateAssignment(ctx, mk("u1"), 2, now); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateAssignment(ctx, mk("u2"), 2, now); err != nil {
		t.Fatal(err)
	}
	err := s.CreateAssignment(ctx, mk("u3"), 2, now)
	if !errors.Is(err, custos.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}

	// Unlimited roles never hit the cap.
	if err := s.CreateAssignment(ctx, mk("u3"), 0, now); err != nil {
		t.Fatal(err)
	}
}

func TestAssignmentDuplicate(t *testing.T) {
	ctx := context.Background()
	s := New()
	roleID := id.NewRoleID()

	a := &assignment.Assignment{
		ID:          id.NewAssignmentID(),
		PrincipalID: "u1",
		RoleID:      roleID,
		Status:      assignment.StatusActive,
	}
	now := time.Now()
	if err := s.CreateAssignment(ctx, a, 0, now); err != nil {
		t.Fatal(err)
	}

	dup := &assignment.Assignment{
		ID:          id.NewAssignmentID(),
		PrincipalID: "u1",
		RoleID:      roleID,
		Status:      assignment.StatusActive,
	}
	err := s.CreateAssignment(ctx, dup, 0, now)
	if !errors.Is(err, custos.ErrDuplicateAssignment) {
		t.Fatalf("expected ErrDuplicateAssignment, got %v", err)
	}

	// A revoked row does not block a new one.
	a.Status = assignment.StatusRevoked
	if err := s.UpdateAssignment(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateAssignment(ctx, dup, 0, now); err != nil {
		t.Fatalf("expected reassignment to succeed, got %v", err)
	}
}

func TestActivateAssignmentCapacity(t *testing.T) {
	ctx := context.Background()
	s := New()
	roleID := id.NewRoleID()

	suspended := &assignment.Assignment{
		ID:          id.NewAssignmentID(),
		PrincipalID: "u1",
		RoleID:      roleID,
		Status:      assignment.StatusSuspended,
	}
	now := time.Now()
	_ = s.CreateAssignment(ctx, suspended, 1, now)

	// The freed seat was taken while u1 was suspended.
	_ = s.CreateAssignment(ctx, &assignment.Assignment{
		ID:          id.NewAssignmentID(),
		PrincipalID: "u2",
		RoleID:      roleID,
		Status:      assignment.StatusActive,
	}, 1, now)

	_, err := s.ActivateAssignment(ctx, suspended.ID, 1, now)
	if !errors.Is(err, custos.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}

	got, err := s.ActivateAssignment(ctx, suspended.ID, 2, now)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != assignment.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", got.Status)
	}
	if !got.UpdatedAt.Equal(now) {
		t.Fatalf("expected UpdatedAt %v, got %v", now, got.UpdatedAt)
	}
}

func TestCreateAssignmentFreesLapsedSeat(t *testing.T) {
	ctx := context.Background()
	s := New()
	roleID := id.NewRoleID()
	now := time.Now()
	past := now.Add(-time.Hour)

	lapsed := &assignment.Assignment{
		ID: id.NewAssignmentID(), PrincipalID: "u1", RoleID: roleID,
		Status: assignment.StatusActive, ExpiresAt: &past,
	}
	if err := s.CreateAssignment(ctx, lapsed, 1, past.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	// The lapsed holder no longer occupies the single seat.
	if err := s.CreateAssignment(ctx, &assignment.Assignment{
		ID: id.NewAssignmentID(), PrincipalID: "u2", RoleID: roleID,
		Status: assignment.StatusActive,
	}, 1, now); err != nil {
		t.Fatalf("expected lapsed row to free the seat, got %v", err)
	}

	// It was retired to EXPIRED in the same operation.
	got, err := s.GetAssignment(ctx, lapsed.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != assignment.StatusExpired {
		t.Fatalf("expected EXPIRED, got %s", got.Status)
	}
}

func TestMarkExpiredAssignments(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	_ = s.CreateAssignment(ctx, &assignment.Assignment{
		ID: id.NewAssignmentID(), PrincipalID: "u1", RoleID: id.NewRoleID(),
		Status: assignment.StatusActive, ExpiresAt: &past,
	}, 0, past)
	_ = s.CreateAssignment(ctx, &assignment.Assignment{
		ID: id.NewAssignmentID(), PrincipalID: "u2", RoleID: id.NewRoleID(),
		Status: assignment.StatusActive, ExpiresAt: &future,
	}, 0, now)

	n, err := s.MarkExpiredAssignments(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired, got %d", n)
	}

	expired, _ := s.ListAssignments(ctx, &assignment.ListFilter{Status: assignment.StatusExpired})
	if len(expired) != 1 || expired[0].PrincipalID != "u1" {
		t.Fatal("wrong assignment expired")
	}
}

func TestApproveRequestAtomic(t *testing.T) {
	ctx := context.Background()
	s := New()
	roleID := id.NewRoleID()

	now := time.Now()

	// Fill the role to capacity.
	_ = s.CreateAssignment(ctx, &assignment.Assignment{
		ID: id.NewAssignmentID(), PrincipalID: "u1", RoleID: roleID,
		Status: assignment.StatusActive,
	}, 1, now)

	req := &request.Request{
		ID:           id.NewRequestID(),
		RequestedBy:  "u2",
		RequestedFor: "u2",
		RoleID:       roleID,
		Status:       request.StatusPending,
		RequestedAt:  time.Now(),
	}
	if err := s.CreateRequest(ctx, req); err != nil {
		t.Fatal(err)
	}

	approved := *req
	approved.Status = request.StatusApproved
	a := &assignment.Assignment{
		ID: id.NewAssignmentID(), PrincipalID: "u2", RoleID: roleID,
		Status: assignment.StatusActive,
	}

	err := s.ApproveRequest(ctx, &approved, a, 1, now)
	if !errors.Is(err, custos.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}

	// All-or-nothing: the request is untouched and no assignment exists.
	got, _ := s.GetRequest(ctx, req.ID)
	if got.Status != request.StatusPending {
		t.Fatalf("expected PENDING after failed approval, got %s", got.Status)
	}
	if _, err := s.GetAssignment(ctx, a.ID); err == nil {
		t.Fatal("expected no assignment after failed approval")
	}

	// With room it commits both writes.
	if err := s.ApproveRequest(ctx, &approved, a, 2, now); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetRequest(ctx, req.ID)
	if got.Status != request.StatusApproved {
		t.Fatalf("expected APPROVED, got %s", got.Status)
	}
	if _, err := s.GetAssignment(ctx, a.ID); err != nil {
		t.Fatal("expected assignment after approval")
	}
}

func TestLogEntriesNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Now()

	for i := range 3 {
		_ = s.AppendLogEntry(ctx, &accesslog.Entry{
			ID:          id.NewLogEntryID(),
			PrincipalID: "u1",
			Action:      "check",
			Result:      accesslog.ResultSuccess,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
	}

	logs, err := s.ListLogEntries(ctx, &accesslog.QueryFilter{PrincipalID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(logs))
	}
	for i := 1; i < len(logs); i++ {
		if logs[i].CreatedAt.After(logs[i-1].CreatedAt) {
			t.Fatal("entries not newest first")
		}
	}

	limited, _ := s.ListLogEntries(ctx, &accesslog.QueryFilter{Limit: 2})
	if len(limited) != 2 {
		t.Fatalf("expected 2 entries with limit, got %d", len(limited))
	}
}

func TestAlertCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	a := &alert.Alert{
		ID:         id.NewAlertID(),
		Title:      "odd login pattern",
		Severity:   alert.SeverityHigh,
		Status:     alert.StatusNew,
		DetectedAt: time.Now(),
	}
	if err := s.CreateAlert(ctx, a); err != nil {
		t.Fatal(err)
	}

	a.Status = alert.StatusInvestigating
	a.ActionsTaken = append(a.ActionsTaken, "sessions revoked")
	if err := s.UpdateAlert(ctx, a); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetAlert(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != alert.StatusInvestigating || len(got.ActionsTaken) != 1 {
		t.Fatal("update not persisted")
	}

	list, _ := s.ListAlerts(ctx, &alert.ListFilter{Severity: alert.SeverityHigh})
	if len(list) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(list))
	}
}

func TestCopyOnRead(t *testing.T) {
	ctx := context.Background()
	s := New()

	g := &grant.Grant{
		ID:           id.NewGrantID(),
		RoleID:       id.NewRoleID(),
		PermissionID: id.NewPermissionID(),
		Conditions:   map[string]any{"allowed_ips": []any{"10.0.0.0/8"}},
		IsActive:     true,
	}
	_ = s.CreateGrant(ctx, g)

	got, _ := s.GetGrant(ctx, g.ID)
	got.Conditions["allowed_ips"] = []any{"0.0.0.0/0"}
	got.IsActive = false

	again, _ := s.GetGrant(ctx, g.ID)
	if !again.IsActive {
		t.Fatal("caller mutation leaked into the store")
	}
	if again.Conditions["allowed_ips"].([]any)[0] != "10.0.0.0/8" {
		t.Fatal("condition mutation leaked into the store")
	}
}

func TestMigratePingClose(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}
