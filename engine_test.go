package custos_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/custos"
	"github.com/xraph/custos/accesslog"
	"github.com/xraph/custos/alert"
	"github.com/xraph/custos/assignment"
	"github.com/xraph/custos/permission"
	"github.com/xraph/custos/request"
	"github.com/xraph/custos/role"
	"github.com/xraph/custos/scope"
	"github.com/xraph/custos/store/memory"
)

// testClock is a mutable time source so expiry tests never sleep.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T, opts ...custos.Option) (*custos.Engine, *testClock) {
	t.Helper()
	clock := newTestClock()
	all := append([]custos.Option{
		custos.WithStore(memory.New()),
		custos.WithClock(clock.Now),
	}, opts...)
	eng, err := custos.NewEngine(all...)
	if err != nil {
		t.Fatal(err)
	}
	return eng, clock
}

func mustPermission(t *testing.T, eng *custos.Engine, code string) *permission.Permission {
	t.Helper()
	p, err := eng.CreatePermission(context.Background(), custos.CreatePermissionInput{
		Name:      code,
		Code:      code,
		RiskLevel: permission.RiskMedium,
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func mustRole(t *testing.T, eng *custos.Engine, name string, maxAssignees int) *role.Role {
	t.Helper()
	r, err := eng.CreateRole(context.Background(), custos.CreateRoleInput{
		Name:         name,
		Level:        role.LevelDepartment,
		MaxAssignees: maxAssignees,
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func mustGrant(t *testing.T, eng *custos.Engine, r *role.Role, p *permission.Permission) {
	t.Helper()
	if _, err := eng.GrantPermission(context.Background(), custos.GrantInput{
		RoleID:       r.ID,
		PermissionID: p.ID,
		GrantedBy:    "admin",
	}); err != nil {
		t.Fatal(err)
	}
}

func mustAssign(t *testing.T, eng *custos.Engine, principal string, r *role.Role, sc scope.Scope) *assignment.Assignment {
	t.Helper()
	a, err := eng.AssignRole(context.Background(), custos.AssignRoleInput{
		PrincipalID: principal,
		RoleID:      r.ID,
		Scope:       sc,
		GrantedBy:   "admin",
	})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestNewEngine_RequiresStore(t *testing.T) {
	_, err := custos.NewEngine()
	if err == nil {
		t.Fatal("expected error when store is nil")
	}
}

func TestCreatePermissionValidation(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   custos.CreatePermissionInput
	}{
		{"missing code", custos.CreatePermissionInput{Name: "x", RiskLevel: permission.RiskLow}},
		{"bad risk level", custos.CreatePermissionInput{Name: "x", Code: "x", RiskLevel: "EXTREME"}},
		{"auto expire without days", custos.CreatePermissionInput{Name: "x", Code: "x", RiskLevel: permission.RiskLow, AutoExpire: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := eng.CreatePermission(ctx, tc.in); !errors.Is(err, custos.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}

	if _, err := eng.CreatePermission(ctx, custos.CreatePermissionInput{
		Name: "a", Code: "dup", RiskLevel: permission.RiskLow,
	}); err != nil {
		t.Fatal(err)
	}
	_, err := eng.CreatePermission(ctx, custos.CreatePermissionInput{
		Name: "b", Code: "dup", RiskLevel: permission.RiskLow,
	})
	if !errors.Is(err, custos.ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}
}

func TestAuthorizeFlow(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	p := mustPermission(t, eng, "grades.manage")
	r := mustRole(t, eng, "lecturer", 0)
	mustGrant(t, eng, r, p)
	mustAssign(t, eng, "u1", r, scope.Unscoped)

	ok, err := eng.IsAuthorized(ctx, "u1", "grades.manage", scope.Unscoped)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected authorized")
	}

	// Unknown permission code denies without error.
	ok, err = eng.IsAuthorized(ctx, "u1", "no.such.permission", scope.Unscoped)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected denied for unknown code")
	}

	// Unassigned principal is denied.
	ok, _ = eng.IsAuthorized(ctx, "u2", "grades.manage", scope.Unscoped)
	if ok {
		t.Fatal("expected denied for unassigned principal")
	}
}

func TestAuthorizeScopeCoverage(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	p := mustPermission(t, eng, "course.edit")
	cs := scope.New(scope.KindDepartment, "cs")
	math := scope.New(scope.KindDepartment, "math")

	global := mustRole(t, eng, "registrar", 0)
	mustGrant(t, eng, global, p)
	mustAssign(t, eng, "dean", global, scope.Unscoped)

	local := mustRole(t, eng, "cs-editor", 0)
	mustGrant(t, eng, local, p)
	mustAssign(t, eng, "prof", local, cs)

	// Unscoped assignment covers every scope.
	for _, sc := range []scope.Scope{scope.Unscoped, cs, math} {
		ok, err := eng.IsAuthorized(ctx, "dean", "course.edit", sc)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("expected dean authorized in %q", sc)
		}
	}

	// Scoped assignment covers only its exact scope.
	ok, _ := eng.IsAuthorized(ctx, "prof", "course.edit", cs)
	if !ok {
		t.Fatal("expected prof authorized in cs")
	}
	ok, _ = eng.IsAuthorized(ctx, "prof", "course.edit", math)
	if ok {
		t.Fatal("expected prof denied in math")
	}
	ok, _ = eng.IsAuthorized(ctx, "prof", "course.edit", scope.Unscoped)
	if ok {
		t.Fatal("expected prof denied globally")
	}
}

func TestLazyAssignmentExpiry(t *testing.T) {
	eng, clock := newTestEngine(t)
	ctx := context.Background()

	p := mustPermission(t, eng, "exam.view")
	r := mustRole(t, eng, "invigilator", 0)
	mustGrant(t, eng, r, p)

	expires := clock.Now().AddDate(0, 0, 30)
	if _, err := eng.AssignRole(ctx, custos.AssignRoleInput{
		PrincipalID: "u1",
		RoleID:      r.ID,
		ExpiresAt:   &expires,
		GrantedBy:   "admin",
	}); err != nil {
		t.Fatal(err)
	}

	clock.Advance(29 * 24 * time.Hour)
	ok, _ := eng.IsAuthorized(ctx, "u1", "exam.view", scope.Unscoped)
	if !ok {
		t.Fatal("expected authorized on day 29")
	}

	// Past expiry the answer flips with no sweep having run.
	clock.Advance(2 * 24 * time.Hour)
	ok, _ = eng.IsAuthorized(ctx, "u1", "exam.view", scope.Unscoped)
	if ok {
		t.Fatal("expected denied on day 31 without a sweep")
	}

	// The sweep is reporting only; it transitions the stale row.
	res, err := eng.SweepExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.ExpiredAssignments != 1 {
		t.Fatalf("expected 1 swept assignment, got %d", res.ExpiredAssignments)
	}
}

func TestAssignmentValidation(t *testing.T) {
	eng, clock := newTestEngine(t)
	ctx := context.Background()
	r := mustRole(t, eng, "tutor", 0)

	// expires_at must be strictly in the future.
	past := clock.Now().Add(-time.Minute)
	_, err := eng.AssignRole(ctx, custos.AssignRoleInput{
		PrincipalID: "u1", RoleID: r.ID, ExpiresAt: &past, GrantedBy: "admin",
	})
	if !errors.Is(err, custos.ErrValidation) {
		t.Fatalf("expected ErrValidation for past expiry, got %v", err)
	}

	_, err = eng.AssignRole(ctx, custos.AssignRoleInput{RoleID: r.ID})
	if !errors.Is(err, custos.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty principal, got %v", err)
	}

	// Deactivated role cannot be assigned.
	if err := eng.DeactivateRole(ctx, r.ID, "admin"); err != nil {
		t.Fatal(err)
	}
	_, err = eng.AssignRole(ctx, custos.AssignRoleInput{PrincipalID: "u1", RoleID: r.ID, GrantedBy: "admin"})
	if !errors.Is(err, custos.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for deactivated role, got %v", err)
	}
}

func TestRoleCapacity(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	r := mustRole(t, eng, "department-head", 1)

	a1 := mustAssign(t, eng, "u1", r, scope.Unscoped)

	_, err := eng.AssignRole(ctx, custos.AssignRoleInput{
		PrincipalID: "u2", RoleID: r.ID, GrantedBy: "admin",
	})
	if !errors.Is(err, custos.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}

	// Revocation frees the seat.
	if _, err := eng.RevokeAssignment(ctx, a1.ID, "rotation", "admin"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.AssignRole(ctx, custos.AssignRoleInput{
		PrincipalID: "u2", RoleID: r.ID, GrantedBy: "admin",
	}); err != nil {
		t.Fatalf("expected assignment after revoke, got %v", err)
	}
}

func TestRoleCapacityConcurrent(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	r := mustRole(t, eng, "scarce", 3)

	const attempts = 20
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = eng.AssignRole(ctx, custos.AssignRoleInput{
				PrincipalID: "user-" + string(rune('a'+i)),
				RoleID:      r.ID,
				GrantedBy:   "admin",
			})
		}()
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, custos.ErrCapacityExceeded) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 3 {
		t.Fatalf("expected exactly 3 assignments, got %d", succeeded)
	}
}

func TestDuplicateAssignment(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	r := mustRole(t, eng, "advisor", 0)
	cs := scope.New(scope.KindDepartment, "cs")

	mustAssign(t, eng, "u1", r, cs)

	_, err := eng.AssignRole(ctx, custos.AssignRoleInput{
		PrincipalID: "u1", RoleID: r.ID, Scope: cs, GrantedBy: "admin",
	})
	if !errors.Is(err, custos.ErrDuplicateAssignment) {
		t.Fatalf("expected ErrDuplicateAssignment, got %v", err)
	}

	// Same role in a different scope is a distinct assignment.
	if _, err := eng.AssignRole(ctx, custos.AssignRoleInput{
		PrincipalID: "u1", RoleID: r.ID, Scope: scope.New(scope.KindDepartment, "math"), GrantedBy: "admin",
	}); err != nil {
		t.Fatalf("expected distinct scope to succeed, got %v", err)
	}
}

func TestRevokeIdempotent(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	r := mustRole(t, eng, "clerk", 0)
	a := mustAssign(t, eng, "u1", r, scope.Unscoped)

	first, err := eng.RevokeAssignment(ctx, a.ID, "done", "admin")
	if err != nil {
		t.Fatal(err)
	}
	if first.Status != assignment.StatusRevoked {
		t.Fatalf("expected REVOKED, got %s", first.Status)
	}

	// Second revoke is a no-op, not an error.
	second, err := eng.RevokeAssignment(ctx, a.ID, "again", "admin")
	if err != nil {
		t.Fatal(err)
	}
	if second.Status != assignment.StatusRevoked {
		t.Fatalf("expected REVOKED, got %s", second.Status)
	}
	if second.Reason != "done" {
		t.Fatalf("second revoke must not overwrite the original reason, got %q", second.Reason)
	}
}

func TestSuspendReactivate(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	p := mustPermission(t, eng, "lab.book")
	r := mustRole(t, eng, "lab-assistant", 0)
	mustGrant(t, eng, r, p)
	a := mustAssign(t, eng, "u1", r, scope.Unscoped)

	if _, err := eng.SuspendAssignment(ctx, a.ID, "leave of absence", "admin"); err != nil {
		t.Fatal(err)
	}
	ok, _ := eng.IsAuthorized(ctx, "u1", "lab.book", scope.Unscoped)
	if ok {
		t.Fatal("expected denied while suspended")
	}

	// Suspend is only legal from ACTIVE.
	if _, err := eng.SuspendAssignment(ctx, a.ID, "again", "admin"); !errors.Is(err, custos.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	if _, err := eng.ReactivateAssignment(ctx, a.ID, "admin"); err != nil {
		t.Fatal(err)
	}
	ok, _ = eng.IsAuthorized(ctx, "u1", "lab.book", scope.Unscoped)
	if !ok {
		t.Fatal("expected authorized after reactivation")
	}
}

func TestExtendExpiry(t *testing.T) {
	eng, clock := newTestEngine(t)
	ctx := context.Background()
	r := mustRole(t, eng, "temp", 0)

	expires := clock.Now().AddDate(0, 0, 10)
	a, err := eng.AssignRole(ctx, custos.AssignRoleInput{
		PrincipalID: "u1", RoleID: r.ID, ExpiresAt: &expires, GrantedBy: "admin",
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := eng.ExtendExpiry(ctx, a.ID, 5, "admin")
	if err != nil {
		t.Fatal(err)
	}
	want := expires.AddDate(0, 0, 5)
	if !got.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, got.ExpiresAt)
	}

	if _, err := eng.ExtendExpiry(ctx, a.ID, 0, "admin"); !errors.Is(err, custos.ErrValidation) {
		t.Fatalf("expected ErrValidation for zero days, got %v", err)
	}

	// A lapsed assignment cannot be extended.
	clock.Advance(20 * 24 * time.Hour)
	if _, err := eng.ExtendExpiry(ctx, a.ID, 5, "admin"); !errors.Is(err, custos.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for lapsed assignment, got %v", err)
	}
}

func TestGrantLifecycle(t *testing.T) {
	eng, clock := newTestEngine(t)
	ctx := context.Background()

	p := mustPermission(t, eng, "thesis.approve")
	r := mustRole(t, eng, "supervisor", 0)
	mustAssign(t, eng, "u1", r, scope.Unscoped)

	// Temporary grant requires an expiry.
	_, err := eng.GrantPermission(ctx, custos.GrantInput{
		RoleID: r.ID, PermissionID: p.ID, IsTemporary: true, GrantedBy: "admin",
	})
	if !errors.Is(err, custos.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	expires := clock.Now().Add(48 * time.Hour)
	g, err := eng.GrantPermission(ctx, custos.GrantInput{
		RoleID: r.ID, PermissionID: p.ID, IsTemporary: true, ExpiresAt: &expires, GrantedBy: "admin",
	})
	if err != nil {
		t.Fatal(err)
	}

	ok, _ := eng.IsAuthorized(ctx, "u1", "thesis.approve", scope.Unscoped)
	if !ok {
		t.Fatal("expected authorized via temporary grant")
	}

	// Grant expiry is lazy too.
	clock.Advance(72 * time.Hour)
	ok, _ = eng.IsAuthorized(ctx, "u1", "thesis.approve", scope.Unscoped)
	if ok {
		t.Fatal("expected denied after grant expiry")
	}

	// Revoke is idempotent.
	if err := eng.RevokeGrant(ctx, g.ID, "admin"); err != nil {
		t.Fatal(err)
	}
	if err := eng.RevokeGrant(ctx, g.ID, "admin"); err != nil {
		t.Fatal(err)
	}
}

func TestGrantConditions(t *testing.T) {
	eng, _ := newTestEngine(t)

	p := mustPermission(t, eng, "server.access")
	r := mustRole(t, eng, "operator", 0)
	mustAssign(t, eng, "u1", r, scope.Unscoped)

	if _, err := eng.GrantPermission(context.Background(), custos.GrantInput{
		RoleID:       r.ID,
		PermissionID: p.ID,
		Conditions:   map[string]any{"allowed_ips": []any{"10.0.0.0/8"}},
		GrantedBy:    "admin",
	}); err != nil {
		t.Fatal(err)
	}

	inside := custos.WithClientInfo(context.Background(), custos.ClientInfo{SourceIP: "10.1.2.3"})
	ok, _ := eng.IsAuthorized(inside, "u1", "server.access", scope.Unscoped)
	if !ok {
		t.Fatal("expected authorized from allowed network")
	}

	outside := custos.WithClientInfo(context.Background(), custos.ClientInfo{SourceIP: "192.168.1.1"})
	ok, _ = eng.IsAuthorized(outside, "u1", "server.access", scope.Unscoped)
	if ok {
		t.Fatal("expected denied from outside network")
	}

	// No client info at all fails the IP condition closed.
	ok, _ = eng.IsAuthorized(context.Background(), "u1", "server.access", scope.Unscoped)
	if ok {
		t.Fatal("expected denied without source IP")
	}
}

func TestUnknownConditionFailsClosed(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	p := mustPermission(t, eng, "vault.open")
	r := mustRole(t, eng, "keeper", 0)
	mustAssign(t, eng, "u1", r, scope.Unscoped)

	if _, err := eng.GrantPermission(ctx, custos.GrantInput{
		RoleID:       r.ID,
		PermissionID: p.ID,
		Conditions:   map[string]any{"requires_mfa": true},
		GrantedBy:    "admin",
	}); err != nil {
		t.Fatal(err)
	}

	ok, _ := eng.IsAuthorized(ctx, "u1", "vault.open", scope.Unscoped)
	if ok {
		t.Fatal("expected unknown condition to fail closed")
	}
}

func TestDeactivationDeniesAuthorization(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	p := mustPermission(t, eng, "report.run")
	r := mustRole(t, eng, "analyst", 0)
	mustGrant(t, eng, r, p)
	mustAssign(t, eng, "u1", r, scope.Unscoped)

	if err := eng.DeactivatePermission(ctx, p.ID, "admin"); err != nil {
		t.Fatal(err)
	}
	ok, _ := eng.IsAuthorized(ctx, "u1", "report.run", scope.Unscoped)
	if ok {
		t.Fatal("expected denied after permission deactivation")
	}
	// Idempotent.
	if err := eng.DeactivatePermission(ctx, p.ID, "admin"); err != nil {
		t.Fatal(err)
	}
}

func TestSystemRoleCannotBeDeactivated(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	r, err := eng.CreateRole(ctx, custos.CreateRoleInput{
		Name: "root", Level: role.LevelSystem, IsSystemRole: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.DeactivateRole(ctx, r.ID, "admin"); !errors.Is(err, custos.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestRequestWorkflow(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	r := mustRole(t, eng, "grader", 0)

	req, err := eng.SubmitRequest(ctx, custos.SubmitRequestInput{
		RequestedBy:  "u1",
		RequestedFor: "u1",
		RoleID:       r.ID,
		Reason:       "semester grading",
		DurationDays: 30,
	})
	if err != nil {
		t.Fatal(err)
	}
	if req.Status != request.StatusPending {
		t.Fatalf("expected PENDING, got %s", req.Status)
	}
	if req.Priority != request.PriorityNormal {
		t.Fatalf("expected default NORMAL priority, got %s", req.Priority)
	}

	approved, err := eng.ApproveRequest(ctx, req.ID, "dean", "ok")
	if err != nil {
		t.Fatal(err)
	}
	if approved.Status != request.StatusApproved {
		t.Fatalf("expected APPROVED, got %s", approved.Status)
	}
	if approved.AssignmentID == nil {
		t.Fatal("expected assignment id on approved request")
	}

	a, err := eng.GetAssignment(ctx, *approved.AssignmentID)
	if err != nil {
		t.Fatal(err)
	}
	if a.PrincipalID != "u1" || a.Status != assignment.StatusActive {
		t.Fatal("approval did not create the expected assignment")
	}
	if a.ExpiresAt == nil {
		t.Fatal("expected duration_days to bound the assignment")
	}

	// Terminal: approving or rejecting again is illegal.
	if _, err := eng.ApproveRequest(ctx, req.ID, "dean", ""); !errors.Is(err, custos.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if _, err := eng.RejectRequest(ctx, req.ID, "dean", ""); !errors.Is(err, custos.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestApproveAllOrNothing(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	r := mustRole(t, eng, "single-seat", 1)
	mustAssign(t, eng, "incumbent", r, scope.Unscoped)

	req, err := eng.SubmitRequest(ctx, custos.SubmitRequestInput{
		RequestedBy: "u1", RequestedFor: "u1", RoleID: r.ID, Reason: "cover",
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = eng.ApproveRequest(ctx, req.ID, "dean", "")
	if !errors.Is(err, custos.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}

	// The request survives the failed approval untouched.
	got, err := eng.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != request.StatusPending {
		t.Fatalf("expected PENDING after failed approval, got %s", got.Status)
	}

	// Freeing the seat lets the same request through.
	list, _ := eng.ListAssignments(ctx, &assignment.ListFilter{PrincipalID: "incumbent"})
	if _, err := eng.RevokeAssignment(ctx, list[0].ID, "rotation", "admin"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.ApproveRequest(ctx, req.ID, "dean", ""); err != nil {
		t.Fatalf("expected approval after seat freed, got %v", err)
	}
}

func TestRequestLapse(t *testing.T) {
	eng, clock := newTestEngine(t, custos.WithConfig(custos.Config{
		PendingRequestTTL: 72 * time.Hour,
	}))
	ctx := context.Background()
	r := mustRole(t, eng, "reviewer", 0)

	req, err := eng.SubmitRequest(ctx, custos.SubmitRequestInput{
		RequestedBy: "u1", RequestedFor: "u1", RoleID: r.ID, Reason: "review season",
	})
	if err != nil {
		t.Fatal(err)
	}

	clock.Advance(4 * 24 * time.Hour)

	// Lazy: reads report EXPIRED without any sweep.
	got, err := eng.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != request.StatusExpired {
		t.Fatalf("expected EXPIRED, got %s", got.Status)
	}

	if _, err := eng.ApproveRequest(ctx, req.ID, "dean", ""); !errors.Is(err, custos.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for lapsed request, got %v", err)
	}

	res, err := eng.SweepExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.ExpiredRequests != 1 {
		t.Fatalf("expected 1 swept request, got %d", res.ExpiredRequests)
	}
}

func TestAlertLifecycle(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	a, err := eng.RaiseAlert(ctx, custos.RaiseAlertInput{
		Title:    "burst of denied checks",
		Severity: alert.SeverityHigh,
	})
	if err != nil {
		t.Fatal(err)
	}
	if a.Status != alert.StatusNew {
		t.Fatalf("expected NEW, got %s", a.Status)
	}

	// Resolution requires an investigation first.
	if _, err := eng.ResolveAlert(ctx, a.ID, "sec", "n/a"); !errors.Is(err, custos.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState resolving from NEW, got %v", err)
	}
	if _, err := eng.MarkFalsePositive(ctx, a.ID, "sec", "n/a"); !errors.Is(err, custos.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState marking from NEW, got %v", err)
	}

	if _, err := eng.BeginInvestigation(ctx, a.ID, "sec"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.BeginInvestigation(ctx, a.ID, "sec"); !errors.Is(err, custos.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on double investigation, got %v", err)
	}

	if _, err := eng.AppendActionTaken(ctx, a.ID, "sessions revoked", "sec"); err != nil {
		t.Fatal(err)
	}

	resolved, err := eng.ResolveAlert(ctx, a.ID, "sec", "credential rotation complete")
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Status != alert.StatusResolved || resolved.ResolvedAt == nil {
		t.Fatal("expected RESOLVED with timestamp")
	}
	if len(resolved.ActionsTaken) != 1 {
		t.Fatalf("expected 1 action taken, got %d", len(resolved.ActionsTaken))
	}

	// Terminal states admit nothing further.
	if _, err := eng.IgnoreAlert(ctx, a.ID, "sec", ""); !errors.Is(err, custos.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on terminal alert, got %v", err)
	}
	if _, err := eng.AppendActionTaken(ctx, a.ID, "late note", "sec"); !errors.Is(err, custos.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState appending to terminal alert, got %v", err)
	}
}

func TestAlertIgnoreFromAnyNonTerminal(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	fresh, _ := eng.RaiseAlert(ctx, custos.RaiseAlertInput{Title: "noise", Severity: alert.SeverityInfo})
	got, err := eng.IgnoreAlert(ctx, fresh.ID, "sec", "known scanner")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != alert.StatusIgnored {
		t.Fatalf("expected IGNORED, got %s", got.Status)
	}

	investigating, _ := eng.RaiseAlert(ctx, custos.RaiseAlertInput{Title: "odd", Severity: alert.SeverityLow})
	_, _ = eng.BeginInvestigation(ctx, investigating.ID, "sec")
	if _, err := eng.IgnoreAlert(ctx, investigating.ID, "sec", "benign"); err != nil {
		t.Fatal(err)
	}
}

func TestAuditTrail(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := custos.WithClientInfo(context.Background(), custos.ClientInfo{
		SourceIP:  "10.0.0.7",
		UserAgent: "registrar-portal",
	})

	p := mustPermission(t, eng, "audit.probe")
	r := mustRole(t, eng, "prober", 0)
	mustGrant(t, eng, r, p)
	mustAssign(t, eng, "u1", r, scope.Unscoped)

	if _, err := eng.IsAuthorized(ctx, "u1", "audit.probe", scope.Unscoped); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.IsAuthorized(ctx, "u2", "audit.probe", scope.Unscoped); err != nil {
		t.Fatal(err)
	}

	// The denied check is on the record with client info attached.
	denied, err := eng.ListLogEntries(ctx, &accesslog.QueryFilter{
		Action: custos.ActionAuthorizeCheck,
		Result: accesslog.ResultDenied,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(denied) != 1 {
		t.Fatalf("expected 1 denied check, got %d", len(denied))
	}
	if denied[0].PrincipalID != "u2" || denied[0].SourceIP != "10.0.0.7" {
		t.Fatalf("unexpected entry: %+v", denied[0])
	}

	// QueryLogs streams newest first across page boundaries.
	eng2, _ := newTestEngine(t, custos.WithConfig(custos.Config{LogPageSize: 2}))
	for range 5 {
		eng2.Record(ctx, custos.RecordInput{
			PrincipalID: "u1",
			Action:      "bulk.op",
			Resource:    "test",
			Result:      accesslog.ResultSuccess,
		})
	}
	var n int
	var prev *accesslog.Entry
	for entry, err := range eng2.QueryLogs(ctx, accesslog.QueryFilter{Action: "bulk.op"}) {
		if err != nil {
			t.Fatal(err)
		}
		if prev != nil && entry.CreatedAt.After(prev.CreatedAt) {
			t.Fatal("entries not newest first")
		}
		prev = entry
		n++
	}
	if n != 5 {
		t.Fatalf("expected 5 entries streamed, got %d", n)
	}
}

func TestAuditDisabled(t *testing.T) {
	f := false
	eng, _ := newTestEngine(t, custos.WithConfig(custos.Config{EnableAudit: &f}))
	ctx := context.Background()

	mustPermission(t, eng, "quiet.op")

	count, err := eng.CountLogEntries(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("expected no audit entries with audit disabled, got %d", count)
	}
}

func TestLastUsedStamp(t *testing.T) {
	eng, clock := newTestEngine(t)
	ctx := context.Background()

	p := mustPermission(t, eng, "stamp.check")
	r := mustRole(t, eng, "stamper", 0)
	mustGrant(t, eng, r, p)
	a := mustAssign(t, eng, "u1", r, scope.Unscoped)

	if _, err := eng.IsAuthorized(ctx, "u1", "stamp.check", scope.Unscoped); err != nil {
		t.Fatal(err)
	}

	got, err := eng.GetAssignment(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastUsed == nil || !got.LastUsed.Equal(clock.Now()) {
		t.Fatalf("expected last_used stamped at %v, got %v", clock.Now(), got.LastUsed)
	}
}

// countingCache records decisions and invalidations for assertions.
type countingCache struct {
	mu            sync.Mutex
	entries       map[string]custos.Decision
	hits          int
	invalidations int
}

func newCountingCache() *countingCache {
	return &countingCache{entries: make(map[string]custos.Decision)}
}

func (c *countingCache) key(principalID, code string, sc scope.Scope) string {
	return principalID + "\x00" + code + "\x00" + sc.String()
}

func (c *countingCache) Get(_ context.Context, principalID, code string, sc scope.Scope) (custos.Decision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.entries[c.key(principalID, code, sc)]
	if ok {
		c.hits++
	}
	return d, ok
}

func (c *countingCache) Set(_ context.Context, principalID, code string, sc scope.Scope, d custos.Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.key(principalID, code, sc)] = d
}

func (c *countingCache) InvalidatePrincipal(_ context.Context, principalID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if len(k) > len(principalID) && k[:len(principalID)+1] == principalID+"\x00" {
			delete(c.entries, k)
		}
	}
	c.invalidations++
}

func (c *countingCache) InvalidateAll(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.invalidations++
}

func TestCacheInvalidation(t *testing.T) {
	cache := newCountingCache()
	eng, _ := newTestEngine(t, custos.WithCache(cache))
	ctx := context.Background()

	p := mustPermission(t, eng, "cache.probe")
	r := mustRole(t, eng, "cached", 0)
	mustGrant(t, eng, r, p)
	a := mustAssign(t, eng, "u1", r, scope.Unscoped)

	ok, _ := eng.IsAuthorized(ctx, "u1", "cache.probe", scope.Unscoped)
	if !ok {
		t.Fatal("expected authorized")
	}
	ok, _ = eng.IsAuthorized(ctx, "u1", "cache.probe", scope.Unscoped)
	if !ok {
		t.Fatal("expected authorized from cache")
	}
	if cache.hits == 0 {
		t.Fatal("expected a cache hit on the second check")
	}

	// Revocation invalidates; the stale allow must not survive.
	if _, err := eng.RevokeAssignment(ctx, a.ID, "done", "admin"); err != nil {
		t.Fatal(err)
	}
	ok, _ = eng.IsAuthorized(ctx, "u1", "cache.probe", scope.Unscoped)
	if ok {
		t.Fatal("expected denied after revoke, cached allow leaked")
	}
}

func TestCachedCheckKeepsAuditAndStamp(t *testing.T) {
	cache := newCountingCache()
	eng, clock := newTestEngine(t, custos.WithCache(cache))
	ctx := context.Background()

	p := mustPermission(t, eng, "cache.audit")
	r := mustRole(t, eng, "cached-auditee", 0)
	mustGrant(t, eng, r, p)
	a := mustAssign(t, eng, "u1", r, scope.Unscoped)

	if _, err := eng.IsAuthorized(ctx, "u1", "cache.audit", scope.Unscoped); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Minute)
	if _, err := eng.IsAuthorized(ctx, "u1", "cache.audit", scope.Unscoped); err != nil {
		t.Fatal(err)
	}
	if cache.hits == 0 {
		t.Fatal("expected the second check to hit the cache")
	}

	// A cached verdict is still a check: both land in the audit log.
	entries, err := eng.ListLogEntries(ctx, &accesslog.QueryFilter{
		Action: custos.ActionAuthorizeCheck,
		Result: accesslog.ResultSuccess,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected both checks audited, got %d entries", len(entries))
	}

	// last_used reflects the cached check, not just the first walk.
	got, err := eng.GetAssignment(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastUsed == nil || !got.LastUsed.Equal(clock.Now()) {
		t.Fatalf("expected last_used %v, got %v", clock.Now(), got.LastUsed)
	}
}

func TestLapsedSeatFreesWithoutSweep(t *testing.T) {
	eng, clock := newTestEngine(t)
	ctx := context.Background()
	r := mustRole(t, eng, "duty-officer", 1)

	expires := clock.Now().Add(24 * time.Hour)
	holder, err := eng.AssignRole(ctx, custos.AssignRoleInput{
		PrincipalID: "u1", RoleID: r.ID, ExpiresAt: &expires, GrantedBy: "admin",
	})
	if err != nil {
		t.Fatal(err)
	}

	// Within the window the seat is taken.
	if _, err := eng.AssignRole(ctx, custos.AssignRoleInput{
		PrincipalID: "u2", RoleID: r.ID, GrantedBy: "admin",
	}); !errors.Is(err, custos.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}

	// Two days past expiry, with no sweep run, the seat is free.
	clock.Advance(72 * time.Hour)
	if _, err := eng.AssignRole(ctx, custos.AssignRoleInput{
		PrincipalID: "u2", RoleID: r.ID, GrantedBy: "admin",
	}); err != nil {
		t.Fatalf("expected lapsed holder to free the seat, got %v", err)
	}

	// The lapsed row was retired in passing.
	got, err := eng.GetAssignment(ctx, holder.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != assignment.StatusExpired {
		t.Fatalf("expected lapsed holder EXPIRED, got %s", got.Status)
	}
}

func TestReactivateLapsedAssignment(t *testing.T) {
	eng, clock := newTestEngine(t)
	ctx := context.Background()
	r := mustRole(t, eng, "stand-in", 0)

	expires := clock.Now().Add(24 * time.Hour)
	a, err := eng.AssignRole(ctx, custos.AssignRoleInput{
		PrincipalID: "u1", RoleID: r.ID, ExpiresAt: &expires, GrantedBy: "admin",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.SuspendAssignment(ctx, a.ID, "leave", "admin"); err != nil {
		t.Fatal(err)
	}

	clock.Advance(48 * time.Hour)
	if _, err := eng.ReactivateAssignment(ctx, a.ID, "admin"); !errors.Is(err, custos.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState reactivating a lapsed assignment, got %v", err)
	}
}

func TestConcurrentApprovalsSingleSeat(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	r := mustRole(t, eng, "head-ta", 1)

	submit := func(who string) *request.Request {
		req, err := eng.SubmitRequest(ctx, custos.SubmitRequestInput{
			RequestedBy: who, RequestedFor: who, RoleID: r.ID, Reason: "term staffing",
		})
		if err != nil {
			t.Fatal(err)
		}
		return req
	}
	reqs := []*request.Request{submit("u1"), submit("u2")}

	var wg sync.WaitGroup
	errs := make([]error, len(reqs))
	for i, req := range reqs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = eng.ApproveRequest(ctx, req.ID, "dean", "")
		}()
	}
	wg.Wait()

	var approved, overCapacity int
	for i, req := range reqs {
		got, err := eng.GetRequest(ctx, req.ID)
		if err != nil {
			t.Fatal(err)
		}
		switch {
		case errs[i] == nil:
			approved++
			if got.Status != request.StatusApproved {
				t.Fatalf("winner should be APPROVED, got %s", got.Status)
			}
		case errors.Is(errs[i], custos.ErrCapacityExceeded):
			overCapacity++
			if got.Status != request.StatusPending {
				t.Fatalf("loser must stay PENDING, got %s", got.Status)
			}
		default:
			t.Fatalf("unexpected error: %v", errs[i])
		}
	}
	if approved != 1 || overCapacity != 1 {
		t.Fatalf("expected exactly one approval for one seat, got %d approved and %d over capacity", approved, overCapacity)
	}
}

func TestEngineStartStop(t *testing.T) {
	eng, _ := newTestEngine(t, custos.WithConfig(custos.Config{
		SweepInterval: time.Minute,
	}))
	ctx := context.Background()

	if err := eng.Start(ctx); err != nil {
		t.Fatal(err)
	}
	// Idempotent.
	if err := eng.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := eng.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}
