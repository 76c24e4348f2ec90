// Package memory provides an in-memory implementation of the Custos
// composite store. It is intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
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

// Compile-time interface checks.
var (
	_ permission.Store = (*Store)(nil)
	_ role.Store       = (*Store)(nil)
	_ grant.Store      = (*Store)(nil)
	_ assignment.Store = (*Store)(nil)
	_ request.Store    = (*Store)(nil)
	_ accesslog.Store  = (*Store)(nil)
	_ alert.Store      = (*Store)(nil)
	_ store.Store      = (*Store)(nil)
)

// Store is a thread-safe in-memory store for all Custos entities.
// Compound operations (assignment creation, request approval) run under
// a single write lock, which gives them the same atomicity the SQL
// backends get from a transaction.
type Store struct {
	mu sync.RWMutex

	permissions map[string]*permission.Permission
	roles       map[string]*role.Role
	grants      map[string]*grant.Grant
	assignments map[string]*assignment.Assignment
	requests    map[string]*request.Request
	alerts      map[string]*alert.Alert
	logs        []*accesslog.Entry // append-only
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		permissions: make(map[string]*permission.Permission),
		roles:       make(map[string]*role.Role),
		grants:      make(map[string]*grant.Grant),
		assignments: make(map[string]*assignment.Assignment),
		requests:    make(map[string]*request.Request),
		alerts:      make(map[string]*alert.Alert),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Permission Store
// ──────────────────────────────────────────────────

func (s *Store) CreatePermission(_ context.Context, p *permission.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.permissions {
		if existing.Code == p.Code {
			return fmt.Errorf("code %q: %w", p.Code, custos.ErrDuplicateCode)
		}
	}
	s.permissions[p.ID.String()] = copyPermission(p)
	return nil
}

func (s *Store) GetPermission(_ context.Context, permID id.PermissionID) (*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.permissions[permID.String()]
	if !ok {
		return nil, fmt.Errorf("permission %s: %w", permID, custos.ErrNotFound)
	}
	return copyPermission(p), nil
}

func (s *Store) GetPermissionByCode(_ context.Context, code string) (*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.permissions {
		if p.Code == code {
			return copyPermission(p), nil
		}
	}
	return nil, fmt.Errorf("permission code %q: %w", code, custos.ErrNotFound)
}

func (s *Store) UpdatePermission(_ context.Context, p *permission.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[p.ID.String()]; !ok {
		return fmt.Errorf("permission %s: %w", p.ID, custos.ErrNotFound)
	}
	s.permissions[p.ID.String()] = copyPermission(p)
	return nil
}

func (s *Store) ListPermissions(_ context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*permission.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		if filter != nil {
			if filter.Category != "" && p.Category != filter.Category {
				continue
			}
			if filter.RiskLevel != "" && p.RiskLevel != filter.RiskLevel {
				continue
			}
			if filter.RequiresApproval != nil && p.RequiresApproval != *filter.RequiresApproval {
				continue
			}
			if filter.IsActive != nil && p.IsActive != *filter.IsActive {
				continue
			}
			if filter.Search != "" && !matchSearch(filter.Search, p.Name, p.Code) {
				continue
			}
		}
		result = append(result, copyPermission(p))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	var limit, offset int
	if filter != nil {
		limit, offset = filter.Limit, filter.Offset
	}
	return paginate(result, limit, offset), nil
}

func (s *Store) CountPermissions(ctx context.Context, filter *permission.ListFilter) (int64, error) {
	if filter != nil {
		f := *filter
		f.Limit, f.Offset = 0, 0
		filter = &f
	}
	list, err := s.ListPermissions(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

// ──────────────────────────────────────────────────
// Role Store
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(_ context.Context, r *role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if existing.Name == r.Name {
			return fmt.Errorf("name %q: %w", r.Name, custos.ErrDuplicateName)
		}
	}
	s.roles[r.ID.String()] = copyRole(r)
	return nil
}

func (s *Store) GetRole(_ context.Context, roleID id.RoleID) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[roleID.String()]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", roleID, custos.ErrNotFound)
	}
	return copyRole(r), nil
}

func (s *Store) GetRoleByName(_ context.Context, name string) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.roles {
		if r.Name == name {
			return copyRole(r), nil
		}
	}
	return nil, fmt.Errorf("role %q: %w", name, custos.ErrNotFound)
}

func (s *Store) UpdateRole(_ context.Context, r *role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[r.ID.String()]; !ok {
		return fmt.Errorf("role %s: %w", r.ID, custos.ErrNotFound)
	}
	s.roles[r.ID.String()] = copyRole(r)
	return nil
}

func (s *Store) ListRoles(_ context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*role.Role, 0, len(s.roles))
	for _, r := range s.roles {
		if filter != nil {
			if filter.Level != "" && r.Level != filter.Level {
				continue
			}
			if filter.IsActive != nil && r.IsActive != *filter.IsActive {
				continue
			}
			if filter.IsDefault != nil && r.IsDefault != *filter.IsDefault {
				continue
			}
			if filter.IsSystem != nil && r.IsSystemRole != *filter.IsSystem {
				continue
			}
			if filter.Search != "" && !matchSearch(filter.Search, r.Name, r.NameEN) {
				continue
			}
		}
		result = append(result, copyRole(r))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	var limit, offset int
	if filter != nil {
		limit, offset = filter.Limit, filter.Offset
	}
	return paginate(result, limit, offset), nil
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	if filter != nil {
		f := *filter
		f.Limit, f.Offset = 0, 0
		filter = &f
	}
	list, err := s.ListRoles(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

// ──────────────────────────────────────────────────
// Grant Store
// ──────────────────────────────────────────────────

func (s *Store) CreateGrant(_ context.Context, g *grant.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.grants {
		if existing.IsActive &&
			existing.RoleID.String() == g.RoleID.String() &&
			existing.PermissionID.String() == g.PermissionID.String() {
			return fmt.Errorf("role %s permission %s: %w", g.RoleID, g.PermissionID, custos.ErrDuplicateGrant)
		}
	}
	s.grants[g.ID.String()] = copyGrant(g)
	return nil
}

func (s *Store) GetGrant(_ context.Context, grantID id.GrantID) (*grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grants[grantID.String()]
	if !ok {
		return nil, fmt.Errorf("grant %s: %w", grantID, custos.ErrNotFound)
	}
	return copyGrant(g), nil
}

func (s *Store) UpdateGrant(_ context.Context, g *grant.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grants[g.ID.String()]; !ok {
		return fmt.Errorf("grant %s: %w", g.ID, custos.ErrNotFound)
	}
	s.grants[g.ID.String()] = copyGrant(g)
	return nil
}

func (s *Store) ListGrants(_ context.Context, filter *grant.ListFilter) ([]*grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*grant.Grant, 0, len(s.grants))
	for _, g := range s.grants {
		if filter != nil {
			if filter.RoleID != nil && g.RoleID.String() != filter.RoleID.String() {
				continue
			}
			if filter.PermissionID != nil && g.PermissionID.String() != filter.PermissionID.String() {
				continue
			}
			if filter.IsActive != nil && g.IsActive != *filter.IsActive {
				continue
			}
		}
		result = append(result, copyGrant(g))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	var limit, offset int
	if filter != nil {
		limit, offset = filter.Limit, filter.Offset
	}
	return paginate(result, limit, offset), nil
}

func (s *Store) CountGrants(ctx context.Context, filter *grant.ListFilter) (int64, error) {
	if filter != nil {
		f := *filter
		f.Limit, f.Offset = 0, 0
		filter = &f
	}
	list, err := s.ListGrants(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) ListGrantsForRoles(_ context.Context, roleIDs []id.RoleID) ([]*grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]struct{}, len(roleIDs))
	for _, rid := range roleIDs {
		wanted[rid.String()] = struct{}{}
	}
	var result []*grant.Grant
	for _, g := range s.grants {
		if !g.IsActive {
			continue
		}
		if _, ok := wanted[g.RoleID.String()]; ok {
			result = append(result, copyGrant(g))
		}
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Assignment Store
// ──────────────────────────────────────────────────

func (s *Store) CreateAssignment(_ context.Context, a *assignment.Assignment, maxAssignees int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retireLapsedLocked(a.RoleID.String(), now)
	if err := s.checkSeatLocked(a, maxAssignees); err != nil {
		return err
	}
	s.assignments[a.ID.String()] = copyAssignment(a)
	return nil
}

func (s *Store) GetAssignment(_ context.Context, asgnID id.AssignmentID) (*assignment.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[asgnID.String()]
	if !ok {
		return nil, fmt.Errorf("assignment %s: %w", asgnID, custos.ErrNotFound)
	}
	return copyAssignment(a), nil
}

func (s *Store) UpdateAssignment(_ context.Context, a *assignment.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[a.ID.String()]; !ok {
		return fmt.Errorf("assignment %s: %w", a.ID, custos.ErrNotFound)
	}
	s.assignments[a.ID.String()] = copyAssignment(a)
	return nil
}

func (s *Store) ActivateAssignment(_ context.Context, asgnID id.AssignmentID, maxAssignees int, now time.Time) (*assignment.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[asgnID.String()]
	if !ok {
		return nil, fmt.Errorf("assignment %s: %w", asgnID, custos.ErrNotFound)
	}
	if a.Expired(now) {
		return nil, fmt.Errorf("assignment %s has expired: %w", asgnID, custos.ErrInvalidState)
	}
	s.retireLapsedLocked(a.RoleID.String(), now)
	if maxAssignees > 0 && s.activeCountLocked(a.RoleID.String()) >= int64(maxAssignees) {
		return nil, fmt.Errorf("role %s: %w", a.RoleID, custos.ErrCapacityExceeded)
	}
	a.Status = assignment.StatusActive
	a.UpdatedAt = now
	return copyAssignment(a), nil
}

func (s *Store) TouchAssignment(_ context.Context, asgnID id.AssignmentID, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[asgnID.String()]
	if !ok {
		return fmt.Errorf("assignment %s: %w", asgnID, custos.ErrNotFound)
	}
	a.LastUsed = &usedAt
	return nil
}

func (s *Store) ListAssignments(_ context.Context, filter *assignment.ListFilter) ([]*assignment.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*assignment.Assignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		if filter != nil {
			if filter.PrincipalID != "" && a.PrincipalID != filter.PrincipalID {
				continue
			}
			if filter.RoleID != nil && a.RoleID.String() != filter.RoleID.String() {
				continue
			}
			if filter.Scope != nil && !a.Scope.Equal(*filter.Scope) {
				continue
			}
			if filter.Status != "" && a.Status != filter.Status {
				continue
			}
			if filter.EffectiveAt != nil && !a.Effective(*filter.EffectiveAt) {
				continue
			}
		}
		result = append(result, copyAssignment(a))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].GrantedAt.Before(result[j].GrantedAt) })
	var limit, offset int
	if filter != nil {
		limit, offset = filter.Limit, filter.Offset
	}
	return paginate(result, limit, offset), nil
}

func (s *Store) CountAssignments(ctx context.Context, filter *assignment.ListFilter) (int64, error) {
	if filter != nil {
		f := *filter
		f.Limit, f.Offset = 0, 0
		filter = &f
	}
	list, err := s.ListAssignments(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) CountActiveForRole(_ context.Context, roleID id.RoleID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeCountLocked(roleID.String()), nil
}

func (s *Store) MarkExpiredAssignments(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, a := range s.assignments {
		if a.Status == assignment.StatusActive && a.Expired(now) {
			a.Status = assignment.StatusExpired
			a.UpdatedAt = now
			count++
		}
	}
	return count, nil
}

// retireLapsedLocked transitions the role's live rows whose expiry has
// passed to EXPIRED so that seat and duplicate checks see only holders
// that are still effective. Caller must hold the write lock.
func (s *Store) retireLapsedLocked(roleID string, now time.Time) {
	for _, a := range s.assignments {
		if a.RoleID.String() != roleID {
			continue
		}
		if (a.Status == assignment.StatusActive || a.Status == assignment.StatusSuspended) && a.Expired(now) {
			a.Status = assignment.StatusExpired
			a.UpdatedAt = now
		}
	}
}

// activeCountLocked counts persisted ACTIVE rows for a role. Callers
// retire the role's lapsed rows first so the count reflects only
// effective holders.
func (s *Store) activeCountLocked(roleID string) int64 {
	var n int64
	for _, a := range s.assignments {
		if a.Status == assignment.StatusActive && a.RoleID.String() == roleID {
			n++
		}
	}
	return n
}

// checkSeatLocked enforces role capacity and (principal, role, scope)
// uniqueness for a new assignment. Caller must hold the write lock.
func (s *Store) checkSeatLocked(a *assignment.Assignment, maxAssignees int) error {
	rid := a.RoleID.String()
	for _, existing := range s.assignments {
		if existing.Status != assignment.StatusActive && existing.Status != assignment.StatusSuspended {
			continue
		}
		if existing.PrincipalID == a.PrincipalID && existing.RoleID.String() == rid && existing.Scope.Equal(a.Scope) {
			return fmt.Errorf("principal %s role %s: %w", a.PrincipalID, a.RoleID, custos.ErrDuplicateAssignment)
		}
	}
	if maxAssignees > 0 && s.activeCountLocked(rid) >= int64(maxAssignees) {
		return fmt.Errorf("role %s: %w", a.RoleID, custos.ErrCapacityExceeded)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Request Store
// ──────────────────────────────────────────────────

func (s *Store) CreateRequest(_ context.Context, r *request.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID.String()] = copyRequest(r)
	return nil
}

func (s *Store) GetRequest(_ context.Context, reqID id.RequestID) (*request.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[reqID.String()]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", reqID, custos.ErrNotFound)
	}
	return copyRequest(r), nil
}

func (s *Store) UpdateRequest(_ context.Context, r *request.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID.String()]; !ok {
		return fmt.Errorf("request %s: %w", r.ID, custos.ErrNotFound)
	}
	s.requests[r.ID.String()] = copyRequest(r)
	return nil
}

func (s *Store) ApproveRequest(_ context.Context, r *request.Request, a *assignment.Assignment, maxAssignees int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID.String()]; !ok {
		return fmt.Errorf("request %s: %w", r.ID, custos.ErrNotFound)
	}
	s.retireLapsedLocked(a.RoleID.String(), now)
	if err := s.checkSeatLocked(a, maxAssignees); err != nil {
		return err
	}
	s.assignments[a.ID.String()] = copyAssignment(a)
	s.requests[r.ID.String()] = copyRequest(r)
	return nil
}

func (s *Store) ListRequests(_ context.Context, filter *request.ListFilter) ([]*request.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*request.Request, 0, len(s.requests))
	for _, r := range s.requests {
		if filter != nil {
			if filter.RequestedBy != "" && r.RequestedBy != filter.RequestedBy {
				continue
			}
			if filter.RequestedFor != "" && r.RequestedFor != filter.RequestedFor {
				continue
			}
			if filter.RoleID != nil && r.RoleID.String() != filter.RoleID.String() {
				continue
			}
			if filter.Status != "" && r.Status != filter.Status {
				continue
			}
			if filter.Priority != "" && r.Priority != filter.Priority {
				continue
			}
		}
		result = append(result, copyRequest(r))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RequestedAt.After(result[j].RequestedAt) })
	var limit, offset int
	if filter != nil {
		limit, offset = filter.Limit, filter.Offset
	}
	return paginate(result, limit, offset), nil
}

func (s *Store) CountRequests(ctx context.Context, filter *request.ListFilter) (int64, error) {
	if filter != nil {
		f := *filter
		f.Limit, f.Offset = 0, 0
		filter = &f
	}
	list, err := s.ListRequests(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) MarkExpiredRequests(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, r := range s.requests {
		if r.Lapsed(now) {
			r.Status = request.StatusExpired
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Access Log Store
// ──────────────────────────────────────────────────

func (s *Store) AppendLogEntry(_ context.Context, e *accesslog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, copyLogEntry(e))
	return nil
}

func (s *Store) ListLogEntries(_ context.Context, filter *accesslog.QueryFilter) ([]*accesslog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*accesslog.Entry, 0, len(s.logs))
	// Newest first: walk the append-only slice backwards.
	for i := len(s.logs) - 1; i >= 0; i-- {
		e := s.logs[i]
		if filter != nil {
			if filter.PrincipalID != "" && e.PrincipalID != filter.PrincipalID {
				continue
			}
			if filter.Action != "" && e.Action != filter.Action {
				continue
			}
			if filter.Result != "" && e.Result != filter.Result {
				continue
			}
			if filter.SourceIP != "" && e.SourceIP != filter.SourceIP {
				continue
			}
			if filter.After != nil && e.CreatedAt.Before(*filter.After) {
				continue
			}
			if filter.Before != nil && e.CreatedAt.After(*filter.Before) {
				continue
			}
		}
		result = append(result, copyLogEntry(e))
	}
	var limit, offset int
	if filter != nil {
		limit, offset = filter.Limit, filter.Offset
	}
	return paginate(result, limit, offset), nil
}

func (s *Store) CountLogEntries(ctx context.Context, filter *accesslog.QueryFilter) (int64, error) {
	if filter != nil {
		f := *filter
		f.Limit, f.Offset = 0, 0
		filter = &f
	}
	list, err := s.ListLogEntries(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

// ──────────────────────────────────────────────────
// Alert Store
// ──────────────────────────────────────────────────

func (s *Store) CreateAlert(_ context.Context, a *alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID.String()] = copyAlert(a)
	return nil
}

func (s *Store) GetAlert(_ context.Context, alertID id.AlertID) (*alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[alertID.String()]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", alertID, custos.ErrNotFound)
	}
	return copyAlert(a), nil
}

func (s *Store) UpdateAlert(_ context.Context, a *alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[a.ID.String()]; !ok {
		return fmt.Errorf("alert %s: %w", a.ID, custos.ErrNotFound)
	}
	s.alerts[a.ID.String()] = copyAlert(a)
	return nil
}

func (s *Store) ListAlerts(_ context.Context, filter *alert.ListFilter) ([]*alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*alert.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if filter != nil {
			if filter.Status != "" && a.Status != filter.Status {
				continue
			}
			if filter.Severity != "" && a.Severity != filter.Severity {
				continue
			}
			if filter.PrincipalID != "" && a.PrincipalID != filter.PrincipalID {
				continue
			}
			if filter.ThreatType != "" && a.ThreatType != filter.ThreatType {
				continue
			}
			if filter.After != nil && a.DetectedAt.Before(*filter.After) {
				continue
			}
			if filter.Before != nil && a.DetectedAt.After(*filter.Before) {
				continue
			}
		}
		result = append(result, copyAlert(a))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DetectedAt.After(result[j].DetectedAt) })
	var limit, offset int
	if filter != nil {
		limit, offset = filter.Limit, filter.Offset
	}
	return paginate(result, limit, offset), nil
}

func (s *Store) CountAlerts(ctx context.Context, filter *alert.ListFilter) (int64, error) {
	if filter != nil {
		f := *filter
		f.Limit, f.Offset = 0, 0
		filter = &f
	}
	list, err := s.ListAlerts(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func copyPermission(p *permission.Permission) *permission.Permission {
	c := *p
	return &c
}

func copyRole(r *role.Role) *role.Role {
	c := *r
	c.Restrictions = copyMap(r.Restrictions)
	c.Settings = copyMap(r.Settings)
	return &c
}

func copyGrant(g *grant.Grant) *grant.Grant {
	c := *g
	c.Conditions = copyMap(g.Conditions)
	c.Restrictions = copyMap(g.Restrictions)
	return &c
}

func copyAssignment(a *assignment.Assignment) *assignment.Assignment {
	c := *a
	return &c
}

func copyRequest(r *request.Request) *request.Request {
	c := *r
	if r.ExtraPermissions != nil {
		c.ExtraPermissions = make([]string, len(r.ExtraPermissions))
		copy(c.ExtraPermissions, r.ExtraPermissions)
	}
	c.Metadata = copyMap(r.Metadata)
	return &c
}

func copyLogEntry(e *accesslog.Entry) *accesslog.Entry {
	c := *e
	c.Metadata = copyMap(e.Metadata)
	return &c
}

func copyAlert(a *alert.Alert) *alert.Alert {
	c := *a
	if a.ActionsTaken != nil {
		c.ActionsTaken = make([]string, len(a.ActionsTaken))
		copy(c.ActionsTaken, a.ActionsTaken)
	}
	c.Metadata = copyMap(a.Metadata)
	return &c
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func matchSearch(search string, fields ...string) bool {
	needle := strings.ToLower(search)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func paginate[T any](items []*T, limit, offset int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) && offset > 0 {
		return nil
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
