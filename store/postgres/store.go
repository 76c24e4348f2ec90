// Package postgres provides a PostgreSQL implementation of the Custos
// composite store using grove ORM with Go-based migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

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

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a PostgreSQL implementation of the composite Custos store.
type Store struct {
	db   *grove.DB
	pgdb *pgdriver.PgDB
}

// New creates a new PostgreSQL store.
func New(db *grove.DB) *Store {
	return &Store{
		db:   db,
		pgdb: pgdriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pgdb)
	if err != nil {
		return fmt.Errorf("custos/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("custos/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation checks for a postgres unique constraint violation.
// The partial unique indexes back up the in-transaction duplicate
// checks against concurrent writers.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Seat-taking transactions (capacity check + insert) run serializable:
// under read committed two takers of the last seat both count below the
// limit and both commit. Postgres aborts one with SQLSTATE 40001, which
// we retry a few times before surfacing.
var seatTxOptions = &driver.TxOptions{IsolationLevel: driver.LevelSerializable}

const seatTxRetries = 3

// isSerializationFailure checks for a postgres serialization failure.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

// ──────────────────────────────────────────────────
// Permission operations
// ──────────────────────────────────────────────────

func (s *Store) CreatePermission(ctx context.Context, p *permission.Permission) error {
	count, err := s.pgdb.NewSelect((*permissionModel)(nil)).
		Where("code = ?", p.Code).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("custos: create permission: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("code %q: %w", p.Code, custos.ErrDuplicateCode)
	}
	m := permissionToModel(p)
	if _, err := s.pgdb.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("code %q: %w", p.Code, custos.ErrDuplicateCode)
		}
		return fmt.Errorf("custos: create permission: %w", err)
	}
	return nil
}

func (s *Store) GetPermission(ctx context.Context, permID id.PermissionID) (*permission.Permission, error) {
	m := new(permissionModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", permID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("permission %s: %w", permID, custos.ErrNotFound)
		}
		return nil, fmt.Errorf("custos: get permission: %w", err)
	}
	return permissionFromModel(m), nil
}

func (s *Store) GetPermissionByCode(ctx context.Context, code string) (*permission.Permission, error) {
	m := new(permissionModel)
	err := s.pgdb.NewSelect(m).Where("code = ?", code).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("permission code %q: %w", code, custos.ErrNotFound)
		}
		return nil, fmt.Errorf("custos: get permission by code: %w", err)
	}
	return permissionFromModel(m), nil
}

func (s *Store) UpdatePermission(ctx context.Context, p *permission.Permission) error {
	m := permissionToModel(p)
	if _, err := s.pgdb.NewUpdate(m).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("custos: update permission: %w", err)
	}
	return nil
}

func (s *Store) ListPermissions(ctx context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	var models []permissionModel
	q := s.pgdb.NewSelect(&models).OrderExpr("code ASC")
	if filter != nil {
		if filter.Category != "" {
			q = q.Where("category = ?", filter.Category)
		}
		if filter.RiskLevel != "" {
			q = q.Where("risk_level = ?", string(filter.RiskLevel))
		}
		if filter.RequiresApproval != nil {
			q = q.Where("requires_approval = ?", *filter.RequiresApproval)
		}
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
		if filter.Search != "" {
			q = q.Where("(name ILIKE ? OR code ILIKE ?)",
				"%"+filter.Search+"%", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("custos: list permissions: %w", err)
	}
	result := make([]*permission.Permission, len(models))
	for i := range models {
		result[i] = permissionFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountPermissions(ctx context.Context, filter *permission.ListFilter) (int64, error) {
	q := s.pgdb.NewSelect((*permissionModel)(nil))
	if filter != nil {
		if filter.Category != "" {
			q = q.Where("category = ?", filter.Category)
		}
		if filter.RiskLevel != "" {
			q = q.Where("risk_level = ?", string(filter.RiskLevel))
		}
		if filter.RequiresApproval != nil {
			q = q.Where("requires_approval = ?", *filter.RequiresApproval)
		}
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
		if filter.Search != "" {
			q = q.Where("(name ILIKE ? OR code ILIKE ?)",
				"%"+filter.Search+"%", "%"+filter.Search+"%")
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("custos: count permissions: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Role operations
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(ctx context.Context, r *role.Role) error {
	count, err := s.pgdb.NewSelect((*roleModel)(nil)).
		Where("name = ?", r.Name).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("custos: create role: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("name %q: %w", r.Name, custos.ErrDuplicateName)
	}
	m := roleToModel(r)
	if _, err := s.pgdb.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("name %q: %w", r.Name, custos.ErrDuplicateName)
		}
		return fmt.Errorf("custos: create role: %w", err)
	}
	return nil
}

func (s *Store) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	m := new(roleModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", roleID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("role %s: %w", roleID, custos.ErrNotFound)
		}
		return nil, fmt.Errorf("custos: get role: %w", err)
	}
	return roleFromModel(m), nil
}

func (s *Store) GetRoleByName(ctx context.Context, name string) (*role.Role, error) {
	m := new(roleModel)
	err := s.pgdb.NewSelect(m).Where("name = ?", name).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("role name %q: %w", name, custos.ErrNotFound)
		}
		return nil, fmt.Errorf("custos: get role by name: %w", err)
	}
	return roleFromModel(m), nil
}

func (s *Store) UpdateRole(ctx context.Context, r *role.Role) error {
	m := roleToModel(r)
	if _, err := s.pgdb.NewUpdate(m).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("custos: update role: %w", err)
	}
	return nil
}

func (s *Store) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	var models []roleModel
	q := s.pgdb.NewSelect(&models).OrderExpr("name ASC")
	if filter != nil {
		if filter.Level != "" {
			q = q.Where("level = ?", string(filter.Level))
		}
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
		if filter.IsDefault != nil {
			q = q.Where("is_default = ?", *filter.IsDefault)
		}
		if filter.IsSystem != nil {
			q = q.Where("is_system_role = ?", *filter.IsSystem)
		}
		if filter.Search != "" {
			q = q.Where("(name ILIKE ? OR name_en ILIKE ?)",
				"%"+filter.Search+"%", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("custos: list roles: %w", err)
	}
	result := make([]*role.Role, len(models))
	for i := range models {
		result[i] = roleFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	q := s.pgdb.NewSelect((*roleModel)(nil))
	if filter != nil {
		if filter.Level != "" {
			q = q.Where("level = ?", string(filter.Level))
		}
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
		if filter.IsDefault != nil {
			q = q.Where("is_default = ?", *filter.IsDefault)
		}
		if filter.IsSystem != nil {
			q = q.Where("is_system_role = ?", *filter.IsSystem)
		}
		if filter.Search != "" {
			q = q.Where("(name ILIKE ? OR name_en ILIKE ?)",
				"%"+filter.Search+"%", "%"+filter.Search+"%")
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("custos: count roles: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Grant operations
// ──────────────────────────────────────────────────

func (s *Store) CreateGrant(ctx context.Context, g *grant.Grant) error {
	count, err := s.pgdb.NewSelect((*grantModel)(nil)).
		Where("role_id = ?", g.RoleID.String()).
		Where("permission_id = ?", g.PermissionID.String()).
		Where("is_active = ?", true).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("custos: create grant: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("role %s, permission %s: %w", g.RoleID, g.PermissionID, custos.ErrDuplicateGrant)
	}
	m := grantToModel(g)
	if _, err := s.pgdb.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("role %s, permission %s: %w", g.RoleID, g.PermissionID, custos.ErrDuplicateGrant)
		}
		return fmt.Errorf("custos: create grant: %w", err)
	}
	return nil
}

func (s *Store) GetGrant(ctx context.Context, grantID id.GrantID) (*grant.Grant, error) {
	m := new(grantModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", grantID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("grant %s: %w", grantID, custos.ErrNotFound)
		}
		return nil, fmt.Errorf("custos: get grant: %w", err)
	}
	return grantFromModel(m), nil
}

func (s *Store) UpdateGrant(ctx context.Context, g *grant.Grant) error {
	m := grantToModel(g)
	if _, err := s.pgdb.NewUpdate(m).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("custos: update grant: %w", err)
	}
	return nil
}

func (s *Store) ListGrants(ctx context.Context, filter *grant.ListFilter) ([]*grant.Grant, error) {
	var models []grantModel
	q := s.pgdb.NewSelect(&models).OrderExpr("created_at ASC")
	if filter != nil {
		if filter.RoleID != nil {
			q = q.Where("role_id = ?", filter.RoleID.String())
		}
		if filter.PermissionID != nil {
			q = q.Where("permission_id = ?", filter.PermissionID.String())
		}
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("custos: list grants: %w", err)
	}
	result := make([]*grant.Grant, len(models))
	for i := range models {
		result[i] = grantFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountGrants(ctx context.Context, filter *grant.ListFilter) (int64, error) {
	q := s.pgdb.NewSelect((*grantModel)(nil))
	if filter != nil {
		if filter.RoleID != nil {
			q = q.Where("role_id = ?", filter.RoleID.String())
		}
		if filter.PermissionID != nil {
			q = q.Where("permission_id = ?", filter.PermissionID.String())
		}
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("custos: count grants: %w", err)
	}
	return count, nil
}

func (s *Store) ListGrantsForRoles(ctx context.Context, roleIDs []id.RoleID) ([]*grant.Grant, error) {
	if len(roleIDs) == 0 {
		return []*grant.Grant{}, nil
	}
	ids := make([]string, len(roleIDs))
	for i, rid := range roleIDs {
		ids[i] = rid.String()
	}
	var models []grantModel
	err := s.pgdb.NewSelect(&models).
		Where("role_id IN (?)", ids).
		Where("is_active = ?", true).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("custos: list grants for roles: %w", err)
	}
	result := make([]*grant.Grant, len(models))
	for i := range models {
		result[i] = grantFromModel(&models[i])
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Assignment operations
// ──────────────────────────────────────────────────

func (s *Store) CreateAssignment(ctx context.Context, a *assignment.Assignment, maxAssignees int, now time.Time) error {
	var err error
	for range seatTxRetries {
		if err = s.createAssignmentTx(ctx, a, maxAssignees, now); !isSerializationFailure(err) {
			return err
		}
	}
	return fmt.Errorf("custos: create assignment: %w", err)
}

func (s *Store) createAssignmentTx(ctx context.Context, a *assignment.Assignment, maxAssignees int, now time.Time) error {
	tx, err := s.pgdb.BeginTxQuery(ctx, seatTxOptions)
	if err != nil {
		return fmt.Errorf("custos: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	// Retire the role's lapsed live rows first so the duplicate and
	// capacity checks, and the partial unique index, see only holders
	// that are still effective.
	if _, err := tx.NewUpdate((*assignmentModel)(nil)).
		Set("status = ?", string(assignment.StatusExpired)).
		Set("updated_at = ?", now.UTC()).
		Where("role_id = ?", a.RoleID.String()).
		Where("status IN (?, ?)", string(assignment.StatusActive), string(assignment.StatusSuspended)).
		Where("expires_at IS NOT NULL").
		Where("expires_at <= ?", now).
		Exec(ctx); err != nil {
		return fmt.Errorf("custos: create assignment: %w", err)
	}

	// Duplicate and capacity checks run in the same transaction as the
	// insert; the partial unique index catches duplicate races the
	// count cannot see.
	dup, err := tx.NewSelect((*assignmentModel)(nil)).
		Where("principal_id = ?", a.PrincipalID).
		Where("role_id = ?", a.RoleID.String()).
		Where("scope = ?", a.Scope.String()).
		Where("status IN (?, ?)", string(assignment.StatusActive), string(assignment.StatusSuspended)).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("custos: create assignment: %w", err)
	}
	if dup > 0 {
		return fmt.Errorf("principal %s, role %s: %w", a.PrincipalID, a.RoleID, custos.ErrDuplicateAssignment)
	}
	if maxAssignees > 0 {
		active, err := tx.NewSelect((*assignmentModel)(nil)).
			Where("role_id = ?", a.RoleID.String()).
			Where("status = ?", string(assignment.StatusActive)).
			Count(ctx)
		if err != nil {
			return fmt.Errorf("custos: create assignment: %w", err)
		}
		if active >= int64(maxAssignees) {
			return fmt.Errorf("role %s: %w", a.RoleID, custos.ErrCapacityExceeded)
		}
	}

	m := assignmentToModel(a)
	if _, err := tx.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("principal %s, role %s: %w", a.PrincipalID, a.RoleID, custos.ErrDuplicateAssignment)
		}
		return fmt.Errorf("custos: create assignment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("custos: commit tx: %w", err)
	}
	return nil
}

func (s *Store) GetAssignment(ctx context.Context, asgnID id.AssignmentID) (*assignment.Assignment, error) {
	m := new(assignmentModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", asgnID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("assignment %s: %w", asgnID, custos.ErrNotFound)
		}
		return nil, fmt.Errorf("custos: get assignment: %w", err)
	}
	a, err := assignmentFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("custos: get assignment: %w", err)
	}
	return a, nil
}

func (s *Store) UpdateAssignment(ctx context.Context, a *assignment.Assignment) error {
	m := assignmentToModel(a)
	if _, err := s.pgdb.NewUpdate(m).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("custos: update assignment: %w", err)
	}
	return nil
}

func (s *Store) ActivateAssignment(ctx context.Context, asgnID id.AssignmentID, maxAssignees int, now time.Time) (*assignment.Assignment, error) {
	var (
		a   *assignment.Assignment
		err error
	)
	for range seatTxRetries {
		if a, err = s.activateAssignmentTx(ctx, asgnID, maxAssignees, now); !isSerializationFailure(err) {
			return a, err
		}
	}
	return nil, fmt.Errorf("custos: activate assignment: %w", err)
}

func (s *Store) activateAssignmentTx(ctx context.Context, asgnID id.AssignmentID, maxAssignees int, now time.Time) (*assignment.Assignment, error) {
	tx, err := s.pgdb.BeginTxQuery(ctx, seatTxOptions)
	if err != nil {
		return nil, fmt.Errorf("custos: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	m := new(assignmentModel)
	err = tx.NewSelect(m).Where("id = ?", asgnID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("assignment %s: %w", asgnID, custos.ErrNotFound)
		}
		return nil, fmt.Errorf("custos: activate assignment: %w", err)
	}
	if m.ExpiresAt != nil && !now.Before(*m.ExpiresAt) {
		return nil, fmt.Errorf("assignment %s has expired: %w", asgnID, custos.ErrInvalidState)
	}

	// Retire the role's other lapsed live rows so the capacity count
	// sees only effective holders.
	if _, err := tx.NewUpdate((*assignmentModel)(nil)).
		Set("status = ?", string(assignment.StatusExpired)).
		Set("updated_at = ?", now.UTC()).
		Where("role_id = ?", m.RoleID).
		Where("id <> ?", asgnID.String()).
		Where("status IN (?, ?)", string(assignment.StatusActive), string(assignment.StatusSuspended)).
		Where("expires_at IS NOT NULL").
		Where("expires_at <= ?", now).
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("custos: activate assignment: %w", err)
	}

	if maxAssignees > 0 {
		active, err := tx.NewSelect((*assignmentModel)(nil)).
			Where("role_id = ?", m.RoleID).
			Where("status = ?", string(assignment.StatusActive)).
			Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("custos: activate assignment: %w", err)
		}
		if active >= int64(maxAssignees) {
			return nil, fmt.Errorf("role %s: %w", m.RoleID, custos.ErrCapacityExceeded)
		}
	}

	m.Status = string(assignment.StatusActive)
	m.UpdatedAt = now.UTC()
	if _, err := tx.NewUpdate(m).WherePK().Exec(ctx); err != nil {
		return nil, fmt.Errorf("custos: activate assignment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("custos: commit tx: %w", err)
	}
	a, err := assignmentFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("custos: activate assignment: %w", err)
	}
	return a, nil
}

func (s *Store) TouchAssignment(ctx context.Context, asgnID id.AssignmentID, usedAt time.Time) error {
	_, err := s.pgdb.NewUpdate((*assignmentModel)(nil)).
		Set("last_used = ?", usedAt).
		Where("id = ?", asgnID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("custos: touch assignment: %w", err)
	}
	return nil
}

func (s *Store) ListAssignments(ctx context.Context, filter *assignment.ListFilter) ([]*assignment.Assignment, error) {
	var models []assignmentModel
	q := s.pgdb.NewSelect(&models).OrderExpr("granted_at ASC")
	if filter != nil {
		if filter.PrincipalID != "" {
			q = q.Where("principal_id = ?", filter.PrincipalID)
		}
		if filter.RoleID != nil {
			q = q.Where("role_id = ?", filter.RoleID.String())
		}
		if filter.Scope != nil {
			q = q.Where("scope = ?", filter.Scope.String())
		}
		if filter.Status != "" {
			q = q.Where("status = ?", string(filter.Status))
		}
		if filter.EffectiveAt != nil {
			q = q.Where("status = ?", string(assignment.StatusActive)).
				Where("(expires_at IS NULL OR expires_at > ?)", *filter.EffectiveAt)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("custos: list assignments: %w", err)
	}
	result := make([]*assignment.Assignment, len(models))
	for i := range models {
		a, err := assignmentFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("custos: list assignments: %w", err)
		}
		result[i] = a
	}
	return result, nil
}

func (s *Store) CountAssignments(ctx context.Context, filter *assignment.ListFilter) (int64, error) {
	q := s.pgdb.NewSelect((*assignmentModel)(nil))
	if filter != nil {
		if filter.PrincipalID != "" {
			q = q.Where("principal_id = ?", filter.PrincipalID)
		}
		if filter.RoleID != nil {
			q = q.Where("role_id = ?", filter.RoleID.String())
		}
		if filter.Scope != nil {
			q = q.Where("scope = ?", filter.Scope.String())
		}
		if filter.Status != "" {
			q = q.Where("status = ?", string(filter.Status))
		}
		if filter.EffectiveAt != nil {
			q = q.Where("status = ?", string(assignment.StatusActive)).
				Where("(expires_at IS NULL OR expires_at > ?)", *filter.EffectiveAt)
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("custos: count assignments: %w", err)
	}
	return count, nil
}

func (s *Store) CountActiveForRole(ctx context.Context, roleID id.RoleID) (int64, error) {
	count, err := s.pgdb.NewSelect((*assignmentModel)(nil)).
		Where("role_id = ?", roleID.String()).
		Where("status = ?", string(assignment.StatusActive)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("custos: count active for role: %w", err)
	}
	return count, nil
}

func (s *Store) MarkExpiredAssignments(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.pgdb.NewUpdate((*assignmentModel)(nil)).
		Set("status = ?", string(assignment.StatusExpired)).
		Set("updated_at = ?", now.UTC()).
		Where("status = ?", string(assignment.StatusActive)).
		Where("expires_at IS NOT NULL").
		Where("expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("custos: mark expired assignments: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("custos: mark expired assignments rows: %w", err)
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Request operations
// ──────────────────────────────────────────────────

func (s *Store) CreateRequest(ctx context.Context, r *request.Request) error {
	m := requestToModel(r)
	if _, err := s.pgdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("custos: create request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, reqID id.RequestID) (*request.Request, error) {
	m := new(requestModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", reqID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("request %s: %w", reqID, custos.ErrNotFound)
		}
		return nil, fmt.Errorf("custos: get request: %w", err)
	}
	r, err := requestFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("custos: get request: %w", err)
	}
	return r, nil
}

func (s *Store) UpdateRequest(ctx context.Context, r *request.Request) error {
	m := requestToModel(r)
	if _, err := s.pgdb.NewUpdate(m).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("custos: update request: %w", err)
	}
	return nil
}

func (s *Store) ApproveRequest(ctx context.Context, r *request.Request, a *assignment.Assignment, maxAssignees int, now time.Time) error {
	var err error
	for range seatTxRetries {
		if err = s.approveRequestTx(ctx, r, a, maxAssignees, now); !isSerializationFailure(err) {
			return err
		}
	}
	return fmt.Errorf("custos: approve request: %w", err)
}

func (s *Store) approveRequestTx(ctx context.Context, r *request.Request, a *assignment.Assignment, maxAssignees int, now time.Time) error {
	tx, err := s.pgdb.BeginTxQuery(ctx, seatTxOptions)
	if err != nil {
		return fmt.Errorf("custos: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	count, err := tx.NewSelect((*requestModel)(nil)).
		Where("id = ?", r.ID.String()).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("custos: approve request: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("request %s: %w", r.ID, custos.ErrNotFound)
	}

	if _, err := tx.NewUpdate((*assignmentModel)(nil)).
		Set("status = ?", string(assignment.StatusExpired)).
		Set("updated_at = ?", now.UTC()).
		Where("role_id = ?", a.RoleID.String()).
		Where("status IN (?, ?)", string(assignment.StatusActive), string(assignment.StatusSuspended)).
		Where("expires_at IS NOT NULL").
		Where("expires_at <= ?", now).
		Exec(ctx); err != nil {
		return fmt.Errorf("custos: approve request: %w", err)
	}

	// Same checks as CreateAssignment; on any failure the transaction
	// rolls back and the request stays untouched.
	dup, err := tx.NewSelect((*assignmentModel)(nil)).
		Where("principal_id = ?", a.PrincipalID).
		Where("role_id = ?", a.RoleID.String()).
		Where("scope = ?", a.Scope.String()).
		Where("status IN (?, ?)", string(assignment.StatusActive), string(assignment.StatusSuspended)).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("custos: approve request: %w", err)
	}
	if dup > 0 {
		return fmt.Errorf("principal %s, role %s: %w", a.PrincipalID, a.RoleID, custos.ErrDuplicateAssignment)
	}
	if maxAssignees > 0 {
		active, err := tx.NewSelect((*assignmentModel)(nil)).
			Where("role_id = ?", a.RoleID.String()).
			Where("status = ?", string(assignment.StatusActive)).
			Count(ctx)
		if err != nil {
			return fmt.Errorf("custos: approve request: %w", err)
		}
		if active >= int64(maxAssignees) {
			return fmt.Errorf("role %s: %w", a.RoleID, custos.ErrCapacityExceeded)
		}
	}

	am := assignmentToModel(a)
	if _, err := tx.NewInsert(am).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("principal %s, role %s: %w", a.PrincipalID, a.RoleID, custos.ErrDuplicateAssignment)
		}
		return fmt.Errorf("custos: approve request: %w", err)
	}
	rm := requestToModel(r)
	if _, err := tx.NewUpdate(rm).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("custos: approve request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("custos: commit tx: %w", err)
	}
	return nil
}

func (s *Store) ListRequests(ctx context.Context, filter *request.ListFilter) ([]*request.Request, error) {
	var models []requestModel
	q := s.pgdb.NewSelect(&models).OrderExpr("requested_at DESC")
	if filter != nil {
		if filter.RequestedBy != "" {
			q = q.Where("requested_by = ?", filter.RequestedBy)
		}
		if filter.RequestedFor != "" {
			q = q.Where("requested_for = ?", filter.RequestedFor)
		}
		if filter.RoleID != nil {
			q = q.Where("role_id = ?", filter.RoleID.String())
		}
		if filter.Status != "" {
			q = q.Where("status = ?", string(filter.Status))
		}
		if filter.Priority != "" {
			q = q.Where("priority = ?", string(filter.Priority))
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("custos: list requests: %w", err)
	}
	result := make([]*request.Request, len(models))
	for i := range models {
		r, err := requestFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("custos: list requests: %w", err)
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) CountRequests(ctx context.Context, filter *request.ListFilter) (int64, error) {
	q := s.pgdb.NewSelect((*requestModel)(nil))
	if filter != nil {
		if filter.RequestedBy != "" {
			q = q.Where("requested_by = ?", filter.RequestedBy)
		}
		if filter.RequestedFor != "" {
			q = q.Where("requested_for = ?", filter.RequestedFor)
		}
		if filter.RoleID != nil {
			q = q.Where("role_id = ?", filter.RoleID.String())
		}
		if filter.Status != "" {
			q = q.Where("status = ?", string(filter.Status))
		}
		if filter.Priority != "" {
			q = q.Where("priority = ?", string(filter.Priority))
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("custos: count requests: %w", err)
	}
	return count, nil
}

func (s *Store) MarkExpiredRequests(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.pgdb.NewUpdate((*requestModel)(nil)).
		Set("status = ?", string(request.StatusExpired)).
		Where("status = ?", string(request.StatusPending)).
		Where("expires_at IS NOT NULL").
		Where("expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("custos: mark expired requests: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("custos: mark expired requests rows: %w", err)
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Access log operations
// ──────────────────────────────────────────────────

func (s *Store) AppendLogEntry(ctx context.Context, e *accesslog.Entry) error {
	m := logEntryToModel(e)
	if _, err := s.pgdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("custos: append log entry: %w", err)
	}
	return nil
}

func (s *Store) ListLogEntries(ctx context.Context, filter *accesslog.QueryFilter) ([]*accesslog.Entry, error) {
	var models []logEntryModel
	q := s.pgdb.NewSelect(&models).OrderExpr("created_at DESC")
	if filter != nil {
		if filter.PrincipalID != "" {
			q = q.Where("principal_id = ?", filter.PrincipalID)
		}
		if filter.Action != "" {
			q = q.Where("action = ?", filter.Action)
		}
		if filter.Result != "" {
			q = q.Where("result = ?", string(filter.Result))
		}
		if filter.SourceIP != "" {
			q = q.Where("source_ip = ?", filter.SourceIP)
		}
		if filter.After != nil {
			q = q.Where("created_at >= ?", *filter.After)
		}
		if filter.Before != nil {
			q = q.Where("created_at < ?", *filter.Before)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("custos: list log entries: %w", err)
	}
	result := make([]*accesslog.Entry, len(models))
	for i := range models {
		result[i] = logEntryFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountLogEntries(ctx context.Context, filter *accesslog.QueryFilter) (int64, error) {
	q := s.pgdb.NewSelect((*logEntryModel)(nil))
	if filter != nil {
		if filter.PrincipalID != "" {
			q = q.Where("principal_id = ?", filter.PrincipalID)
		}
		if filter.Action != "" {
			q = q.Where("action = ?", filter.Action)
		}
		if filter.Result != "" {
			q = q.Where("result = ?", string(filter.Result))
		}
		if filter.SourceIP != "" {
			q = q.Where("source_ip = ?", filter.SourceIP)
		}
		if filter.After != nil {
			q = q.Where("created_at >= ?", *filter.After)
		}
		if filter.Before != nil {
			q = q.Where("created_at < ?", *filter.Before)
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("custos: count log entries: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Alert operations
// ──────────────────────────────────────────────────

func (s *Store) CreateAlert(ctx context.Context, a *alert.Alert) error {
	m := alertToModel(a)
	if _, err := s.pgdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("custos: create alert: %w", err)
	}
	return nil
}

func (s *Store) GetAlert(ctx context.Context, alertID id.AlertID) (*alert.Alert, error) {
	m := new(alertModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", alertID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("alert %s: %w", alertID, custos.ErrNotFound)
		}
		return nil, fmt.Errorf("custos: get alert: %w", err)
	}
	return alertFromModel(m), nil
}

func (s *Store) UpdateAlert(ctx context.Context, a *alert.Alert) error {
	m := alertToModel(a)
	if _, err := s.pgdb.NewUpdate(m).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("custos: update alert: %w", err)
	}
	return nil
}

func (s *Store) ListAlerts(ctx context.Context, filter *alert.ListFilter) ([]*alert.Alert, error) {
	var models []alertModel
	q := s.pgdb.NewSelect(&models).OrderExpr("detected_at DESC")
	if filter != nil {
		if filter.Status != "" {
			q = q.Where("status = ?", string(filter.Status))
		}
		if filter.Severity != "" {
			q = q.Where("severity = ?", string(filter.Severity))
		}
		if filter.PrincipalID != "" {
			q = q.Where("principal_id = ?", filter.PrincipalID)
		}
		if filter.ThreatType != "" {
			q = q.Where("threat_type = ?", filter.ThreatType)
		}
		if filter.After != nil {
			q = q.Where("detected_at >= ?", *filter.After)
		}
		if filter.Before != nil {
			q = q.Where("detected_at < ?", *filter.Before)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("custos: list alerts: %w", err)
	}
	result := make([]*alert.Alert, len(models))
	for i := range models {
		result[i] = alertFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountAlerts(ctx context.Context, filter *alert.ListFilter) (int64, error) {
	q := s.pgdb.NewSelect((*alertModel)(nil))
	if filter != nil {
		if filter.Status != "" {
			q = q.Where("status = ?", string(filter.Status))
		}
		if filter.Severity != "" {
			q = q.Where("severity = ?", string(filter.Severity))
		}
		if filter.PrincipalID != "" {
			q = q.Where("principal_id = ?", filter.PrincipalID)
		}
		if filter.ThreatType != "" {
			q = q.Where("threat_type = ?", filter.ThreatType)
		}
		if filter.After != nil {
			q = q.Where("detected_at >= ?", *filter.After)
		}
		if filter.Before != nil {
			q = q.Where("detected_at < ?", *filter.Before)
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("custos: count alerts: %w", err)
	}
	return count, nil
}
