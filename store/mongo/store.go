package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

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

// Collection name constants.
const (
	colPermissions = "custos_permissions"
	colRoles       = "custos_roles"
	colGrants      = "custos_grants"
	colAssignments = "custos_assignments"
	colRequests    = "custos_requests"
	colAccessLogs  = "custos_access_logs"
	colAlerts      = "custos_alerts"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of the composite Custos store.
//
// Seat-taking operations (capacity check + insert) run in a
// multi-document transaction that updates the role document first, so
// concurrent takers of the last seat write-conflict and one retries
// against the committed count. Requires a replica set; transactions are
// unavailable on a standalone mongod.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Migrate creates indexes for all custos collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()
	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("custos/mongo: migrate %s indexes: %w", col, err)
		}
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

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// liveStatuses are the assignment states that hold a (principal, role,
// scope) slot for duplicate detection.
func liveStatuses() bson.A {
	return bson.A{string(assignment.StatusActive), string(assignment.StatusSuspended)}
}

// migrationIndexes returns the index definitions for all custos collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colPermissions: {
			{
				Keys:    bson.D{{Key: "code", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "category", Value: 1}}},
			{Keys: bson.D{{Key: "risk_level", Value: 1}}},
			{Keys: bson.D{{Key: "is_active", Value: 1}}},
		},
		colRoles: {
			{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "level", Value: 1}}},
			{Keys: bson.D{{Key: "is_active", Value: 1}}},
		},
		colGrants: {
			{
				Keys: bson.D{{Key: "role_id", Value: 1}, {Key: "permission_id", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"is_active": true}),
			},
			{Keys: bson.D{{Key: "role_id", Value: 1}, {Key: "is_active", Value: 1}}},
			{Keys: bson.D{{Key: "permission_id", Value: 1}}},
		},
		colAssignments: {
			{
				Keys: bson.D{
					{Key: "principal_id", Value: 1},
					{Key: "role_id", Value: 1},
					{Key: "scope", Value: 1},
				},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": bson.M{"$in": liveStatuses()}}),
			},
			{Keys: bson.D{{Key: "principal_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "role_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}},
		},
		colRequests: {
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "requested_for", Value: 1}}},
			{Keys: bson.D{{Key: "role_id", Value: 1}}},
		},
		colAccessLogs: {
			{Keys: bson.D{{Key: "principal_id", Value: 1}}},
			{Keys: bson.D{{Key: "result", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		colAlerts: {
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "severity", Value: 1}}},
			{Keys: bson.D{{Key: "principal_id", Value: 1}}},
			{Keys: bson.D{{Key: "detected_at", Value: -1}}},
		},
	}
}

// ──────────────────────────────────────────────────
// Permission operations
// ──────────────────────────────────────────────────

func (s *Store) CreatePermission(ctx context.Context, p *permission.Permission) error {
	count, err := s.mdb.NewFind((*permissionModel)(nil)).
		Filter(bson.M{"code": p.Code}).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("custos: create permission: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("code %q: %w", p.Code, custos.ErrDuplicateCode)
	}
	m := permissionToModel(p)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("code %q: %w", p.Code, custos.ErrDuplicateCode)
		}
		return fmt.Errorf("custos: create permission: %w", err)
	}
	return nil
}

func (s *Store) GetPermission(ctx context.Context, permID id.PermissionID) (*permission.Permission, error) {
	var m permissionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": permID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("permission %s: %w", permID, custos.ErrNotFound)
		}
		return nil, fmt.Errorf("custos: get permission: %w", err)
	}
	return permissionFromModel(&m), nil
}

func (s *Store) GetPermissionByCode(ctx context.Context, code string) (*permission.Permission, error) {
	var m permissionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"code": code}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("permission code %q: %w", code, custos.ErrNotFound)
		}
		return nil, fmt.Errorf("custos: get permission by code: %w", err)
	}
	return permissionFromModel(&m), nil
}

func (s *Store) UpdatePermission(ctx context.Context, p *permission.Permission) error {
	m := permissionToModel(p)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("custos: update permission: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("permission %s: %w", p.ID, custos.ErrNotFound)
	}
	return nil
}

func permissionFilterDoc(filter *permission.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.Category != "" {
		f["category"] = filter.Category
	}
	if filter.RiskLevel != "" {
		f["risk_level"] = string(filter.RiskLevel)
	}
	if filter.RequiresApproval != nil {
		f["requires_approval"] = *filter.RequiresApproval
	}
	if filter.IsActive != nil {
		f["is_active"] = *filter.IsActive
	}
	if filter.Search != "" {
		f["$or"] = bson.A{
			bson.M{"name": bson.M{"$regex": filter.Search, "$options": "i"}},
			bson.M{"code": bson.M{"$regex": filter.Search, "$options": "i"}},
		}
	}
	return f
}

func (s *Store) ListPermissions(ctx context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	var models []permissionModel
	q := s.mdb.NewFind(&models).
		Filter(permissionFilterDoc(filter)).
		Sort(bson.D{{Key: "code", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	count, err := s.mdb.NewFind((*permissionModel)(nil)).
		Filter(permissionFilterDoc(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("custos: count permissions: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Role operations
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(ctx context.Context, r *role.Role) error {
	count, err := s.mdb.NewFind((*roleModel)(nil)).
		Filter(bson.M{"name": r.Name}).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("custos: create role: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("name %q: %w", r.Name, custos.ErrDuplicateName)
	}
	m := roleToModel(r)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("name %q: %w", r.Name, custos.ErrDuplicateName)
		}
		return fmt.Errorf("custos: create role: %w", err)
	}
	return nil
}

func (s *Store) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	var m roleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": roleID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("role %s: %w", roleID, custos.ErrNotFound)
		}
		return nil, fmt.Errorf("custos: get role: %w", err)
	}
	return roleFromModel(&m), nil
}

func (s *Store) GetRoleByName(ctx context.Context, name string) (*role.Role, error) {
	var m roleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"name": name}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("role %q: %w", name, custos.ErrNotFound)
		}
		return nil, fmt.Errorf("custos: get role by name: %w", err)
	}
	return roleFromModel(&m), nil
}

func (s *Store) UpdateRole(ctx context.Context, r *role.Role) error {
	m := roleToModel(r)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("custos: update role: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("role %s: %w", r.ID, custos.ErrNotFound)
	}
	return nil
}

func roleFilterDoc(filter *role.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.Level != "" {
		f["level"] = string(filter.Level)
	}
	if filter.IsActive != nil {
		f["is_active"] = *filter.IsActive
	}
	if filter.IsDefault != nil {
		f["is_default"] = *filter.IsDefault
	}
	if filter.IsSystem != nil {
		f["is_system_role"] = *filter.IsSystem
	}
	if filter.Search != "" {
		f["name"] = bson.M{"$regex": filter.Search, "$options": "i"}
	}
	return f
}

func (s *Store) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	var models []roleModel
	q := s.mdb.NewFind(&models).
		Filter(roleFilterDoc(filter)).
		Sort(bson.D{{Key: "name", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	count, err := s.mdb.NewFind((*roleModel)(nil)).
		Filter(roleFilterDoc(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("custos: count roles: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Grant operations
// ──────────────────────────────────────────────────

func (s *Store) CreateGrant(ctx context.Context, g *grant.Grant) error {
	count, err := s.mdb.NewFind((*grantModel)(nil)).
		Filter(bson.M{
			"role_id":       g.RoleID.String(),
			"permission_id": g.PermissionID.String(),
			"is_active":     true,
		}).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("custos: create grant: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("role %s permission %s: %w", g.RoleID, g.PermissionID, custos.ErrDuplicateGrant)
	}
	m := grantToModel(g)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("role %s permission %s: %w", g.RoleID, g.PermissionID, custos.ErrDuplicateGrant)
		}
		return fmt.Errorf("custos: create grant: %w", err)
	}
	return nil
}

func (s *Store) GetGrant(ctx context.Context, grantID id.GrantID) (*grant.Grant, error) {
	var m grantModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": grantID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("grant %s: %w", grantID, custos.ErrNotFound)
		}
		return nil, fmt.Errorf("custos: get grant: %w", err)
	}
	return grantFromModel(&m), nil
}

func (s *Store) UpdateGrant(ctx context.Context, g *grant.Grant) error {
	m := grantToModel(g)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("custos: update grant: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("grant %s: %w", g.ID, custos.ErrNotFound)
	}
	return nil
}

func grantFilterDoc(filter *grant.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.RoleID != nil {
		f["role_id"] = filter.RoleID.String()
	}
	if filter.PermissionID != nil {
		f["permission_id"] = filter.PermissionID.String()
	}
	if filter.IsActive != nil {
		f["is_active"] = *filter.IsActive
	}
	return f
}

func (s *Store) ListGrants(ctx context.Context, filter *grant.ListFilter) ([]*grant.Grant, error) {
	var models []grantModel
	q := s.mdb.NewFind(&models).
		Filter(grantFilterDoc(filter)).
		Sort(bson.D{{Key: "created_at", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	count, err := s.mdb.NewFind((*grantModel)(nil)).
		Filter(grantFilterDoc(filter)).
		Count(ctx)
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
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"role_id":   bson.M{"$in": ids},
			"is_active": true,
		}).
		Scan(ctx); err != nil {
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

// runSeatTx executes fn inside a multi-document transaction after
// touching the role document. The touch makes every seat taker for the
// role write the same document, so concurrent transactions conflict
// and the driver retries the loser against the committed state. Uses
// raw collection operations throughout so each runs on the session
// carried by ctx.
func (s *Store) runSeatTx(ctx context.Context, roleID string, now time.Time, fn func(ctx context.Context) error) error {
	client := s.mdb.Collection(colRoles).Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("custos: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		res, err := s.mdb.Collection(colRoles).UpdateOne(ctx,
			bson.M{"_id": roleID},
			bson.M{"$set": bson.M{"updated_at": now.UTC()}},
		)
		if err != nil {
			return nil, fmt.Errorf("custos: touch role: %w", err)
		}
		if res.MatchedCount == 0 {
			return nil, fmt.Errorf("role %s: %w", roleID, custos.ErrNotFound)
		}
		return nil, fn(ctx)
	})
	return err
}

// retireLapsed transitions the role's live rows whose expiry has passed
// to EXPIRED, excluding exceptID when non-empty. Runs on the session
// carried by ctx.
func (s *Store) retireLapsed(ctx context.Context, roleID, exceptID string, now time.Time) error {
	filter := bson.M{
		"role_id":    roleID,
		"status":     bson.M{"$in": liveStatuses()},
		"expires_at": bson.M{"$ne": nil, "$lte": now},
	}
	if exceptID != "" {
		filter["_id"] = bson.M{"$ne": exceptID}
	}
	_, err := s.mdb.Collection(colAssignments).UpdateMany(ctx, filter,
		bson.M{"$set": bson.M{"status": string(assignment.StatusExpired), "updated_at": now.UTC()}},
	)
	if err != nil {
		return fmt.Errorf("custos: retire lapsed assignments: %w", err)
	}
	return nil
}

// checkSeat runs the duplicate and capacity counts for a (principal,
// role, scope) slot after retiring the role's lapsed rows, so only
// effective holders block the seat. maxAssignees 0 means unlimited.
func (s *Store) checkSeat(ctx context.Context, principalID, roleID, scopeStr string, maxAssignees int, now time.Time) error {
	if err := s.retireLapsed(ctx, roleID, "", now); err != nil {
		return err
	}
	dup, err := s.mdb.Collection(colAssignments).CountDocuments(ctx, bson.M{
		"principal_id": principalID,
		"role_id":      roleID,
		"scope":        scopeStr,
		"status":       bson.M{"$in": liveStatuses()},
	})
	if err != nil {
		return fmt.Errorf("custos: check duplicate assignment: %w", err)
	}
	if dup > 0 {
		return fmt.Errorf("principal %s role %s: %w", principalID, roleID, custos.ErrDuplicateAssignment)
	}
	if maxAssignees > 0 {
		active, err := s.mdb.Collection(colAssignments).CountDocuments(ctx, bson.M{
			"role_id": roleID,
			"status":  string(assignment.StatusActive),
		})
		if err != nil {
			return fmt.Errorf("custos: check role capacity: %w", err)
		}
		if active >= int64(maxAssignees) {
			return fmt.Errorf("role %s at %d assignees: %w", roleID, maxAssignees, custos.ErrCapacityExceeded)
		}
	}
	return nil
}

func (s *Store) CreateAssignment(ctx context.Context, a *assignment.Assignment, maxAssignees int, now time.Time) error {
	m := assignmentToModel(a)
	return s.runSeatTx(ctx, a.RoleID.String(), now, func(ctx context.Context) error {
		if err := s.checkSeat(ctx, a.PrincipalID, a.RoleID.String(), a.Scope.String(), maxAssignees, now); err != nil {
			return err
		}
		if _, err := s.mdb.Collection(colAssignments).InsertOne(ctx, m); err != nil {
			if mongod.IsDuplicateKeyError(err) {
				return fmt.Errorf("principal %s role %s: %w", a.PrincipalID, a.RoleID, custos.ErrDuplicateAssignment)
			}
			return fmt.Errorf("custos: create assignment: %w", err)
		}
		return nil
	})
}

func (s *Store) GetAssignment(ctx context.Context, asgnID id.AssignmentID) (*assignment.Assignment, error) {
	var m assignmentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": asgnID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("assignment %s: %w", asgnID, custos.ErrNotFound)
		}
		return nil, fmt.Errorf("custos: get assignment: %w", err)
	}
	return assignmentFromModel(&m)
}

func (s *Store) UpdateAssignment(ctx context.Context, a *assignment.Assignment) error {
	m := assignmentToModel(a)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("custos: update assignment: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("assignment %s: %w", a.ID, custos.ErrNotFound)
	}
	return nil
}

func (s *Store) ActivateAssignment(ctx context.Context, asgnID id.AssignmentID, maxAssignees int, now time.Time) (*assignment.Assignment, error) {
	var m assignmentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": asgnID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("assignment %s: %w", asgnID, custos.ErrNotFound)
		}
		return nil, fmt.Errorf("custos: activate assignment: %w", err)
	}
	if m.ExpiresAt != nil && !now.Before(*m.ExpiresAt) {
		return nil, fmt.Errorf("assignment %s has expired: %w", asgnID, custos.ErrInvalidState)
	}

	err = s.runSeatTx(ctx, m.RoleID, now, func(ctx context.Context) error {
		if err := s.retireLapsed(ctx, m.RoleID, m.ID, now); err != nil {
			return err
		}
		if maxAssignees > 0 {
			active, err := s.mdb.Collection(colAssignments).CountDocuments(ctx, bson.M{
				"role_id": m.RoleID,
				"status":  string(assignment.StatusActive),
			})
			if err != nil {
				return fmt.Errorf("custos: activate assignment: %w", err)
			}
			if active >= int64(maxAssignees) {
				return fmt.Errorf("role %s at %d assignees: %w", m.RoleID, maxAssignees, custos.ErrCapacityExceeded)
			}
		}
		res, err := s.mdb.Collection(colAssignments).UpdateOne(ctx,
			bson.M{"_id": m.ID},
			bson.M{"$set": bson.M{"status": string(assignment.StatusActive), "updated_at": now.UTC()}},
		)
		if err != nil {
			return fmt.Errorf("custos: activate assignment: %w", err)
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("assignment %s: %w", asgnID, custos.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.Status = string(assignment.StatusActive)
	m.UpdatedAt = now.UTC()
	return assignmentFromModel(&m)
}

func (s *Store) TouchAssignment(ctx context.Context, asgnID id.AssignmentID, usedAt time.Time) error {
	_, err := s.mdb.Collection(colAssignments).UpdateOne(ctx,
		bson.M{"_id": asgnID.String()},
		bson.M{"$set": bson.M{"last_used": usedAt}},
	)
	if err != nil {
		return fmt.Errorf("custos: touch assignment: %w", err)
	}
	return nil
}

func assignmentFilterDoc(filter *assignment.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.PrincipalID != "" {
		f["principal_id"] = filter.PrincipalID
	}
	if filter.RoleID != nil {
		f["role_id"] = filter.RoleID.String()
	}
	if filter.Scope != nil {
		f["scope"] = filter.Scope.String()
	}
	if filter.Status != "" {
		f["status"] = string(filter.Status)
	}
	if filter.EffectiveAt != nil {
		f["status"] = string(assignment.StatusActive)
		f["$or"] = bson.A{
			bson.M{"expires_at": nil},
			bson.M{"expires_at": bson.M{"$gt": *filter.EffectiveAt}},
		}
	}
	return f
}

func (s *Store) ListAssignments(ctx context.Context, filter *assignment.ListFilter) ([]*assignment.Assignment, error) {
	var models []assignmentModel
	q := s.mdb.NewFind(&models).
		Filter(assignmentFilterDoc(filter)).
		Sort(bson.D{{Key: "granted_at", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("custos: list assignments: %w", err)
	}
	result := make([]*assignment.Assignment, 0, len(models))
	for i := range models {
		a, err := assignmentFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("custos: list assignments: %w", err)
		}
		result = append(result, a)
	}
	return result, nil
}

func (s *Store) CountAssignments(ctx context.Context, filter *assignment.ListFilter) (int64, error) {
	count, err := s.mdb.NewFind((*assignmentModel)(nil)).
		Filter(assignmentFilterDoc(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("custos: count assignments: %w", err)
	}
	return count, nil
}

func (s *Store) CountActiveForRole(ctx context.Context, roleID id.RoleID) (int64, error) {
	count, err := s.mdb.NewFind((*assignmentModel)(nil)).
		Filter(bson.M{
			"role_id": roleID.String(),
			"status":  string(assignment.StatusActive),
		}).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("custos: count active for role: %w", err)
	}
	return count, nil
}

func (s *Store) MarkExpiredAssignments(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.mdb.Collection(colAssignments).UpdateMany(ctx,
		bson.M{
			"status":     string(assignment.StatusActive),
			"expires_at": bson.M{"$ne": nil, "$lte": now},
		},
		bson.M{"$set": bson.M{
			"status":     string(assignment.StatusExpired),
			"updated_at": now.UTC(),
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("custos: mark expired assignments: %w", err)
	}
	return res.ModifiedCount, nil
}

// ──────────────────────────────────────────────────
// Request operations
// ──────────────────────────────────────────────────

func (s *Store) CreateRequest(ctx context.Context, r *request.Request) error {
	m := requestToModel(r)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("custos: create request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, reqID id.RequestID) (*request.Request, error) {
	var m requestModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": reqID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("request %s: %w", reqID, custos.ErrNotFound)
		}
		return nil, fmt.Errorf("custos: get request: %w", err)
	}
	return requestFromModel(&m)
}

func (s *Store) UpdateRequest(ctx context.Context, r *request.Request) error {
	m := requestToModel(r)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("custos: update request: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("request %s: %w", r.ID, custos.ErrNotFound)
	}
	return nil
}

func (s *Store) ApproveRequest(ctx context.Context, r *request.Request, a *assignment.Assignment, maxAssignees int, now time.Time) error {
	am := assignmentToModel(a)
	rm := requestToModel(r)
	return s.runSeatTx(ctx, a.RoleID.String(), now, func(ctx context.Context) error {
		count, err := s.mdb.Collection(colRequests).CountDocuments(ctx, bson.M{"_id": rm.ID})
		if err != nil {
			return fmt.Errorf("custos: approve request: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("request %s: %w", r.ID, custos.ErrNotFound)
		}
		if err := s.checkSeat(ctx, a.PrincipalID, a.RoleID.String(), a.Scope.String(), maxAssignees, now); err != nil {
			return err
		}
		if _, err := s.mdb.Collection(colAssignments).InsertOne(ctx, am); err != nil {
			if mongod.IsDuplicateKeyError(err) {
				return fmt.Errorf("principal %s role %s: %w", a.PrincipalID, a.RoleID, custos.ErrDuplicateAssignment)
			}
			return fmt.Errorf("custos: approve request: %w", err)
		}
		// Transactional: an aborted transaction leaves the request
		// PENDING with no assignment behind it.
		res, err := s.mdb.Collection(colRequests).ReplaceOne(ctx, bson.M{"_id": rm.ID}, rm)
		if err != nil {
			return fmt.Errorf("custos: approve request: %w", err)
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("request %s: %w", r.ID, custos.ErrNotFound)
		}
		return nil
	})
}

func requestFilterDoc(filter *request.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.RequestedBy != "" {
		f["requested_by"] = filter.RequestedBy
	}
	if filter.RequestedFor != "" {
		f["requested_for"] = filter.RequestedFor
	}
	if filter.RoleID != nil {
		f["role_id"] = filter.RoleID.String()
	}
	if filter.Status != "" {
		f["status"] = string(filter.Status)
	}
	if filter.Priority != "" {
		f["priority"] = string(filter.Priority)
	}
	return f
}

func (s *Store) ListRequests(ctx context.Context, filter *request.ListFilter) ([]*request.Request, error) {
	var models []requestModel
	q := s.mdb.NewFind(&models).
		Filter(requestFilterDoc(filter)).
		Sort(bson.D{{Key: "requested_at", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("custos: list requests: %w", err)
	}
	result := make([]*request.Request, 0, len(models))
	for i := range models {
		r, err := requestFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("custos: list requests: %w", err)
		}
		result = append(result, r)
	}
	return result, nil
}

func (s *Store) CountRequests(ctx context.Context, filter *request.ListFilter) (int64, error) {
	count, err := s.mdb.NewFind((*requestModel)(nil)).
		Filter(requestFilterDoc(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("custos: count requests: %w", err)
	}
	return count, nil
}

func (s *Store) MarkExpiredRequests(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.mdb.Collection(colRequests).UpdateMany(ctx,
		bson.M{
			"status":     string(request.StatusPending),
			"expires_at": bson.M{"$ne": nil, "$lte": now},
		},
		bson.M{"$set": bson.M{"status": string(request.StatusExpired)}},
	)
	if err != nil {
		return 0, fmt.Errorf("custos: mark expired requests: %w", err)
	}
	return res.ModifiedCount, nil
}

// ──────────────────────────────────────────────────
// Access log operations
// ──────────────────────────────────────────────────

func (s *Store) AppendLogEntry(ctx context.Context, e *accesslog.Entry) error {
	m := logEntryToModel(e)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("custos: append log entry: %w", err)
	}
	return nil
}

func logFilterDoc(filter *accesslog.QueryFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.PrincipalID != "" {
		f["principal_id"] = filter.PrincipalID
	}
	if filter.Action != "" {
		f["action"] = filter.Action
	}
	if filter.Result != "" {
		f["result"] = string(filter.Result)
	}
	if filter.SourceIP != "" {
		f["source_ip"] = filter.SourceIP
	}
	if filter.After != nil || filter.Before != nil {
		dateFilter := bson.M{}
		if filter.After != nil {
			dateFilter["$gte"] = *filter.After
		}
		if filter.Before != nil {
			dateFilter["$lte"] = *filter.Before
		}
		f["created_at"] = dateFilter
	}
	return f
}

func (s *Store) ListLogEntries(ctx context.Context, filter *accesslog.QueryFilter) ([]*accesslog.Entry, error) {
	var models []logEntryModel
	q := s.mdb.NewFind(&models).
		Filter(logFilterDoc(filter)).
		Sort(bson.D{{Key: "created_at", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	count, err := s.mdb.NewFind((*logEntryModel)(nil)).
		Filter(logFilterDoc(filter)).
		Count(ctx)
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
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("custos: create alert: %w", err)
	}
	return nil
}

func (s *Store) GetAlert(ctx context.Context, alertID id.AlertID) (*alert.Alert, error) {
	var m alertModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": alertID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("alert %s: %w", alertID, custos.ErrNotFound)
		}
		return nil, fmt.Errorf("custos: get alert: %w", err)
	}
	return alertFromModel(&m), nil
}

func (s *Store) UpdateAlert(ctx context.Context, a *alert.Alert) error {
	m := alertToModel(a)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("custos: update alert: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("alert %s: %w", a.ID, custos.ErrNotFound)
	}
	return nil
}

func alertFilterDoc(filter *alert.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.Status != "" {
		f["status"] = string(filter.Status)
	}
	if filter.Severity != "" {
		f["severity"] = string(filter.Severity)
	}
	if filter.PrincipalID != "" {
		f["principal_id"] = filter.PrincipalID
	}
	if filter.ThreatType != "" {
		f["threat_type"] = filter.ThreatType
	}
	if filter.After != nil || filter.Before != nil {
		dateFilter := bson.M{}
		if filter.After != nil {
			dateFilter["$gte"] = *filter.After
		}
		if filter.Before != nil {
			dateFilter["$lte"] = *filter.Before
		}
		f["detected_at"] = dateFilter
	}
	return f
}

func (s *Store) ListAlerts(ctx context.Context, filter *alert.ListFilter) ([]*alert.Alert, error) {
	var models []alertModel
	q := s.mdb.NewFind(&models).
		Filter(alertFilterDoc(filter)).
		Sort(bson.D{{Key: "detected_at", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	count, err := s.mdb.NewFind((*alertModel)(nil)).
		Filter(alertFilterDoc(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("custos: count alerts: %w", err)
	}
	return count, nil
}
