package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Custos store (PostgreSQL).
var Migrations = migrate.NewGroup("custos")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_permissions",
			Version: "20250115000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS custos_permissions (
    id                TEXT PRIMARY KEY,
    name              TEXT NOT NULL,
    code              TEXT NOT NULL,
    description       TEXT NOT NULL DEFAULT '',
    category          TEXT NOT NULL DEFAULT '',
    risk_level        TEXT NOT NULL DEFAULT 'LOW',
    requires_approval BOOLEAN NOT NULL DEFAULT FALSE,
    auto_expire       BOOLEAN NOT NULL DEFAULT FALSE,
    expire_days       INTEGER NOT NULL DEFAULT 0,
    is_active         BOOLEAN NOT NULL DEFAULT TRUE,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),

    UNIQUE(code)
);

CREATE INDEX IF NOT EXISTS idx_custos_perms_category ON custos_permissions (category);
CREATE INDEX IF NOT EXISTS idx_custos_perms_risk ON custos_permissions (risk_level);
CREATE INDEX IF NOT EXISTS idx_custos_perms_active ON custos_permissions (is_active);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS custos_permissions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_roles",
			Version: "20250115000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS custos_roles (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    name_en         TEXT NOT NULL DEFAULT '',
    description     TEXT NOT NULL DEFAULT '',
    level           TEXT NOT NULL,
    hierarchy_level INTEGER NOT NULL DEFAULT 0,
    max_assignees   INTEGER NOT NULL DEFAULT 0,
    is_default      BOOLEAN NOT NULL DEFAULT FALSE,
    is_system_role  BOOLEAN NOT NULL DEFAULT FALSE,
    restrictions    JSONB NOT NULL DEFAULT '{}',
    settings        JSONB NOT NULL DEFAULT '{}',
    is_active       BOOLEAN NOT NULL DEFAULT TRUE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),

    UNIQUE(name)
);

CREATE INDEX IF NOT EXISTS idx_custos_roles_level ON custos_roles (level);
CREATE INDEX IF NOT EXISTS idx_custos_roles_active ON custos_roles (is_active);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS custos_roles`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_grants",
			Version: "20250115000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS custos_grants (
    id            TEXT PRIMARY KEY,
    role_id       TEXT NOT NULL REFERENCES custos_roles(id),
    permission_id TEXT NOT NULL REFERENCES custos_permissions(id),
    can_delegate  BOOLEAN NOT NULL DEFAULT FALSE,
    is_temporary  BOOLEAN NOT NULL DEFAULT FALSE,
    expires_at    TIMESTAMPTZ,
    conditions    JSONB NOT NULL DEFAULT '{}',
    restrictions  JSONB NOT NULL DEFAULT '{}',
    granted_by    TEXT NOT NULL DEFAULT '',
    is_active     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_custos_grants_role ON custos_grants (role_id, is_active);
CREATE INDEX IF NOT EXISTS idx_custos_grants_perm ON custos_grants (permission_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_custos_grants_unique_active
    ON custos_grants (role_id, permission_id) WHERE is_active;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS custos_grants`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_assignments",
			Version: "20250115000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS custos_assignments (
    id            TEXT PRIMARY KEY,
    principal_id  TEXT NOT NULL,
    role_id       TEXT NOT NULL REFERENCES custos_roles(id),
    scope         TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL DEFAULT 'ACTIVE',
    granted_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    expires_at    TIMESTAMPTZ,
    last_used     TIMESTAMPTZ,
    is_primary    BOOLEAN NOT NULL DEFAULT FALSE,
    granted_by    TEXT NOT NULL DEFAULT '',
    approved_by   TEXT NOT NULL DEFAULT '',
    approval_date TIMESTAMPTZ,
    reason        TEXT NOT NULL DEFAULT '',
    notes         TEXT NOT NULL DEFAULT '',
    revoked_by    TEXT NOT NULL DEFAULT '',
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_custos_assign_principal ON custos_assignments (principal_id, status);
CREATE INDEX IF NOT EXISTS idx_custos_assign_role ON custos_assignments (role_id, status);
CREATE INDEX IF NOT EXISTS idx_custos_assign_expires ON custos_assignments (expires_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_custos_assign_unique_live
    ON custos_assignments (principal_id, role_id, scope)
    WHERE status IN ('ACTIVE', 'SUSPENDED');
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS custos_assignments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_requests",
			Version: "20250115000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS custos_requests (
    id                TEXT PRIMARY KEY,
    requested_by      TEXT NOT NULL,
    requested_for     TEXT NOT NULL,
    role_id           TEXT NOT NULL REFERENCES custos_roles(id),
    extra_permissions JSONB NOT NULL DEFAULT '[]',
    scope             TEXT NOT NULL DEFAULT '',
    reason            TEXT NOT NULL DEFAULT '',
    justification     TEXT NOT NULL DEFAULT '',
    duration_days     INTEGER NOT NULL DEFAULT 0,
    priority          TEXT NOT NULL DEFAULT 'NORMAL',
    status            TEXT NOT NULL DEFAULT 'PENDING',
    reviewed_by       TEXT NOT NULL DEFAULT '',
    reviewed_at       TIMESTAMPTZ,
    review_notes      TEXT NOT NULL DEFAULT '',
    requested_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    expires_at        TIMESTAMPTZ,
    assignment_id     TEXT,
    metadata          JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_custos_reqs_status ON custos_requests (status);
CREATE INDEX IF NOT EXISTS idx_custos_reqs_for ON custos_requests (requested_for);
CREATE INDEX IF NOT EXISTS idx_custos_reqs_role ON custos_requests (role_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS custos_requests`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_access_logs",
			Version: "20250115000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS custos_access_logs (
    id              TEXT PRIMARY KEY,
    principal_id    TEXT NOT NULL,
    role_used       TEXT NOT NULL DEFAULT '',
    permission_used TEXT NOT NULL DEFAULT '',
    action          TEXT NOT NULL,
    resource        TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    target_id       TEXT NOT NULL DEFAULT '',
    result          TEXT NOT NULL,
    error_message   TEXT NOT NULL DEFAULT '',
    source_ip       TEXT NOT NULL DEFAULT '',
    user_agent      TEXT NOT NULL DEFAULT '',
    metadata        JSONB NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_custos_alogs_principal ON custos_access_logs (principal_id);
CREATE INDEX IF NOT EXISTS idx_custos_alogs_result ON custos_access_logs (result);
CREATE INDEX IF NOT EXISTS idx_custos_alogs_created ON custos_access_logs (created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS custos_access_logs`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_alerts",
			Version: "20250115000007",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS custos_alerts (
    id                  TEXT PRIMARY KEY,
    title               TEXT NOT NULL,
    description         TEXT NOT NULL DEFAULT '',
    severity            TEXT NOT NULL DEFAULT 'INFO',
    status              TEXT NOT NULL DEFAULT 'NEW',
    principal_id        TEXT NOT NULL DEFAULT '',
    threat_type         TEXT NOT NULL DEFAULT '',
    source_ip           TEXT NOT NULL DEFAULT '',
    actions_taken       JSONB NOT NULL DEFAULT '[]',
    investigated_by     TEXT NOT NULL DEFAULT '',
    investigation_notes TEXT NOT NULL DEFAULT '',
    metadata            JSONB NOT NULL DEFAULT '{}',
    detected_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    resolved_at         TIMESTAMPTZ,
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_custos_alerts_status ON custos_alerts (status);
CREATE INDEX IF NOT EXISTS idx_custos_alerts_severity ON custos_alerts (severity);
CREATE INDEX IF NOT EXISTS idx_custos_alerts_principal ON custos_alerts (principal_id);
CREATE INDEX IF NOT EXISTS idx_custos_alerts_detected ON custos_alerts (detected_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS custos_alerts`)
				return err
			},
		},
	)
}
