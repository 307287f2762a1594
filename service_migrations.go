package adminkit

import (
	"context"

	"github.com/fernandezvara/dbkit"
	"go.uber.org/zap"
)

// MigrationService provides migration management functionality as an extension to Service
type MigrationService struct {
	*Service
}

// NewMigrationService creates a new migration service extension
func NewMigrationService(service *Service) *MigrationService {
	return &MigrationService{Service: service}
}

// RunMigrations applies the pending AdminKit migrations and returns the ids
// of those applied. It requires the Service to run on a *dbkit.DBKit.
func (ms *MigrationService) RunMigrations(ctx context.Context) ([]string, error) {
	db, ok := ms.db.(*dbkit.DBKit)
	if !ok {
		return nil, NewError(ErrDatabaseError, "migrations require a dbkit.DBKit instance")
	}

	result, err := db.Migrate(ctx, ms.Migrations())
	if err != nil {
		return nil, NewError(ErrDatabaseError, "run migrations").WithOperation("Migrate").WithCause(err)
	}

	applied := make([]string, 0, len(result.Applied))
	for _, m := range result.Applied {
		applied = append(applied, m.ID)
		ms.logger.Info("migration applied", zap.String("id", m.ID))
	}
	return applied, nil
}

// Migrations returns all database migrations required for AdminKit.
// Uniqueness constraints are partial indexes over live rows so a soft-deleted
// row never blocks re-creating the same name.
// Id columns are TEXT, so any string is a valid id to look up.
func (ms *MigrationService) Migrations() []dbkit.Migration {
	return []dbkit.Migration{
		{
			ID:          "adminkit-001",
			Description: "Create users table",
			SQL: `
                CREATE TABLE IF NOT EXISTS users (
                    id TEXT PRIMARY KEY,
                    tenant_id TEXT NOT NULL DEFAULT '',
                    user_name TEXT NOT NULL,
                    display_name TEXT,
                    email TEXT,
                    department_id TEXT,
                    disabled BOOLEAN NOT NULL DEFAULT FALSE,
                    is_super_admin BOOLEAN NOT NULL DEFAULT FALSE,
                    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                );
                CREATE UNIQUE INDEX IF NOT EXISTS users_tenant_user_name_live
                    ON users (tenant_id, user_name) WHERE NOT is_deleted`,
		},
		{
			ID:          "adminkit-002",
			Description: "Create roles and permissions tables",
			SQL: `
                CREATE TABLE IF NOT EXISTS roles (
                    id TEXT PRIMARY KEY,
                    tenant_id TEXT NOT NULL DEFAULT '',
                    code TEXT NOT NULL,
                    name TEXT NOT NULL,
                    description TEXT,
                    disabled BOOLEAN NOT NULL DEFAULT FALSE,
                    sort_order INTEGER NOT NULL DEFAULT 0,
                    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                );
                CREATE UNIQUE INDEX IF NOT EXISTS roles_tenant_code_live
                    ON roles (tenant_id, code) WHERE NOT is_deleted;
                CREATE TABLE IF NOT EXISTS permissions (
                    id TEXT PRIMARY KEY,
                    code TEXT NOT NULL,
                    name TEXT,
                    description TEXT,
                    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                );
                CREATE UNIQUE INDEX IF NOT EXISTS permissions_code_live
                    ON permissions (code) WHERE NOT is_deleted`,
		},
		{
			ID:          "adminkit-003",
			Description: "Create user_roles and role_permissions tables",
			SQL: `
                CREATE TABLE IF NOT EXISTS user_roles (
                    id TEXT PRIMARY KEY,
                    tenant_id TEXT NOT NULL DEFAULT '',
                    user_id TEXT NOT NULL,
                    role_id TEXT NOT NULL,
                    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                );
                CREATE UNIQUE INDEX IF NOT EXISTS user_roles_live
                    ON user_roles (tenant_id, user_id, role_id) WHERE NOT is_deleted;
                CREATE TABLE IF NOT EXISTS role_permissions (
                    id TEXT PRIMARY KEY,
                    tenant_id TEXT NOT NULL DEFAULT '',
                    role_id TEXT NOT NULL,
                    permission_id TEXT NOT NULL,
                    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                );
                CREATE UNIQUE INDEX IF NOT EXISTS role_permissions_live
                    ON role_permissions (tenant_id, role_id, permission_id) WHERE NOT is_deleted`,
		},
		{
			ID:          "adminkit-004",
			Description: "Create departments, menus and dictionaries tables",
			SQL: `
                CREATE TABLE IF NOT EXISTS departments (
                    id TEXT PRIMARY KEY,
                    tenant_id TEXT NOT NULL DEFAULT '',
                    parent_id TEXT,
                    name TEXT NOT NULL,
                    leader TEXT,
                    sort_order INTEGER NOT NULL DEFAULT 0,
                    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                );
                CREATE TABLE IF NOT EXISTS menus (
                    id TEXT PRIMARY KEY,
                    parent_id TEXT,
                    title TEXT NOT NULL,
                    path TEXT,
                    icon TEXT,
                    permission_code TEXT,
                    sort_order INTEGER NOT NULL DEFAULT 0,
                    hidden BOOLEAN NOT NULL DEFAULT FALSE,
                    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                );
                CREATE TABLE IF NOT EXISTS dictionaries (
                    id TEXT PRIMARY KEY,
                    tenant_id TEXT NOT NULL DEFAULT '',
                    type TEXT NOT NULL,
                    key TEXT NOT NULL,
                    value TEXT NOT NULL,
                    sort_order INTEGER NOT NULL DEFAULT 0,
                    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                );
                CREATE UNIQUE INDEX IF NOT EXISTS dictionaries_tenant_type_key_live
                    ON dictionaries (tenant_id, type, key) WHERE NOT is_deleted`,
		},
		{
			ID:          "adminkit-005",
			Description: "Create role_audit_log table",
			SQL: `
                CREATE TABLE IF NOT EXISTS role_audit_log (
                    id TEXT PRIMARY KEY,
                    timestamp TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    tenant_id TEXT NOT NULL DEFAULT '',
                    actor_id TEXT NOT NULL,
                    action TEXT NOT NULL,
                    target_user_id TEXT NOT NULL,
                    role_id TEXT NOT NULL,
                    previous_roles TEXT[],
                    new_roles TEXT[],
                    ip_address TEXT,
                    user_agent TEXT,
                    request_id TEXT,
                    metadata JSONB
                );
                CREATE INDEX IF NOT EXISTS role_audit_log_tenant_target
                    ON role_audit_log (tenant_id, target_user_id, timestamp DESC)`,
		},
	}
}
