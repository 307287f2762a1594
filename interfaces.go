package adminkit

import (
	"context"
	"database/sql"

	"github.com/fernandezvara/dbkit"
	"github.com/uptrace/bun"
)

// Database is the connection the Service runs on. *dbkit.DBKit satisfies it.
type Database interface {
	Bun() *bun.DB
}

var _ Database = (*dbkit.DBKit)(nil)

// Authorizer decides whether the principal in ctx may run an operation.
type Authorizer interface {
	Authorize(ctx context.Context, operation string) error
}

// TransactionManager runs work inside a unit of work.
type TransactionManager interface {
	WithinUnitOfWork(ctx context.Context, level sql.IsolationLevel, fn UnitOfWorkFunc, opts ...UnitOfWorkOption) error
	Transaction(ctx context.Context, fn UnitOfWorkFunc) error
}

// RoleManager maintains role assignments and grants.
type RoleManager interface {
	AssignRole(ctx context.Context, userID, roleID string) (bool, error)
	RemoveRole(ctx context.Context, userID, roleID string) (bool, error)
	GrantPermission(ctx context.Context, roleID, code string) (bool, error)
	RevokePermission(ctx context.Context, roleID, code string) (bool, error)
}

// PermissionResolver computes what a user may do.
type PermissionResolver interface {
	EffectivePermissions(ctx context.Context, userID string) (PermissionSet, error)
	BuildPrincipal(ctx context.Context, userID string) (*Principal, error)
}

// MigrationManager defines the migration management interface.
type MigrationManager interface {
	Migrations() []dbkit.Migration
	RunMigrations(ctx context.Context) ([]string, error)
}

// HealthMonitor defines the health monitoring interface.
type HealthMonitor interface {
	Health(ctx context.Context) dbkit.HealthStatus
	IsHealthy(ctx context.Context) bool
	Ping(ctx context.Context) error
	GetPoolStats() dbkit.PoolStats
}

// PoolManager defines the connection pool management interface.
type PoolManager interface {
	ConfigureConnectionPool(config PoolConfig) error
	GetConnectionPoolConfig() PoolConfig
	ResetConnectionPool() error
}

// TransactionMonitor defines the transaction monitoring interface.
type TransactionMonitor interface {
	GetTransactionMetrics() TransactionMetrics
	ResetTransactionMetrics()
	IsTransactionHealthy() bool
}

var (
	_ Authorizer         = (*Service)(nil)
	_ TransactionManager = (*Service)(nil)
	_ RoleManager        = (*Service)(nil)
	_ PermissionResolver = (*Service)(nil)
	_ TransactionMonitor = (*Service)(nil)
	_ MigrationManager   = (*Service)(nil)
	_ HealthMonitor      = (*Service)(nil)
	_ PoolManager        = (*Service)(nil)
)
