package adminkit

import (
	"context"
	"database/sql"
	"sync"

	"github.com/fernandezvara/dbkit"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Service is the entry point of AdminKit: it opens units of work bound to
// the caller's tenant, aggregates role permissions and runs operations
// behind their declared permission requirements.
//
// Error Handling:
// Database failures are returned as *Error wrapping ErrDatabaseError, with
// the dbkit error (operation name, table, constraint) as the cause.
//
//	_, err := service.AssignRole(ctx, userID, roleID)
//	if errors.Is(err, adminkit.ErrDatabaseError) {
//	    var dbErr *dbkit.Error
//	    if errors.As(err, &dbErr) {
//	        log.Printf("operation %s failed on %s", dbErr.Operation, dbErr.Table)
//	    }
//	}
type Service struct {
	db        Database
	bun       *bun.DB
	policies  *PolicyRegistry
	tenants   *TenantResolver
	cache     PermissionCache
	metrics   *Metrics
	logger    *zap.Logger
	txMonitor *transactionMonitor
	isolation sql.IsolationLevel

	poolMu     sync.Mutex
	poolConfig PoolConfig
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTenancy sets how tenants are resolved. Tenancy is disabled by default.
func WithTenancy(config TenancyConfig) Option {
	return func(s *Service) {
		s.tenants.SetConfig(config)
	}
}

// WithPolicies sets the per-operation permission requirements.
func WithPolicies(policies *PolicyRegistry) Option {
	return func(s *Service) {
		if policies != nil {
			s.policies = policies
		}
	}
}

// WithCache enables caching of effective permissions.
func WithCache(cache PermissionCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithMetrics records transactions and decisions in Prometheus collectors.
func WithMetrics(metrics *Metrics) Option {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// WithIsolationLevel sets the isolation level used by Execute and
// the Service's own write operations. Defaults to sql.LevelReadCommitted.
func WithIsolationLevel(level sql.IsolationLevel) Option {
	return func(s *Service) {
		s.isolation = level
	}
}

// NewService creates a new AdminKit service.
//
// Example:
//
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	policies := adminkit.NewPolicyRegistry()
//	policies.Operation("user.create").RequirePermission("system:user:add")
//
//	service := adminkit.NewService(db,
//	    adminkit.WithPolicies(policies),
//	    adminkit.WithTenancy(adminkit.TenancyConfig{Enabled: true}),
//	    adminkit.WithLogger(logger),
//	)
func NewService(db Database, opts ...Option) *Service {
	s := &Service{
		db:        db,
		bun:       db.Bun(),
		policies:  NewPolicyRegistry(),
		tenants:   NewTenantResolver(TenancyConfig{}),
		logger:    zap.NewNop(),
		txMonitor: newTransactionMonitor(),
		isolation: sql.LevelReadCommitted,

		poolConfig: DefaultPoolConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policies returns the policy registry.
func (s *Service) Policies() *PolicyRegistry {
	return s.policies
}

// Tenants returns the tenant resolver.
func (s *Service) Tenants() *TenantResolver {
	return s.tenants
}

// CurrentTenantID resolves the tenant of the operation carried by ctx.
func (s *Service) CurrentTenantID(ctx context.Context) string {
	return s.tenants.CurrentTenantID(ctx)
}

// Logger returns the service logger.
func (s *Service) Logger() *zap.Logger {
	return s.logger
}

// NewUnitOfWork opens a unit of work bound to the tenant resolved from ctx.
// The caller must Close it.
func (s *Service) NewUnitOfWork(ctx context.Context, opts ...UnitOfWorkOption) *UnitOfWork {
	uow := newUnitOfWork(ctx, s.bun, s.tenants, opts...)
	uow.logger = s.logger
	uow.observer = s.recordTransaction
	uow.onChange = s.entitiesChanged
	return uow
}

// ============================================================================
// OPERATIONS
// ============================================================================

// Migrations returns the AdminKit schema migrations.
func (s *Service) Migrations() []dbkit.Migration {
	return NewMigrationService(s).Migrations()
}

// RunMigrations applies pending schema migrations.
func (s *Service) RunMigrations(ctx context.Context) ([]string, error) {
	return NewMigrationService(s).RunMigrations(ctx)
}

func (s *Service) Health(ctx context.Context) dbkit.HealthStatus {
	return NewHealthService(s).Health(ctx)
}

func (s *Service) IsHealthy(ctx context.Context) bool {
	return NewHealthService(s).IsHealthy(ctx)
}

func (s *Service) Ping(ctx context.Context) error {
	return NewHealthService(s).Ping(ctx)
}

func (s *Service) GetPoolStats() dbkit.PoolStats {
	return NewHealthService(s).GetPoolStats()
}

// ConfigureConnectionPool applies pool settings to the underlying *sql.DB.
func (s *Service) ConfigureConnectionPool(config PoolConfig) error {
	return NewPoolService(s).ConfigureConnectionPool(config)
}

func (s *Service) GetConnectionPoolConfig() PoolConfig {
	return NewPoolService(s).GetConnectionPoolConfig()
}

func (s *Service) ResetConnectionPool() error {
	return NewPoolService(s).ResetConnectionPool()
}

// ============================================================================
// AUDIT LOG
// ============================================================================

// GetAuditLog retrieves role audit log entries of the current tenant,
// newest first.
func (s *Service) GetAuditLog(ctx context.Context, filter AuditLogFilter) ([]RoleAuditLog, error) {
	logs := make([]RoleAuditLog, 0)
	q := s.bun.NewSelect().Model(&logs)
	if s.tenants.Enabled() {
		q = q.Where("tenant_id = ?", s.CurrentTenantID(ctx))
	}
	if filter.ActorID != "" {
		q = q.Where("actor_id = ?", filter.ActorID)
	}
	if filter.TargetUserID != "" {
		q = q.Where("target_user_id = ?", filter.TargetUserID)
	}
	if filter.RoleID != "" {
		q = q.Where("role_id = ?", filter.RoleID)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if !filter.Since.IsZero() {
		q = q.Where("timestamp >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("timestamp <= ?", filter.Until)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	q = q.Limit(limit)
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	q = q.Order("timestamp DESC")
	if err := dbkit.WithErr1(q.Scan(ctx), "GetAuditLog").Err(); err != nil {
		return nil, NewError(ErrDatabaseError, "GetAuditLog").WithOperation("GetAuditLog").WithCause(err)
	}
	return logs, nil
}

func (s *Service) logAudit(ctx context.Context, idb bun.IDB, entry *AuditEntry) error {
	model := entry.ToModel()
	model.ID = newID()
	_, err := idb.NewInsert().Model(model).Exec(ctx)
	return dbkit.WithErr1(err, "LogAudit").Err()
}
