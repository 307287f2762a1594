package adminkit

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"slices"
	"time"

	"github.com/fernandezvara/dbkit"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

type uowState int

const (
	uowIdle uowState = iota
	uowActive
	uowCompleted
	uowDisposed
)

// Transaction outcomes reported to the transaction observer.
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
	OutcomeFailed     = "failed"
)

// UnitOfWork groups the repository calls of one business operation into a
// single database transaction bound to one tenant.
//
// Before BeginTransaction and after the transaction completes, repository
// reads run directly on the connection pool and writes fail with
// ErrNoTransaction or ErrTransactionCompleted, unless the unit of work was
// opened WithAutoCommit. A UnitOfWork is not safe for concurrent use.
//
// Example:
//
//	uow := service.NewUnitOfWork(ctx)
//	defer uow.Close()
//
//	if err := uow.BeginTransaction(ctx, sql.LevelReadCommitted); err != nil {
//	    return err
//	}
//	users, _ := adminkit.GetRepository[adminkit.User](uow)
//	if err := users.Add(ctx, &adminkit.User{UserName: "alice"}); err != nil {
//	    _ = uow.Rollback(ctx)
//	    return err
//	}
//	return uow.Commit(ctx)
type UnitOfWork struct {
	db       *bun.DB
	tx       *bun.Tx
	state    uowState
	resolver *TenantResolver

	tenantID      string
	tenancy       bool
	bypassTenant  bool
	rowLevelScope bool
	autoCommit    bool

	repositories map[reflect.Type]any

	logger   *zap.Logger
	observer func(duration time.Duration, outcome string)
	started  time.Time

	// written lists the entity types changed by the open transaction.
	written  []reflect.Type
	onChange func(ctx context.Context, u *UnitOfWork, changed []reflect.Type)
}

// UnitOfWorkOption configures a UnitOfWork.
type UnitOfWorkOption func(*UnitOfWork)

// WithTenantBypass disables the tenant filter of every repository.
// Soft-deleted rows stay hidden. Reserved for administrative operations.
func WithTenantBypass() UnitOfWorkOption {
	return func(u *UnitOfWork) {
		u.bypassTenant = true
	}
}

// WithRowLevelSecurity sets the Postgres setting app.current_tenant_id
// inside the transaction so row-level security policies can use it.
func WithRowLevelSecurity() UnitOfWorkOption {
	return func(u *UnitOfWork) {
		u.rowLevelScope = true
	}
}

// WithAutoCommit lets repositories write outside a transaction. Each write
// is then committed on its own.
func WithAutoCommit() UnitOfWorkOption {
	return func(u *UnitOfWork) {
		u.autoCommit = true
	}
}

func newUnitOfWork(ctx context.Context, db *bun.DB, resolver *TenantResolver, opts ...UnitOfWorkOption) *UnitOfWork {
	config := resolver.Config()
	u := &UnitOfWork{
		db:            db,
		resolver:      resolver,
		tenantID:      resolver.CurrentTenantID(ctx),
		tenancy:       config.Enabled,
		rowLevelScope: config.RowLevelSecurity,
		repositories:  make(map[reflect.Type]any),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// TenantID returns the tenant the unit of work was opened with.
func (u *UnitOfWork) TenantID() string {
	return u.tenantID
}

// IsActive reports whether a transaction is open.
func (u *UnitOfWork) IsActive() bool {
	return u.state == uowActive
}

// BeginTransaction opens the transaction. A unit of work runs at most one.
func (u *UnitOfWork) BeginTransaction(ctx context.Context, level sql.IsolationLevel) error {
	switch u.state {
	case uowDisposed:
		return ErrUnitOfWorkDisposed
	case uowActive:
		return ErrTransactionActive
	case uowCompleted:
		return ErrTransactionCompleted
	}

	tx, err := u.db.BeginTx(ctx, &sql.TxOptions{Isolation: level})
	if err != nil {
		return wrapDBError(err, "BeginTransaction")
	}

	if u.rowLevelScope && u.tenancy && !u.bypassTenant {
		_, err = tx.ExecContext(ctx, "SELECT set_config('app.current_tenant_id', ?, true)", u.tenantID)
		if err != nil {
			_ = tx.Rollback()
			return wrapDBError(err, "SetTenantSetting")
		}
	}

	u.tx = &tx
	u.state = uowActive
	u.started = time.Now()
	return nil
}

// Commit commits the transaction. When ctx is already done or the commit
// fails, the transaction is rolled back and ErrTransactionFailed is returned.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	switch u.state {
	case uowDisposed:
		return ErrUnitOfWorkDisposed
	case uowActive:
	default:
		return ErrNoTransaction
	}

	if err := ctx.Err(); err != nil {
		u.rollbackQuietly()
		u.finish(OutcomeFailed)
		return NewError(ErrTransactionFailed, "context done before commit").
			WithTenant(u.tenantID).
			WithCause(err)
	}

	if err := u.tx.Commit(); err != nil {
		u.rollbackQuietly()
		u.finish(OutcomeFailed)
		return NewError(ErrTransactionFailed, "commit failed").
			WithTenant(u.tenantID).
			WithCause(dbkit.WithErr1(err, "Commit").Err())
	}

	written := u.written
	u.finish(OutcomeCommitted)
	u.publish(ctx, written)
	return nil
}

// Rollback discards the transaction.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	switch u.state {
	case uowDisposed:
		return ErrUnitOfWorkDisposed
	case uowActive:
	default:
		return ErrNoTransaction
	}

	err := u.tx.Rollback()
	u.finish(OutcomeRolledBack)
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return wrapDBError(err, "Rollback")
	}
	return nil
}

// Close rolls back an open transaction and releases the repositories.
// Any later use of the unit of work or its repositories fails with
// ErrUnitOfWorkDisposed. Close is idempotent.
func (u *UnitOfWork) Close() error {
	if u.state == uowDisposed {
		return nil
	}

	var err error
	if u.state == uowActive {
		err = u.tx.Rollback()
		u.finish(OutcomeRolledBack)
		if err != nil && !errors.Is(err, sql.ErrTxDone) {
			u.logger.Warn("implicit rollback failed",
				zap.String("tenant_id", u.tenantID),
				zap.Error(err))
		} else {
			err = nil
		}
	}

	u.state = uowDisposed
	u.repositories = nil
	return err
}

func (u *UnitOfWork) rollbackQuietly() {
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		u.logger.Warn("rollback after failed commit",
			zap.String("tenant_id", u.tenantID),
			zap.Error(err))
	}
}

func (u *UnitOfWork) finish(outcome string) {
	u.tx = nil
	u.written = nil
	u.state = uowCompleted
	if u.observer != nil {
		u.observer(time.Since(u.started), outcome)
	}
}

// conn returns the transaction while one is open, the pool otherwise.
func (u *UnitOfWork) conn() bun.IDB {
	if u.state == uowActive {
		return *u.tx
	}
	return u.db
}

// checkUsable validates the unit of work for a repository call made with ctx.
func (u *UnitOfWork) checkUsable(ctx context.Context) error {
	if u.state == uowDisposed {
		return ErrUnitOfWorkDisposed
	}
	if u.tenancy && !u.bypassTenant {
		if current := u.resolver.CurrentTenantID(ctx); current != u.tenantID {
			return NewError(ErrTenantChanged, "tenant "+current+" differs from "+u.tenantID).
				WithTenant(u.tenantID)
		}
	}
	return nil
}

// checkWritable validates the unit of work for a repository write.
func (u *UnitOfWork) checkWritable(ctx context.Context) error {
	if err := u.checkUsable(ctx); err != nil {
		return err
	}
	if u.state == uowActive || u.autoCommit {
		return nil
	}
	if u.state == uowCompleted {
		return ErrTransactionCompleted
	}
	return ErrNoTransaction
}

// recordWrite notes a successful write to an entity type. Writes inside a
// transaction are announced after commit, other writes immediately.
func (u *UnitOfWork) recordWrite(ctx context.Context, entity reflect.Type) {
	if u.state != uowActive {
		u.publish(ctx, []reflect.Type{entity})
		return
	}
	if !slices.Contains(u.written, entity) {
		u.written = append(u.written, entity)
	}
}

func (u *UnitOfWork) publish(ctx context.Context, changed []reflect.Type) {
	if u.onChange != nil && len(changed) > 0 {
		u.onChange(ctx, u, changed)
	}
}

// filtersTenant reports whether tenant-scoped queries get the tenant filter.
func (u *UnitOfWork) filtersTenant() bool {
	return u.tenancy && !u.bypassTenant
}

// GetRepository returns the repository for entity type T. Repeated calls on the
// same unit of work return the same instance.
//
// Example:
//
//	roles, err := adminkit.GetRepository[adminkit.Role](uow)
func GetRepository[T any, P interface {
	*T
	Entity
}](u *UnitOfWork) (*Repository[T, P], error) {
	if u.state == uowDisposed {
		return nil, ErrUnitOfWorkDisposed
	}

	key := reflect.TypeFor[T]()
	if repo, ok := u.repositories[key]; ok {
		return repo.(*Repository[T, P]), nil
	}

	repo := newRepository[T, P](u)
	u.repositories[key] = repo
	return repo, nil
}

func wrapDBError(err error, operation string) error {
	if err == nil {
		return nil
	}
	return NewError(ErrDatabaseError, operation).
		WithOperation(operation).
		WithCause(dbkit.WithErr1(err, operation).Err())
}
