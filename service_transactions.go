package adminkit

import (
	"context"
	"database/sql"

	"go.uber.org/zap"
)

// UnitOfWorkFunc is the body of a transactional operation.
type UnitOfWorkFunc func(ctx context.Context, uow *UnitOfWork) error

// WithinUnitOfWork executes fn inside a new unit of work with automatic
// commit/rollback. If fn returns an error the transaction is rolled back and
// the error returned unchanged; otherwise it is committed.
//
// Example:
//
//	err := service.WithinUnitOfWork(ctx, sql.LevelReadCommitted, func(ctx context.Context, uow *adminkit.UnitOfWork) error {
//	    depts, err := adminkit.GetRepository[adminkit.Department](uow)
//	    if err != nil {
//	        return err
//	    }
//	    return depts.Add(ctx, &adminkit.Department{Name: "Sales"})
//	})
func (s *Service) WithinUnitOfWork(ctx context.Context, level sql.IsolationLevel, fn UnitOfWorkFunc, opts ...UnitOfWorkOption) error {
	uow := s.NewUnitOfWork(ctx, opts...)
	defer func() {
		if err := uow.Close(); err != nil {
			s.logger.Warn("closing unit of work", zap.Error(err))
		}
	}()

	if err := uow.BeginTransaction(ctx, level); err != nil {
		return err
	}

	if err := fn(ctx, uow); err != nil {
		if uow.IsActive() {
			if rbErr := uow.Rollback(ctx); rbErr != nil {
				s.logger.Error("rollback failed",
					zap.String("tenant_id", uow.TenantID()),
					zap.Error(rbErr))
			}
		}
		return err
	}

	if !uow.IsActive() {
		return nil
	}
	return uow.Commit(ctx)
}

// Transaction is WithinUnitOfWork at the service's default isolation level.
func (s *Service) Transaction(ctx context.Context, fn UnitOfWorkFunc) error {
	return s.WithinUnitOfWork(ctx, s.isolation, fn)
}

// ReadOnly runs fn in a unit of work at repeatable read and always rolls
// back, so every read sees the same snapshot.
func (s *Service) ReadOnly(ctx context.Context, fn UnitOfWorkFunc) error {
	uow := s.NewUnitOfWork(ctx)
	defer uow.Close()

	if err := uow.BeginTransaction(ctx, sql.LevelRepeatableRead); err != nil {
		return err
	}
	err := fn(ctx, uow)
	if uow.IsActive() {
		if rbErr := uow.Rollback(ctx); rbErr != nil && err == nil {
			err = rbErr
		}
	}
	return err
}
