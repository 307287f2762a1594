package adminkit

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"time"

	"github.com/fernandezvara/dbkit"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Predicate narrows a select query, e.g.
//
//	func(q *bun.SelectQuery) *bun.SelectQuery {
//	    return q.Where("?TableAlias.user_name = ?", name)
//	}
//
// A nil Predicate matches every live row.
type Predicate func(*bun.SelectQuery) *bun.SelectQuery

// Repository gives typed access to one entity table inside a UnitOfWork.
// Every query hides soft-deleted rows and, for tenant-scoped entities, rows
// of other tenants. Obtain one with GetRepository.
type Repository[T any, P interface {
	*T
	Entity
}] struct {
	uow          *UnitOfWork
	tenantScoped bool
}

func newRepository[T any, P interface {
	*T
	Entity
}](u *UnitOfWork) *Repository[T, P] {
	_, scoped := any(P(new(T))).(TenantScoped)
	return &Repository[T, P]{uow: u, tenantScoped: scoped}
}

// TenantScoped reports whether the entity carries a tenant column.
func (r *Repository[T, P]) TenantScoped() bool {
	return r.tenantScoped
}

func (r *Repository[T, P]) filtersTenant() bool {
	return r.tenantScoped && r.uow.filtersTenant()
}

// selectLive builds a select over live rows visible to the unit of work.
func (r *Repository[T, P]) selectLive(idb bun.IDB, model any) *bun.SelectQuery {
	return r.selectWhereDeleted(idb, model, false)
}

func (r *Repository[T, P]) selectWhereDeleted(idb bun.IDB, model any, deleted bool) *bun.SelectQuery {
	q := idb.NewSelect().Model(model).Where("?TableAlias.is_deleted = ?", deleted)
	if r.filtersTenant() {
		q = q.Where("?TableAlias.tenant_id = ?", r.uow.tenantID)
	}
	return q
}

func (r *Repository[T, P]) updateWhereDeleted(idb bun.IDB, model any, deleted bool) *bun.UpdateQuery {
	q := idb.NewUpdate().Model(model).Where("?TableAlias.is_deleted = ?", deleted)
	if r.filtersTenant() {
		q = q.Where("?TableAlias.tenant_id = ?", r.uow.tenantID)
	}
	return q
}

func apply(q *bun.SelectQuery, pred Predicate) *bun.SelectQuery {
	if pred == nil {
		return q
	}
	return pred(q)
}

// GetByID returns the live entity with the given id, or nil when there is none.
func (r *Repository[T, P]) GetByID(ctx context.Context, id string) (*T, error) {
	return r.FirstOrDefault(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.id = ?", id)
	})
}

// GetAll returns every live entity.
func (r *Repository[T, P]) GetAll(ctx context.Context) ([]T, error) {
	return r.Find(ctx, nil)
}

// Find returns the live entities matching pred.
func (r *Repository[T, P]) Find(ctx context.Context, pred Predicate) ([]T, error) {
	if err := r.uow.checkUsable(ctx); err != nil {
		return nil, err
	}

	items := make([]T, 0)
	q := apply(r.selectLive(r.uow.conn(), &items), pred)
	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, wrapDBError(err, "Find")
	}
	return items, nil
}

// FirstOrDefault returns the first live entity matching pred, or nil.
func (r *Repository[T, P]) FirstOrDefault(ctx context.Context, pred Predicate) (*T, error) {
	if err := r.uow.checkUsable(ctx); err != nil {
		return nil, err
	}

	entity := new(T)
	q := apply(r.selectLive(r.uow.conn(), entity), pred).Limit(1)
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapDBError(err, "FirstOrDefault")
	}
	return entity, nil
}

// GetPaged returns one page of the live entities matching pred together
// with the total number of matches. A page past the end has no items.
func (r *Repository[T, P]) GetPaged(ctx context.Context, pred Predicate, page PageRequest) (PagedResult[T], error) {
	result := PagedResult[T]{Items: make([]T, 0), Page: page.Page, PageSize: page.PageSize}
	if err := page.Validate(); err != nil {
		return result, err
	}

	total, err := r.Count(ctx, pred)
	if err != nil {
		return result, err
	}
	result.TotalCount = total
	if page.Offset() >= total {
		return result, nil
	}

	q := apply(r.selectLive(r.uow.conn(), &result.Items), pred)
	if page.OrderBy != "" {
		q = q.Order(page.OrderBy)
	} else {
		q = q.OrderExpr("?TableAlias.created_at ASC, ?TableAlias.id ASC")
	}
	q = q.Limit(page.PageSize).Offset(page.Offset())

	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return result, wrapDBError(err, "GetPaged")
	}
	return result, nil
}

// Count returns the number of live entities matching pred.
func (r *Repository[T, P]) Count(ctx context.Context, pred Predicate) (int, error) {
	if err := r.uow.checkUsable(ctx); err != nil {
		return 0, err
	}

	count, err := apply(r.selectLive(r.uow.conn(), (*T)(nil)), pred).Count(ctx)
	if err != nil {
		return 0, wrapDBError(err, "Count")
	}
	return count, nil
}

// Any reports whether a live entity matches pred.
func (r *Repository[T, P]) Any(ctx context.Context, pred Predicate) (bool, error) {
	if err := r.uow.checkUsable(ctx); err != nil {
		return false, err
	}

	exists, err := apply(r.selectLive(r.uow.conn(), (*T)(nil)), pred).Exists(ctx)
	if err != nil {
		return false, wrapDBError(err, "Any")
	}
	return exists, nil
}

// stamp prepares a new entity for insertion.
func (r *Repository[T, P]) stamp(entity P, now time.Time) {
	m := entity.GetModel()
	if m.ID == "" {
		m.ID = newID()
	}
	m.CreatedAt = now
	m.UpdatedAt = now
	m.IsDeleted = false

	if !r.tenantScoped || !r.uow.tenancy {
		return
	}
	column := any(entity).(TenantScoped).TenantColumn()
	if !r.uow.bypassTenant || *column == "" {
		*column = r.uow.tenantID
	}
}

// Add inserts a new entity. The id, timestamps and tenant are filled in.
func (r *Repository[T, P]) Add(ctx context.Context, entity P) error {
	if err := r.uow.checkWritable(ctx); err != nil {
		return err
	}

	r.stamp(entity, time.Now().UTC())
	result, err := r.uow.conn().NewInsert().Model(entity).Exec(ctx)
	if err = dbkit.WithErr(result, err, "Add").Err(); err != nil {
		return NewError(ErrDatabaseError, "Add").WithOperation("Add").WithCause(err)
	}
	r.written(ctx, 1)
	return nil
}

// AddRange inserts several entities in one statement and returns how many
// rows were written.
func (r *Repository[T, P]) AddRange(ctx context.Context, entities []P) (int, error) {
	if err := r.uow.checkWritable(ctx); err != nil {
		return 0, err
	}
	if len(entities) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	for _, entity := range entities {
		r.stamp(entity, now)
	}

	result, err := r.uow.conn().NewInsert().Model(&entities).Exec(ctx)
	if err = dbkit.WithErr(result, err, "AddRange").Err(); err != nil {
		return 0, NewError(ErrDatabaseError, "AddRange").WithOperation("AddRange").WithCause(err)
	}
	n := rowsAffected(result)
	r.written(ctx, n)
	return n, nil
}

// Update writes the entity's columns back. Only a live row of the bound
// tenant is touched; id, created_at, is_deleted and tenant_id never change.
// Returns false when no such row exists.
func (r *Repository[T, P]) Update(ctx context.Context, entity P) (bool, error) {
	if err := r.uow.checkWritable(ctx); err != nil {
		return false, err
	}

	m := entity.GetModel()
	m.UpdatedAt = time.Now().UTC()

	excluded := []string{"created_at", "is_deleted"}
	if r.tenantScoped {
		excluded = append(excluded, "tenant_id")
	}

	result, err := r.updateWhereDeleted(r.uow.conn(), entity, false).
		ExcludeColumn(excluded...).
		WherePK().
		Exec(ctx)
	if err = dbkit.WithErr(result, err, "Update").Err(); err != nil {
		return false, NewError(ErrDatabaseError, "Update").WithOperation("Update").WithCause(err)
	}
	n := rowsAffected(result)
	r.written(ctx, n)
	return n > 0, nil
}

// UpdateRange updates several entities and returns how many rows changed.
func (r *Repository[T, P]) UpdateRange(ctx context.Context, entities []P) (int, error) {
	updated := 0
	for _, entity := range entities {
		ok, err := r.Update(ctx, entity)
		if err != nil {
			return updated, err
		}
		if ok {
			updated++
		}
	}
	return updated, nil
}

// Delete soft-deletes the entity with the given id. Deleting a missing or
// already deleted row returns false.
func (r *Repository[T, P]) Delete(ctx context.Context, id string) (bool, error) {
	n, err := r.setDeleted(ctx, []string{id}, true, "Delete")
	return n > 0, err
}

// DeleteRange soft-deletes several entities and returns how many changed.
func (r *Repository[T, P]) DeleteRange(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return r.setDeleted(ctx, ids, true, "DeleteRange")
}

// Restore undeletes a soft-deleted entity.
func (r *Repository[T, P]) Restore(ctx context.Context, id string) (bool, error) {
	n, err := r.setDeleted(ctx, []string{id}, false, "Restore")
	return n > 0, err
}

// FindDeleted returns the soft-deleted entities matching pred.
func (r *Repository[T, P]) FindDeleted(ctx context.Context, pred Predicate) ([]T, error) {
	if err := r.uow.checkUsable(ctx); err != nil {
		return nil, err
	}

	items := make([]T, 0)
	q := apply(r.selectWhereDeleted(r.uow.conn(), &items, true), pred)
	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, wrapDBError(err, "FindDeleted")
	}
	return items, nil
}

func (r *Repository[T, P]) setDeleted(ctx context.Context, ids []string, deleted bool, operation string) (int, error) {
	if err := r.uow.checkWritable(ctx); err != nil {
		return 0, err
	}

	result, err := r.updateWhereDeleted(r.uow.conn(), (*T)(nil), !deleted).
		Set("is_deleted = ?", deleted).
		Set("updated_at = ?", time.Now().UTC()).
		Where("?TableAlias.id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err = dbkit.WithErr(result, err, operation).Err(); err != nil {
		return 0, NewError(ErrDatabaseError, operation).WithOperation(operation).WithCause(err)
	}
	n := rowsAffected(result)
	r.written(ctx, n)
	return n, nil
}

// written reports n changed rows of T to the unit of work.
func (r *Repository[T, P]) written(ctx context.Context, n int) {
	if n > 0 {
		r.uow.recordWrite(ctx, reflect.TypeFor[T]())
	}
}

func newID() string {
	return uuid.NewString()
}

func rowsAffected(result sql.Result) int {
	if result == nil {
		return 0
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}
