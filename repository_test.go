package adminkit

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func newTenantRepository[T any, P interface {
	*T
	Entity
}](t *testing.T, tenantID string) (*Repository[T, P], sqlmock.Sqlmock, context.Context) {
	t.Helper()

	service, mock := newMockService(t, WithTenancy(TenancyConfig{Enabled: true}))
	ctx := WithTenantID(context.Background(), tenantID)
	uow := service.NewUnitOfWork(ctx, WithAutoCommit())
	t.Cleanup(func() { _ = uow.Close() })

	repo, err := GetRepository[T, P](uow)
	require.NoError(t, err)
	return repo, mock, ctx
}

// TestRepositoryGetByID tests lookups with the tenant and soft-delete filters
func TestRepositoryGetByID(t *testing.T) {
	users, mock, ctx := newTenantRepository[User](t, "t1")

	mock.ExpectQuery(`SELECT .* FROM "users" AS "u" WHERE \("u".is_deleted = FALSE\) AND \("u".tenant_id = 't1'\) AND \("u".id = 'u1'\) LIMIT 1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "user_name", "is_deleted"}).
			AddRow("u1", "t1", "alice", false))
	expectNoUser(mock, "missing")

	user, err := users.GetByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.UserName)
	assert.Equal(t, "t1", user.TenantID)

	// Not found is not an error
	user, err = users.GetByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, user)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRepositoryFind tests predicates and empty results
func TestRepositoryFind(t *testing.T) {
	roles, mock, ctx := newTenantRepository[Role](t, "t1")

	mock.ExpectQuery(`SELECT .* FROM "roles" AS "r" WHERE .*"r".tenant_id = 't1'.*"r"."code" = 'admin'`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name"}).
			AddRow("r1", "admin", "Administrator"))
	mock.ExpectQuery(`SELECT .* FROM "roles" AS "r"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	found, err := roles.Find(ctx, byColumn("code", "admin"))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Administrator", found[0].Name)

	all, err := roles.GetAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRepositoryFindDatabaseError tests driver errors surfacing as ErrDatabaseError
func TestRepositoryFindDatabaseError(t *testing.T) {
	roles, mock, ctx := newTenantRepository[Role](t, "t1")

	mock.ExpectQuery(`SELECT .* FROM "roles"`).WillReturnError(errors.New("relation does not exist"))

	_, err := roles.Find(ctx, nil)
	assert.True(t, errors.Is(err, ErrDatabaseError))
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRepositoryAdd tests stamping of new entities
func TestRepositoryAdd(t *testing.T) {
	users, mock, ctx := newTenantRepository[User](t, "t1")

	mock.ExpectQuery(`INSERT INTO "users" .*'t1'`).
		WillReturnRows(sqlmock.NewRows([]string{"is_deleted"}).AddRow(false))

	user := &User{UserName: "bob"}
	require.NoError(t, users.Add(ctx, user))

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "t1", user.TenantID)
	assert.False(t, user.CreatedAt.IsZero())
	assert.Equal(t, user.CreatedAt, user.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRepositoryAddKeepsID tests that a preset id is kept
func TestRepositoryAddKeepsID(t *testing.T) {
	departments, mock, ctx := newTenantRepository[Department](t, "t1")

	mock.ExpectQuery(`INSERT INTO "departments" .*'d-fixed'`).
		WillReturnRows(sqlmock.NewRows([]string{"is_deleted"}).AddRow(false))

	dept := &Department{Name: "Sales"}
	dept.ID = "d-fixed"
	require.NoError(t, departments.Add(ctx, dept))
	assert.Equal(t, "d-fixed", dept.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRepositoryAddRange tests bulk inserts
func TestRepositoryAddRange(t *testing.T) {
	service, mock := newMockService(t)
	ctx := context.Background()

	uow := service.NewUnitOfWork(ctx, WithAutoCommit())
	defer uow.Close()
	permissions, err := GetRepository[Permission](uow)
	require.NoError(t, err)

	n, err := permissions.AddRange(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	mock.ExpectQuery(`INSERT INTO "permissions" .*'system:user:add'.*'system:user:list'`).
		WillReturnRows(sqlmock.NewRows([]string{"is_deleted"}).AddRow(false).AddRow(false))

	n, err = permissions.AddRange(ctx, []*Permission{
		{Code: "system:user:add"},
		{Code: "system:user:list"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRepositoryUpdate tests updates of live rows
func TestRepositoryUpdate(t *testing.T) {
	roles, mock, ctx := newTenantRepository[Role](t, "t1")

	mock.ExpectExec(`UPDATE "roles" AS "r" SET .* WHERE \("r".is_deleted = FALSE\) AND \("r".tenant_id = 't1'\) AND \("r"."id" = 'r1'\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "roles" AS "r"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	role := &Role{Code: "admin", Name: "Administrators"}
	role.ID = "r1"

	ok, err := roles.Update(ctx, role)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, role.UpdatedAt.IsZero())

	ok, err = roles.Update(ctx, role)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRepositoryUpdateRange tests counting updated rows
func TestRepositoryUpdateRange(t *testing.T) {
	roles, mock, ctx := newTenantRepository[Role](t, "t1")

	mock.ExpectExec(`UPDATE "roles"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "roles"`).WillReturnResult(sqlmock.NewResult(0, 0))

	first := &Role{Code: "a", Name: "A"}
	first.ID = "r1"
	second := &Role{Code: "b", Name: "B"}
	second.ID = "r2"

	n, err := roles.UpdateRange(ctx, []*Role{first, second})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRepositoryDeleteAndRestore tests soft deletion
func TestRepositoryDeleteAndRestore(t *testing.T) {
	users, mock, ctx := newTenantRepository[User](t, "t1")

	mock.ExpectExec(`UPDATE "users" AS "u" SET is_deleted = TRUE, updated_at = .* WHERE \("u".is_deleted = FALSE\) AND \("u".tenant_id = 't1'\) AND \("u".id IN \('u1'\)\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "users" AS "u" SET is_deleted = TRUE`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE "users" AS "u" SET is_deleted = FALSE, updated_at = .* WHERE \("u".is_deleted = TRUE\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := users.Delete(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Already deleted
	ok, err = users.Delete(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = users.Restore(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRepositoryDeleteRange tests bulk soft deletion
func TestRepositoryDeleteRange(t *testing.T) {
	links, mock, ctx := newTenantRepository[UserRole](t, "t1")

	n, err := links.DeleteRange(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	mock.ExpectExec(`UPDATE "user_roles" AS "ur" SET is_deleted = TRUE.*"ur".id IN \('l1', 'l2'\)`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err = links.DeleteRange(ctx, []string{"l1", "l2"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRepositoryFindDeleted tests listing soft-deleted rows
func TestRepositoryFindDeleted(t *testing.T) {
	users, mock, ctx := newTenantRepository[User](t, "t1")

	mock.ExpectQuery(`SELECT .* FROM "users" AS "u" WHERE \("u".is_deleted = TRUE\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_deleted"}).AddRow("u1", true))

	deleted, err := users.FindDeleted(ctx, nil)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.True(t, deleted[0].IsDeleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRepositoryCountAndAny tests aggregate queries
func TestRepositoryCountAndAny(t *testing.T) {
	roles, mock, ctx := newTenantRepository[Role](t, "t1")

	mock.ExpectQuery(`SELECT count\(\*\) FROM "roles" AS "r" WHERE .*"r".tenant_id = 't1'`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT .* FROM "roles" AS "r" .*"r"."code" = 'admin'`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	count, err := roles.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	exists, err := roles.Any(ctx, byColumn("code", "admin"))
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRepositoryGetPaged tests pagination
func TestRepositoryGetPaged(t *testing.T) {
	dicts, mock, ctx := newTenantRepository[Dictionary](t, "t1")
	byType := func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.type = ?", "status")
	}

	mock.ExpectQuery(`SELECT count\(\*\) FROM "dictionaries"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery(`SELECT .* FROM "dictionaries" AS "dict" .* ORDER BY "dict".created_at ASC, "dict".id ASC LIMIT 2 OFFSET 2`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "key", "value"}).
			AddRow("d3", "status", "c", "C").
			AddRow("d4", "status", "d", "D"))

	page, err := dicts.GetPaged(ctx, byType, NewPageRequest(2, 2))
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalCount)
	assert.Equal(t, 3, page.TotalPages())
	assert.True(t, page.HasNext())
	require.Len(t, page.Items, 2)
	assert.Equal(t, "c", page.Items[0].Key)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRepositoryGetPagedPastEnd tests that a page past the end skips the select
func TestRepositoryGetPagedPastEnd(t *testing.T) {
	dicts, mock, ctx := newTenantRepository[Dictionary](t, "t1")

	mock.ExpectQuery(`SELECT count\(\*\) FROM "dictionaries"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	page, err := dicts.GetPaged(ctx, nil, NewPageRequest(4, 2))
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalCount)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasNext())

	_, err = dicts.GetPaged(ctx, nil, NewPageRequest(0, 2))
	assert.True(t, errors.Is(err, ErrInvalidPage))

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRepositoryInsideTransaction tests that repository calls join the open transaction
func TestRepositoryInsideTransaction(t *testing.T) {
	service, mock := newMockService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "menus"`).
		WillReturnRows(sqlmock.NewRows([]string{"is_deleted"}).AddRow(false))
	mock.ExpectRollback()

	uow := service.NewUnitOfWork(ctx)
	defer uow.Close()
	require.NoError(t, uow.BeginTransaction(ctx, sql.LevelReadCommitted))

	menus, err := GetRepository[Menu](uow)
	require.NoError(t, err)
	require.NoError(t, menus.Add(ctx, &Menu{Title: "System", Path: "/system"}))

	require.NoError(t, uow.Rollback(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}
