package adminkit

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAssignRole tests assigning a new role
func TestAssignRole(t *testing.T) {
	cache := NewMemoryPermissionCache(0)
	service, mock := newMockService(t, WithCache(cache))
	ctx := WithAuditContext(context.Background(), AuditContext{ActorID: "admin", RequestID: "req-1"})

	require.NoError(t, cache.Set(ctx, "", "u1", []string{"system:user:list"}))

	mock.ExpectBegin()
	expectRole(mock, "r2")
	expectUserRoles(mock, "u1", "r1")
	mock.ExpectQuery(`INSERT INTO "user_roles" .*'u1'.*'r2'`).
		WillReturnRows(sqlmock.NewRows([]string{"is_deleted"}).AddRow(false))
	expectAudit(mock, `'admin'.*'assigned'.*'u1'.*'r2'.*'req-1'`)
	mock.ExpectCommit()

	changed, err := service.AssignRole(ctx, "u1", "r2")
	require.NoError(t, err)
	assert.True(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())

	// The user's cached permissions are dropped
	_, ok, err := cache.Get(ctx, "", "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestAssignRoleAlreadyAssigned tests that a repeated assignment is a no-op
func TestAssignRoleAlreadyAssigned(t *testing.T) {
	cache := NewMemoryPermissionCache(0)
	service, mock := newMockService(t, WithCache(cache))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "", "u1", []string{"system:user:list"}))

	mock.ExpectBegin()
	expectRole(mock, "r1")
	expectUserRoles(mock, "u1", "r1")
	mock.ExpectCommit()

	changed, err := service.AssignRole(ctx, "u1", "r1")
	require.NoError(t, err)
	assert.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())

	_, ok, _ := cache.Get(ctx, "", "u1")
	assert.True(t, ok)
}

// TestAssignRoleUnknownRole tests that a missing role rolls the transaction back
func TestAssignRoleUnknownRole(t *testing.T) {
	service, mock := newMockService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "roles" AS "r"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	changed, err := service.AssignRole(ctx, "u1", "missing")
	assert.False(t, changed)
	assert.True(t, errors.Is(err, ErrRoleNotFound))
	assert.True(t, IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestAssignRoleAuditFailure tests that a failed audit write undoes the assignment
func TestAssignRoleAuditFailure(t *testing.T) {
	service, mock := newMockService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	expectRole(mock, "r1")
	expectUserRoles(mock, "u1")
	mock.ExpectQuery(`INSERT INTO "user_roles"`).
		WillReturnRows(sqlmock.NewRows([]string{"is_deleted"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO "role_audit_log"`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	changed, err := service.AssignRole(ctx, "u1", "r1")
	assert.False(t, changed)
	assert.True(t, errors.Is(err, ErrDatabaseError))
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRemoveRole tests removing an assigned role
func TestRemoveRole(t *testing.T) {
	service, mock := newMockService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	expectUserRoles(mock, "u1", "r1", "r2")
	mock.ExpectExec(`UPDATE "user_roles" AS "ur" SET is_deleted = TRUE.*"ur".id IN \('link-r1'\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectAudit(mock, `'removed'.*'u1'.*'r1'`)
	mock.ExpectCommit()

	changed, err := service.RemoveRole(ctx, "u1", "r1")
	require.NoError(t, err)
	assert.True(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRemoveRoleNotAssigned tests that removing an unassigned role is a no-op
func TestRemoveRoleNotAssigned(t *testing.T) {
	service, mock := newMockService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	expectUserRoles(mock, "u1", "r2")
	mock.ExpectCommit()

	changed, err := service.RemoveRole(ctx, "u1", "r1")
	require.NoError(t, err)
	assert.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestUserRoleIDs tests listing a user's roles
func TestUserRoleIDs(t *testing.T) {
	service, mock := newMockService(t)

	expectUserRoles(mock, "u1", "r1", "r2")

	ids, err := service.UserRoleIDs(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestGrantPermission tests attaching a catalog permission to a role
func TestGrantPermission(t *testing.T) {
	cache := NewMemoryPermissionCache(0)
	service, mock := newMockService(t, WithCache(cache))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "", "u1", []string{"system:user:list"}))
	require.NoError(t, cache.Set(ctx, "", "u2", []string{}))

	mock.ExpectBegin()
	expectRole(mock, "r1")
	mock.ExpectQuery(`SELECT .* FROM "permissions" AS "p" WHERE .*"p"."code" = 'system:user:add'`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}).AddRow("p1", "system:user:add"))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT .* FROM "role_permissions" AS "rp" .*"rp".role_id = 'r1'.*"rp".permission_id = 'p1'`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO "role_permissions" .*'r1'.*'p1'`).
		WillReturnRows(sqlmock.NewRows([]string{"is_deleted"}).AddRow(false))
	mock.ExpectCommit()

	changed, err := service.GrantPermission(ctx, "r1", "system:user:add")
	require.NoError(t, err)
	assert.True(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())

	// A grant touches every holder of the role, so the tenant is dropped
	assert.Equal(t, 0, cache.Len())
}

// TestGrantPermissionExisting tests granting a permission twice
func TestGrantPermissionExisting(t *testing.T) {
	service, mock := newMockService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	expectRole(mock, "r1")
	mock.ExpectQuery(`SELECT .* FROM "permissions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}).AddRow("p1", "system:user:add"))
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectCommit()

	changed, err := service.GrantPermission(ctx, "r1", "system:user:add")
	require.NoError(t, err)
	assert.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestGrantPermissionNotInCatalog tests that only catalog codes can be granted
func TestGrantPermissionNotInCatalog(t *testing.T) {
	service, mock := newMockService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	expectRole(mock, "r1")
	mock.ExpectQuery(`SELECT .* FROM "permissions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	changed, err := service.GrantPermission(ctx, "r1", "system:user:export")
	assert.False(t, changed)
	assert.True(t, errors.Is(err, ErrPermissionNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestGrantPermissionInvalidCode tests that invalid codes never reach the database
func TestGrantPermissionInvalidCode(t *testing.T) {
	service, mock := newMockService(t)

	_, err := service.GrantPermission(context.Background(), "r1", "  ")
	assert.True(t, IsInvalidPermission(err))
	_, err = service.RevokePermission(context.Background(), "r1", "")
	assert.True(t, IsInvalidPermission(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRevokePermission tests detaching a permission
func TestRevokePermission(t *testing.T) {
	service, mock := newMockService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "permissions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}).AddRow("p1", "system:user:add"))
	mock.ExpectQuery(`SELECT .* FROM "role_permissions" AS "rp"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role_id", "permission_id"}).AddRow("g1", "r1", "p1"))
	mock.ExpectExec(`UPDATE "role_permissions" AS "rp" SET is_deleted = TRUE.*'g1'`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	changed, err := service.RevokePermission(ctx, "r1", "system:user:add")
	require.NoError(t, err)
	assert.True(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRevokePermissionUnknownCode tests revoking a code missing from the catalog
func TestRevokePermissionUnknownCode(t *testing.T) {
	service, mock := newMockService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "permissions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	changed, err := service.RevokePermission(ctx, "r1", "system:user:add")
	require.NoError(t, err)
	assert.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRegisterPermissions tests adding only new codes to the catalog
func TestRegisterPermissions(t *testing.T) {
	service, mock := newMockService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "permissions" AS "p" WHERE .*"p".code IN \('system:user:add', 'system:user:list', 'system:user:add'\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}).AddRow("p1", "system:user:list"))
	mock.ExpectQuery(`INSERT INTO "permissions" .*'system:user:add'`).
		WillReturnRows(sqlmock.NewRows([]string{"is_deleted"}).AddRow(false))
	mock.ExpectCommit()

	added, err := service.RegisterPermissions(ctx, "system:user:add", "system:user:list", "system:user:add")
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = service.RegisterPermissions(ctx, "system:user:add", "")
	assert.True(t, IsInvalidPermission(err))
}

// TestGetAuditLog tests filtering the audit log
func TestGetAuditLog(t *testing.T) {
	service, mock := newMockService(t, WithTenancy(TenancyConfig{Enabled: true}))
	ctx := WithTenantID(context.Background(), "t1")

	mock.ExpectQuery(`SELECT .* FROM "role_audit_log" AS "ral" WHERE \(tenant_id = 't1'\) AND \(target_user_id = 'u1'\) AND \(action = 'removed'\) ORDER BY "timestamp" DESC LIMIT 10`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "actor_id", "action", "target_user_id", "role_id"}).
			AddRow("a1", "admin", "removed", "u1", "r1"))

	logs, err := service.GetAuditLog(ctx, NewAuditLogFilter().
		WithTargetUser("u1").
		WithAction(AuditActionRemoved).
		WithPagination(10, 0))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "admin", logs[0].ActorID)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestGetAuditLogDefaultLimit tests that zero and negative limits use the default
func TestGetAuditLogDefaultLimit(t *testing.T) {
	service, mock := newMockService(t)
	ctx := context.Background()

	for _, limit := range []int{0, -1} {
		mock.ExpectQuery(`SELECT .* FROM "role_audit_log" AS "ral" ORDER BY "timestamp" DESC LIMIT 100$`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := service.GetAuditLog(ctx, NewAuditLogFilter().WithPagination(limit, 0))
		require.NoError(t, err)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}
