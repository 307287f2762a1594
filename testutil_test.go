package adminkit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fernandezvara/dbkit"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// mockDatabase runs a Service on a bun.DB backed by sqlmock.
type mockDatabase struct {
	db *bun.DB
}

func (m mockDatabase) Bun() *bun.DB {
	return m.db
}

// newMockDB returns a bun.DB over sqlmock. Queries are matched as regular
// expressions against the SQL bun renders, with arguments inlined.
func newMockDB(t *testing.T) (*bun.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)

	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, mock
}

// newMockService creates a Service on sqlmock.
func newMockService(t *testing.T, opts ...Option) (*Service, sqlmock.Sqlmock) {
	t.Helper()

	db, mock := newMockDB(t)
	return NewService(mockDatabase{db: db}, opts...), mock
}

// expectUser queues the GetByID lookup of a user.
func expectUser(mock sqlmock.Sqlmock, id string, disabled, superAdmin bool) {
	mock.ExpectQuery(`SELECT .* FROM "users" AS "u" WHERE .*"u".id = '` + id + `'`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_name", "disabled", "is_super_admin", "is_deleted"}).
			AddRow(id, "user-"+id, disabled, superAdmin, false))
}

// expectNoUser queues a GetByID lookup that finds nothing.
func expectNoUser(mock sqlmock.Sqlmock, id string) {
	mock.ExpectQuery(`SELECT .* FROM "users" AS "u" WHERE .*"u".id = '` + id + `'`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
}

// expectRole queues the GetByID lookup of a role.
func expectRole(mock sqlmock.Sqlmock, id string) {
	mock.ExpectQuery(`SELECT .* FROM "roles" AS "r" WHERE .*"r".id = '` + id + `'`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "is_deleted"}).
			AddRow(id, "code-"+id, "Role "+id, false))
}

// expectUserRoles queues the lookup of a user's role links.
func expectUserRoles(mock sqlmock.Sqlmock, userID string, roleIDs ...string) {
	rows := sqlmock.NewRows([]string{"id", "user_id", "role_id", "is_deleted"})
	for _, roleID := range roleIDs {
		rows.AddRow("link-"+roleID, userID, roleID, false)
	}
	mock.ExpectQuery(`SELECT .* FROM "user_roles" AS "ur" WHERE .*"ur"."user_id" = '` + userID + `'`).
		WillReturnRows(rows)
}

// expectAudit queues a role audit log insert whose SQL matches values.
func expectAudit(mock sqlmock.Sqlmock, values string) {
	mock.ExpectQuery(`INSERT INTO "role_audit_log" .*` + values).
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}).AddRow(""))
}

// getTestDatabaseURL returns the database URL for integration tests.
func getTestDatabaseURL() string {
	return os.Getenv("TEST_DATABASE_URL")
}

// setupIntegrationService starts (or reuses) a Postgres database, runs the
// migrations and returns a Service on it. The test is skipped in -short mode
// or when no database can be reached.
func setupIntegrationService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	url := getTestDatabaseURL()
	if url == "" {
		container, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("adminkit_test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			t.Skipf("database not available: %v", err)
		}
		t.Cleanup(func() {
			_ = container.Terminate(ctx)
		})

		url, err = container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	db, err := dbkit.New(dbkit.Config{URL: url})
	if err != nil {
		t.Skipf("database not available: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	service := NewService(db, opts...)
	_, err = service.RunMigrations(ctx)
	require.NoError(t, err)

	// Each test starts from empty tables
	_, err = db.Bun().ExecContext(ctx, `TRUNCATE users, roles, permissions, user_roles,
		role_permissions, departments, menus, dictionaries, role_audit_log`)
	require.NoError(t, err)

	return service
}
