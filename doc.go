// Package adminkit provides the data-access and authorization core of a
// multi-tenant back-office application.
//
// It covers user, role, permission, department, menu and dictionary records
// stored in PostgreSQL through bun, grouped under a unit of work that scopes
// every query to the current tenant and hides soft-deleted rows.
//
// # Core Concepts
//
// Permission code: a colon-separated string of the form
// "module:feature:action", such as "system:user:list". Any segment may be the
// wildcard "*". The code "*:*:*" marks a super administrator.
//
// Requirement: what an operation demands of a caller. A requirement is a
// single code, any of a set of codes, or all of a set of codes.
//
// Principal: the authenticated user, the tenant they act in and their
// effective permission set. A Checker wraps a principal and answers
// permission questions for it.
//
// Unit of work: a transaction-capable session over the database. Repositories
// obtained from it share its transaction and its tenant.
//
// # Basic Usage
//
//	// 1. Declare the operations and what they require (at startup)
//	policies := adminkit.NewPolicyRegistry()
//
//	policies.Operation("user.list").
//	    RequirePermission("system:user:list").
//	    Operation("user.export").
//	    RequireAllPermissions("system:user:list", "system:user:export").
//	    Operation("dept.edit").
//	    RequireAnyPermission("system:dept:edit", "system:dept:*")
//
//	// 2. Create the service
//	service := adminkit.NewService(db,
//	    adminkit.WithPolicies(policies),
//	    adminkit.WithTenancy(adminkit.TenancyConfig{Enabled: true}),
//	    adminkit.WithCache(adminkit.NewMemoryPermissionCache(5*time.Minute)),
//	    adminkit.WithLogger(logger),
//	)
//
//	// 3. Run migrations
//	service.RunMigrations(ctx)
//
//	// 4. Assign roles and grant permissions
//	service.GrantPermission(ctx, roleID, "system:user:list")
//	service.AssignRole(ctx, userID, roleID)
//
//	// 5. Check access
//	checker, _ := service.GetChecker(ctx, userID)
//	if checker.CanPerform("user.list") {
//	    // Caller may list users
//	}
//
// # Repositories
//
// Repositories are generic over the entity type and are obtained from a unit
// of work:
//
//	err := service.Transaction(ctx, func(ctx context.Context, uow *adminkit.UnitOfWork) error {
//	    depts, err := adminkit.GetRepository[adminkit.Department](uow)
//	    if err != nil {
//	        return err
//	    }
//	    return depts.Add(ctx, &adminkit.Department{Name: "Sales"})
//	})
//
// Deletes are soft: the row is flagged and disappears from every query except
// FindDeleted, and Restore brings it back. Inserts into tenant-scoped tables
// are stamped with the unit of work's tenant.
//
// # Middleware Usage
//
//	mw := adminkit.NewMiddleware(service, adminkit.NewJWTValidator(key, "adminkit"))
//
//	mux.Handle("GET /users", mw.Authenticate()(mw.Require("user.list")(listUsers)))
//
// Authenticate resolves the bearer token into a principal. Require rejects
// callers whose permissions do not satisfy the operation's requirement.
//
// # Audit Log
//
// Role assignments and removals are recorded with:
//   - Actor (who made the change)
//   - Target user
//   - Action (assigned, removed)
//   - Role
//   - Previous and new role sets
//   - Timestamp
//   - Request metadata (IP, user agent, request ID)
package adminkit
