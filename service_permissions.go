package adminkit

import (
	"context"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ============================================================================
// PERMISSION AGGREGATION
// ============================================================================

// EffectivePermissions returns the union of the permission codes reachable
// from the user through live, enabled roles. Super administrators get
// {"*:*:*"}; unknown and disabled users get an empty set.
//
// Example:
//
//	perms, err := service.EffectivePermissions(ctx, userID)
//	if perms.Grants("system:user:add") {
//	    // ...
//	}
func (s *Service) EffectivePermissions(ctx context.Context, userID string) (PermissionSet, error) {
	tenantID := s.CurrentTenantID(ctx)

	if s.cache != nil {
		codes, ok, err := s.cache.Get(ctx, tenantID, userID)
		if err != nil {
			s.logger.Warn("permission cache read failed",
				zap.String("tenant_id", tenantID),
				zap.String("user_id", userID),
				zap.Error(err))
		} else if ok {
			return NewPermissionSet(codes...), nil
		}
	}

	uow := s.NewUnitOfWork(ctx)
	defer uow.Close()

	set, err := s.resolvePermissions(ctx, uow, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, tenantID, userID, set.Codes()); err != nil {
			s.logger.Warn("permission cache write failed",
				zap.String("tenant_id", tenantID),
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}
	return set, nil
}

func (s *Service) resolvePermissions(ctx context.Context, uow *UnitOfWork, userID string) (PermissionSet, error) {
	set := NewPermissionSet()

	users, err := GetRepository[User](uow)
	if err != nil {
		return nil, err
	}
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Disabled {
		return set, nil
	}
	if user.IsSuperAdmin {
		set.Add(SuperAdminPermission)
		return set, nil
	}

	links, err := GetRepository[UserRole](uow)
	if err != nil {
		return nil, err
	}
	assigned, err := links.Find(ctx, byColumn("user_id", userID))
	if err != nil {
		return nil, err
	}
	roleIDs := userRoleIDs(assigned)
	if len(roleIDs) == 0 {
		return set, nil
	}

	roles, err := GetRepository[Role](uow)
	if err != nil {
		return nil, err
	}
	enabled, err := roles.Find(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.id IN (?)", bun.In(roleIDs)).
			Where("?TableAlias.disabled = FALSE")
	})
	if err != nil {
		return nil, err
	}
	if len(enabled) == 0 {
		return set, nil
	}
	enabledIDs := make([]string, 0, len(enabled))
	for _, role := range enabled {
		enabledIDs = append(enabledIDs, role.ID)
	}

	grants, err := GetRepository[RolePermission](uow)
	if err != nil {
		return nil, err
	}
	granted, err := grants.Find(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.role_id IN (?)", bun.In(enabledIDs))
	})
	if err != nil {
		return nil, err
	}
	if len(granted) == 0 {
		return set, nil
	}
	permissionIDs := make([]string, 0, len(granted))
	for _, grant := range granted {
		permissionIDs = append(permissionIDs, grant.PermissionID)
	}

	permissions, err := GetRepository[Permission](uow)
	if err != nil {
		return nil, err
	}
	catalog, err := permissions.Find(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.id IN (?)", bun.In(permissionIDs))
	})
	if err != nil {
		return nil, err
	}
	for _, permission := range catalog {
		set.Add(permission.Code)
	}
	return set, nil
}

// BuildPrincipal resolves the user's effective permissions into a Principal
// bound to the tenant of ctx.
func (s *Service) BuildPrincipal(ctx context.Context, userID string) (*Principal, error) {
	set, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Principal{
		UserID:      userID,
		TenantID:    s.CurrentTenantID(ctx),
		Permissions: set,
	}, nil
}

// GetChecker builds a Checker for a user.
func (s *Service) GetChecker(ctx context.Context, userID string) (*Checker, error) {
	principal, err := s.BuildPrincipal(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewChecker(principal, s.policies), nil
}

// ============================================================================
// AUTHORIZED EXECUTION
// ============================================================================

// Authorize checks the principal in ctx against the requirement registered
// for operation.
func (s *Service) Authorize(ctx context.Context, operation string) error {
	req, err := s.policies.Lookup(operation)
	if err != nil {
		return err
	}

	principal := GetPrincipal(ctx)
	if principal == nil {
		return NewError(ErrNoPrincipal, "operation "+operation).WithOperation(operation)
	}

	allowed := Evaluate(principal, req)
	s.metrics.observeDecision(allowed)
	if !allowed {
		s.logger.Debug("access denied",
			zap.String("operation", operation),
			zap.String("user_id", principal.UserID),
			zap.String("tenant_id", principal.TenantID),
			zap.Stringer("requirement", req))
		return NewError(ErrAccessDenied, "missing "+req.String()).
			WithOperation(operation).
			WithUser(principal.UserID).
			WithTenant(principal.TenantID)
	}
	return nil
}

// Execute authorizes operation and runs fn in a unit of work. A denied
// operation returns ErrAccessDenied before any transaction is opened.
// Without an explicit WithTenantID the unit of work is bound to the
// principal's tenant.
//
// Example:
//
//	err := service.Execute(ctx, "user.create", func(ctx context.Context, uow *adminkit.UnitOfWork) error {
//	    users, err := adminkit.GetRepository[adminkit.User](uow)
//	    if err != nil {
//	        return err
//	    }
//	    return users.Add(ctx, &adminkit.User{UserName: "bob"})
//	})
func (s *Service) Execute(ctx context.Context, operation string, fn UnitOfWorkFunc, opts ...UnitOfWorkOption) error {
	if err := s.Authorize(ctx, operation); err != nil {
		return err
	}

	if principal := GetPrincipal(ctx); principal.TenantID != "" {
		if _, ok := tenantOverride(ctx); !ok {
			ctx = WithTenantID(ctx, principal.TenantID)
		}
	}
	return s.WithinUnitOfWork(ctx, s.isolation, fn, opts...)
}

// VisibleMenus returns the menus the principal may see, ordered by
// sort_order. A menu is visible when its permission code is empty or granted
// and its parent, if any, is visible.
func (s *Service) VisibleMenus(ctx context.Context, principal *Principal) ([]Menu, error) {
	uow := s.NewUnitOfWork(ctx)
	defer uow.Close()

	menus, err := GetRepository[Menu](uow)
	if err != nil {
		return nil, err
	}
	all, err := menus.Find(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.hidden = FALSE").
			OrderExpr("?TableAlias.sort_order ASC, ?TableAlias.title ASC")
	})
	if err != nil {
		return nil, err
	}

	return filterMenus(all, principal), nil
}

func filterMenus(all []Menu, principal *Principal) []Menu {
	byID := make(map[string]*Menu, len(all))
	for i := range all {
		byID[all[i].ID] = &all[i]
	}

	visible := make(map[string]bool, len(all))
	var check func(m *Menu, depth int) bool
	check = func(m *Menu, depth int) bool {
		if v, ok := visible[m.ID]; ok {
			return v
		}
		ok := m.PermissionCode == ""
		if !ok {
			req, err := Single(m.PermissionCode)
			ok = err == nil && Evaluate(principal, req)
		}
		if ok && m.ParentID != "" {
			parent, found := byID[m.ParentID]
			ok = found && depth < len(all) && check(parent, depth+1)
		}
		visible[m.ID] = ok
		return ok
	}

	result := make([]Menu, 0, len(all))
	for i := range all {
		if check(&all[i], 0) {
			result = append(result, all[i])
		}
	}
	return result
}
