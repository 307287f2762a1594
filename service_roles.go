package adminkit

import (
	"context"
	"reflect"
	"slices"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ============================================================================
// ROLE ASSIGNMENT OPERATIONS
// ============================================================================

// AssignRole assigns a role to a user. Assigning a role the user already
// holds is a no-op and reports false. Each change is written to the role
// audit log in the same transaction.
//
// Example:
//
//	changed, err := service.AssignRole(ctx, userID, roleID)
func (s *Service) AssignRole(ctx context.Context, userID, roleID string) (bool, error) {
	var changed bool
	err := s.Transaction(ctx, func(ctx context.Context, uow *UnitOfWork) error {
		changed = false

		if err := s.requireRole(ctx, uow, roleID); err != nil {
			return err
		}

		links, err := GetRepository[UserRole](uow)
		if err != nil {
			return err
		}
		current, err := links.Find(ctx, byColumn("user_id", userID))
		if err != nil {
			return err
		}

		previous := userRoleIDs(current)
		if slices.Contains(previous, roleID) {
			return nil
		}

		if err := links.Add(ctx, &UserRole{UserID: userID, RoleID: roleID}); err != nil {
			return err
		}
		changed = true

		return s.writeAudit(ctx, uow, AuditActionAssigned, userID, roleID, previous, append(slices.Clone(previous), roleID))
	})
	if err != nil {
		return false, err
	}

	return changed, nil
}

// RemoveRole removes a role from a user. Removing a role the user does not
// hold is a no-op and reports false.
//
// Example:
//
//	changed, err := service.RemoveRole(ctx, userID, roleID)
func (s *Service) RemoveRole(ctx context.Context, userID, roleID string) (bool, error) {
	var changed bool
	err := s.Transaction(ctx, func(ctx context.Context, uow *UnitOfWork) error {
		changed = false

		links, err := GetRepository[UserRole](uow)
		if err != nil {
			return err
		}
		current, err := links.Find(ctx, byColumn("user_id", userID))
		if err != nil {
			return err
		}

		var ids, remaining []string
		for _, link := range current {
			if link.RoleID == roleID {
				ids = append(ids, link.ID)
				continue
			}
			remaining = append(remaining, link.RoleID)
		}
		if len(ids) == 0 {
			return nil
		}

		if _, err := links.DeleteRange(ctx, ids); err != nil {
			return err
		}
		changed = true

		return s.writeAudit(ctx, uow, AuditActionRemoved, userID, roleID, userRoleIDs(current), remaining)
	})
	if err != nil {
		return false, err
	}

	return changed, nil
}

// UserRoleIDs returns the ids of the roles assigned to a user.
func (s *Service) UserRoleIDs(ctx context.Context, userID string) ([]string, error) {
	uow := s.NewUnitOfWork(ctx)
	defer uow.Close()

	links, err := GetRepository[UserRole](uow)
	if err != nil {
		return nil, err
	}
	current, err := links.Find(ctx, byColumn("user_id", userID))
	if err != nil {
		return nil, err
	}
	return userRoleIDs(current), nil
}

// ============================================================================
// ROLE GRANTS
// ============================================================================

// GrantPermission attaches a catalog permission to a role. Granting a
// permission the role already has reports false.
func (s *Service) GrantPermission(ctx context.Context, roleID, code string) (bool, error) {
	if err := ValidatePermission(code); err != nil {
		return false, err
	}

	var changed bool
	err := s.Transaction(ctx, func(ctx context.Context, uow *UnitOfWork) error {
		changed = false

		if err := s.requireRole(ctx, uow, roleID); err != nil {
			return err
		}
		permission, err := s.requirePermission(ctx, uow, code)
		if err != nil {
			return err
		}

		grants, err := GetRepository[RolePermission](uow)
		if err != nil {
			return err
		}
		exists, err := grants.Any(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.role_id = ?", roleID).
				Where("?TableAlias.permission_id = ?", permission.ID)
		})
		if err != nil || exists {
			return err
		}

		if err := grants.Add(ctx, &RolePermission{RoleID: roleID, PermissionID: permission.ID}); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return changed, nil
}

// RevokePermission detaches a permission from a role. Revoking a permission
// the role does not have reports false.
func (s *Service) RevokePermission(ctx context.Context, roleID, code string) (bool, error) {
	if err := ValidatePermission(code); err != nil {
		return false, err
	}

	var changed bool
	err := s.Transaction(ctx, func(ctx context.Context, uow *UnitOfWork) error {
		changed = false

		permissions, err := GetRepository[Permission](uow)
		if err != nil {
			return err
		}
		permission, err := permissions.FirstOrDefault(ctx, byColumn("code", code))
		if err != nil || permission == nil {
			return err
		}

		grants, err := GetRepository[RolePermission](uow)
		if err != nil {
			return err
		}
		current, err := grants.Find(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.role_id = ?", roleID).
				Where("?TableAlias.permission_id = ?", permission.ID)
		})
		if err != nil || len(current) == 0 {
			return err
		}

		ids := make([]string, 0, len(current))
		for _, grant := range current {
			ids = append(ids, grant.ID)
		}
		n, err := grants.DeleteRange(ctx, ids)
		changed = n > 0
		return err
	})
	if err != nil {
		return false, err
	}

	return changed, nil
}

// RegisterPermissions adds codes to the global permission catalog and
// returns how many were new.
func (s *Service) RegisterPermissions(ctx context.Context, codes ...string) (int, error) {
	for _, code := range codes {
		if err := ValidatePermission(code); err != nil {
			return 0, err
		}
	}

	added := 0
	err := s.Transaction(ctx, func(ctx context.Context, uow *UnitOfWork) error {
		added = 0

		permissions, err := GetRepository[Permission](uow)
		if err != nil {
			return err
		}
		existing, err := permissions.Find(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.code IN (?)", bun.In(codes))
		})
		if err != nil {
			return err
		}

		known := make(map[string]bool, len(existing))
		for _, p := range existing {
			known[p.Code] = true
		}

		var fresh []*Permission
		for _, code := range codes {
			if known[code] {
				continue
			}
			known[code] = true
			fresh = append(fresh, &Permission{Code: code, Name: code})
		}

		added, err = permissions.AddRange(ctx, fresh)
		return err
	})
	return added, err
}

// ============================================================================
// INTERNAL HELPERS
// ============================================================================

func byColumn(column string, value any) Predicate {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.? = ?", bun.Ident(column), value)
	}
}

func userRoleIDs(links []UserRole) []string {
	ids := make([]string, 0, len(links))
	for _, link := range links {
		if !slices.Contains(ids, link.RoleID) {
			ids = append(ids, link.RoleID)
		}
	}
	return ids
}

func (s *Service) requireRole(ctx context.Context, uow *UnitOfWork, roleID string) error {
	roles, err := GetRepository[Role](uow)
	if err != nil {
		return err
	}
	role, err := roles.GetByID(ctx, roleID)
	if err != nil {
		return err
	}
	if role == nil {
		return NewError(ErrRoleNotFound, "role "+roleID).
			WithRole(roleID).
			WithTenant(uow.TenantID())
	}
	return nil
}

func (s *Service) requirePermission(ctx context.Context, uow *UnitOfWork, code string) (*Permission, error) {
	permissions, err := GetRepository[Permission](uow)
	if err != nil {
		return nil, err
	}
	permission, err := permissions.FirstOrDefault(ctx, byColumn("code", code))
	if err != nil {
		return nil, err
	}
	if permission == nil {
		return nil, NewError(ErrPermissionNotFound, code)
	}
	return permission, nil
}

func (s *Service) writeAudit(ctx context.Context, uow *UnitOfWork, action AuditAction, userID, roleID string, previous, next []string) error {
	audit := GetAuditContext(ctx)
	entry := &AuditEntry{
		TenantID:      uow.TenantID(),
		ActorID:       audit.ActorID,
		Action:        action,
		TargetUserID:  userID,
		RoleID:        roleID,
		PreviousRoles: previous,
		NewRoles:      next,
		IPAddress:     audit.IPAddress,
		UserAgent:     audit.UserAgent,
		RequestID:     audit.RequestID,
	}
	if err := s.logAudit(ctx, uow.conn(), entry); err != nil {
		return NewError(ErrDatabaseError, "write audit log").
			WithOperation("LogAudit").
			WithUser(userID).
			WithRole(roleID).
			WithCause(err)
	}
	return nil
}

// ============================================================================
// CACHE INVALIDATION
// ============================================================================

// permissionEntities are the entity types whose changes can alter an
// effective permission set.
var permissionEntities = []reflect.Type{
	reflect.TypeFor[User](),
	reflect.TypeFor[Role](),
	reflect.TypeFor[UserRole](),
	reflect.TypeFor[RolePermission](),
	reflect.TypeFor[Permission](),
}

// InvalidatePermissions drops the cached permissions of one user in the
// tenant of ctx.
func (s *Service) InvalidatePermissions(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	tenantID := s.CurrentTenantID(ctx)
	if err := s.cache.InvalidateUser(ctx, tenantID, userID); err != nil {
		s.logger.Warn("permission cache invalidation failed",
			zap.String("tenant_id", tenantID),
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

// InvalidateTenantPermissions drops the cached permissions of every user in
// the tenant of ctx.
func (s *Service) InvalidateTenantPermissions(ctx context.Context) {
	s.invalidateTenant(ctx, s.CurrentTenantID(ctx))
}

func (s *Service) invalidateTenant(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateTenant(ctx, tenantID); err != nil {
		s.logger.Warn("permission cache invalidation failed",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
	}
}

func (s *Service) invalidateAll(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.Warn("permission cache invalidation failed", zap.Error(err))
	}
}

// entitiesChanged runs after a unit of work made its writes durable. The
// permission catalog is global and a bypassing unit of work may touch any
// tenant; both drop the whole cache.
func (s *Service) entitiesChanged(ctx context.Context, uow *UnitOfWork, changed []reflect.Type) {
	relevant := false
	for _, t := range changed {
		if slices.Contains(permissionEntities, t) {
			relevant = true
			break
		}
	}
	if !relevant {
		return
	}

	if uow.bypassTenant || slices.Contains(changed, reflect.TypeFor[Permission]()) {
		s.invalidateAll(ctx)
		return
	}
	s.invalidateTenant(ctx, uow.TenantID())
}
