package adminkit

import (
	"time"

	"github.com/uptrace/bun"
)

// Model holds the columns every entity carries.
// Rows are never physically removed; Delete sets IsDeleted.
type Model struct {
	ID        string    `bun:"id,pk"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
	IsDeleted bool      `bun:"is_deleted,notnull,default:false"`
}

// GetModel returns the embedded Model.
func (m *Model) GetModel() *Model {
	return m
}

// TenantModel is Model plus the owning tenant.
type TenantModel struct {
	Model
	TenantID string `bun:"tenant_id,notnull,default:''"`
}

// TenantColumn marks the entity as tenant-scoped.
func (m *TenantModel) TenantColumn() *string {
	return &m.TenantID
}

// Entity is implemented by every persisted type through the embedded Model.
type Entity interface {
	GetModel() *Model
}

// TenantScoped is implemented by entities embedding TenantModel.
type TenantScoped interface {
	TenantColumn() *string
}

// User is a back-office account. Disabled users hold no permissions;
// IsSuperAdmin users hold every permission.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`
	TenantModel

	UserName     string `bun:"user_name,notnull"`
	DisplayName  string `bun:"display_name"`
	Email        string `bun:"email"`
	DepartmentID string `bun:"department_id,nullzero"`
	Disabled     bool   `bun:"disabled,notnull,default:false"`
	IsSuperAdmin bool   `bun:"is_super_admin,notnull,default:false"`
}

// Role groups permissions. A disabled role grants nothing.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:r"`
	TenantModel

	Code        string `bun:"code,notnull"`
	Name        string `bun:"name,notnull"`
	Description string `bun:"description"`
	Disabled    bool   `bun:"disabled,notnull,default:false"`
	SortOrder   int    `bun:"sort_order,notnull,default:0"`
}

// Permission is a grantable permission code such as "system:user:add".
// Permissions are global.
type Permission struct {
	bun.BaseModel `bun:"table:permissions,alias:p"`
	Model

	Code        string `bun:"code,notnull"`
	Name        string `bun:"name"`
	Description string `bun:"description"`
}

// PermissionCode parses the stored code.
func (p *Permission) PermissionCode() PermissionCode {
	return ParsePermission(p.Code)
}

// UserRole links a user to a role.
type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:ur"`
	TenantModel

	UserID string `bun:"user_id,notnull"`
	RoleID string `bun:"role_id,notnull"`
}

// RolePermission links a role to a permission.
type RolePermission struct {
	bun.BaseModel `bun:"table:role_permissions,alias:rp"`
	TenantModel

	RoleID       string `bun:"role_id,notnull"`
	PermissionID string `bun:"permission_id,notnull"`
}

// Department is a node of the organisation tree.
type Department struct {
	bun.BaseModel `bun:"table:departments,alias:d"`
	TenantModel

	ParentID  string `bun:"parent_id,nullzero"`
	Name      string `bun:"name,notnull"`
	Leader    string `bun:"leader"`
	SortOrder int    `bun:"sort_order,notnull,default:0"`
}

// Menu is a navigation entry. An empty PermissionCode makes it public.
// Menus are global.
type Menu struct {
	bun.BaseModel `bun:"table:menus,alias:m"`
	Model

	ParentID       string `bun:"parent_id,nullzero"`
	Title          string `bun:"title,notnull"`
	Path           string `bun:"path"`
	Icon           string `bun:"icon"`
	PermissionCode string `bun:"permission_code"`
	SortOrder      int    `bun:"sort_order,notnull,default:0"`
	Hidden         bool   `bun:"hidden,notnull,default:false"`
}

// Dictionary is a typed key/value lookup entry (status lists, enums, ...).
type Dictionary struct {
	bun.BaseModel `bun:"table:dictionaries,alias:dict"`
	TenantModel

	Type      string `bun:"type,notnull"`
	Key       string `bun:"key,notnull"`
	Value     string `bun:"value,notnull"`
	SortOrder int    `bun:"sort_order,notnull,default:0"`
}

// RoleAuditLog records role assignment changes.
type RoleAuditLog struct {
	bun.BaseModel `bun:"table:role_audit_log,alias:ral"`

	ID        string    `bun:"id,pk"`
	Timestamp time.Time `bun:"timestamp,notnull,default:current_timestamp"`
	TenantID  string    `bun:"tenant_id,notnull,default:''"`

	// Who performed the action
	ActorID string `bun:"actor_id,notnull"`

	// "assigned", "removed"
	Action string `bun:"action,notnull"`

	TargetUserID string `bun:"target_user_id,notnull"`
	RoleID       string `bun:"role_id,notnull"`

	// Role ids of the target before and after the change
	PreviousRoles []string `bun:"previous_roles,type:text[],array"`
	NewRoles      []string `bun:"new_roles,type:text[],array"`

	// Request metadata for forensics
	IPAddress string `bun:"ip_address"`
	UserAgent string `bun:"user_agent"`
	RequestID string `bun:"request_id"`

	Metadata map[string]any `bun:"metadata,type:jsonb"`
}

// AuditAction represents the type of action in the audit log.
type AuditAction string

const (
	AuditActionAssigned AuditAction = "assigned"
	AuditActionRemoved  AuditAction = "removed"
)

// AuditEntry is used to create new audit log entries.
type AuditEntry struct {
	TenantID      string
	ActorID       string
	Action        AuditAction
	TargetUserID  string
	RoleID        string
	PreviousRoles []string
	NewRoles      []string
	IPAddress     string
	UserAgent     string
	RequestID     string
	Metadata      map[string]any
}

// ToModel converts an AuditEntry to a RoleAuditLog model.
func (e *AuditEntry) ToModel() *RoleAuditLog {
	return &RoleAuditLog{
		TenantID:      e.TenantID,
		ActorID:       e.ActorID,
		Action:        string(e.Action),
		TargetUserID:  e.TargetUserID,
		RoleID:        e.RoleID,
		PreviousRoles: e.PreviousRoles,
		NewRoles:      e.NewRoles,
		IPAddress:     e.IPAddress,
		UserAgent:     e.UserAgent,
		RequestID:     e.RequestID,
		Metadata:      e.Metadata,
		Timestamp:     time.Now().UTC(),
	}
}
