package adminkit

import (
	"slices"
)

// PermissionSet is a deduplicated set of permission codes.
type PermissionSet map[string]struct{}

// NewPermissionSet creates a PermissionSet from codes, dropping duplicates
// and empty strings.
func NewPermissionSet(codes ...string) PermissionSet {
	set := make(PermissionSet, len(codes))
	set.Add(codes...)
	return set
}

// Add inserts codes into the set.
func (s PermissionSet) Add(codes ...string) {
	for _, code := range codes {
		if code == "" {
			continue
		}
		s[code] = struct{}{}
	}
}

// Has reports whether the exact code is in the set.
func (s PermissionSet) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// IsSuperAdmin reports whether the set holds "*:*:*".
func (s PermissionSet) IsSuperAdmin() bool {
	return s.Has(SuperAdminPermission)
}

// Len returns the number of codes.
func (s PermissionSet) Len() int {
	return len(s)
}

// Codes returns the codes sorted alphabetically.
func (s PermissionSet) Codes() []string {
	codes := make([]string, 0, len(s))
	for code := range s {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

// Grants reports whether any code in the set matches the required permission.
func (s PermissionSet) Grants(required string) bool {
	if s.IsSuperAdmin() || s.Has(required) {
		return true
	}
	for code := range s {
		if MatchPermission(code, required) {
			return true
		}
	}
	return false
}

// Principal is the caller of an operation: who they are, which tenant they
// act in and which permissions they hold. A Principal is built once per
// inbound operation and not modified afterwards.
type Principal struct {
	UserID      string
	TenantID    string // empty when the caller is not tenant-bound
	Permissions PermissionSet
}

// NewPrincipal creates a Principal. The permission set is copied.
func NewPrincipal(userID, tenantID string, permissions ...string) *Principal {
	return &Principal{
		UserID:      userID,
		TenantID:    tenantID,
		Permissions: NewPermissionSet(permissions...),
	}
}

// NewPrincipalFromSet creates a Principal from an existing PermissionSet.
func NewPrincipalFromSet(userID, tenantID string, permissions PermissionSet) *Principal {
	copied := make(PermissionSet, len(permissions))
	for code := range permissions {
		copied[code] = struct{}{}
	}
	return &Principal{
		UserID:      userID,
		TenantID:    tenantID,
		Permissions: copied,
	}
}

// IsSuperAdmin reports whether the principal holds "*:*:*".
func (p *Principal) IsSuperAdmin() bool {
	return p != nil && p.Permissions.IsSuperAdmin()
}
