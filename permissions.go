package adminkit

import (
	"strings"
)

const (
	// Wildcard matches any value in a permission segment.
	Wildcard = "*"

	// SuperAdminPermission grants every permission.
	SuperAdminPermission = "*:*:*"

	permissionSeparator = ":"
	permissionSegments  = 3
)

// PermissionCode is a parsed "module:feature:action" permission.
type PermissionCode struct {
	Module  string
	Feature string
	Action  string
}

// NewPermissionCode builds a PermissionCode. The module is required; feature
// and action are taken as given (empty stays empty).
func NewPermissionCode(module, feature, action string) (PermissionCode, error) {
	if module == "" {
		return PermissionCode{}, NewError(ErrInvalidPermission, "permission module cannot be empty")
	}
	return PermissionCode{Module: module, Feature: feature, Action: action}, nil
}

// ParsePermission splits a code on ":" into module, feature and action.
// Missing segments are empty strings, never wildcards:
//
//	ParsePermission("system")          // {system "" ""}
//	ParsePermission("system:user:add") // {system user add}
func ParsePermission(code string) PermissionCode {
	parts := strings.SplitN(code, permissionSeparator, permissionSegments)
	var pc PermissionCode
	pc.Module = parts[0]
	if len(parts) > 1 {
		pc.Feature = parts[1]
	}
	if len(parts) > 2 {
		pc.Action = parts[2]
	}
	return pc
}

// GeneratePermission builds "module:feature:action". Omitted trailing
// segments are filled with the wildcard:
//
//	GeneratePermission("system")               // "system:*:*"
//	GeneratePermission("system", "user")       // "system:user:*"
//	GeneratePermission("system", "user", "add") // "system:user:add"
func GeneratePermission(module string, rest ...string) string {
	segments := [permissionSegments]string{module, Wildcard, Wildcard}
	for i := 0; i < len(rest) && i < permissionSegments-1; i++ {
		segments[i+1] = rest[i]
	}
	return strings.Join(segments[:], permissionSeparator)
}

// String returns the "module:feature:action" form.
func (c PermissionCode) String() string {
	return c.Module + permissionSeparator + c.Feature + permissionSeparator + c.Action
}

// IsSuperAdmin reports whether the code is "*:*:*".
func (c PermissionCode) IsSuperAdmin() bool {
	return c.Module == Wildcard && c.Feature == Wildcard && c.Action == Wildcard
}

func (c PermissionCode) segments() [permissionSegments]string {
	return [permissionSegments]string{c.Module, c.Feature, c.Action}
}

// PermissionMatcher handles permission matching with wildcard support.
//
// Matching is strictly positional over three segments. A "*" segment in the
// pattern matches any candidate segment, including an empty one. Segments
// missing from the pattern behave as "*"; segments missing from the
// candidate are empty and only a pattern "*" matches them.
type PermissionMatcher struct{}

// NewPermissionMatcher creates a new PermissionMatcher.
func NewPermissionMatcher() *PermissionMatcher {
	return &PermissionMatcher{}
}

// Match checks if a permission pattern matches a candidate permission.
//
// Examples:
//
//	Match("*:*:*", "system:user:add")           // true - super admin
//	Match("system:user:*", "system:user:add")   // true - action wildcard
//	Match("system:*:list", "system:role:list")  // true - feature wildcard
//	Match("system:user:add", "system:user:add") // true - exact match
//	Match("system:user:add", "system:user")     // false - candidate action is empty
//	Match("system:user:add", "System:user:add") // false - case sensitive
func (pm *PermissionMatcher) Match(pattern, candidate string) bool {
	if pattern == "" {
		return false
	}
	if pattern == candidate {
		return true
	}

	p := patternSegments(pattern)
	c := ParsePermission(candidate).segments()

	for i := range p {
		if p[i] == Wildcard {
			continue
		}
		if p[i] != c[i] {
			return false
		}
	}
	return true
}

// MatchAny checks if any of the patterns match the candidate permission.
func (pm *PermissionMatcher) MatchAny(patterns []string, candidate string) bool {
	for _, pattern := range patterns {
		if pm.Match(pattern, candidate) {
			return true
		}
	}
	return false
}

// ExpandPermissions returns all permissions from all that a set of patterns
// would grant. This is useful for displaying what a role can do.
func (pm *PermissionMatcher) ExpandPermissions(patterns []string, all []string) []string {
	result := make([]string, 0, len(all))
	seen := make(map[string]struct{}, len(all))

	for _, permission := range all {
		if _, ok := seen[permission]; ok {
			continue
		}
		if pm.MatchAny(patterns, permission) {
			seen[permission] = struct{}{}
			result = append(result, permission)
		}
	}
	return result
}

// Validate rejects empty permission input. Anything else is accepted
// leniently; missing segments are resolved by ParsePermission.
func (pm *PermissionMatcher) Validate(permission string) error {
	if strings.TrimSpace(permission) == "" {
		return NewError(ErrInvalidPermission, "permission cannot be empty")
	}
	return nil
}

func patternSegments(pattern string) [permissionSegments]string {
	parts := strings.SplitN(pattern, permissionSeparator, permissionSegments)
	segments := [permissionSegments]string{Wildcard, Wildcard, Wildcard}
	copy(segments[:], parts)
	return segments
}

// DefaultMatcher is the default permission matcher instance.
var DefaultMatcher = NewPermissionMatcher()

// MatchPermission is a convenience function using the default matcher.
func MatchPermission(pattern, candidate string) bool {
	return DefaultMatcher.Match(pattern, candidate)
}

// MatchAnyPermission is a convenience function using the default matcher.
func MatchAnyPermission(patterns []string, candidate string) bool {
	return DefaultMatcher.MatchAny(patterns, candidate)
}

// ValidatePermission is a convenience function using the default matcher.
func ValidatePermission(permission string) error {
	return DefaultMatcher.Validate(permission)
}
