package adminkit

import (
	"strings"
)

// RequirementKind tells how the codes of a Requirement are combined.
type RequirementKind int

const (
	// RequireSingle passes when the one code is granted.
	RequireSingle RequirementKind = iota + 1
	// RequireAnyOf passes when at least one code is granted.
	RequireAnyOf
	// RequireAllOf passes when every code is granted.
	RequireAllOf
)

// String returns the kind name.
func (k RequirementKind) String() string {
	switch k {
	case RequireSingle:
		return "single"
	case RequireAnyOf:
		return "any_of"
	case RequireAllOf:
		return "all_of"
	default:
		return "unknown"
	}
}

// Requirement is the permission policy attached to an operation.
// The zero value is invalid; build one with Single, AnyOf or AllOf.
type Requirement struct {
	kind  RequirementKind
	codes []string
}

// Single requires one permission.
func Single(code string) (Requirement, error) {
	if err := ValidatePermission(code); err != nil {
		return Requirement{}, err
	}
	return Requirement{kind: RequireSingle, codes: []string{code}}, nil
}

// AnyOf requires at least one of the permissions.
func AnyOf(codes ...string) (Requirement, error) {
	return newListRequirement(RequireAnyOf, codes)
}

// AllOf requires every one of the permissions.
func AllOf(codes ...string) (Requirement, error) {
	return newListRequirement(RequireAllOf, codes)
}

func newListRequirement(kind RequirementKind, codes []string) (Requirement, error) {
	if len(codes) == 0 {
		return Requirement{}, NewError(ErrInvalidPermission, "requirement needs at least one permission")
	}
	for _, code := range codes {
		if err := ValidatePermission(code); err != nil {
			return Requirement{}, err
		}
	}
	return Requirement{kind: kind, codes: append([]string(nil), codes...)}, nil
}

// MustSingle is like Single but panics on invalid input.
// Use it in static policy tables.
func MustSingle(code string) Requirement {
	return must(Single(code))
}

// MustAnyOf is like AnyOf but panics on invalid input.
func MustAnyOf(codes ...string) Requirement {
	return must(AnyOf(codes...))
}

// MustAllOf is like AllOf but panics on invalid input.
func MustAllOf(codes ...string) Requirement {
	return must(AllOf(codes...))
}

func must(r Requirement, err error) Requirement {
	if err != nil {
		panic(err)
	}
	return r
}

// Kind returns how the codes are combined.
func (r Requirement) Kind() RequirementKind {
	return r.kind
}

// Codes returns a copy of the required codes.
func (r Requirement) Codes() []string {
	return append([]string(nil), r.codes...)
}

// IsZero reports whether the requirement was never constructed.
func (r Requirement) IsZero() bool {
	return r.kind == 0
}

// String returns a readable form such as "all_of(system:user:add,system:role:list)".
func (r Requirement) String() string {
	return r.kind.String() + "(" + strings.Join(r.codes, ",") + ")"
}

// Evaluate decides whether the principal satisfies the requirement.
// "*:*:*" passes everything. A nil principal or a zero requirement is denied.
func Evaluate(principal *Principal, req Requirement) bool {
	if principal == nil || req.IsZero() {
		return false
	}
	if principal.IsSuperAdmin() {
		return true
	}

	switch req.kind {
	case RequireSingle:
		return principal.Permissions.Grants(req.codes[0])
	case RequireAnyOf:
		for _, code := range req.codes {
			if principal.Permissions.Grants(code) {
				return true
			}
		}
		return false
	case RequireAllOf:
		for _, code := range req.codes {
			if !principal.Permissions.Grants(code) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
