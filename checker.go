package adminkit

// Checker provides permission checking capabilities for a specific principal.
// It is typically created by the middleware and stored in context for use in handlers.
type Checker struct {
	principal *Principal
	policies  *PolicyRegistry
}

// NewChecker creates a new Checker for a principal.
func NewChecker(principal *Principal, policies *PolicyRegistry) *Checker {
	return &Checker{
		principal: principal,
		policies:  policies,
	}
}

// Principal returns the principal this checker is for.
func (c *Checker) Principal() *Principal {
	return c.principal
}

// UserID returns the user ID this checker is for.
func (c *Checker) UserID() string {
	if c.principal == nil {
		return ""
	}
	return c.principal.UserID
}

// HasPermission checks if the principal holds a permission matching code.
//
// Example:
//
//	if checker.HasPermission("system:user:add") {
//	    // show the "new user" button
//	}
func (c *Checker) HasPermission(code string) bool {
	req, err := Single(code)
	if err != nil {
		return false
	}
	return Evaluate(c.principal, req)
}

// HasAnyPermission checks if the principal holds any of the permissions.
//
// Example:
//
//	if checker.HasAnyPermission([]string{"system:user:edit", "system:user:add"}) {
//	    // user can write to the user list
//	}
func (c *Checker) HasAnyPermission(codes []string) bool {
	req, err := AnyOf(codes...)
	if err != nil {
		return false
	}
	return Evaluate(c.principal, req)
}

// HasAllPermissions checks if the principal holds all of the permissions.
//
// Example:
//
//	if checker.HasAllPermissions([]string{"system:role:edit", "system:permission:list"}) {
//	    // user can edit role grants
//	}
func (c *Checker) HasAllPermissions(codes []string) bool {
	req, err := AllOf(codes...)
	if err != nil {
		return false
	}
	return Evaluate(c.principal, req)
}

// Evaluate checks the principal against a requirement.
func (c *Checker) Evaluate(req Requirement) bool {
	return Evaluate(c.principal, req)
}

// Require returns an ErrAccessDenied error when the requirement is not met.
func (c *Checker) Require(req Requirement) error {
	if Evaluate(c.principal, req) {
		return nil
	}
	return NewError(ErrAccessDenied, "missing "+req.String()).WithUser(c.UserID())
}

// CanPerform checks the requirement registered for an operation.
// Unknown operations are denied.
func (c *Checker) CanPerform(operation string) bool {
	if c.policies == nil {
		return false
	}
	req, ok := c.policies.Requirement(operation)
	if !ok {
		return false
	}
	return Evaluate(c.principal, req)
}

// GetPermissions returns the principal's permission codes, sorted.
func (c *Checker) GetPermissions() []string {
	if c.principal == nil {
		return nil
	}
	return c.principal.Permissions.Codes()
}

// IsSuperAdmin reports whether the principal holds "*:*:*".
func (c *Checker) IsSuperAdmin() bool {
	return c.principal.IsSuperAdmin()
}

// IsEmpty returns true if the principal holds no permissions.
func (c *Checker) IsEmpty() bool {
	return c.principal == nil || c.principal.Permissions.Len() == 0
}
