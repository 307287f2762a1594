package adminkit

import (
	"fmt"
	"slices"
	"sync"
)

// PolicyRegistry holds the permission requirement of every operation.
// It is filled at startup and should be treated as immutable afterwards;
// lookups are safe for concurrent use.
type PolicyRegistry struct {
	mu         sync.RWMutex
	operations map[string]*OperationPolicy
}

// OperationPolicy is the requirement declared for one operation.
type OperationPolicy struct {
	name        string
	description string
	requirement Requirement
	registry    *PolicyRegistry
}

// NewPolicyRegistry creates an empty policy registry.
func NewPolicyRegistry() *PolicyRegistry {
	return &PolicyRegistry{
		operations: make(map[string]*OperationPolicy),
	}
}

// Operation starts declaring the policy of an operation.
// Returns an OperationPolicy builder for fluent configuration.
//
// Example:
//
//	policies.Operation("user.create").RequirePermission("system:user:add").
//	    Operation("user.list").RequireAnyPermission("system:user:list", "system:user:*").
//	    Operation("role.grant").RequireAllPermissions("system:role:edit", "system:permission:list")
func (r *PolicyRegistry) Operation(name string) *OperationPolicy {
	r.mu.Lock()
	defer r.mu.Unlock()

	if op, ok := r.operations[name]; ok {
		return op
	}
	op := &OperationPolicy{name: name, registry: r}
	r.operations[name] = op
	return op
}

// Register sets the requirement of an operation directly.
func (r *PolicyRegistry) Register(name string, req Requirement) error {
	if name == "" {
		return fmt.Errorf("%w: operation name cannot be empty", ErrUnknownOperation)
	}
	if req.IsZero() {
		return NewError(ErrInvalidPermission, "operation "+name+" has no requirement")
	}
	r.Operation(name).set(req)
	return nil
}

// Requirement returns the requirement of an operation.
func (r *PolicyRegistry) Requirement(name string) (Requirement, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	op, ok := r.operations[name]
	if !ok || op.requirement.IsZero() {
		return Requirement{}, false
	}
	return op.requirement, true
}

// Lookup returns the requirement of an operation or ErrUnknownOperation.
func (r *PolicyRegistry) Lookup(name string) (Requirement, error) {
	req, ok := r.Requirement(name)
	if !ok {
		return Requirement{}, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
	return req, nil
}

// Operations returns all declared operation names, sorted.
func (r *PolicyRegistry) Operations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.operations))
	for name := range r.operations {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Validate checks that every declared operation has a requirement.
func (r *PolicyRegistry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, op := range r.operations {
		if op.requirement.IsZero() {
			return fmt.Errorf("%w: operation %q has no requirement", ErrInvalidPermission, name)
		}
	}
	return nil
}

// RequirePermission declares a Single requirement. Panics on an empty code.
func (o *OperationPolicy) RequirePermission(code string) *OperationPolicy {
	o.set(MustSingle(code))
	return o
}

// RequireAnyPermission declares an AnyOf requirement. Panics on empty input.
func (o *OperationPolicy) RequireAnyPermission(codes ...string) *OperationPolicy {
	o.set(MustAnyOf(codes...))
	return o
}

// RequireAllPermissions declares an AllOf requirement. Panics on empty input.
func (o *OperationPolicy) RequireAllPermissions(codes ...string) *OperationPolicy {
	o.set(MustAllOf(codes...))
	return o
}

// Describe attaches a human readable description.
func (o *OperationPolicy) Describe(description string) *OperationPolicy {
	o.registry.mu.Lock()
	o.description = description
	o.registry.mu.Unlock()
	return o
}

// Operation continues declaring operations on the registry (fluent API).
func (o *OperationPolicy) Operation(name string) *OperationPolicy {
	return o.registry.Operation(name)
}

// Name returns the operation name.
func (o *OperationPolicy) Name() string {
	return o.name
}

// Description returns the operation description.
func (o *OperationPolicy) Description() string {
	o.registry.mu.RLock()
	defer o.registry.mu.RUnlock()
	return o.description
}

// GetRequirement returns the declared requirement.
func (o *OperationPolicy) GetRequirement() Requirement {
	o.registry.mu.RLock()
	defer o.registry.mu.RUnlock()
	return o.requirement
}

func (o *OperationPolicy) set(req Requirement) {
	o.registry.mu.Lock()
	o.requirement = req
	o.registry.mu.Unlock()
}
