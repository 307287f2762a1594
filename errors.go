package adminkit

import (
	"errors"
	"fmt"
)

// Sentinel errors for AdminKit operations.
var (
	// ErrInvalidPermission is returned when a permission code or requirement is empty.
	ErrInvalidPermission = errors.New("adminkit: invalid permission")

	// ErrAccessDenied is returned when a principal does not satisfy a requirement.
	ErrAccessDenied = errors.New("adminkit: access denied")

	// ErrNoPrincipal is returned when no principal is found in context.
	ErrNoPrincipal = errors.New("adminkit: no principal in context")

	// ErrUnknownOperation is returned when an operation has no registered policy.
	ErrUnknownOperation = errors.New("adminkit: unknown operation")

	// ErrTransactionActive is returned when BeginTransaction is called twice.
	ErrTransactionActive = errors.New("adminkit: transaction already active")

	// ErrNoTransaction is returned when Commit or Rollback is called without an active transaction.
	ErrNoTransaction = errors.New("adminkit: no active transaction")

	// ErrTransactionCompleted is returned when a unit of work tries to start a second transaction.
	ErrTransactionCompleted = errors.New("adminkit: transaction already completed")

	// ErrTransactionFailed is returned when a commit fails and the transaction was rolled back.
	ErrTransactionFailed = errors.New("adminkit: transaction failed")

	// ErrUnitOfWorkDisposed is returned when a closed unit of work, or a repository
	// obtained from it, is used.
	ErrUnitOfWorkDisposed = errors.New("adminkit: unit of work disposed")

	// ErrTenantChanged is returned when the tenant resolved from context differs from
	// the tenant a unit of work was opened with.
	ErrTenantChanged = errors.New("adminkit: tenant changed inside unit of work")

	// ErrInvalidPage is returned for page < 1 or page size < 1.
	ErrInvalidPage = errors.New("adminkit: invalid page request")

	// ErrTokenInvalid is returned when a bearer token cannot be validated.
	ErrTokenInvalid = errors.New("adminkit: invalid token")

	// ErrTokenExpired is returned when a bearer token is expired.
	ErrTokenExpired = errors.New("adminkit: token expired")

	// ErrRoleNotFound is returned when a role id does not name a live role of the tenant.
	ErrRoleNotFound = errors.New("adminkit: role not found")

	// ErrPermissionNotFound is returned when a permission code is not in the catalog.
	ErrPermissionNotFound = errors.New("adminkit: permission not found")

	// ErrDatabaseError is returned when a database operation fails.
	ErrDatabaseError = errors.New("adminkit: database error")
)

// Error wraps a sentinel error with additional context.
type Error struct {
	Err       error  // Underlying sentinel error
	Message   string // Additional context
	Operation string // Operation name (if applicable)
	TenantID  string // Tenant involved (if applicable)
	UserID    string // User involved (if applicable)
	RoleID    string // Role involved (if applicable)
	Cause     error  // Lower-level error that triggered this one
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Err.Error()
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the sentinel and the cause for errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// NewError creates a new Error with context.
func NewError(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
	}
}

// WithOperation adds the operation name to the error.
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithTenant adds tenant information to the error.
func (e *Error) WithTenant(tenantID string) *Error {
	e.TenantID = tenantID
	return e
}

// WithUser adds user information to the error.
func (e *Error) WithUser(userID string) *Error {
	e.UserID = userID
	return e
}

// WithRole adds role information to the error.
func (e *Error) WithRole(roleID string) *Error {
	e.RoleID = roleID
	return e
}

// WithCause attaches the lower-level error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// IsAccessDenied checks if an error is an authorization denial.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsInvalidPermission checks if an error is due to an empty permission input.
func IsInvalidPermission(err error) bool {
	return errors.Is(err, ErrInvalidPermission)
}

// IsNotFound checks if an error reports a missing role or permission.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRoleNotFound) || errors.Is(err, ErrPermissionNotFound)
}

// IsTransactionFailure checks if an error came from a failed commit.
func IsTransactionFailure(err error) bool {
	return errors.Is(err, ErrTransactionFailed)
}

// IsMisuse reports whether err signals a unit-of-work programming error.
func IsMisuse(err error) bool {
	return errors.Is(err, ErrTransactionActive) ||
		errors.Is(err, ErrNoTransaction) ||
		errors.Is(err, ErrTransactionCompleted) ||
		errors.Is(err, ErrUnitOfWorkDisposed) ||
		errors.Is(err, ErrTenantChanged)
}
