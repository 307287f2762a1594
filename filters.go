package adminkit

import "time"

// PageRequest selects one page of a query. Pages are 1-based.
type PageRequest struct {
	Page     int
	PageSize int
	// OrderBy is passed to bun's Order, e.g. "created_at DESC".
	// Defaults to created_at ascending.
	OrderBy string
}

// NewPageRequest creates a PageRequest.
func NewPageRequest(page, pageSize int) PageRequest {
	return PageRequest{Page: page, PageSize: pageSize}
}

// WithOrder sets the ordering expression.
func (p PageRequest) WithOrder(orderBy string) PageRequest {
	p.OrderBy = orderBy
	return p
}

// Validate rejects page < 1 and page size < 1.
func (p PageRequest) Validate() error {
	if p.Page < 1 || p.PageSize < 1 {
		return NewError(ErrInvalidPage, "page and page size must be at least 1")
	}
	return nil
}

// Offset returns the number of rows to skip.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// PagedResult is one page of items plus the total number of matching rows.
type PagedResult[T any] struct {
	Items      []T
	TotalCount int
	Page       int
	PageSize   int
}

// TotalPages returns the number of pages needed for TotalCount.
func (r PagedResult[T]) TotalPages() int {
	if r.PageSize <= 0 {
		return 0
	}
	return (r.TotalCount + r.PageSize - 1) / r.PageSize
}

// HasNext reports whether a later page exists.
func (r PagedResult[T]) HasNext() bool {
	return r.Page < r.TotalPages()
}

// AuditLogFilter provides options for filtering audit log queries.
type AuditLogFilter struct {
	// Filter by actor who performed the action
	ActorID string

	// Filter by target user of the action
	TargetUserID string

	// Filter by role
	RoleID string

	// Filter by action type ("assigned" or "removed")
	Action string

	// Filter by time range
	Since time.Time
	Until time.Time

	// Pagination
	Limit  int
	Offset int
}

// NewAuditLogFilter creates a new AuditLogFilter with default values.
func NewAuditLogFilter() AuditLogFilter {
	return AuditLogFilter{
		Limit: 100,
	}
}

// WithActor sets the actor ID filter.
func (f AuditLogFilter) WithActor(actorID string) AuditLogFilter {
	f.ActorID = actorID
	return f
}

// WithTargetUser sets the target user ID filter.
func (f AuditLogFilter) WithTargetUser(userID string) AuditLogFilter {
	f.TargetUserID = userID
	return f
}

// WithRole sets the role filter.
func (f AuditLogFilter) WithRole(roleID string) AuditLogFilter {
	f.RoleID = roleID
	return f
}

// WithAction sets the action filter.
func (f AuditLogFilter) WithAction(action AuditAction) AuditLogFilter {
	f.Action = string(action)
	return f
}

// WithTimeRange sets the time range filter.
func (f AuditLogFilter) WithTimeRange(since, until time.Time) AuditLogFilter {
	f.Since = since
	f.Until = until
	return f
}

// WithPagination sets both limit and offset.
func (f AuditLogFilter) WithPagination(limit, offset int) AuditLogFilter {
	f.Limit = limit
	f.Offset = offset
	return f
}
