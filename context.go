package adminkit

import (
	"context"
)

// Context keys for AdminKit values.
type contextKey string

const (
	contextKeyPrincipal    contextKey = "adminkit:principal"
	contextKeyTenantID     contextKey = "adminkit:tenant_id"
	contextKeyActorID      contextKey = "adminkit:actor_id"
	contextKeyIPAddress    contextKey = "adminkit:ip_address"
	contextKeyUserAgent    contextKey = "adminkit:user_agent"
	contextKeyRequestID    contextKey = "adminkit:request_id"
	contextKeyChecker      contextKey = "adminkit:checker"
	contextKeyTokenSubject contextKey = "adminkit:identity"
)

// WithPrincipal adds the operation's principal to the context.
func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, principal)
}

// GetPrincipal retrieves the principal from context.
// Returns nil if not set.
func GetPrincipal(ctx context.Context) *Principal {
	if v := ctx.Value(contextKeyPrincipal); v != nil {
		if p, ok := v.(*Principal); ok {
			return p
		}
	}
	return nil
}

// MustGetPrincipal retrieves the principal from context.
// Panics if not set.
func MustGetPrincipal(ctx context.Context) *Principal {
	p := GetPrincipal(ctx)
	if p == nil {
		panic("adminkit: principal not in context")
	}
	return p
}

// WithTenantID overrides the tenant for the rest of this operation.
// The override lives only in the returned context.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, contextKeyTenantID, tenantID)
}

// tenantOverride returns the tenant set with WithTenantID, if any.
func tenantOverride(ctx context.Context) (string, bool) {
	if v := ctx.Value(contextKeyTenantID); v != nil {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}

// WithIdentity stores a validated token identity.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, contextKeyTokenSubject, identity)
}

// GetIdentity retrieves the validated token identity.
func GetIdentity(ctx context.Context) *Identity {
	if v := ctx.Value(contextKeyTokenSubject); v != nil {
		if id, ok := v.(*Identity); ok {
			return id
		}
	}
	return nil
}

// WithActorID adds an actor ID to the context.
// This is the user performing the action (for audit purposes).
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, contextKeyActorID, actorID)
}

// GetActorID retrieves the actor ID from context.
// Falls back to the principal's user ID if actor ID is not explicitly set.
func GetActorID(ctx context.Context) string {
	if v := ctx.Value(contextKeyActorID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	if p := GetPrincipal(ctx); p != nil {
		return p.UserID
	}
	return ""
}

// WithIPAddress adds the client IP address to the context (for audit).
func WithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKeyIPAddress, ip)
}

// GetIPAddress retrieves the IP address from context.
func GetIPAddress(ctx context.Context) string {
	if v := ctx.Value(contextKeyIPAddress); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithUserAgent adds the user agent to the context (for audit).
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, contextKeyUserAgent, ua)
}

// GetUserAgent retrieves the user agent from context.
func GetUserAgent(ctx context.Context) string {
	if v := ctx.Value(contextKeyUserAgent); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context (for audit and correlation).
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(contextKeyRequestID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithChecker adds a Checker to the context.
// This is set by middleware and can be retrieved in handlers.
func WithChecker(ctx context.Context, checker *Checker) context.Context {
	return context.WithValue(ctx, contextKeyChecker, checker)
}

// GetChecker retrieves the Checker from context.
// Returns nil if not set.
func GetChecker(ctx context.Context) *Checker {
	if v := ctx.Value(contextKeyChecker); v != nil {
		if c, ok := v.(*Checker); ok {
			return c
		}
	}
	return nil
}

// FromContext retrieves the Checker from context.
// Alias for GetChecker for convenience.
func FromContext(ctx context.Context) *Checker {
	return GetChecker(ctx)
}

// AuditContext holds all audit-related information from context.
type AuditContext struct {
	ActorID   string
	IPAddress string
	UserAgent string
	RequestID string
}

// GetAuditContext extracts all audit information from context.
func GetAuditContext(ctx context.Context) AuditContext {
	return AuditContext{
		ActorID:   GetActorID(ctx),
		IPAddress: GetIPAddress(ctx),
		UserAgent: GetUserAgent(ctx),
		RequestID: GetRequestID(ctx),
	}
}

// WithAuditContext adds all audit information to context at once.
func WithAuditContext(ctx context.Context, ac AuditContext) context.Context {
	if ac.ActorID != "" {
		ctx = WithActorID(ctx, ac.ActorID)
	}
	if ac.IPAddress != "" {
		ctx = WithIPAddress(ctx, ac.IPAddress)
	}
	if ac.UserAgent != "" {
		ctx = WithUserAgent(ctx, ac.UserAgent)
	}
	if ac.RequestID != "" {
		ctx = WithRequestID(ctx, ac.RequestID)
	}
	return ctx
}
