package adminkit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Middleware provides HTTP middleware for authentication and permission checks.
type Middleware struct {
	service      *Service
	validator    TokenValidator
	errorHandler func(http.ResponseWriter, *http.Request, error)
}

// MiddlewareOption configures the Middleware.
type MiddlewareOption func(*Middleware)

// NewMiddleware creates a new Middleware instance.
//
// Example:
//
//	mw := adminkit.NewMiddleware(service, adminkit.NewJWTValidator(key, "adminkit"))
//	mux.Handle("POST /users", mw.Authenticate()(mw.Require("user.create")(createUser)))
func NewMiddleware(service *Service, validator TokenValidator, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{
		service:      service,
		validator:    validator,
		errorHandler: defaultErrorHandler,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// WithErrorHandler sets a custom error handler for middleware.
func WithErrorHandler(fn func(http.ResponseWriter, *http.Request, error)) MiddlewareOption {
	return func(m *Middleware) {
		m.errorHandler = fn
	}
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNoPrincipal), errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, ErrAccessDenied):
		writeError(w, http.StatusForbidden, "forbidden")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// Authenticate validates the bearer token, resolves the caller's effective
// permissions and stores identity, tenant, principal and checker in the
// request context.
func (m *Middleware) Authenticate() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := extractBearerToken(r)
			if err != nil {
				m.errorHandler(w, r, fmt.Errorf("%w: %v", ErrTokenInvalid, err))
				return
			}

			identity, err := m.validator.ValidateToken(token)
			if err != nil {
				m.errorHandler(w, r, err)
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			if identity.TenantID != "" {
				ctx = WithTenantID(ctx, identity.TenantID)
			}

			principal, err := m.service.BuildPrincipal(ctx, identity.UserID)
			if err != nil {
				m.service.logger.Error("building principal",
					zap.String("user_id", identity.UserID),
					zap.Error(err))
				m.errorHandler(w, r, err)
				return
			}

			ctx = WithPrincipal(ctx, principal)
			ctx = WithChecker(ctx, NewChecker(principal, m.service.policies))
			ctx = WithActorID(ctx, identity.UserID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Require creates middleware that enforces the requirement registered for
// an operation.
//
// Example:
//
//	mux.Handle("DELETE /roles/{id}", mw.Require("role.delete")(deleteRole))
func (m *Middleware) Require(operation string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := m.service.Authorize(r.Context(), operation); err != nil {
				m.errorHandler(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission creates middleware that requires a specific permission.
// Panics on an empty code.
func (m *Middleware) RequirePermission(code string) func(http.Handler) http.Handler {
	return m.requirement(MustSingle(code))
}

// RequireAnyPermission creates middleware that requires any of the permissions.
func (m *Middleware) RequireAnyPermission(codes ...string) func(http.Handler) http.Handler {
	return m.requirement(MustAnyOf(codes...))
}

// RequireAllPermissions creates middleware that requires all of the permissions.
func (m *Middleware) RequireAllPermissions(codes ...string) func(http.Handler) http.Handler {
	return m.requirement(MustAllOf(codes...))
}

func (m *Middleware) requirement(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r.Context())
			if principal == nil {
				m.errorHandler(w, r, ErrNoPrincipal)
				return
			}
			checker := NewChecker(principal, m.service.policies)
			allowed := checker.Evaluate(req)
			m.service.metrics.observeDecision(allowed)
			if !allowed {
				m.errorHandler(w, r, checker.Require(req))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// InjectAuditContext creates middleware that extracts audit information from the request
// and adds it to the context for use in role assignment operations.
//
// Example:
//
//	handler = mw.InjectAuditContext()(handler)
func (m *Middleware) InjectAuditContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			ip := r.Header.Get("X-Forwarded-For")
			if ip == "" {
				ip = r.Header.Get("X-Real-IP")
			}
			if ip == "" {
				ip = r.RemoteAddr
			}
			ctx = WithIPAddress(ctx, ip)
			ctx = WithUserAgent(ctx, r.UserAgent())

			if requestID := r.Header.Get("X-Request-ID"); requestID != "" {
				ctx = WithRequestID(ctx, requestID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", fmt.Errorf("invalid authorization header format")
	}

	return parts[1], nil
}
