package adminkit

import (
	"context"
	"sync"
)

// TenancyConfig controls how the tenant of an operation is resolved.
type TenancyConfig struct {
	Enabled          bool   `koanf:"enabled"`
	DefaultTenantID  string `koanf:"defaulttenantid"`
	RowLevelSecurity bool   `koanf:"rowlevelsecurity"`
}

// TenantResolver resolves the tenant of the current operation.
// It is safe for concurrent use; the configuration may be swapped at runtime.
type TenantResolver struct {
	mu     sync.RWMutex
	config TenancyConfig
}

// NewTenantResolver creates a resolver for the given configuration.
func NewTenantResolver(config TenancyConfig) *TenantResolver {
	return &TenantResolver{config: config}
}

// Config returns the current tenancy configuration.
func (r *TenantResolver) Config() TenancyConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

// SetConfig replaces the tenancy configuration.
func (r *TenantResolver) SetConfig(config TenancyConfig) {
	r.mu.Lock()
	r.config = config
	r.mu.Unlock()
}

// Enabled reports whether tenant isolation is on.
func (r *TenantResolver) Enabled() bool {
	return r.Config().Enabled
}

// CurrentTenantID returns the tenant of the operation carried by ctx.
// With tenancy disabled it is always "". Otherwise a tenant set with
// WithTenantID wins over the configured default.
func (r *TenantResolver) CurrentTenantID(ctx context.Context) string {
	config := r.Config()
	if !config.Enabled {
		return ""
	}
	if id, ok := tenantOverride(ctx); ok {
		return id
	}
	return config.DefaultTenantID
}
