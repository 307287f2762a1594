package adminkit

import (
	"context"
	"sync"
	"time"
)

// DefaultCacheTTL is how long cached permission sets live by default.
const DefaultCacheTTL = 5 * time.Minute

// PermissionCache stores effective permission codes per tenant and user.
// Implementations must be safe for concurrent use.
type PermissionCache interface {
	// Get returns the cached codes and whether they were found.
	Get(ctx context.Context, tenantID, userID string) ([]string, bool, error)
	Set(ctx context.Context, tenantID, userID string, codes []string) error
	InvalidateUser(ctx context.Context, tenantID, userID string) error
	InvalidateTenant(ctx context.Context, tenantID string) error
	// InvalidateAll drops every cached set of every tenant.
	InvalidateAll(ctx context.Context) error
}

type memoryCacheEntry struct {
	codes     []string
	expiresAt time.Time
}

// MemoryPermissionCache is an in-process PermissionCache.
type MemoryPermissionCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]map[string]memoryCacheEntry
	now     func() time.Time
}

// NewMemoryPermissionCache creates an in-process cache. A ttl <= 0 uses
// DefaultCacheTTL.
func NewMemoryPermissionCache(ttl time.Duration) *MemoryPermissionCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryPermissionCache{
		ttl:     ttl,
		entries: make(map[string]map[string]memoryCacheEntry),
		now:     time.Now,
	}
}

// Get implements PermissionCache.
func (c *MemoryPermissionCache) Get(_ context.Context, tenantID, userID string) ([]string, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[tenantID][userID]
	c.mu.RUnlock()

	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, false, nil
	}
	return append([]string(nil), entry.codes...), true, nil
}

// Set implements PermissionCache.
func (c *MemoryPermissionCache) Set(_ context.Context, tenantID, userID string, codes []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	users, ok := c.entries[tenantID]
	if !ok {
		users = make(map[string]memoryCacheEntry)
		c.entries[tenantID] = users
	}
	users[userID] = memoryCacheEntry{
		codes:     append([]string(nil), codes...),
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}

// InvalidateUser implements PermissionCache.
func (c *MemoryPermissionCache) InvalidateUser(_ context.Context, tenantID, userID string) error {
	c.mu.Lock()
	delete(c.entries[tenantID], userID)
	c.mu.Unlock()
	return nil
}

// InvalidateTenant implements PermissionCache.
func (c *MemoryPermissionCache) InvalidateTenant(_ context.Context, tenantID string) error {
	c.mu.Lock()
	delete(c.entries, tenantID)
	c.mu.Unlock()
	return nil
}

// InvalidateAll implements PermissionCache.
func (c *MemoryPermissionCache) InvalidateAll(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]map[string]memoryCacheEntry)
	c.mu.Unlock()
	return nil
}

// Len returns the number of cached users across tenants, expired ones included.
func (c *MemoryPermissionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, users := range c.entries {
		n += len(users)
	}
	return n
}
