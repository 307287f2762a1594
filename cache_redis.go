package adminkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"
)

const defaultRedisCachePrefix = "adminkit:perms"

// RedisPermissionCache shares effective permissions between processes.
// Each user's codes live under <prefix>:u:<tenant>:<user>; a per-tenant set
// under <prefix>:index:<tenant> lets a whole tenant be dropped at once.
type RedisPermissionCache struct {
	client *red.Client
	prefix string
	ttl    time.Duration
}

// NewRedisPermissionCache constructs a Redis backed cache.
func NewRedisPermissionCache(client *red.Client, keyPrefix string, ttl time.Duration) *RedisPermissionCache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRedisCachePrefix
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisPermissionCache{client: client, prefix: prefix, ttl: ttl}
}

// Get implements PermissionCache.
func (c *RedisPermissionCache) Get(ctx context.Context, tenantID, userID string) ([]string, bool, error) {
	value, err := c.client.Get(ctx, c.userKey(tenantID, userID)).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get permissions: %w", err)
	}

	var codes []string
	if err := json.Unmarshal(value, &codes); err != nil {
		return nil, false, fmt.Errorf("decode cached permissions: %w", err)
	}
	return codes, true, nil
}

// Set implements PermissionCache.
func (c *RedisPermissionCache) Set(ctx context.Context, tenantID, userID string, codes []string) error {
	if codes == nil {
		codes = []string{}
	}
	payload, err := json.Marshal(codes)
	if err != nil {
		return fmt.Errorf("encode permissions: %w", err)
	}

	key := c.userKey(tenantID, userID)
	index := c.indexKey(tenantID)

	_, err = c.client.TxPipelined(ctx, func(pipe red.Pipeliner) error {
		pipe.Set(ctx, key, payload, c.ttl)
		pipe.SAdd(ctx, index, key)
		pipe.Expire(ctx, index, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set permissions: %w", err)
	}
	return nil
}

// InvalidateUser implements PermissionCache.
func (c *RedisPermissionCache) InvalidateUser(ctx context.Context, tenantID, userID string) error {
	key := c.userKey(tenantID, userID)
	_, err := c.client.TxPipelined(ctx, func(pipe red.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SRem(ctx, c.indexKey(tenantID), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate user permissions: %w", err)
	}
	return nil
}

// InvalidateTenant implements PermissionCache.
func (c *RedisPermissionCache) InvalidateTenant(ctx context.Context, tenantID string) error {
	index := c.indexKey(tenantID)
	keys, err := c.client.SMembers(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("redis list tenant permissions: %w", err)
	}

	keys = append(keys, index)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis invalidate tenant permissions: %w", err)
	}
	return nil
}

// InvalidateAll implements PermissionCache. Keys are found with SCAN.
func (c *RedisPermissionCache) InvalidateAll(ctx context.Context) error {
	var keys []string
	iter := c.client.Scan(ctx, 0, c.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan permissions: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis invalidate all permissions: %w", err)
	}
	return nil
}

func (c *RedisPermissionCache) userKey(tenantID, userID string) string {
	return c.prefix + ":u:" + tenantSegment(tenantID) + ":" + userID
}

func (c *RedisPermissionCache) indexKey(tenantID string) string {
	return c.prefix + ":index:" + tenantSegment(tenantID)
}

func tenantSegment(tenantID string) string {
	if tenantID == "" {
		return "_"
	}
	return tenantID
}
