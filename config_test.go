package adminkit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfigDefaults tests the built-in defaults
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultPoolConfig(), cfg.Database.Pool)
	assert.False(t, cfg.Tenancy.Enabled)
	assert.Equal(t, CacheDriverMemory, cfg.Cache.Driver)
	assert.Equal(t, DefaultCacheTTL, cfg.Cache.TTL)
	assert.Equal(t, "localhost:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, defaultRedisCachePrefix, cfg.Cache.Redis.Prefix)
	assert.Equal(t, "adminkit", cfg.Auth.JWT.Issuer)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

// TestLoadConfigFileAndEnv tests YAML files and environment overrides
func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adminkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  url: postgres://localhost/adminkit
  pool:
    maxopen: 50
tenancy:
  enabled: true
  defaulttenantid: main
cache:
  driver: none
  ttl: 30s
log:
  level: debug
  format: console
`), 0o600))

	t.Setenv("ADMINKIT_CACHE_DRIVER", "redis")
	t.Setenv("ADMINKIT_AUTH_JWT_SIGNINGKEY", "secret")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/adminkit", cfg.Database.URL)
	assert.Equal(t, 50, cfg.Database.Pool.MaxOpenConnections)
	assert.Equal(t, 5, cfg.Database.Pool.MaxIdleConnections)
	assert.Equal(t, 30*time.Minute, cfg.Database.Pool.ConnectionMaxLifetime)
	assert.Equal(t, TenancyConfig{Enabled: true, DefaultTenantID: "main"}, cfg.Tenancy)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	// Environment wins over the file
	assert.Equal(t, CacheDriverRedis, cfg.Cache.Driver)
	assert.Equal(t, "secret", cfg.Auth.JWT.SigningKey)
}

// TestLoadConfigInvalid tests rejected values
func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("ADMINKIT_CACHE_DRIVER", "memcached")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "unknown cache driver")
}

// TestLoadConfigMalformedFile tests that an existing file must parse
func TestLoadConfigMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adminkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache: [driver\n  ttl: : 5"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

// TestConfigValidate tests validation of closed choices
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "Zero config", config: Config{}},
		{name: "Redis cache", config: Config{Cache: CacheConfig{Driver: CacheDriverRedis}}},
		{name: "Unknown driver", config: Config{Cache: CacheConfig{Driver: "disk"}}, wantErr: true},
		{name: "Unknown log format", config: Config{Log: LogConfig{Format: "xml"}}, wantErr: true},
		{
			name:    "Negative pool",
			config:  Config{Database: DatabaseConfig{Pool: PoolConfig{MaxOpenConnections: -1}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

// TestNewCache tests cache construction per driver
func TestNewCache(t *testing.T) {
	cache, err := NewCache(CacheConfig{Driver: CacheDriverNone})
	require.NoError(t, err)
	assert.Nil(t, cache)

	cache, err = NewCache(CacheConfig{Driver: CacheDriverMemory, TTL: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &MemoryPermissionCache{}, cache)

	cache, err = NewCache(CacheConfig{Driver: CacheDriverRedis, Redis: RedisConfig{Addr: "localhost:6379"}})
	require.NoError(t, err)
	assert.IsType(t, &RedisPermissionCache{}, cache)

	_, err = NewCache(CacheConfig{Driver: "disk"})
	assert.Error(t, err)
}
