package adminkit

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	red "github.com/redis/go-redis/v9"
)

// EnvPrefix prefixes environment overrides: ADMINKIT_CACHE_DRIVER -> cache.driver.
const EnvPrefix = "ADMINKIT_"

// Cache drivers.
const (
	CacheDriverNone   = "none"
	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
)

// Config is the AdminKit configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Tenancy  TenancyConfig  `koanf:"tenancy"`
	Cache    CacheConfig    `koanf:"cache"`
	Auth     AuthConfig     `koanf:"auth"`
	Log      LogConfig      `koanf:"log"`
}

type DatabaseConfig struct {
	URL  string     `koanf:"url"`
	Pool PoolConfig `koanf:"pool"`
}

type CacheConfig struct {
	Driver string        `koanf:"driver"`
	TTL    time.Duration `koanf:"ttl"`
	Redis  RedisConfig   `koanf:"redis"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

type AuthConfig struct {
	JWT JWTConfig `koanf:"jwt"`
}

type JWTConfig struct {
	SigningKey string `koanf:"signingkey"`
	Issuer     string `koanf:"issuer"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// LoadConfig reads defaults, then each YAML file that exists, then
// ADMINKIT_ environment variables. Later sources win.
func LoadConfig(configPaths ...string) (*Config, error) {
	k := koanf.New(".")

	pool := DefaultPoolConfig()
	_ = k.Load(confmap.Provider(map[string]any{
		"database.pool.maxopen":     pool.MaxOpenConnections,
		"database.pool.maxidle":     pool.MaxIdleConnections,
		"database.pool.maxlifetime": pool.ConnectionMaxLifetime.String(),
		"database.pool.maxidletime": pool.ConnectionMaxIdleTime.String(),
		"tenancy.enabled":           false,
		"cache.driver":              CacheDriverMemory,
		"cache.ttl":                 DefaultCacheTTL.String(),
		"cache.redis.addr":          "localhost:6379",
		"cache.redis.prefix":        defaultRedisCachePrefix,
		"auth.jwt.issuer":           "adminkit",
		"log.level":                 "info",
		"log.format":                "json",
	}, "."), nil)

	// YAML files are optional; a file that exists must parse
	for _, path := range configPaths {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	// ADMINKIT_TENANCY_DEFAULTTENANTID -> tenancy.defaulttenantid
	_ = k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, EnvPrefix)),
			"_", ".",
		)
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that have a closed set of choices.
func (c *Config) Validate() error {
	switch c.Cache.Driver {
	case "", CacheDriverNone, CacheDriverMemory, CacheDriverRedis:
	default:
		return fmt.Errorf("config: unknown cache driver %q", c.Cache.Driver)
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	if c.Database.Pool.MaxOpenConnections < 0 || c.Database.Pool.MaxIdleConnections < 0 {
		return fmt.Errorf("config: pool sizes must not be negative")
	}
	return nil
}

// NewCache builds the permission cache selected by the configuration.
// The "none" driver returns nil, which disables caching.
func NewCache(cfg CacheConfig) (PermissionCache, error) {
	switch cfg.Driver {
	case "", CacheDriverNone:
		return nil, nil
	case CacheDriverMemory:
		return NewMemoryPermissionCache(cfg.TTL), nil
	case CacheDriverRedis:
		client := red.NewClient(&red.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisPermissionCache(client, cfg.Redis.Prefix, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("config: unknown cache driver %q", cfg.Driver)
	}
}
