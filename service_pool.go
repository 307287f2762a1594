package adminkit

import (
	"time"

	"go.uber.org/zap"
)

// PoolConfig holds the connection pool settings.
type PoolConfig struct {
	MaxOpenConnections    int           `koanf:"maxopen"`
	MaxIdleConnections    int           `koanf:"maxidle"`
	ConnectionMaxLifetime time.Duration `koanf:"maxlifetime"`
	ConnectionMaxIdleTime time.Duration `koanf:"maxidletime"`
}

// DefaultPoolConfig returns the pool settings used when none are configured.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConnections:    25,
		MaxIdleConnections:    5,
		ConnectionMaxLifetime: 30 * time.Minute,
		ConnectionMaxIdleTime: 5 * time.Minute,
	}
}

// PoolService provides connection pool management functionality as an extension to Service
type PoolService struct {
	*Service
}

// NewPoolService creates a new pool service extension
func NewPoolService(service *Service) *PoolService {
	return &PoolService{Service: service}
}

// ConfigureConnectionPool updates the database connection pool settings.
// Zero values are left as configured.
func (ps *PoolService) ConfigureConnectionPool(config PoolConfig) error {
	if config.MaxOpenConnections < 0 || config.MaxIdleConnections < 0 {
		return NewError(ErrDatabaseError, "pool sizes must not be negative")
	}

	ps.poolMu.Lock()
	defer ps.poolMu.Unlock()

	merged := ps.poolConfig
	if config.MaxOpenConnections > 0 {
		merged.MaxOpenConnections = config.MaxOpenConnections
	}
	if config.MaxIdleConnections > 0 {
		merged.MaxIdleConnections = config.MaxIdleConnections
	}
	if config.ConnectionMaxLifetime > 0 {
		merged.ConnectionMaxLifetime = config.ConnectionMaxLifetime
	}
	if config.ConnectionMaxIdleTime > 0 {
		merged.ConnectionMaxIdleTime = config.ConnectionMaxIdleTime
	}
	if merged.MaxIdleConnections > merged.MaxOpenConnections {
		merged.MaxIdleConnections = merged.MaxOpenConnections
	}

	ps.bun.SetMaxOpenConns(merged.MaxOpenConnections)
	ps.bun.SetMaxIdleConns(merged.MaxIdleConnections)
	ps.bun.SetConnMaxLifetime(merged.ConnectionMaxLifetime)
	ps.bun.SetConnMaxIdleTime(merged.ConnectionMaxIdleTime)
	ps.poolConfig = merged

	ps.logger.Info("connection pool configured",
		zap.Int("max_open", merged.MaxOpenConnections),
		zap.Int("max_idle", merged.MaxIdleConnections),
		zap.Duration("max_lifetime", merged.ConnectionMaxLifetime),
		zap.Duration("max_idle_time", merged.ConnectionMaxIdleTime))
	return nil
}

// GetConnectionPoolConfig returns the pool settings last applied.
func (ps *PoolService) GetConnectionPoolConfig() PoolConfig {
	ps.poolMu.Lock()
	defer ps.poolMu.Unlock()
	return ps.poolConfig
}

// ResetConnectionPool resets the connection pool to default settings.
func (ps *PoolService) ResetConnectionPool() error {
	ps.poolMu.Lock()
	ps.poolConfig = DefaultPoolConfig()
	ps.poolMu.Unlock()
	return ps.ConfigureConnectionPool(DefaultPoolConfig())
}

var _ PoolManager = (*PoolService)(nil)
