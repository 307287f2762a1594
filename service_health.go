package adminkit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// HealthService provides health monitoring functionality as an extension to Service
type HealthService struct {
	*Service
}

// NewHealthService creates a new health service extension
func NewHealthService(service *Service) *HealthService {
	return &HealthService{Service: service}
}

// Health reports database health. A *dbkit.DBKit gives the full report with
// latency and pool statistics; other connections get a ping result.
func (hs *HealthService) Health(ctx context.Context) dbkit.HealthStatus {
	if db, ok := hs.db.(*dbkit.DBKit); ok {
		return db.Health(ctx)
	}

	if err := hs.Ping(ctx); err != nil {
		return dbkit.HealthStatus{Healthy: false, Error: err.Error()}
	}
	return dbkit.HealthStatus{Healthy: true}
}

// IsHealthy reports whether the database answers and transactions are
// within their failure and latency thresholds.
func (hs *HealthService) IsHealthy(ctx context.Context) bool {
	if !hs.IsTransactionHealthy() {
		return false
	}
	if db, ok := hs.db.(*dbkit.DBKit); ok {
		return db.IsHealthy(ctx)
	}
	return hs.Ping(ctx) == nil
}

// GetPoolStats returns connection pool statistics for monitoring.
func (hs *HealthService) GetPoolStats() dbkit.PoolStats {
	return dbkit.PoolStatsFromSQL(hs.bun.Stats())
}

// Ping performs a basic connectivity test to the database.
func (hs *HealthService) Ping(ctx context.Context) error {
	return wrapDBError(hs.bun.PingContext(ctx), "Ping")
}

var _ HealthMonitor = (*HealthService)(nil)
