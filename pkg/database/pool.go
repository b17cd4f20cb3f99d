package database

import (
	"context"
	"sync"
	"time"

	"formflow-backend/pkg/logging"
)

// DatabasePool caches one opened store per process so warm serverless invocations reuse it
type DatabasePool struct {
	instance DatabaseInterface
	config   DatabaseConfig
	mu       sync.RWMutex
	lastUsed time.Time
}

var (
	globalPool *DatabasePool
	poolMutex  sync.Mutex
)

// GetDatabase returns the cached store, reopening it when the config changed,
// the connection sat idle too long or a health check fails
func GetDatabase(ctx context.Context, config DatabaseConfig) (DatabaseInterface, error) {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	log := logging.Logger()
	if globalPool != nil && !shouldRecreateConnection(ctx, globalPool, config) {
		globalPool.mu.Lock()
		globalPool.lastUsed = time.Now()
		globalPool.mu.Unlock()
		log.Debug("reusing existing database connection")
		return globalPool.instance, nil
	}

	log.WithField("backend", config.Backend).Info("opening database connection")
	if globalPool != nil && globalPool.instance != nil {
		globalPool.instance.Close()
		globalPool = nil
	}

	instance, err := NewDatabase(ctx, config)
	if err != nil {
		return nil, err
	}
	globalPool = &DatabasePool{
		instance: instance,
		config:   config,
		lastUsed: time.Now(),
	}
	return instance, nil
}

func shouldRecreateConnection(ctx context.Context, pool *DatabasePool, newConfig DatabaseConfig) bool {
	if pool == nil || pool.instance == nil {
		return true
	}
	log := logging.Logger()

	if pool.config != newConfig {
		log.Info("database configuration changed, recreating connection")
		return true
	}

	pool.mu.RLock()
	expired := time.Since(pool.lastUsed) > 30*time.Minute
	pool.mu.RUnlock()
	if expired {
		log.Info("database connection expired, recreating")
		return true
	}

	hcCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.instance.HealthCheck(hcCtx); err != nil {
		log.WithError(err).Warn("database health check failed, recreating")
		return true
	}
	return false
}

// CloseDatabase closes the cached store, if any
func CloseDatabase() error {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil {
		return nil
	}
	err := globalPool.instance.Close()
	globalPool = nil
	return err
}

// GetConnectionStats reports pool state for the health endpoint
func GetConnectionStats() map[string]interface{} {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil {
		return map[string]interface{}{
			"status":    "no_connection",
			"last_used": nil,
		}
	}

	globalPool.mu.RLock()
	lastUsed := globalPool.lastUsed
	globalPool.mu.RUnlock()

	stats := map[string]interface{}{
		"status":    "connected",
		"backend":   globalPool.config.Backend,
		"last_used": lastUsed.Format(time.RFC3339),
		"idle":      time.Since(lastUsed).String(),
		"redis":     globalPool.config.Redis.Addr != "",
	}
	if pg, ok := unwrap(globalPool.instance).(*PostgresDatabase); ok {
		s := pg.Stats()
		stats["open_connections"] = s.OpenConnections
		stats["in_use"] = s.InUse
	}
	return stats
}

func unwrap(db DatabaseInterface) DatabaseInterface {
	if o, ok := db.(*inviteOverlay); ok {
		return o.DatabaseInterface
	}
	return db
}
