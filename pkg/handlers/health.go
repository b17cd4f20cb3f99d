package handlers

import (
	"net/http"
	"time"

	"formflow-backend/pkg/config"
	"formflow-backend/pkg/database"
	"formflow-backend/pkg/utils"
)

const serviceName = "formflow-backend"

type HealthHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewHealthHandler(cfg *config.Config, db database.DatabaseInterface) *HealthHandler {
	return &HealthHandler{config: cfg, db: db}
}

// HealthCheck reports service and store status
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	dbStatus := "healthy"
	if err := h.db.HealthCheck(r.Context()); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"service":     serviceName,
		"version":     "1.0.0",
		"environment": h.config.Environment,
		"database":    h.storeBackend(),
		"db_status":   dbStatus,
		"timestamp":   time.Now().Unix(),
		"status":      "healthy",
	})
}

// PoolStats exposes connection pool state; mounted only in development
func (h *HealthHandler) PoolStats(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, database.GetConnectionStats())
}

func (h *HealthHandler) storeBackend() string {
	if h.config.StoreBackend == "" {
		return "local"
	}
	return h.config.StoreBackend
}
