package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/datashare/internal/database"
	"github.com/weiwangfds/datashare/internal/logger"
	"gorm.io/gorm"
)

// HealthHandler liveness and database reachability
type HealthHandler struct {
	db          *gorm.DB
	environment string
}

// NewHealthHandler creates the handler
func NewHealthHandler(db *gorm.DB, environment string) *HealthHandler {
	return &HealthHandler{db: db, environment: environment}
}

// Health reports 503 when the database does not answer
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	status, dbState, code := "ok", "connected", http.StatusOK
	if err := database.Ping(h.db); err != nil {
		logger.WithError(err).Warn("health check: database unreachable")
		status, dbState, code = "degraded", "disconnected", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":      status,
		"database":    dbState,
		"environment": h.environment,
	})
}
