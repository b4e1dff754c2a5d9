package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/featureboard/backend/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler reports database reachability and queue mode.
type HealthHandler struct {
	db    *gorm.DB
	queue services.TaskQueue
}

func NewHealthHandler(db *gorm.DB, queue services.TaskQueue) *HealthHandler {
	return &HealthHandler{db: db, queue: queue}
}

// CheckHealth returns the health status of all subsystems.
// GET /health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := http.StatusOK

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err == nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		err = sqlDB.PingContext(ctx)
		cancel()
	}
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "featureboard",
		"components": gin.H{
			"database":   dbStatus,
			"queue_mode": queueMode,
		},
	})
}
