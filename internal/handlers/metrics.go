package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/featureboard/backend/internal/models"
	"github.com/featureboard/backend/internal/services"
	"github.com/featureboard/backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var startTime = time.Now()

type MetricsHandler struct {
	db    *gorm.DB
	queue services.TaskQueue
}

func NewMetricsHandler(db *gorm.DB, queue services.TaskQueue) *MetricsHandler {
	return &MetricsHandler{db: db, queue: queue}
}

// Metrics returns Prometheus-compatible text format metrics.
// GET /metrics
func (h *MetricsHandler) Metrics(c *gin.Context) {
	var b strings.Builder

	// -- Runtime metrics --
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeGauge(&b, "featureboard_uptime_seconds", "Time since server start in seconds", time.Since(startTime).Seconds())
	writeGauge(&b, "featureboard_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
	writeGauge(&b, "featureboard_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))
	writeGauge(&b, "featureboard_gc_runs_total", "Total number of GC runs", float64(m.NumGC))

	// -- Database metrics --
	if sqlDB, err := h.db.DB(); err == nil {
		stats := sqlDB.Stats()
		writeGauge(&b, "featureboard_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
		writeGauge(&b, "featureboard_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
	}

	queueAsync := 0.0
	if h.queue != nil && h.queue.IsAsync() {
		queueAsync = 1.0
	}
	writeGauge(&b, "featureboard_queue_async_enabled", "Whether async queue (Redis) is enabled (1=yes, 0=no)", queueAsync)

	// -- Board metrics --
	db := h.db.WithContext(c.Request.Context())

	type statusCount struct {
		Status models.Status
		Total  int64
	}
	var rows []statusCount
	if err := db.Model(&models.FeatureRequest{}).Select("status, COUNT(*) AS total").Group("status").Scan(&rows).Error; err != nil {
		logger.Warnf("[Metrics] Failed to count features: %v", err)
	}
	byStatus := make(map[models.Status]int64, len(rows))
	for _, r := range rows {
		byStatus[r.Status] = r.Total
	}
	fmt.Fprintf(&b, "# HELP featureboard_feature_requests Number of feature requests by status\n")
	fmt.Fprintf(&b, "# TYPE featureboard_feature_requests gauge\n")
	for _, s := range models.Statuses {
		fmt.Fprintf(&b, "featureboard_feature_requests{status=%q} %d\n", s, byStatus[s])
	}
	b.WriteString("\n")

	var votes, users int64
	db.Model(&models.Vote{}).Count(&votes)
	db.Model(&models.User{}).Where("email <> ?", models.DeletedUserEmail).Count(&users)
	writeGauge(&b, "featureboard_votes_total", "Total number of votes", float64(votes))
	writeGauge(&b, "featureboard_users_total", "Number of registered users", float64(users))

	c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n\n", name, value)
}
