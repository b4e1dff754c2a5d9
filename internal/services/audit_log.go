package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/featureboard/backend/internal/models"
	"github.com/featureboard/backend/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

var auditDB *gorm.DB

func InitAuditLogger(db *gorm.DB) {
	auditDB = db
}

func LogInfo(module, action, message string, userID *string, ip, userAgent string, extra interface{}) {
	writeAudit("info", module, action, message, userID, ip, userAgent, extra)
}

func LogWarning(module, action, message string, userID *string, ip, userAgent string, extra interface{}) {
	writeAudit("warning", module, action, message, userID, ip, userAgent, extra)
}

func LogError(module, action, message string, userID *string, ip, userAgent string, extra interface{}) {
	writeAudit("error", module, action, message, userID, ip, userAgent, extra)
}

func writeAudit(level, module, action, message string, userID *string, ip, userAgent string, extra interface{}) {
	if auditDB == nil {
		return
	}

	var extraStr string
	if extra != nil {
		if b, err := json.Marshal(extra); err == nil {
			extraStr = string(b)
		}
	}

	entry := &models.AuditLog{
		Level:     level,
		Module:    module,
		Action:    action,
		Message:   message,
		UserID:    userID,
		IP:        ip,
		UserAgent: userAgent,
		Extra:     extraStr,
		CreatedAt: time.Now(),
	}
	if err := auditDB.Create(entry).Error; err != nil {
		logger.Warnf("[Audit] Failed to write entry %s/%s: %v", module, action, err)
	}
}

type AuditLogService struct {
	db *gorm.DB
}

func NewAuditLogService(db *gorm.DB) *AuditLogService {
	return &AuditLogService{db: db}
}

type AuditLogListRequest struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Level     string `form:"level"`
	Module    string `form:"module"`
	Action    string `form:"action"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	Search    string `form:"search"`
}

type AuditLogListResponse struct {
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Items    []models.AuditLog `json:"items"`
}

func (s *AuditLogService) List(ctx context.Context, req *AuditLogListRequest) (*AuditLogListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	var logs []models.AuditLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.AuditLog{})

	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.Action != "" {
		query = query.Where("action LIKE ?", "%"+req.Action+"%")
	}
	if req.StartDate != "" {
		query = query.Where("created_at >= ?", req.StartDate)
	}
	if req.EndDate != "" {
		query = query.Where("created_at <= ?", req.EndDate+" 23:59:59")
	}
	if req.Search != "" {
		query = query.Where("message LIKE ?", "%"+req.Search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, persistenceError("count audit logs", err)
	}

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, persistenceError("list audit logs", err)
	}

	return &AuditLogListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    logs,
	}, nil
}

// CleanupOldLogs deletes entries older than retentionDays and returns how
// many were removed. A non-positive retention keeps everything.
func (s *AuditLogService) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// StartAuditCleanupScheduler runs the retention cleanup on spec (cron syntax).
// The returned cron must be stopped on shutdown.
func StartAuditCleanupScheduler(db *gorm.DB, spec string, retentionDays int) (*cron.Cron, error) {
	service := NewAuditLogService(db)
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		runAuditCleanup(service, retentionDays)
	}); err != nil {
		return nil, err
	}
	c.Start()
	logger.Infof("[Audit] Cleanup scheduled (%s, retention %d days)", spec, retentionDays)
	return c, nil
}

func runAuditCleanup(service *AuditLogService, retentionDays int) {
	if retentionDays <= 0 {
		logger.Infof("[Audit] Cleanup disabled (retention_days <= 0)")
		return
	}

	ctx := context.Background()
	claimed, err := TryLock(ctx, service.db, auditCleanupJob, time.Now().Format("2006-01-02"), lockOwner(), 24*time.Hour)
	if err != nil {
		logger.Errorf("[Audit] Failed to claim cleanup run: %v", err)
		return
	}
	if !claimed {
		logger.Debug().Msg("[Audit] Cleanup already handled by another instance")
		return
	}

	deleted, err := service.CleanupOldLogs(ctx, retentionDays)
	if err != nil {
		logger.Errorf("[Audit] Failed to cleanup old logs: %v", err)
		return
	}

	if deleted > 0 {
		logger.Infof("[Audit] Cleaned up %d entries older than %d days", deleted, retentionDays)
	}
}
