package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/featureboard/backend/internal/models"
	"gorm.io/gorm"
)

const auditCleanupJob = "audit_cleanup"

// TryLock claims slot of job for owner. It reports false when the slot is
// already held by an unexpired claim. Expired claims of job are removed
// first.
func TryLock(ctx context.Context, db *gorm.DB, job, slot, owner string, ttl time.Duration) (bool, error) {
	db = db.WithContext(ctx)
	now := time.Now()

	if err := db.Where("job = ? AND expires_at < ?", job, now).Delete(&models.SchedulerLock{}).Error; err != nil {
		return false, fmt.Errorf("expire %s locks: %w", job, err)
	}

	lock := &models.SchedulerLock{
		Job:        job,
		Slot:       slot,
		Owner:      owner,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	err := db.Create(lock).Error
	switch {
	case err == nil:
		return true, nil
	case isDuplicateKey(err):
		return false, nil
	default:
		return false, fmt.Errorf("claim %s/%s: %w", job, slot, err)
	}
}

func lockOwner() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}
