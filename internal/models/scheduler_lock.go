package models

import "time"

// SchedulerLock records which instance ran a scheduled job for one slot
// (for example a calendar day). The unique index lets exactly one replica
// claim a slot.
type SchedulerLock struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Job        string    `gorm:"size:100;not null;uniqueIndex:idx_scheduler_locks_job_slot,priority:1" json:"job"`
	Slot       string    `gorm:"size:100;not null;uniqueIndex:idx_scheduler_locks_job_slot,priority:2" json:"slot"`
	Owner      string    `gorm:"size:100" json:"owner"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `gorm:"index" json:"expires_at"`
}

func (SchedulerLock) TableName() string { return "scheduler_locks" }
