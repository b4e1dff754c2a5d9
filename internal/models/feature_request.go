package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusPlanned    Status = "PLANNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusOpen, StatusPlanned, StatusInProgress, StatusCompleted}

func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// Rank is the position of s in the lifecycle, or -1 for an unknown status.
func (s Status) Rank() int {
	for i, st := range Statuses {
		if st == s {
			return i
		}
	}
	return -1
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// FeatureRequest is a proposal submitted by a user
type FeatureRequest struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	Title         string    `gorm:"size:200;not null" json:"title"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	Justification string    `gorm:"type:text" json:"justification,omitempty"`
	Priority      *Priority `gorm:"size:20" json:"priority,omitempty"`
	Status        Status    `gorm:"size:20;index;default:OPEN;not null" json:"status"`
	Attachments   []string  `gorm:"type:text;serializer:json" json:"attachments"`
	UserID        string    `gorm:"size:36;index;not null" json:"user_id"`
	User          *User     `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (FeatureRequest) TableName() string { return "feature_requests" }

func (f *FeatureRequest) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Status == "" {
		f.Status = StatusOpen
	}
	return nil
}
