package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VoteUniqueIndex guarantees at most one vote per user and feature.
const VoteUniqueIndex = "idx_votes_user_feature"

// Vote records one user's support for a feature request
type Vote struct {
	ID               string          `gorm:"primaryKey;size:36" json:"id"`
	UserID           string          `gorm:"size:36;not null;uniqueIndex:idx_votes_user_feature,priority:1" json:"user_id"`
	FeatureRequestID string          `gorm:"size:36;not null;index;uniqueIndex:idx_votes_user_feature,priority:2" json:"feature_request_id"`
	User             *User           `gorm:"foreignKey:UserID" json:"-"`
	FeatureRequest   *FeatureRequest `gorm:"foreignKey:FeatureRequestID" json:"-"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (Vote) TableName() string { return "votes" }

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}
