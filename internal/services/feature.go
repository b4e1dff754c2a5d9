package services

import (
	"context"
	"errors"
	"strings"

	"github.com/featureboard/backend/internal/config"
	"github.com/featureboard/backend/internal/models"
	"github.com/featureboard/backend/internal/policy"
	"github.com/featureboard/backend/pkg/logger"
	"gorm.io/gorm"
)

// FeatureService manages the lifecycle of feature requests.
type FeatureService struct {
	db          *gorm.DB
	policy      policy.Policy
	queue       TaskQueue
	transitions string
}

func NewFeatureService(db *gorm.DB, p policy.Policy, queue TaskQueue, cfg *config.FeatureConfig) *FeatureService {
	return &FeatureService{
		db:          db,
		policy:      p,
		queue:       queue,
		transitions: cfg.StatusTransitions,
	}
}

type CreateFeatureRequest struct {
	Title         string   `json:"title" form:"title"`
	Description   string   `json:"description" form:"description"`
	Justification string   `json:"justification" form:"justification"`
	Priority      string   `json:"priority" form:"priority"`
	Attachments   []string `json:"-" form:"-"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// DeleteAllResult counts the rows removed by DeleteAll.
type DeleteAllResult struct {
	Features int64 `json:"features"`
	Votes    int64 `json:"votes"`
}

func (s *FeatureService) Create(ctx context.Context, creatorID string, req *CreateFeatureRequest) (*models.FeatureRequest, error) {
	if creatorID == "" {
		return nil, &Error{Kind: KindUnauthorized, Message: "authentication required"}
	}

	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	if title == "" {
		return nil, validationError("title is required")
	}
	if description == "" {
		return nil, validationError("description is required")
	}

	feature := &models.FeatureRequest{
		Title:         title,
		Description:   description,
		Justification: strings.TrimSpace(req.Justification),
		Status:        models.StatusOpen,
		UserID:        creatorID,
		Attachments:   req.Attachments,
	}
	if feature.Attachments == nil {
		feature.Attachments = []string{}
	}
	if p := strings.ToUpper(strings.TrimSpace(req.Priority)); p != "" {
		priority := models.Priority(p)
		if !priority.Valid() {
			return nil, validationError("priority must be one of LOW, MEDIUM, HIGH")
		}
		feature.Priority = &priority
	}

	db := s.db.WithContext(ctx)

	var creators int64
	if err := db.Model(&models.User{}).Where("id = ?", creatorID).Count(&creators).Error; err != nil {
		return nil, persistenceError("load creator", err)
	}
	if creators == 0 {
		return nil, &Error{Kind: KindUnauthorized, Message: "user no longer exists"}
	}

	if err := db.Create(feature).Error; err != nil {
		return nil, persistenceError("create feature", err)
	}

	logger.Info().Str("feature_id", feature.ID).Str("user_id", creatorID).Msg("feature request created")
	return feature, nil
}

func (s *FeatureService) find(ctx context.Context, db *gorm.DB, featureID string) (*models.FeatureRequest, error) {
	var feature models.FeatureRequest
	err := db.WithContext(ctx).Preload("User").First(&feature, "id = ?", featureID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("feature request not found")
	}
	if err != nil {
		return nil, persistenceError("load feature", err)
	}
	return &feature, nil
}

// Get returns one feature request with its vote count. viewerID may be empty.
func (s *FeatureService) Get(ctx context.Context, featureID, viewerID string) (*FeatureView, error) {
	feature, err := s.find(ctx, s.db, featureID)
	if err != nil {
		return nil, err
	}
	views, err := buildViews(ctx, s.db, []models.FeatureRequest{*feature}, viewerID, false)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// UpdateStatus moves a feature request to newStatus. Concurrent updates are
// last-writer-wins.
func (s *FeatureService) UpdateStatus(ctx context.Context, featureID, newStatus string, actor *policy.Identity) (*FeatureView, error) {
	res := policy.Resource{Kind: "feature", ID: featureID}
	if err := policy.Authorize(s.policy, actor, policy.ActionUpdateStatus, res); err != nil {
		return nil, authorizationError(err)
	}

	status, err := ParseStatus(newStatus)
	if err != nil {
		return nil, err
	}

	feature, err := s.find(ctx, s.db, featureID)
	if err != nil {
		return nil, err
	}

	oldStatus := feature.Status
	changed, err := checkTransition(s.transitions, oldStatus, status)
	if err != nil {
		return nil, err
	}

	if changed {
		if err := s.db.WithContext(ctx).Model(feature).Update("status", status).Error; err != nil {
			return nil, persistenceError("update status", err)
		}
		feature.Status = status

		logger.Info().
			Str("feature_id", feature.ID).
			Str("from", string(oldStatus)).
			Str("to", string(status)).
			Str("actor", actor.Email).
			Msg("feature status changed")

		s.enqueue(ctx, TaskTypeStatusChanged, &StatusChangedTask{
			FeatureID: feature.ID,
			Title:     feature.Title,
			OldStatus: string(oldStatus),
			NewStatus: string(status),
			ChangedBy: actor.ID,
		})
	}

	views, err := buildViews(ctx, s.db, []models.FeatureRequest{*feature}, actor.ID, false)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Delete removes a feature request and its votes in one transaction.
func (s *FeatureService) Delete(ctx context.Context, featureID string, actor *policy.Identity) error {
	res := policy.Resource{Kind: "feature", ID: featureID}
	if err := policy.Authorize(s.policy, actor, policy.ActionDeleteFeature, res); err != nil {
		return authorizationError(err)
	}

	var locators []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		feature, err := s.find(ctx, tx, featureID)
		if err != nil {
			return err
		}
		if err := tx.Where("feature_request_id = ?", featureID).Delete(&models.Vote{}).Error; err != nil {
			return persistenceError("delete votes", err)
		}
		if err := tx.Delete(&models.FeatureRequest{}, "id = ?", featureID).Error; err != nil {
			return persistenceError("delete feature", err)
		}
		locators = feature.Attachments
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info().Str("feature_id", featureID).Str("actor", actor.Email).Msg("feature request deleted")
	s.purge(ctx, featureID, locators)
	return nil
}

// DeleteAll removes every vote and feature request.
func (s *FeatureService) DeleteAll(ctx context.Context, actor *policy.Identity) (*DeleteAllResult, error) {
	if err := policy.Authorize(s.policy, actor, policy.ActionDeleteFeature, policy.Resource{Kind: "feature"}); err != nil {
		return nil, authorizationError(err)
	}

	result := &DeleteAllResult{}
	var locators []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var features []models.FeatureRequest
		if err := tx.Select("id", "attachments").Find(&features).Error; err != nil {
			return persistenceError("load features", err)
		}
		for _, f := range features {
			locators = append(locators, f.Attachments...)
		}

		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		votes := all.Delete(&models.Vote{})
		if votes.Error != nil {
			return persistenceError("delete votes", votes.Error)
		}
		feats := all.Delete(&models.FeatureRequest{})
		if feats.Error != nil {
			return persistenceError("delete features", feats.Error)
		}
		result.Votes = votes.RowsAffected
		result.Features = feats.RowsAffected
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Warn().
		Int64("features", result.Features).
		Int64("votes", result.Votes).
		Str("actor", actor.Email).
		Msg("all feature requests deleted")
	s.purge(ctx, "", locators)
	return result, nil
}

func (s *FeatureService) purge(ctx context.Context, featureID string, locators []string) {
	if len(locators) == 0 {
		return
	}
	s.enqueue(ctx, TaskTypeAttachmentPurge, &AttachmentPurgeTask{FeatureID: featureID, Locators: locators})
}

// enqueue never fails the caller; the database change has already committed.
func (s *FeatureService) enqueue(ctx context.Context, taskType string, payload interface{}) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Enqueue(ctx, taskType, payload); err != nil {
		logger.Errorf("[Feature] Failed to enqueue %s: %v", taskType, err)
	}
}
