package services

import (
	"context"
	"errors"
	"strings"

	"github.com/featureboard/backend/internal/models"
	"github.com/featureboard/backend/pkg/logger"
	"gorm.io/gorm"
)

// VoteService keeps at most one vote per user and feature request. The
// unique index idx_votes_user_feature is the authority; the existence checks
// only tell a deleted voter (401) apart from an unknown feature (404).
type VoteService struct {
	db *gorm.DB
}

func NewVoteService(db *gorm.DB) *VoteService {
	return &VoteService{db: db}
}

func (s *VoteService) featureExists(ctx context.Context, featureID string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.FeatureRequest{}).Where("id = ?", featureID).Count(&n).Error; err != nil {
		return persistenceError("load feature", err)
	}
	if n == 0 {
		return notFoundError("feature request not found")
	}
	return nil
}

func (s *VoteService) voterExists(ctx context.Context, userID string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
		return persistenceError("load voter", err)
	}
	if n == 0 {
		return &Error{Kind: KindUnauthorized, Message: "user no longer exists"}
	}
	return nil
}

func (s *VoteService) AddVote(ctx context.Context, userID, featureID string) (*models.Vote, error) {
	if userID == "" {
		return nil, &Error{Kind: KindUnauthorized, Message: "authentication required"}
	}
	if err := s.voterExists(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.featureExists(ctx, featureID); err != nil {
		return nil, err
	}

	vote := &models.Vote{UserID: userID, FeatureRequestID: featureID}
	err := s.db.WithContext(ctx).Create(vote).Error
	switch {
	case err == nil:
	case isDuplicateKey(err):
		return nil, &Error{Kind: KindDuplicateVote, Message: "you have already voted for this feature request"}
	case isForeignKeyViolation(err):
		// A parent vanished between the checks and the insert.
		if uerr := s.voterExists(ctx, userID); uerr != nil {
			return nil, uerr
		}
		return nil, notFoundError("feature request not found")
	default:
		return nil, persistenceError("create vote", err)
	}

	logger.Debug().Str("user_id", userID).Str("feature_id", featureID).Msg("vote added")
	return vote, nil
}

// RemoveVote is idempotent: removing a vote that does not exist succeeds.
func (s *VoteService) RemoveVote(ctx context.Context, userID, featureID string) error {
	if userID == "" {
		return &Error{Kind: KindUnauthorized, Message: "authentication required"}
	}
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND feature_request_id = ?", userID, featureID).
		Delete(&models.Vote{}).Error
	if err != nil {
		return persistenceError("delete vote", err)
	}
	return nil
}

// CountFor returns the number of votes on an existing feature request.
func (s *VoteService) CountFor(ctx context.Context, featureID string) (int64, error) {
	if err := s.featureExists(ctx, featureID); err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Vote{}).Where("feature_request_id = ?", featureID).Count(&n).Error; err != nil {
		return 0, persistenceError("count votes", err)
	}
	return n, nil
}

func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "foreign key constraint")
}
