package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/featureboard/backend/internal/models"
	"github.com/featureboard/backend/internal/policy"
	"gorm.io/gorm"
)

// Sort orders accepted by List.
const (
	SortVotes  = "votes"
	SortNewest = "newest"
	SortOldest = "oldest"
)

const statusAll = "ALL"

// FeatureView is a feature request as presented to a viewer.
type FeatureView struct {
	models.FeatureRequest
	VoteCount    int64  `json:"vote_count"`
	CreatorName  string `json:"creator_name"`
	CreatorEmail string `json:"creator_email,omitempty"`
	HasVoted     *bool  `json:"has_voted,omitempty"`
}

type ListFilter struct {
	Status string `form:"status"`
	Sort   string `form:"sort"`
}

// VotedFeature is one entry of a user's voting history.
type VotedFeature struct {
	VoteID  string      `json:"vote_id"`
	VotedAt time.Time   `json:"voted_at"`
	Feature FeatureView `json:"feature"`
}

type Profile struct {
	User     *models.User   `json:"user"`
	Features []FeatureView  `json:"features"`
	Votes    []VotedFeature `json:"votes"`
}

type ListingService struct {
	db     *gorm.DB
	policy policy.Policy
}

func NewListingService(db *gorm.DB, p policy.Policy) *ListingService {
	return &ListingService{db: db, policy: p}
}

// List returns feature requests matching filter, ordered by filter.Sort.
// Vote counts are computed fresh on every call.
func (s *ListingService) List(ctx context.Context, filter ListFilter, viewerID string) ([]FeatureView, error) {
	query := s.db.WithContext(ctx).Preload("User")

	switch filter.Status {
	case "", statusAll:
	default:
		status, err := ParseStatus(filter.Status)
		if err != nil {
			return nil, err
		}
		query = query.Where("status = ?", status)
	}

	order := filter.Sort
	if order == "" {
		order = SortVotes
	}
	if order != SortVotes && order != SortNewest && order != SortOldest {
		return nil, validationError(fmt.Sprintf("invalid sort %q", filter.Sort))
	}

	var features []models.FeatureRequest
	if err := query.Find(&features).Error; err != nil {
		return nil, persistenceError("list features", err)
	}

	views, err := buildViews(ctx, s.db, features, viewerID, false)
	if err != nil {
		return nil, err
	}
	sortViews(views, order)
	return views, nil
}

// AdminList returns every feature request newest first with creator e-mail.
func (s *ListingService) AdminList(ctx context.Context, actor *policy.Identity) ([]FeatureView, error) {
	if err := policy.Authorize(s.policy, actor, policy.ActionListAdminData, policy.Resource{Kind: "feature"}); err != nil {
		return nil, authorizationError(err)
	}

	var features []models.FeatureRequest
	if err := s.db.WithContext(ctx).Preload("User").Find(&features).Error; err != nil {
		return nil, persistenceError("list features", err)
	}

	views, err := buildViews(ctx, s.db, features, "", true)
	if err != nil {
		return nil, err
	}
	sortViews(views, SortNewest)
	return views, nil
}

// Profile collects a user's own requests and the requests they voted for.
func (s *ListingService) Profile(ctx context.Context, userID string) (*Profile, error) {
	db := s.db.WithContext(ctx)

	var user models.User
	err := db.First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("user not found")
	}
	if err != nil {
		return nil, persistenceError("load user", err)
	}

	var own []models.FeatureRequest
	if err := db.Preload("User").Where("user_id = ?", userID).Find(&own).Error; err != nil {
		return nil, persistenceError("list own features", err)
	}
	ownViews, err := buildViews(ctx, s.db, own, userID, false)
	if err != nil {
		return nil, err
	}
	sortViews(ownViews, SortNewest)

	var votes []models.Vote
	if err := db.Preload("FeatureRequest.User").
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id").
		Find(&votes).Error; err != nil {
		return nil, persistenceError("list votes", err)
	}

	voted := make([]models.FeatureRequest, 0, len(votes))
	for _, v := range votes {
		if v.FeatureRequest != nil {
			voted = append(voted, *v.FeatureRequest)
		}
	}
	votedViews, err := buildViews(ctx, s.db, voted, userID, false)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]FeatureView, len(votedViews))
	for _, v := range votedViews {
		byID[v.ID] = v
	}

	history := make([]VotedFeature, 0, len(votes))
	for _, v := range votes {
		view, ok := byID[v.FeatureRequestID]
		if !ok {
			continue
		}
		history = append(history, VotedFeature{VoteID: v.ID, VotedAt: v.CreatedAt, Feature: view})
	}

	return &Profile{User: &user, Features: ownViews, Votes: history}, nil
}

// buildViews attaches vote counts, creator details and, for a non-empty
// viewerID, the has_voted flag. Creators must be preloaded.
func buildViews(ctx context.Context, db *gorm.DB, features []models.FeatureRequest, viewerID string, withEmail bool) ([]FeatureView, error) {
	views := make([]FeatureView, 0, len(features))
	if len(features) == 0 {
		return views, nil
	}

	ids := make([]string, len(features))
	for i, f := range features {
		ids[i] = f.ID
	}

	type countRow struct {
		FeatureRequestID string
		VoteCount        int64
	}
	var rows []countRow
	if err := db.WithContext(ctx).Model(&models.Vote{}).
		Select("feature_request_id, COUNT(*) AS vote_count").
		Where("feature_request_id IN ?", ids).
		Group("feature_request_id").
		Scan(&rows).Error; err != nil {
		return nil, persistenceError("count votes", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.FeatureRequestID] = r.VoteCount
	}

	var voted map[string]bool
	if viewerID != "" {
		var votedIDs []string
		if err := db.WithContext(ctx).Model(&models.Vote{}).
			Where("user_id = ? AND feature_request_id IN ?", viewerID, ids).
			Pluck("feature_request_id", &votedIDs).Error; err != nil {
			return nil, persistenceError("load viewer votes", err)
		}
		voted = make(map[string]bool, len(votedIDs))
		for _, id := range votedIDs {
			voted[id] = true
		}
	}

	for _, f := range features {
		v := FeatureView{
			FeatureRequest: f,
			VoteCount:      counts[f.ID],
			CreatorName:    "Unknown",
		}
		if f.User != nil {
			v.CreatorName = f.User.DisplayName()
			if withEmail {
				v.CreatorEmail = f.User.Email
			}
		}
		if voted != nil {
			has := voted[f.ID]
			v.HasVoted = &has
		}
		if v.Attachments == nil {
			v.Attachments = []string{}
		}
		views = append(views, v)
	}
	return views, nil
}

// sortViews orders views totally: ties fall back to created_at descending
// and finally to id.
func sortViews(views []FeatureView, order string) {
	newerFirst := func(a, b *FeatureView) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	}

	sort.SliceStable(views, func(i, j int) bool {
		a, b := &views[i], &views[j]
		switch order {
		case SortOldest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		case SortNewest:
			return newerFirst(a, b)
		default:
			if a.VoteCount != b.VoteCount {
				return a.VoteCount > b.VoteCount
			}
			return newerFirst(a, b)
		}
	})
}
