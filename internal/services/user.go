package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/featureboard/backend/internal/config"
	"github.com/featureboard/backend/internal/models"
	"github.com/featureboard/backend/internal/policy"
	"github.com/featureboard/backend/pkg/logger"
	"gorm.io/gorm"
)

type UserService struct {
	db           *gorm.DB
	policy       policy.Policy
	queue        TaskQueue
	deletePolicy string
}

func NewUserService(db *gorm.DB, p policy.Policy, queue TaskQueue, cfg *config.UserConfig) *UserService {
	return &UserService{
		db:           db,
		policy:       p,
		queue:        queue,
		deletePolicy: cfg.DeletePolicy,
	}
}

type UserView struct {
	models.User
	IsAdmin      bool  `json:"is_admin"`
	FeatureCount int64 `json:"feature_count"`
	VoteCount    int64 `json:"vote_count"`
}

type BulkDeleteResult struct {
	Deleted int64 `json:"deleted"`
	Skipped int64 `json:"skipped"`
}

// IdentityOf returns the policy identity for a stored user.
func IdentityOf(u *models.User) *policy.Identity {
	return &policy.Identity{ID: u.ID, Email: u.Email, Role: string(u.Role)}
}

func (s *UserService) List(ctx context.Context, actor *policy.Identity) ([]UserView, error) {
	if err := policy.Authorize(s.policy, actor, policy.ActionListAdminData, policy.Resource{Kind: "user"}); err != nil {
		return nil, authorizationError(err)
	}

	db := s.db.WithContext(ctx)

	var users []models.User
	if err := db.Order("created_at DESC").Order("id").Find(&users).Error; err != nil {
		return nil, persistenceError("list users", err)
	}

	featureCounts, err := countByUser(db, &models.FeatureRequest{})
	if err != nil {
		return nil, persistenceError("count features", err)
	}
	voteCounts, err := countByUser(db, &models.Vote{})
	if err != nil {
		return nil, persistenceError("count votes", err)
	}

	views := make([]UserView, 0, len(users))
	for i := range users {
		u := users[i]
		views = append(views, UserView{
			User:         u,
			IsAdmin:      policy.IsAdmin(s.policy, IdentityOf(&u)),
			FeatureCount: featureCounts[u.ID],
			VoteCount:    voteCounts[u.ID],
		})
	}
	return views, nil
}

func countByUser(db *gorm.DB, model interface{}) (map[string]int64, error) {
	type row struct {
		UserID string
		Total  int64
	}
	var rows []row
	if err := db.Model(model).Select("user_id, COUNT(*) AS total").Group("user_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.UserID] = r.Total
	}
	return out, nil
}

// Delete removes one non-admin user and handles their content according to
// users.delete_policy.
func (s *UserService) Delete(ctx context.Context, userID string, actor *policy.Identity) error {
	res := policy.Resource{Kind: "user", ID: userID}
	if err := policy.Authorize(s.policy, actor, policy.ActionDeleteUser, res); err != nil {
		return authorizationError(err)
	}
	if userID == actor.ID {
		return validationError("you cannot delete your own account")
	}

	var locators []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.First(&user, "id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError("user not found")
		}
		if err != nil {
			return persistenceError("load user", err)
		}
		if user.Email == models.DeletedUserEmail {
			return validationError("the deleted user placeholder cannot be removed")
		}
		if policy.IsAdmin(s.policy, IdentityOf(&user)) {
			return &Error{Kind: KindForbidden, Message: "admin accounts cannot be deleted"}
		}

		locators, err = s.removeUser(tx, &user)
		return err
	})
	if err != nil {
		return err
	}

	logger.Info().Str("user_id", userID).Str("actor", actor.Email).Str("policy", s.deletePolicy).Msg("user deleted")
	s.purge(ctx, locators)
	return nil
}

// DeleteAllNonAdmin removes every user the policy does not consider admin.
// Under the forbid policy users that still own content are skipped.
func (s *UserService) DeleteAllNonAdmin(ctx context.Context, actor *policy.Identity) (*BulkDeleteResult, error) {
	if err := policy.Authorize(s.policy, actor, policy.ActionDeleteUser, policy.Resource{Kind: "user"}); err != nil {
		return nil, authorizationError(err)
	}

	result := &BulkDeleteResult{}
	var locators []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var users []models.User
		if err := tx.Find(&users).Error; err != nil {
			return persistenceError("list users", err)
		}

		for i := range users {
			u := &users[i]
			if u.ID == actor.ID || u.Email == models.DeletedUserEmail || policy.IsAdmin(s.policy, IdentityOf(u)) {
				continue
			}
			removed, err := s.removeUser(tx, u)
			if errors.Is(err, ErrValidation) && s.deletePolicy == config.DeletePolicyForbid {
				result.Skipped++
				continue
			}
			if err != nil {
				return err
			}
			locators = append(locators, removed...)
			result.Deleted++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Warn().
		Int64("deleted", result.Deleted).
		Int64("skipped", result.Skipped).
		Str("actor", actor.Email).
		Msg("non-admin users deleted")
	s.purge(ctx, locators)
	return result, nil
}

// removeUser deletes u inside tx and returns attachment locators that are no
// longer referenced.
func (s *UserService) removeUser(tx *gorm.DB, u *models.User) ([]string, error) {
	switch s.deletePolicy {
	case config.DeletePolicyForbid:
		var features, votes int64
		if err := tx.Model(&models.FeatureRequest{}).Where("user_id = ?", u.ID).Count(&features).Error; err != nil {
			return nil, persistenceError("count features", err)
		}
		if err := tx.Model(&models.Vote{}).Where("user_id = ?", u.ID).Count(&votes).Error; err != nil {
			return nil, persistenceError("count votes", err)
		}
		if features > 0 || votes > 0 {
			return nil, validationError(fmt.Sprintf("user %s still owns %d feature requests and %d votes", u.Email, features, votes))
		}

	case config.DeletePolicyReassign:
		placeholder, err := deletedUserPlaceholder(tx)
		if err != nil {
			return nil, err
		}
		if err := tx.Model(&models.FeatureRequest{}).Where("user_id = ?", u.ID).Update("user_id", placeholder.ID).Error; err != nil {
			return nil, persistenceError("reassign features", err)
		}
		if err := tx.Where("user_id = ?", u.ID).Delete(&models.Vote{}).Error; err != nil {
			return nil, persistenceError("delete votes", err)
		}

	default:
		var features []models.FeatureRequest
		if err := tx.Select("id", "attachments").Where("user_id = ?", u.ID).Find(&features).Error; err != nil {
			return nil, persistenceError("load features", err)
		}
		var locators []string
		ids := make([]string, 0, len(features))
		for _, f := range features {
			ids = append(ids, f.ID)
			locators = append(locators, f.Attachments...)
		}

		if err := tx.Where("user_id = ?", u.ID).Delete(&models.Vote{}).Error; err != nil {
			return nil, persistenceError("delete votes", err)
		}
		if len(ids) > 0 {
			if err := tx.Where("feature_request_id IN ?", ids).Delete(&models.Vote{}).Error; err != nil {
				return nil, persistenceError("delete votes", err)
			}
			if err := tx.Where("id IN ?", ids).Delete(&models.FeatureRequest{}).Error; err != nil {
				return nil, persistenceError("delete features", err)
			}
		}
		if err := tx.Delete(&models.User{}, "id = ?", u.ID).Error; err != nil {
			return nil, persistenceError("delete user", err)
		}
		return locators, nil
	}

	if err := tx.Delete(&models.User{}, "id = ?", u.ID).Error; err != nil {
		return nil, persistenceError("delete user", err)
	}
	return nil, nil
}

// deletedUserPlaceholder returns the account that inherits reassigned
// features, creating it on first use. It has no password and cannot log in.
func deletedUserPlaceholder(tx *gorm.DB) (*models.User, error) {
	placeholder := models.User{
		Email:    models.DeletedUserEmail,
		Name:     "Deleted user",
		Role:     models.RoleUser,
		AuthType: models.AuthTypeLocal,
	}
	if err := tx.Where(models.User{Email: models.DeletedUserEmail}).FirstOrCreate(&placeholder).Error; err != nil {
		return nil, persistenceError("create placeholder user", err)
	}
	return &placeholder, nil
}

// SetRole changes a user's role directly. It is not exposed over HTTP.
func (s *UserService) SetRole(ctx context.Context, email string, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, validationError(fmt.Sprintf("invalid role %q", role))
	}

	var user models.User
	db := s.db.WithContext(ctx)
	err := db.First(&user, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("user not found")
	}
	if err != nil {
		return nil, persistenceError("load user", err)
	}

	if err := db.Model(&user).Update("role", role).Error; err != nil {
		return nil, persistenceError("update role", err)
	}
	user.Role = role
	logger.Info().Str("user_id", user.ID).Str("role", string(role)).Msg("user role changed")
	return &user, nil
}

func (s *UserService) purge(ctx context.Context, locators []string) {
	if len(locators) == 0 || s.queue == nil {
		return
	}
	if err := s.queue.Enqueue(ctx, TaskTypeAttachmentPurge, &AttachmentPurgeTask{Locators: locators}); err != nil {
		logger.Errorf("[User] Failed to enqueue attachment purge: %v", err)
	}
}
