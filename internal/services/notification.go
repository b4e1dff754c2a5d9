package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/featureboard/backend/internal/models"
	"github.com/featureboard/backend/pkg/logger"
	"gorm.io/gorm"
)

// NotificationService tells the creator and the voters of a feature request
// about status changes.
type NotificationService struct {
	db     *gorm.DB
	mailer Mailer
}

func NewNotificationService(db *gorm.DB, mailer Mailer) *NotificationService {
	return &NotificationService{db: db, mailer: mailer}
}

// Recipients returns the distinct e-mail addresses of the creator and voters.
func (s *NotificationService) Recipients(ctx context.Context, featureID string) ([]string, error) {
	var feature models.FeatureRequest
	if err := s.db.WithContext(ctx).Preload("User").First(&feature, "id = ?", featureID).Error; err != nil {
		return nil, err
	}

	var voterEmails []string
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Joins("JOIN votes ON votes.user_id = users.id").
		Where("votes.feature_request_id = ?", featureID).
		Pluck("users.email", &voterEmails).Error; err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(email string) {
		if email == "" || email == models.DeletedUserEmail {
			return
		}
		if _, ok := seen[email]; ok {
			return
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	if feature.User != nil {
		add(feature.User.Email)
	}
	for _, e := range voterEmails {
		add(e)
	}
	return out, nil
}

func (s *NotificationService) buildMessage(task *StatusChangedTask) (subject, body string) {
	subject = fmt.Sprintf("[featureboard] %s is now %s", task.Title, statusLabel(task.NewStatus))

	var sb strings.Builder
	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString(fmt.Sprintf("<h2>%s</h2>", html.EscapeString(task.Title)))
	sb.WriteString(fmt.Sprintf("<p>Status changed from <b>%s</b> to <b>%s</b>.</p>",
		statusLabel(task.OldStatus), statusLabel(task.NewStatus)))
	sb.WriteString("<p style=\"color: #888; font-size: 12px;\">You receive this because you created or voted for this request.</p>")
	sb.WriteString("</body></html>")
	return subject, sb.String()
}

func statusLabel(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

// HandleStatusChanged is the TaskHandler for TaskTypeStatusChanged.
func (s *NotificationService) HandleStatusChanged(ctx context.Context, payload []byte) error {
	var task StatusChangedTask
	if err := json.Unmarshal(payload, &task); err != nil {
		return fmt.Errorf("decode status task: %w", err)
	}

	recipients, err := s.Recipients(ctx, task.FeatureID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Infof("[Notification] Feature %s deleted before notification, skipping", task.FeatureID)
			return nil
		}
		return fmt.Errorf("load recipients: %w", err)
	}

	subject, body := s.buildMessage(&task)
	logger.Info().
		Str("feature_id", task.FeatureID).
		Str("status", task.NewStatus).
		Int("recipients", len(recipients)).
		Msg("[Notification] Status change")

	return s.mailer.Send(recipients, subject, body)
}
