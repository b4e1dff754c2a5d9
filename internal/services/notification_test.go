package services

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/featureboard/backend/internal/config"
	"github.com/featureboard/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to      []string
	subject string
	body    string
}

type fakeMailer struct {
	sent []sentMail
}

func (m *fakeMailer) Send(to []string, subject, body string) error {
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func TestNotification_StatusChanged(t *testing.T) {
	db := newTestDB(t)
	creator := createUser(t, db, "creator@example.com", models.RoleUser)
	voter := createUser(t, db, "voter@example.com", models.RoleUser)
	feature := createFeature(t, db, creator.ID, "Dark <b>mode</b>", time.Now())
	addVotes(t, db, feature.ID, creator, voter)

	mailer := &fakeMailer{}
	svc := NewNotificationService(db, mailer)

	payload, err := json.Marshal(StatusChangedTask{
		FeatureID: feature.ID,
		Title:     feature.Title,
		OldStatus: "OPEN",
		NewStatus: "IN_PROGRESS",
	})
	require.NoError(t, err)
	require.NoError(t, svc.HandleStatusChanged(context.Background(), payload))

	require.Len(t, mailer.sent, 1)
	mail := mailer.sent[0]
	to := append([]string(nil), mail.to...)
	sort.Strings(to)
	assert.Equal(t, []string{"creator@example.com", "voter@example.com"}, to, "creator appears once")
	assert.Contains(t, mail.subject, "IN PROGRESS")
	assert.Contains(t, mail.body, "Dark &lt;b&gt;mode&lt;/b&gt;")
	assert.False(t, strings.Contains(mail.body, "<b>mode</b>"))
}

func TestNotification_DeletedFeatureSkipped(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{}
	svc := NewNotificationService(db, mailer)

	payload, _ := json.Marshal(StatusChangedTask{FeatureID: "gone", NewStatus: "PLANNED"})
	require.NoError(t, svc.HandleStatusChanged(context.Background(), payload))
	assert.Empty(t, mailer.sent)
}

func TestEmailService_DisabledIsNoop(t *testing.T) {
	svc := NewEmailService(&config.SMTPConfig{Enabled: false, Host: "smtp.example.com"})
	assert.False(t, svc.Enabled())
	assert.NoError(t, svc.Send([]string{"a@example.com"}, "s", "b"))
}
