package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/featureboard/backend/internal/config"
	"github.com/featureboard/backend/internal/models"
	"github.com/featureboard/backend/internal/policy"
	"github.com/featureboard/backend/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.Migrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, email string, role models.Role) *models.User {
	t.Helper()
	hashed, err := utils.HashPassword("secret123")
	require.NoError(t, err)
	u := &models.User{Email: email, Name: email[:1], Password: hashed, Role: role, AuthType: models.AuthTypeLocal}
	require.NoError(t, db.Create(u).Error)
	return u
}

func createFeature(t *testing.T, db *gorm.DB, creatorID, title string, createdAt time.Time) *models.FeatureRequest {
	t.Helper()
	f := &models.FeatureRequest{
		Title:       title,
		Description: title + " description",
		UserID:      creatorID,
		CreatedAt:   createdAt,
		Attachments: []string{},
	}
	require.NoError(t, db.Create(f).Error)
	return f
}

func addVotes(t *testing.T, db *gorm.DB, featureID string, voters ...*models.User) {
	t.Helper()
	for _, u := range voters {
		require.NoError(t, db.Create(&models.Vote{UserID: u.ID, FeatureRequestID: featureID}).Error)
	}
}

func identity(u *models.User) *policy.Identity {
	return IdentityOf(u)
}

type queuedTask struct {
	Type    string
	Payload []byte
}

// recordingQueue captures enqueued tasks instead of running them.
type recordingQueue struct {
	mu    sync.Mutex
	tasks []queuedTask
}

func (q *recordingQueue) Enqueue(_ context.Context, taskType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, queuedTask{Type: taskType, Payload: data})
	return nil
}

func (q *recordingQueue) IsAsync() bool { return false }
func (q *recordingQueue) Close() error  { return nil }

func (q *recordingQueue) ofType(taskType string) []queuedTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []queuedTask
	for _, task := range q.tasks {
		if task.Type == taskType {
			out = append(out, task)
		}
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	queue    *recordingQueue
	policy   policy.Policy
	features *FeatureService
	votes    *VoteService
	listing  *ListingService
	users    *UserService
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	for _, m := range mutate {
		m(cfg)
	}

	db := newTestDB(t)
	q := &recordingQueue{}
	p := policy.New(&cfg.Auth)

	return &fixture{
		db:       db,
		queue:    q,
		policy:   p,
		features: NewFeatureService(db, p, q, &cfg.Features),
		votes:    NewVoteService(db),
		listing:  NewListingService(db, p),
		users:    NewUserService(db, p, q, &cfg.Users),
	}
}
