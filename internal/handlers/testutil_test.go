package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/featureboard/backend/internal/config"
	"github.com/featureboard/backend/internal/middleware"
	"github.com/featureboard/backend/internal/models"
	"github.com/featureboard/backend/internal/policy"
	"github.com/featureboard/backend/internal/services"
	"github.com/featureboard/backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret-for-handler-testing")
}

type testServer struct {
	t        *testing.T
	router   *gin.Engine
	db       *gorm.DB
	queue    *services.SyncQueue
	storeDir string
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Auth.BootstrapAdminEmail = ""
	for _, m := range mutate {
		m(cfg)
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.Migrate(db))

	storeDir := t.TempDir()
	store, err := services.NewFileStore(storeDir)
	require.NoError(t, err)

	queue := services.NewSyncQueue()
	queue.Handle(services.TaskTypeAttachmentPurge, services.PurgeAttachmentsHandler(store))

	services.InitAuditLogger(db)
	t.Cleanup(func() {
		queue.Close()
		services.InitAuditLogger(nil)
		sqlDB.Close()
	})

	p := policy.New(&cfg.Auth)
	features := services.NewFeatureService(db, p, queue, &cfg.Features)
	listing := services.NewListingService(db, p)
	attachments := services.NewAttachmentService(store, &cfg.Features)
	authService := services.NewAuthService(db, &cfg.JWT, &cfg.Auth, &cfg.LDAP)

	set := &Set{
		Auth:       NewAuthHandler(authService, p, &cfg.Auth),
		Feature:    NewFeatureHandler(features, listing, attachments),
		Vote:       NewVoteHandler(services.NewVoteService(db)),
		Profile:    NewProfileHandler(listing),
		Attachment: NewAttachmentHandler(attachments),
		Admin:      NewAdminHandler(features, listing, services.NewUserService(db, p, queue, &cfg.Users), services.NewAuditLogService(db)),
		Health:     NewHealthHandler(db, queue),
		Metrics:    NewMetricsHandler(db, queue),
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	t.Cleanup(limiter.Close)

	router := gin.New()
	set.Register(router, p, limiter)

	return &testServer{t: t, router: router, db: db, queue: queue, storeDir: storeDir}
}

func (s *testServer) createUser(email string, role models.Role) (*models.User, string) {
	s.t.Helper()
	hashed, err := utils.HashPassword("secret123")
	require.NoError(s.t, err)
	u := &models.User{Email: email, Name: email[:1], Password: hashed, Role: role, AuthType: models.AuthTypeLocal}
	require.NoError(s.t, s.db.Create(u).Error)

	token, err := utils.GenerateToken(u.ID, u.Email, string(u.Role), 1)
	require.NoError(s.t, err)
	return u, token
}

func (s *testServer) createFeature(creatorID, title string, createdAt time.Time) *models.FeatureRequest {
	s.t.Helper()
	f := &models.FeatureRequest{
		Title:       title,
		Description: title + " description",
		UserID:      creatorID,
		CreatedAt:   createdAt,
		Attachments: []string{},
	}
	require.NoError(s.t, s.db.Create(f).Error)
	return f
}

// do sends a JSON request (body may be nil) with an optional bearer token.
func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.send(req, token)
}

func (s *testServer) send(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// decode unmarshals the envelope's data into out and returns the envelope.
func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out), string(env.Data))
	}
	return env
}

// featureJSON mirrors the fields of a feature view the tests inspect.
type featureJSON struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Status      string   `json:"status"`
	Attachments []string `json:"attachments"`
	VoteCount   int64    `json:"vote_count"`
	CreatorName string   `json:"creator_name"`
	HasVoted    *bool    `json:"has_voted"`
}

// storedFiles lists the blobs currently held by the attachment store.
func (s *testServer) storedFiles() []string {
	s.t.Helper()
	entries, err := os.ReadDir(s.storeDir)
	require.NoError(s.t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
