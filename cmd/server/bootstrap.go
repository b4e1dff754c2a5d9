package main

import (
	"context"

	"github.com/featureboard/backend/internal/config"
	"github.com/featureboard/backend/internal/handlers"
	"github.com/featureboard/backend/internal/models"
	"github.com/featureboard/backend/internal/policy"
	"github.com/featureboard/backend/internal/services"
	"github.com/featureboard/backend/internal/utils"
	"github.com/featureboard/backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	policy    policy.Policy
	handlers  *handlers.Set
	taskQueue services.TaskQueue
	worker    *services.Worker
	scheduler *cron.Cron
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	// Initialize database
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate database
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	db := models.GetDB()

	services.InitAuditLogger(db)
	scheduler, err := services.StartAuditCleanupScheduler(db, cfg.Audit.CleanupCron, cfg.Audit.RetentionDays)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to start audit cleanup scheduler")
	}

	store, err := services.NewFileStore(cfg.Storage.AttachmentsDir)
	if err != nil {
		logger.Fatalf("Failed to prepare attachment storage: %v", err)
	}

	// Initialize task queue (uses Redis if enabled, otherwise sync mode)
	notifier := services.NewNotificationService(db, services.NewEmailService(&cfg.SMTP))
	taskQueue := services.InitTaskQueue(cfg)

	var worker *services.Worker
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		services.RegisterTaskHandlers(syncQueue, notifier, store)
	} else if worker = services.NewWorker(&cfg.Redis); worker != nil {
		services.RegisterTaskHandlers(worker, notifier, store)
		if err := worker.Start(); err != nil {
			logger.Fatalf("Failed to start task worker: %v", err)
		}
	}

	p := policy.New(&cfg.Auth)

	authService := services.NewAuthService(db, &cfg.JWT, &cfg.Auth, &cfg.LDAP)
	if err := authService.CreateAdminIfNotExists(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	features := services.NewFeatureService(db, p, taskQueue, &cfg.Features)
	listing := services.NewListingService(db, p)
	attachments := services.NewAttachmentService(store, &cfg.Features)
	users := services.NewUserService(db, p, taskQueue, &cfg.Users)

	return &appServices{
		policy: p,
		handlers: &handlers.Set{
			Auth:       handlers.NewAuthHandler(authService, p, &cfg.Auth),
			Feature:    handlers.NewFeatureHandler(features, listing, attachments),
			Vote:       handlers.NewVoteHandler(services.NewVoteService(db)),
			Profile:    handlers.NewProfileHandler(listing),
			Attachment: handlers.NewAttachmentHandler(attachments),
			Admin:      handlers.NewAdminHandler(features, listing, users, services.NewAuditLogService(db)),
			Health:     handlers.NewHealthHandler(db, taskQueue),
			Metrics:    handlers.NewMetricsHandler(db, taskQueue),
		},
		taskQueue: taskQueue,
		worker:    worker,
		scheduler: scheduler,
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	if s.scheduler != nil {
		<-s.scheduler.Stop().Done()
		logger.Info().Msg("Audit cleanup scheduler stopped")
	}

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
}
