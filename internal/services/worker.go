package services

import (
	"context"
	"sync"

	"github.com/featureboard/backend/internal/config"
	"github.com/featureboard/backend/pkg/logger"
	"github.com/hibiken/asynq"
)

// Worker processes async tasks from the queue
type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	running bool
	mu      sync.Mutex
}

// NewWorker returns nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig) *Worker {
	if !cfg.Enabled {
		return nil
	}

	server := asynq.NewServer(
		redisClientOpt(cfg),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Errorf("[Worker] Error processing task %s: %v", task.Type(), err)
			}),
		},
	)

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
	}
}

func (w *Worker) Handle(taskType string, handler TaskHandler) {
	w.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		logger.Debug().Str("type", t.Type()).Msg("[Worker] Processing task")
		return handler(ctx, t.Payload())
	})
}

// Start begins processing tasks
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	// Start returns once the server is polling Redis.
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	w.running = true
	logger.Infof("[Worker] Async worker started")
	return nil
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	logger.Infof("[Worker] Shutting down...")
	w.server.Shutdown()
	w.running = false
	logger.Infof("[Worker] Shutdown complete")
}

// RegisterTaskHandlers binds the feature task types to their processors.
func RegisterTaskHandlers(r TaskRegistry, notifier *NotificationService, store AttachmentStore) {
	r.Handle(TaskTypeStatusChanged, notifier.HandleStatusChanged)
	r.Handle(TaskTypeAttachmentPurge, PurgeAttachmentsHandler(store))
}
