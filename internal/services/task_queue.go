package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/featureboard/backend/internal/config"
	"github.com/featureboard/backend/pkg/logger"
	"github.com/hibiken/asynq"
)

const (
	TaskTypeStatusChanged   = "feature:status_changed"
	TaskTypeAttachmentPurge = "attachments:purge"
)

// StatusChangedTask is enqueued when a feature request moves to a new status.
type StatusChangedTask struct {
	FeatureID string `json:"feature_id"`
	Title     string `json:"title"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	ChangedBy string `json:"changed_by"`
}

// AttachmentPurgeTask removes blobs of a deleted feature request.
type AttachmentPurgeTask struct {
	FeatureID string   `json:"feature_id,omitempty"`
	Locators  []string `json:"locators"`
}

// TaskHandler processes the JSON payload of one task.
type TaskHandler func(ctx context.Context, payload []byte) error

// TaskRegistry accepts handlers per task type.
type TaskRegistry interface {
	Handle(taskType string, handler TaskHandler)
}

// TaskQueue defines the interface for background task processing
type TaskQueue interface {
	// Enqueue serializes payload and schedules it under taskType
	Enqueue(ctx context.Context, taskType string, payload interface{}) error
	// IsAsync returns true if queue processes tasks out of process
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// Global task queue instance
var (
	globalTaskQueue TaskQueue
	taskQueueOnce   sync.Once
)

// InitTaskQueue initializes the global task queue based on config
func InitTaskQueue(cfg *config.Config) TaskQueue {
	taskQueueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncQueue(&cfg.Redis)
			if err != nil {
				logger.Warnf("[TaskQueue] Redis unavailable, falling back to sync mode: %v", err)
				globalTaskQueue = NewSyncQueue()
			} else {
				logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
				globalTaskQueue = queue
			}
		} else {
			logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
			globalTaskQueue = NewSyncQueue()
		}
	})
	return globalTaskQueue
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

func redisClientOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewAsyncQueue creates a new Redis-based async queue
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := redisClientOpt(cfg)
	client := asynq.NewClient(redisOpt)

	// Verify the connection before committing to async mode
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) Enqueue(ctx context.Context, taskType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", taskType, err)
	}

	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(taskType, data),
		asynq.Queue("default"),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Str("type", taskType).Msg("[AsyncQueue] Task enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue implements TaskQueue in process (no Redis). Tasks run in their
// own goroutine so the request that enqueued them is not blocked.
type SyncQueue struct {
	mu       sync.RWMutex
	handlers map[string]TaskHandler
	wg       sync.WaitGroup
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{handlers: make(map[string]TaskHandler)}
}

func (q *SyncQueue) Handle(taskType string, handler TaskHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[taskType] = handler
}

func (q *SyncQueue) Enqueue(_ context.Context, taskType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", taskType, err)
	}

	q.mu.RLock()
	handler := q.handlers[taskType]
	q.mu.RUnlock()

	if handler == nil {
		logger.Warnf("[SyncQueue] No handler for %s, task dropped", taskType)
		return nil
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		// The request context is gone by the time the task runs.
		if err := handler(context.Background(), data); err != nil {
			logger.Errorf("[SyncQueue] Task %s failed: %v", taskType, err)
		}
	}()

	return nil
}

// Wait blocks until every enqueued task has finished.
func (q *SyncQueue) Wait() {
	q.wg.Wait()
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

func (q *SyncQueue) Close() error {
	q.Wait()
	return nil
}
