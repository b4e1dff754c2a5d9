package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/featureboard/backend/internal/config"
)

func TestTaskTypes(t *testing.T) {
	if TaskTypeStatusChanged != "feature:status_changed" {
		t.Errorf("TaskTypeStatusChanged = %q", TaskTypeStatusChanged)
	}
	if TaskTypeAttachmentPurge != "attachments:purge" {
		t.Errorf("TaskTypeAttachmentPurge = %q", TaskTypeAttachmentPurge)
	}
}

func TestSyncQueue_DispatchesByType(t *testing.T) {
	q := NewSyncQueue()

	var got StatusChangedTask
	var purges int32
	q.Handle(TaskTypeStatusChanged, func(ctx context.Context, payload []byte) error {
		return json.Unmarshal(payload, &got)
	})
	q.Handle(TaskTypeAttachmentPurge, func(ctx context.Context, payload []byte) error {
		atomic.AddInt32(&purges, 1)
		return errors.New("failures are logged, not returned")
	})

	if err := q.Enqueue(context.Background(), TaskTypeStatusChanged, &StatusChangedTask{FeatureID: "f1", NewStatus: "PLANNED"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Enqueue(context.Background(), TaskTypeAttachmentPurge, &AttachmentPurgeTask{Locators: []string{"x"}}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	q.Wait()

	if got.FeatureID != "f1" || got.NewStatus != "PLANNED" {
		t.Errorf("status task = %+v", got)
	}
	if atomic.LoadInt32(&purges) != 1 {
		t.Errorf("purges = %d, want 1", purges)
	}
	if q.IsAsync() {
		t.Error("SyncQueue should not report async")
	}
}

func TestSyncQueue_UnknownTypeDropped(t *testing.T) {
	q := NewSyncQueue()
	if err := q.Enqueue(context.Background(), "unknown", struct{}{}); err != nil {
		t.Errorf("Enqueue without handler should not fail: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestSyncQueue_EncodeError(t *testing.T) {
	q := NewSyncQueue()
	if err := q.Enqueue(context.Background(), TaskTypeStatusChanged, make(chan int)); err == nil {
		t.Error("expected encode error")
	}
}

func TestNewWorker_DisabledRedis(t *testing.T) {
	if w := NewWorker(&config.RedisConfig{Enabled: false}); w != nil {
		t.Error("worker should be nil when Redis is disabled")
	}
}
