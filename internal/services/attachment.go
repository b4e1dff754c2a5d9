package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/featureboard/backend/internal/config"
	"github.com/featureboard/backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// AttachmentStore persists uploaded blobs behind opaque locators.
type AttachmentStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
	Delete(ctx context.Context, locator string) error
}

// FileStore keeps attachments as files under one directory.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create attachments dir: %w", err)
	}
	return &FileStore{root: root}, nil
}

// NewLocator derives a unique, filesystem safe locator from a client file name.
func NewLocator(name string) string {
	base := filepath.Base(name)
	ext := strings.ToLower(filepath.Ext(base))
	stem := slug.Make(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" {
		stem = "file"
	}
	if len(ext) <= 1 || slug.Make(ext[1:]) != ext[1:] {
		ext = ""
	}
	return uuid.NewString() + "-" + stem + ext
}

func validLocator(locator string) bool {
	return locator != "" &&
		!strings.ContainsAny(locator, `/\`) &&
		!strings.Contains(locator, "..")
}

func (s *FileStore) path(locator string) (string, error) {
	if !validLocator(locator) {
		return "", validationError("invalid attachment locator")
	}
	return filepath.Join(s.root, locator), nil
}

func (s *FileStore) Save(_ context.Context, name string, r io.Reader) (string, error) {
	locator := NewLocator(name)
	p, err := s.path(locator)
	if err != nil {
		return "", err
	}

	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("create attachment: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(p)
		return "", fmt.Errorf("write attachment: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		return "", fmt.Errorf("write attachment: %w", err)
	}
	return locator, nil
}

func (s *FileStore) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	p, err := s.path(locator)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFoundError("attachment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	return f, nil
}

// Delete removes the blob. A missing blob is not an error.
func (s *FileStore) Delete(_ context.Context, locator string) error {
	p, err := s.path(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete attachment: %w", err)
	}
	return nil
}

// AttachmentService applies upload limits on top of a store.
type AttachmentService struct {
	store    AttachmentStore
	maxCount int
	maxBytes int64
}

func NewAttachmentService(store AttachmentStore, cfg *config.FeatureConfig) *AttachmentService {
	return &AttachmentService{
		store:    store,
		maxCount: cfg.MaxAttachments,
		maxBytes: cfg.MaxAttachmentBytes,
	}
}

// SaveUploads stores every file and returns their locators in order. On
// failure the files already written are removed again.
func (s *AttachmentService) SaveUploads(ctx context.Context, files []*multipart.FileHeader) ([]string, error) {
	if s.maxCount > 0 && len(files) > s.maxCount {
		return nil, validationError(fmt.Sprintf("at most %d attachments are allowed", s.maxCount))
	}
	for _, fh := range files {
		if s.maxBytes > 0 && fh.Size > s.maxBytes {
			return nil, validationError(fmt.Sprintf("attachment %q exceeds %d bytes", fh.Filename, s.maxBytes))
		}
	}

	locators := make([]string, 0, len(files))
	for _, fh := range files {
		locator, err := s.saveOne(ctx, fh)
		if err != nil {
			s.Discard(ctx, locators)
			return nil, err
		}
		locators = append(locators, locator)
	}
	return locators, nil
}

func (s *AttachmentService) saveOne(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("read upload %q: %w", fh.Filename, err)
	}
	defer f.Close()

	var r io.Reader = f
	if s.maxBytes > 0 {
		r = io.LimitReader(f, s.maxBytes)
	}
	return s.store.Save(ctx, fh.Filename, r)
}

// Discard deletes locators that were saved but never attached to a feature.
func (s *AttachmentService) Discard(ctx context.Context, locators []string) {
	for _, l := range locators {
		if err := s.store.Delete(ctx, l); err != nil {
			logger.Warnf("[Attachment] Failed to discard %s: %v", l, err)
		}
	}
}

func (s *AttachmentService) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	return s.store.Open(ctx, locator)
}

// PurgeAttachmentsHandler deletes the blobs named in an AttachmentPurgeTask.
func PurgeAttachmentsHandler(store AttachmentStore) TaskHandler {
	return func(ctx context.Context, payload []byte) error {
		var task AttachmentPurgeTask
		if err := json.Unmarshal(payload, &task); err != nil {
			return fmt.Errorf("decode purge task: %w", err)
		}

		var failed int
		for _, locator := range task.Locators {
			if err := store.Delete(ctx, locator); err != nil {
				failed++
				logger.Warnf("[Attachment] Purge of %s failed: %v", locator, err)
			}
		}
		if failed > 0 {
			return fmt.Errorf("purge left %d of %d attachments", failed, len(task.Locators))
		}
		logger.Info().Str("feature_id", task.FeatureID).Int("count", len(task.Locators)).Msg("[Attachment] Purged")
		return nil
	}
}
