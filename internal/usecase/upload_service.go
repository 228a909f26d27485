package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hszk-dev/vidcache/internal/domain/model"
	"github.com/hszk-dev/vidcache/internal/domain/repository"
	"github.com/hszk-dev/vidcache/internal/infrastructure/metrics"
)

var (
	// ErrEntryNotFound is returned when the cache holds no entry for the id.
	ErrEntryNotFound = errors.New("cache entry not found")

	// ErrUploadInProgress is returned when the entry is already being uploaded.
	ErrUploadInProgress = errors.New("upload already in progress")

	// ErrUploadAlreadyCompleted is returned when the entry has already been uploaded.
	ErrUploadAlreadyCompleted = errors.New("upload has already completed")
)

// EntryCache is the part of the video cache the upload pipeline depends on.
type EntryCache interface {
	Get(ctx context.Context, id string) (*model.CacheEntry, bool)
	UpdateStatus(ctx context.Context, id string, status model.UploadStatus) error
}

// UploadOutput is the result of a successful upload.
type UploadOutput struct {
	EntryID     string
	ObjectKey   string
	DownloadURL string
}

// UploadService moves cached videos into object storage.
type UploadService interface {
	// Upload stores the entry's video in object storage and tracks progress
	// through the entry's upload status. Failed uploads may be retried.
	Upload(ctx context.Context, entryID string) (*UploadOutput, error)
}

// UploadServiceConfig holds configuration for UploadService.
type UploadServiceConfig struct {
	DownloadURLExpiry time.Duration
}

// DefaultUploadServiceConfig returns the default configuration.
func DefaultUploadServiceConfig() UploadServiceConfig {
	return UploadServiceConfig{
		DownloadURLExpiry: time.Hour,
	}
}

type uploadService struct {
	cache   EntryCache
	storage repository.ObjectStorage
	events  repository.EventPublisher

	// mu makes the status check and the transition to uploading atomic.
	mu    sync.Mutex
	newID func() uuid.UUID

	downloadURLExpiry time.Duration
}

// NewUploadService creates a new UploadService. events may be nil, in which
// case no upload events are published.
func NewUploadService(
	cache EntryCache,
	storage repository.ObjectStorage,
	events repository.EventPublisher,
	cfg UploadServiceConfig,
) UploadService {
	return &uploadService{
		cache:             cache,
		storage:           storage,
		events:            events,
		newID:             uuid.New,
		downloadURLExpiry: cfg.DownloadURLExpiry,
	}
}

// Upload uploads the compressed data of the entry when present, the source file otherwise.
func (s *uploadService) Upload(ctx context.Context, entryID string) (*UploadOutput, error) {
	entry, err := s.begin(ctx, entryID)
	if err != nil {
		return nil, err
	}

	key := s.generateObjectKey(entry.SourceFile.Name)
	body := entry.CompressedData
	if len(body) == 0 {
		body = entry.SourceFile.Data
	}
	contentType := entry.Metadata.Format
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.storage.Upload(ctx, key, bytes.NewReader(body), int64(len(body)), contentType); err != nil {
		metrics.UploadsTotal.WithLabelValues(metrics.CacheStatusError).Inc()
		s.setStatus(ctx, entryID, model.UploadStatusFailed)
		return nil, fmt.Errorf("upload object: %w", err)
	}
	metrics.UploadsTotal.WithLabelValues(metrics.CacheStatusSuccess).Inc()
	s.setStatus(ctx, entryID, model.UploadStatusCompleted)

	out := &UploadOutput{
		EntryID:   entryID,
		ObjectKey: key,
	}

	downloadURL, err := s.storage.GeneratePresignedDownloadURL(ctx, key, s.downloadURLExpiry)
	if err != nil {
		slog.Warn("failed to generate download URL",
			"entry_id", entryID,
			"object_key", key,
			"error", err,
		)
	} else {
		out.DownloadURL = downloadURL
	}

	s.publish(ctx, entry, key)

	return out, nil
}

// begin checks that the entry can be uploaded and marks it as uploading.
func (s *uploadService) begin(ctx context.Context, entryID string) (*model.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache.Get(ctx, entryID)
	if !ok {
		return nil, ErrEntryNotFound
	}

	switch entry.UploadStatus {
	case model.UploadStatusUploading:
		return nil, ErrUploadInProgress
	case model.UploadStatusCompleted:
		return nil, ErrUploadAlreadyCompleted
	}

	if err := s.cache.UpdateStatus(ctx, entryID, model.UploadStatusUploading); err != nil {
		return nil, fmt.Errorf("mark entry uploading: %w", err)
	}

	return entry, nil
}

func (s *uploadService) setStatus(ctx context.Context, entryID string, status model.UploadStatus) {
	if err := s.cache.UpdateStatus(ctx, entryID, status); err != nil {
		slog.Warn("failed to update upload status",
			"entry_id", entryID,
			"status", status,
			"error", err,
		)
	}
}

// publish announces the upload. Failures are logged; the object is already stored.
func (s *uploadService) publish(ctx context.Context, entry *model.CacheEntry, key string) {
	if s.events == nil {
		return
	}

	event := repository.UploadEvent{
		EntryID:   entry.ID,
		ObjectKey: key,
		FileName:  entry.SourceFile.Name,
		Size:      entry.Metadata.Size,
		Format:    entry.Metadata.Format,
		Duration:  entry.Metadata.Duration,
		Width:     entry.Metadata.Width,
		Height:    entry.Metadata.Height,
	}

	if err := s.events.PublishUploadEvent(ctx, event); err != nil {
		slog.Warn("failed to publish upload event",
			"entry_id", entry.ID,
			"object_key", key,
			"error", err,
		)
	}
}

// generateObjectKey creates the storage key for an uploaded video.
// Format: uploads/{upload_id}/{filename}
func (s *uploadService) generateObjectKey(filename string) string {
	return path.Join("uploads", s.newID().String(), path.Base(filename))
}
