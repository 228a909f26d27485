package usecase

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/hszk-dev/vidcache/internal/domain/model"
	"github.com/hszk-dev/vidcache/internal/domain/repository"
)

// mockEntryCache provides an in-memory EntryCache that records status changes.
type mockEntryCache struct {
	mu             sync.Mutex
	entries        map[string]*model.CacheEntry
	statuses       []model.UploadStatus
	updateStatusFn func(ctx context.Context, id string, status model.UploadStatus) error
}

func newMockEntryCache(entries ...*model.CacheEntry) *mockEntryCache {
	m := &mockEntryCache{entries: make(map[string]*model.CacheEntry)}
	for _, e := range entries {
		m.entries[e.ID] = e
	}
	return m
}

func (m *mockEntryCache) Get(ctx context.Context, id string) (*model.CacheEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

func (m *mockEntryCache) UpdateStatus(ctx context.Context, id string, status model.UploadStatus) error {
	if m.updateStatusFn != nil {
		if err := m.updateStatusFn(ctx, id, status); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	if e, ok := m.entries[id]; ok {
		e.UploadStatus = status
	}
	return nil
}

func (m *mockEntryCache) status(id string) model.UploadStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[id].UploadStatus
}

// mockObjectStorage provides a configurable mock for ObjectStorage.
type mockObjectStorage struct {
	generatePresignedDownloadURLFn func(ctx context.Context, key string, expiry time.Duration) (string, error)
	uploadFn                       func(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	downloadFn                     func(ctx context.Context, key string) (io.ReadCloser, error)
	deleteFn                       func(ctx context.Context, key string) error
}

func (m *mockObjectStorage) GeneratePresignedDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if m.generatePresignedDownloadURLFn != nil {
		return m.generatePresignedDownloadURLFn(ctx, key, expiry)
	}
	return "http://example.com/download", nil
}

func (m *mockObjectStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, key, reader, size, contentType)
	}
	return nil
}

func (m *mockObjectStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if m.downloadFn != nil {
		return m.downloadFn(ctx, key)
	}
	return nil, nil
}

func (m *mockObjectStorage) Delete(ctx context.Context, key string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

// mockEventPublisher provides a configurable mock for EventPublisher.
type mockEventPublisher struct {
	publishUploadEventFn func(ctx context.Context, event repository.UploadEvent) error
	published            []repository.UploadEvent
}

func (m *mockEventPublisher) PublishUploadEvent(ctx context.Context, event repository.UploadEvent) error {
	m.published = append(m.published, event)
	if m.publishUploadEventFn != nil {
		return m.publishUploadEventFn(ctx, event)
	}
	return nil
}

func (m *mockEventPublisher) Close() error {
	return nil
}
