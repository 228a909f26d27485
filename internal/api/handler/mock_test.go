package handler

import (
	"context"

	"github.com/hszk-dev/vidcache/internal/domain/model"
	"github.com/hszk-dev/vidcache/internal/usecase"
	"github.com/hszk-dev/vidcache/internal/videocache"
)

// Mock VideoCache

type mockVideoCache struct {
	addFn          func(ctx context.Context, file model.SourceFile, compressed []byte, opts model.AddOptions) (string, error)
	getFn          func(ctx context.Context, id string) (*model.CacheEntry, bool)
	getByFileFn    func(ctx context.Context, file model.SourceFile) (*model.CacheEntry, bool)
	removeFn       func(ctx context.Context, id string)
	updateStatusFn func(ctx context.Context, id string, status model.UploadStatus) error
	cleanupFn      func(ctx context.Context) int
	clearFn        func(ctx context.Context)
	statsFn        func() videocache.Stats
	recentFn       func(n int) []*model.CacheEntry
}

func (m *mockVideoCache) Add(ctx context.Context, file model.SourceFile, compressed []byte, opts model.AddOptions) (string, error) {
	if m.addFn != nil {
		return m.addFn(ctx, file, compressed, opts)
	}
	return file.ID(), nil
}

func (m *mockVideoCache) Get(ctx context.Context, id string) (*model.CacheEntry, bool) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, false
}

func (m *mockVideoCache) GetByFile(ctx context.Context, file model.SourceFile) (*model.CacheEntry, bool) {
	if m.getByFileFn != nil {
		return m.getByFileFn(ctx, file)
	}
	return nil, false
}

func (m *mockVideoCache) Remove(ctx context.Context, id string) {
	if m.removeFn != nil {
		m.removeFn(ctx, id)
	}
}

func (m *mockVideoCache) UpdateStatus(ctx context.Context, id string, status model.UploadStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil
}

func (m *mockVideoCache) Cleanup(ctx context.Context) int {
	if m.cleanupFn != nil {
		return m.cleanupFn(ctx)
	}
	return 0
}

func (m *mockVideoCache) Clear(ctx context.Context) {
	if m.clearFn != nil {
		m.clearFn(ctx)
	}
}

func (m *mockVideoCache) Stats() videocache.Stats {
	if m.statsFn != nil {
		return m.statsFn()
	}
	return videocache.Stats{}
}

func (m *mockVideoCache) Recent(n int) []*model.CacheEntry {
	if m.recentFn != nil {
		return m.recentFn(n)
	}
	return nil
}

// Mock UploadService

type mockUploadService struct {
	uploadFn func(ctx context.Context, entryID string) (*usecase.UploadOutput, error)
}

func (m *mockUploadService) Upload(ctx context.Context, entryID string) (*usecase.UploadOutput, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, entryID)
	}
	return &usecase.UploadOutput{EntryID: entryID}, nil
}
