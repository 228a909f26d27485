// Package videocache holds recently added video files together with their
// extracted metadata and thumbnails, bounded by entry count, total size and age,
// and persisted as a single record in a state store.
package videocache

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/singleflight"

	"github.com/hszk-dev/vidcache/internal/domain/model"
	"github.com/hszk-dev/vidcache/internal/domain/repository"
	"github.com/hszk-dev/vidcache/internal/infrastructure/metrics"
	"github.com/hszk-dev/vidcache/internal/media"
)

// DefaultRecentLimit is used by Recent when n is not positive.
const DefaultRecentLimit = 5

// VideoCache is the behaviour exposed to the upload pipeline and the HTTP layer.
type VideoCache interface {
	Add(ctx context.Context, file model.SourceFile, compressedData []byte, opts model.AddOptions) (string, error)
	Get(ctx context.Context, id string) (*model.CacheEntry, bool)
	GetByFile(ctx context.Context, file model.SourceFile) (*model.CacheEntry, bool)
	Remove(ctx context.Context, id string)
	UpdateStatus(ctx context.Context, id string, status model.UploadStatus) error
	Cleanup(ctx context.Context) int
	Clear(ctx context.Context)
	Stats() Stats
	Recent(n int) []*model.CacheEntry
}

// Stats is a point-in-time summary of cache usage.
type Stats struct {
	Entries            int
	MemoryUsage        int64
	FormattedSize      string
	MaxEntries         int
	MaxBytes           int64
	UtilizationPercent int
}

// Cache is a bounded, persisted cache of video entries.
//
// Mutations are serialised by mu. Decoding in Add happens without the lock,
// so other operations proceed while an Add waits on the decoder.
type Cache struct {
	cfg        Config
	store      repository.StateStore
	decoder    media.Decoder
	rasterizer media.Rasterizer
	preview    media.PreviewGenerator
	now        func() time.Time
	logger     *slog.Logger

	sfGroup singleflight.Group

	// addTails holds, per id, the completion signal of the latest queued Add.
	// Guarded by mu.
	addTails map[string]chan struct{}

	mu          sync.Mutex
	entries     map[string]*model.CacheEntry
	order       []string // insertion order, oldest first
	memoryUsage int64
}

// Compile-time verification that Cache implements VideoCache.
var _ VideoCache = (*Cache)(nil)

// New creates a cache and restores the persisted state under cfg.StateKey.
// Entries that expired while the process was down are dropped.
// A state that cannot be read is logged and the cache starts empty.
func New(ctx context.Context, cfg Config, store repository.StateStore, decoder media.Decoder, opts ...Option) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil || decoder == nil {
		return nil, errors.New("videocache: state store and decoder are required")
	}

	c := &Cache{
		cfg:        cfg,
		store:      store,
		decoder:    decoder,
		rasterizer: media.NewJPEGRasterizer(),
		now:        time.Now,
		logger:     slog.Default(),
		entries:    make(map[string]*model.CacheEntry),
		addTails:   make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.load(ctx)

	return c, nil
}

// Get returns a copy of the entry with the given id.
// An expired entry is removed and reported as absent.
func (c *Cache) Get(ctx context.Context, id string) (*model.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusMiss).Inc()
		return nil, false
	}

	if entry.IsExpired(c.now(), c.cfg.Expiry) {
		c.deleteLocked(id)
		metrics.CacheEvictionsTotal.WithLabelValues(metrics.EvictExpired).Inc()
		c.persistLocked(ctx)
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusMiss).Inc()
		return nil, false
	}

	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusHit).Inc()
	return entry.Clone(), true
}

// GetByFile looks up the entry for a file by its identity attributes.
func (c *Cache) GetByFile(ctx context.Context, file model.SourceFile) (*model.CacheEntry, bool) {
	return c.Get(ctx, file.ID())
}

// Remove deletes the entry with the given id. It is a no-op if the id is unknown.
func (c *Cache) Remove(ctx context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; !ok {
		return
	}

	c.deleteLocked(id)
	c.persistLocked(ctx)
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpRemove, metrics.CacheStatusSuccess).Inc()
}

// UpdateStatus replaces the upload status of an entry, leaving every other
// field, including the timestamp, untouched. Unknown ids are ignored.
func (c *Cache) UpdateStatus(ctx context.Context, id string, status model.UploadStatus) error {
	if !status.IsValid() {
		return model.ErrInvalidStatus
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil
	}

	// Entries handed out by Get are clones, so replacing the pointer keeps
	// earlier readers from observing the change.
	updated := entry.Clone()
	if err := updated.SetUploadStatus(status); err != nil {
		return err
	}
	c.entries[id] = updated

	c.persistLocked(ctx)
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpUpdateStatus, metrics.CacheStatusSuccess).Inc()
	return nil
}

// Cleanup drops expired entries and trims the cache to its byte budget,
// keeping the newest entries. It returns the number of dropped entries.
func (c *Cache) Cleanup(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := c.sweepLocked(c.now(), c.cfg.MaxBytes)
	c.persistLocked(ctx)
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpCleanup, metrics.CacheStatusSuccess).Inc()
	return dropped
}

// Clear removes every entry and erases the persisted state.
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*model.CacheEntry)
	c.order = nil
	c.memoryUsage = 0
	c.observeLocked()

	if err := c.store.Delete(ctx, c.cfg.StateKey); err != nil {
		metrics.StateOperationsTotal.WithLabelValues(metrics.StateOpDelete, metrics.CacheStatusError).Inc()
		c.logger.Warn("failed to delete cache state",
			"key", c.cfg.StateKey,
			"error", err,
		)
	} else {
		metrics.StateOperationsTotal.WithLabelValues(metrics.StateOpDelete, metrics.CacheStatusSuccess).Inc()
	}

	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpClear, metrics.CacheStatusSuccess).Inc()
}

// Stats returns a snapshot of the cache usage.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Entries:            len(c.entries),
		MemoryUsage:        c.memoryUsage,
		FormattedSize:      humanize.IBytes(uint64(c.memoryUsage)),
		MaxEntries:         c.cfg.MaxEntries,
		MaxBytes:           c.cfg.MaxBytes,
		UtilizationPercent: int(math.Round(float64(c.memoryUsage) / float64(c.cfg.MaxBytes) * 100)),
	}
}

// Recent returns up to n unexpired entries, newest first.
// A non-positive n means DefaultRecentLimit.
func (c *Cache) Recent(n int) []*model.CacheEntry {
	if n <= 0 {
		n = DefaultRecentLimit
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	result := make([]*model.CacheEntry, 0, min(n, len(c.entries)))
	for _, entry := range c.newestFirstLocked() {
		if len(result) == n {
			break
		}
		if entry.IsExpired(now, c.cfg.Expiry) {
			continue
		}
		result = append(result, entry.Clone())
	}
	return result
}

// newestFirstLocked orders entries by timestamp descending.
// Entries with equal timestamps keep reverse insertion order.
func (c *Cache) newestFirstLocked() []*model.CacheEntry {
	sorted := make([]*model.CacheEntry, 0, len(c.order))
	for i := len(c.order) - 1; i >= 0; i-- {
		sorted = append(sorted, c.entries[c.order[i]])
	}
	slices.SortStableFunc(sorted, func(a, b *model.CacheEntry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return sorted
}

// sweepLocked walks entries newest first with a running size total.
// Expired entries are dropped wherever they are; once an entry would push the
// total over budget, it and every entry after it are dropped.
func (c *Cache) sweepLocked(now time.Time, budget int64) int {
	var (
		total    int64
		overflow bool
		dropped  int
	)
	keep := make(map[string]bool, len(c.entries))

	for _, entry := range c.newestFirstLocked() {
		switch {
		case entry.IsExpired(now, c.cfg.Expiry):
			metrics.CacheEvictionsTotal.WithLabelValues(metrics.EvictExpired).Inc()
			dropped++
		case overflow || total+entry.Metadata.Size > budget:
			overflow = true
			metrics.CacheEvictionsTotal.WithLabelValues(metrics.EvictMemory).Inc()
			dropped++
		default:
			total += entry.Metadata.Size
			keep[entry.ID] = true
		}
	}

	order := c.order[:0]
	for _, id := range c.order {
		if keep[id] {
			order = append(order, id)
		} else {
			delete(c.entries, id)
		}
	}
	c.order = order
	c.memoryUsage = total

	return dropped
}

// evictOldestLocked removes the earliest inserted entry.
func (c *Cache) evictOldestLocked() {
	if len(c.order) == 0 {
		return
	}
	c.deleteLocked(c.order[0])
	metrics.CacheEvictionsTotal.WithLabelValues(metrics.EvictCount).Inc()
}

func (c *Cache) insertLocked(entry *model.CacheEntry) {
	c.entries[entry.ID] = entry
	c.order = append(c.order, entry.ID)
	c.memoryUsage += entry.Metadata.Size
}

func (c *Cache) deleteLocked(id string) {
	entry, ok := c.entries[id]
	if !ok {
		return
	}
	delete(c.entries, id)
	c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == id })
	c.memoryUsage -= entry.Metadata.Size
}

// persistLocked writes the whole cache to the state store.
// Failures are logged and counted; the in-memory state stays authoritative.
func (c *Cache) persistLocked(ctx context.Context) {
	c.observeLocked()

	data, err := encodeState(c.entries)
	if err != nil {
		metrics.StateOperationsTotal.WithLabelValues(metrics.StateOpSave, metrics.CacheStatusError).Inc()
		c.logger.Error("failed to encode cache state",
			"entries", len(c.entries),
			"error", err,
		)
		return
	}

	if err := c.store.Save(ctx, c.cfg.StateKey, data); err != nil {
		metrics.StateOperationsTotal.WithLabelValues(metrics.StateOpSave, metrics.CacheStatusError).Inc()
		c.logger.Warn("failed to persist cache state",
			"key", c.cfg.StateKey,
			"bytes", len(data),
			"error", err,
		)
		return
	}
	metrics.StateOperationsTotal.WithLabelValues(metrics.StateOpSave, metrics.CacheStatusSuccess).Inc()
}

func (c *Cache) observeLocked() {
	metrics.CacheEntries.Set(float64(len(c.entries)))
	metrics.CacheBytes.Set(float64(c.memoryUsage))
}

// load restores the persisted state. Only entries younger than the expiry are
// kept. The store is not rewritten here; the next mutation persists the result.
func (c *Cache) load(ctx context.Context) {
	data, err := c.store.Load(ctx, c.cfg.StateKey)
	if err != nil {
		if errors.Is(err, repository.ErrStateNotFound) {
			metrics.StateOperationsTotal.WithLabelValues(metrics.StateOpLoad, metrics.CacheStatusMiss).Inc()
			return
		}
		metrics.StateOperationsTotal.WithLabelValues(metrics.StateOpLoad, metrics.CacheStatusError).Inc()
		c.logger.Warn("failed to load cache state, starting empty",
			"key", c.cfg.StateKey,
			"error", err,
		)
		return
	}

	entries, skipped, err := decodeState(data)
	if err != nil {
		metrics.StateOperationsTotal.WithLabelValues(metrics.StateOpLoad, metrics.CacheStatusError).Inc()
		c.logger.Warn("failed to decode cache state, starting empty",
			"key", c.cfg.StateKey,
			"error", err,
		)
		return
	}
	metrics.StateOperationsTotal.WithLabelValues(metrics.StateOpLoad, metrics.CacheStatusSuccess).Inc()
	if skipped > 0 {
		c.logger.Warn("skipped malformed cache entries", "count", skipped)
	}

	now := c.now()
	slices.SortStableFunc(entries, func(a, b *model.CacheEntry) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	for _, entry := range entries {
		if now.Sub(entry.Timestamp) < c.cfg.Expiry {
			c.insertLocked(entry)
		}
	}

	// Bounds may have shrunk since the state was written.
	for len(c.order) > c.cfg.MaxEntries {
		c.evictOldestLocked()
	}
	if c.memoryUsage > c.cfg.MaxBytes {
		c.sweepLocked(now, c.cfg.MaxBytes)
	}

	c.observeLocked()
	c.logger.Info("cache state restored",
		"entries", len(c.entries),
		"memory_usage", c.memoryUsage,
	)
}
