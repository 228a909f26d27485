package videocache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/hszk-dev/vidcache/internal/domain/model"
	"github.com/hszk-dev/vidcache/internal/infrastructure/metrics"
)

// Add decodes file, stores it with its derived data and returns its id.
//
// Re-adding a file that is already cached replaces the entry: the derived data
// is extracted again, the upload status resets to pending, the timestamp is
// refreshed and the entry moves to the newest insertion position.
//
// Add is not cancellable once started; ctx only carries values. A caller that
// loses interest should wait for the result and Remove the entry.
// Concurrent Adds of the same file with the same compressed data and options
// share a single decoding. Adds of the same file that differ in either run one
// after another in arrival order, so the last caller's entry is the one kept.
func (c *Cache) Add(ctx context.Context, file model.SourceFile, compressedData []byte, opts model.AddOptions) (string, error) {
	if err := file.Validate(); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpAdd, metrics.CacheStatusError).Inc()
		return "", err
	}
	if file.Size > c.cfg.MaxBytes {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpAdd, metrics.CacheStatusError).Inc()
		return "", fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrEntryTooLarge, file.Name, file.Size, c.cfg.MaxBytes)
	}

	ctx = context.WithoutCancel(ctx)
	id := file.ID()

	result, err, shared := c.sfGroup.Do(requestKey(id, compressedData, opts), func() (any, error) {
		wait, done := c.enqueueAdd(id)
		defer done()
		<-wait
		return c.add(ctx, id, file, compressedData, opts)
	})

	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightInitiated).Inc()
	}

	if err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpAdd, metrics.CacheStatusError).Inc()
		return "", err
	}

	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpAdd, metrics.CacheStatusSuccess).Inc()
	return result.(string), nil
}

func (c *Cache) add(ctx context.Context, id string, file model.SourceFile, compressedData []byte, opts model.AddOptions) (string, error) {
	derived, err := c.extract(ctx, file, opts)
	if err != nil {
		c.logger.Warn("failed to decode video",
			"entry_id", id,
			"file_name", file.Name,
			"error", err,
		)
		return "", err
	}

	now := c.now()
	entry := &model.CacheEntry{
		ID:             id,
		SourceFile:     file,
		CompressedData: compressedData,
		Thumbnail:      derived.thumbnail,
		Preview:        derived.preview,
		Metadata:       derived.metadata,
		Timestamp:      truncateMillis(now),
		UploadStatus:   model.UploadStatusPending,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.deleteLocked(id)

	if c.memoryUsage+entry.Metadata.Size > c.cfg.MaxBytes {
		c.sweepLocked(now, c.cfg.MaxBytes-entry.Metadata.Size)
	}
	for len(c.order) >= c.cfg.MaxEntries {
		c.evictOldestLocked()
	}

	c.insertLocked(entry)
	c.persistLocked(ctx)

	c.logger.Info("video cached",
		"entry_id", id,
		"size", entry.Metadata.Size,
		"duration", entry.Metadata.Duration,
		"entries", len(c.entries),
		"memory_usage", c.memoryUsage,
	)

	return id, nil
}

// requestKey identifies an Add by everything that shapes the resulting entry.
func requestKey(id string, compressedData []byte, opts model.AddOptions) string {
	return id +
		"|thumb=" + strconv.FormatBool(opts.GenerateThumbnail) +
		"|preview=" + strconv.FormatBool(opts.GeneratePreview) +
		"|compressed=" + strconv.Itoa(len(compressedData)) + ":" + strconv.FormatUint(xxhash.Sum64(compressedData), 16)
}

// enqueueAdd queues an Add behind any in-flight Add of the same id. wait is
// closed once the previous Add has finished; done must be called when this
// Add finishes.
func (c *Cache) enqueueAdd(id string) (wait <-chan struct{}, done func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, ok := c.addTails[id]
	if !ok {
		ready := make(chan struct{})
		close(ready)
		prev = ready
	}
	finished := make(chan struct{})
	c.addTails[id] = finished

	return prev, func() {
		close(finished)
		c.mu.Lock()
		if c.addTails[id] == finished {
			delete(c.addTails, id)
		}
		c.mu.Unlock()
	}
}
