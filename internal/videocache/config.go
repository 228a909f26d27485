package videocache

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hszk-dev/vidcache/internal/media"
)

// Config holds the bounds and thumbnail settings of a Cache.
type Config struct {
	// MaxEntries is the maximum number of cached entries.
	// Default: 5
	MaxEntries int

	// MaxBytes bounds the summed source size of cached entries.
	// Default: 100 MiB
	MaxBytes int64

	// Expiry is how long an entry stays valid after it was added.
	// Default: 24h
	Expiry time.Duration

	// StateKey is the key the whole cache is persisted under.
	// Default: "video_upload_cache"
	StateKey string

	// TempDir is where source files are materialised for decoding.
	// Default: os.TempDir()
	TempDir string

	// ThumbnailWidth and ThumbnailHeight are the thumbnail canvas size.
	// Default: 320x180
	ThumbnailWidth  int
	ThumbnailHeight int

	// ThumbnailQuality is the encoder quality in (0, 1].
	// Default: 0.7
	ThumbnailQuality float64

	// ThumbnailSeekFraction is the thumbnail position as a fraction of the duration.
	// Default: 0.1
	ThumbnailSeekFraction float64
}

// DefaultConfig returns the standard cache bounds.
func DefaultConfig() Config {
	return Config{
		MaxEntries:            5,
		MaxBytes:              100 * 1024 * 1024,
		Expiry:                24 * time.Hour,
		StateKey:              "video_upload_cache",
		TempDir:               os.TempDir(),
		ThumbnailWidth:        320,
		ThumbnailHeight:       180,
		ThumbnailQuality:      0.7,
		ThumbnailSeekFraction: 0.1,
	}
}

// Validate checks that the configuration describes a usable cache.
func (c Config) Validate() error {
	switch {
	case c.MaxEntries <= 0:
		return fmt.Errorf("%w: max entries must be positive, got %d", ErrInvalidConfig, c.MaxEntries)
	case c.MaxBytes <= 0:
		return fmt.Errorf("%w: max bytes must be positive, got %d", ErrInvalidConfig, c.MaxBytes)
	case c.Expiry <= 0:
		return fmt.Errorf("%w: expiry must be positive, got %s", ErrInvalidConfig, c.Expiry)
	case c.StateKey == "":
		return fmt.Errorf("%w: state key cannot be empty", ErrInvalidConfig)
	case c.ThumbnailWidth <= 0 || c.ThumbnailHeight <= 0:
		return fmt.Errorf("%w: invalid thumbnail size %dx%d", ErrInvalidConfig, c.ThumbnailWidth, c.ThumbnailHeight)
	case c.ThumbnailQuality <= 0 || c.ThumbnailQuality > 1:
		return fmt.Errorf("%w: thumbnail quality must be in (0, 1], got %v", ErrInvalidConfig, c.ThumbnailQuality)
	case c.ThumbnailSeekFraction < 0 || c.ThumbnailSeekFraction > 1:
		return fmt.Errorf("%w: thumbnail seek fraction must be in [0, 1], got %v", ErrInvalidConfig, c.ThumbnailSeekFraction)
	}
	return nil
}

// Option customises a Cache.
type Option func(*Cache)

// WithRasterizer replaces the default JPEG rasterizer.
func WithRasterizer(r media.Rasterizer) Option {
	return func(c *Cache) {
		c.rasterizer = r
	}
}

// WithPreviewGenerator enables preview generation.
// Without one, entries never carry a preview.
func WithPreviewGenerator(g media.PreviewGenerator) Option {
	return func(c *Cache) {
		c.preview = g
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger sets the logger used for swallowed failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}
