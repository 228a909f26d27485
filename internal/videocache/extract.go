package videocache

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hszk-dev/vidcache/internal/domain/model"
	"github.com/hszk-dev/vidcache/internal/infrastructure/metrics"
	"github.com/hszk-dev/vidcache/internal/media"
)

// derived is what Add extracts from a source file.
type derived struct {
	metadata  model.Metadata
	thumbnail string
	preview   string
}

// extract decodes file and derives its metadata, thumbnail and preview.
//
// It blocks twice on the decoder: once for metadata readiness and, when a
// thumbnail is requested, once for the seek to land. The frame is only read
// after the seek has completed. The temporary source and the decoder session
// are released on every path.
func (c *Cache) extract(ctx context.Context, file model.SourceFile, opts model.AddOptions) (derived, error) {
	timer := prometheus.NewTimer(metrics.DecodeDuration)
	defer timer.ObserveDuration()

	path, release, err := media.Materialize(c.cfg.TempDir, file)
	if err != nil {
		return derived{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	defer release()

	session, err := c.decoder.Open(ctx, path)
	if err != nil {
		return derived{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	defer session.Close()

	loaded := <-session.Loaded()
	if loaded.Err != nil {
		return derived{}, fmt.Errorf("%w: %w", ErrDecode, loaded.Err)
	}
	probe := loaded.Probe

	format := file.Type
	if format == "" {
		format = probe.Format
	}

	out := derived{
		metadata: model.Metadata{
			Duration: probe.Duration,
			Size:     file.Size,
			Width:    probe.Width,
			Height:   probe.Height,
			Format:   format,
		},
	}

	if opts.GenerateThumbnail {
		thumbnail, err := c.thumbnail(session, probe.Duration)
		if err != nil {
			return derived{}, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		out.thumbnail = thumbnail
	}

	if opts.GeneratePreview && c.preview != nil {
		preview, err := c.preview.GeneratePreview(ctx, path, probe)
		if err != nil {
			// A missing preview degrades the entry but does not reject it.
			c.logger.Warn("failed to generate preview",
				"file_name", file.Name,
				"error", err,
			)
		} else {
			out.preview = preview
		}
	}

	return out, nil
}

// thumbnail seeks to the configured fraction of the duration, waits for the
// seek to complete and rasterizes the frame at that position.
func (c *Cache) thumbnail(session media.Session, duration float64) (string, error) {
	at := time.Duration(duration * c.cfg.ThumbnailSeekFraction * float64(time.Second))

	if err := <-session.Seek(at); err != nil {
		return "", fmt.Errorf("seek to %s: %w", at, err)
	}

	frame, err := session.Frame()
	if err != nil {
		return "", err
	}

	return c.rasterizer.Rasterize(frame, c.cfg.ThumbnailWidth, c.cfg.ThumbnailHeight, c.cfg.ThumbnailQuality)
}
