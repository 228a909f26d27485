package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"time"
)

const mp4DataURIPrefix = "data:video/mp4;base64,"

// PreviewConfig holds configuration for preview clip extraction.
type PreviewConfig struct {
	// FFmpegPath is the path to the ffmpeg binary.
	FFmpegPath string

	// ClipDuration is the maximum length of the preview clip.
	// Default: 3s
	ClipDuration time.Duration

	// Height is the target clip height in pixels; width keeps the aspect ratio.
	// Default: 180
	Height int

	// StartFraction is the position of the clip start as a fraction of the video duration.
	// Default: 0.1
	StartFraction float64
}

// DefaultPreviewConfig returns a PreviewConfig with defaults matching the thumbnail position.
func DefaultPreviewConfig() PreviewConfig {
	return PreviewConfig{
		FFmpegPath:    "ffmpeg",
		ClipDuration:  3 * time.Second,
		Height:        180,
		StartFraction: 0.1,
	}
}

// FFmpegPreviewGenerator implements PreviewGenerator by extracting a short,
// muted, low resolution MP4 clip with ffmpeg.
type FFmpegPreviewGenerator struct {
	config PreviewConfig
	run    commandRunner
}

// Compile-time verification that FFmpegPreviewGenerator implements PreviewGenerator.
var _ PreviewGenerator = (*FFmpegPreviewGenerator)(nil)

// NewFFmpegPreviewGenerator creates a new preview generator.
func NewFFmpegPreviewGenerator(cfg PreviewConfig) *FFmpegPreviewGenerator {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	return &FFmpegPreviewGenerator{
		config: cfg,
		run:    execRunner,
	}
}

// GeneratePreview extracts the preview clip and returns it as a data URI.
func (g *FFmpegPreviewGenerator) GeneratePreview(ctx context.Context, path string, probe Probe) (string, error) {
	if err := validateInput(path); err != nil {
		return "", err
	}

	start, length := g.clipWindow(probe.Duration)
	if length <= 0 {
		return "", fmt.Errorf("video too short for preview: %.3fs", probe.Duration)
	}

	out, err := g.run(ctx, g.config.FFmpegPath, g.buildPreviewArgs(path, start, length)...)
	if err != nil {
		return "", fmt.Errorf("extract preview: %w", err)
	}
	if len(out) == 0 {
		return "", errors.New("extract preview: empty output")
	}

	return mp4DataURIPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// clipWindow returns the start offset and length of the clip for a video of the given duration.
func (g *FFmpegPreviewGenerator) clipWindow(duration float64) (time.Duration, time.Duration) {
	startSec := duration * g.config.StartFraction
	lengthSec := math.Min(g.config.ClipDuration.Seconds(), duration-startSec)

	start := time.Duration(startSec * float64(time.Second))
	length := time.Duration(lengthSec * float64(time.Second))
	return start, length
}

// buildPreviewArgs constructs the ffmpeg arguments for preview extraction.
// Fragmented MP4 flags are required because the output is a non-seekable pipe.
func (g *FFmpegPreviewGenerator) buildPreviewArgs(path string, start, length time.Duration) []string {
	return []string{
		"-v", "error",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(length),
		"-i", path,
		"-an",
		"-vf", fmt.Sprintf("scale=-2:%d", g.config.Height),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-movflags", "frag_keyframe+empty_moov",
		"-f", "mp4",
		"pipe:1",
	}
}
