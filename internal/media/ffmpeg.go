package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// FFmpegConfig holds configuration for the FFmpeg-based decoder.
type FFmpegConfig struct {
	// FFmpegPath is the path to the ffmpeg binary.
	// If empty, "ffmpeg" will be used (assumes it's in PATH).
	FFmpegPath string

	// FFprobePath is the path to the ffprobe binary.
	// If empty, "ffprobe" will be used (assumes it's in PATH).
	FFprobePath string
}

// DefaultFFmpegConfig returns an FFmpegConfig that resolves both binaries from PATH.
func DefaultFFmpegConfig() FFmpegConfig {
	return FFmpegConfig{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
	}
}

// commandRunner executes a command and returns its stdout.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s cancelled: %w", name, ctx.Err())
		}
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return nil, fmt.Errorf("%s execution failed: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s execution failed: %w", name, err)
	}
	return out, nil
}

// FFmpegDecoder implements Decoder using the ffprobe and ffmpeg CLIs.
type FFmpegDecoder struct {
	config FFmpegConfig
	run    commandRunner
}

// Compile-time verification that FFmpegDecoder implements Decoder.
var _ Decoder = (*FFmpegDecoder)(nil)

// NewFFmpegDecoder creates a new FFmpeg-based decoder.
func NewFFmpegDecoder(cfg FFmpegConfig) *FFmpegDecoder {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	return &FFmpegDecoder{
		config: cfg,
		run:    execRunner,
	}
}

// Open validates the input and starts reading its metadata in the background.
func (d *FFmpegDecoder) Open(ctx context.Context, path string) (Session, error) {
	if err := validateInput(path); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &ffmpegSession{
		decoder: d,
		path:    path,
		ctx:     ctx,
		cancel:  cancel,
		loaded:  make(chan LoadResult, 1),
	}

	go s.load()

	return s, nil
}

// buildProbeArgs constructs the ffprobe arguments for metadata extraction.
func (d *FFmpegDecoder) buildProbeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
}

// buildFrameArgs constructs the ffmpeg arguments that decode a single frame
// at the given offset and write it to stdout as PNG.
func (d *FFmpegDecoder) buildFrameArgs(path string, at time.Duration) []string {
	return []string{
		"-v", "error",
		"-ss", formatSeconds(at),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-c:v", "png",
		"pipe:1",
	}
}

type ffmpegSession struct {
	decoder *FFmpegDecoder
	path    string

	ctx    context.Context
	cancel context.CancelFunc
	loaded chan LoadResult

	mu    sync.Mutex
	frame image.Image

	closeOnce sync.Once
}

func (s *ffmpegSession) load() {
	out, err := s.decoder.run(s.ctx, s.decoder.config.FFprobePath, s.decoder.buildProbeArgs(s.path)...)
	if err != nil {
		s.loaded <- LoadResult{Err: fmt.Errorf("probe: %w", err)}
		return
	}

	probe, err := parseProbeOutput(out)
	if err != nil {
		s.loaded <- LoadResult{Err: fmt.Errorf("parse probe output: %w", err)}
		return
	}

	format, err := detectFormat(s.path)
	if err != nil {
		s.loaded <- LoadResult{Err: fmt.Errorf("detect format: %w", err)}
		return
	}
	probe.Format = format

	s.loaded <- LoadResult{Probe: probe}
}

func (s *ffmpegSession) Loaded() <-chan LoadResult {
	return s.loaded
}

func (s *ffmpegSession) Seek(at time.Duration) <-chan error {
	done := make(chan error, 1)

	go func() {
		out, err := s.decoder.run(s.ctx, s.decoder.config.FFmpegPath, s.decoder.buildFrameArgs(s.path, at)...)
		if err != nil {
			done <- fmt.Errorf("seek to %s: %w", at, err)
			return
		}

		frame, err := png.Decode(bytes.NewReader(out))
		if err != nil {
			done <- fmt.Errorf("decode frame: %w", err)
			return
		}

		s.mu.Lock()
		s.frame = frame
		s.mu.Unlock()

		done <- nil
	}()

	return done
}

func (s *ffmpegSession) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frame == nil {
		return nil, ErrNoFrame
	}
	return s.frame, nil
}

func (s *ffmpegSession) Close() error {
	s.closeOnce.Do(s.cancel)
	return nil
}

// validateInput checks if the input file exists and is readable.
func validateInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %s", path)
		}
		return fmt.Errorf("failed to access input file: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("input path is a directory, expected a file: %s", path)
	}

	return nil
}

// formatSeconds renders d as fractional seconds with millisecond precision.
func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
