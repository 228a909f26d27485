package media

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDefaultPreviewConfig(t *testing.T) {
	cfg := DefaultPreviewConfig()

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"FFmpegPath", cfg.FFmpegPath, "ffmpeg"},
		{"ClipDuration", cfg.ClipDuration, 3 * time.Second},
		{"Height", cfg.Height, 180},
		{"StartFraction", cfg.StartFraction, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %v, expected %v", tt.got, tt.expected)
			}
		})
	}
}

func TestFFmpegPreviewGenerator_ClipWindow(t *testing.T) {
	g := NewFFmpegPreviewGenerator(DefaultPreviewConfig())

	tests := []struct {
		name       string
		duration   float64
		wantStart  time.Duration
		wantLength time.Duration
	}{
		{"long video", 60, 6 * time.Second, 3 * time.Second},
		{"short video is clipped to its end", 2, 200 * time.Millisecond, 1800 * time.Millisecond},
		{"zero duration", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, length := g.clipWindow(tt.duration)
			if start != tt.wantStart {
				t.Errorf("start = %v, want %v", start, tt.wantStart)
			}
			if length != tt.wantLength {
				t.Errorf("length = %v, want %v", length, tt.wantLength)
			}
		})
	}
}

func TestFFmpegPreviewGenerator_BuildPreviewArgs(t *testing.T) {
	g := NewFFmpegPreviewGenerator(DefaultPreviewConfig())

	args := g.buildPreviewArgs("/input/video.mp4", 6*time.Second, 3*time.Second)
	expectedArgs := []string{
		"-v", "error",
		"-ss", "6.000",
		"-t", "3.000",
		"-i", "/input/video.mp4",
		"-an",
		"-vf", "scale=-2:180",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-movflags", "frag_keyframe+empty_moov",
		"-f", "mp4",
		"pipe:1",
	}

	if len(args) != len(expectedArgs) {
		t.Fatalf("arg count mismatch: got %d, expected %d", len(args), len(expectedArgs))
	}
	for i, expected := range expectedArgs {
		if args[i] != expected {
			t.Errorf("arg[%d]: got %q, expected %q", i, args[i], expected)
		}
	}
}

func TestFFmpegPreviewGenerator_GeneratePreview(t *testing.T) {
	clip := []byte("fragmented-mp4-bytes")
	path := writeSample(t)

	t.Run("returns data uri", func(t *testing.T) {
		g := NewFFmpegPreviewGenerator(DefaultPreviewConfig())
		g.run = (&fakeRunner{frameOut: clip}).run

		uri, err := g.GeneratePreview(context.Background(), path, Probe{Duration: 30})
		if err != nil {
			t.Fatalf("GeneratePreview failed: %v", err)
		}

		want := "data:video/mp4;base64," + base64.StdEncoding.EncodeToString(clip)
		if uri != want {
			t.Errorf("GeneratePreview() = %q, want %q", uri, want)
		}
	})

	t.Run("ffmpeg failure", func(t *testing.T) {
		g := NewFFmpegPreviewGenerator(DefaultPreviewConfig())
		g.run = (&fakeRunner{frameErr: errors.New("exit status 1")}).run

		if _, err := g.GeneratePreview(context.Background(), path, Probe{Duration: 30}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("empty output", func(t *testing.T) {
		g := NewFFmpegPreviewGenerator(DefaultPreviewConfig())
		g.run = (&fakeRunner{}).run

		_, err := g.GeneratePreview(context.Background(), path, Probe{Duration: 30})
		if err == nil || !strings.Contains(err.Error(), "empty output") {
			t.Errorf("expected empty output error, got %v", err)
		}
	})

	t.Run("zero duration", func(t *testing.T) {
		g := NewFFmpegPreviewGenerator(DefaultPreviewConfig())
		runner := &fakeRunner{frameOut: clip}
		g.run = runner.run

		if _, err := g.GeneratePreview(context.Background(), path, Probe{}); err == nil {
			t.Error("expected error for zero duration")
		}
		if len(runner.calls) != 0 {
			t.Errorf("ffmpeg invoked %d times, want 0", len(runner.calls))
		}
	})

	t.Run("missing input", func(t *testing.T) {
		g := NewFFmpegPreviewGenerator(DefaultPreviewConfig())
		if _, err := g.GeneratePreview(context.Background(), "/non/existent.mp4", Probe{Duration: 30}); err == nil {
			t.Error("expected error for missing input")
		}
	})
}
