package media

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	"strings"
	"testing"
)

func TestJPEGRasterizer_Rasterize(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 1920, 1080))

	uri, err := NewJPEGRasterizer().Rasterize(frame, 320, 180, 0.7)
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}

	if !strings.HasPrefix(uri, "data:image/jpeg;base64,") {
		t.Fatalf("unexpected data URI prefix: %.40s", uri)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/jpeg;base64,"))
	if err != nil {
		t.Fatalf("invalid base64 payload: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("payload is not a jpeg: %v", err)
	}
	if img.Bounds().Dx() != 320 || img.Bounds().Dy() != 180 {
		t.Errorf("thumbnail size = %v, want 320x180", img.Bounds())
	}
}

func TestJPEGRasterizer_Rasterize_StretchesPortraitFrames(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 360, 640))

	uri, err := NewJPEGRasterizer().Rasterize(frame, 320, 180, 0.7)
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}

	raw, _ := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/jpeg;base64,"))
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("payload is not a jpeg: %v", err)
	}
	if cfg.Width != 320 || cfg.Height != 180 {
		t.Errorf("thumbnail size = %dx%d, want 320x180", cfg.Width, cfg.Height)
	}
}

func TestJPEGRasterizer_Rasterize_Errors(t *testing.T) {
	r := NewJPEGRasterizer()

	if _, err := r.Rasterize(nil, 320, 180, 0.7); err == nil {
		t.Error("expected error for nil frame")
	}

	frame := image.NewRGBA(image.Rect(0, 0, 10, 10))
	if _, err := r.Rasterize(frame, 0, 180, 0.7); err == nil {
		t.Error("expected error for zero width")
	}
}

func TestJPEGQuality(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0.7, 70},
		{1, 100},
		{0, 1},
		{1.5, 100},
		{0.925, 93},
	}

	for _, tt := range tests {
		if got := jpegQuality(tt.in); got != tt.want {
			t.Errorf("jpegQuality(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
