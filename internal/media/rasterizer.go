package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"golang.org/x/image/draw"
)

const jpegDataURIPrefix = "data:image/jpeg;base64,"

// JPEGRasterizer implements Rasterizer by scaling frames and encoding them as JPEG.
type JPEGRasterizer struct{}

// Compile-time verification that JPEGRasterizer implements Rasterizer.
var _ Rasterizer = JPEGRasterizer{}

// NewJPEGRasterizer creates a new JPEG rasterizer.
func NewJPEGRasterizer() JPEGRasterizer {
	return JPEGRasterizer{}
}

// Rasterize stretches frame onto a width x height canvas, the same way a
// fixed-size canvas draw would, and encodes it as a JPEG data URI.
func (JPEGRasterizer) Rasterize(frame image.Image, width, height int, quality float64) (string, error) {
	if frame == nil {
		return "", ErrNoFrame
	}
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("invalid canvas size %dx%d", width, height)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), frame, frame.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: jpegQuality(quality)}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}

	return jpegDataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// jpegQuality maps a (0, 1] quality factor onto the 1-100 JPEG scale.
func jpegQuality(q float64) int {
	v := int(math.Round(q * 100))
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}
