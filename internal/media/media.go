package media

import (
	"context"
	"errors"
	"image"
	"time"
)

var (
	// ErrNoVideoStream is returned when the decoded resource has no video stream.
	ErrNoVideoStream = errors.New("no video stream found")

	// ErrNoFrame is returned when a frame is requested before a seek has completed.
	ErrNoFrame = errors.New("no frame decoded")

	// ErrNoContent is returned when a source file has no content to decode.
	ErrNoContent = errors.New("source file has no content")
)

// Probe contains the properties of a decoded media resource.
type Probe struct {
	// Duration is the natural duration in seconds.
	Duration float64
	// Width and Height are the pixel dimensions of the first video stream.
	Width  int
	Height int
	// Format is the MIME type detected from the file content.
	Format string
}

// LoadResult is delivered once the decoder has read the resource metadata.
type LoadResult struct {
	Probe Probe
	Err   error
}

// Decoder opens media resources for metadata extraction and frame capture.
type Decoder interface {
	// Open starts decoding the resource at path.
	// Metadata is delivered asynchronously through Session.Loaded.
	Open(ctx context.Context, path string) (Session, error)
}

// Session is an open decoding of one media resource.
//
// Loaded and Seek expose the two asynchronous signals of a decoding:
// metadata readiness and seek completion. Neither has a built-in timeout;
// callers that need one must select on their own timer.
type Session interface {
	// Loaded returns a channel that receives exactly one LoadResult.
	Loaded() <-chan LoadResult

	// Seek moves the decoder to the given offset. The returned channel
	// receives nil once the frame at that offset is available via Frame,
	// or the error that prevented it.
	Seek(at time.Duration) <-chan error

	// Frame returns the frame at the position of the last completed seek.
	Frame() (image.Image, error)

	// Close releases decoder resources and aborts in-flight work.
	Close() error
}

// Rasterizer encodes a decoded frame as a still image.
type Rasterizer interface {
	// Rasterize scales frame to width x height and returns it as a data URI.
	// quality is in the range (0, 1].
	Rasterize(frame image.Image, width, height int, quality float64) (string, error)
}

// PreviewGenerator produces a lightweight preview clip of a video.
type PreviewGenerator interface {
	// GeneratePreview returns the preview of the resource at path as a data URI.
	GeneratePreview(ctx context.Context, path string, probe Probe) (string, error)
}
