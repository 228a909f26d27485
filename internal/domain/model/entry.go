package model

import (
	"errors"
	"fmt"
	"time"
)

// UploadStatus represents the progress of a cached file through the external upload pipeline.
type UploadStatus string

const (
	UploadStatusPending   UploadStatus = "pending"
	UploadStatusUploading UploadStatus = "uploading"
	UploadStatusCompleted UploadStatus = "completed"
	UploadStatusFailed    UploadStatus = "failed"
)

func (s UploadStatus) IsValid() bool {
	switch s {
	case UploadStatusPending, UploadStatusUploading, UploadStatusCompleted, UploadStatusFailed:
		return true
	default:
		return false
	}
}

func (s UploadStatus) String() string {
	return string(s)
}

var (
	ErrEmptyFileName = errors.New("file name cannot be empty")
	ErrNegativeSize  = errors.New("file size cannot be negative")
	ErrSizeMismatch  = errors.New("file size does not match content length")
	ErrInvalidStatus = errors.New("invalid upload status")
)

// SourceFile is the original file handed to the cache.
// Once cached, Data is owned by the entry and must not be modified by the caller.
type SourceFile struct {
	Name         string
	Size         int64
	LastModified time.Time
	// Type is the MIME type declared by the caller. It may be empty.
	Type string
	Data []byte
}

// NewSourceFile builds a SourceFile from in-memory content.
// LastModified is truncated to millisecond precision so that identity keys survive persistence.
func NewSourceFile(name string, lastModified time.Time, contentType string, data []byte) (SourceFile, error) {
	if name == "" {
		return SourceFile{}, ErrEmptyFileName
	}
	return SourceFile{
		Name:         name,
		Size:         int64(len(data)),
		LastModified: time.UnixMilli(lastModified.UnixMilli()),
		Type:         contentType,
		Data:         data,
	}, nil
}

// Validate checks the identity attributes of the file.
func (f SourceFile) Validate() error {
	if f.Name == "" {
		return ErrEmptyFileName
	}
	if f.Size < 0 {
		return ErrNegativeSize
	}
	if f.Data != nil && int64(len(f.Data)) != f.Size {
		return ErrSizeMismatch
	}
	return nil
}

// ID returns the cache identity of the file.
func (f SourceFile) ID() string {
	return EntryID(f.Name, f.Size, f.LastModified)
}

// EntryID derives the cache key from the file identity attributes.
// Two files with the same name, size and last-modified time are the same entry.
func EntryID(name string, size int64, lastModified time.Time) string {
	return fmt.Sprintf("%s_%d_%d", name, size, lastModified.UnixMilli())
}

// Metadata is the information extracted from a video when it is cached.
type Metadata struct {
	// Duration in seconds.
	Duration float64
	// Size in bytes.
	Size   int64
	Width  int
	Height int
	// Format is the MIME type of the file.
	Format string
}

// AddOptions controls which artifacts are derived when a file is cached.
type AddOptions struct {
	GenerateThumbnail bool
	GeneratePreview   bool
}

// CacheEntry is one cached video file and its derived data.
// All fields except UploadStatus are immutable after creation.
type CacheEntry struct {
	ID             string
	SourceFile     SourceFile
	CompressedData []byte
	// Thumbnail is a data URI, empty when not generated.
	Thumbnail string
	// Preview is a data URI, empty when not generated.
	Preview      string
	Metadata     Metadata
	Timestamp    time.Time
	UploadStatus UploadStatus
}

// IsExpired reports whether the entry is older than ttl at now.
func (e *CacheEntry) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.Timestamp) > ttl
}

// SetUploadStatus replaces the upload status, leaving every other field untouched.
func (e *CacheEntry) SetUploadStatus(status UploadStatus) error {
	if !status.IsValid() {
		return ErrInvalidStatus
	}
	e.UploadStatus = status
	return nil
}

// Clone returns a copy that does not share the entry struct with the cache.
// Byte slices are shared since they are never mutated after creation.
func (e *CacheEntry) Clone() *CacheEntry {
	c := *e
	return &c
}
