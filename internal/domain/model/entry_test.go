package model

import (
	"errors"
	"testing"
	"time"
)

func TestUploadStatus_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		status UploadStatus
		want   bool
	}{
		{"pending is valid", UploadStatusPending, true},
		{"uploading is valid", UploadStatusUploading, true},
		{"completed is valid", UploadStatusCompleted, true},
		{"failed is valid", UploadStatusFailed, true},
		{"empty string is invalid", UploadStatus(""), false},
		{"unknown status is invalid", UploadStatus("UPLOADING"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.want {
				t.Errorf("UploadStatus.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntryID(t *testing.T) {
	lastModified := time.UnixMilli(1700000000123)

	got := EntryID("clip.mp4", 1048576, lastModified)
	want := "clip.mp4_1048576_1700000000123"
	if got != want {
		t.Errorf("EntryID() = %q, want %q", got, want)
	}

	t.Run("same attributes give same id", func(t *testing.T) {
		other := EntryID("clip.mp4", 1048576, time.UnixMilli(1700000000123))
		if other != got {
			t.Errorf("EntryID() = %q, want %q", other, got)
		}
	})

	t.Run("sub-millisecond differences are ignored", func(t *testing.T) {
		other := EntryID("clip.mp4", 1048576, lastModified.Add(500*time.Microsecond))
		if other != got {
			t.Errorf("EntryID() = %q, want %q", other, got)
		}
	})

	t.Run("different size gives different id", func(t *testing.T) {
		other := EntryID("clip.mp4", 1048577, lastModified)
		if other == got {
			t.Error("expected different ids for different sizes")
		}
	})
}

func TestNewSourceFile(t *testing.T) {
	lastModified := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)

	tests := []struct {
		name    string
		file    string
		data    []byte
		wantErr error
	}{
		{
			name:    "valid file",
			file:    "video.mp4",
			data:    []byte("content"),
			wantErr: nil,
		},
		{
			name:    "empty name",
			file:    "",
			data:    []byte("content"),
			wantErr: ErrEmptyFileName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewSourceFile(tt.file, lastModified, "video/mp4", tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewSourceFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}

			if f.Size != int64(len(tt.data)) {
				t.Errorf("Size = %d, want %d", f.Size, len(tt.data))
			}
			if f.LastModified.UnixMilli() != lastModified.UnixMilli() {
				t.Errorf("LastModified = %v, want %v", f.LastModified, lastModified)
			}
			if f.LastModified.Nanosecond()%int(time.Millisecond) != 0 {
				t.Errorf("LastModified not truncated to milliseconds: %v", f.LastModified)
			}
		})
	}
}

func TestSourceFile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		file    SourceFile
		wantErr error
	}{
		{"valid", SourceFile{Name: "a.mp4", Size: 3, Data: []byte("abc")}, nil},
		{"metadata only", SourceFile{Name: "a.mp4", Size: 3}, nil},
		{"empty name", SourceFile{Size: 3, Data: []byte("abc")}, ErrEmptyFileName},
		{"negative size", SourceFile{Name: "a.mp4", Size: -1}, ErrNegativeSize},
		{"size mismatch", SourceFile{Name: "a.mp4", Size: 4, Data: []byte("abc")}, ErrSizeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.file.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCacheEntry_IsExpired(t *testing.T) {
	now := time.Now()
	ttl := 24 * time.Hour

	tests := []struct {
		name      string
		timestamp time.Time
		want      bool
	}{
		{"fresh entry", now.Add(-time.Hour), false},
		{"exactly at ttl", now.Add(-ttl), false},
		{"older than ttl", now.Add(-ttl - time.Millisecond), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &CacheEntry{Timestamp: tt.timestamp}
			if got := e.IsExpired(now, ttl); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheEntry_SetUploadStatus(t *testing.T) {
	ts := time.UnixMilli(1700000000000)
	e := &CacheEntry{
		ID:           "a.mp4_3_1",
		Thumbnail:    "data:image/jpeg;base64,AAAA",
		Metadata:     Metadata{Duration: 12.5, Size: 3, Width: 640, Height: 360, Format: "video/mp4"},
		Timestamp:    ts,
		UploadStatus: UploadStatusPending,
	}

	if err := e.SetUploadStatus(UploadStatusUploading); err != nil {
		t.Fatalf("SetUploadStatus() unexpected error: %v", err)
	}
	if e.UploadStatus != UploadStatusUploading {
		t.Errorf("UploadStatus = %v, want %v", e.UploadStatus, UploadStatusUploading)
	}
	if !e.Timestamp.Equal(ts) {
		t.Errorf("Timestamp changed to %v", e.Timestamp)
	}

	if err := e.SetUploadStatus("done"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("SetUploadStatus() error = %v, want %v", err, ErrInvalidStatus)
	}
	if e.UploadStatus != UploadStatusUploading {
		t.Errorf("invalid status overwrote UploadStatus: %v", e.UploadStatus)
	}
}

func TestCacheEntry_Clone(t *testing.T) {
	e := &CacheEntry{ID: "x", UploadStatus: UploadStatusPending}
	c := e.Clone()
	c.UploadStatus = UploadStatusFailed

	if e.UploadStatus != UploadStatusPending {
		t.Errorf("mutating clone changed original: %v", e.UploadStatus)
	}
}
