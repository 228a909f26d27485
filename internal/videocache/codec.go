package videocache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hszk-dev/vidcache/internal/domain/model"
)

// stateJSON is the persisted form of the cache: entries keyed by id.
type stateJSON map[string]entryJSON

type entryJSON struct {
	ID             string         `json:"id"`
	SourceFile     sourceFileJSON `json:"sourceFile"`
	CompressedData []byte         `json:"compressedData,omitempty"`
	Thumbnail      string         `json:"thumbnail,omitempty"`
	Preview        string         `json:"preview,omitempty"`
	Metadata       metadataJSON   `json:"metadata"`
	Timestamp      int64          `json:"timestamp"`
	UploadStatus   string         `json:"uploadStatus"`
}

type sourceFileJSON struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	LastModified int64  `json:"lastModified"`
	Type         string `json:"type,omitempty"`
	Data         []byte `json:"data,omitempty"`
}

type metadataJSON struct {
	Duration float64 `json:"duration"`
	Size     int64   `json:"size"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Format   string  `json:"format"`
}

func encodeState(entries map[string]*model.CacheEntry) ([]byte, error) {
	state := make(stateJSON, len(entries))
	for id, e := range entries {
		state[id] = entryJSON{
			ID: e.ID,
			SourceFile: sourceFileJSON{
				Name:         e.SourceFile.Name,
				Size:         e.SourceFile.Size,
				LastModified: e.SourceFile.LastModified.UnixMilli(),
				Type:         e.SourceFile.Type,
				Data:         e.SourceFile.Data,
			},
			CompressedData: e.CompressedData,
			Thumbnail:      e.Thumbnail,
			Preview:        e.Preview,
			Metadata: metadataJSON{
				Duration: e.Metadata.Duration,
				Size:     e.Metadata.Size,
				Width:    e.Metadata.Width,
				Height:   e.Metadata.Height,
				Format:   e.Metadata.Format,
			},
			Timestamp:    e.Timestamp.UnixMilli(),
			UploadStatus: e.UploadStatus.String(),
		}
	}
	return json.Marshal(state)
}

// decodeState parses a persisted cache. Entries with an unknown upload status
// are skipped and counted rather than failing the whole state.
func decodeState(data []byte) ([]*model.CacheEntry, int, error) {
	var state stateJSON
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, 0, fmt.Errorf("unmarshal cache state: %w", err)
	}

	entries := make([]*model.CacheEntry, 0, len(state))
	skipped := 0
	for id, j := range state {
		status := model.UploadStatus(j.UploadStatus)
		if !status.IsValid() {
			skipped++
			continue
		}
		entries = append(entries, &model.CacheEntry{
			ID: id,
			SourceFile: model.SourceFile{
				Name:         j.SourceFile.Name,
				Size:         j.SourceFile.Size,
				LastModified: time.UnixMilli(j.SourceFile.LastModified),
				Type:         j.SourceFile.Type,
				Data:         j.SourceFile.Data,
			},
			CompressedData: j.CompressedData,
			Thumbnail:      j.Thumbnail,
			Preview:        j.Preview,
			Metadata: model.Metadata{
				Duration: j.Metadata.Duration,
				Size:     j.Metadata.Size,
				Width:    j.Metadata.Width,
				Height:   j.Metadata.Height,
				Format:   j.Metadata.Format,
			},
			Timestamp:    time.UnixMilli(j.Timestamp),
			UploadStatus: status,
		})
	}
	return entries, skipped, nil
}

func truncateMillis(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli())
}
