package repository

import "context"

// UploadEvent announces that a cached video has been stored in object storage.
type UploadEvent struct {
	EntryID   string  `json:"entry_id"`
	ObjectKey string  `json:"object_key"`
	FileName  string  `json:"file_name"`
	Size      int64   `json:"size"`
	Format    string  `json:"format"`
	Duration  float64 `json:"duration"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
}

// EventPublisher defines the interface for publishing upload events.
// Implementations should be provided by the infrastructure layer (e.g., RabbitMQ).
type EventPublisher interface {
	// PublishUploadEvent sends an upload event to downstream consumers
	// such as the transcoding pipeline.
	PublishUploadEvent(ctx context.Context, event UploadEvent) error

	// Close gracefully closes the connection to the broker.
	Close() error
}
