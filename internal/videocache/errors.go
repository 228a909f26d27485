package videocache

import "errors"

var (
	// ErrDecode is returned by Add when the file cannot be decoded as video.
	ErrDecode = errors.New("failed to decode video")

	// ErrEntryTooLarge is returned by Add when a single file exceeds the byte budget.
	ErrEntryTooLarge = errors.New("file exceeds cache capacity")

	// ErrInvalidConfig is returned by New for unusable bounds.
	ErrInvalidConfig = errors.New("invalid cache config")
)
