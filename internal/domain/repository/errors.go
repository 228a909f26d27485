package repository

import "errors"

var (
	// ErrStateNotFound is returned when no persisted cache state exists for a key.
	ErrStateNotFound = errors.New("cache state not found")

	// ErrObjectNotFound is returned when an object does not exist in object storage.
	ErrObjectNotFound = errors.New("object not found")

	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")
)
