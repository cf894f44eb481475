package storage

import "errors"

// Common storage errors.
var (
	// ErrNotFound is returned when a key is not present in the bucket.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when an optimistic update loses to a concurrent write.
	ErrConflict = errors.New("revision conflict")

	// ErrExists is returned when creating a key that is already present.
	ErrExists = errors.New("entity already exists")
)
