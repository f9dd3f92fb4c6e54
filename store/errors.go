package store

import "errors"

// Sentinel errors returned by the content store.
var (
	// ErrIntegrity is returned when the computed digest of fetched tarball
	// bytes does not match the integrity string the caller supplied.
	ErrIntegrity = errors.New("store: integrity mismatch")
	// ErrNotFound is returned when a (name, version) entry isn't present.
	ErrNotFound = errors.New("store: entry not found")
	// ErrConcurrent is returned when the per-key advisory lock cannot be acquired.
	ErrConcurrent = errors.New("store: failed to acquire per-key lock")
)
