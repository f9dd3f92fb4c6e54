package registry

import "errors"

// Sentinel errors returned by the registry client.
var (
	ErrNotFound  = errors.New("registry: package not found")
	ErrNoVersion = errors.New("registry: no such version in metadata")
	ErrNetwork   = errors.New("registry: network error")
	ErrAuth      = errors.New("registry: authentication failed")
)
