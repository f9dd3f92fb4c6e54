package semver

import "errors"

// Sentinel errors returned by this package. Callers compare with errors.Is.
var (
	// ErrBadVersion is returned when a version string cannot be parsed.
	ErrBadVersion = errors.New("semver: invalid version")
	// ErrBadRange is returned when a range string cannot be parsed.
	ErrBadRange = errors.New("semver: invalid range")
)
