package lockfile

import "errors"

// ErrLock is returned for lock-file parse or consistency failures, wrapped
// with the offending detail by every importer and by Read.
var ErrLock = errors.New("lockfile: invalid or inconsistent lock file")
