package store

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	flock "github.com/theckman/go-flock"
)

// keyLock is the per-(name,version) advisory lock the concurrency model in
// §5 asks for: held only for the duration of a single Add, so that
// concurrent writers for the same key serialise while distinct keys proceed
// in parallel. Readers never take it.
//
// dep vendored theckman/go-flock but never wired it into the checked-out
// core; this is the home the store's concurrency section gives it.
type keyLock struct {
	fl *flock.Flock
}

func acquireKeyLock(ctx context.Context, lockDir, key string) (*keyLock, error) {
	if err := os.MkdirAll(lockDir, dirMode); err != nil {
		return nil, err
	}
	path := filepath.Join(lockDir, key+".lock")
	fl := flock.NewFlock(path)

	const pollInterval = 25 * time.Millisecond
	for {
		ok, err := fl.TryLock()
		if err != nil {
			return nil, errors.Wrapf(ErrConcurrent, "%s: %s", key, err)
		}
		if ok {
			return &keyLock{fl: fl}, nil
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ErrConcurrent, "%s: %s", key, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func (k *keyLock) release() {
	if k == nil || k.fl == nil {
		return
	}
	k.fl.Unlock()
}
