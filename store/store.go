package store

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const sidecarName = ".jio-integrity"

// Store is the shared, content-addressed on-disk cache keyed by
// (name, version). Entries are immutable once written; concurrent writers
// for distinct keys proceed in parallel, same-key writers serialise via a
// per-key advisory lock (keylock.go).
type Store struct {
	root string
	mode LinkMode
}

// Open returns a Store rooted at dir, creating it if necessary.
func Open(dir string, mode LinkMode) (*Store, error) {
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, errors.Wrapf(err, "creating store root %s", dir)
	}
	return &Store{root: dir, mode: mode}, nil
}

// encodeName avoids path separators in scoped names: "@s/n" -> "@s+n".
func encodeName(name string) string {
	return strings.Replace(name, "/", "+", 1)
}

func (s *Store) entryDir(name, version string) string {
	return filepath.Join(s.root, encodeName(name), version)
}

func (s *Store) tmpDir() string {
	return filepath.Join(s.root, ".tmp")
}

func (s *Store) lockDir() string {
	return filepath.Join(s.root, ".locks")
}

// Exists reports whether (name, version) is already present locally.
func (s *Store) Exists(name, version string) bool {
	_, err := os.Stat(filepath.Join(s.entryDir(name, version), sidecarName))
	return err == nil
}

// Integrity returns the recorded integrity digest for (name, version).
func (s *Store) Integrity(name, version string) (string, error) {
	b, err := ioutil.ReadFile(filepath.Join(s.entryDir(name, version), sidecarName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrapf(ErrNotFound, "%s@%s", name, version)
		}
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// Add consumes a gzip-compressed tar stream for (name, version), verifying
// it against wantIntegrity (an SRI string) as it decodes, and persists the
// unpacked tree plus an integrity sidecar on success. On a digest mismatch
// the temp directory is removed and ErrIntegrity is returned; nothing is
// left visible. Safe to call concurrently for distinct keys; same-key
// callers serialise on a per-key file lock.
func (s *Store) Add(ctx context.Context, name, version string, r io.Reader, wantIntegrity string) error {
	want, err := parseSRI(wantIntegrity)
	if err != nil {
		return err
	}

	lock, err := acquireKeyLock(ctx, s.lockDir(), encodeName(name)+"@"+version)
	if err != nil {
		return err
	}
	defer lock.release()

	if s.Exists(name, version) {
		return nil
	}

	if err := os.MkdirAll(s.tmpDir(), dirMode); err != nil {
		return err
	}
	tmp, err := ioutil.TempDir(s.tmpDir(), "add-*")
	if err != nil {
		return err
	}
	cleanup := func() { os.RemoveAll(tmp) }

	hasher := newHasher(want.algo)
	tee := io.TeeReader(r, hasher)

	done := make(chan error, 1)
	go func() {
		err := unpackTarball(tee, tmp)
		if err == nil {
			// Hash the rest of the stream too (gzip trailer, padding) that
			// the decoder stopped short of after the end-of-archive marker.
			_, err = io.Copy(ioutil.Discard, tee)
		}
		done <- err
	}()

	select {
	case <-ctx.Done():
		cleanup()
		return ctx.Err()
	case err := <-done:
		if err != nil {
			cleanup()
			return errors.Wrapf(err, "unpacking %s@%s", name, version)
		}
	}

	sum := hasher.Sum(nil)
	if !want.verify(sum) {
		cleanup()
		return errors.Wrapf(ErrIntegrity, "%s@%s: want %s, got %s", name, version, wantIntegrity, computeSRI(want.algo, sum))
	}

	if err := ioutil.WriteFile(filepath.Join(tmp, sidecarName), []byte(want.String()), 0644); err != nil {
		cleanup()
		return err
	}

	dest := s.entryDir(name, version)
	if err := os.MkdirAll(filepath.Dir(dest), dirMode); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		cleanup()
		return errors.Wrapf(err, "committing %s@%s into store", name, version)
	}
	return nil
}
