package store

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	shutil "github.com/termie/go-shutil"
)

// LinkMode selects how materialise places a store entry's tree into a
// target path.
type LinkMode uint8

const (
	// LinkModeHardlink recreates directories/symlinks and hard-links every
	// regular file, falling back to a recursive copy across filesystems.
	// This is the default when source and target share a filesystem.
	LinkModeHardlink LinkMode = iota
	// LinkModeSymlink materialises a single symlink from target to the
	// store entry, used by the strict layout.
	LinkModeSymlink
)

// Link materialises the store entry for (name, version) at targetPath,
// using s's configured mode. Idempotent: if targetPath already points at
// this entry, it is a no-op; otherwise it is atomically replaced.
func (s *Store) Link(name, version, targetPath string) error {
	src := s.entryDir(name, version)
	if _, err := os.Stat(src); err != nil {
		return errors.Wrapf(ErrNotFound, "%s@%s", name, version)
	}

	if alreadyLinked(src, targetPath, s.mode) {
		return nil
	}

	tmp := targetPath + ".jio-tmp"
	os.RemoveAll(tmp)

	switch s.mode {
	case LinkModeSymlink:
		if err := os.MkdirAll(filepath.Dir(tmp), dirMode); err != nil {
			return err
		}
		if err := os.Symlink(src, tmp); err != nil {
			return err
		}
	default:
		if err := hardlinkTree(src, tmp); err != nil {
			os.RemoveAll(tmp)
			if err2 := copyTree(src, tmp); err2 != nil {
				return errors.Wrapf(err2, "linking %s@%s into %s (hardlink failed: %s)", name, version, targetPath, err)
			}
		}
	}

	os.RemoveAll(targetPath)
	if err := os.Rename(tmp, targetPath); err != nil {
		return errors.Wrapf(err, "replacing %s", targetPath)
	}
	return nil
}

func alreadyLinked(src, targetPath string, mode LinkMode) bool {
	if mode == LinkModeSymlink {
		resolved, err := os.Readlink(targetPath)
		return err == nil && resolved == src
	}
	fi, err := os.Lstat(targetPath)
	if err != nil || !fi.IsDir() {
		return false
	}
	// hardlinkTree links the integrity sidecar too, so a tree linked from
	// this entry shares the sidecar file itself with src.
	a, errA := os.Stat(filepath.Join(src, sidecarName))
	b, errB := os.Stat(filepath.Join(targetPath, sidecarName))
	return errA == nil && errB == nil && os.SameFile(a, b)
}

// hardlinkTree recreates dirs/symlinks under dst and hard-links every
// regular file from src. Fails (without partial cleanup by itself — the
// caller removes dst and falls back to copyTree) if src and dst live on
// different filesystems.
func hardlinkTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case info.IsDir():
			return os.MkdirAll(target, dirMode)
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		default:
			if err := os.MkdirAll(filepath.Dir(target), dirMode); err != nil {
				return err
			}
			return os.Link(path, target)
		}
	})
}

// copyTree is the cross-filesystem fallback when hard-linking fails,
// mirroring dep's own vcs_source.go/project_manager.go fallback from a
// cache-repo export to a termie/go-shutil recursive copy.
func copyTree(src, dst string) error {
	cfg := &shutil.CopyTreeOptions{
		Symlinks:     true,
		CopyFunction: shutil.Copy,
	}
	return shutil.CopyTree(src, dst, cfg)
}
