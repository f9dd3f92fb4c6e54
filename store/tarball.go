package store

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

const (
	fileMode = 0644
	dirMode  = 0755
	execBit  = 0100
)

// unpackTarball decompresses a gzip-wrapped ustar stream and writes its
// contents under dir, stripping the conventional leading "package/"
// directory per §4.4/§6. Regular file modes are normalised to 0644 (0755
// for directories) except the owner-execute bit, which is preserved;
// symlink entries are recreated as symlinks.
func unpackTarball(r io.Reader, dir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "store: opening gzip stream")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "store: reading tar entry")
		}

		name := stripPackagePrefix(hdr.Name)
		if name == "" {
			continue
		}
		target := filepath.Join(dir, filepath.FromSlash(name))
		if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) {
			return errors.Errorf("store: tar entry %q escapes destination", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, dirMode); err != nil {
				return err
			}
		case tar.TypeReg, tar.TypeRegA:
			if err := os.MkdirAll(filepath.Dir(target), dirMode); err != nil {
				return err
			}
			if err := writeRegularFile(target, tr, hdr); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), dirMode); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		default:
			// directories-implied-by-path, hard links, etc: skip silently,
			// matching the ustar subset the registry protocol actually emits.
		}
	}
}

func writeRegularFile(target string, r io.Reader, hdr *tar.Header) error {
	mode := os.FileMode(fileMode)
	if hdr.Mode&execBit != 0 {
		mode |= 0100
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

// stripPackagePrefix removes the leading "package/" directory component
// npm tarballs conventionally wrap their contents in. Entries outside that
// directory (rare, but seen in hand-rolled tarballs) pass through unchanged.
func stripPackagePrefix(name string) string {
	name = strings.TrimPrefix(name, "./")
	const prefix = "package/"
	if strings.HasPrefix(name, prefix) {
		return strings.TrimPrefix(name, prefix)
	}
	if name == "package" {
		return ""
	}
	return name
}
