package lockfile

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// npmRawLockfile mirrors package-lock.json's on-disk shape for
// lockfileVersion 2/3, modeled on NpmLockfile/NpmPackage in
// other_examples' vercel-turborepo npm lockfile reader: packages are keyed
// by install path ("" for the root, "node_modules/foo", or nested
// "node_modules/foo/node_modules/bar"), not by identity.
type npmRawLockfile struct {
	Name            string                   `json:"name"`
	Version         string                   `json:"version"`
	LockfileVersion int                      `json:"lockfileVersion"`
	Packages        map[string]npmRawPackage `json:"packages"`
}

type npmRawPackage struct {
	Name      string `json:"name,omitempty"`
	Version   string `json:"version,omitempty"`
	Resolved  string `json:"resolved,omitempty"`
	Integrity string `json:"integrity,omitempty"`

	Dev      bool `json:"dev,omitempty"`
	Optional bool `json:"optional,omitempty"`

	Dependencies         map[string]string `json:"dependencies,omitempty"`
	DevDependencies      map[string]string `json:"devDependencies,omitempty"`
	PeerDependencies     map[string]string `json:"peerDependencies,omitempty"`
	OptionalDependencies map[string]string `json:"optionalDependencies,omitempty"`
}

// ImportNPM reads an npm lockfile v2/v3 package-lock.json and projects it
// into jio's native LockFile shape. v1 ("dependencies"-only, no
// "packages" map) is out of scope, matching the turborepo reader's own
// refusal to crawl the legacy nested-dependencies shape.
func ImportNPM(r io.Reader) (*LockFile, error) {
	var raw npmRawLockfile
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(ErrLock, err.Error())
	}
	if raw.LockfileVersion > 0 && raw.LockfileVersion < 2 {
		return nil, errors.Wrapf(ErrLock, "npm lockfileVersion %d has no packages map; not supported", raw.LockfileVersion)
	}
	if raw.Packages == nil {
		return nil, errors.Wrap(ErrLock, "npm lock file has no \"packages\" map")
	}

	root, hasRoot := raw.Packages[""]
	lf := &LockFile{
		Name:     firstNonEmpty(raw.Name, root.Name),
		Version:  firstNonEmpty(raw.Version, root.Version),
		Packages: make(map[string]Entry, len(raw.Packages)),
	}
	if hasRoot {
		lf.Dependencies = root.Dependencies
		lf.DevDependencies = root.DevDependencies
		lf.OptionalDependencies = root.OptionalDependencies
	}

	for path, pkg := range raw.Packages {
		if path == "" {
			continue
		}
		name := pkg.Name
		if name == "" {
			name = npmNameFromPath(path)
		}
		if name == "" || pkg.Version == "" {
			continue
		}
		key := name + "@" + pkg.Version
		entry := Entry{
			Name:      name,
			Version:   pkg.Version,
			Resolved:  pkg.Resolved,
			Integrity: pkg.Integrity,
			Dev:       pkg.Dev,
			Optional:  pkg.Optional,
			Deps:      mergeDependencyMaps(pkg.Dependencies, pkg.OptionalDependencies),
		}
		if existing, ok := lf.Packages[key]; ok {
			// Multiple install paths (hoisted + nested) pinning the same
			// (name, version): fold immediately, recording the path as a
			// provenance range the way Optimise would on a second pass.
			existing.Ranges = appendUnique(existing.Ranges, path)
			lf.Packages[key] = existing
			continue
		}
		entry.Ranges = []string{path}
		lf.Packages[key] = entry
	}

	return lf, nil
}

func npmNameFromPath(path string) string {
	idx := strings.LastIndex(path, "node_modules/")
	if idx == -1 {
		return path
	}
	return path[idx+len("node_modules/"):]
}

func mergeDependencyMaps(maps ...map[string]string) map[string]string {
	var out map[string]string
	for _, m := range maps {
		for k, v := range m {
			if out == nil {
				out = make(map[string]string)
			}
			out[k] = v
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func appendUnique(s []string, v string) []string {
	for _, existing := range s {
		if existing == v {
			return s
		}
	}
	return append(s, v)
}
