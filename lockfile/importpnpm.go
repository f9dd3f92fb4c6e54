package lockfile

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// pnpmRawLockfile mirrors pnpm-lock.yaml's packages: map, decoded with
// gopkg.in/yaml.v3 the way other_examples' berry_lockfile.go decodes its
// own YAML lock format with the same library family. pnpm keys packages
// by "/<name>@<version>" (or "/<name>@<version>(<peer-suffix>)" for
// peer-qualified entries, stripped here since jio has no peer-qualified
// identity concept).
type pnpmRawLockfile struct {
	LockfileVersion interface{}               `yaml:"lockfileVersion"`
	Importers       map[string]pnpmImporter   `yaml:"importers"`
	Dependencies    map[string]pnpmDependency `yaml:"dependencies"`
	DevDependencies map[string]pnpmDependency `yaml:"devDependencies"`
	Packages        map[string]pnpmRawPackage `yaml:"packages"`
}

type pnpmImporter struct {
	Dependencies    map[string]pnpmDependency `yaml:"dependencies"`
	DevDependencies map[string]pnpmDependency `yaml:"devDependencies"`
}

type pnpmDependency struct {
	Specifier string `yaml:"specifier"`
	Version   string `yaml:"version"`
}

type pnpmRawPackage struct {
	Resolution struct {
		Integrity string `yaml:"integrity"`
		Tarball   string `yaml:"tarball"`
	} `yaml:"resolution"`
	Dependencies map[string]string `yaml:"dependencies"`
	OptionalDeps map[string]string `yaml:"optionalDependencies"`
	Dev          bool              `yaml:"dev"`
	Optional     bool              `yaml:"optional"`
}

// ImportPNPM reads pnpm-lock.yaml and projects it into jio's native
// LockFile shape.
func ImportPNPM(r io.Reader) (*LockFile, error) {
	var raw pnpmRawLockfile
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(ErrLock, err.Error())
	}

	lf := &LockFile{Packages: make(map[string]Entry, len(raw.Packages))}

	if root, ok := raw.Importers["."]; ok {
		lf.Dependencies = pnpmSpecifiers(root.Dependencies)
		lf.DevDependencies = pnpmSpecifiers(root.DevDependencies)
	} else {
		lf.Dependencies = pnpmSpecifiers(raw.Dependencies)
		lf.DevDependencies = pnpmSpecifiers(raw.DevDependencies)
	}

	for rawKey, pkg := range raw.Packages {
		name, version, ok := pnpmParseKey(rawKey)
		if !ok {
			continue
		}
		lf.Packages[name+"@"+version] = Entry{
			Name: name, Version: version,
			Integrity: pkg.Resolution.Integrity,
			Resolved:  pkg.Resolution.Tarball,
			Deps:      mergeDependencyMaps(pkg.Dependencies, pkg.OptionalDeps),
			Dev:       pkg.Dev,
			Optional:  pkg.Optional,
		}
	}
	return lf, nil
}

func pnpmSpecifiers(m map[string]pnpmDependency) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for name, dep := range m {
		out[name] = dep.Specifier
	}
	return out
}

// pnpmParseKey splits a pnpm package map key of the form
// "/name@version" or "/@scope/name@version", discarding any trailing
// "(peer,suffix)" qualifier.
func pnpmParseKey(key string) (name, version string, ok bool) {
	key = strings.TrimPrefix(key, "/")
	if idx := strings.Index(key, "("); idx != -1 {
		key = key[:idx]
	}

	scoped := strings.HasPrefix(key, "@")
	rest := key
	prefix := ""
	if scoped {
		parts := strings.SplitN(key[1:], "/", 2)
		if len(parts) != 2 {
			return "", "", false
		}
		prefix = "@" + parts[0] + "/"
		rest = parts[1]
	}

	idx := strings.LastIndex(rest, "@")
	if idx == -1 {
		return "", "", false
	}
	return prefix + rest[:idx], rest[idx+1:], true
}
