package install

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/jio-pm/jio/manifest"
)

// Prune implements §4.8: compute the set of names required by the
// manifest (optionally excluding dev dependencies), then delete any
// top-level node_modules/ directory whose package name is not in that
// set. Nested placements are left untouched; Dedupe and a fresh Install
// are what reconcile those.
func (o *Orchestrator) Prune(includeDev bool) error {
	m, err := o.readManifest()
	if err != nil {
		return err
	}

	required := map[string]bool{}
	fields := []manifest.DependencyField{manifest.Dependencies, manifest.OptionalDependencies}
	if includeDev {
		fields = append(fields, manifest.DevDependencies)
	}
	for _, field := range fields {
		for name := range m.DependencyMap(field) {
			required[name] = true
		}
	}

	entries, err := os.ReadDir(o.nodeModulesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if name == ".bin" {
			continue
		}
		if strings.HasPrefix(name, "@") {
			if err := o.pruneScope(name, required); err != nil {
				return err
			}
			continue
		}
		if !required[name] {
			if err := os.RemoveAll(filepath.Join(o.nodeModulesPath(), name)); err != nil {
				return errors.Wrapf(err, "pruning %s", name)
			}
		}
	}
	return nil
}

// pruneScope handles a "@scope" directory, whose children are the actual
// package directories ("@scope/name").
func (o *Orchestrator) pruneScope(scope string, required map[string]bool) error {
	scopeDir := filepath.Join(o.nodeModulesPath(), scope)
	entries, err := os.ReadDir(scopeDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		full := scope + "/" + entry.Name()
		if !required[full] {
			if err := os.RemoveAll(filepath.Join(scopeDir, entry.Name())); err != nil {
				return errors.Wrapf(err, "pruning %s", full)
			}
		}
	}
	return nil
}
