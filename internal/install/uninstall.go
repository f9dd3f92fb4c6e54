package install

import (
	"os"
	"path/filepath"
	"strings"
)

// Uninstall implements §4.8 and §8 scenario 3: remove name from the
// manifest, delete its node_modules/ directory, and strip any lock entry
// whose name matches.
func (o *Orchestrator) Uninstall(name string) error {
	m, err := o.readManifest()
	if err != nil {
		return err
	}
	m.RemoveDependency(name)
	if err := o.writeManifest(m); err != nil {
		return err
	}

	if err := os.RemoveAll(filepath.Join(o.nodeModulesPath(), name)); err != nil {
		return err
	}

	lf, err := o.readLock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for key, e := range lf.Packages {
		if e.Name == name || strings.HasPrefix(key, name+"@") {
			delete(lf.Packages, key)
		}
	}
	return o.writeLock(lf)
}
