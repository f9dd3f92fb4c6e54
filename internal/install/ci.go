package install

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/jio-pm/jio/layout"
	"github.com/jio-pm/jio/lockfile"
	"github.com/jio-pm/jio/store"
)

// CI runs the reinstall-from-lock flow of §4.8: refuse without a lock
// file, verify every entry against the store (downloading anything
// missing, never re-resolving), rebuild node_modules/ into a sibling temp
// tree and swap it into place, and never touch the manifest or the lock.
func (o *Orchestrator) CI(ctx context.Context) error {
	lf, err := o.readLock()
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNoLockFile
		}
		return err
	}

	if err := o.verifyAgainstStore(ctx, lf); err != nil {
		return mapCancel(err)
	}

	placements := lockPlacements(lf, o.layoutMode())
	if err := o.materialiseAtomically(ctx, placements); err != nil {
		return mapCancel(err)
	}
	return nil
}

// verifyAgainstStore asserts the store holds (name, version) with the
// recorded integrity for every lock entry, downloading through the
// registry first if the entry is missing locally. Any verification
// failure leaves node_modules/ untouched: CI only removes/materialises
// after this function returns successfully.
func (o *Orchestrator) verifyAgainstStore(ctx context.Context, lf *lockfile.LockFile) error {
	for _, key := range lf.SortedKeys() {
		e := lf.Packages[key]
		if !o.Store.Exists(e.Name, e.Version) {
			rc, err := o.Registry.Download(ctx, e.Name, e.Version)
			if err != nil {
				return errors.Wrapf(err, "downloading %s@%s for ci verify", e.Name, e.Version)
			}
			err = o.Store.Add(ctx, e.Name, e.Version, rc, e.Integrity)
			rc.Close()
			if err != nil {
				return errors.Wrapf(err, "ci verify: %s@%s", e.Name, e.Version)
			}
			continue
		}
		got, err := o.Store.Integrity(e.Name, e.Version)
		if err != nil {
			return err
		}
		if got != e.Integrity {
			return errors.Wrapf(store.ErrIntegrity, "%s@%s: lock wants %s, store has %s", e.Name, e.Version, e.Integrity, got)
		}
	}
	return nil
}

// lockPlacements rebuilds a Placement set directly from a lock file
// without re-resolving, for CI and any other lock-driven reinstall.
// Hoisted mode places every entry at the top level (the lock file already
// encodes the flat-hoisting bias's final picks as distinct identities);
// nested conflict placement is a planning-time concern the resolver
// already resolved when the lock was written, so CI only ever re-derives
// the flat set here.
//
// lockfile.Entry carries no Bin: the native format is identity-keyed on
// (name, version) with no room to record per-consumer bin maps, so the
// placements built here have no bin entries. materialiseAtomically replaces
// node_modules/ wholesale, so the tree CI leaves behind has no .bin shims.
func lockPlacements(lf *lockfile.LockFile, mode layout.Mode) []layout.Placement {
	var placements []layout.Placement
	for _, key := range lf.SortedKeys() {
		e := lf.Packages[key]
		target := "node_modules/" + e.Name
		if mode == layout.Strict {
			target = ".jio/" + key + "/node_modules/" + e.Name
		}
		placements = append(placements, layout.Placement{
			Identity: key, Name: e.Name, Version: e.Version,
			TargetPath: target,
			TopLevel:   true,
		})
	}
	return placements
}
