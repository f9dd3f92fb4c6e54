package install

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/jio-pm/jio/layout"
	"github.com/jio-pm/jio/lockfile"
	"github.com/jio-pm/jio/manifest"
	"github.com/jio-pm/jio/resolve"
)

// layoutSubdirs lists the top-level directories Plan ever targets: plain
// node_modules/ placements, and (strict mode) the .jio/ store-backed tree.
var layoutSubdirs = []string{"node_modules", ".jio"}

// AddSpec describes a package the caller wants added to the manifest
// before resolving, e.g. `install left-pad --save-dev`.
type AddSpec struct {
	Name  string
	Range string
	Field manifest.DependencyField // defaults to manifest.Dependencies
}

// Install runs the fresh-install flow of §4.8: read manifest (patching it
// first for any AddSpec), resolve, download/verify with bounded
// concurrency, build the node_modules layout into a sibling temp tree and
// rename it into place, then write the lock file. Per §7 "Destructive
// updates", a required-package or layout failure leaves the pre-existing
// node_modules/ untouched: nothing under the project directory is removed
// until the new tree is fully materialised and ready to swap in. adds is
// the "install (with added package)" variant folded into the same call.
func (o *Orchestrator) Install(ctx context.Context, adds []AddSpec) (*resolve.Graph, error) {
	m, err := o.readManifest()
	if err != nil {
		return nil, err
	}

	for _, add := range adds {
		field := add.Field
		if field == "" {
			field = manifest.Dependencies
		}
		m.AddDependency(field, add.Name, add.Range)
	}
	if len(adds) > 0 {
		if err := o.writeManifest(m); err != nil {
			return nil, err
		}
	}

	g, err := o.resolver(nil).Resolve(ctx, m)
	if err != nil {
		return nil, mapCancel(err)
	}

	if err := o.downloadAndVerify(ctx, g); err != nil {
		return nil, mapCancel(err)
	}

	placements := layout.Plan(g, o.layoutMode())
	if err := o.materialiseAtomically(ctx, placements); err != nil {
		return nil, mapCancel(err)
	}

	lf := lockfile.FromGraph(g)
	if err := o.writeLock(lf); err != nil {
		return nil, err
	}
	return g, nil
}

// downloadAndVerify fetches and stores every resolved package not already
// present in the content store, bounded by Config.MaxConcurrentDownloads.
// A required package's failure cancels the sibling downloads; an optional
// package's failure is logged and the package is removed from g, so
// neither the layout nor the lock file refers to it.
func (o *Orchestrator) downloadAndVerify(ctx context.Context, g *resolve.Graph) error {
	limit := int64(o.Config.MaxConcurrentDownloads)
	if limit <= 0 {
		limit = 10
	}
	sem := semaphore.NewWeighted(limit)

	group, gctx := errgroup.WithContext(ctx)
	for _, key := range g.SortedKeys() {
		pkg := g.Packages[key]
		if pkg.Resolved == "" {
			continue // workspace member, nothing to fetch
		}
		if o.Store.Exists(pkg.Name, pkg.Version) {
			continue
		}
		pkg := pkg
		group.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			o.Log.Infof("fetching %s@%s", pkg.Name, pkg.Version)
			rc, err := o.Registry.Download(gctx, pkg.Name, pkg.Version)
			if err != nil {
				if pkg.Optional {
					o.Log.Warnf("optional package %s@%s failed to download: %s", pkg.Name, pkg.Version, err)
					return nil
				}
				return errors.Wrapf(err, "downloading %s@%s", pkg.Name, pkg.Version)
			}
			defer rc.Close()

			if err := o.Store.Add(gctx, pkg.Name, pkg.Version, rc, pkg.Integrity); err != nil {
				if pkg.Optional {
					o.Log.Warnf("optional package %s@%s failed to verify: %s", pkg.Name, pkg.Version, err)
					return nil
				}
				return errors.Wrapf(err, "storing %s@%s", pkg.Name, pkg.Version)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	for key, pkg := range g.Packages {
		if pkg.Optional && pkg.Resolved != "" && !o.Store.Exists(pkg.Name, pkg.Version) {
			delete(g.Packages, key)
		}
	}
	return nil
}

// materialiseAtomically builds the node_modules (and, in strict mode,
// .jio/) tree for placements into a sibling temp directory, then swaps it
// into place over the live tree per §7 "Destructive updates": nothing
// under o.ProjectDir is removed until the new tree is fully built and
// ready, so a failure here leaves any pre-existing node_modules/ exactly
// as it was.
func (o *Orchestrator) materialiseAtomically(ctx context.Context, placements []layout.Placement) error {
	tmpRoot, err := os.MkdirTemp(o.ProjectDir, ".jio-install-*")
	if err != nil {
		return errors.Wrap(err, "creating temp install directory")
	}
	defer os.RemoveAll(tmpRoot)

	if err := layout.Materialise(ctx, tmpRoot, placements, o.Store); err != nil {
		return err
	}
	if err := layout.WriteBinShims(tmpRoot, placements); err != nil {
		return err
	}

	for _, name := range layoutSubdirs {
		src := filepath.Join(tmpRoot, name)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		dst := filepath.Join(o.ProjectDir, name)
		if err := os.RemoveAll(dst); err != nil {
			return errors.Wrapf(err, "removing stale %s", name)
		}
		if err := os.Rename(src, dst); err != nil {
			return errors.Wrapf(err, "swapping in new %s", name)
		}
	}
	return nil
}
