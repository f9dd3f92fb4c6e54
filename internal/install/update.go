package install

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/jio-pm/jio/lockfile"
	"github.com/jio-pm/jio/manifest"
	"github.com/jio-pm/jio/registry"
	"github.com/jio-pm/jio/resolve"
	"github.com/jio-pm/jio/semver"
)

// Update re-resolves the named dependencies (or every declared dependency
// when names is empty) against the registry, keeping each one's existing
// range prefix (`^`, `~`, or none) per §4.8 and §8 scenario 4, then writes
// the new manifest and lock. useLatest swaps "highest satisfying the
// current range" for "the registry's latest dist-tag".
func (o *Orchestrator) Update(ctx context.Context, names []string, useLatest bool) (*resolve.Graph, error) {
	m, err := o.readManifest()
	if err != nil {
		return nil, err
	}

	targets := names
	if len(targets) == 0 {
		targets = allDependencyNames(m)
	}

	for _, name := range targets {
		field, oldRange, ok := findDependency(m, name)
		if !ok {
			continue
		}
		newRange, err := o.nextRange(ctx, name, oldRange, useLatest)
		if err != nil {
			return nil, err
		}
		m.AddDependency(field, name, newRange)
	}

	if err := o.writeManifest(m); err != nil {
		return nil, err
	}

	g, err := o.resolver(nil).Resolve(ctx, m)
	if err != nil {
		return nil, mapCancel(err)
	}
	if err := o.downloadAndVerify(ctx, g); err != nil {
		return nil, mapCancel(err)
	}

	lf := lockfile.FromGraph(g)
	if err := o.writeLock(lf); err != nil {
		return nil, err
	}
	return g, nil
}

func (o *Orchestrator) nextRange(ctx context.Context, name, oldRange string, useLatest bool) (string, error) {
	prefix := rangePrefix(oldRange)

	md, err := o.Registry.Metadata(ctx, name)
	if err != nil {
		return "", errors.Wrapf(registry.ErrNotFound, "%s: %s", name, err)
	}

	if useLatest {
		v, ok := md.Latest()
		if !ok {
			return "", errors.Wrapf(registry.ErrNoVersion, "%s has no latest dist-tag", name)
		}
		return prefix + v, nil
	}

	rng, err := semver.ParseRange(oldRange)
	if err != nil {
		return "", err
	}
	var candidates []semver.Version
	for v := range md.Versions {
		if pv, err := semver.Parse(v); err == nil {
			candidates = append(candidates, pv)
		}
	}
	best, ok := semver.MaxSatisfying(rng, candidates, false)
	if !ok {
		return "", errors.Wrapf(resolve.ErrNoMatch, "%s: nothing satisfies %q", name, oldRange)
	}
	return prefix + best.String(), nil
}

// rangePrefix returns the leading "^" or "~" of a range, or "" for an
// exact/plain range, so the new pinned version can be re-prefixed the
// same way.
func rangePrefix(r string) string {
	if strings.HasPrefix(r, "^") {
		return "^"
	}
	if strings.HasPrefix(r, "~") {
		return "~"
	}
	return ""
}

func findDependency(m *manifest.Manifest, name string) (manifest.DependencyField, string, bool) {
	for _, field := range []manifest.DependencyField{
		manifest.Dependencies, manifest.DevDependencies, manifest.OptionalDependencies, manifest.PeerDependencies,
	} {
		if r, ok := m.DependencyMap(field)[name]; ok {
			return field, r, true
		}
	}
	return "", "", false
}

func allDependencyNames(m *manifest.Manifest) []string {
	seen := map[string]bool{}
	var names []string
	for _, field := range []manifest.DependencyField{
		manifest.Dependencies, manifest.DevDependencies, manifest.OptionalDependencies,
	} {
		for name := range m.DependencyMap(field) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}
