package install

import (
	"context"
	"sort"

	"github.com/jio-pm/jio/semver"
)

// OutdatedEntry reports one direct dependency's current/wanted/latest
// triple per §4.8.
type OutdatedEntry struct {
	Name    string
	Range   string
	Current string // version presently in the lock file, "" if not installed
	Wanted  string // highest version satisfying Range
	Latest  string // highest published non-prerelease version; the latest dist-tag if every version is a prerelease
}

// Outdated reports, for every direct dependency, (current, wanted, latest)
// where wanted is the highest version satisfying the declared range and
// latest is the highest published version.
func (o *Orchestrator) Outdated(ctx context.Context) ([]OutdatedEntry, error) {
	m, err := o.readManifest()
	if err != nil {
		return nil, err
	}
	lf, _ := o.readLock() // absent lock just means no "current" column

	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []OutdatedEntry
	for _, name := range names {
		rangeRaw := m.Dependencies[name]
		entry := OutdatedEntry{Name: name, Range: rangeRaw}

		if lf != nil {
			for _, e := range lf.Packages {
				if e.Name == name {
					entry.Current = e.Version
					break
				}
			}
		}

		md, err := o.Registry.Metadata(ctx, name)
		if err != nil {
			out = append(out, entry)
			continue
		}
		var candidates []semver.Version
		for v := range md.Versions {
			if pv, err := semver.Parse(v); err == nil {
				candidates = append(candidates, pv)
			}
		}
		if latest, ok := md.Latest(); ok {
			entry.Latest = latest
		}
		if anyVersion, err := semver.ParseRange("*"); err == nil {
			if best, ok := semver.MaxSatisfying(anyVersion, candidates, false); ok {
				entry.Latest = best.String()
			}
		}

		rng, err := semver.ParseRange(rangeRaw)
		if err == nil {
			if best, ok := semver.MaxSatisfying(rng, candidates, false); ok {
				entry.Wanted = best.String()
			}
		}
		out = append(out, entry)
	}
	return out, nil
}
