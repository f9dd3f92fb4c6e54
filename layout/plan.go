package layout

import (
	"sort"

	radix "github.com/armon/go-radix"

	"github.com/jio-pm/jio/resolve"
)

// Plan walks g and produces the placement set for mode. Iteration is
// sorted throughout (graph keys, then edge names) so two calls against an
// identical graph always return placements in the same order — the
// node_modules materialisation order spec.md §5 "Ordering guarantees"
// requires for deterministic logging and idempotent re-installs.
func Plan(g *resolve.Graph, mode Mode) []Placement {
	switch mode {
	case Strict:
		return planStrict(g)
	default:
		return planHoisted(g)
	}
}

func planHoisted(g *resolve.Graph) []Placement {
	var placements []Placement

	topNames := make([]string, 0, len(g.TopLevel))
	for name := range g.TopLevel {
		topNames = append(topNames, name)
	}
	sort.Strings(topNames)

	for _, name := range topNames {
		version := g.TopLevel[name]
		identity := name + "@" + version
		pkg, ok := g.Packages[identity]
		if !ok {
			continue
		}
		placements = append(placements, Placement{
			Identity: identity, Name: name, Version: version,
			TargetPath: "node_modules/" + name,
			Bin:        pkg.Bin,
			TopLevel:   true,
		})
	}

	// index maps a requirer identity to the logical node_modules path its
	// own placement landed at, so a conflict side-node can be nested
	// directly beneath it. Built with a radix tree keyed by identity so
	// deep requirer chains share prefix storage the way gps's own
	// import-path radix indexes share segment storage.
	index := radix.New()
	index.Insert("", "node_modules")
	for _, p := range placements {
		index.Insert(p.Identity, p.TargetPath)
	}

	requirers := make([]string, 0, len(g.Edges))
	for requirer := range g.Edges {
		requirers = append(requirers, requirer)
	}
	sort.Strings(requirers)

	seen := make(map[string]bool, len(placements))
	for _, p := range placements {
		seen[p.Identity] = true
	}

	for _, requirer := range requirers {
		edges := g.Edges[requirer]
		names := make([]string, 0, len(edges))
		for name := range edges {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			identity := edges[name]
			if seen[identity] {
				continue
			}
			basePath := "node_modules"
			if v, ok := index.Get(requirer); ok {
				basePath, _ = v.(string)
			}
			pkg, ok := g.Packages[identity]
			if !ok {
				continue
			}
			target := basePath + "/node_modules/" + name
			placements = append(placements, Placement{
				Identity: identity, Name: pkg.Name, Version: pkg.Version,
				TargetPath: target,
				Bin:        pkg.Bin,
			})
			index.Insert(identity, target)
			seen[identity] = true
		}
	}

	return placements
}

// planStrict places every package under its own isolated directory and
// links only the root's direct dependencies (and each package's own
// declared dependencies, within its private node_modules) to it; each link
// is made in the store's LinkMode, so it is a symlink only in symlink mode.
func planStrict(g *resolve.Graph) []Placement {
	var placements []Placement

	keys := g.SortedKeys()
	for _, identity := range keys {
		pkg := g.Packages[identity]
		placements = append(placements, Placement{
			Identity: identity, Name: pkg.Name, Version: pkg.Version,
			TargetPath: ".jio/" + identity + "/node_modules/" + pkg.Name,
			Bin:        pkg.Bin,
		})
	}

	rootEdges := g.Edges[""]
	rootNames := make([]string, 0, len(rootEdges))
	for name := range rootEdges {
		rootNames = append(rootNames, name)
	}
	sort.Strings(rootNames)
	for _, name := range rootNames {
		identity := rootEdges[name]
		pkg, ok := g.Packages[identity]
		if !ok {
			continue
		}
		placements = append(placements, Placement{
			Identity: identity, Name: pkg.Name, Version: pkg.Version,
			TargetPath: "node_modules/" + name,
			Bin:        pkg.Bin,
			TopLevel:   true,
		})
	}

	requirers := make([]string, 0, len(g.Edges))
	for requirer := range g.Edges {
		if requirer == "" {
			continue
		}
		requirers = append(requirers, requirer)
	}
	sort.Strings(requirers)

	for _, requirer := range requirers {
		edges := g.Edges[requirer]
		requirerPkg, ok := g.Packages[requirer]
		if !ok {
			continue
		}
		names := make([]string, 0, len(edges))
		for name := range edges {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			identity := edges[name]
			childPkg, ok := g.Packages[identity]
			if !ok {
				continue
			}
			placements = append(placements, Placement{
				Identity: identity, Name: childPkg.Name, Version: childPkg.Version,
				TargetPath: ".jio/" + requirer + "/node_modules/" + requirerPkg.Name + "/node_modules/" + name,
			})
		}
	}

	return placements
}
