// Package resolve builds a pinned DependencyGraph from a manifest and a
// registry metadata source, following the BFS-over-a-work-queue shape of
// dep's solver.go (solver.go's atom queue, popped until empty, each push
// sorted so iteration order — and therefore the emitted graph — is
// independent of fetch completion order) retargeted from Go import-path/VCS
// resolution onto (name, range) registry resolution.
package resolve

import "sort"

// ResolvedPackage is one node of the dependency graph: a name pinned to an
// exact version, with the metadata layout needs to fetch, verify, and
// record it again on a future reinstall.
type ResolvedPackage struct {
	Name      string
	Version   string
	Resolved  string // dist.tarball URL
	Integrity string

	// Bin maps a command name to its in-package entry-point path, already
	// normalised from package.json's string-or-object "bin" field (a bare
	// string is keyed by the package name). Consulted by layout when
	// writing .bin shims.
	Bin map[string]string

	// Dependencies carries the ranges this package itself declares,
	// unresolved, so that a future lock-file-driven reinstall (or `outdated`)
	// doesn't need to refetch metadata just to know what was required.
	Dependencies map[string]string

	Dev      bool
	Optional bool
}

// IdentityKey is the canonical "<name>@<version>" graph key.
func (p *ResolvedPackage) IdentityKey() string {
	return p.Name + "@" + p.Version
}

// Severity distinguishes a hard-failure-worthy peer gap from a merely
// advisory one.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Warning records a non-fatal condition surfaced during resolve: an
// optional dependency that couldn't be satisfied, or a peer dependency
// absent from the graph.
type Warning struct {
	Name     string
	Range    string
	Requirer string
	Severity Severity
	Message  string
}

// Graph is the resolver's output: a pinned, deduplicated dependency graph
// plus enough bookkeeping for layout to place every node.
type Graph struct {
	RootName    string
	RootVersion string

	Dependencies         map[string]string
	DevDependencies      map[string]string
	OptionalDependencies map[string]string

	// Packages maps identity key -> node. Every range referenced by any
	// node resolves, within this map, to exactly one ResolvedPackage for
	// that requirer (§3 invariant 1).
	Packages map[string]*ResolvedPackage

	// TopLevel is the hoisting bias's pick of one version per name,
	// consulted by the hoisted layout planner. Empty in strict mode.
	TopLevel map[string]string

	// Edges records, per requirer identity key ("" for the root), which
	// child identity key a dependency name resolved to. Consulted by the
	// strict layout planner to build each package's isolated node_modules.
	Edges map[string]map[string]string

	Warnings []Warning
}

// SortedKeys returns the graph's package identity keys in lexicographic
// order, the enumeration order §5 requires for lock-file / materialisation
// output.
func (g *Graph) SortedKeys() []string {
	keys := make([]string, 0, len(g.Packages))
	for k := range g.Packages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
