package resolve

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/jio-pm/jio/manifest"
	"github.com/jio-pm/jio/registry"
	"github.com/jio-pm/jio/semver"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// MetadataSource is the narrow registry surface the resolver needs;
// registry.Client satisfies it. Decoupling via an interface keeps this
// package testable without a live HTTP server, the same separation
// dep draws between SourceManager (interface) and SourceMgr (its built-in
// implementation) in source_manager.go.
type MetadataSource interface {
	Metadata(ctx context.Context, name string) (*registry.PackageMetadata, error)
}

// Resolver builds a Graph from a manifest. Strict selects the layout-mode
// identity policy of §4.5 point 4: in hoisted mode a single version per
// name is preferred and reused across requirers when it satisfies their
// range; in strict mode every distinct (name, version) is always its own
// identity.
type Resolver struct {
	md          MetadataSource
	strict      bool
	concurrency int
	workspaces  map[string]string // name -> declared version, for workspace: ranges

	mu        sync.Mutex
	metaCache map[string]*registry.PackageMetadata
}

// New constructs a Resolver. concurrency bounds simultaneous per-name
// metadata fetches (§5); workspaces maps an in-repo workspace name to its
// declared version, consulted for `workspace:<spec>` ranges.
func New(md MetadataSource, strict bool, concurrency int, workspaces map[string]string) *Resolver {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Resolver{
		md:          md,
		strict:      strict,
		concurrency: concurrency,
		workspaces:  workspaces,
		metaCache:   make(map[string]*registry.PackageMetadata),
	}
}

type workItem struct {
	requirer string // identity key of the requiring node, "" for root
	name     string
	rangeRaw string
	dev      bool
	optional bool
}

// Resolve runs the breadth-first traversal of §4.5 and returns the pinned
// graph. Per §4.5 "Determinism", map iteration at every traversal boundary
// is sorted lexicographically so the emitted graph never depends on the
// order concurrent metadata fetches complete in.
func (r *Resolver) Resolve(ctx context.Context, m *manifest.Manifest) (*Graph, error) {
	g := &Graph{
		RootName:             m.Name,
		RootVersion:          m.Version,
		Dependencies:         copyMap(m.Dependencies),
		DevDependencies:      copyMap(m.DevDependencies),
		OptionalDependencies: copyMap(m.OptionalDependencies),
		Packages:             make(map[string]*ResolvedPackage),
		TopLevel:             make(map[string]string),
		Edges:                make(map[string]map[string]string),
	}

	queue := r.seed(m)
	for len(queue) > 0 {
		batch := queue
		queue = nil

		results, err := r.fetchBatch(ctx, batch)
		if err != nil {
			return nil, err
		}

		// Process in deterministic (sorted by name then requirer) order so
		// the hoisting bias's "first one wins" rule doesn't depend on
		// fetch completion order.
		sort.Slice(batch, func(i, j int) bool {
			if batch[i].name != batch[j].name {
				return batch[i].name < batch[j].name
			}
			return batch[i].requirer < batch[j].requirer
		})

		for _, item := range batch {
			more, err := r.place(g, item, results[item.name])
			if err != nil {
				return nil, err
			}
			queue = append(queue, more...)
		}
	}

	return g, nil
}

func (r *Resolver) seed(m *manifest.Manifest) []workItem {
	var items []workItem
	for _, name := range sortedKeys(m.Dependencies) {
		items = append(items, workItem{name: name, rangeRaw: m.Dependencies[name]})
	}
	for _, name := range sortedKeys(m.DevDependencies) {
		items = append(items, workItem{name: name, rangeRaw: m.DevDependencies[name], dev: true})
	}
	for _, name := range sortedKeys(m.OptionalDependencies) {
		items = append(items, workItem{name: name, rangeRaw: m.OptionalDependencies[name], optional: true})
	}
	return items
}

// fetchResult bundles a metadata fetch outcome (or its absence, for
// workspace ranges which never touch the registry).
type fetchResult struct {
	md  *registry.PackageMetadata
	err error
}

// fetchBatch resolves metadata for every distinct name in items
// concurrently, memoised per resolver run, bounded by r.concurrency.
func (r *Resolver) fetchBatch(ctx context.Context, items []workItem) (map[string]fetchResult, error) {
	names := map[string]bool{}
	for _, it := range items {
		if parsedIsWorkspace(it.rangeRaw) {
			continue
		}
		names[it.name] = true
	}

	out := make(map[string]fetchResult, len(names))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for name := range names {
		name := name
		g.Go(func() error {
			md, err := r.getMetadata(ctx, name)
			mu.Lock()
			out[name] = fetchResult{md: md, err: err}
			mu.Unlock()
			return nil // errors are per-name; handled during placement
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) getMetadata(ctx context.Context, name string) (*registry.PackageMetadata, error) {
	r.mu.Lock()
	if md, ok := r.metaCache[name]; ok {
		r.mu.Unlock()
		return md, nil
	}
	r.mu.Unlock()

	md, err := r.md.Metadata(ctx, name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.metaCache[name] = md
	r.mu.Unlock()
	return md, nil
}

// place resolves one (requirer, name, range) work item against already-
// fetched metadata, records the resulting node (if new), and returns the
// follow-up work items for its own dependencies.
func (r *Resolver) place(g *Graph, item workItem, fr fetchResult) ([]workItem, error) {
	if parsedIsWorkspace(item.rangeRaw) {
		return r.placeWorkspace(g, item)
	}

	if fr.err != nil {
		if item.optional {
			g.Warnings = append(g.Warnings, Warning{
				Name: item.name, Range: item.rangeRaw, Requirer: item.requirer,
				Severity: SeverityWarning, Message: "optional dependency metadata fetch failed: " + fr.err.Error(),
			})
			return nil, nil
		}
		return nil, errors.Wrapf(ErrMetadata, "%s: %s", item.name, fr.err)
	}
	md := fr.md

	version, err := r.selectVersion(md, item.rangeRaw)
	if err != nil {
		if item.optional {
			g.Warnings = append(g.Warnings, Warning{
				Name: item.name, Range: item.rangeRaw, Requirer: item.requirer,
				Severity: SeverityWarning, Message: err.Error(),
			})
			return nil, nil
		}
		return nil, err
	}

	identity, isNew := r.chooseIdentity(g, item.name, version, item.rangeRaw)

	edges, ok := g.Edges[item.requirer]
	if !ok {
		edges = make(map[string]string)
		g.Edges[item.requirer] = edges
	}
	edges[item.name] = identity

	if !isNew {
		return nil, nil
	}

	pv, _ := md.Version(version)
	node := &ResolvedPackage{
		Name:         item.name,
		Version:      version,
		Resolved:     pv.Dist.Tarball,
		Integrity:    chooseIntegrity(pv.Dist),
		Bin:          normaliseBin(item.name, pv.Bin),
		Dependencies: copyMap(pv.Dependencies),
		Dev:          item.dev,
		Optional:     item.optional,
	}
	g.Packages[identity] = node

	recordPeerWarnings(g, item.name, identity, pv.PeerDependencies, pv.PeerDependenciesMeta)

	var next []workItem
	for _, depName := range sortedKeys(pv.Dependencies) {
		next = append(next, workItem{requirer: identity, name: depName, rangeRaw: pv.Dependencies[depName], optional: item.optional})
	}
	for _, depName := range sortedKeys(pv.OptionalDependencies) {
		next = append(next, workItem{requirer: identity, name: depName, rangeRaw: pv.OptionalDependencies[depName], optional: true})
	}
	return next, nil
}

func (r *Resolver) placeWorkspace(g *Graph, item workItem) ([]workItem, error) {
	_, raw := cutWorkspace(item.rangeRaw)
	version, ok := r.workspaces[item.name]
	if !ok {
		return nil, errors.Wrapf(ErrCycle, "workspace:%s for %s has no declared workspace version", raw, item.name)
	}
	identity := item.name + "@" + version
	edges, ok2 := g.Edges[item.requirer]
	if !ok2 {
		edges = make(map[string]string)
		g.Edges[item.requirer] = edges
	}
	edges[item.name] = identity

	if _, exists := g.Packages[identity]; exists {
		return nil, nil
	}
	g.Packages[identity] = &ResolvedPackage{Name: item.name, Version: version}
	return nil, nil
}

func (r *Resolver) selectVersion(md *registry.PackageMetadata, rangeRaw string) (string, error) {
	rng, err := semver.ParseRange(rangeRaw)
	if err != nil {
		return "", err
	}
	if rng.IsLatest() {
		v, ok := md.Latest()
		if !ok {
			return "", errors.Wrapf(ErrNoMatch, "%s: registry has no latest dist-tag", md.Name)
		}
		return v, nil
	}

	candidates := make([]semver.Version, 0, len(md.Versions))
	for v := range md.Versions {
		pv, err := semver.Parse(v)
		if err != nil {
			continue
		}
		candidates = append(candidates, pv)
	}
	best, ok := semver.MaxSatisfying(rng, candidates, false)
	if !ok {
		return "", errors.Wrapf(ErrNoMatch, "%s: nothing satisfies %q", md.Name, rangeRaw)
	}
	return best.String(), nil
}

// chooseIdentity implements the hoisting bias of §4.5 point 4: in hoisted
// mode, reuse the top-level pick for name when it satisfies range; else
// introduce a conflict side-node. In strict mode every (name, version) is
// always its own identity.
func (r *Resolver) chooseIdentity(g *Graph, name, version, rangeRaw string) (identity string, isNew bool) {
	identity = name + "@" + version

	if r.strict {
		_, exists := g.Packages[identity]
		return identity, !exists
	}

	if existing, ok := g.TopLevel[name]; ok {
		if existing == version {
			_, exists := g.Packages[identity]
			return identity, !exists
		}
		rng, err := semver.ParseRange(rangeRaw)
		if err == nil && !rng.IsLatest() {
			if ev, everr := semver.Parse(existing); everr == nil && rng.Satisfies(ev) {
				existingIdentity := name + "@" + existing
				_, exists := g.Packages[existingIdentity]
				return existingIdentity, !exists
			}
		}
		// Conflict: new identity, does not displace the top-level pick.
		_, exists := g.Packages[identity]
		return identity, !exists
	}

	g.TopLevel[name] = version
	_, exists := g.Packages[identity]
	return identity, !exists
}

// recordPeerWarnings implements §4.5: a missing peer is SeverityError
// unless peerDependenciesMeta marks it optional, in which case it's only
// SeverityWarning.
func recordPeerWarnings(g *Graph, name, identity string, peers map[string]string, meta map[string]registry.PeerDependencyMeta) {
	for _, peerName := range sortedKeys(peers) {
		if _, ok := findInstalled(g, peerName); !ok {
			severity := SeverityError
			if meta[peerName].Optional {
				severity = SeverityWarning
			}
			g.Warnings = append(g.Warnings, Warning{
				Name: peerName, Requirer: identity,
				Severity: severity,
				Message:  name + " expects peer dependency " + peerName + " but it is not present in the graph",
			})
		}
	}
}

func findInstalled(g *Graph, name string) (string, bool) {
	if v, ok := g.TopLevel[name]; ok {
		return v, true
	}
	for key := range g.Packages {
		if pkgNameOf(key) == name {
			return key, true
		}
	}
	return "", false
}

func pkgNameOf(identity string) string {
	for i := len(identity) - 1; i >= 0; i-- {
		if identity[i] == '@' && i > 0 {
			return identity[:i]
		}
	}
	return identity
}

// normaliseBin mirrors manifest.Manifest.BinMap's string-or-object
// handling for a registry PackageVersion's already-decoded "bin" field: a
// bare string names one command after the package itself (scope stripped),
// an object is a name->path map taken as-is.
func normaliseBin(name string, bin interface{}) map[string]string {
	switch v := bin.(type) {
	case string:
		if v == "" {
			return nil
		}
		cmd := name
		if idx := lastSlash(name); idx != -1 {
			cmd = name[idx+1:]
		}
		return map[string]string{cmd: v}
	case map[string]interface{}:
		out := make(map[string]string, len(v))
		for k, val := range v {
			if s, ok := val.(string); ok {
				out[k] = s
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

// chooseIntegrity prefers dist.integrity, falling back to the legacy
// dist.shasum (hex-encoded sha1) re-encoded as an SRI string so it
// compares correctly against store.verify's base64 digests.
func chooseIntegrity(d registry.Dist) string {
	if d.Integrity != "" {
		return d.Integrity
	}
	if d.Shasum != "" {
		raw, err := hex.DecodeString(d.Shasum)
		if err != nil {
			return ""
		}
		return "sha1-" + base64.StdEncoding.EncodeToString(raw)
	}
	return ""
}

func parsedIsWorkspace(rangeRaw string) bool {
	isWorkspace, _ := cutWorkspace(rangeRaw)
	return isWorkspace
}

func cutWorkspace(rangeRaw string) (isWorkspace bool, spec string) {
	const prefix = "workspace:"
	if len(rangeRaw) >= len(prefix) && rangeRaw[:len(prefix)] == prefix {
		return true, rangeRaw[len(prefix):]
	}
	return false, ""
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
