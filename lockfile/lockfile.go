// Package lockfile serialises a resolved dependency graph to jio's native
// jio-lock.json and imports the three foreign lock formats spec.md names,
// using the same raw-struct-over-encoding/json technique lock.go uses for
// dep's lock.json: struct field order plus `omitempty` double as the
// serialisation contract, so MarshalJSON/UnmarshalJSON never need to be
// hand-written.
package lockfile

import (
	"bytes"
	"encoding/json"
	"io"
	"sort"

	"github.com/pkg/errors"

	"github.com/jio-pm/jio/resolve"
)

// Entry is one packages[] member: a pinned package plus the provenance a
// reinstall needs, in the fixed field order §6 requires.
type Entry struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Resolved  string            `json:"resolved,omitempty"`
	Integrity string            `json:"integrity,omitempty"`
	Deps      map[string]string `json:"dependencies,omitempty"`
	Dev       bool              `json:"dev,omitempty"`
	Optional  bool              `json:"optional,omitempty"`

	// Ranges records every requirer range that was folded into this entry
	// by Optimise. Not part of the native wire format: a fresh resolve
	// never populates it, only an importer's dedupe pass does, purely for
	// diagnostics.
	Ranges []string `json:"-"`
}

// LockFile is the top-level jio-lock.json document, field order matching
// §6 exactly: name, version, dependencies, devDependencies,
// optionalDependencies, packages.
type LockFile struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Dependencies         map[string]string `json:"dependencies,omitempty"`
	DevDependencies      map[string]string `json:"devDependencies,omitempty"`
	OptionalDependencies map[string]string `json:"optionalDependencies,omitempty"`
	Packages             map[string]Entry  `json:"packages"`
}

// FromGraph projects a resolved graph into its lock-file form. The lock
// file is a pure function of the graph (§3): no field here is derived from
// anything but g itself.
func FromGraph(g *resolve.Graph) *LockFile {
	lf := &LockFile{
		Name:                 g.RootName,
		Version:              g.RootVersion,
		Dependencies:         g.Dependencies,
		DevDependencies:      g.DevDependencies,
		OptionalDependencies: g.OptionalDependencies,
		Packages:             make(map[string]Entry, len(g.Packages)),
	}
	for key, p := range g.Packages {
		lf.Packages[key] = Entry{
			Name:      p.Name,
			Version:   p.Version,
			Resolved:  p.Resolved,
			Integrity: p.Integrity,
			Deps:      p.Dependencies,
			Dev:       p.Dev,
			Optional:  p.Optional,
		}
	}
	return lf
}

// Read decodes a native jio-lock.json document.
func Read(r io.Reader) (*LockFile, error) {
	var lf LockFile
	if err := json.NewDecoder(r).Decode(&lf); err != nil {
		return nil, errors.Wrap(ErrLock, err.Error())
	}
	if lf.Packages == nil {
		lf.Packages = make(map[string]Entry)
	}
	for key, e := range lf.Packages {
		if e.Name == "" || e.Version == "" {
			return nil, errors.Wrapf(ErrLock, "packages[%q] missing name or version", key)
		}
	}
	return &lf, nil
}

// Write serialises lf in the canonical form §6 mandates: two-space indent,
// fixed top-level key order, packages sorted lexicographically by key,
// each entry's fields in fixed order. encoding/json already emits map keys
// sorted and struct fields in declaration order, so a plain Marshal
// already satisfies the canonical form; Write exists as the single,
// explicit place that contract is asserted and tested.
func Write(w io.Writer, lf *LockFile) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(lf); err != nil {
		return errors.Wrap(err, "lockfile: encode")
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// SortedKeys returns lf's package keys in the lexicographic order the
// canonical form requires.
func (lf *LockFile) SortedKeys() []string {
	keys := make([]string, 0, len(lf.Packages))
	for k := range lf.Packages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Optimise collapses packages[] entries that share (name, version,
// integrity) but were recorded under distinct keys — the shape a foreign
// importer produces when its source format keys by install path rather
// than identity (§4.6 "Optimisation"). The canonical "name@version" key
// survives; folded entries contribute their dependants to Ranges. The pass
// is idempotent and therefore round-trip stable: running it twice yields
// the same result as running it once.
func Optimise(lf *LockFile) *LockFile {
	type group struct {
		canonicalKey string
		entry        Entry
		ranges       map[string]bool
	}
	groups := make(map[string]*group)
	order := make([]string, 0, len(lf.Packages))

	for key, e := range lf.Packages {
		triple := e.Name + "@" + e.Version + "@" + e.Integrity
		grp, ok := groups[triple]
		if !ok {
			canonical := e.Name + "@" + e.Version
			grp = &group{canonicalKey: canonical, entry: e, ranges: make(map[string]bool)}
			groups[triple] = grp
			order = append(order, triple)
		}
		for _, rg := range e.Ranges {
			grp.ranges[rg] = true
		}
		if key != grp.canonicalKey {
			grp.ranges[key] = true
		}
	}

	out := &LockFile{
		Name:                 lf.Name,
		Version:              lf.Version,
		Dependencies:         lf.Dependencies,
		DevDependencies:      lf.DevDependencies,
		OptionalDependencies: lf.OptionalDependencies,
		Packages:             make(map[string]Entry, len(groups)),
	}
	for _, triple := range order {
		grp := groups[triple]
		e := grp.entry
		if len(grp.ranges) > 0 {
			ranges := make([]string, 0, len(grp.ranges))
			for rg := range grp.ranges {
				ranges = append(ranges, rg)
			}
			sort.Strings(ranges)
			e.Ranges = ranges
		}
		out.Packages[grp.canonicalKey] = e
	}
	return out
}
