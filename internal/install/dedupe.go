package install

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/jio-pm/jio/semver"
)

// nodeModulesPackage is one discovered node_modules/**/<name> directory: a
// package.json's name/version/dependencies plus where it sits in the
// tree.
type nodeModulesPackage struct {
	Path         string
	Name         string
	Version      string
	Dependencies map[string]string
	Depth        int // number of "node_modules" path segments above it
}

// scanNodeModules walks root's node_modules/ tree with godirwalk (the
// fast directory walker vendored by the pack for exactly this kind of
// tree scan), returning one entry per package.json it finds.
func scanNodeModules(root string) ([]nodeModulesPackage, error) {
	base := filepath.Join(root, "node_modules")
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return nil, nil
	}

	var found []nodeModulesPackage
	err := godirwalk.Walk(base, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if !de.IsDir() {
				return nil
			}
			pjPath := filepath.Join(path, "package.json")
			data, err := os.ReadFile(pjPath)
			if err != nil {
				return nil // not a package root
			}
			var pj struct {
				Name         string            `json:"name"`
				Version      string            `json:"version"`
				Dependencies map[string]string `json:"dependencies"`
			}
			if err := json.Unmarshal(data, &pj); err != nil {
				return nil
			}
			if pj.Name == "" {
				return nil
			}
			found = append(found, nodeModulesPackage{
				Path: path, Name: pj.Name, Version: pj.Version,
				Dependencies: pj.Dependencies,
				Depth:        strings.Count(path, "node_modules"),
			})
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "scanning node_modules")
	}
	return found, nil
}

// Dedupe implements §4.8 and §8 scenario 5: for every name placed more
// than once under node_modules/, keep the placement (where it is) whose version
// satisfies the most other packages' declared range for that name (ties
// broken by highest version, then shallowest path) and remove every other
// placement that is truly redundant under it. A placement is redundant
// only if the survivor's version also satisfies every consumer that
// placement's own version satisfies; a placement kept alive by a consumer
// the survivor can't satisfy (e.g. b's lone `^2.0.0` against a hoisted
// `1.2.3`) is left nested in place rather than deleted.
func (o *Orchestrator) Dedupe() error {
	pkgs, err := scanNodeModules(o.ProjectDir)
	if err != nil {
		return err
	}

	byName := map[string][]nodeModulesPackage{}
	for _, p := range pkgs {
		byName[p.Name] = append(byName[p.Name], p)
	}

	for name, placements := range byName {
		if len(placements) < 2 {
			continue
		}
		best := pickDedupeSurvivor(name, placements, pkgs)
		for _, p := range placements {
			if p.Path == best.Path {
				continue
			}
			if !redundantUnderSurvivor(name, p, best, pkgs) {
				continue
			}
			if err := os.RemoveAll(p.Path); err != nil {
				return errors.Wrapf(err, "removing duplicate placement %s", p.Path)
			}
		}
	}
	return nil
}

// redundantUnderSurvivor reports whether p can be removed once survivor
// is kept: true unless some consumer's declared range for name is
// satisfied by p's version but not by survivor's, in which case that
// consumer still needs p.
func redundantUnderSurvivor(name string, p, survivor nodeModulesPackage, all []nodeModulesPackage) bool {
	pv, err := semver.Parse(p.Version)
	if err != nil {
		return false
	}
	sv, err := semver.Parse(survivor.Version)
	if err != nil {
		return false
	}
	for _, consumer := range all {
		rangeRaw, ok := consumer.Dependencies[name]
		if !ok {
			continue
		}
		rng, err := semver.ParseRange(rangeRaw)
		if err != nil {
			continue
		}
		satisfiedByP := rng.IsLatest() || rng.Satisfies(pv)
		satisfiedBySurvivor := rng.IsLatest() || rng.Satisfies(sv)
		if satisfiedByP && !satisfiedBySurvivor {
			return false
		}
	}
	return true
}

func pickDedupeSurvivor(name string, placements []nodeModulesPackage, all []nodeModulesPackage) nodeModulesPackage {
	consumers := map[string]int{}
	for _, consumer := range all {
		rangeRaw, ok := consumer.Dependencies[name]
		if !ok {
			continue
		}
		rng, err := semver.ParseRange(rangeRaw)
		if err != nil {
			continue
		}
		for _, candidate := range placements {
			v, err := semver.Parse(candidate.Version)
			if err != nil {
				continue
			}
			if rng.IsLatest() || rng.Satisfies(v) {
				consumers[candidate.Path]++
			}
		}
	}

	sort.Slice(placements, func(i, j int) bool {
		ci, cj := consumers[placements[i].Path], consumers[placements[j].Path]
		if ci != cj {
			return ci > cj
		}
		vi, erri := semver.Parse(placements[i].Version)
		vj, errj := semver.Parse(placements[j].Version)
		if erri == nil && errj == nil && !vi.Equal(vj) {
			return !vi.Less(vj)
		}
		return placements[i].Depth < placements[j].Depth
	})
	return placements[0]
}
