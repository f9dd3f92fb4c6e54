package resolve

import (
	"context"
	"testing"

	"github.com/jio-pm/jio/manifest"
	"github.com/jio-pm/jio/registry"
)

type fakeSource struct {
	data map[string]*registry.PackageMetadata
}

func (f *fakeSource) Metadata(_ context.Context, name string) (*registry.PackageMetadata, error) {
	md, ok := f.data[name]
	if !ok {
		return nil, registry.ErrNotFound
	}
	return md, nil
}

func leftPadMetadata() *registry.PackageMetadata {
	mk := func(v string) registry.PackageVersion {
		return registry.PackageVersion{
			Name: "left-pad", Version: v,
			Dist: registry.Dist{Tarball: "https://registry.example/left-pad/-/left-pad-" + v + ".tgz", Integrity: "sha512-" + v},
		}
	}
	return &registry.PackageMetadata{
		Name: "left-pad",
		Versions: map[string]registry.PackageVersion{
			"1.1.0": mk("1.1.0"), "1.2.0": mk("1.2.0"), "1.3.0": mk("1.3.0"),
			"1.3.1": mk("1.3.1"), "2.0.0": mk("2.0.0"),
		},
		DistTags: map[string]string{"latest": "2.0.0"},
	}
}

func TestResolveFreshInstall(t *testing.T) {
	src := &fakeSource{data: map[string]*registry.PackageMetadata{"left-pad": leftPadMetadata()}}
	r := New(src, false, 4, nil)

	m := &manifest.Manifest{
		Name: "a", Version: "0.1.0",
		Dependencies: map[string]string{"left-pad": "^1.3.0"},
	}

	g, err := r.Resolve(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Packages) != 1 {
		t.Fatalf("expected exactly one package, got %d: %v", len(g.Packages), g.SortedKeys())
	}
	pkg, ok := g.Packages["left-pad@1.3.1"]
	if !ok {
		t.Fatalf("expected left-pad@1.3.1 in graph, got %v", g.SortedKeys())
	}
	if pkg.Integrity != "sha512-1.3.1" {
		t.Fatalf("unexpected integrity: %s", pkg.Integrity)
	}
}

func TestResolveOptionalFailureDemotesToWarning(t *testing.T) {
	src := &fakeSource{data: map[string]*registry.PackageMetadata{}}
	r := New(src, false, 4, nil)
	m := &manifest.Manifest{
		Name: "a", Version: "0.1.0",
		OptionalDependencies: map[string]string{"missing-pkg": "^1.0.0"},
	}
	g, err := r.Resolve(context.Background(), m)
	if err != nil {
		t.Fatalf("optional failures should not be fatal: %s", err)
	}
	if len(g.Packages) != 0 {
		t.Fatalf("expected no packages, got %v", g.SortedKeys())
	}
	if len(g.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", g.Warnings)
	}
}

func TestResolveRequiredFailureIsFatal(t *testing.T) {
	src := &fakeSource{data: map[string]*registry.PackageMetadata{}}
	r := New(src, false, 4, nil)
	m := &manifest.Manifest{
		Name: "a", Version: "0.1.0",
		Dependencies: map[string]string{"missing-pkg": "^1.0.0"},
	}
	if _, err := r.Resolve(context.Background(), m); err == nil {
		t.Fatalf("expected a fatal error for a required missing dependency")
	}
}

func TestResolveHoistingDedupe(t *testing.T) {
	mkUtil := func(v string) registry.PackageVersion {
		return registry.PackageVersion{Name: "util", Version: v, Dist: registry.Dist{Integrity: "sha512-" + v, Tarball: "t"}}
	}
	utilMD := &registry.PackageMetadata{
		Name: "util",
		Versions: map[string]registry.PackageVersion{
			"1.0.0": mkUtil("1.0.0"), "1.2.3": mkUtil("1.2.3"), "2.0.0": mkUtil("2.0.0"),
		},
		DistTags: map[string]string{"latest": "2.0.0"},
	}
	aMD := &registry.PackageMetadata{
		Name: "a",
		Versions: map[string]registry.PackageVersion{
			"1.0.0": {Name: "a", Version: "1.0.0", Dist: registry.Dist{Integrity: "sha512-a"}, Dependencies: map[string]string{"util": "^1.0.0"}},
		},
		DistTags: map[string]string{"latest": "1.0.0"},
	}
	bMD := &registry.PackageMetadata{
		Name: "b",
		Versions: map[string]registry.PackageVersion{
			"1.0.0": {Name: "b", Version: "1.0.0", Dist: registry.Dist{Integrity: "sha512-b"}, Dependencies: map[string]string{"util": "^1.0.0"}},
		},
		DistTags: map[string]string{"latest": "1.0.0"},
	}

	src := &fakeSource{data: map[string]*registry.PackageMetadata{"util": utilMD, "a": aMD, "b": bMD}}
	r := New(src, false, 4, nil)
	m := &manifest.Manifest{
		Name: "root", Version: "0.1.0",
		Dependencies: map[string]string{"a": "^1.0.0", "b": "^1.0.0"},
	}

	g, err := r.Resolve(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for k := range g.Packages {
		if pkgNameOf(k) == "util" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one util node after hoisting dedupe, got %d: %v", count, g.SortedKeys())
	}
}

func TestResolvePeerWarningSeverityFollowsOptionalMeta(t *testing.T) {
	aMD := &registry.PackageMetadata{
		Name: "a",
		Versions: map[string]registry.PackageVersion{
			"1.0.0": {
				Name: "a", Version: "1.0.0",
				Dist:             registry.Dist{Integrity: "sha512-a"},
				PeerDependencies: map[string]string{"required-peer": "^1.0.0", "optional-peer": "^1.0.0"},
				PeerDependenciesMeta: map[string]registry.PeerDependencyMeta{
					"optional-peer": {Optional: true},
				},
			},
		},
		DistTags: map[string]string{"latest": "1.0.0"},
	}

	src := &fakeSource{data: map[string]*registry.PackageMetadata{"a": aMD}}
	r := New(src, false, 4, nil)
	m := &manifest.Manifest{
		Name: "root", Version: "0.1.0",
		Dependencies: map[string]string{"a": "^1.0.0"},
	}

	g, err := r.Resolve(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}

	severities := map[string]Severity{}
	for _, w := range g.Warnings {
		severities[w.Name] = w.Severity
	}
	if severities["required-peer"] != SeverityError {
		t.Fatalf("expected missing required peer to be SeverityError, got %q", severities["required-peer"])
	}
	if severities["optional-peer"] != SeverityWarning {
		t.Fatalf("expected missing optional peer to be SeverityWarning, got %q", severities["optional-peer"])
	}
}

func TestChooseIntegrityConvertsLegacyShasumToBase64SRI(t *testing.T) {
	got := chooseIntegrity(registry.Dist{Shasum: "356a192b7913b04c54574d18c28d46e6395428ab"})
	want := "sha1-NWoZK3kTsExUV00Ywo1G5jlUKKs="
	if got != want {
		t.Fatalf("chooseIntegrity: got %q, want %q", got, want)
	}
}
