package install

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha512"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jio-pm/jio/internal/config"
	"github.com/jio-pm/jio/internal/jlog"
	"github.com/jio-pm/jio/layout"
	"github.com/jio-pm/jio/manifest"
	"github.com/jio-pm/jio/registry"
	"github.com/jio-pm/jio/store"
)

// fakeFetcher serves metadata from an in-memory map and hands back a
// pre-built tarball for Download, satisfying Fetcher without any network
// traffic, the same role fakeSource plays in the resolve package's tests.
type fakeFetcher struct {
	metadata  map[string]*registry.PackageMetadata
	tarball   map[string][]byte // keyed by "name@version"
	downloads []string          // records what was asked for, in call order
}

func (f *fakeFetcher) Metadata(_ context.Context, name string) (*registry.PackageMetadata, error) {
	md, ok := f.metadata[name]
	if !ok {
		return nil, registry.ErrNotFound
	}
	return md, nil
}

func (f *fakeFetcher) Download(_ context.Context, name, version string) (io.ReadCloser, error) {
	f.downloads = append(f.downloads, name+"@"+version)
	data, ok := f.tarball[name+"@"+version]
	if !ok {
		return nil, registry.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// buildTarball packs files (paths relative to the package root) into a
// gzipped tar and returns it alongside its sha512 integrity digest, the
// same fixture shape store's own tests build.
func buildTarball(t *testing.T, files map[string]string) ([]byte, string) {
	t.Helper()
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	for name, content := range files {
		hdr := &tar.Header{Name: "package/" + name, Mode: 0644, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	tw.Close()

	var gzBuf bytes.Buffer
	gw := gzip.NewWriter(&gzBuf)
	gw.Write(tarBuf.Bytes())
	gw.Close()

	sum := sha512.Sum512(gzBuf.Bytes())
	return gzBuf.Bytes(), "sha512-" + base64.StdEncoding.EncodeToString(sum[:])
}

// newTestOrchestrator wires an Orchestrator against a temp project
// directory, a fakeFetcher, and a real Store rooted in the same temp tree.
func newTestOrchestrator(t *testing.T, f *fakeFetcher) *Orchestrator {
	t.Helper()
	projectDir := t.TempDir()
	st, err := store.Open(filepath.Join(projectDir, ".jio-store"), store.LinkModeHardlink)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default(t.TempDir())
	cfg.MaxConcurrentDownloads = 4
	return New(projectDir, cfg, f, st, jlog.Default())
}

func writeManifestFile(t *testing.T, dir string, m *manifest.Manifest) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, manifestName))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := manifest.Write(f, m); err != nil {
		t.Fatal(err)
	}
}

func leftPadFixture(t *testing.T) (*fakeFetcher, string) {
	t.Helper()
	data, integrity := buildTarball(t, map[string]string{"index.js": "module.exports = 1;\n"})
	md := &registry.PackageMetadata{
		Name: "left-pad",
		Versions: map[string]registry.PackageVersion{
			"1.3.1": {
				Name: "left-pad", Version: "1.3.1",
				Dist: registry.Dist{Tarball: "https://registry.example/left-pad/-/left-pad-1.3.1.tgz", Integrity: integrity},
			},
		},
		DistTags: map[string]string{"latest": "1.3.1"},
	}
	f := &fakeFetcher{
		metadata: map[string]*registry.PackageMetadata{"left-pad": md},
		tarball:  map[string][]byte{"left-pad@1.3.1": data},
	}
	return f, integrity
}

func TestInstallFreshCreatesLockAndNodeModules(t *testing.T) {
	f, integrity := leftPadFixture(t)
	o := newTestOrchestrator(t, f)
	writeManifestFile(t, o.ProjectDir, &manifest.Manifest{
		Name: "app", Version: "0.1.0",
		Dependencies: map[string]string{"left-pad": "^1.3.0"},
	})

	g, err := o.Install(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	pkg, ok := g.Packages["left-pad@1.3.1"]
	if !ok || pkg.Integrity != integrity {
		t.Fatalf("unexpected graph: %v", g.SortedKeys())
	}

	if _, err := os.Stat(filepath.Join(o.ProjectDir, "node_modules", "left-pad", "index.js")); err != nil {
		t.Fatalf("expected left-pad to be linked into node_modules: %s", err)
	}
	if _, err := os.Stat(o.lockPath()); err != nil {
		t.Fatalf("expected a lock file to be written: %s", err)
	}

	lf, err := o.readLock()
	if err != nil {
		t.Fatal(err)
	}
	if len(lf.Packages) != 1 {
		t.Fatalf("expected one locked package, got %v", lf.Packages)
	}
}

func TestInstallWithAddSpecPatchesManifest(t *testing.T) {
	f, _ := leftPadFixture(t)
	o := newTestOrchestrator(t, f)
	writeManifestFile(t, o.ProjectDir, &manifest.Manifest{Name: "app", Version: "0.1.0"})

	_, err := o.Install(context.Background(), []AddSpec{{Name: "left-pad", Range: "^1.3.0"}})
	if err != nil {
		t.Fatal(err)
	}

	m, err := o.readManifest()
	if err != nil {
		t.Fatal(err)
	}
	if m.Dependencies["left-pad"] != "^1.3.0" {
		t.Fatalf("expected manifest to be patched with the new dependency, got %v", m.Dependencies)
	}
}

func TestInstallRequiredDownloadFailureIsFatal(t *testing.T) {
	f, _ := leftPadFixture(t)
	delete(f.tarball, "left-pad@1.3.1") // make Download fail
	o := newTestOrchestrator(t, f)
	writeManifestFile(t, o.ProjectDir, &manifest.Manifest{
		Name: "app", Version: "0.1.0",
		Dependencies: map[string]string{"left-pad": "^1.3.0"},
	})

	if _, err := o.Install(context.Background(), nil); err == nil {
		t.Fatalf("expected a required package's download failure to abort install")
	}
	if _, err := os.Stat(filepath.Join(o.ProjectDir, "node_modules")); !os.IsNotExist(err) {
		t.Fatalf("node_modules should not exist after a failed required install")
	}
}

func TestInstallOptionalDownloadFailureIsWarningOnly(t *testing.T) {
	f, _ := leftPadFixture(t)
	delete(f.tarball, "left-pad@1.3.1")
	o := newTestOrchestrator(t, f)
	writeManifestFile(t, o.ProjectDir, &manifest.Manifest{
		Name: "app", Version: "0.1.0",
		OptionalDependencies: map[string]string{"left-pad": "^1.3.0"},
	})

	if _, err := o.Install(context.Background(), nil); err != nil {
		t.Fatalf("optional download failures should not abort install: %s", err)
	}
}

// TestMaterialiseAtomicallyLeavesExistingNodeModulesUntouchedOnFailure
// covers the maintainer-flagged atomicity gap: a link-stage failure part
// way through building the new tree must not have already destroyed the
// previous node_modules/.
func TestMaterialiseAtomicallyLeavesExistingNodeModulesUntouchedOnFailure(t *testing.T) {
	f, _ := leftPadFixture(t)
	o := newTestOrchestrator(t, f)

	existing := filepath.Join(o.ProjectDir, "node_modules", "left-pad", "index.js")
	if err := os.MkdirAll(filepath.Dir(existing), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(existing, []byte("module.exports = 1;\n"), 0644); err != nil {
		t.Fatal(err)
	}

	// "missing" was never Add()-ed to the store, so Materialise fails
	// linking it.
	placements := []layout.Placement{
		{Identity: "missing@1.0.0", Name: "missing", Version: "1.0.0", TargetPath: "node_modules/missing", TopLevel: true},
	}

	if err := o.materialiseAtomically(context.Background(), placements); err == nil {
		t.Fatal("expected materialiseAtomically to fail on the unlinked placement")
	}

	if _, err := os.Stat(existing); err != nil {
		t.Fatalf("expected the pre-existing node_modules/left-pad to survive a failed materialise: %s", err)
	}
	entries, err := os.ReadDir(o.ProjectDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".jio-install-") {
			t.Fatalf("expected the temp install directory to be cleaned up, found %s", e.Name())
		}
	}
}

func TestInstallSkipsDownloadWhenAlreadyInStore(t *testing.T) {
	f, _ := leftPadFixture(t)
	o := newTestOrchestrator(t, f)
	writeManifestFile(t, o.ProjectDir, &manifest.Manifest{
		Name: "app", Version: "0.1.0",
		Dependencies: map[string]string{"left-pad": "^1.3.0"},
	})

	if _, err := o.Install(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	firstCount := len(f.downloads)

	if err := os.RemoveAll(filepath.Join(o.ProjectDir, "node_modules")); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Install(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if len(f.downloads) != firstCount {
		t.Fatalf("expected no additional downloads once the store already holds the package, got %v", f.downloads)
	}
}
