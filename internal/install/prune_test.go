package install

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jio-pm/jio/manifest"
)

func TestPruneRemovesUnrequiredTopLevelPackages(t *testing.T) {
	f, _ := leftPadFixture(t)
	o := newTestOrchestrator(t, f)
	writeManifestFile(t, o.ProjectDir, &manifest.Manifest{
		Name: "app", Version: "0.1.0",
		Dependencies: map[string]string{"left-pad": "^1.0.0"},
	})

	writePackageJSON(t, filepath.Join(o.ProjectDir, "node_modules", "left-pad"), "left-pad", "1.3.1", nil)
	writePackageJSON(t, filepath.Join(o.ProjectDir, "node_modules", "stale-dev-tool"), "stale-dev-tool", "1.0.0", nil)
	if err := os.MkdirAll(filepath.Join(o.ProjectDir, "node_modules", ".bin"), 0755); err != nil {
		t.Fatal(err)
	}

	if err := o.Prune(false); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(o.ProjectDir, "node_modules", "left-pad")); err != nil {
		t.Fatalf("expected left-pad (a required dependency) to survive prune: %s", err)
	}
	if _, err := os.Stat(filepath.Join(o.ProjectDir, "node_modules", "stale-dev-tool")); !os.IsNotExist(err) {
		t.Fatalf("expected stale-dev-tool (not in the manifest) to be pruned")
	}
	if _, err := os.Stat(filepath.Join(o.ProjectDir, "node_modules", ".bin")); err != nil {
		t.Fatalf(".bin must never be pruned: %s", err)
	}
}

func TestPruneExcludesDevDependenciesByDefault(t *testing.T) {
	f, _ := leftPadFixture(t)
	o := newTestOrchestrator(t, f)
	writeManifestFile(t, o.ProjectDir, &manifest.Manifest{
		Name: "app", Version: "0.1.0",
		DevDependencies: map[string]string{"test-tool": "^1.0.0"},
	})
	writePackageJSON(t, filepath.Join(o.ProjectDir, "node_modules", "test-tool"), "test-tool", "1.0.0", nil)

	if err := o.Prune(false); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(o.ProjectDir, "node_modules", "test-tool")); !os.IsNotExist(err) {
		t.Fatalf("expected a dev dependency to be pruned when includeDev is false")
	}
}

func TestPruneScopedPackages(t *testing.T) {
	f, _ := leftPadFixture(t)
	o := newTestOrchestrator(t, f)
	writeManifestFile(t, o.ProjectDir, &manifest.Manifest{
		Name: "app", Version: "0.1.0",
		Dependencies: map[string]string{"@scope/keep": "^1.0.0"},
	})
	writePackageJSON(t, filepath.Join(o.ProjectDir, "node_modules", "@scope", "keep"), "@scope/keep", "1.0.0", nil)
	writePackageJSON(t, filepath.Join(o.ProjectDir, "node_modules", "@scope", "drop"), "@scope/drop", "1.0.0", nil)

	if err := o.Prune(false); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(o.ProjectDir, "node_modules", "@scope", "keep")); err != nil {
		t.Fatalf("expected @scope/keep to survive: %s", err)
	}
	if _, err := os.Stat(filepath.Join(o.ProjectDir, "node_modules", "@scope", "drop")); !os.IsNotExist(err) {
		t.Fatalf("expected @scope/drop to be pruned")
	}
}
