package install

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jio-pm/jio/manifest"
)

func TestCIFailsWithoutLockFile(t *testing.T) {
	f, _ := leftPadFixture(t)
	o := newTestOrchestrator(t, f)
	writeManifestFile(t, o.ProjectDir, &manifest.Manifest{Name: "app", Version: "0.1.0"})

	if err := o.CI(context.Background()); err != ErrNoLockFile {
		t.Fatalf("expected ErrNoLockFile, got %v", err)
	}
}

func TestCIReinstallsFromLockWithoutReresolving(t *testing.T) {
	f, _ := leftPadFixture(t)
	o := newTestOrchestrator(t, f)
	writeManifestFile(t, o.ProjectDir, &manifest.Manifest{
		Name: "app", Version: "0.1.0",
		Dependencies: map[string]string{"left-pad": "^1.3.0"},
	})
	if _, err := o.Install(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	if err := os.RemoveAll(filepath.Join(o.ProjectDir, "node_modules")); err != nil {
		t.Fatal(err)
	}

	// A metadata lookup would now fail; ci must never call Metadata, only
	// Download, since it reinstalls from the lock file without re-resolving.
	f.metadata = nil

	if err := o.CI(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(o.ProjectDir, "node_modules", "left-pad", "index.js")); err != nil {
		t.Fatalf("expected ci to relink left-pad from the store: %s", err)
	}
}

func TestCIDetectsIntegrityMismatchAgainstStore(t *testing.T) {
	f, _ := leftPadFixture(t)
	o := newTestOrchestrator(t, f)
	writeManifestFile(t, o.ProjectDir, &manifest.Manifest{
		Name: "app", Version: "0.1.0",
		Dependencies: map[string]string{"left-pad": "^1.3.0"},
	})
	if _, err := o.Install(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	lf, err := o.readLock()
	if err != nil {
		t.Fatal(err)
	}
	entry := lf.Packages["left-pad@1.3.1"]
	entry.Integrity = "sha512-tampered"
	lf.Packages["left-pad@1.3.1"] = entry
	if err := o.writeLock(lf); err != nil {
		t.Fatal(err)
	}

	if err := o.CI(context.Background()); err == nil {
		t.Fatalf("expected ci to reject a lock entry whose integrity no longer matches the store")
	}
}
