package install

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jio-pm/jio/manifest"
)

func TestUninstallRemovesManifestEntryNodeModulesAndLock(t *testing.T) {
	f, _ := leftPadFixture(t)
	o := newTestOrchestrator(t, f)
	writeManifestFile(t, o.ProjectDir, &manifest.Manifest{
		Name: "app", Version: "0.1.0",
		Dependencies: map[string]string{"left-pad": "^1.3.0"},
	})
	if _, err := o.Install(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	if err := o.Uninstall("left-pad"); err != nil {
		t.Fatal(err)
	}

	m, err := o.readManifest()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Dependencies["left-pad"]; ok {
		t.Fatalf("expected left-pad to be removed from the manifest")
	}
	if _, err := os.Stat(filepath.Join(o.ProjectDir, "node_modules", "left-pad")); !os.IsNotExist(err) {
		t.Fatalf("expected node_modules/left-pad to be removed")
	}
	lf, err := o.readLock()
	if err != nil {
		t.Fatal(err)
	}
	for key, e := range lf.Packages {
		if e.Name == "left-pad" {
			t.Fatalf("expected no lock entry for left-pad, found key %s", key)
		}
	}
}
