package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadNpmrc(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".npmrc")
	content := `registry=https://registry.example.org/
@myscope:registry=https://scoped.example.org/
//scoped.example.org/:_authToken=sekrit
fetch-retries=5
strict-node-modules=true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := ReadNpmrc(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Registry != "https://registry.example.org" {
		t.Fatalf("unexpected registry: %s", cfg.Registry)
	}
	if cfg.ScopedRegistries["@myscope"] != "https://scoped.example.org" {
		t.Fatalf("unexpected scoped registry: %v", cfg.ScopedRegistries)
	}
	if cfg.AuthTokens["scoped.example.org"] != "sekrit" {
		t.Fatalf("unexpected auth token: %v", cfg.AuthTokens)
	}
	if cfg.MaxRetries != 5 {
		t.Fatalf("unexpected max retries: %d", cfg.MaxRetries)
	}
	if !cfg.StrictNodeModules {
		t.Fatalf("expected strict-node-modules to be true")
	}
}

func TestMergeOverridesOnlyNonZero(t *testing.T) {
	base := Default("/home/u")
	override := Config{MaxRetries: 7}
	merged := base.Merge(override)
	if merged.MaxRetries != 7 {
		t.Fatalf("expected override to win, got %d", merged.MaxRetries)
	}
	if merged.Registry != base.Registry {
		t.Fatalf("expected base registry to survive merge, got %s", merged.Registry)
	}
}
