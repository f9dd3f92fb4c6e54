package manifest

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	src := `{
  "name": "a",
  "version": "0.1.0",
  "dependencies": {
    "left-pad": "^1.3.0"
  }
}
`
	m, err := Read(bytes.NewBufferString(src))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, m); err != nil {
		t.Fatal(err)
	}

	m2, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if m2.Name != "a" || m2.Version != "0.1.0" || m2.Dependencies["left-pad"] != "^1.3.0" {
		t.Fatalf("round trip lost data: %+v", m2)
	}
}

func TestAddDependencyMovesBetweenFields(t *testing.T) {
	m := &Manifest{}
	m.AddDependency(Dependencies, "foo", "^1.0.0")
	m.AddDependency(DevDependencies, "foo", "^1.0.0")

	if _, ok := m.Dependencies["foo"]; ok {
		t.Errorf("foo should have been removed from dependencies")
	}
	if m.DevDependencies["foo"] != "^1.0.0" {
		t.Errorf("foo should be in devDependencies")
	}
}

func TestBinMapString(t *testing.T) {
	m := &Manifest{Name: "left-pad", Bin: []byte(`"bin/cli.js"`)}
	bm, err := m.BinMap()
	if err != nil {
		t.Fatal(err)
	}
	if bm["left-pad"] != "bin/cli.js" {
		t.Fatalf("expected bin map with package name key, got %+v", bm)
	}
}

func TestUnknownFieldsPreserved(t *testing.T) {
	src := `{"name":"a","engines":{"node":">=18"}}`
	m, err := Read(bytes.NewBufferString(src))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Extra["engines"]; !ok {
		t.Fatalf("expected engines to be preserved in Extra")
	}

	var buf bytes.Buffer
	if err := Write(&buf, m); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("engines")) {
		t.Fatalf("expected engines to survive a round trip: %s", buf.String())
	}
}
