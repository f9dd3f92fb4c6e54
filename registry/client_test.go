package registry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMetadataLatestAndVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/left-pad":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"name": "left-pad",
				"versions": {
					"1.3.1": {"name":"left-pad","version":"1.3.1","dist":{"tarball":"` + "TARBALL" + `","integrity":"sha512-abc"}}
				},
				"dist-tags": {"latest": "1.3.1"}
			}`))
		case "/tarball":
			w.Write([]byte("fake tarball bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := Config{DefaultRegistry: srv.URL, MaxRetries: 1}
	c := New(cfg, nil)

	md, err := c.Metadata(context.Background(), "left-pad")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := md.Latest(); !ok {
		t.Fatalf("expected latest dist-tag")
	}
	pv, ok := md.Version("1.3.1")
	if !ok {
		t.Fatalf("expected version 1.3.1")
	}
	if pv.Dist.Integrity != "sha512-abc" {
		t.Fatalf("unexpected integrity: %s", pv.Dist.Integrity)
	}
}

func TestMetadataNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Config{DefaultRegistry: srv.URL, MaxRetries: 0}, nil)
	if _, err := c.Metadata(context.Background(), "nope"); err == nil {
		t.Fatalf("expected error for missing package")
	}
}

func TestDownloadStreams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/pkg" {
			w.Write([]byte(`{"name":"pkg","versions":{"1.0.0":{"name":"pkg","version":"1.0.0","dist":{"tarball":"` + "http://" + r.Host + "/pkg.tgz" + `"}}},"dist-tags":{"latest":"1.0.0"}}`))
			return
		}
		w.Write([]byte("tgz-bytes"))
	}))
	defer srv.Close()

	c := New(Config{DefaultRegistry: srv.URL, MaxRetries: 0}, nil)
	rc, err := c.Download(context.Background(), "pkg", "1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "tgz-bytes" {
		t.Fatalf("unexpected body: %s", b)
	}
}
