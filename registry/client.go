// Package registry implements the HTTPS client for the npm-compatible
// registry protocol: metadata documents and tarball streaming, with
// scoped-registry routing, per-host bearer auth, and retry/back-off for
// transient network errors.
//
// The retry shape mirrors dep's monitoredCmd (cmd.go): watch a single
// attempt, and if it fails with a retryable error, try again with a
// growing delay, bounded by a caller-supplied ceiling — generalised here
// from "retry a VCS subprocess" to "retry an HTTP round trip".
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	mmsemver "github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// Config is the subset of configuration the registry client needs. The
// orchestrator's internal/config.Config carries the authoritative values
// and is adapted into one of these at construction time.
type Config struct {
	DefaultRegistry  string
	ScopedRegistries map[string]string // "@scope" -> registry base URL
	AuthTokens       map[string]string // host -> bearer token
	Timeout          time.Duration
	MaxRetries       int
}

// Client fetches metadata documents and tarball streams from a registry.
type Client struct {
	cfg  Config
	http *http.Client
}

// New constructs a Client. A nil http.Client falls back to a default one
// configured with cfg.Timeout.
func New(cfg Config, hc *http.Client) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{cfg: cfg, http: hc}
}

// baseFor returns the registry base URL to use for a package name,
// honouring scoped-registry overrides for names of the form "@scope/name".
func (c *Client) baseFor(name string) string {
	if strings.HasPrefix(name, "@") {
		if scope, _, ok := strings.Cut(name, "/"); ok {
			if base, ok := c.cfg.ScopedRegistries[scope]; ok {
				return base
			}
		}
	}
	return c.cfg.DefaultRegistry
}

func (c *Client) authToken(rawurl string) string {
	for host, tok := range c.cfg.AuthTokens {
		if strings.Contains(rawurl, host) {
			return tok
		}
	}
	return ""
}

// Metadata fetches the metadata document for name.
func (c *Client) Metadata(ctx context.Context, name string) (*PackageMetadata, error) {
	base := strings.TrimRight(c.baseFor(name), "/")
	url := fmt.Sprintf("%s/%s", base, pathEscapeName(name))

	body, err := c.getWithRetry(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var md PackageMetadata
	if err := json.NewDecoder(body).Decode(&md); err != nil {
		return nil, errors.Wrapf(ErrNetwork, "decoding metadata for %s: %s", name, err)
	}
	if len(md.Versions) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "%s", name)
	}
	return &md, nil
}

// Versions returns every known version of name, sorted ascending.
func (c *Client) Versions(ctx context.Context, name string) ([]string, error) {
	md, err := c.Metadata(ctx, name)
	if err != nil {
		return nil, err
	}
	vs := make([]string, 0, len(md.Versions))
	for v := range md.Versions {
		vs = append(vs, v)
	}
	sort.Slice(vs, func(i, j int) bool {
		vi, erri := mmsemver.NewVersion(vs[i])
		vj, errj := mmsemver.NewVersion(vs[j])
		if erri != nil || errj != nil {
			return vs[i] < vs[j]
		}
		return vi.LessThan(vj)
	})
	return vs, nil
}

// Download streams the tarball bytes for (name, version). Callers must
// close the returned reader. The bytes are never buffered by this client.
func (c *Client) Download(ctx context.Context, name, version string) (io.ReadCloser, error) {
	md, err := c.Metadata(ctx, name)
	if err != nil {
		return nil, err
	}
	pv, ok := md.Version(version)
	if !ok {
		return nil, errors.Wrapf(ErrNoVersion, "%s@%s", name, version)
	}
	return c.getWithRetry(ctx, pv.Dist.Tarball)
}

// getWithRetry performs an HTTP GET, retrying network errors (but never
// auth errors) up to cfg.MaxRetries times with exponential back-off.
func (c *Client) getWithRetry(ctx context.Context, url string) (io.ReadCloser, error) {
	var lastErr error
	delay := 200 * time.Millisecond

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		rc, retryable, err := c.get(ctx, url)
		if err == nil {
			return rc, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, errors.Wrapf(ErrNetwork, "giving up after %d attempts: %s", c.cfg.MaxRetries+1, lastErr)
}

func (c *Client) get(ctx context.Context, url string) (rc io.ReadCloser, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.authToken(url); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, errors.Wrapf(ErrNetwork, "%s: %s", url, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp.Body, false, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, false, errors.Wrapf(ErrAuth, "%s: HTTP %d", url, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, false, errors.Wrapf(ErrNotFound, "%s", url)
	case resp.StatusCode >= 500:
		resp.Body.Close()
		return nil, true, errors.Wrapf(ErrNetwork, "%s: HTTP %d", url, resp.StatusCode)
	default:
		resp.Body.Close()
		return nil, false, errors.Wrapf(ErrNetwork, "%s: HTTP %d", url, resp.StatusCode)
	}
}

// pathEscapeName encodes a scoped package name's "/" the way the registry
// protocol expects it in the metadata path segment: "@scope/name" becomes
// "@scope%2Fname".
func pathEscapeName(name string) string {
	if !strings.HasPrefix(name, "@") {
		return name
	}
	return strings.Replace(name, "/", "%2F", 1)
}
