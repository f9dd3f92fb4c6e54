// Package install implements the operation modes driving jio's other
// components — install, ci, update, uninstall, dedupe, prune, outdated —
// one file per mode, mirroring cmd.go/ensure.go/init.go/remove.go/
// status.go's one-command-per-file CLI layer.
package install

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/jio-pm/jio/internal/config"
	"github.com/jio-pm/jio/internal/jlog"
	"github.com/jio-pm/jio/layout"
	"github.com/jio-pm/jio/lockfile"
	"github.com/jio-pm/jio/manifest"
	"github.com/jio-pm/jio/resolve"
	"github.com/jio-pm/jio/store"
)

// Fetcher is the narrow registry surface the orchestrator needs;
// registry.Client satisfies it. Keeping it an interface here mirrors
// resolve.MetadataSource's own separation from registry.Client, so install
// flows are testable against a fake without a live HTTP server, the same
// split source_manager.go draws between SourceManager and SourceMgr.
type Fetcher interface {
	resolve.MetadataSource
	Download(ctx context.Context, name, version string) (io.ReadCloser, error)
}

// ErrNoLockFile is returned by CI when no lock file is present.
var ErrNoLockFile = errors.New("install: ci requires an existing lock file")

// ErrCancelled is returned in place of a bare context.Canceled so callers
// can map it to the orchestrator's exit code 130 (§6).
var ErrCancelled = errors.New("install: cancelled")

const (
	manifestName = "package.json"
	lockName     = "jio-lock.json"
)

// Orchestrator owns one project directory's worth of state: its manifest,
// the shared content store, the registry client, and the logger every
// operation reports through.
type Orchestrator struct {
	ProjectDir string
	Config     config.Config
	Registry   Fetcher
	Store      *store.Store
	Log        *jlog.Logger
}

// New builds an Orchestrator rooted at projectDir.
func New(projectDir string, cfg config.Config, reg Fetcher, st *store.Store, log *jlog.Logger) *Orchestrator {
	if log == nil {
		log = jlog.Default()
	}
	return &Orchestrator{ProjectDir: projectDir, Config: cfg, Registry: reg, Store: st, Log: log}
}

func (o *Orchestrator) manifestPath() string { return filepath.Join(o.ProjectDir, manifestName) }
func (o *Orchestrator) lockPath() string     { return filepath.Join(o.ProjectDir, lockName) }
func (o *Orchestrator) nodeModulesPath() string {
	return filepath.Join(o.ProjectDir, "node_modules")
}

func (o *Orchestrator) readManifest() (*manifest.Manifest, error) {
	f, err := os.Open(o.manifestPath())
	if err != nil {
		return nil, errors.Wrap(err, "reading package.json")
	}
	defer f.Close()
	return manifest.Read(f)
}

func (o *Orchestrator) writeManifest(m *manifest.Manifest) error {
	tmp := o.manifestPath() + ".jio-tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := manifest.Write(f, m); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, o.manifestPath())
}

func (o *Orchestrator) readLock() (*lockfile.LockFile, error) {
	f, err := os.Open(o.lockPath())
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return lockfile.Read(f)
}

func (o *Orchestrator) writeLock(lf *lockfile.LockFile) error {
	tmp := o.lockPath() + ".jio-tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := lockfile.Write(f, lf); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, o.lockPath())
}

func (o *Orchestrator) layoutMode() layout.Mode {
	if o.Config.StrictNodeModules {
		return layout.Strict
	}
	return layout.Hoisted
}

func (o *Orchestrator) resolver(workspaces map[string]string) *resolve.Resolver {
	return resolve.New(o.Registry, o.Config.StrictNodeModules, o.Config.MaxConcurrentDownloads, workspaces)
}

func mapCancel(err error) error {
	if err == context.Canceled || err == context.DeadlineExceeded {
		return ErrCancelled
	}
	return err
}
