// Command jio is a thin process entry point: it wires the project
// directory, configuration, registry client, and content store into an
// install.Orchestrator and dispatches to one of its modes. Argument
// parsing proper is out of scope (spec.md §1) — main only recognises the
// mode name itself, the same one-word dispatch dep's cmd/dep/main.go does
// before each subcommand takes over its own flags.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jio-pm/jio/internal/config"
	"github.com/jio-pm/jio/internal/install"
	"github.com/jio-pm/jio/internal/jlog"
	"github.com/jio-pm/jio/registry"
	"github.com/jio-pm/jio/store"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	log := jlog.Default()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: jio <install|ci|update|uninstall|dedupe|prune|outdated> [names...]")
		return 1
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("getwd: %s", err)
		return 1
	}

	home, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("determining home directory: %s", err)
		return 1
	}
	cfg := config.Default(home)
	if merged, err := config.ReadNpmrc(filepath.Join(wd, ".npmrc")); err == nil {
		cfg = cfg.Merge(merged)
	}

	reg := registry.New(registry.Config{
		DefaultRegistry:  cfg.Registry,
		ScopedRegistries: cfg.ScopedRegistries,
		AuthTokens:       cfg.AuthTokens,
		Timeout:          cfg.HTTPTimeout,
		MaxRetries:       cfg.MaxRetries,
	}, nil)
	linkMode := store.LinkModeHardlink
	if cfg.UseSymlinks {
		linkMode = store.LinkModeSymlink
	}
	st, err := store.Open(cfg.StoreDirectory, linkMode)
	if err != nil {
		log.Errorf("opening store: %s", err)
		return 1
	}

	o := install.New(wd, cfg, reg, st, log)
	ctx := context.Background()

	mode, rest := args[0], args[1:]
	switch mode {
	case "install":
		adds := make([]install.AddSpec, 0, len(rest))
		for _, name := range rest {
			adds = append(adds, install.AddSpec{Name: name})
		}
		if _, err := o.Install(ctx, adds); err != nil {
			log.Errorf("install: %s", err)
			return exitCode(err)
		}
	case "ci":
		if err := o.CI(ctx); err != nil {
			log.Errorf("ci: %s", err)
			return exitCode(err)
		}
	case "update":
		if _, err := o.Update(ctx, rest, false); err != nil {
			log.Errorf("update: %s", err)
			return exitCode(err)
		}
	case "uninstall":
		for _, name := range rest {
			if err := o.Uninstall(name); err != nil {
				log.Errorf("uninstall %s: %s", name, err)
				return 1
			}
		}
	case "dedupe":
		if err := o.Dedupe(); err != nil {
			log.Errorf("dedupe: %s", err)
			return 1
		}
	case "prune":
		if err := o.Prune(false); err != nil {
			log.Errorf("prune: %s", err)
			return 1
		}
	case "outdated":
		entries, err := o.Outdated(ctx)
		if err != nil {
			log.Errorf("outdated: %s", err)
			return 1
		}
		for _, e := range entries {
			fmt.Printf("%s\t%s\t%s\t%s\t%s\n", e.Name, e.Range, e.Current, e.Wanted, e.Latest)
		}
	default:
		fmt.Fprintf(os.Stderr, "jio: unknown mode %q\n", mode)
		return 1
	}
	return 0
}

func exitCode(err error) int {
	if err == install.ErrCancelled {
		return 130
	}
	return 1
}
