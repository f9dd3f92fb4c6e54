package layout

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Linker is the narrow store surface Materialise needs; store.Store
// satisfies it.
type Linker interface {
	Link(name, version, targetPath string) error
}

// Materialise links every placement's store entry into root, creating
// parent directories as needed. It never removes anything itself; per
// spec.md §4.8 "Destructive updates", install and CI build the new tree
// by pointing root at a fresh temp directory and only swap it over any
// pre-existing node_modules/ once Materialise has fully succeeded.
func Materialise(ctx context.Context, root string, placements []Placement, linker Linker) error {
	for _, p := range placements {
		if err := ctx.Err(); err != nil {
			return err
		}
		target := filepath.Join(root, filepath.FromSlash(p.TargetPath))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return errors.Wrapf(err, "creating parent directory for %s", p.TargetPath)
		}
		if err := linker.Link(p.Name, p.Version, target); err != nil {
			return errors.Wrapf(err, "linking %s@%s", p.Name, p.Version)
		}
	}
	return nil
}
