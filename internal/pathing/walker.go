package pathing

import (
	"fmt"
	"strings"

	"github.com/desertwitch/sectorfs/internal/schema"
)

type dirProvider interface {
	Open(ref schema.InodeRef) (schema.Directory, error)
	OpenRoot() (schema.Directory, error)
	OpenSector(sector schema.Sector) (schema.Directory, error)
}

// State tags the terminal outcome of a successful walk.
type State int

const (
	// StateNotFoundAsLast means every component but the final one was
	// descended through, and the final one is absent from its parent.
	// This is the target state for creation.
	StateNotFoundAsLast State = iota

	// StateFoundAsLast means the path resolved fully to an existing target.
	StateFoundAsLast
)

// Resolution is the outcome of a successful [Walker.Resolve] call. The
// parent directory handle is always open and owned by the caller; the
// target reference is open only in [StateFoundAsLast] and is then owned by
// the caller as well.
type Resolution struct {
	State  State
	Parent schema.Directory
	Name   string
	Target schema.InodeRef
}

// Close releases the parent handle and, if present, the target reference.
func (r *Resolution) Close() {
	if r.Target != nil {
		r.Target.Close() //nolint:errcheck
	}
	if r.Parent != nil {
		r.Parent.Close() //nolint:errcheck
	}
}

// Walker descends the directory tree along a path's components.
type Walker struct {
	dirs dirProvider
}

// NewWalker returns a pointer to a new [Walker] over the given directory
// layer.
func NewWalker(dirs dirProvider) *Walker {
	return &Walker{
		dirs: dirs,
	}
}

// Resolve walks the given path and produces its [Resolution]. An absolute
// path starts at the root directory, a relative path at the directory
// identified by cwd. A non-nil error is the invalid terminal: the path is
// empty, holds a too-long component, references a missing intermediate or
// descends into something that is not a directory; every internally opened
// handle is closed again before the error returns. At most one directory
// handle is open at any instant during the walk.
func (w *Walker) Resolve(path string, cwd schema.Sector) (*Resolution, error) {
	var (
		dir schema.Directory
		err error
	)

	if strings.HasPrefix(path, "/") {
		dir, err = w.dirs.OpenRoot()
	} else {
		dir, err = w.dirs.OpenSector(cwd)
	}
	if err != nil {
		return nil, fmt.Errorf("(pathing-resolve) %w: %w", ErrInvalidPath, err)
	}

	cur := NewCursor(path)

	name, ok, err := cur.Next()
	if err != nil || !ok {
		dir.Close() //nolint:errcheck

		if err != nil {
			return nil, fmt.Errorf("(pathing-resolve) %w: %w", ErrInvalidPath, err)
		}

		return nil, fmt.Errorf("(pathing-resolve) %w: no name component in %q", ErrInvalidPath, path)
	}

	for {
		target, found, err := dir.Lookup(name)
		if err != nil {
			dir.Close() //nolint:errcheck

			return nil, fmt.Errorf("(pathing-resolve) %w: %w", ErrInvalidPath, err)
		}

		if !found {
			if cur.AtEnd() {
				return &Resolution{State: StateNotFoundAsLast, Parent: dir, Name: name}, nil
			}
			dir.Close() //nolint:errcheck

			return nil, fmt.Errorf("(pathing-resolve) %w: missing intermediate %q", ErrInvalidPath, name)
		}

		if cur.AtEnd() {
			return &Resolution{State: StateFoundAsLast, Parent: dir, Name: name, Target: target}, nil
		}

		// Descend: the old handle is closed before its replacement opens,
		// so exactly one directory handle is live at any instant. Open
		// takes ownership of the target reference and closes it when the
		// found entry cannot be descended into.
		dir.Close() //nolint:errcheck
		dir, err = w.dirs.Open(target)
		if err != nil {
			return nil, fmt.Errorf("(pathing-resolve) %w: %w", ErrInvalidPath, err)
		}

		name, ok, err = cur.Next()
		if err != nil || !ok {
			dir.Close() //nolint:errcheck

			if err != nil {
				return nil, fmt.Errorf("(pathing-resolve) %w: %w", ErrInvalidPath, err)
			}

			return nil, fmt.Errorf("(pathing-resolve) %w: trailing separator in %q", ErrInvalidPath, path)
		}
	}
}
