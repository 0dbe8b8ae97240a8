package filesystem

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/desertwitch/sectorfs/internal/file"
	"github.com/desertwitch/sectorfs/internal/pathing"
	"github.com/desertwitch/sectorfs/internal/schema"
)

// maxPathDepth bounds the upward walk of [Handler.WorkingDirPath], so a
// corrupted parent chain cannot loop forever.
const maxPathDepth = 512

// Create creates a new file or directory of the given initial size at the
// given path. The final path component must not exist yet, all earlier ones
// must. One sector is allocated for the new object's inode; on any later
// failure the partially created object is unwound again, so no storage is
// left allocated but unreferenced. A new directory receives its "." and
// ".." entries before it is linked into its parent.
func (h *Handler) Create(ec *ExecContext, path string, size uint64, isDir bool) error {
	res, err := h.walker.Resolve(path, ec.cwd)
	if err != nil {
		return fmt.Errorf("(fs-create) %w", err)
	}
	if res.State == pathing.StateFoundAsLast {
		res.Close()

		return fmt.Errorf("(fs-create) %w: %s", ErrExists, path)
	}
	parent := res.Parent

	sector, err := h.freemap.Allocate(1)
	if err != nil {
		parent.Close() //nolint:errcheck

		return fmt.Errorf("(fs-create) %w", err)
	}

	if err := h.inodes.Create(sector, size, isDir); err != nil {
		h.freemap.Release(sector, 1)
		parent.Close() //nolint:errcheck

		return fmt.Errorf("(fs-create) %w", err)
	}

	// From here on the inode exists on disk; compensation marks it removed
	// and closes it, so reference accounting releases its sector and any
	// lazily allocated entry blocks again.
	rollback := func(cause error) error {
		if ref, err := h.inodes.Open(sector); err == nil {
			ref.Remove()
			ref.Close() //nolint:errcheck
		} else {
			h.freemap.Release(sector, 1)
		}
		parent.Close() //nolint:errcheck

		slog.Warn("Rolled back failed create.",
			"err", cause,
			"path", path,
			"sector", sector,
		)

		return fmt.Errorf("(fs-create) %w", cause)
	}

	if isDir {
		dir, err := h.dirs.OpenSector(sector)
		if err != nil {
			return rollback(err)
		}

		if err := dir.Add(".", sector); err != nil {
			dir.Close() //nolint:errcheck

			return rollback(err)
		}
		if err := dir.Add("..", parent.Inumber()); err != nil {
			dir.Close() //nolint:errcheck

			return rollback(err)
		}

		dir.Close() //nolint:errcheck
	}

	if err := parent.Add(res.Name, sector); err != nil {
		return rollback(err)
	}

	parent.Close() //nolint:errcheck

	return nil
}

// Open resolves the given path to an open handle: a directory handle when
// the target is a directory, a file handle otherwise. The caller owns the
// returned handle and must close it.
//
//nolint:ireturn
func (h *Handler) Open(ec *ExecContext, path string) (schema.Handle, error) {
	res, err := h.walker.Resolve(path, ec.cwd)
	if err != nil {
		return nil, fmt.Errorf("(fs-open) %w", err)
	}
	res.Parent.Close() //nolint:errcheck

	if res.State != pathing.StateFoundAsLast {
		return nil, fmt.Errorf("(fs-open) %w: %s", ErrNotFound, path)
	}

	if res.Target.IsDir() {
		dir, err := h.dirs.Open(res.Target)
		if err != nil {
			return nil, fmt.Errorf("(fs-open) %w", err)
		}

		return dir, nil
	}

	return file.New(res.Target), nil
}

// Remove deletes the object at the given path from its parent directory.
// A context's own current working directory is refused; reclamation of the
// target's storage is delegated to the layers' reference accounting.
func (h *Handler) Remove(ec *ExecContext, path string) error {
	res, err := h.walker.Resolve(path, ec.cwd)
	if err != nil {
		return fmt.Errorf("(fs-remove) %w", err)
	}

	if res.State != pathing.StateFoundAsLast {
		res.Close()

		return fmt.Errorf("(fs-remove) %w: %s", ErrNotFound, path)
	}

	if res.Target.Inumber() == ec.cwd {
		res.Close()

		return fmt.Errorf("(fs-remove) %w: %s", ErrRemoveActiveDir, path)
	}

	res.Target.Close() //nolint:errcheck

	if err := res.Parent.Remove(res.Name); err != nil {
		res.Parent.Close() //nolint:errcheck

		return fmt.Errorf("(fs-remove) %w", err)
	}

	res.Parent.Close() //nolint:errcheck

	return nil
}

// ChangeDir re-roots the context's relative resolution at the directory the
// given path resolves to. The context's working directory is left unchanged
// on any failure.
func (h *Handler) ChangeDir(ec *ExecContext, path string) error {
	res, err := h.walker.Resolve(path, ec.cwd)
	if err != nil {
		return fmt.Errorf("(fs-chdir) %w", err)
	}

	if res.State != pathing.StateFoundAsLast {
		res.Close()

		return fmt.Errorf("(fs-chdir) %w: %s", ErrNotFound, path)
	}

	if !res.Target.IsDir() {
		res.Close()

		return fmt.Errorf("(fs-chdir) %w: %s", ErrNotDirectory, path)
	}

	ec.cwd = res.Target.Inumber()
	res.Close()

	return nil
}

// WorkingDirPath reconstructs the absolute path of the context's current
// working directory by following ".." entries upward and matching each
// directory's identity in its parent's listing.
func (h *Handler) WorkingDirPath(ec *ExecContext) (string, error) {
	cur := ec.cwd
	if cur == schema.RootDirSector {
		return "/", nil
	}

	var parts []string
	for depth := 0; cur != schema.RootDirSector; depth++ {
		if depth >= maxPathDepth {
			return "", fmt.Errorf("(fs-pwd) %w", ErrUnresolvableCwd)
		}

		parentSector, err := h.parentOf(cur)
		if err != nil {
			return "", err
		}

		name, err := h.nameIn(parentSector, cur)
		if err != nil {
			return "", err
		}

		parts = append([]string{name}, parts...)
		cur = parentSector
	}

	return "/" + strings.Join(parts, "/"), nil
}

// parentOf returns the sector of a directory's parent via its ".." entry.
func (h *Handler) parentOf(sector schema.Sector) (schema.Sector, error) {
	dir, err := h.dirs.OpenSector(sector)
	if err != nil {
		return 0, fmt.Errorf("(fs-pwd) %w", err)
	}
	defer dir.Close() //nolint:errcheck

	ref, found, err := dir.Lookup("..")
	if err != nil {
		return 0, fmt.Errorf("(fs-pwd) %w", err)
	}
	if !found {
		return 0, fmt.Errorf("(fs-pwd) %w: sector %d has no parent entry", ErrUnresolvableCwd, sector)
	}

	parent := ref.Inumber()
	ref.Close() //nolint:errcheck

	return parent, nil
}

// nameIn returns the entry name under which child is listed in the
// directory at parent.
func (h *Handler) nameIn(parent, child schema.Sector) (string, error) {
	dir, err := h.dirs.OpenSector(parent)
	if err != nil {
		return "", fmt.Errorf("(fs-pwd) %w", err)
	}
	defer dir.Close() //nolint:errcheck

	entries, err := dir.List()
	if err != nil {
		return "", fmt.Errorf("(fs-pwd) %w", err)
	}

	for _, ent := range entries {
		if ent.Sector == child {
			return ent.Name, nil
		}
	}

	return "", fmt.Errorf("(fs-pwd) %w: sector %d not listed in %d", ErrUnresolvableCwd, child, parent)
}
