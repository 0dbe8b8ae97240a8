// Package filesystem implements the user-facing facade of the volume: the
// create, open, remove and change-directory operations atop path resolution,
// plus initialization, teardown and formatting. The facade enforces the
// operation-level invariants (no duplicate creation, no removal of a
// caller's own working directory, rollback of allocated storage on partial
// failure) and delegates all storage work to the layers beneath it.
package filesystem

import (
	"fmt"
	"log/slog"

	"github.com/desertwitch/sectorfs/internal/pathing"
	"github.com/desertwitch/sectorfs/internal/schema"
)

type devProvider interface {
	Path() string
	SectorCount() uint32
}

type cacheProvider interface {
	Init()
	Destroy() error
}

type inodeProvider interface {
	Init()
	Create(sector schema.Sector, length uint64, isDir bool) error
	Open(sector schema.Sector) (schema.InodeRef, error)
}

type freemapProvider interface {
	Init()
	Create() error
	Open() error
	Close() error
	Allocate(count uint32) (schema.Sector, error)
	Release(sector schema.Sector, count uint32)
}

type dirProvider interface {
	Create(sector schema.Sector, entries int) error
	Open(ref schema.InodeRef) (schema.Directory, error)
	OpenSector(sector schema.Sector) (schema.Directory, error)
}

type walkProvider interface {
	Resolve(path string, cwd schema.Sector) (*pathing.Resolution, error)
}

// Handler is the principal implementation of the filesystem facade. All
// layer handles are injected at construction; the handler holds no
// process-wide mutable state of its own.
type Handler struct {
	dev     devProvider
	cache   cacheProvider
	inodes  inodeProvider
	freemap freemapProvider
	dirs    dirProvider
	walker  walkProvider
}

// NewHandler returns a pointer to a new filesystem [Handler] over the given
// collaborator layers.
func NewHandler(dev devProvider, cache cacheProvider, inodes inodeProvider,
	freemap freemapProvider, dirs dirProvider, walker walkProvider,
) *Handler {
	return &Handler{
		dev:     dev,
		cache:   cache,
		inodes:  inodes,
		freemap: freemap,
		dirs:    dirs,
		walker:  walker,
	}
}

// Init brings the filesystem into service. A missing backing device is
// unrecoverable and surfaced as [ErrNoDevice]; the caller must abort on it.
// The inode layer, the free-space layer and the cache are initialized in
// that order, the volume is formatted when requested, and the free map is
// opened for use last.
func (h *Handler) Init(formatRequested bool) error {
	if h.dev == nil {
		return fmt.Errorf("(fs-init) %w", ErrNoDevice)
	}

	h.inodes.Init()
	h.freemap.Init()
	h.cache.Init()

	if formatRequested {
		if err := h.Format(); err != nil {
			return fmt.Errorf("(fs-init) %w", err)
		}
	}

	if err := h.freemap.Open(); err != nil {
		return fmt.Errorf("(fs-init) %w", err)
	}

	slog.Info("Filesystem is in service.",
		"image", h.dev.Path(),
		"sectors", h.dev.SectorCount(),
	)

	return nil
}

// Done takes the filesystem out of service. The free map is closed before
// the cache is torn down, so outstanding allocator state is durable before
// buffered writes are discarded.
func (h *Handler) Done() error {
	if err := h.freemap.Close(); err != nil {
		return fmt.Errorf("(fs-done) %w", err)
	}

	if err := h.cache.Destroy(); err != nil {
		return fmt.Errorf("(fs-done) %w", err)
	}

	return nil
}

// Format destructively reinitializes the volume: the free map is recreated,
// the root directory is created at its fixed sector with the initial entry
// capacity, and the free map is closed again. Intended to run once on a
// blank device, before any other operation.
func (h *Handler) Format() error {
	slog.Info("Formatting the volume.", "image", h.dev.Path())

	if err := h.freemap.Create(); err != nil {
		return fmt.Errorf("(fs-format) %w", err)
	}

	if err := h.dirs.Create(schema.RootDirSector, schema.RootDirEntries); err != nil {
		return fmt.Errorf("(fs-format) %w", err)
	}

	if err := h.freemap.Close(); err != nil {
		return fmt.Errorf("(fs-format) %w", err)
	}

	return nil
}

// Reformat destructively reinitializes an already serving volume and brings
// it back into service: buffered state is dropped, open inodes are
// orphaned, the volume is formatted and the free map reopened. Any handles
// or contexts from before the call must be discarded by the caller.
func (h *Handler) Reformat() error {
	h.cache.Init()
	h.inodes.Init()
	h.freemap.Init()

	if err := h.Format(); err != nil {
		return fmt.Errorf("(fs-reformat) %w", err)
	}

	if err := h.freemap.Open(); err != nil {
		return fmt.Errorf("(fs-reformat) %w", err)
	}

	return nil
}
