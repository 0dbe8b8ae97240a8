// Package directory implements the directory layer of the volume. Directory
// content is a flat run of fixed-size entry records stored inside a
// directory inode; a record binds an entry name to the sector of its target
// inode. A [Dir] is an open handle over one directory, owning its backing
// inode reference.
package directory

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/desertwitch/sectorfs/internal/schema"
)

// entrySize is the fixed on-disk size of one directory entry record: the
// target sector, an in-use flag and the NUL-padded entry name.
const entrySize = 4 + 1 + schema.NameMax + 1

type inodeProvider interface {
	Create(sector schema.Sector, length uint64, isDir bool) error
	Open(sector schema.Sector) (schema.InodeRef, error)
}

// entry mirrors the on-disk directory entry record.
type entry struct {
	sector schema.Sector
	inUse  bool
	name   string
}

func (e *entry) marshal(p []byte) {
	clear(p[:entrySize])
	binary.LittleEndian.PutUint32(p[0:4], uint32(e.sector))
	if e.inUse {
		p[4] = 1
	}
	copy(p[5:5+schema.NameMax], e.name)
}

func (e *entry) unmarshal(p []byte) {
	e.sector = schema.Sector(binary.LittleEndian.Uint32(p[0:4]))
	e.inUse = p[4] != 0

	name := p[5 : 5+schema.NameMax+1]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	e.name = string(name)
}

// Handler is the principal implementation of the directory layer.
type Handler struct {
	inodes inodeProvider
}

// NewHandler returns a pointer to a new directory [Handler] drawing its
// inodes from the given provider.
func NewHandler(inodes inodeProvider) *Handler {
	return &Handler{
		inodes: inodes,
	}
}

// Create creates a fresh, empty directory inode at the given sector, sized
// for the given number of entry records. The capacity is a hint; a
// directory grows past it on demand.
func (h *Handler) Create(sector schema.Sector, entries int) error {
	if err := h.inodes.Create(sector, uint64(entries)*entrySize, true); err != nil {
		return fmt.Errorf("(dir-create) %w", err)
	}

	return nil
}

// Open returns a directory handle over the given inode reference, taking
// ownership of it. A non-directory inode is closed and surfaces [ErrNotDir].
//
//nolint:ireturn
func (h *Handler) Open(ref schema.InodeRef) (schema.Directory, error) {
	if !ref.IsDir() {
		ref.Close() //nolint:errcheck

		return nil, fmt.Errorf("(dir-open) sector %d: %w", ref.Inumber(), ErrNotDir)
	}

	return &Dir{h: h, ref: ref}, nil
}

// OpenSector opens the directory whose inode lives at the given sector.
//
//nolint:ireturn
func (h *Handler) OpenSector(sector schema.Sector) (schema.Directory, error) {
	ref, err := h.inodes.Open(sector)
	if err != nil {
		return nil, fmt.Errorf("(dir-open) %w", err)
	}

	return h.Open(ref)
}

// OpenRoot opens the root directory of the volume.
//
//nolint:ireturn
func (h *Handler) OpenRoot() (schema.Directory, error) {
	return h.OpenSector(schema.RootDirSector)
}

// Dir is an open handle over one directory's entry storage.
type Dir struct {
	h   *Handler
	ref schema.InodeRef
	mu  sync.Mutex
}

// Inumber returns the sector identity of the directory.
func (d *Dir) Inumber() schema.Sector {
	return d.ref.Inumber()
}

// IsDir always reports true for a directory handle.
func (d *Dir) IsDir() bool {
	return true
}

// Size returns the byte length of the directory's entry storage.
func (d *Dir) Size() uint64 {
	return d.ref.Length()
}

// Close closes the directory handle and its backing inode reference.
func (d *Dir) Close() error {
	return d.ref.Close()
}

// Lookup searches the directory for an entry of the given name. On a hit it
// returns an opened reference to the target inode, which the caller owns
// and must close.
//
//nolint:ireturn
func (d *Dir) Lookup(name string) (schema.InodeRef, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ent, err := d.find(name)
	if err != nil {
		return nil, false, err
	}
	if ent == nil {
		return nil, false, nil
	}

	ref, err := d.h.inodes.Open(ent.sector)
	if err != nil {
		return nil, false, fmt.Errorf("(dir-lookup) %w", err)
	}

	return ref, true, nil
}

// Add inserts an entry binding the given name to the given sector, reusing
// a free record slot or appending a new one.
func (d *Dir) Add(name string, sector schema.Sector) error {
	if name == "" || len(name) > schema.NameMax {
		return fmt.Errorf("(dir-add) %w: %q", ErrBadName, name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	freeOff := int64(-1)
	end := d.entryEnd()
	for off := int64(0); off < end; off += entrySize {
		ent, err := d.readEntry(off)
		if err != nil {
			return fmt.Errorf("(dir-add) %w", err)
		}

		if !ent.inUse {
			if freeOff < 0 {
				freeOff = off
			}

			continue
		}
		if ent.name == name {
			return fmt.Errorf("(dir-add) %w: %q", ErrExists, name)
		}
	}

	if freeOff < 0 {
		freeOff = end
	}

	if err := d.writeEntry(freeOff, &entry{sector: sector, inUse: true, name: name}); err != nil {
		return fmt.Errorf("(dir-add) %w", err)
	}

	return nil
}

// Remove deletes the named entry and marks the target inode for removal, so
// that its storage is reclaimed by reference accounting. The "." and ".."
// entries are refused, as is a directory that still holds entries.
func (d *Dir) Remove(name string) error {
	if name == "." || name == ".." {
		return fmt.Errorf("(dir-remove) %w: %q", ErrDotEntry, name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	off, ent, err := d.find(name)
	if err != nil {
		return fmt.Errorf("(dir-remove) %w", err)
	}
	if ent == nil {
		return fmt.Errorf("(dir-remove) %w: %q", ErrNotFound, name)
	}

	target, err := d.h.inodes.Open(ent.sector)
	if err != nil {
		return fmt.Errorf("(dir-remove) %w", err)
	}

	if target.IsDir() {
		empty, err := dirIsEmpty(target)
		if err != nil {
			target.Close() //nolint:errcheck

			return fmt.Errorf("(dir-remove) %w", err)
		}
		if !empty {
			target.Close() //nolint:errcheck

			return fmt.Errorf("(dir-remove) %w: %q", ErrDirNotEmpty, name)
		}
	}

	if err := d.writeEntry(off, &entry{}); err != nil {
		target.Close() //nolint:errcheck

		return fmt.Errorf("(dir-remove) %w", err)
	}

	target.Remove()
	target.Close() //nolint:errcheck

	return nil
}

// List returns the directory's in-use entries, excluding the
// self-referential "." and ".." entries.
func (d *Dir) List() ([]schema.DirEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var entries []schema.DirEntry
	end := d.entryEnd()
	for off := int64(0); off < end; off += entrySize {
		ent, err := d.readEntry(off)
		if err != nil {
			return nil, fmt.Errorf("(dir-list) %w", err)
		}

		if !ent.inUse || ent.name == "." || ent.name == ".." {
			continue
		}
		entries = append(entries, schema.DirEntry{Name: ent.name, Sector: ent.sector})
	}

	return entries, nil
}

// find scans for the named in-use entry, returning its record offset. A nil
// entry means the name is not present. The caller must hold the dir mutex.
func (d *Dir) find(name string) (int64, *entry, error) {
	end := d.entryEnd()
	for off := int64(0); off < end; off += entrySize {
		ent, err := d.readEntry(off)
		if err != nil {
			return 0, nil, err
		}

		if ent.inUse && ent.name == name {
			return off, ent, nil
		}
	}

	return 0, nil, nil
}

// entryEnd returns the offset just past the last whole entry record.
func (d *Dir) entryEnd() int64 {
	return (int64(d.ref.Length()) / entrySize) * entrySize //nolint:gosec
}

func (d *Dir) readEntry(off int64) (*entry, error) {
	buf := make([]byte, entrySize)
	if _, err := d.ref.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("failed to read entry at %d: %w", off, err)
	}

	ent := &entry{}
	ent.unmarshal(buf)

	return ent, nil
}

func (d *Dir) writeEntry(off int64, ent *entry) error {
	buf := make([]byte, entrySize)
	ent.marshal(buf)

	if _, err := d.ref.WriteAt(buf, off); err != nil {
		return fmt.Errorf("failed to write entry at %d: %w", off, err)
	}

	return nil
}

// dirIsEmpty reports whether a directory inode holds no in-use entries
// besides its "." and ".." self references.
func dirIsEmpty(ref schema.InodeRef) (bool, error) {
	end := (int64(ref.Length()) / entrySize) * entrySize //nolint:gosec
	buf := make([]byte, entrySize)

	for off := int64(0); off < end; off += entrySize {
		if _, err := ref.ReadAt(buf, off); err != nil {
			return false, fmt.Errorf("failed to read entry at %d: %w", off, err)
		}

		ent := &entry{}
		ent.unmarshal(buf)

		if ent.inUse && ent.name != "." && ent.name != ".." {
			return false, nil
		}
	}

	return true, nil
}
