// Package inode implements the inode layer of the volume: the on-disk
// representation of a file or directory's storage object, positional reads
// and writes over its direct data blocks, and open-reference accounting.
// Data blocks are allocated lazily on first write; an unallocated block
// reads as zeros. A removed inode's blocks and sector are released back to
// the free-space layer when its last open reference is closed.
package inode

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/desertwitch/sectorfs/internal/schema"
)

const (
	// inodeMagic identifies a sector holding a valid inode ("SFSI").
	inodeMagic = 0x53465349

	// DirectBlocks is the number of direct data block pointers per inode.
	DirectBlocks = 124

	// MaxLength is the maximum byte length of an inode's content.
	MaxLength = DirectBlocks * schema.SectorSize

	flagIsDir = 1 << 0
)

// diskInode mirrors the on-disk inode layout, which fills one full sector:
// magic, flags, 64-bit content length, then the direct block pointers. A
// pointer of zero is a hole reading as zeros; this is unambiguous because
// sector zero holds the volume header.
type diskInode struct {
	length uint64
	isDir  bool
	blocks [DirectBlocks]schema.Sector
}

func (di *diskInode) marshal(p []byte) {
	binary.LittleEndian.PutUint32(p[0:4], inodeMagic)

	var flags uint32
	if di.isDir {
		flags |= flagIsDir
	}
	binary.LittleEndian.PutUint32(p[4:8], flags)
	binary.LittleEndian.PutUint64(p[8:16], di.length)

	for i, b := range di.blocks {
		binary.LittleEndian.PutUint32(p[16+i*4:], uint32(b))
	}
}

func (di *diskInode) unmarshal(p []byte) error {
	if binary.LittleEndian.Uint32(p[0:4]) != inodeMagic {
		return ErrBadInode
	}

	flags := binary.LittleEndian.Uint32(p[4:8])
	di.isDir = flags&flagIsDir != 0
	di.length = binary.LittleEndian.Uint64(p[8:16])

	for i := range di.blocks {
		di.blocks[i] = schema.Sector(binary.LittleEndian.Uint32(p[16+i*4:]))
	}

	return nil
}

type cacheProvider interface {
	Read(sector schema.Sector, p []byte) error
	Write(sector schema.Sector, p []byte) error
	ReadAt(sector schema.Sector, p []byte, off int) error
	WriteAt(sector schema.Sector, p []byte, off int) error
	Zero(sector schema.Sector) error
}

type allocProvider interface {
	Allocate(count uint32) (schema.Sector, error)
	Release(sector schema.Sector, count uint32)
}

// Handler is the principal implementation of the inode layer. It holds the
// table of currently open inodes, so that concurrent opens of the same
// sector share one [Ref] identity.
type Handler struct {
	mu    sync.Mutex
	cache cacheProvider
	alloc allocProvider
	open  map[schema.Sector]*Ref
}

// NewHandler returns a pointer to a new inode [Handler], performing its IO
// through the given cache and drawing data blocks from the given allocator.
func NewHandler(cache cacheProvider, alloc allocProvider) *Handler {
	h := &Handler{
		cache: cache,
		alloc: alloc,
	}
	h.Init()

	return h
}

// Init resets the open-inode table. Any [Ref] still held across an Init is
// orphaned and must not be used further.
func (h *Handler) Init() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.open = make(map[schema.Sector]*Ref)
}

// Create writes a fresh on-disk inode of the given content length and type
// at the given sector. No data blocks are allocated; content storage is
// allocated lazily on first write.
func (h *Handler) Create(sector schema.Sector, length uint64, isDir bool) error {
	if length > MaxLength {
		return fmt.Errorf("(inode-create) %w: %d bytes", ErrFileTooLarge, length)
	}

	di := diskInode{length: length, isDir: isDir}
	buf := make([]byte, schema.SectorSize)
	di.marshal(buf)

	if err := h.cache.Write(sector, buf); err != nil {
		return fmt.Errorf("(inode-create) sector %d: %w", sector, err)
	}

	return nil
}

// Open returns an open reference to the inode at the given sector, loading
// it from storage or re-referencing an already open [Ref] of that sector.
//
//nolint:ireturn
func (h *Handler) Open(sector schema.Sector) (schema.InodeRef, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.open[sector]; ok {
		r.count++

		return r, nil
	}

	buf := make([]byte, schema.SectorSize)
	if err := h.cache.Read(sector, buf); err != nil {
		return nil, fmt.Errorf("(inode-open) sector %d: %w", sector, err)
	}

	r := &Ref{h: h, sector: sector, count: 1}
	if err := r.disk.unmarshal(buf); err != nil {
		return nil, fmt.Errorf("(inode-open) sector %d: %w", sector, err)
	}
	h.open[sector] = r

	return r, nil
}

// Ref is an open reference to one inode. All references to the same sector
// share one Ref; the reference count and removal mark live on it.
type Ref struct {
	h      *Handler
	sector schema.Sector

	// count and removed are guarded by the handler mutex.
	count   int
	removed bool

	mu   sync.Mutex
	disk diskInode
}

// Inumber returns the sector identity of the referenced inode.
func (r *Ref) Inumber() schema.Sector {
	return r.sector
}

// IsDir reports whether the referenced inode is a directory.
func (r *Ref) IsDir() bool {
	return r.disk.isDir
}

// Length returns the current content length of the referenced inode.
func (r *Ref) Length() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.disk.length
}

// Remove marks the referenced inode for deletion. Its data blocks and inode
// sector are released once the last open reference is closed.
func (r *Ref) Remove() {
	r.h.mu.Lock()
	defer r.h.mu.Unlock()

	r.removed = true
}

// Close drops one reference. When the last reference to a removed inode is
// closed, its data blocks and its inode sector are released back to the
// free-space layer.
func (r *Ref) Close() error {
	r.h.mu.Lock()

	r.count--
	if r.count > 0 {
		r.h.mu.Unlock()

		return nil
	}

	delete(r.h.open, r.sector)
	removed := r.removed
	r.h.mu.Unlock()

	if removed {
		r.reclaim()
	}

	return nil
}

// ReadAt reads up to len(p) bytes of content starting at byte offset off.
// Reads past the content length are truncated; a read starting at or past
// the end returns [io.EOF].
func (r *Ref) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("(inode-read) %w", ErrNegativeOffset)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if uint64(off) >= r.disk.length {
		return 0, io.EOF
	}

	n := len(p)
	if rest := r.disk.length - uint64(off); uint64(n) > rest {
		n = int(rest)
	}

	read := 0
	for read < n {
		pos := uint64(off) + uint64(read)
		idx := pos / schema.SectorSize
		inOff := int(pos % schema.SectorSize)
		chunk := min(n-read, schema.SectorSize-inOff)

		if block := r.disk.blocks[idx]; block == 0 {
			clear(p[read : read+chunk])
		} else if err := r.h.cache.ReadAt(block, p[read:read+chunk], inOff); err != nil {
			return read, fmt.Errorf("(inode-read) sector %d: %w", r.sector, err)
		}
		read += chunk
	}

	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

// WriteAt writes len(p) bytes of content starting at byte offset off,
// allocating data blocks for holes on demand and extending the content
// length when writing past the current end. Growth beyond [MaxLength]
// surfaces [ErrFileTooLarge] with nothing written. When the metadata
// write-back fails after the content was written, that failure surfaces
// from the call as well.
func (r *Ref) WriteAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, fmt.Errorf("(inode-write) %w", ErrNegativeOffset)
	}

	end := uint64(off) + uint64(len(p))
	if end > MaxLength {
		return 0, fmt.Errorf("(inode-write) %w: up to offset %d", ErrFileTooLarge, end)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	written := 0
	dirtyMeta := false
	defer func() {
		if dirtyMeta {
			if flushErr := r.flush(); flushErr != nil && err == nil {
				err = flushErr
			}
		}
	}()

	for written < len(p) {
		pos := uint64(off) + uint64(written)
		idx := pos / schema.SectorSize
		inOff := int(pos % schema.SectorSize)
		chunk := min(len(p)-written, schema.SectorSize-inOff)

		block := r.disk.blocks[idx]
		if block == 0 {
			s, err := r.h.alloc.Allocate(1)
			if err != nil {
				return written, fmt.Errorf("(inode-write) sector %d: %w", r.sector, err)
			}
			if err := r.h.cache.Zero(s); err != nil {
				r.h.alloc.Release(s, 1)

				return written, fmt.Errorf("(inode-write) sector %d: %w", r.sector, err)
			}
			r.disk.blocks[idx] = s
			block = s
			dirtyMeta = true
		}

		if err := r.h.cache.WriteAt(block, p[written:written+chunk], inOff); err != nil {
			return written, fmt.Errorf("(inode-write) sector %d: %w", r.sector, err)
		}
		written += chunk

		if pos+uint64(chunk) > r.disk.length {
			r.disk.length = pos + uint64(chunk)
			dirtyMeta = true
		}
	}

	return written, nil
}

// flush writes the inode's metadata sector back through the cache. The
// caller must hold the ref mutex.
func (r *Ref) flush() error {
	buf := make([]byte, schema.SectorSize)
	r.disk.marshal(buf)

	if err := r.h.cache.Write(r.sector, buf); err != nil {
		return fmt.Errorf("(inode-flush) sector %d: %w", r.sector, err)
	}

	return nil
}

// reclaim releases all allocated data blocks and the inode sector itself.
func (r *Ref) reclaim() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, block := range r.disk.blocks {
		if block != 0 {
			r.h.alloc.Release(block, 1)
		}
	}
	r.h.alloc.Release(r.sector, 1)
}
