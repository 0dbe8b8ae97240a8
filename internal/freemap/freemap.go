// Package freemap implements free-space accounting for the volume. It owns
// the volume header at [schema.FreeMapSector] and an in-memory bitmap with
// one bit per device sector, persisted in a fixed region directly after the
// root directory sector. Allocation is a first-fit scan for a contiguous run
// of free sectors.
package freemap

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/desertwitch/sectorfs/internal/schema"
)

const (
	// headerMagic identifies a formatted volume ("SFS1").
	headerMagic = 0x53465331

	// headerVersion is the current version of the volume header layout.
	headerVersion = 1

	// bitmapStart is the first sector of the on-disk bitmap region.
	bitmapStart schema.Sector = 2
)

type cacheProvider interface {
	Read(sector schema.Sector, p []byte) error
	Write(sector schema.Sector, p []byte) error
}

// Handler is the principal implementation of the free-space layer.
type Handler struct {
	mu      sync.Mutex
	cache   cacheProvider
	sectors uint32
	bits    []byte
}

// NewHandler returns a pointer to a new free-space [Handler] for a device of
// the given total sector count, performing its IO through the given cache.
func NewHandler(cache cacheProvider, deviceSectors uint32) *Handler {
	h := &Handler{
		cache:   cache,
		sectors: deviceSectors,
	}
	h.Init()

	return h
}

// Init resets the handler to a fresh all-free bitmap sized to the device.
// It does not touch the device; [Handler.Open] or [Handler.Create] must
// follow before any allocation state is meaningful.
func (h *Handler) Init() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.bits = make([]byte, (h.sectors+7)/8)
}

// BitmapSectors returns the number of sectors the on-disk bitmap occupies.
func (h *Handler) BitmapSectors() uint32 {
	return (uint32(len(h.bits)) + schema.SectorSize - 1) / schema.SectorSize
}

// Create destructively reinitializes the free map for a blank volume: all
// sectors are marked free except the volume header, the root directory and
// the bitmap region itself, then the header and bitmap are written out.
// Intended to run once, at format time.
func (h *Handler) Create() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	clear(h.bits)
	h.markUsed(schema.FreeMapSector)
	h.markUsed(schema.RootDirSector)
	for i := uint32(0); i < h.BitmapSectors(); i++ {
		h.markUsed(bitmapStart + schema.Sector(i))
	}

	if err := h.store(); err != nil {
		return fmt.Errorf("(freemap-create) %w", err)
	}

	return nil
}

// Open reads and validates the volume header and loads the on-disk bitmap,
// making the free map ready for allocation.
func (h *Handler) Open() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	buf := make([]byte, schema.SectorSize)
	if err := h.cache.Read(schema.FreeMapSector, buf); err != nil {
		return fmt.Errorf("(freemap-open) failed to read header: %w", err)
	}

	magic := binary.LittleEndian.Uint32(buf[0:4])
	version := binary.LittleEndian.Uint32(buf[4:8])
	sectors := binary.LittleEndian.Uint32(buf[8:12])
	bitmapSectors := binary.LittleEndian.Uint32(buf[12:16])

	if magic != headerMagic || version != headerVersion {
		return fmt.Errorf("(freemap-open) %w", ErrNotFormatted)
	}
	if sectors != h.sectors || bitmapSectors != h.BitmapSectors() {
		return fmt.Errorf("(freemap-open) %w: header %d/%d, device %d/%d",
			ErrGeometryMismatch, sectors, bitmapSectors, h.sectors, h.BitmapSectors())
	}

	for i := uint32(0); i < bitmapSectors; i++ {
		if err := h.cache.Read(bitmapStart+schema.Sector(i), buf); err != nil {
			return fmt.Errorf("(freemap-open) failed to read bitmap: %w", err)
		}
		copy(h.bits[i*schema.SectorSize:], buf)
	}

	return nil
}

// Close writes the volume header and bitmap back to the device, making all
// outstanding allocation state durable.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.store(); err != nil {
		return fmt.Errorf("(freemap-close) %w", err)
	}

	return nil
}

// Allocate finds, marks used and returns the first contiguous run of count
// free sectors.
func (h *Handler) Allocate(count uint32) (schema.Sector, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if count == 0 || count > h.sectors {
		return 0, fmt.Errorf("(freemap-allocate) %w: run of %d", ErrVolumeFull, count)
	}

	run := uint32(0)
	for i := uint32(0); i < h.sectors; i++ {
		if h.isUsed(schema.Sector(i)) {
			run = 0

			continue
		}

		run++
		if run == count {
			start := i - count + 1
			for j := start; j <= i; j++ {
				h.markUsed(schema.Sector(j))
			}

			return schema.Sector(start), nil
		}
	}

	return 0, fmt.Errorf("(freemap-allocate) %w: run of %d", ErrVolumeFull, count)
}

// Release marks a run of count sectors starting at sector as free again.
// Sectors outside the device range are ignored.
func (h *Handler) Release(sector schema.Sector, count uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := uint32(0); i < count; i++ {
		s := sector + schema.Sector(i)
		if uint32(s) >= h.sectors {
			return
		}
		h.bits[s/8] &^= 1 << (s % 8)
	}
}

// CountFree returns the number of currently free sectors on the volume.
func (h *Handler) CountFree() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()

	free := uint32(0)
	for i := uint32(0); i < h.sectors; i++ {
		if !h.isUsed(schema.Sector(i)) {
			free++
		}
	}

	return free
}

// store writes the header and bitmap through the cache. The caller must hold
// the handler mutex.
func (h *Handler) store() error {
	buf := make([]byte, schema.SectorSize)
	binary.LittleEndian.PutUint32(buf[0:4], headerMagic)
	binary.LittleEndian.PutUint32(buf[4:8], headerVersion)
	binary.LittleEndian.PutUint32(buf[8:12], h.sectors)
	binary.LittleEndian.PutUint32(buf[12:16], h.BitmapSectors())

	if err := h.cache.Write(schema.FreeMapSector, buf); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i := uint32(0); i < h.BitmapSectors(); i++ {
		clear(buf)
		copy(buf, h.bits[i*schema.SectorSize:])
		if err := h.cache.Write(bitmapStart+schema.Sector(i), buf); err != nil {
			return fmt.Errorf("failed to write bitmap: %w", err)
		}
	}

	return nil
}

func (h *Handler) isUsed(s schema.Sector) bool {
	return h.bits[s/8]&(1<<(s%8)) != 0
}

func (h *Handler) markUsed(s schema.Sector) {
	h.bits[s/8] |= 1 << (s % 8)
}
