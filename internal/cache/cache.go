// Package cache implements the sector buffer cache sitting between the upper
// storage layers and the block device. It keeps a fixed number of sector
// buffers, evicts least-recently-used buffers under pressure and writes dirty
// buffers back to the device on eviction, flush and teardown. An optional
// verification mode records a [blake3] checksum for every sector written back
// and verifies it when the sector is next fetched from the device.
package cache

import (
	"fmt"
	"sync"

	"github.com/desertwitch/sectorfs/internal/schema"
	"github.com/zeebo/blake3"
)

// DefaultSlots is the default number of sector buffers held by a [Handler].
const DefaultSlots = 64

type devProvider interface {
	ReadSector(sector schema.Sector, p []byte) error
	WriteSector(sector schema.Sector, p []byte) error
	Sync() error
}

type slot struct {
	sector schema.Sector
	data   []byte
	dirty  bool
	used   uint64
}

// Stats holds the operational counters of a [Handler].
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Verified  uint64
}

// Handler is the principal implementation of the sector buffer cache.
type Handler struct {
	mu       sync.Mutex
	dev      devProvider
	capacity int
	verify   bool
	clock    uint64
	slots    map[schema.Sector]*slot
	sums     map[schema.Sector][32]byte
	stats    Stats
}

// NewHandler returns a pointer to a new cache [Handler] over the given
// device, holding at most capacity sector buffers. With verify enabled,
// sectors written back to the device are checksummed and verified on their
// next fetch.
func NewHandler(dev devProvider, capacity int, verify bool) *Handler {
	if capacity <= 0 {
		capacity = DefaultSlots
	}

	h := &Handler{
		dev:      dev,
		capacity: capacity,
		verify:   verify,
	}
	h.Init()

	return h
}

// Init resets the cache to its empty state, discarding all buffered sectors,
// recorded checksums and counters.
func (h *Handler) Init() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.slots = make(map[schema.Sector]*slot, h.capacity)
	h.sums = make(map[schema.Sector][32]byte)
	h.stats = Stats{}
	h.clock = 0
}

// Read reads one full sector into p, which must hold [schema.SectorSize]
// bytes.
func (h *Handler) Read(sector schema.Sector, p []byte) error {
	return h.ReadAt(sector, p, 0)
}

// Write writes one full sector from p, which must hold [schema.SectorSize]
// bytes.
func (h *Handler) Write(sector schema.Sector, p []byte) error {
	return h.WriteAt(sector, p, 0)
}

// ReadAt reads len(p) bytes from the given byte offset within one sector.
// The access must not span outside the sector's bounds.
func (h *Handler) ReadAt(sector schema.Sector, p []byte, off int) error {
	if off < 0 || off+len(p) > schema.SectorSize {
		return fmt.Errorf("(cache-read) %w: off %d len %d", ErrBadSpan, off, len(p))
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	s, err := h.fetch(sector)
	if err != nil {
		return err
	}
	copy(p, s.data[off:off+len(p)])

	return nil
}

// WriteAt writes len(p) bytes at the given byte offset within one sector.
// The access must not span outside the sector's bounds.
func (h *Handler) WriteAt(sector schema.Sector, p []byte, off int) error {
	if off < 0 || off+len(p) > schema.SectorSize {
		return fmt.Errorf("(cache-write) %w: off %d len %d", ErrBadSpan, off, len(p))
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	s, err := h.fetch(sector)
	if err != nil {
		return err
	}
	copy(s.data[off:off+len(p)], p)
	s.dirty = true

	return nil
}

// Zero fills one sector with zero bytes without reading it from the device
// first.
func (h *Handler) Zero(sector schema.Sector) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.slots[sector]
	if !ok {
		if err := h.makeRoom(); err != nil {
			return err
		}
		s = &slot{sector: sector, data: make([]byte, schema.SectorSize)}
		h.slots[sector] = s
	}

	clear(s.data)
	s.dirty = true
	h.clock++
	s.used = h.clock

	return nil
}

// Flush writes all dirty buffers back to the device, keeping them cached.
func (h *Handler) Flush() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.slots {
		if !s.dirty {
			continue
		}
		if err := h.writeBack(s); err != nil {
			return err
		}
	}

	return nil
}

// Destroy flushes all dirty buffers, syncs the device and discards the
// cache's contents. Flush-on-teardown is internal to this method; it is the
// final operation of the cache's lifetime.
func (h *Handler) Destroy() error {
	if err := h.Flush(); err != nil {
		return err
	}

	if err := h.dev.Sync(); err != nil {
		return fmt.Errorf("(cache-destroy) %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.slots = make(map[schema.Sector]*slot, h.capacity)

	return nil
}

// Stats returns a snapshot of the cache's operational counters.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.stats
}

// fetch returns the buffer for the given sector, reading it from the device
// on a miss. The caller must hold the handler mutex.
func (h *Handler) fetch(sector schema.Sector) (*slot, error) {
	h.clock++

	if s, ok := h.slots[sector]; ok {
		s.used = h.clock
		h.stats.Hits++

		return s, nil
	}
	h.stats.Misses++

	if err := h.makeRoom(); err != nil {
		return nil, err
	}

	s := &slot{
		sector: sector,
		data:   make([]byte, schema.SectorSize),
		used:   h.clock,
	}
	if err := h.dev.ReadSector(sector, s.data); err != nil {
		return nil, fmt.Errorf("(cache-fetch) %w", err)
	}

	if h.verify {
		if sum, ok := h.sums[sector]; ok {
			if blake3.Sum256(s.data) != sum {
				return nil, fmt.Errorf("(cache-fetch) sector %d: %w", sector, ErrChecksumMismatch)
			}
			h.stats.Verified++
		}
	}

	h.slots[sector] = s

	return s, nil
}

// makeRoom evicts the least-recently-used buffer if the cache is full,
// writing it back to the device first when dirty. The caller must hold the
// handler mutex.
func (h *Handler) makeRoom() error {
	if len(h.slots) < h.capacity {
		return nil
	}

	var victim *slot
	for _, s := range h.slots {
		if victim == nil || s.used < victim.used {
			victim = s
		}
	}

	if victim.dirty {
		if err := h.writeBack(victim); err != nil {
			return err
		}
	}
	delete(h.slots, victim.sector)
	h.stats.Evictions++

	return nil
}

// writeBack writes one dirty buffer to the device, recording its checksum
// when verification is enabled. The caller must hold the handler mutex.
func (h *Handler) writeBack(s *slot) error {
	if err := h.dev.WriteSector(s.sector, s.data); err != nil {
		return fmt.Errorf("(cache-writeback) %w", err)
	}

	if h.verify {
		h.sums[s.sector] = blake3.Sum256(s.data)
	}
	s.dirty = false

	return nil
}
