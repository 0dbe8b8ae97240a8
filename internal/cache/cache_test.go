package cache

import (
	"testing"

	"github.com/desertwitch/sectorfs/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice is an in-memory sector store tracking device-level accesses.
type fakeDevice struct {
	sectors map[schema.Sector][]byte
	reads   int
	writes  int
	syncs   int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{sectors: make(map[schema.Sector][]byte)}
}

func (d *fakeDevice) ReadSector(sector schema.Sector, p []byte) error {
	d.reads++

	if data, ok := d.sectors[sector]; ok {
		copy(p, data)

		return nil
	}
	clear(p)

	return nil
}

func (d *fakeDevice) WriteSector(sector schema.Sector, p []byte) error {
	d.writes++

	data := make([]byte, schema.SectorSize)
	copy(data, p)
	d.sectors[sector] = data

	return nil
}

func (d *fakeDevice) Sync() error {
	d.syncs++

	return nil
}

// TestCacheReadWrite_Success verifies that a written sector is read back
// from the cache without touching the device again.
func TestCacheReadWrite_Success(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice()
	handler := NewHandler(dev, 4, false)

	payload := make([]byte, schema.SectorSize)
	payload[0] = 0xAB
	payload[schema.SectorSize-1] = 0xCD

	require.NoError(t, handler.Write(7, payload), "write should succeed")

	got := make([]byte, schema.SectorSize)
	require.NoError(t, handler.Read(7, got), "read should succeed")
	assert.Equal(t, payload, got, "read data should match written data")

	assert.Equal(t, 1, dev.reads, "only the initial fetch should hit the device")
	assert.Zero(t, dev.writes, "no write-back should have happened yet")

	stats := handler.Stats()
	assert.Equal(t, uint64(1), stats.Hits, "unexpected hit count")
	assert.Equal(t, uint64(1), stats.Misses, "unexpected miss count")
}

// TestCachePartialAccess_Success verifies partial-sector reads and writes
// at byte offsets within one sector.
func TestCachePartialAccess_Success(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice()
	handler := NewHandler(dev, 4, false)

	require.NoError(t, handler.WriteAt(3, []byte("hello"), 100), "partial write should succeed")

	got := make([]byte, 5)
	require.NoError(t, handler.ReadAt(3, got, 100), "partial read should succeed")
	assert.Equal(t, []byte("hello"), got, "read data should match written data")
}

// TestCachePartialAccess_Fail_BadSpan verifies that accesses spanning
// outside a sector's bounds are rejected.
func TestCachePartialAccess_Fail_BadSpan(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice()
	handler := NewHandler(dev, 4, false)

	err := handler.WriteAt(3, make([]byte, 16), schema.SectorSize-8)
	require.Error(t, err, "an error was expected")
	require.ErrorIs(t, err, ErrBadSpan, "error should be ErrBadSpan")

	err = handler.ReadAt(3, make([]byte, 8), -1)
	require.Error(t, err, "an error was expected")
	require.ErrorIs(t, err, ErrBadSpan, "error should be ErrBadSpan")
}

// TestCacheEviction_Success verifies that filling the cache past its
// capacity evicts the least-recently-used buffer and writes it back when
// dirty.
func TestCacheEviction_Success(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice()
	handler := NewHandler(dev, 2, false)

	payload := make([]byte, schema.SectorSize)
	payload[0] = 1

	require.NoError(t, handler.Write(1, payload), "write should succeed")
	require.NoError(t, handler.Write(2, payload), "write should succeed")
	require.NoError(t, handler.Write(3, payload), "write should succeed")

	assert.Equal(t, 1, dev.writes, "the evicted dirty buffer should be written back")
	assert.Equal(t, uint64(1), handler.Stats().Evictions, "unexpected eviction count")

	got := make([]byte, schema.SectorSize)
	require.NoError(t, handler.Read(1, got), "re-reading the evicted sector should succeed")
	assert.Equal(t, payload, got, "evicted sector should survive the round trip")
}

// TestCacheFlushDestroy_Success verifies that a flush writes all dirty
// buffers back and that teardown additionally syncs the device.
func TestCacheFlushDestroy_Success(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice()
	handler := NewHandler(dev, 8, false)

	payload := make([]byte, schema.SectorSize)
	require.NoError(t, handler.Write(1, payload), "write should succeed")
	require.NoError(t, handler.Write(2, payload), "write should succeed")

	require.NoError(t, handler.Flush(), "flush should succeed")
	assert.Equal(t, 2, dev.writes, "all dirty buffers should be written back")

	require.NoError(t, handler.Flush(), "repeated flush should succeed")
	assert.Equal(t, 2, dev.writes, "clean buffers should not be written again")

	require.NoError(t, handler.Destroy(), "destroy should succeed")
	assert.Equal(t, 1, dev.syncs, "destroy should sync the device")
}

// TestCacheZero_Success verifies that zeroing a sector needs no device
// read and yields all-zero content.
func TestCacheZero_Success(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice()
	handler := NewHandler(dev, 4, false)

	require.NoError(t, handler.Zero(9), "zero should succeed")
	assert.Zero(t, dev.reads, "zeroing should not read the device")

	got := make([]byte, schema.SectorSize)
	require.NoError(t, handler.Read(9, got), "read should succeed")
	assert.Equal(t, make([]byte, schema.SectorSize), got, "content should be all zeros")
}

// TestCacheVerify_Success verifies that a checksummed sector passes
// verification when re-fetched unchanged from the device.
func TestCacheVerify_Success(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice()
	handler := NewHandler(dev, 4, true)

	payload := make([]byte, schema.SectorSize)
	payload[10] = 0x42

	require.NoError(t, handler.Write(5, payload), "write should succeed")
	require.NoError(t, handler.Flush(), "flush should succeed")

	handler.mu.Lock()
	delete(handler.slots, 5) // force a re-fetch from the device
	handler.mu.Unlock()

	got := make([]byte, schema.SectorSize)
	require.NoError(t, handler.Read(5, got), "verified read should succeed")
	assert.Equal(t, payload, got, "read data should match written data")
	assert.Equal(t, uint64(1), handler.Stats().Verified, "unexpected verification count")
}

// TestCacheVerify_Fail_ChecksumMismatch verifies that device-level
// corruption of a checksummed sector is detected on the next fetch.
func TestCacheVerify_Fail_ChecksumMismatch(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice()
	handler := NewHandler(dev, 4, true)

	payload := make([]byte, schema.SectorSize)
	payload[10] = 0x42

	require.NoError(t, handler.Write(5, payload), "write should succeed")
	require.NoError(t, handler.Flush(), "flush should succeed")

	handler.mu.Lock()
	delete(handler.slots, 5)
	handler.mu.Unlock()

	dev.sectors[5][10] = 0x43 // corrupt the sector behind the cache's back

	got := make([]byte, schema.SectorSize)
	err := handler.Read(5, got)
	require.Error(t, err, "an error was expected")
	require.ErrorIs(t, err, ErrChecksumMismatch, "error should be ErrChecksumMismatch")
}
