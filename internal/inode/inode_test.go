package inode

import (
	"io"
	"testing"

	"github.com/desertwitch/sectorfs/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCache is an in-memory sector store implementing the full cache
// surface the inode layer consumes. Full-sector writes to sectors listed
// in failWrites report an error instead.
type fakeCache struct {
	sectors    map[schema.Sector][]byte
	failWrites map[schema.Sector]bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		sectors:    make(map[schema.Sector][]byte),
		failWrites: make(map[schema.Sector]bool),
	}
}

func (c *fakeCache) buf(sector schema.Sector) []byte {
	if data, ok := c.sectors[sector]; ok {
		return data
	}

	data := make([]byte, schema.SectorSize)
	c.sectors[sector] = data

	return data
}

func (c *fakeCache) Read(sector schema.Sector, p []byte) error {
	copy(p, c.buf(sector))

	return nil
}

func (c *fakeCache) Write(sector schema.Sector, p []byte) error {
	if c.failWrites[sector] {
		return assert.AnError
	}
	copy(c.buf(sector), p)

	return nil
}

func (c *fakeCache) ReadAt(sector schema.Sector, p []byte, off int) error {
	copy(p, c.buf(sector)[off:])

	return nil
}

func (c *fakeCache) WriteAt(sector schema.Sector, p []byte, off int) error {
	copy(c.buf(sector)[off:], p)

	return nil
}

func (c *fakeCache) Zero(sector schema.Sector) error {
	clear(c.buf(sector))

	return nil
}

// fakeAlloc hands out ascending sectors and records every release.
type fakeAlloc struct {
	next     schema.Sector
	released []schema.Sector
	fail     bool
}

func (a *fakeAlloc) Allocate(count uint32) (schema.Sector, error) {
	if a.fail {
		return 0, assert.AnError
	}

	sector := a.next
	a.next += schema.Sector(count)

	return sector, nil
}

func (a *fakeAlloc) Release(sector schema.Sector, count uint32) {
	for i := uint32(0); i < count; i++ {
		a.released = append(a.released, sector+schema.Sector(i))
	}
}

func newTestHandler() (*Handler, *fakeAlloc) {
	alloc := &fakeAlloc{next: 100}

	return NewHandler(newFakeCache(), alloc), alloc
}

// TestInodeCreateOpen_Success creates an inode and verifies its persisted
// type, length and identity after opening.
func TestInodeCreateOpen_Success(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler()

	require.NoError(t, handler.Create(10, 100, false), "create should succeed")

	ref, err := handler.Open(10)
	require.NoError(t, err, "open should succeed")
	defer ref.Close()

	assert.Equal(t, schema.Sector(10), ref.Inumber(), "unexpected inumber")
	assert.False(t, ref.IsDir(), "inode should not be a directory")
	assert.Equal(t, uint64(100), ref.Length(), "unexpected length")
}

// TestInodeCreate_Fail_TooLarge verifies that an initial length beyond the
// direct block capacity is rejected.
func TestInodeCreate_Fail_TooLarge(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler()

	err := handler.Create(10, MaxLength+1, false)
	require.Error(t, err, "an error was expected")
	require.ErrorIs(t, err, ErrFileTooLarge, "error should be ErrFileTooLarge")
}

// TestInodeOpen_Fail_BadInode verifies that a sector without an inode
// signature cannot be opened.
func TestInodeOpen_Fail_BadInode(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler()

	_, err := handler.Open(10)
	require.Error(t, err, "an error was expected")
	require.ErrorIs(t, err, ErrBadInode, "error should be ErrBadInode")
}

// TestInodeOpen_Success_SharedRef verifies that concurrent opens of one
// sector share the same reference identity.
func TestInodeOpen_Success_SharedRef(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler()
	require.NoError(t, handler.Create(10, 0, false), "create should succeed")

	first, err := handler.Open(10)
	require.NoError(t, err, "first open should succeed")

	second, err := handler.Open(10)
	require.NoError(t, err, "second open should succeed")

	assert.Same(t, first, second, "opens of one sector should share a ref")

	require.NoError(t, first.Close(), "first close should succeed")
	require.NoError(t, second.Close(), "second close should succeed")
}

// TestInodeReadAt_Success_Holes verifies that unallocated content reads as
// zeros up to the inode's length.
func TestInodeReadAt_Success_Holes(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler()
	require.NoError(t, handler.Create(10, 1000, false), "create should succeed")

	ref, err := handler.Open(10)
	require.NoError(t, err, "open should succeed")
	defer ref.Close()

	buf := make([]byte, 1000)
	n, err := ref.ReadAt(buf, 0)
	require.NoError(t, err, "read should succeed")
	assert.Equal(t, 1000, n, "unexpected read length")
	assert.Equal(t, make([]byte, 1000), buf, "holes should read as zeros")
}

// TestInodeReadAt_Success_EOF verifies the end-of-content conditions of
// positional reads.
func TestInodeReadAt_Success_EOF(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler()
	require.NoError(t, handler.Create(10, 10, false), "create should succeed")

	ref, err := handler.Open(10)
	require.NoError(t, err, "open should succeed")
	defer ref.Close()

	buf := make([]byte, 20)
	n, err := ref.ReadAt(buf, 0)
	require.ErrorIs(t, err, io.EOF, "a truncated read should report EOF")
	assert.Equal(t, 10, n, "unexpected read length")

	_, err = ref.ReadAt(buf, 10)
	require.ErrorIs(t, err, io.EOF, "a read at the end should report EOF")
}

// TestInodeWriteAt_Success_GrowAcrossBlocks writes content spanning
// multiple data blocks and verifies growth and round trip.
func TestInodeWriteAt_Success_GrowAcrossBlocks(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler()
	require.NoError(t, handler.Create(10, 0, false), "create should succeed")

	ref, err := handler.Open(10)
	require.NoError(t, err, "open should succeed")
	defer ref.Close()

	payload := make([]byte, 3*schema.SectorSize/2)
	for i := range payload {
		payload[i] = byte(i)
	}

	n, err := ref.WriteAt(payload, 200)
	require.NoError(t, err, "write should succeed")
	assert.Equal(t, len(payload), n, "unexpected write length")
	assert.Equal(t, uint64(200+len(payload)), ref.Length(), "unexpected grown length")

	got := make([]byte, len(payload))
	_, err = ref.ReadAt(got, 200)
	require.NoError(t, err, "read should succeed")
	assert.Equal(t, payload, got, "content should survive the round trip")
}

// TestInodeWriteAt_Success_PersistedGrowth verifies that growth survives a
// full close and reopen cycle.
func TestInodeWriteAt_Success_PersistedGrowth(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler()
	require.NoError(t, handler.Create(10, 0, false), "create should succeed")

	ref, err := handler.Open(10)
	require.NoError(t, err, "open should succeed")

	_, err = ref.WriteAt([]byte("payload"), 0)
	require.NoError(t, err, "write should succeed")
	require.NoError(t, ref.Close(), "close should succeed")

	reopened, err := handler.Open(10)
	require.NoError(t, err, "reopen should succeed")
	defer reopened.Close()

	assert.Equal(t, uint64(7), reopened.Length(), "grown length should persist")

	got := make([]byte, 7)
	_, err = reopened.ReadAt(got, 0)
	require.NoError(t, err, "read should succeed")
	assert.Equal(t, []byte("payload"), got, "content should persist")
}

// TestInodeWriteAt_Fail_TooLarge verifies that growth beyond the direct
// block capacity is rejected with nothing written.
func TestInodeWriteAt_Fail_TooLarge(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler()
	require.NoError(t, handler.Create(10, 0, false), "create should succeed")

	ref, err := handler.Open(10)
	require.NoError(t, err, "open should succeed")
	defer ref.Close()

	n, err := ref.WriteAt([]byte("x"), MaxLength)
	require.Error(t, err, "an error was expected")
	require.ErrorIs(t, err, ErrFileTooLarge, "error should be ErrFileTooLarge")
	assert.Zero(t, n, "nothing should have been written")
	assert.Zero(t, ref.Length(), "length should be unchanged")
}

// TestInodeWriteAt_Fail_FlushError verifies that a failed metadata
// write-back after growing content surfaces from the write call.
func TestInodeWriteAt_Fail_FlushError(t *testing.T) {
	t.Parallel()

	cache := newFakeCache()
	handler := NewHandler(cache, &fakeAlloc{next: 100})
	require.NoError(t, handler.Create(10, 0, false), "create should succeed")

	ref, err := handler.Open(10)
	require.NoError(t, err, "open should succeed")
	defer ref.Close()

	cache.failWrites[10] = true

	n, err := ref.WriteAt([]byte("payload"), 0)
	require.Error(t, err, "an error was expected")
	require.ErrorIs(t, err, assert.AnError, "the flush failure should surface")
	assert.Equal(t, 7, n, "the content itself should have been written")
}

// TestInodeRemove_Success_Reclaim verifies that a removed inode's data
// blocks and its own sector are released when the last reference closes.
func TestInodeRemove_Success_Reclaim(t *testing.T) {
	t.Parallel()

	handler, alloc := newTestHandler()
	require.NoError(t, handler.Create(10, 0, false), "create should succeed")

	ref, err := handler.Open(10)
	require.NoError(t, err, "open should succeed")

	_, err = ref.WriteAt(make([]byte, 2*schema.SectorSize), 0)
	require.NoError(t, err, "write should succeed")

	ref.Remove()
	assert.Empty(t, alloc.released, "nothing should be released while open")

	require.NoError(t, ref.Close(), "close should succeed")
	assert.ElementsMatch(t, []schema.Sector{100, 101, 10}, alloc.released,
		"data blocks and the inode sector should be released")
}

// TestInodeClose_Success_NoReclaim verifies that closing an unremoved
// inode releases nothing.
func TestInodeClose_Success_NoReclaim(t *testing.T) {
	t.Parallel()

	handler, alloc := newTestHandler()
	require.NoError(t, handler.Create(10, 0, false), "create should succeed")

	ref, err := handler.Open(10)
	require.NoError(t, err, "open should succeed")

	_, err = ref.WriteAt([]byte("keep"), 0)
	require.NoError(t, err, "write should succeed")

	require.NoError(t, ref.Close(), "close should succeed")
	assert.Empty(t, alloc.released, "nothing should have been released")
}
