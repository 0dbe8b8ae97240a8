package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/desertwitch/sectorfs/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockUnix is a mock implementation of the Unix syscall surface.
type mockUnix struct {
	mock.Mock
}

func (m *mockUnix) Pread(fd int, p []byte, offset int64) (int, error) {
	args := m.Called(fd, p, offset)

	return args.Int(0), args.Error(1)
}

func (m *mockUnix) Pwrite(fd int, p []byte, offset int64) (int, error) {
	args := m.Called(fd, p, offset)

	return args.Int(0), args.Error(1)
}

func (m *mockUnix) Fsync(fd int) error {
	args := m.Called(fd)

	return args.Error(0)
}

func (m *mockUnix) Ftruncate(fd int, length int64) error {
	args := m.Called(fd, length)

	return args.Error(0)
}

// TestDeviceCreateOpen_Success creates an image, persists a sector and reads
// it back through a reopened device.
func TestDeviceCreateOpen_Success(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "volume.img")

	dev, err := Create(path, 8, &schema.OS{}, &schema.Unix{})
	require.NoError(t, err, "create should succeed")
	assert.Equal(t, path, dev.Path(), "unexpected path")
	assert.Equal(t, uint32(8), dev.SectorCount(), "unexpected sector count")

	payload := make([]byte, schema.SectorSize)
	copy(payload, "sector five")

	require.NoError(t, dev.WriteSector(5, payload), "write should succeed")
	require.NoError(t, dev.Sync(), "sync should succeed")
	require.NoError(t, dev.Close(), "close should succeed")

	dev, err = Open(path, &schema.OS{}, &schema.Unix{})
	require.NoError(t, err, "open should succeed")
	defer dev.Close()

	assert.Equal(t, uint32(8), dev.SectorCount(), "unexpected sector count")

	got := make([]byte, schema.SectorSize)
	require.NoError(t, dev.ReadSector(5, got), "read should succeed")
	assert.Equal(t, payload, got, "content should survive the reopen")
}

// TestDeviceCreate_Fail_BadSectorCount verifies that an image too small to
// ever hold a formatted volume is refused.
func TestDeviceCreate_Fail_BadSectorCount(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "volume.img")

	_, err := Create(path, 3, &schema.OS{}, &schema.Unix{})
	require.Error(t, err, "an error was expected")
	require.ErrorIs(t, err, ErrBadSectorCount, "error should be ErrBadSectorCount")
}

// TestDeviceCreate_Fail_Exists verifies that creation refuses to clobber an
// existing image file.
func TestDeviceCreate_Fail_Exists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "volume.img")
	require.NoError(t, os.WriteFile(path, []byte("occupied"), 0o600),
		"fixture write should succeed")

	_, err := Create(path, 8, &schema.OS{}, &schema.Unix{})
	require.Error(t, err, "an error was expected")
}

// TestDeviceOpen_Fail_Missing verifies that opening a missing image fails.
func TestDeviceOpen_Fail_Missing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing.img")

	_, err := Open(path, &schema.OS{}, &schema.Unix{})
	require.Error(t, err, "an error was expected")
}

// TestDeviceOpen_Fail_NotAligned verifies that an image whose size is not a
// whole number of sectors is refused.
func TestDeviceOpen_Fail_NotAligned(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "volume.img")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o600),
		"fixture write should succeed")

	_, err := Open(path, &schema.OS{}, &schema.Unix{})
	require.Error(t, err, "an error was expected")
	require.ErrorIs(t, err, ErrNotSectorAligned, "error should be ErrNotSectorAligned")
}

// TestDeviceReadSector_Fail_OutOfRange verifies that sector addresses past
// the end of the device are refused.
func TestDeviceReadSector_Fail_OutOfRange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "volume.img")

	dev, err := Create(path, 8, &schema.OS{}, &schema.Unix{})
	require.NoError(t, err, "create should succeed")
	defer dev.Close()

	buf := make([]byte, schema.SectorSize)

	err = dev.ReadSector(8, buf)
	require.ErrorIs(t, err, ErrSectorOutOfRange, "error should be ErrSectorOutOfRange")

	err = dev.WriteSector(8, buf)
	require.ErrorIs(t, err, ErrSectorOutOfRange, "error should be ErrSectorOutOfRange")
}

// TestDeviceReadSector_Fail_BadBuffer verifies that transfers demand an
// exactly sector-sized buffer.
func TestDeviceReadSector_Fail_BadBuffer(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "volume.img")

	dev, err := Create(path, 8, &schema.OS{}, &schema.Unix{})
	require.NoError(t, err, "create should succeed")
	defer dev.Close()

	err = dev.ReadSector(0, make([]byte, schema.SectorSize-1))
	require.ErrorIs(t, err, ErrShortTransfer, "error should be ErrShortTransfer")

	err = dev.WriteSector(0, make([]byte, schema.SectorSize+1))
	require.ErrorIs(t, err, ErrShortTransfer, "error should be ErrShortTransfer")
}

// TestDeviceReadSector_Fail_ShortTransfer verifies that a truncated raw read
// is surfaced instead of returning partial data.
func TestDeviceReadSector_Fail_ShortTransfer(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "volume.img")

	unixOps := &mockUnix{}
	unixOps.On("Ftruncate", mock.Anything, int64(8*schema.SectorSize)).Return(nil)
	unixOps.On("Pread", mock.Anything, mock.Anything, mock.Anything).Return(100, nil)

	dev, err := Create(path, 8, &schema.OS{}, unixOps)
	require.NoError(t, err, "create should succeed")
	defer dev.Close()

	err = dev.ReadSector(0, make([]byte, schema.SectorSize))
	require.Error(t, err, "an error was expected")
	require.ErrorIs(t, err, ErrShortTransfer, "error should be ErrShortTransfer")

	unixOps.AssertExpectations(t)
}

// TestDeviceWriteSector_Fail_IOError verifies that a raw write failure is
// wrapped and surfaced.
func TestDeviceWriteSector_Fail_IOError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "volume.img")

	unixOps := &mockUnix{}
	unixOps.On("Ftruncate", mock.Anything, int64(8*schema.SectorSize)).Return(nil)
	unixOps.On("Pwrite", mock.Anything, mock.Anything, mock.Anything).Return(0, assert.AnError)

	dev, err := Create(path, 8, &schema.OS{}, unixOps)
	require.NoError(t, err, "create should succeed")
	defer dev.Close()

	err = dev.WriteSector(0, make([]byte, schema.SectorSize))
	require.Error(t, err, "an error was expected")
	require.ErrorIs(t, err, assert.AnError, "the raw cause should be preserved")

	unixOps.AssertExpectations(t)
}
