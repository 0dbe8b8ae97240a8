// Package device implements the file-backed block device underneath the
// volume. A [Device] exposes whole-sector reads and writes over a regular
// image file, addressed by [schema.Sector], and a [Registry] hands out
// devices by their assigned role.
package device

import (
	"fmt"
	"os"

	"github.com/desertwitch/sectorfs/internal/schema"
)

// minSectors is the smallest image that can ever hold a formatted volume:
// the volume header, the root directory and one bitmap sector, plus at
// least one data sector.
const minSectors = 4

type osProvider interface {
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)
	Stat(name string) (os.FileInfo, error)
	Remove(name string) error
}

type unixProvider interface {
	Pread(fd int, p []byte, offset int64) (int, error)
	Pwrite(fd int, p []byte, offset int64) (int, error)
	Fsync(fd int) error
	Ftruncate(fd int, length int64) error
}

// Device is a sector-addressed block device backed by an image file.
type Device struct {
	path    string
	file    *os.File
	sectors uint32
	unixOps unixProvider
}

// Open opens an existing image file as a [Device]. The image's size must be
// an exact multiple of [schema.SectorSize].
func Open(path string, osOps osProvider, unixOps unixProvider) (*Device, error) {
	info, err := osOps.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("(device-open) failed to stat image: %w", err)
	}

	if info.Size()%schema.SectorSize != 0 {
		return nil, fmt.Errorf("(device-open) %w: %d bytes", ErrNotSectorAligned, info.Size())
	}

	file, err := osOps.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("(device-open) failed to open image: %w", err)
	}

	return &Device{
		path:    path,
		file:    file,
		sectors: uint32(info.Size() / schema.SectorSize), //nolint:gosec
		unixOps: unixOps,
	}, nil
}

// Create creates a new zeroed image file of the given sector count and opens
// it as a [Device]. The image file must not already exist.
func Create(path string, sectors uint32, osOps osProvider, unixOps unixProvider) (*Device, error) {
	if sectors < minSectors {
		return nil, fmt.Errorf("(device-create) %w: %d", ErrBadSectorCount, sectors)
	}

	file, err := osOps.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("(device-create) failed to create image: %w", err)
	}

	if err := unixOps.Ftruncate(int(file.Fd()), int64(sectors)*schema.SectorSize); err != nil {
		file.Close()
		osOps.Remove(path) //nolint:errcheck

		return nil, fmt.Errorf("(device-create) failed to size image: %w", err)
	}

	return &Device{
		path:    path,
		file:    file,
		sectors: sectors,
		unixOps: unixOps,
	}, nil
}

// Path returns the filesystem path of the backing image file.
func (d *Device) Path() string {
	return d.path
}

// SectorCount returns the total number of sectors on the device.
func (d *Device) SectorCount() uint32 {
	return d.sectors
}

// ReadSector reads one full sector into p, which must hold exactly
// [schema.SectorSize] bytes.
func (d *Device) ReadSector(sector schema.Sector, p []byte) error {
	if err := d.check(sector, p); err != nil {
		return err
	}

	n, err := d.unixOps.Pread(int(d.file.Fd()), p, int64(sector)*schema.SectorSize)
	if err != nil {
		return fmt.Errorf("(device-read) sector %d: %w", sector, err)
	}
	if n != schema.SectorSize {
		return fmt.Errorf("(device-read) sector %d: %w: %d bytes", sector, ErrShortTransfer, n)
	}

	return nil
}

// WriteSector writes one full sector from p, which must hold exactly
// [schema.SectorSize] bytes.
func (d *Device) WriteSector(sector schema.Sector, p []byte) error {
	if err := d.check(sector, p); err != nil {
		return err
	}

	n, err := d.unixOps.Pwrite(int(d.file.Fd()), p, int64(sector)*schema.SectorSize)
	if err != nil {
		return fmt.Errorf("(device-write) sector %d: %w", sector, err)
	}
	if n != schema.SectorSize {
		return fmt.Errorf("(device-write) sector %d: %w: %d bytes", sector, ErrShortTransfer, n)
	}

	return nil
}

// Sync flushes the backing image file to stable storage.
func (d *Device) Sync() error {
	if err := d.unixOps.Fsync(int(d.file.Fd())); err != nil {
		return fmt.Errorf("(device-sync) %w", err)
	}

	return nil
}

// Close closes the backing image file.
func (d *Device) Close() error {
	if err := d.file.Close(); err != nil {
		return fmt.Errorf("(device-close) %w", err)
	}

	return nil
}

func (d *Device) check(sector schema.Sector, p []byte) error {
	if uint32(sector) >= d.sectors {
		return fmt.Errorf("(device) %w: %d >= %d", ErrSectorOutOfRange, sector, d.sectors)
	}
	if len(p) != schema.SectorSize {
		return fmt.Errorf("(device) %w: buffer of %d bytes", ErrShortTransfer, len(p))
	}

	return nil
}
