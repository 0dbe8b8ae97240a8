// Package schema provides the principal schematics for all other packages. It
// defines the on-disk constants of the volume format, shared filesystem
// interfaces and provides implementations for handling (Unix-based) operating
// system syscalls. The package serves as a foundational layer for all storage
// interactions throughout the codebase.
package schema

// Sector is the stable integer identity of a storage object's location on the
// backing block device. It doubles as the object's identity (its "inumber").
type Sector uint32

const (
	// SectorSize is the size of a single device sector in bytes.
	SectorSize = 512

	// FreeMapSector is the fixed sector holding the volume header, owned by
	// the free-space layer.
	FreeMapSector Sector = 0

	// RootDirSector is the fixed, well-known sector holding the root
	// directory of the volume. It is created once by formatting and is
	// never deleted.
	RootDirSector Sector = 1

	// NameMax is the maximum byte length of a single path component.
	NameMax = 14

	// RootDirEntries is the initial entry-capacity hint used when the root
	// directory is created during formatting.
	RootDirEntries = 16
)
