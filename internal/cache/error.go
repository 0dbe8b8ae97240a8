package cache

import "errors"

var (
	// ErrChecksumMismatch is an error that occurs when a sector read back
	// from the device does not match the checksum recorded when it was last
	// written back. This usually means underlying device corruption.
	ErrChecksumMismatch = errors.New("sector checksum mismatch")

	// ErrBadSpan is an error that occurs when a partial-sector access does
	// not fit within the bounds of a single sector.
	ErrBadSpan = errors.New("access spans outside sector bounds")
)
