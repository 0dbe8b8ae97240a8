package freemap

import "errors"

var (
	// ErrNotFormatted is an error that occurs when the volume header cannot
	// be validated, meaning the device does not hold a formatted volume.
	ErrNotFormatted = errors.New("device holds no formatted volume")

	// ErrGeometryMismatch is an error that occurs when a volume header is
	// valid but describes a different device geometry than the one present.
	ErrGeometryMismatch = errors.New("volume geometry does not match device")

	// ErrVolumeFull is an error that occurs when no free run of sectors of
	// the requested length is available on the volume.
	ErrVolumeFull = errors.New("no free sectors available")
)
