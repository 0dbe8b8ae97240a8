package device

import "errors"

var (
	// ErrNoDevice is an error that occurs when no backing block device is
	// registered for a requested role. Without a device for the filesystem
	// role there is no file system to serve, which is unrecoverable.
	ErrNoDevice = errors.New("no backing block device")

	// ErrNotSectorAligned is an error that occurs when a device image's
	// size is not an exact multiple of the sector size.
	ErrNotSectorAligned = errors.New("image size is not sector aligned")

	// ErrSectorOutOfRange is an error that occurs when a sector beyond the
	// end of the device is attempted to be accessed.
	ErrSectorOutOfRange = errors.New("sector is out of device range")

	// ErrShortTransfer is an error that occurs when fewer bytes than a full
	// sector were transferred to or from the device.
	ErrShortTransfer = errors.New("short sector transfer")

	// ErrBadSectorCount is an error that occurs when a device is attempted
	// to be created with too few sectors to ever hold a formatted volume.
	ErrBadSectorCount = errors.New("too few sectors for a volume")
)
