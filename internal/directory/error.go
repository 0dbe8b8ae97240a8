package directory

import "errors"

var (
	// ErrNotDir is an error that occurs when a directory handle is
	// attempted to be opened over an inode that is not a directory.
	ErrNotDir = errors.New("inode is not a directory")

	// ErrBadName is an error that occurs when an entry name is empty or
	// longer than the maximum component length.
	ErrBadName = errors.New("invalid entry name")

	// ErrExists is an error that occurs when an entry of the same name is
	// already present in the directory.
	ErrExists = errors.New("entry already exists")

	// ErrNotFound is an error that occurs when a named entry is not present
	// in the directory.
	ErrNotFound = errors.New("entry not found")

	// ErrDotEntry is an error that occurs when the self-referential "." or
	// ".." entries are attempted to be removed.
	ErrDotEntry = errors.New("refusing to remove dot entry")

	// ErrDirNotEmpty is an error that occurs when a directory still holding
	// entries is attempted to be removed.
	ErrDirNotEmpty = errors.New("directory is not empty")
)
