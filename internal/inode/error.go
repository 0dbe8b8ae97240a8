package inode

import "errors"

var (
	// ErrBadInode is an error that occurs when a sector expected to hold an
	// inode does not carry a valid inode signature.
	ErrBadInode = errors.New("sector holds no valid inode")

	// ErrFileTooLarge is an error that occurs when an inode's content would
	// have to grow beyond the maximum length addressable by its direct
	// block pointers.
	ErrFileTooLarge = errors.New("content exceeds maximum inode length")

	// ErrNegativeOffset is an error that occurs when a negative byte offset
	// is passed to a positional read or write.
	ErrNegativeOffset = errors.New("negative offset")
)
