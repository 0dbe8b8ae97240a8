package filesystem

import "errors"

var (
	// ErrNoDevice is an error that occurs when the facade is initialized
	// without a backing block device. This is an unrecoverable
	// configuration error: no file system can be served.
	ErrNoDevice = errors.New("no backing block device")

	// ErrExists is an error that occurs when a create target already
	// exists.
	ErrExists = errors.New("path already exists")

	// ErrNotFound is an error that occurs when the final path component
	// does not exist.
	ErrNotFound = errors.New("path not found")

	// ErrNotDirectory is an error that occurs when a directory operation
	// targets something that is not a directory.
	ErrNotDirectory = errors.New("path is not a directory")

	// ErrRemoveActiveDir is an error that occurs when a context attempts
	// to remove its own current working directory, which would orphan its
	// future relative lookups.
	ErrRemoveActiveDir = errors.New("refusing to remove active working directory")

	// ErrUnresolvableCwd is an error that occurs when the absolute path of
	// a context's working directory cannot be reconstructed from the tree.
	ErrUnresolvableCwd = errors.New("working directory not reachable from root")
)
