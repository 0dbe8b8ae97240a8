package pathing

import "errors"

var (
	// ErrNameTooLong is an error that occurs when a single path component
	// exceeds the maximum component length.
	ErrNameTooLong = errors.New("path component too long")

	// ErrInvalidPath is an error that occurs when a path cannot be resolved
	// at all: it is empty, a component is too long, an intermediate
	// component is missing or cannot be descended into.
	ErrInvalidPath = errors.New("invalid path")
)
