// Package pathing implements path resolution over the directory tree: the
// [Cursor] tokenizes a slash-separated path string into successive name
// components, and the [Walker] descends the tree one component at a time,
// producing a tagged [Resolution] outcome.
package pathing

import (
	"fmt"
	"strings"

	"github.com/desertwitch/sectorfs/internal/schema"
)

// Cursor is a consuming tokenizer over one path string. It yields one name
// component per [Cursor.Next] call and is advanced monotonically.
type Cursor struct {
	rest string
}

// NewCursor returns a pointer to a new [Cursor] over the given path.
func NewCursor(path string) *Cursor {
	return &Cursor{rest: path}
}

// Next yields the next name component of the path. It skips any run of
// leading separators first; ok is false once no component remains. A
// component longer than [schema.NameMax] surfaces [ErrNameTooLong] without
// consuming further input, and the whole path must then be treated as
// invalid by the caller. On success the cursor is advanced past the
// component, but not past a separator following it.
func (c *Cursor) Next() (string, bool, error) {
	c.rest = strings.TrimLeft(c.rest, "/")
	if c.rest == "" {
		return "", false, nil
	}

	end := strings.IndexByte(c.rest, '/')
	if end < 0 {
		end = len(c.rest)
	}

	if end > schema.NameMax {
		return "", false, fmt.Errorf("(pathing-cursor) %w: %q", ErrNameTooLong, c.rest[:end])
	}

	name := c.rest[:end]
	c.rest = c.rest[end:]

	return name, true, nil
}

// AtEnd reports whether the path is fully consumed. A remaining trailing
// separator means the path is not at its end.
func (c *Cursor) AtEnd() bool {
	return c.rest == ""
}
