// Package file implements the byte-stream handle handed out for opened
// regular files. A [File] wraps an open inode reference with a read/write
// position; positional access is available alongside.
package file

import (
	"sync"

	"github.com/desertwitch/sectorfs/internal/schema"
)

// File is an open handle over one regular file.
type File struct {
	ref schema.InodeRef

	mu  sync.Mutex
	pos int64
}

// New returns a pointer to a new [File] over the given inode reference,
// taking ownership of it.
func New(ref schema.InodeRef) *File {
	return &File{
		ref: ref,
	}
}

// Inumber returns the sector identity of the file's inode.
func (f *File) Inumber() schema.Sector {
	return f.ref.Inumber()
}

// IsDir always reports false for a file handle.
func (f *File) IsDir() bool {
	return false
}

// Size returns the current byte length of the file's content.
func (f *File) Size() uint64 {
	return f.ref.Length()
}

// Read reads up to len(p) bytes at the handle's position, advancing it by
// the number of bytes read. It returns [io.EOF] at the end of the content.
func (f *File) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.ref.ReadAt(p, f.pos)
	f.pos += int64(n)

	return n, err
}

// Write writes len(p) bytes at the handle's position, advancing it by the
// number of bytes written and growing the file as needed.
func (f *File) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.ref.WriteAt(p, f.pos)
	f.pos += int64(n)

	return n, err
}

// ReadAt reads up to len(p) bytes at the given offset, without touching the
// handle's position.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return f.ref.ReadAt(p, off)
}

// WriteAt writes len(p) bytes at the given offset, without touching the
// handle's position.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	return f.ref.WriteAt(p, off)
}

// Close closes the handle and its backing inode reference.
func (f *File) Close() error {
	return f.ref.Close()
}
