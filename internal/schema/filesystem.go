package schema

// InodeRef describes an open, ownable reference to a file or directory's
// backing storage object. A reference is obtained from the inode layer and
// must be closed exactly once on every code path that obtained it.
type InodeRef interface {
	Inumber() Sector
	IsDir() bool
	Length() uint64
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Remove()
	Close() error
}

// Directory describes an open handle over a directory's entry storage. The
// handle owns its backing [InodeRef] and must be closed exactly once.
type Directory interface {
	Inumber() Sector
	IsDir() bool
	Lookup(name string) (InodeRef, bool, error)
	Add(name string, sector Sector) error
	Remove(name string) error
	List() ([]DirEntry, error)
	Size() uint64
	Close() error
}

// Handle describes a resolved leaf object as returned to callers of the
// filesystem facade; either a file or a directory handle.
type Handle interface {
	Inumber() Sector
	IsDir() bool
	Size() uint64
	Close() error
}

// DirEntry is a single listed name-to-sector binding of a [Directory].
type DirEntry struct {
	Name   string
	Sector Sector
}
