package filesystem

import "github.com/desertwitch/sectorfs/internal/schema"

// ExecContext is the per-caller execution state: the directory currently
// used as the caller's relative-resolution root. It is mutated only by
// [Handler.ChangeDir] invoked on behalf of the same context, so it needs no
// synchronization of its own; one context must not be shared across
// concurrent callers.
type ExecContext struct {
	cwd schema.Sector
}

// NewExecContext returns a pointer to a new [ExecContext] rooted at the
// volume's root directory.
func NewExecContext() *ExecContext {
	return &ExecContext{
		cwd: schema.RootDirSector,
	}
}

// WorkingDir returns the sector identity of the context's current working
// directory.
func (ec *ExecContext) WorkingDir() schema.Sector {
	return ec.cwd
}
