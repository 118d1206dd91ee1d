package fsops

import "errors"

var ErrTargetExists = errors.New("target already exists")

// Mover abstracts the filesystem mutations performed by operations.
// Enables recording calls in tests to prove dry-run never mutates.
// Neither method overwrites an existing file.
type Mover interface {
	// Move relocates src to dst, picking a free name next to dst when dst
	// is taken. It returns the path actually written.
	Move(src, dst string) (string, error)

	// Rename renames src to dst in place, failing with ErrTargetExists
	// when dst is present.
	Rename(src, dst string) error
}
