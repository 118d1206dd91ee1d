package filter

import (
	"path/filepath"
	"strings"

	"trashtrim/internal/walk"
)

// Reason says why an entry is kept away from the operations
type Reason int

const (
	ReasonNone Reason = iota
	ReasonSymlink
	ReasonHidden
	ReasonTrash
	ReasonDirectory
)

// TrashMarker is matched as a plain substring of the path below the walk
// root, so the root's own ancestors never match. It also catches siblings
// such as "/trashcan"; that coarseness is accepted.
const TrashMarker = "/trash"

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonSymlink:
		return "symlink"
	case ReasonHidden:
		return "hidden"
	case ReasonTrash:
		return "trash"
	case ReasonDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Classify returns the first skip reason that applies, checked in the order
// symlink, hidden, trash, directory
func Classify(e *walk.FileEntry) Reason {
	switch {
	case IsSymlink(e):
		return ReasonSymlink
	case IsHidden(e):
		return ReasonHidden
	case InTrash(e):
		return ReasonTrash
	case e.IsDir:
		return ReasonDirectory
	}
	return ReasonNone
}

// Skip reports whether the entry must not be dispatched
func Skip(e *walk.FileEntry) bool {
	return Classify(e) != ReasonNone
}

func IsSymlink(e *walk.FileEntry) bool {
	return e.IsSymlink
}

func IsHidden(e *walk.FileEntry) bool {
	return strings.HasPrefix(e.Name, ".")
}

func InTrash(e *walk.FileEntry) bool {
	return strings.Contains("/"+filepath.ToSlash(e.RelPath), TrashMarker)
}
