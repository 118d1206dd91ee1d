package walk

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// FileEntry is one node produced by the walk
type FileEntry struct {
	Path      string
	RelPath   string // relative to the walk root, "." for the root itself
	Name      string
	IsDir     bool
	IsSymlink bool
	Size      int64
}

// Outcome is either an Entry or a per-entry error, never both
type Outcome struct {
	Entry *FileEntry
	Path  string
	Err   error
}

func (o Outcome) IsErr() bool {
	return o.Err != nil
}

// ErrorPolicy decides what happens to walk errors (unreadable entries,
// permission errors, races with concurrent deletes)
type ErrorPolicy interface {
	HandleWalkError(path string, err error)
}

// PolicyFunc adapts a function to ErrorPolicy
type PolicyFunc func(path string, err error)

func (f PolicyFunc) HandleWalkError(path string, err error) {
	f(path, err)
}

// Drop discards walk errors silently
var Drop ErrorPolicy = PolicyFunc(func(string, error) {})

// LogPolicy reports walk errors at debug level
type LogPolicy struct {
	Logger *zap.Logger
}

func (p LogPolicy) HandleWalkError(path string, err error) {
	if p.Logger == nil {
		return
	}
	p.Logger.Debug("skipping unreadable entry", zap.String("path", path), zap.Error(err))
}

// Walker walks a tree on an afero filesystem without following symlinks
type Walker struct {
	Fs     afero.Fs
	Policy ErrorPolicy
}

// NewWalker returns a walker that drops errors
func NewWalker(fs afero.Fs) *Walker {
	return &Walker{Fs: fs, Policy: Drop}
}

// Walk calls fn for every entry below root, root included. Error outcomes
// go to the policy and never reach fn. Walk returns early only when ctx is
// cancelled or fn returns an error.
func (w *Walker) Walk(ctx context.Context, root string, fn func(Outcome) error) error {
	policy := w.Policy
	if policy == nil {
		policy = Drop
	}

	return afero.Walk(w.Fs, root, func(path string, info os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			policy.HandleWalkError(path, err)
			return nil
		}
		return fn(Outcome{Entry: newEntry(root, path, info), Path: path})
	})
}

// Collect walks root and returns every Outcome, including errors.
// Meant for small trees and tests.
func (w *Walker) Collect(ctx context.Context, root string) ([]Outcome, error) {
	var out []Outcome
	inner := w.Policy
	if inner == nil {
		inner = Drop
	}
	collector := &Walker{
		Fs: w.Fs,
		Policy: PolicyFunc(func(path string, err error) {
			inner.HandleWalkError(path, err)
			out = append(out, Outcome{Path: path, Err: err})
		}),
	}
	err := collector.Walk(ctx, root, func(o Outcome) error {
		out = append(out, o)
		return nil
	})
	return out, err
}

func newEntry(root, path string, info os.FileInfo) *FileEntry {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	return &FileEntry{
		Path:      path,
		RelPath:   rel,
		Name:      filepath.Base(path),
		IsDir:     info.IsDir(),
		IsSymlink: info.Mode()&os.ModeSymlink != 0,
		Size:      info.Size(),
	}
}
