package operation

import (
	"context"
	"fmt"
	"path/filepath"

	"trashtrim/internal/fsops"
	"trashtrim/internal/limiter"
	"trashtrim/internal/safety"
	"trashtrim/internal/walk"
)

// Operation is applied by a worker to every dispatched entry
type Operation interface {
	Name() string
	Apply(ctx context.Context, e *walk.FileEntry) Result
}

// Result of applying an operation to one entry. Matched is true whenever
// the entry qualified, even if the filesystem action then failed.
type Result struct {
	Op      string
	Path    string
	Name    string
	Dest    string
	Pattern string
	Size    int64
	Matched bool
	DryRun  bool
	Err     error
}

// Failed reports a matched entry whose action did not happen
func (r Result) Failed() bool {
	return r.Matched && r.Err != nil
}

// DryRunPrefix starts every report line of a dry run
const DryRunPrefix = "[dry-run] "

// Message is the human-readable line printed for a matched entry
func (r Result) Message() string {
	prefix := ""
	if r.DryRun {
		prefix = DryRunPrefix
	}
	if r.Err != nil {
		return fmt.Sprintf("%sfile %s failed: %v", prefix, r.Name, r.Err)
	}
	switch r.Op {
	case OpDelete:
		return fmt.Sprintf("%sfile %s moved to %s", prefix, r.Name, r.Dest)
	case OpTrim:
		return fmt.Sprintf("%sfile %s renamed to %s", prefix, r.Name, filepath.Base(r.Dest))
	}
	return prefix + "file " + r.Name
}

// Env carries what both operations need to mutate the filesystem
type Env struct {
	Mover     fsops.Mover
	Validator *safety.Validator
	Limiter   *limiter.OpLimiter
	DryRun    bool
}

// act runs fn unless in dry-run, after validating dest and waiting on the limiter
func (env Env) act(ctx context.Context, dest string, fn func() error) error {
	if env.Validator != nil {
		if err := env.Validator.ValidateTarget(dest); err != nil {
			return fmt.Errorf("refusing %s: %w", dest, err)
		}
	}
	if env.DryRun {
		return nil
	}
	if err := env.Limiter.Wait(ctx); err != nil {
		return err
	}
	return fn()
}
