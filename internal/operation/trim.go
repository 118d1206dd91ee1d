package operation

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"trashtrim/internal/walk"
)

const OpTrim = "trim"

var ErrEmptyName = errors.New("trimmed name is empty")

// defaultPatterns are promotional markers injected into downloaded file names
var defaultPatterns = []string{
	`海量资源尽在：666java.com【海量资源： www.666java.com】`,
	`【更多资源访问：  666java.com】`,
	`【666资源站：666 java.com】`,
	`【海量资源：666java.com】`,
	`【海量一手：666java .com】`,
	`【海量一手：666java.com】`,
	`【666资源站：666java.com】`,
	`海量资源尽在：666java.com`,
	`海量资源：666java.com`,
	`更多资源： www.666java.com`,
	`【IT视频学习网-www.itspxx.com】`,
}

// DefaultPatterns returns a copy of the built-in trim patterns
func DefaultPatterns() []string {
	out := make([]string, len(defaultPatterns))
	copy(out, defaultPatterns)
	return out
}

// Patterns is the ordered, read-only list of substrings tried on each name.
// It is built once before any worker starts and needs no locking.
type Patterns struct {
	list []string
}

// NewPatterns puts override (when non-empty) ahead of the defaults
func NewPatterns(override string) Patterns {
	list := make([]string, 0, len(defaultPatterns)+1)
	if override != "" {
		list = append(list, override)
	}
	list = append(list, defaultPatterns...)
	return Patterns{list: list}
}

// newPatternList builds Patterns from an explicit list, dropping empty entries
func newPatternList(list []string) Patterns {
	out := make([]string, 0, len(list))
	for _, p := range list {
		if p != "" {
			out = append(out, p)
		}
	}
	return Patterns{list: out}
}

func (p Patterns) Len() int {
	return len(p.list)
}

// All returns a copy of the patterns in priority order
func (p Patterns) All() []string {
	out := make([]string, len(p.list))
	copy(out, p.list)
	return out
}

// Match returns the first pattern contained in name and the trimmed name
func (p Patterns) Match(name string) (pattern, trimmed string, ok bool) {
	for _, pat := range p.list {
		if t, ok := TrimName(name, pat); ok {
			return pat, t, true
		}
	}
	return "", "", false
}

// TrimName removes every occurrence of pattern from name, then trims
// leading and trailing whitespace. Inner whitespace is kept.
func TrimName(name, pattern string) (string, bool) {
	if pattern == "" || !strings.Contains(name, pattern) {
		return "", false
	}
	return strings.TrimSpace(strings.ReplaceAll(name, pattern, "")), true
}

// Trim renames files in place, stripping the first matching pattern
type Trim struct {
	Env
	Patterns Patterns
}

func (t *Trim) Name() string {
	return OpTrim
}

func (t *Trim) Apply(ctx context.Context, e *walk.FileEntry) Result {
	res := Result{Op: OpTrim, Path: e.Path, Name: e.Name, Size: e.Size, DryRun: t.DryRun}

	pattern, trimmed, ok := t.Patterns.Match(e.Name)
	if !ok {
		return res
	}
	res.Matched = true
	res.Pattern = pattern

	if trimmed == "" {
		res.Err = ErrEmptyName
		return res
	}
	res.Dest = filepath.Join(filepath.Dir(e.Path), trimmed)

	res.Err = t.act(ctx, res.Dest, func() error {
		return t.Mover.Rename(e.Path, res.Dest)
	})
	return res
}
