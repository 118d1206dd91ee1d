package safety

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidPath   = errors.New("invalid path")
	ErrProtectedPath = errors.New("protected path")
	ErrOutsideRoot   = errors.New("outside root")
	ErrTraversal     = errors.New("path traversal detected")
	ErrSymlinkEscape = errors.New("symlink escape detected")
)

// Validator enforces that every mutation stays inside the tree being processed
type Validator struct {
	Root           string
	ProtectedPaths []string
}

// NewValidator creates a validator for root with optional additional protected paths
func NewValidator(root string, extraProtected []string) *Validator {
	normalized, err := NormalizePath(root)
	if err != nil {
		normalized = root
	}
	return &Validator{
		Root:           normalized,
		ProtectedPaths: defaultProtected(extraProtected),
	}
}

// ValidateRoot refuses to operate on system directories
func (v *Validator) ValidateRoot() error {
	p, err := NormalizePath(v.Root)
	if err != nil {
		return err
	}
	if IsProtectedPath(p, v.ProtectedPaths) {
		return ErrProtectedPath
	}
	return nil
}

// ValidateTrash rejects a trash directory that resolves outside the root,
// e.g. a symlink planted at <root>/trash. A missing trash dir is fine.
func (v *Validator) ValidateTrash(trash string) error {
	p, err := NormalizePath(trash)
	if err != nil {
		return err
	}
	if !IsWithinRoot(p, v.Root) {
		return ErrOutsideRoot
	}
	escaped, err := DetectSymlinkEscape(p, v.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if escaped {
		return ErrSymlinkEscape
	}
	return nil
}

// ValidateTarget is the single check applied to every move or rename destination
func (v *Validator) ValidateTarget(path string) error {
	if DetectTraversal(path) {
		return ErrTraversal
	}
	p, err := NormalizePath(path)
	if err != nil {
		return err
	}
	if p == v.Root || !IsWithinRoot(p, v.Root) {
		return ErrOutsideRoot
	}
	if IsProtectedPath(p, v.ProtectedPaths) {
		return ErrProtectedPath
	}
	return nil
}

// NormalizePath converts path to absolute, cleaned form
func NormalizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrInvalidPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ErrInvalidPath
	}
	return filepath.Clean(abs), nil
}

// DetectTraversal blocks any ".." segment in raw input
func DetectTraversal(raw string) bool {
	for _, p := range strings.Split(filepath.ToSlash(raw), "/") {
		if p == ".." {
			return true
		}
	}
	return false
}

// IsWithinRoot checks if path is root or below it
func IsWithinRoot(path, root string) bool {
	return hasPathPrefix(filepath.Clean(path), root)
}

// DetectSymlinkEscape resolves symlinks and checks if the resolved path leaves root
func DetectSymlinkEscape(cleanAbs string, root string) (bool, error) {
	resolved, err := filepath.EvalSymlinks(cleanAbs)
	if err != nil {
		return false, err
	}
	resolvedAbs, err := filepath.Abs(resolved)
	if err != nil {
		return false, err
	}
	// The root itself may live behind a symlink (e.g. /tmp on macOS)
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		resolvedRoot = root
	}
	return !IsWithinRoot(resolvedAbs, resolvedRoot), nil
}

// IsProtectedPath checks if path matches protected system paths
func IsProtectedPath(path string, protected []string) bool {
	p := filepath.Clean(path)
	sep := string(os.PathSeparator)

	for _, prot := range protected {
		prot = filepath.Clean(prot)
		// "/" protects itself, not everything below it
		if prot == sep {
			if p == sep {
				return true
			}
			continue
		}
		if hasPathPrefix(p, prot) {
			return true
		}
	}
	return false
}

// hasPathPrefix checks if path equals prefix or lies below it
func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)

	if path == prefix {
		return true
	}
	if prefix == string(os.PathSeparator) {
		return strings.HasPrefix(path, prefix)
	}
	return strings.HasPrefix(path, prefix+string(os.PathSeparator))
}

// defaultProtected returns the base set of protected paths plus any extras
func defaultProtected(extra []string) []string {
	base := []string{
		"/",
		"/etc",
		"/bin",
		"/usr",
		"/boot",
		"/lib",
		"/lib64",
		"/sbin",
		"/proc",
		"/sys",
		"/dev",
	}
	return append(base, extra...)
}
