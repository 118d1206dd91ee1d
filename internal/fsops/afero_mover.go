package fsops

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
)

// FS implements Mover on top of an afero filesystem. Choosing a free name and
// renaming onto it happen under one lock, so concurrent workers sharing an FS
// never replace each other's files.
type FS struct {
	Fs afero.Fs

	mu sync.Mutex
}

// NewOSFS returns an FS backed by the real filesystem
func NewOSFS() *FS {
	return &FS{Fs: afero.NewOsFs()}
}

// EnsureDir creates dir (parents must exist) unless it is already there.
// created reports whether this call made it.
func (f *FS) EnsureDir(dir string) (created bool, err error) {
	exists, err := f.DirExists(dir)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := f.Fs.Mkdir(dir, 0o755); err != nil {
		return false, fmt.Errorf("create %s: %w", dir, err)
	}
	return true, nil
}

func (f *FS) DirExists(dir string) (bool, error) {
	exists, err := afero.DirExists(f.Fs, dir)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", dir, err)
	}
	return exists, nil
}

func (f *FS) Move(src, dst string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	target, err := f.freeName(src, dst)
	if err != nil {
		return "", err
	}
	if err := f.move(src, target); err != nil {
		return "", err
	}
	return target, nil
}

func (f *FS) Rename(src, dst string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	exists, err := afero.Exists(f.Fs, dst)
	if err != nil {
		return fmt.Errorf("check %s: %w", dst, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrTargetExists, dst)
	}
	return f.Fs.Rename(src, dst)
}

// freeName returns dst when unused, otherwise dst with a suffix derived
// from the source path, otherwise dst with a timestamp suffix. Callers hold mu.
func (f *FS) freeName(src, dst string) (string, error) {
	exists, err := afero.Exists(f.Fs, dst)
	if err != nil {
		return "", fmt.Errorf("check %s: %w", dst, err)
	}
	if !exists {
		return dst, nil
	}

	ext := filepath.Ext(dst)
	stem := strings.TrimSuffix(dst, ext)

	hashed := fmt.Sprintf("%s.%016x%s", stem, xxhash.Sum64String(src), ext)
	exists, err = afero.Exists(f.Fs, hashed)
	if err != nil {
		return "", fmt.Errorf("check %s: %w", hashed, err)
	}
	if !exists {
		return hashed, nil
	}

	stamped := stem + "." + strconv.FormatInt(time.Now().UnixNano(), 10)
	for i := 0; ; i++ {
		name := stamped + ext
		if i > 0 {
			name = stamped + "-" + strconv.Itoa(i) + ext
		}
		exists, err := afero.Exists(f.Fs, name)
		if err != nil {
			return "", fmt.Errorf("check %s: %w", name, err)
		}
		if !exists {
			return name, nil
		}
	}
}

// move renames src to dst and falls back to copy+remove across devices
func (f *FS) move(src, dst string) error {
	err := f.Fs.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	if err := f.copyFile(src, dst); err != nil {
		return fmt.Errorf("copy across devices: %w", err)
	}
	if err := f.Fs.Remove(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

func (f *FS) copyFile(src, dst string) error {
	in, err := f.Fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := f.Fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		f.Fs.Remove(dst)
		return err
	}
	return out.Close()
}
