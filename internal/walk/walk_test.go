package walk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/spf13/afero"
)

func writeTree(t *testing.T, fs afero.Fs, files ...string) {
	t.Helper()
	for _, f := range files {
		if err := fs.MkdirAll(filepath.Dir(f), 0o755); err != nil {
			t.Fatalf("MkdirAll %s: %v", f, err)
		}
		if err := afero.WriteFile(fs, f, []byte("data"), 0o644); err != nil {
			t.Fatalf("WriteFile %s: %v", f, err)
		}
	}
}

func TestWalkVisitsEveryEntry(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTree(t, fs,
		"/root/a.mp4",
		"/root/sub/b.mp4",
		"/root/sub/deeper/c.mp4",
		"/root/.hidden",
	)

	var files, dirs []string
	err := NewWalker(fs).Walk(context.Background(), "/root", func(o Outcome) error {
		if o.IsErr() {
			t.Fatalf("unexpected error outcome: %v", o.Err)
		}
		if o.Entry.IsDir {
			dirs = append(dirs, o.Entry.Path)
		} else {
			files = append(files, o.Entry.Path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	sort.Strings(files)
	wantFiles := []string{"/root/.hidden", "/root/a.mp4", "/root/sub/b.mp4", "/root/sub/deeper/c.mp4"}
	if len(files) != len(wantFiles) {
		t.Fatalf("Expected %d files, got %d: %v", len(wantFiles), len(files), files)
	}
	for i := range wantFiles {
		if files[i] != wantFiles[i] {
			t.Errorf("file[%d] = %s, want %s", i, files[i], wantFiles[i])
		}
	}
	if len(dirs) != 3 {
		t.Errorf("Expected 3 directories (root, sub, deeper), got %v", dirs)
	}
}

func TestWalkEntryFields(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTree(t, fs, "/root/video(1).mp4")

	outcomes, err := NewWalker(fs).Collect(context.Background(), "/root")
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	var found *FileEntry
	for _, o := range outcomes {
		if o.Entry != nil && !o.Entry.IsDir {
			found = o.Entry
		}
	}
	if found == nil {
		t.Fatal("file entry not produced")
	}
	if found.Name != "video(1).mp4" {
		t.Errorf("Name = %q", found.Name)
	}
	if found.RelPath != "video(1).mp4" {
		t.Errorf("RelPath = %q, want relative to root", found.RelPath)
	}
	if found.Size != 4 {
		t.Errorf("Size = %d, want 4", found.Size)
	}
	if found.IsSymlink {
		t.Error("regular file reported as symlink")
	}
}

func TestWalkReportsSymlinksWithoutFollowing(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "real.mp4")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret(1).mp4"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Symlink(target, filepath.Join(root, "link.mp4")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "linkdir")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	outcomes, err := NewWalker(afero.NewOsFs()).Collect(context.Background(), root)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	links := 0
	for _, o := range outcomes {
		if o.Entry == nil {
			continue
		}
		if o.Entry.Name == "secret(1).mp4" {
			t.Errorf("walk followed a directory symlink to %s", o.Entry.Path)
		}
		if o.Entry.IsSymlink {
			links++
		}
	}
	if links != 2 {
		t.Errorf("Expected 2 symlink entries, got %d", links)
	}
}

// failingFs refuses to open one directory so the walk sees a read error
type failingFs struct {
	afero.Fs
	deny string
}

func (f failingFs) Open(name string) (afero.File, error) {
	if name == f.deny {
		return nil, os.ErrPermission
	}
	return f.Fs.Open(name)
}

func TestWalkRoutesErrorsToPolicy(t *testing.T) {
	mem := afero.NewMemMapFs()
	writeTree(t, mem, "/root/ok.mp4", "/root/locked/hidden.mp4")

	var policyPaths []string
	w := &Walker{
		Fs: failingFs{Fs: mem, deny: "/root/locked"},
		Policy: PolicyFunc(func(path string, err error) {
			if !errors.Is(err, os.ErrPermission) {
				t.Errorf("unexpected error type: %v", err)
			}
			policyPaths = append(policyPaths, path)
		}),
	}

	var files []string
	err := w.Walk(context.Background(), "/root", func(o Outcome) error {
		if !o.Entry.IsDir {
			files = append(files, o.Entry.Path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk should not fail on entry errors: %v", err)
	}

	if len(policyPaths) != 1 || policyPaths[0] != "/root/locked" {
		t.Errorf("policy saw %v, want [/root/locked]", policyPaths)
	}
	if len(files) != 1 || files[0] != "/root/ok.mp4" {
		t.Errorf("files = %v, want [/root/ok.mp4]", files)
	}
}

func TestWalkStopsOnCancel(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTree(t, fs, "/root/a", "/root/b", "/root/c")

	ctx, cancel := context.WithCancel(context.Background())
	visited := 0
	err := NewWalker(fs).Walk(ctx, "/root", func(o Outcome) error {
		visited++
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Walk error = %v, want context.Canceled", err)
	}
	if visited != 1 {
		t.Errorf("Expected walk to stop after first entry, visited %d", visited)
	}
}

func TestCollectIncludesErrors(t *testing.T) {
	outcomes, err := NewWalker(afero.NewMemMapFs()).Collect(context.Background(), "/missing")
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(outcomes) != 1 || !outcomes[0].IsErr() {
		t.Fatalf("Expected a single error outcome, got %+v", outcomes)
	}
	if outcomes[0].Path != "/missing" {
		t.Errorf("error path = %s", outcomes[0].Path)
	}
}
