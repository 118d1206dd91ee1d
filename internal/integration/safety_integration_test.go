package integration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"trashtrim/internal/config"
	"trashtrim/internal/operation"
	"trashtrim/internal/runner"
	"trashtrim/internal/safety"
)

const advert = "【海量资源：666java.com】"

type discardSink struct{}

func (discardSink) TrashReady(string, bool)  {}
func (discardSink) Result(operation.Result) {}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
}

// snapshot lists every path below root with its content, without following symlinks
func snapshot(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		entry := path
		if info.Mode().IsRegular() {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			entry += "=" + string(data)
		}
		out = append(out, entry)
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to snapshot %s: %v", root, err)
	}
	sort.Strings(out)
	return out
}

func run(t *testing.T, root string, mode config.Mode, dryRun bool) (runner.Summary, error) {
	t.Helper()
	opts := config.Options{Root: root, Mode: mode, DryRun: dryRun}
	if err := opts.Validate(); err != nil {
		t.Fatalf("Invalid options: %v", err)
	}
	return runner.New(opts, nil, discardSink{}).Run(context.Background())
}

// TestSafetyContract checks with a real filesystem that nothing outside the
// root, behind a symlink, hidden or already quarantined is ever touched
func TestSafetyContract(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "library")
	outside := filepath.Join(tmp, "outside")

	mustWrite(t, filepath.Join(root, "course", "a(1).mp4"), "dup")
	mustWrite(t, filepath.Join(root, "course", "Lesson1"+advert+".mp4"), "lesson")
	mustWrite(t, filepath.Join(root, ".b(1).mp4"), "hidden")
	mustWrite(t, filepath.Join(root, "trash", "old(1).mp4"), "old")
	mustWrite(t, filepath.Join(outside, "keep(1).mp4"), "MUST KEEP")
	mustWrite(t, filepath.Join(outside, "keep"+advert+".mp4"), "MUST KEEP")

	if err := os.Symlink(filepath.Join(outside, "keep(1).mp4"), filepath.Join(root, "link(1).mp4")); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "linked-dir")); err != nil {
		t.Fatalf("Failed to create dir symlink: %v", err)
	}

	outsideBefore := snapshot(t, outside)

	t.Run("DryRun_NoFilesystemChanges", func(t *testing.T) {
		before := snapshot(t, root)
		for _, mode := range []config.Mode{config.ModeDelete, config.ModeTrim} {
			sum, err := run(t, root, mode, true)
			if err != nil {
				t.Fatalf("Dry run %s failed: %v", mode, err)
			}
			if sum.Matched != 1 {
				t.Errorf("Dry run %s: expected 1 match, got %d", mode, sum.Matched)
			}
		}
		after := snapshot(t, root)
		if len(before) != len(after) {
			t.Fatalf("DRY-RUN VIOLATION: tree changed\nbefore: %v\nafter:  %v", before, after)
		}
		for i := range before {
			if before[i] != after[i] {
				t.Errorf("DRY-RUN VIOLATION: %s became %s", before[i], after[i])
			}
		}
	})

	t.Run("RealMode_OnlyDispatchedFilesChange", func(t *testing.T) {
		sum, err := run(t, root, config.ModeDelete, false)
		if err != nil {
			t.Fatalf("Delete run failed: %v", err)
		}
		if sum.Matched != 1 || sum.Failed != 0 {
			t.Errorf("Expected 1 clean match, got matched=%d failed=%d", sum.Matched, sum.Failed)
		}

		sum, err = run(t, root, config.ModeTrim, false)
		if err != nil {
			t.Fatalf("Trim run failed: %v", err)
		}
		if sum.Matched != 1 || sum.Failed != 0 {
			t.Errorf("Expected 1 clean rename, got matched=%d failed=%d", sum.Matched, sum.Failed)
		}

		for _, p := range []string{
			filepath.Join(root, "trash", "a(1).mp4"),
			filepath.Join(root, "trash", "old(1).mp4"),
			filepath.Join(root, "course", "Lesson1.mp4"),
			filepath.Join(root, ".b(1).mp4"),
			filepath.Join(root, "link(1).mp4"),
		} {
			if _, err := os.Lstat(p); err != nil {
				t.Errorf("Expected %s to exist: %v", p, err)
			}
		}
	})

	t.Run("OutsideRoot_Untouched", func(t *testing.T) {
		after := snapshot(t, outside)
		if len(after) != len(outsideBefore) {
			t.Fatalf("SAFETY VIOLATION: outside tree changed\nbefore: %v\nafter:  %v", outsideBefore, after)
		}
		for i := range after {
			if after[i] != outsideBefore[i] {
				t.Errorf("SAFETY VIOLATION: %s became %s", outsideBefore[i], after[i])
			}
		}
	})

	t.Run("TrashSymlinkEscape_Blocked", func(t *testing.T) {
		escapeRoot := filepath.Join(tmp, "escape")
		mustWrite(t, filepath.Join(escapeRoot, "x(1).mp4"), "x")
		if err := os.Symlink(outside, filepath.Join(escapeRoot, "trash")); err != nil {
			t.Fatalf("Failed to create trash symlink: %v", err)
		}

		_, err := run(t, escapeRoot, config.ModeDelete, false)
		if !errors.Is(err, safety.ErrSymlinkEscape) {
			t.Errorf("Expected symlink escape error, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(outside, "x(1).mp4")); !os.IsNotExist(err) {
			t.Error("CRITICAL SAFETY VIOLATION: file moved through trash symlink")
		}
	})

	t.Run("ProtectedRoots_Refused", func(t *testing.T) {
		for _, root := range []string{"/", "/etc", "/usr/bin", "/proc"} {
			err := safety.NewValidator(root, nil).ValidateRoot()
			if !errors.Is(err, safety.ErrProtectedPath) {
				t.Errorf("SAFETY VIOLATION: root %s not refused (err=%v)", root, err)
			}
		}
	})
}
