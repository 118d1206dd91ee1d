package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trashtrim/internal/config"
)

func TestNewWritesToLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "trashtrim.log")

	logger, err := New(config.LoggingOptions{File: logPath, RotationDays: 7})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("hello from test")
	_ = logger.Sync()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Errorf("Log file missing message, got: %s", data)
	}
}

func TestRotateLogsIfNeeded(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "trashtrim.log")
	if err := os.WriteFile(logPath, []byte("old"), 0o644); err != nil {
		t.Fatalf("Failed to create log: %v", err)
	}

	old := time.Now().AddDate(0, 0, -40)
	if err := os.Chtimes(logPath, old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	rotateLogsIfNeeded(logPath, 30, time.Now())

	if _, err := os.Stat(logPath); !os.IsNotExist(err) {
		t.Errorf("Expected %s to be rotated away", logPath)
	}

	// Rotated copy is itself older than the cutoff so it is cleaned up as well
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected rotated log to be removed, found %d entries", len(entries))
	}
}

func TestRotateLogsKeepsFreshFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "trashtrim.log")
	if err := os.WriteFile(logPath, []byte("fresh"), 0o644); err != nil {
		t.Fatalf("Failed to create log: %v", err)
	}

	rotateLogsIfNeeded(logPath, 30, time.Now())

	if _, err := os.Stat(logPath); err != nil {
		t.Errorf("Fresh log should not be rotated: %v", err)
	}
}
