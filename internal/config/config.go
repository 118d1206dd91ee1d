package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Mode selects the operation run over the tree.
type Mode string

const (
	ModeDelete Mode = "del"
	ModeTrim   Mode = "trim"
)

const (
	TrashDirName        = "trash"
	DefaultDeleteSuffix = "(1).mp4"
	DefaultRotationDays = 30
)

type LoggingOptions struct {
	Debug        bool   // Debug level on the console logger
	File         string // Optional JSON log file
	RotationDays int    // Days to keep the log file before rotation
}

type Options struct {
	Root        string  // Tree to operate on (-p/--path)
	Mode        Mode    // del or trim
	Override    string  // Highest-priority trim pattern (trim VCHAR)
	Suffix      string  // Marker that selects files for del
	Workers     int     // Pool size (default: runtime.NumCPU())
	DryRun      bool    // Report only, never touch the filesystem
	Strict      bool    // Abort the run on the first failed file action
	HistoryPath string  // Optional sqlite database recording every action
	MetricsFile string  // Optional prometheus textfile written after the run
	RateLimit   float64 // Max file mutations per second (0 = unlimited)
	Logging     LoggingOptions
}

var (
	ErrNoRoot          = errors.New("root path is required")
	ErrRootNotDir      = errors.New("root path is not a directory")
	ErrUnknownMode     = errors.New("unknown mode")
	ErrEmptyOverride   = errors.New("trim pattern must not be blank")
	ErrOverrideSep     = errors.New("trim pattern must not contain a path separator")
	ErrEmptySuffix     = errors.New("delete suffix must not be empty")
	ErrNegativeRate    = errors.New("rate cannot be negative")
	ErrNegativeWorkers = errors.New("workers cannot be negative")
)

// Validate cleans paths and fills defaults. It must run before the options
// are handed to the runner.
func (o *Options) Validate() error {
	if strings.TrimSpace(o.Root) == "" {
		return ErrNoRoot
	}
	abs, err := filepath.Abs(o.Root)
	if err != nil {
		return fmt.Errorf("resolve root %s: %w", o.Root, err)
	}
	o.Root = filepath.Clean(abs)

	info, err := os.Stat(o.Root)
	if err != nil {
		return fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootNotDir, o.Root)
	}

	switch o.Mode {
	case ModeDelete:
		if o.Suffix == "" {
			o.Suffix = DefaultDeleteSuffix
		}
		if strings.TrimSpace(o.Suffix) == "" {
			return ErrEmptySuffix
		}
	case ModeTrim:
		if o.Override != "" {
			if err := validatePattern(o.Override); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, o.Mode)
	}

	if o.Workers < 0 {
		return ErrNegativeWorkers
	}
	if o.Workers == 0 {
		o.Workers = runtime.NumCPU()
	}

	if o.RateLimit < 0 {
		return ErrNegativeRate
	}

	if o.Logging.RotationDays <= 0 {
		o.Logging.RotationDays = DefaultRotationDays
	}

	return nil
}

func validatePattern(p string) error {
	if strings.TrimSpace(p) == "" {
		return ErrEmptyOverride
	}
	if strings.ContainsRune(p, os.PathSeparator) || strings.ContainsRune(p, '/') {
		return fmt.Errorf("%w: %q", ErrOverrideSep, p)
	}
	return nil
}

// TrashPath is the quarantine directory, always <root>/trash.
func (o *Options) TrashPath() string {
	return filepath.Join(o.Root, TrashDirName)
}
