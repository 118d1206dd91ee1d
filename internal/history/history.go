package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trashtrim/internal/operation"
)

// Actions stored in the operations table
const (
	ActionMove   = "MOVE"
	ActionRename = "RENAME"
	ActionError  = "ERROR"
	ActionDryRun = "DRY_RUN"
)

// DB is the SQLite audit log of performed operations
type DB struct {
	db *sql.DB
}

// Record is a single audited operation
type Record struct {
	ID           int64     `json:"id" yaml:"id"`
	RunID        string    `json:"run_id" yaml:"run_id"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`
	Action       string    `json:"action" yaml:"action"`
	Op           string    `json:"op" yaml:"op"`
	Path         string    `json:"path" yaml:"path"`
	FileName     string    `json:"file_name" yaml:"file_name"`
	Dest         string    `json:"dest,omitempty" yaml:"dest,omitempty"`
	Pattern      string    `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Size         int64     `json:"size" yaml:"size"`
	ErrorMessage string    `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// Open creates the database file and schema if needed
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory %s: %w", dir, err)
		}
	}

	// _loc=auto enables DATETIME parsing; busy_timeout lets the query tool
	// read while a run is writing
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// workers record concurrently; one connection serializes the writes
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize history (check permissions on %s): %w", dbPath, err)
	}
	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	h := &DB{db: db}
	if err = h.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}
	return h, nil
}

func (h *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS operations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		action TEXT NOT NULL,
		op TEXT NOT NULL,
		path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		dest TEXT,
		pattern TEXT,
		size INTEGER NOT NULL,
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_run_id ON operations(run_id);
	CREATE INDEX IF NOT EXISTS idx_timestamp ON operations(timestamp);
	CREATE INDEX IF NOT EXISTS idx_action ON operations(action);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := h.db.Exec(schema)
	return err
}

// ActionFor maps a matched result to the audit action
func ActionFor(res operation.Result) string {
	switch {
	case res.Err != nil:
		return ActionError
	case res.DryRun:
		return ActionDryRun
	case res.Op == operation.OpTrim:
		return ActionRename
	default:
		return ActionMove
	}
}

// Record inserts one matched result
func (h *DB) Record(runID string, at time.Time, res operation.Result) error {
	var errMsg sql.NullString
	if res.Err != nil {
		errMsg = sql.NullString{String: res.Err.Error(), Valid: true}
	}

	_, err := h.db.Exec(`
	INSERT INTO operations (
		run_id, timestamp, action, op, path, file_name, dest, pattern, size, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		at,
		ActionFor(res),
		res.Op,
		res.Path,
		res.Name,
		res.Dest,
		res.Pattern,
		res.Size,
		errMsg,
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", res.Path, err)
	}
	return nil
}

func (h *DB) Close() error {
	return h.db.Close()
}
