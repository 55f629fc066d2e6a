package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Actions stored in the removals table
const (
	ActionRemove = "REMOVE"
	ActionDryRun = "DRY_RUN"
	ActionSkip   = "SKIP"
	ActionError  = "ERROR"
)

// Run statuses
const (
	RunRunning     = "running"
	RunCompleted   = "completed"
	RunNoTargets   = "no_targets"
	RunInterrupted = "interrupted"
	RunFailed      = "failed"
)

const schemaVersion = 1

// RemovalDB manages the SQLite database for removal history
type RemovalDB struct {
	db *sql.DB
}

// RemovalRecord represents a single removal attempt
type RemovalRecord struct {
	ID           int64     `json:"id" yaml:"id"`
	RunID        int64     `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`
	Action       string    `json:"action" yaml:"action"`
	Path         string    `json:"path" yaml:"path"`
	Target       string    `json:"target,omitempty" yaml:"target,omitempty"`
	ObjectType   string    `json:"object_type" yaml:"object_type"`
	Size         int64     `json:"size" yaml:"size"`
	Reason       string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	ErrorMessage string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// RunRecord summarizes one invocation
type RunRecord struct {
	ID         int64     `json:"id" yaml:"id"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Mode       string    `json:"mode" yaml:"mode"`
	Status     string    `json:"status" yaml:"status"`
	Targets    int       `json:"targets" yaml:"targets"`
	FreedBytes int64     `json:"freed_bytes" yaml:"freed_bytes"`
	Cleaned    int       `json:"cleaned" yaml:"cleaned"`
	Skipped    int       `json:"skipped" yaml:"skipped"`
}

// NewRemovalDB opens (creating if needed) the history database at dbPath
func NewRemovalDB(dbPath string) (*RemovalDB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// _loc=auto enables automatic DATETIME parsing
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// A query instead of Ping() forces the file to be created
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	rdb := &RemovalDB{db: db}
	if err = rdb.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return rdb, nil
}

func (d *RemovalDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		mode TEXT NOT NULL,
		status TEXT NOT NULL,
		targets INTEGER NOT NULL DEFAULT 0,
		freed_bytes INTEGER NOT NULL DEFAULT 0,
		cleaned INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS removals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER REFERENCES runs(id),
		timestamp DATETIME NOT NULL,
		action TEXT NOT NULL,
		path TEXT NOT NULL,
		target TEXT,
		object_type TEXT NOT NULL,
		size INTEGER NOT NULL,
		reason TEXT,
		error_message TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_removals_timestamp ON removals(timestamp);
	CREATE INDEX IF NOT EXISTS idx_removals_action ON removals(action);
	CREATE INDEX IF NOT EXISTS idx_removals_path ON removals(path);
	CREATE INDEX IF NOT EXISTS idx_removals_size ON removals(size);
	CREATE INDEX IF NOT EXISTS idx_removals_run ON removals(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := d.db.Exec(schema); err != nil {
		return err
	}
	_, err := d.db.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (?)", schemaVersion)
	return err
}

// BeginRun inserts a run row in the running state and returns its ID
func (d *RemovalDB) BeginRun(mode string, startedAt time.Time) (int64, error) {
	res, err := d.db.Exec(
		"INSERT INTO runs (started_at, mode, status) VALUES (?, ?, ?)",
		startedAt.UTC(), mode, RunRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to begin run: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun stores the final statistics of a run
func (d *RemovalDB) FinishRun(r RunRecord) error {
	res, err := d.db.Exec(`
		UPDATE runs
		SET finished_at = ?, status = ?, targets = ?, freed_bytes = ?, cleaned = ?, skipped = ?
		WHERE id = ?
	`, r.FinishedAt.UTC(), r.Status, r.Targets, r.FreedBytes, r.Cleaned, r.Skipped, r.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", r.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to finish run %d: %w", r.ID, sql.ErrNoRows)
	}
	return nil
}

// RecordRemoval inserts one removal attempt
func (d *RemovalDB) RecordRemoval(rec RemovalRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	// Stored in UTC so that text comparisons order correctly
	rec.Timestamp = rec.Timestamp.UTC()

	var runID interface{}
	if rec.RunID > 0 {
		runID = rec.RunID
	}

	_, err := d.db.Exec(`
	INSERT INTO removals (
		run_id, timestamp, action, path, target, object_type, size, reason, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		rec.Timestamp,
		rec.Action,
		rec.Path,
		rec.Target,
		rec.ObjectType,
		rec.Size,
		rec.Reason,
		rec.ErrorMessage,
	)
	return err
}

// Close closes the database connection
func (d *RemovalDB) Close() error {
	return d.db.Close()
}

// Vacuum optimizes the database
func (d *RemovalDB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}

// GetDatabaseStats returns database statistics
func (d *RemovalDB) GetDatabaseStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalRecords, totalRuns int64
	if err := d.db.QueryRow("SELECT COUNT(*) FROM removals").Scan(&totalRecords); err != nil {
		return nil, err
	}
	stats["total_records"] = totalRecords

	if err := d.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&totalRuns); err != nil {
		return nil, err
	}
	stats["total_runs"] = totalRuns

	var pageCount, pageSize int64
	if err := d.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, err
	}
	if err := d.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, err
	}
	stats["database_size_bytes"] = pageCount * pageSize

	// Aggregates lose the DATETIME column type, so they come back as text
	var oldest, newest sql.NullString
	err := d.db.QueryRow("SELECT MIN(timestamp), MAX(timestamp) FROM removals").Scan(&oldest, &newest)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if t, ok := parseTimestamp(oldest); ok {
		stats["oldest_record"] = t
	}
	if t, ok := parseTimestamp(newest); ok {
		stats["newest_record"] = t
	}

	return stats, nil
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

func parseTimestamp(s sql.NullString) (time.Time, bool) {
	if !s.Valid || s.String == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s.String); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
