// CLAUDE:SUMMARY SQLite run journal: one row per drop attempt, recorded best-effort, listed newest first.
// Package journal keeps a history of drop runs.
//
// The journal is write-only from the pipeline's point of view: a run never
// reads it to decide anything, so a failed date is retried only by the next
// scheduled invocation. Recording errors are logged and swallowed.
package journal

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/hazyhaar/dailydrop/dbopen"
	"github.com/hazyhaar/dailydrop/idgen"
)

// Schema creates the runs table.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id       TEXT PRIMARY KEY,
    target_date  TEXT NOT NULL,
    puzzle_id    TEXT NOT NULL DEFAULT '',
    dry_run      INTEGER NOT NULL DEFAULT 0,
    status       TEXT NOT NULL,
    error_kind   TEXT NOT NULL DEFAULT '',
    error        TEXT NOT NULL DEFAULT '',
    dest_path    TEXT NOT NULL DEFAULT '',
    size         INTEGER NOT NULL DEFAULT 0,
    content_hash TEXT NOT NULL DEFAULT '',
    started_at   INTEGER NOT NULL,
    finished_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_date ON runs(target_date);
`

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Entry is one recorded run.
type Entry struct {
	RunID       string    `json:"run_id"`
	TargetDate  string    `json:"target_date"`
	PuzzleID    string    `json:"puzzle_id,omitempty"`
	DryRun      bool      `json:"dry_run"`
	Status      string    `json:"status"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	Error       string    `json:"error,omitempty"`
	DestPath    string    `json:"dest_path,omitempty"`
	Size        int64     `json:"size"`
	ContentHash string    `json:"content_hash,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Journal records runs in SQLite.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRunID is the run identifier generator: "run_" + UUIDv7.
var NewRunID = idgen.Prefixed("run_", idgen.Default)

// New creates a Journal on db. Call ApplySchema first.
func New(db *sql.DB, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{db: db, logger: logger}
}

// ApplySchema creates the runs table if needed.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// Record stores e. Failures are logged, never returned.
func (j *Journal) Record(ctx context.Context, e Entry) {
	if e.RunID == "" {
		e.RunID = NewRunID()
	}
	_, err := dbopen.Exec(ctx, j.db, `
		INSERT INTO runs (
			run_id, target_date, puzzle_id, dry_run, status, error_kind, error,
			dest_path, size, content_hash, started_at, finished_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.RunID, e.TargetDate, e.PuzzleID, e.DryRun, e.Status, e.ErrorKind, e.Error,
		e.DestPath, e.Size, e.ContentHash, e.StartedAt.UnixMilli(), e.FinishedAt.UnixMilli())
	if err != nil {
		j.logger.Error("journal: record run", "run_id", e.RunID, "error", err)
	}
}

// Recent returns up to limit runs, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, target_date, puzzle_id, dry_run, status, error_kind, error,
		       dest_path, size, content_hash, started_at, finished_at
		FROM runs ORDER BY started_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var dry int
		var started, finished int64
		if err := rows.Scan(&e.RunID, &e.TargetDate, &e.PuzzleID, &dry, &e.Status,
			&e.ErrorKind, &e.Error, &e.DestPath, &e.Size, &e.ContentHash,
			&started, &finished); err != nil {
			return nil, err
		}
		e.DryRun = dry != 0
		e.StartedAt = time.UnixMilli(started).UTC()
		e.FinishedAt = time.UnixMilli(finished).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
