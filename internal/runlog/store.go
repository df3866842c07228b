// Package runlog persists run history to SQLite so past batch outcomes can be
// inspected after the per-run JSON manifests scatter across output trees.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/polsommer/HDtextureDDS/internal/manifest"
)

// DirName is the state directory created under the output root.
const DirName = ".hdtexture"

const dbName = "runs.db"

// Store manages run history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Run is one recorded batch run.
type Run struct {
	ID         string
	Model      string
	Command    string
	InputRoot  string
	OutputRoot string
	Started    time.Time
	Finished   time.Time
	DryRun     bool
	Overwrite  bool
	OK         int
	Skipped    int
	Errors     int
	Pending    int
}

// Open initializes or connects to the run database under outputRoot and
// applies migrations.
func Open(outputRoot string) (*Store, error) {
	dir := filepath.Join(outputRoot, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure state directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) applyMigrations(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (
            id TEXT PRIMARY KEY,
            model TEXT NOT NULL,
            command TEXT,
            input_root TEXT NOT NULL,
            output_root TEXT NOT NULL,
            started_at TEXT NOT NULL,
            finished_at TEXT NOT NULL,
            dry_run INTEGER NOT NULL DEFAULT 0,
            overwrite INTEGER NOT NULL DEFAULT 0,
            ok_count INTEGER NOT NULL DEFAULT 0,
            skipped_count INTEGER NOT NULL DEFAULT 0,
            error_count INTEGER NOT NULL DEFAULT 0,
            pending_count INTEGER NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS run_results (
            run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
            seq INTEGER NOT NULL,
            src TEXT NOT NULL,
            dst TEXT NOT NULL,
            status TEXT NOT NULL,
            width INTEGER NOT NULL DEFAULT 0,
            height INTEGER NOT NULL DEFAULT 0,
            scale INTEGER NOT NULL DEFAULT 0,
            kind TEXT NOT NULL,
            message TEXT,
            PRIMARY KEY (run_id, seq)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

// RecordRun stores a completed manifest: one runs row plus one run_results
// row per file, in manifest order.
func (s *Store) RecordRun(ctx context.Context, m manifest.Manifest) error {
	tally := m.Tally()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run record: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO runs (
            id, model, command, input_root, output_root,
            started_at, finished_at, dry_run, overwrite,
            ok_count, skipped_count, error_count, pending_count
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.RunID,
		m.Model,
		nullableString(m.Command),
		m.InputRoot,
		m.OutputRoot,
		m.Started.UTC().Format(time.RFC3339Nano),
		m.Finished.UTC().Format(time.RFC3339Nano),
		boolToInt(m.DryRun),
		boolToInt(m.Overwrite),
		tally.OK,
		tally.Skipped,
		tally.Errors,
		tally.Pending,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, r := range m.Results {
		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO run_results (
                run_id, seq, src, dst, status, width, height, scale, kind, message
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.RunID,
			i,
			r.Source,
			r.Destination,
			string(r.Status),
			r.Width,
			r.Height,
			r.Scale,
			r.Kind,
			nullableString(r.Message),
		)
		if err != nil {
			return fmt.Errorf("insert result %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run record: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, model, COALESCE(command, ''), input_root, output_root,
                started_at, finished_at, dry_run, overwrite,
                ok_count, skipped_count, error_count, pending_count
         FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, finished string
		var dryRun, overwrite int
		if err := rows.Scan(
			&run.ID, &run.Model, &run.Command, &run.InputRoot, &run.OutputRoot,
			&started, &finished, &dryRun, &overwrite,
			&run.OK, &run.Skipped, &run.Errors, &run.Pending,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if run.Finished, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		run.DryRun = dryRun != 0
		run.Overwrite = overwrite != 0
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ResultsForRun returns the per-file results of one run in recorded order.
func (s *Store) ResultsForRun(ctx context.Context, runID string) ([]manifest.Result, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT src, dst, status, width, height, scale, kind, COALESCE(message, '')
         FROM run_results WHERE run_id = ? ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []manifest.Result
	for rows.Next() {
		var (
			r      manifest.Result
			status string
		)
		if err := rows.Scan(&r.Source, &r.Destination, &status, &r.Width, &r.Height, &r.Scale, &r.Kind, &r.Message); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Status = manifest.Status(status)
		results = append(results, r)
	}
	return results, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
