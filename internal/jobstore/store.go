package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"romkeep/internal/config"
	"romkeep/internal/services"
)

// Record is one journaled batch job. Only terminal jobs are journaled; the
// live in-memory table remains authoritative while a job runs.
type Record struct {
	JobID       string
	Status      string
	Processed   int
	Total       int
	Errors      []string
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// Store persists the batch job history in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "history.db")
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

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) applyMigrations(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS job_history (
    job_id       TEXT PRIMARY KEY,
    status       TEXT NOT NULL,
    processed    INTEGER NOT NULL,
    total        INTEGER NOT NULL,
    errors       TEXT NOT NULL DEFAULT '[]',
    created_at   TEXT NOT NULL,
    started_at   TEXT,
    completed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_job_history_created ON job_history (created_at DESC);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Record journals a terminal job. Re-journaling the same id overwrites, so a
// crash between completion and journaling can be safely retried.
func (s *Store) Record(ctx context.Context, rec Record) error {
	errJSON, err := json.Marshal(rec.Errors)
	if err != nil {
		return fmt.Errorf("encode errors: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO job_history (job_id, status, processed, total, errors, created_at, started_at, completed_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(job_id) DO UPDATE SET
             status = excluded.status,
             processed = excluded.processed,
             total = excluded.total,
             errors = excluded.errors,
             started_at = excluded.started_at,
             completed_at = excluded.completed_at`,
		rec.JobID,
		rec.Status,
		rec.Processed,
		rec.Total,
		string(errJSON),
		formatTime(rec.CreatedAt),
		formatTime(rec.StartedAt),
		formatTime(rec.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("journal job %s: %w", rec.JobID, err)
	}
	return nil
}

// Get returns one journaled job by id.
func (s *Store) Get(ctx context.Context, jobID string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT job_id, status, processed, total, errors, created_at, started_at, completed_at
         FROM job_history WHERE job_id = ?`, jobID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, services.Wrap(services.ErrNotFound, "history", "get", jobID, nil)
	}
	return rec, err
}

// Recent returns the most recently created journaled jobs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, status, processed, total, errors, created_at, started_at, completed_at
         FROM job_history ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Prune deletes journal entries older than the retention window.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_history WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var errJSON string
	var created, started, completed sql.NullString
	if err := row.Scan(&rec.JobID, &rec.Status, &rec.Processed, &rec.Total, &errJSON, &created, &started, &completed); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(errJSON), &rec.Errors); err != nil {
		return Record{}, fmt.Errorf("decode errors for %s: %w", rec.JobID, err)
	}
	rec.CreatedAt = parseTime(created)
	rec.StartedAt = parseTime(started)
	rec.CompletedAt = parseTime(completed)
	return rec, nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v sql.NullString) time.Time {
	if !v.Valid || v.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
