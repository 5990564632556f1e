// Package history records one row per launch attempt in the local SQLite
// database. The ledger is best-effort: the orchestrator logs and continues
// when a write fails.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is one launch attempt.
type Entry struct {
	ID           string
	JobID        string
	RunID        string
	DataKind     string
	ComputeKind  string
	Status       string
	Error        string
	ManifestPath string
	CreatedAt    time.Time
}

// Ledger reads and writes launch history rows.
type Ledger struct {
	db *sql.DB
}

// NewLedger wraps an opened database.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// RecordLaunch inserts one attempt and returns its row id.
func (l *Ledger) RecordLaunch(ctx context.Context, e Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx, `
INSERT INTO launch_history (id, job_id, run_id, data_kind, compute_kind, status, error, manifest_path, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.JobID, e.RunID, e.DataKind, e.ComputeKind, e.Status, e.Error,
		e.ManifestPath, e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("record launch: %w", err)
	}
	return e.ID, nil
}

// Recent returns up to limit attempts, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
SELECT id, job_id, run_id, data_kind, compute_kind, status, error, manifest_path, created_at
FROM launch_history
ORDER BY created_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query launch history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var runID, errMsg, manifestPath sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.JobID, &runID, &e.DataKind, &e.ComputeKind,
			&e.Status, &errMsg, &manifestPath, &createdAt); err != nil {
			return nil, fmt.Errorf("scan launch history row: %w", err)
		}
		e.RunID = runID.String
		e.Error = errMsg.String
		e.ManifestPath = manifestPath.String
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// FindByJob returns the most recent attempt for a job id, or nil when the
// job was never recorded.
func (l *Ledger) FindByJob(ctx context.Context, jobID string) (*Entry, error) {
	rows, err := l.Recent(ctx, 200)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].JobID == jobID {
			return &rows[i], nil
		}
	}
	return nil, nil
}
