package logging

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// #region schema

// sortableTime formats timestamps at fixed width so the text columns order
// chronologically. RFC3339Nano trims trailing zeros and does not.
const sortableTime = "2006-01-02T15:04:05.000000000Z07:00"

const batchRunsSchema = `
CREATE TABLE IF NOT EXISTS batch_runs (
	batch_id    TEXT PRIMARY KEY,
	model       TEXT NOT NULL,
	sentences   INTEGER NOT NULL,
	succeeded   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	canceled    INTEGER NOT NULL,
	attempts    INTEGER NOT NULL,
	note        TEXT,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL
);
`
// #endregion schema

// #region audit-log
// AuditLog records one row per evaluated batch.
type AuditLog struct {
	db *sql.DB
}

// NewAuditLog creates the batch_runs table if needed.
func NewAuditLog(db *sql.DB) (*AuditLog, error) {
	if _, err := db.Exec(batchRunsSchema); err != nil {
		return nil, fmt.Errorf("create batch_runs: %w", err)
	}
	return &AuditLog{db: db}, nil
}
// #endregion audit-log

// #region log-batch
// LogBatch writes a batch run to the batch_runs table.
func (a *AuditLog) LogBatch(ctx context.Context, run BatchRun) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}

	_, err := a.db.ExecContext(ctx,
		`INSERT INTO batch_runs (batch_id, model, sentences, succeeded, failed, canceled, attempts, note, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Model,
		run.Sentences,
		run.Succeeded,
		run.Failed,
		run.Canceled,
		run.Attempts,
		nullIfEmpty(run.Note),
		run.StartedAt.UTC().Format(sortableTime),
		run.FinishedAt.UTC().Format(sortableTime),
	)
	if err != nil {
		return fmt.Errorf("log batch: %w", err)
	}
	return nil
}
// #endregion log-batch

// #region recent
// Recent returns up to limit batch runs, newest first.
func (a *AuditLog) Recent(ctx context.Context, limit int) ([]BatchRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT batch_id, model, sentences, succeeded, failed, canceled, attempts, note, started_at, finished_at
		 FROM batch_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query batch_runs: %w", err)
	}
	defer rows.Close()

	var out []BatchRun
	for rows.Next() {
		var (
			r                 BatchRun
			note              sql.NullString
			started, finished string
		)
		if err := rows.Scan(&r.ID, &r.Model, &r.Sentences, &r.Succeeded, &r.Failed, &r.Canceled,
			&r.Attempts, &note, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan batch run: %w", err)
		}
		r.Note = note.String
		var err error
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("scan batch run %s: started_at: %w", r.ID, err)
		}
		if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("scan batch run %s: finished_at: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
// #endregion recent

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
