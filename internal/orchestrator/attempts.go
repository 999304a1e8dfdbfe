package orchestrator

// #region imports
import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/danielpatrickdp/sentence-eval/internal/eval"
)

// #endregion

// #region schema

// sortableTime formats created_at at fixed width so text comparison is
// chronological. RFC3339Nano trims trailing zeros and is not.
const sortableTime = "2006-01-02T15:04:05.000000000Z07:00"

const attemptLogSchema = `
CREATE TABLE IF NOT EXISTS attempt_log (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    batch_id      TEXT NOT NULL,
    sentence_idx  INTEGER NOT NULL,
    attempt_num   INTEGER NOT NULL,
    model_choice  TEXT NOT NULL,
    kind          TEXT NOT NULL DEFAULT '',
    duration_ms   INTEGER NOT NULL,
    created_at    TEXT NOT NULL
);
`

const attemptLogIndex = `
CREATE INDEX IF NOT EXISTS idx_attempt_log_created
ON attempt_log(created_at);
`

// #endregion

// #region log-struct

// AttemptLog persists every adapter call so retry behavior can be
// inspected after the fact.
type AttemptLog struct {
	db *sql.DB
}

// NewAttemptLog initializes the attempt_log table and returns an AttemptLog.
func NewAttemptLog(db *sql.DB) (*AttemptLog, error) {
	if _, err := db.Exec(attemptLogSchema); err != nil {
		return nil, fmt.Errorf("create attempt_log: %w", err)
	}
	if _, err := db.Exec(attemptLogIndex); err != nil {
		return nil, fmt.Errorf("index attempt_log: %w", err)
	}
	return &AttemptLog{db: db}, nil
}

// #endregion

// #region record-attempt

// Record persists a single attempt row.
func (l *AttemptLog) Record(ctx context.Context, rec AttemptRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO attempt_log
		(batch_id, sentence_idx, attempt_num, model_choice, kind, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.BatchID,
		rec.Index,
		rec.Attempt,
		string(rec.Model),
		string(rec.Kind),
		rec.Duration.Milliseconds(),
		rec.CreatedAt.UTC().Format(sortableTime),
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// #endregion

// #region kind-counts

// OutcomeOK is the KindCounts key for successful attempts.
const OutcomeOK = "ok"

// KindCounts tallies attempts made at or after since by outcome: OutcomeOK
// for successes, otherwise the failure kind.
func (l *AttemptLog) KindCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT kind, COUNT(*)
		FROM attempt_log
		WHERE created_at >= ?
		GROUP BY kind`,
		since.UTC().Format(sortableTime),
	)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan attempt count: %w", err)
		}
		if kind == "" {
			kind = OutcomeOK
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// #endregion

// #region batch-attempts

// ForBatch returns the attempts of one batch ordered by sentence then
// attempt number.
func (l *AttemptLog) ForBatch(ctx context.Context, batchID string) ([]AttemptRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT sentence_idx, attempt_num, model_choice, kind, duration_ms, created_at
		FROM attempt_log
		WHERE batch_id = ?
		ORDER BY sentence_idx, attempt_num`,
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("query batch attempts: %w", err)
	}
	defer rows.Close()

	var out []AttemptRecord
	for rows.Next() {
		rec := AttemptRecord{BatchID: batchID}
		var model, kind, createdAt string
		var ms int64
		if err := rows.Scan(&rec.Index, &rec.Attempt, &model, &kind, &ms, &createdAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		rec.Model = eval.ModelChoice(model)
		rec.Kind = eval.Kind(kind)
		rec.Duration = time.Duration(ms) * time.Millisecond
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan attempt created_at: %w", err)
		}
		rec.CreatedAt = t
		out = append(out, rec)
	}
	return out, rows.Err()
}

// #endregion
