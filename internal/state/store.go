package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"math"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/sentence-eval/internal/eval"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS history_entries (
	sequence      INTEGER PRIMARY KEY,
	recorded_ns   INTEGER NOT NULL,
	sentence_text TEXT NOT NULL,
	model_choice  TEXT NOT NULL,
	verdicts_json TEXT NOT NULL,
	correction    TEXT
);

CREATE INDEX IF NOT EXISTS idx_history_recorded ON history_entries(recorded_ns);

CREATE TABLE IF NOT EXISTS history_meta (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	last_sequence INTEGER NOT NULL
);

INSERT OR IGNORE INTO history_meta (id, last_sequence) VALUES (1, 0);
`
// #endregion schema

// #region store-struct

// DefaultPageSize is how many rows a query reads per round trip.
const DefaultPageSize = 256

// Timestamps are stored as Unix nanoseconds, which bounds what Record accepts.
var (
	MinTimestamp = time.Unix(0, math.MinInt64).UTC()
	MaxTimestamp = time.Unix(0, math.MaxInt64).UTC()
)

// Store is the append-only evaluation history, persisted in SQLite.
// Sequence assignment and insertion happen under one mutex; sequence
// numbers are never reused, including after Clear.
type Store struct {
	db       *sql.DB
	mu       sync.Mutex
	lastSeq  int64
	pageSize int
}

// #endregion store-struct

// #region constructor

// NewStore opens a SQLite database and runs migrations. ":memory:" gives
// a private in-process history.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection: in-memory databases are per connection, and the
	// history has a single writer anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &Store{db: db, pageSize: DefaultPageSize}
	err = db.QueryRow(
		`SELECT MAX(m.last_sequence, COALESCE((SELECT MAX(sequence) FROM history_entries), 0))
		 FROM history_meta m WHERE m.id = 1`,
	).Scan(&s.lastSeq)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load sequence: %w", err)
	}
	return s, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region record

// Record appends a result and returns it with its assigned sequence number.
// A zero timestamp is stamped with the current time; one outside
// MinTimestamp..MaxTimestamp is rejected. Storage failures are
// StorageFault errors and leave the store usable.
func (s *Store) Record(ctx context.Context, res eval.Result) (eval.Entry, error) {
	if !res.Model.Valid() {
		return eval.Entry{}, eval.Errorf(eval.KindStorageFault, "record: unknown model %q", res.Model)
	}
	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now()
	}
	res.Timestamp = res.Timestamp.UTC()
	if res.Timestamp.Before(MinTimestamp) || res.Timestamp.After(MaxTimestamp) {
		return eval.Entry{}, eval.Errorf(eval.KindStorageFault,
			"record: timestamp %s outside %d..%d", res.Timestamp.Format(time.RFC3339), MinTimestamp.Year(), MaxTimestamp.Year())
	}

	verdicts := res.Verdicts
	if verdicts == nil {
		verdicts = []eval.RuleVerdict{}
	}
	verdictsJSON, err := json.Marshal(verdicts)
	if err != nil {
		return eval.Entry{}, eval.Wrap(eval.KindStorageFault, err, "marshal verdicts")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.lastSeq + 1
	if err := s.insert(ctx, seq, res, string(verdictsJSON)); err != nil {
		return eval.Entry{}, eval.Wrap(eval.KindStorageFault, err, fmt.Sprintf("record entry %d: %v", seq, err))
	}
	s.lastSeq = seq
	return eval.Entry{Sequence: seq, Result: res}, nil
}

func (s *Store) insert(ctx context.Context, seq int64, res eval.Result, verdictsJSON string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO history_entries (sequence, recorded_ns, sentence_text, model_choice, verdicts_json, correction)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		seq, res.Timestamp.UnixNano(), res.SentenceText, string(res.Model), verdictsJSON, nullIfEmpty(res.Correction),
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE history_meta SET last_sequence = ? WHERE id = 1`, seq); err != nil {
		return fmt.Errorf("advance sequence: %w", err)
	}
	return tx.Commit()
}

// #endregion record

// #region query

// Query lazily yields entries inside tr in ascending sequence order. The
// upper sequence bound is fixed when iteration starts, so entries recorded
// mid-iteration are not observed. Rows are read a page at a time and no
// connection is held while the caller consumes a page.
func (s *Store) Query(ctx context.Context, tr eval.TimeRange) iter.Seq2[eval.Entry, error] {
	return func(yield func(eval.Entry, error) bool) {
		upper, err := s.snapshot(ctx)
		if err != nil {
			yield(eval.Entry{}, err)
			return
		}
		var after int64
		for {
			page, err := s.page(ctx, tr, after, upper)
			if err != nil {
				yield(eval.Entry{}, err)
				return
			}
			for _, e := range page {
				if !yield(e, nil) {
					return
				}
			}
			if len(page) < s.pageSize {
				return
			}
			after = page[len(page)-1].Sequence
		}
	}
}

func (s *Store) snapshot(ctx context.Context) (int64, error) {
	var upper int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(sequence), 0) FROM history_entries`).Scan(&upper)
	if err != nil {
		return 0, eval.Wrap(eval.KindStorageFault, err, fmt.Sprintf("query snapshot: %v", err))
	}
	return upper, nil
}

func (s *Store) page(ctx context.Context, tr eval.TimeRange, after, upper int64) ([]eval.Entry, error) {
	where := []string{"sequence > ?", "sequence <= ?"}
	args := []any{after, upper}
	// Bounds beyond the storable range are open on their side and
	// empty on the other.
	if !tr.From.IsZero() && tr.From.After(MinTimestamp) {
		if tr.From.After(MaxTimestamp) {
			return nil, nil
		}
		where = append(where, "recorded_ns >= ?")
		args = append(args, tr.From.UnixNano())
	}
	if !tr.To.IsZero() && !tr.To.After(MaxTimestamp) {
		if !tr.To.After(MinTimestamp) {
			return nil, nil
		}
		where = append(where, "recorded_ns < ?")
		args = append(args, tr.To.UnixNano())
	}
	args = append(args, s.pageSize)

	rows, err := s.db.QueryContext(ctx,
		`SELECT sequence, recorded_ns, sentence_text, model_choice, verdicts_json, correction
		 FROM history_entries WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY sequence ASC LIMIT ?`, args...,
	)
	if err != nil {
		return nil, eval.Wrap(eval.KindStorageFault, err, fmt.Sprintf("query history: %v", err))
	}
	defer rows.Close()

	var out []eval.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, eval.Wrap(eval.KindStorageFault, err, fmt.Sprintf("scan entry: %v", err))
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eval.Wrap(eval.KindStorageFault, err, fmt.Sprintf("query history: %v", err))
	}
	return out, nil
}

// #endregion query

// #region lookups

// Get returns the entry with the given sequence number.
func (s *Store) Get(ctx context.Context, seq int64) (eval.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT sequence, recorded_ns, sentence_text, model_choice, verdicts_json, correction
		 FROM history_entries WHERE sequence = ?`, seq,
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return eval.Entry{}, eval.Errorf(eval.KindNotFound, "history entry %d", seq)
	}
	if err != nil {
		return eval.Entry{}, eval.Wrap(eval.KindStorageFault, err, fmt.Sprintf("get entry %d: %v", seq, err))
	}
	return e, nil
}

// Count returns the number of entries currently stored.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history_entries`).Scan(&n); err != nil {
		return 0, eval.Wrap(eval.KindStorageFault, err, fmt.Sprintf("count entries: %v", err))
	}
	return n, nil
}

// Last returns the newest stored entry.
func (s *Store) Last(ctx context.Context) (eval.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT sequence, recorded_ns, sentence_text, model_choice, verdicts_json, correction
		 FROM history_entries ORDER BY sequence DESC LIMIT 1`,
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return eval.Entry{}, eval.Errorf(eval.KindNotFound, "history is empty")
	}
	if err != nil {
		return eval.Entry{}, eval.Wrap(eval.KindStorageFault, err, fmt.Sprintf("last entry: %v", err))
	}
	return e, nil
}

// LastSequence returns the most recently assigned sequence number.
func (s *Store) LastSequence() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq
}

// #endregion lookups

// #region clear

// Clear removes every entry. Sequence numbering continues where it was.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history_entries`); err != nil {
		return eval.Wrap(eval.KindStorageFault, err, fmt.Sprintf("clear history: %v", err))
	}
	return nil
}

// #endregion clear

// #region scan

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (eval.Entry, error) {
	var (
		e            eval.Entry
		recordedNS   int64
		model        string
		verdictsJSON string
		correction   sql.NullString
	)
	if err := r.Scan(&e.Sequence, &recordedNS, &e.SentenceText, &model, &verdictsJSON, &correction); err != nil {
		return eval.Entry{}, err
	}
	e.Timestamp = time.Unix(0, recordedNS).UTC()
	e.Model = eval.ModelChoice(model)
	if err := json.Unmarshal([]byte(verdictsJSON), &e.Verdicts); err != nil {
		return eval.Entry{}, fmt.Errorf("unmarshal verdicts of entry %d: %w", e.Sequence, err)
	}
	if correction.Valid {
		e.Correction = correction.String
	}
	return e, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion scan
