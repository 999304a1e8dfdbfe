package state

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/danielpatrickdp/sentence-eval/internal/eval"
)

// #region collect

// Collect drains a query into a slice, stopping at the first error.
func Collect(seq iter.Seq2[eval.Entry, error]) ([]eval.Entry, error) {
	var out []eval.Entry
	for e, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

// #endregion collect

// #region export

// WriteJSONL streams entries to w, one JSON object per line.
func WriteJSONL(w io.Writer, seq iter.Seq2[eval.Entry, error]) (int, error) {
	enc := json.NewEncoder(w)
	n := 0
	for e, err := range seq {
		if err != nil {
			return n, err
		}
		if err := enc.Encode(e); err != nil {
			return n, fmt.Errorf("encode entry %d: %w", e.Sequence, err)
		}
		n++
	}
	return n, nil
}

// #endregion export

// #region import

// maxLineBytes bounds a single JSONL record.
const maxLineBytes = 4 << 20

// ReadJSONL lazily decodes entries from r. Blank and whitespace-only lines
// are skipped.
func ReadJSONL(r io.Reader) iter.Seq2[eval.Entry, error] {
	return func(yield func(eval.Entry, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), maxLineBytes)
		line := 0
		for sc.Scan() {
			line++
			if len(bytes.TrimSpace(sc.Bytes())) == 0 {
				continue
			}
			var e eval.Entry
			if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
				yield(eval.Entry{}, fmt.Errorf("line %d: %w", line, err))
				return
			}
			if !yield(e, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(eval.Entry{}, fmt.Errorf("read jsonl: %w", err))
		}
	}
}

// Import re-records every entry from r. Imported entries keep their
// timestamps and receive new sequence numbers.
func (s *Store) Import(ctx context.Context, r io.Reader) (int, error) {
	n := 0
	for e, err := range ReadJSONL(r) {
		if err != nil {
			return n, err
		}
		if _, err := s.Record(ctx, e.Result); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// #endregion import
