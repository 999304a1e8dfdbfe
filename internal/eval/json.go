package eval

import (
	"encoding/json"
	"fmt"
	"time"
)

// #region wire-format

type entryJSON struct {
	Sequence     int64         `json:"sequence"`
	Timestamp    string        `json:"timestamp"`
	SentenceText string        `json:"sentenceText"`
	ModelChoice  string        `json:"modelChoice"`
	Verdicts     []RuleVerdict `json:"verdicts"`
	OverallScore float64       `json:"overallScore"`
	Correction   string        `json:"correction,omitempty"`
}

// MarshalJSON writes the history persistence format. overallScore is
// derived from the verdicts on the way out.
func (e Entry) MarshalJSON() ([]byte, error) {
	verdicts := e.Verdicts
	if verdicts == nil {
		verdicts = []RuleVerdict{}
	}
	return json.Marshal(entryJSON{
		Sequence:     e.Sequence,
		Timestamp:    e.Timestamp.UTC().Format(time.RFC3339Nano),
		SentenceText: e.SentenceText,
		ModelChoice:  string(e.Model),
		Verdicts:     verdicts,
		OverallScore: e.OverallScore(),
		Correction:   e.Correction,
	})
}

// UnmarshalJSON reads the history persistence format. The stored
// overallScore is ignored; it is always recomputed from the verdicts.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w entryJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode entry: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, w.Timestamp)
	if err != nil {
		return fmt.Errorf("decode entry %d timestamp: %w", w.Sequence, err)
	}
	model := ModelChoice(w.ModelChoice)
	if !model.Valid() {
		return fmt.Errorf("decode entry %d: unknown model %q", w.Sequence, w.ModelChoice)
	}
	*e = Entry{
		Sequence: w.Sequence,
		Result: Result{
			SentenceText: w.SentenceText,
			Model:        model,
			Timestamp:    ts.UTC(),
			Verdicts:     w.Verdicts,
			Correction:   w.Correction,
		},
	}
	return nil
}

// #endregion wire-format
