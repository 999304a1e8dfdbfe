package replay

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/sentence-eval/internal/codec"
	"github.com/danielpatrickdp/sentence-eval/internal/criteria"
	"github.com/danielpatrickdp/sentence-eval/internal/eval"
	"github.com/danielpatrickdp/sentence-eval/internal/orchestrator"
	"github.com/danielpatrickdp/sentence-eval/internal/state"
)

// #region types
// ReplayResult captures the outcome of replaying one sentence.
type ReplayResult struct {
	Index    int
	Sentence string
	State    orchestrator.SentenceState
	Kind     eval.Kind // empty on success
	Reason   string
	Attempts int
	Score    float64
	Sequence int64
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	Total       int
	Succeeded   int
	Failed      int
	Recorded    int // history entries written
	AdapterCall int
}

// Report is a full replay run.
type Report struct {
	Results []ReplayResult
	Summary ReplaySummary
}

// #endregion types

// #region replay
// Replay runs a fixture through the batch evaluator against a scripted
// adapter and a private in-memory history. No network or disk is touched.
func Replay(ctx context.Context, f *Fixture, registry *criteria.Registry, logger *zap.Logger) (*Report, error) {
	model, err := eval.ParseModelChoice(f.Model)
	if err != nil {
		return nil, err
	}
	selected, err := registry.Select(f.Criteria...)
	if err != nil {
		return nil, fmt.Errorf("select criteria: %w", err)
	}

	scripts := make(map[string][]codec.Step, len(f.Sentences))
	sentences := make([]string, len(f.Sentences))
	for i := range f.Sentences {
		sentences[i] = f.Sentences[i].Text
		if len(f.Sentences[i].Steps) > 0 {
			scripts[sentences[i]] = f.Sentences[i].ToSteps(selected)
		}
	}

	store, err := state.NewStore(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open replay history: %w", err)
	}
	defer store.Close()

	adapter := codec.NewScriptedAdapter(scripts)
	ev := orchestrator.New(adapter, store, f.Config.ToConfig(), orchestrator.WithLogger(logger))
	outcomes, err := ev.Evaluate(ctx, sentences, selected, model)
	if err != nil {
		return nil, err
	}

	report := &Report{Results: make([]ReplayResult, len(outcomes))}
	for i, o := range outcomes {
		r := ReplayResult{Index: o.Index, Sentence: o.Sentence, State: o.State, Attempts: o.Attempts}
		if o.Err != nil {
			r.Kind = o.Err.Kind
			r.Reason = o.Err.Reason
			report.Summary.Failed++
		}
		if o.Entry != nil {
			r.Score = o.Entry.OverallScore()
			r.Sequence = o.Entry.Sequence
			report.Summary.Succeeded++
		}
		report.Results[i] = r
	}
	report.Summary.Total = len(outcomes)
	report.Summary.AdapterCall = adapter.TotalCalls()
	if report.Summary.Recorded, err = store.Count(ctx); err != nil {
		return nil, err
	}
	return report, nil
}
// #endregion replay

// #region check
// Check compares a report against the fixture's expected results and
// returns one message per mismatch.
func Check(f *Fixture, report *Report) []string {
	var mismatches []string
	for _, want := range f.ExpectedResults {
		if want.Index < 0 || want.Index >= len(report.Results) {
			mismatches = append(mismatches, fmt.Sprintf("expected result %d: no such sentence", want.Index))
			continue
		}
		got := report.Results[want.Index]
		if string(got.State) != want.State {
			mismatches = append(mismatches, fmt.Sprintf("sentence %d: state=%s, want %s", want.Index, got.State, want.State))
		}
		if string(got.Kind) != want.Kind {
			mismatches = append(mismatches, fmt.Sprintf("sentence %d: kind=%q, want %q", want.Index, got.Kind, want.Kind))
		}
		if want.Attempts != 0 && got.Attempts != want.Attempts {
			mismatches = append(mismatches, fmt.Sprintf("sentence %d: attempts=%d, want %d", want.Index, got.Attempts, want.Attempts))
		}
	}
	return mismatches
}
// #endregion check
