package replay

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/sentence-eval/internal/criteria"
	"github.com/danielpatrickdp/sentence-eval/internal/eval"
)

// #region fixture-tests

// TestFixture_BatchSession loads the batch_session fixture, runs Replay(),
// and compares each sentence against the expected outcome. If retry or
// completeness rules drift, this catches it.
func TestFixture_BatchSession(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "batch_session.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	report, err := Replay(context.Background(), f, criteria.Default(), nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if len(report.Results) != len(f.Sentences) {
		t.Fatalf("expected %d results, got %d", len(f.Sentences), len(report.Results))
	}
	for _, m := range Check(f, report) {
		t.Error(m)
	}

	if report.Summary.Succeeded != 2 || report.Summary.Failed != 4 {
		t.Errorf("summary: %+v", report.Summary)
	}
	if report.Summary.Recorded != report.Summary.Succeeded {
		t.Errorf("recorded %d entries, want %d", report.Summary.Recorded, report.Summary.Succeeded)
	}
	// 1 + 1 + 2 + 2 + 1 + 1 adapter calls
	if report.Summary.AdapterCall != 8 {
		t.Errorf("expected 8 adapter calls, got %d", report.Summary.AdapterCall)
	}

	missing := report.Results[4]
	if missing.Reason == "" {
		t.Error("expected a reason on the partial result")
	}
	if got := report.Results[3].Score; got < 0.66 || got > 0.67 {
		t.Errorf("sentence 3 score = %v, want 2/3", got)
	}
}

func TestCheck_ReportsMismatches(t *testing.T) {
	f := &Fixture{ExpectedResults: []FixtureExpectedResult{
		{Index: 0, State: "succeeded", Attempts: 1},
		{Index: 3, State: "succeeded"},
	}}
	report := &Report{Results: []ReplayResult{{Index: 0, State: "failed_terminal", Kind: eval.KindTimeout, Attempts: 2}}}

	got := Check(f, report)
	if len(got) != 4 {
		t.Fatalf("expected 4 mismatches, got %d: %v", len(got), got)
	}
}

func TestLoadFixture_Errors(t *testing.T) {
	if _, err := LoadFixture(filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"model": "ultra"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFixture(bad); err == nil {
		t.Error("expected error for unknown model")
	}
}

func TestReplay_UnknownCriterion(t *testing.T) {
	f := &Fixture{Model: "pro", Criteria: []string{"no-such-rule"}, Sentences: []FixtureSentence{{Text: "x"}}}
	if _, err := Replay(context.Background(), f, criteria.Default(), nil); err == nil {
		t.Fatal("expected error for unknown criterion")
	}
}

// #endregion fixture-tests

// #region step-tests

func TestToSteps(t *testing.T) {
	crit, err := criteria.Default().Select("short", "relevant")
	if err != nil {
		t.Fatal(err)
	}
	fs := FixtureSentence{Steps: []FixtureStep{
		{Kind: "timeout", DelayMS: 5},
		{PassRating: 3},
		{Verdicts: map[string]FixtureVerdict{"short": {Passed: false, Rating: 1, Suggestion: "trim"}}},
	}}
	steps := fs.ToSteps(crit)

	if steps[0].Kind != eval.KindTimeout || steps[0].Verdicts != nil || steps[0].Delay.Milliseconds() != 5 {
		t.Errorf("step 0: %+v", steps[0])
	}
	if len(steps[1].Verdicts) != 2 || steps[1].Verdicts["relevant"].Rating != 3 {
		t.Errorf("step 1: %+v", steps[1])
	}
	if v := steps[2].Verdicts["short"]; v.Passed || v.Suggestion != "trim" {
		t.Errorf("step 2: %+v", steps[2])
	}
}

// #endregion step-tests
