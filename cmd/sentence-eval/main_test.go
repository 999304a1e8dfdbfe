package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/sentence-eval/internal/config"
)

// #region helpers

// cli runs the root command against a private database with the offline
// backend and returns stdout.
type cli struct {
	t  *testing.T
	db string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	for _, k := range []string{config.EnvConfig, config.EnvAPIKey, config.EnvDB, config.EnvBackend, config.EnvRemoteAddr, config.EnvLogLevel} {
		t.Setenv(k, "")
	}
	return &cli{t: t, db: filepath.Join(t.TempDir(), "history.db")}
}

func (c *cli) run(stdin string, args ...string) (string, error) {
	c.t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--db", c.db, "--backend", "offline", "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run("", args...)
	require.NoError(c.t, err, "args: %v", args)
	return out
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), "output: %s", out)
	return v
}

// #endregion helpers

// #region exit-codes

func TestEvalFailureError(t *testing.T) {
	err := &EvalFailureError{Message: "2 of 5 sentence(s) failed"}
	assert.Equal(t, "2 of 5 sentence(s) failed", err.Error())
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: ExitSuccess},
		{name: "eval failure", err: &EvalFailureError{Message: "failed"}, want: ExitEvalFailed},
		{name: "wrapped eval failure", err: errors.Join(&EvalFailureError{Message: "failed"}, errors.New("context")), want: ExitEvalFailed},
		{name: "runtime error", err: errors.New("open db"), want: ExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

// #endregion exit-codes

// #region evaluate

func TestEvaluate_OfflineRecordsHistory(t *testing.T) {
	c := newCLI(t)

	rows := decode[[]outcomeRow](t, c.mustRun("evaluate", "--json", "The cat sat on the mat."))
	require.Len(t, rows, 1)
	assert.Equal(t, "succeeded", rows[0].State)
	assert.Equal(t, int64(1), rows[0].Sequence)
	assert.Equal(t, 1, rows[0].Attempts)
	require.NotNil(t, rows[0].Score)
	assert.NotEmpty(t, rows[0].Verdicts)

	entries := decode[[]map[string]any](t, c.mustRun("history", "--json"))
	require.Len(t, entries, 1)
	assert.Equal(t, "The cat sat on the mat.", entries[0]["sentenceText"])
	assert.Equal(t, "flash", entries[0]["modelChoice"])

	batches := decode[[]batchRow](t, c.mustRun("batches", "--json"))
	require.Len(t, batches, 1)
	assert.Equal(t, 1, batches[0].Succeeded)
	assert.Equal(t, 1, batches[0].Attempts)

	sum := decode[map[string]any](t, c.mustRun("summary", "--json"))
	assert.EqualValues(t, 1, sum["total"])
	assert.EqualValues(t, 1, sum["attemptKinds"].(map[string]any)["ok"])
}

func TestEvaluate_StdinSplitsLinesAndDropsBlanks(t *testing.T) {
	c := newCLI(t)
	out, err := c.run("The sky is blue.\n\n   \nWe walk home.\n", "evaluate", "--json", "-f", "-", "--model", "pro")
	require.NoError(t, err)

	rows := decode[[]outcomeRow](t, out)
	require.Len(t, rows, 2)
	assert.Equal(t, "The sky is blue.", rows[0].Sentence)
	assert.Equal(t, "We walk home.", rows[1].Sentence)
	assert.Equal(t, []int64{1, 2}, []int64{rows[0].Sequence, rows[1].Sequence})
}

func TestEvaluate_UnsupportedCriterionFailsSentence(t *testing.T) {
	c := newCLI(t)
	out, err := c.run("", "evaluate", "--json", "--criteria", "short,relevant", "The cat sat.")

	var failure *EvalFailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, ExitEvalFailed, exitCode(err))

	rows := decode[[]outcomeRow](t, out)
	require.Len(t, rows, 1)
	assert.Equal(t, "failed_terminal", rows[0].State)
	assert.Equal(t, "partial_criteria_missing", rows[0].Kind)
	assert.Equal(t, []string{"relevant"}, rows[0].Missing)

	entries := decode[[]map[string]any](t, c.mustRun("history", "--json"))
	assert.Empty(t, entries)
}

func TestEvaluate_ArgumentErrors(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("", "evaluate")
	assert.ErrorContains(t, err, "no sentences")

	_, err = c.run("", "evaluate", "--model", "ultra", "Hi there.")
	assert.Error(t, err)

	_, err = c.run("", "evaluate", "--criteria", "rule-x", "Hi there.")
	assert.Error(t, err)

	_, err = c.run("", "--backend", "carrier-pigeon", "criteria")
	assert.ErrorContains(t, err, "Backend")
}

func TestEvaluate_WritesMetricsFile(t *testing.T) {
	c := newCLI(t)
	path := filepath.Join(t.TempDir(), "batch.prom")
	c.mustRun("evaluate", "--metrics-out", path, "The cat sat.")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sentence_eval_sentences_total")
	assert.Contains(t, string(data), "sentence_eval_attempts_total")
}

// #endregion evaluate

// #region history-commands

func TestClear_RequiresYesAndKeepsSequence(t *testing.T) {
	c := newCLI(t)
	c.mustRun("evaluate", "One.", "Two.")

	_, err := c.run("", "clear")
	assert.ErrorContains(t, err, "--yes")

	assert.Contains(t, c.mustRun("clear", "--yes"), "cleared 2 entries")
	assert.Empty(t, decode[[]map[string]any](t, c.mustRun("history", "--json")))

	rows := decode[[]outcomeRow](t, c.mustRun("evaluate", "--json", "Three."))
	assert.Equal(t, int64(3), rows[0].Sequence)
}

func TestExportImport_RoundTrip(t *testing.T) {
	c := newCLI(t)
	c.mustRun("evaluate", "The dog runs.", "We like tea.")

	path := filepath.Join(t.TempDir(), "export.jsonl")
	c.mustRun("export", "--out", path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))

	c.mustRun("clear", "--yes")
	assert.Contains(t, c.mustRun("import", path), "imported 2 entries")

	entries := decode[[]map[string]any](t, c.mustRun("history", "--json"))
	require.Len(t, entries, 2)
	assert.EqualValues(t, 3, entries[0]["sequence"])
	assert.Equal(t, "The dog runs.", entries[0]["sentenceText"])
	assert.EqualValues(t, 4, entries[1]["sequence"])
}

func TestHistory_LimitKeepsNewest(t *testing.T) {
	c := newCLI(t)
	c.mustRun("evaluate", "One.", "Two.", "Three.")

	entries := decode[[]map[string]any](t, c.mustRun("history", "--json", "--limit", "2"))
	require.Len(t, entries, 2)
	assert.EqualValues(t, 2, entries[0]["sequence"])
	assert.EqualValues(t, 3, entries[1]["sequence"])
}

func TestTrend(t *testing.T) {
	c := newCLI(t)
	c.mustRun("evaluate", "The cat sat.", "We walk home.")

	points := decode[[]map[string]any](t, c.mustRun("trend", "short", "--json"))
	require.Len(t, points, 2)

	scores := decode[[]map[string]any](t, c.mustRun("trend", "--json"))
	assert.Len(t, scores, 2)

	_, err := c.run("", "trend", "rule-x")
	assert.Error(t, err)

	_, err = c.run("", "trend", "short", "--since", "yesterday-ish")
	assert.Error(t, err)
}

func TestCriteria_Table(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("criteria")
	assert.Contains(t, out, "no-universals")
	assert.Contains(t, out, "Offline")
}

// #endregion history-commands

// #region replay

func TestReplay_BatchSessionFixture(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("replay", filepath.Join("..", "..", "internal", "replay", "testdata", "batch_session.json"))
	assert.Contains(t, out, "adapter calls")
}

// #endregion replay

// #region input-parsing

func TestSplitSentences(t *testing.T) {
	got, err := splitSentences(strings.NewReader("  First one.  \r\n\n\t\nSecond one.\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"First one.", "Second one."}, got)

	got, err = splitSentences(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseTimeFlag(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	got, err := parseTimeFlag("168h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-7*24*time.Hour), got)

	got, err = parseTimeFlag("2026-06-01", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = parseTimeFlag("", now)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = parseTimeFlag("last tuesday", now)
	assert.Error(t, err)
}

func TestShortText(t *testing.T) {
	assert.Equal(t, "short", shortText("short", 10))
	assert.Equal(t, "a b c", shortText("a\n  b\tc", 10))
	assert.Equal(t, "abcdefg...", shortText("abcdefghijklmnop", 10))
}

// #endregion input-parsing
