package main

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/sentence-eval/internal/eval"
	"github.com/danielpatrickdp/sentence-eval/internal/logging"
	"github.com/danielpatrickdp/sentence-eval/internal/metrics"
)

// #region range-flags

// rangeFlags is the --since/--until pair shared by the read commands.
type rangeFlags struct {
	since string
	until string
}

func (r *rangeFlags) register(cmd *cobra.Command, defaultSince string) {
	cmd.Flags().StringVar(&r.since, "since", defaultSince, "Start of the range, inclusive (RFC3339, YYYY-MM-DD or a duration like 168h)")
	cmd.Flags().StringVar(&r.until, "until", "", "End of the range, exclusive (same formats as --since)")
}

func (r *rangeFlags) timeRange(now time.Time) (eval.TimeRange, error) {
	from, err := parseTimeFlag(r.since, now)
	if err != nil {
		return eval.TimeRange{}, err
	}
	to, err := parseTimeFlag(r.until, now)
	if err != nil {
		return eval.TimeRange{}, err
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return eval.TimeRange{}, fmt.Errorf("--since must be before --until")
	}
	return eval.TimeRange{From: from, To: to}, nil
}

// #endregion range-flags

// #region history

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var (
		rf      rangeFlags
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded evaluations, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := rf.timeRange(time.Now())
			if err != nil {
				return err
			}
			h, err := openHistory(opts.cfg)
			if err != nil {
				return err
			}
			defer h.Close()

			var entries []eval.Entry
			for e, err := range h.store.Query(cmd.Context(), tr) {
				if err != nil {
					return err
				}
				entries = append(entries, e)
				if limit > 0 && len(entries) > limit {
					entries = entries[1:]
				}
			}

			w := cmd.OutOrStdout()
			if jsonOut {
				if entries == nil {
					entries = []eval.Entry{}
				}
				return printJSON(w, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no entries found")
				return nil
			}
			printEntries(w, entries)
			return nil
		},
	}
	rf.register(cmd, "")
	cmd.Flags().IntVar(&limit, "limit", 20, "Show only the N most recent entries (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON instead of a table")
	return cmd
}

func printEntries(w io.Writer, entries []eval.Entry) {
	fmt.Fprintf(w, "%6s  %-20s  %-6s  %6s  %5s  %s\n", "Seq", "Time", "Model", "Score", "Pass", "Sentence")
	fmt.Fprintf(w, "%6s+-%-20s+-%-6s+-%6s+-%5s+-%s\n",
		"------", "--------------------", "------", "------", "-----", "--------------------")
	for _, e := range entries {
		passed := 0
		for _, v := range e.Verdicts {
			if v.Passed {
				passed++
			}
		}
		fmt.Fprintf(w, "%6d  %-20s  %-6s  %6.2f  %5s  %s\n",
			e.Sequence, formatTime(e.Timestamp), e.Model, e.OverallScore(),
			fmt.Sprintf("%d/%d", passed, len(e.Verdicts)), shortText(e.SentenceText, 60))
	}
}

// #endregion history

// #region trend

func newTrendCommand(opts *rootOptions) *cobra.Command {
	var (
		rf      rangeFlags
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "trend [criterion]",
		Short: "Show how one criterion, or the overall score, moved over time",
		Long: `Prints one point per recorded entry in the range. With a criterion id
each point carries the verdict and the cumulative pass rate so far; without
one it prints the overall score of every entry.

The range defaults to the last seven days.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := rf.timeRange(time.Now())
			if err != nil {
				return err
			}
			reg, err := opts.cfg.Registry()
			if err != nil {
				return err
			}
			h, err := openHistory(opts.cfg)
			if err != nil {
				return err
			}
			defer h.Close()

			agg := metrics.New(h.store, reg)
			w := cmd.OutOrStdout()

			if len(args) == 0 {
				scores, err := agg.Scores(cmd.Context(), tr)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(w, nonNil(scores))
				}
				fmt.Fprintf(w, "%6s  %-20s  %6s\n", "Seq", "Time", "Score")
				fmt.Fprintf(w, "%6s+-%-20s+-%6s\n", "------", "--------------------", "------")
				for _, p := range scores {
					fmt.Fprintf(w, "%6d  %-20s  %6.2f\n", p.Sequence, formatTime(p.Timestamp), p.Score)
				}
				return nil
			}

			points, err := agg.Trend(cmd.Context(), args[0], tr)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(w, nonNil(points))
			}
			fmt.Fprintf(w, "%6s  %-20s  %-4s  %6s  %9s\n", "Seq", "Time", "Pass", "Rating", "Pass Rate")
			fmt.Fprintf(w, "%6s+-%-20s+-%-4s+-%6s+-%9s\n", "------", "--------------------", "----", "------", "---------")
			for _, p := range points {
				pass := "no"
				if p.Passed {
					pass = "yes"
				}
				fmt.Fprintf(w, "%6d  %-20s  %-4s  %6d  %8.0f%%\n",
					p.Sequence, formatTime(p.Timestamp), pass, p.Rating, p.PassRate*100)
			}
			return nil
		},
	}
	rf.register(cmd, "168h")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON instead of a table")
	return cmd
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// #endregion trend

// #region summary

type summaryOutput struct {
	metrics.Summary
	PassRates    []metrics.RulePassRate `json:"passRates"`
	AttemptKinds map[string]int         `json:"attemptKinds"`
}

func newSummaryCommand(opts *rootOptions) *cobra.Command {
	var (
		rf      rangeFlags
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize scores, per-criterion pass rates and adapter outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := rf.timeRange(time.Now())
			if err != nil {
				return err
			}
			reg, err := opts.cfg.Registry()
			if err != nil {
				return err
			}
			h, err := openHistory(opts.cfg)
			if err != nil {
				return err
			}
			defer h.Close()

			ctx := cmd.Context()
			agg := metrics.New(h.store, reg)
			sum, err := agg.Summary(ctx, tr)
			if err != nil {
				return err
			}
			rates, err := agg.PassRates(ctx, tr)
			if err != nil {
				return err
			}
			kinds, err := h.attempts.KindCounts(ctx, tr.From)
			if err != nil {
				return err
			}
			out := summaryOutput{Summary: sum, PassRates: rates, AttemptKinds: kinds}

			w := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(w, out)
			}
			printSummary(w, out)
			return nil
		},
	}
	rf.register(cmd, "")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON instead of a table")
	return cmd
}

func printSummary(w io.Writer, out summaryOutput) {
	s := out.Summary
	fmt.Fprintf(w, "Entries:        %d\n", s.Total)
	if s.Total == 0 {
		return
	}
	fmt.Fprintf(w, "Range:          %s .. %s\n", formatTime(s.First), formatTime(s.Last))
	fmt.Fprintf(w, "Average score:  %.2f\n", s.AverageScore)
	fmt.Fprintf(w, "Average rating: %.2f\n", s.AverageRating)
	if s.Best != nil {
		fmt.Fprintf(w, "Best:           %.2f  #%d %s\n", s.BestScore, s.Best.Sequence, shortText(s.Best.SentenceText, 50))
	}
	if s.Worst != nil {
		fmt.Fprintf(w, "Worst:          %.2f  #%d %s\n", s.WorstScore, s.Worst.Sequence, shortText(s.Worst.SentenceText, 50))
	}
	for _, m := range eval.ModelChoices {
		if n := s.ByModel[m]; n > 0 {
			fmt.Fprintf(w, "  %-6s %d\n", m, n)
		}
	}

	fmt.Fprintf(w, "\n%-22s  %9s  %6s  %6s\n", "Criterion", "Evaluated", "Rate", "Rating")
	fmt.Fprintf(w, "%-22s+-%9s+-%6s+-%6s\n", "----------------------", "---------", "------", "------")
	for _, r := range out.PassRates {
		if r.Evaluated == 0 {
			continue
		}
		fmt.Fprintf(w, "%-22s  %9d  %5.0f%%  %6.2f\n", r.CriterionID, r.Evaluated, r.Rate*100, r.MeanRating)
	}

	if len(out.AttemptKinds) > 0 {
		fmt.Fprintf(w, "\nAdapter calls:\n")
		kinds := make([]string, 0, len(out.AttemptKinds))
		for k := range out.AttemptKinds {
			kinds = append(kinds, k)
		}
		slices.Sort(kinds)
		for _, k := range kinds {
			fmt.Fprintf(w, "  %-26s %d\n", k, out.AttemptKinds[k])
		}
	}
}

// #endregion summary

// #region batches

type batchRow struct {
	ID        string `json:"id"`
	Model     string `json:"model"`
	Sentences int    `json:"sentences"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Canceled  int    `json:"canceled"`
	Attempts  int    `json:"attempts"`
	Note      string `json:"note,omitempty"`
	StartedAt string `json:"started_at"`
	Elapsed   string `json:"elapsed"`
}

func newBatchesCommand(opts *rootOptions) *cobra.Command {
	var (
		last    int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List recent evaluate runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHistory(opts.cfg)
			if err != nil {
				return err
			}
			defer h.Close()

			runs, err := h.audit.Recent(cmd.Context(), last)
			if err != nil {
				return err
			}
			rows := make([]batchRow, len(runs))
			for i, r := range runs {
				rows[i] = toBatchRow(r)
			}

			w := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(w, rows)
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no batches found")
				return nil
			}
			fmt.Fprintf(w, "%-12s  %-6s  %5s  %5s  %5s  %5s  %8s  %-20s  %s\n",
				"Batch", "Model", "Sent", "OK", "Fail", "Canc", "Attempts", "Started", "Elapsed")
			fmt.Fprintf(w, "%-12s+-%-6s+-%5s+-%5s+-%5s+-%5s+-%8s+-%-20s+-%s\n",
				"------------", "------", "-----", "-----", "-----", "-----", "--------", "--------------------", "--------")
			for _, r := range rows {
				fmt.Fprintf(w, "%-12s  %-6s  %5d  %5d  %5d  %5d  %8d  %-20s  %s\n",
					shortID(r.ID), r.Model, r.Sentences, r.Succeeded, r.Failed, r.Canceled, r.Attempts, r.StartedAt, r.Elapsed)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "Show the N most recent batches")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON instead of a table")
	return cmd
}

func toBatchRow(r logging.BatchRun) batchRow {
	return batchRow{
		ID:        r.ID,
		Model:     r.Model,
		Sentences: r.Sentences,
		Succeeded: r.Succeeded,
		Failed:    r.Failed,
		Canceled:  r.Canceled,
		Attempts:  r.Attempts,
		Note:      r.Note,
		StartedAt: formatTime(r.StartedAt),
		Elapsed:   r.Duration().Round(time.Millisecond).String(),
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// #endregion batches
