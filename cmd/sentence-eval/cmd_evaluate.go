package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/sentence-eval/internal/eval"
	"github.com/danielpatrickdp/sentence-eval/internal/orchestrator"
)

type evaluateOptions struct {
	file       string
	model      string
	criteria   []string
	level      string
	jsonOut    bool
	metricsOut string
}

func newEvaluateCommand(opts *rootOptions) *cobra.Command {
	eo := &evaluateOptions{}

	cmd := &cobra.Command{
		Use:   "evaluate [sentence...]",
		Short: "Evaluate one or more sentences and record the results",
		Long: `Evaluates sentences against the selected criteria and appends every
success to the history.

Sentences come from the arguments and from --file (use "-" for stdin),
one per line. Blank lines are dropped. A sentence that fails does not stop
the rest of the batch; the command exits 1 when any sentence failed.`,
		Example: `  sentence-eval evaluate "The cat sat on the mat."
  sentence-eval evaluate --model pro --criteria short,no-universals -f drafts.txt
  cat drafts.txt | sentence-eval evaluate -f - --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, opts, eo, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&eo.file, "file", "f", "", `Read sentences from a file, one per line ("-" for stdin)`)
	f.StringVarP(&eo.model, "model", "m", "", "Model: flash, pro or legacy (default from config)")
	f.StringSliceVarP(&eo.criteria, "criteria", "c", nil, "Criterion ids to check (default all the backend supports)")
	f.StringVar(&eo.level, "level", "", "Feedback level: concise, detailed or comprehensive")
	f.BoolVar(&eo.jsonOut, "json", false, "Output as JSON instead of a table")
	f.StringVar(&eo.metricsOut, "metrics-out", "", "Write batch metrics in Prometheus text format to this file")
	return cmd
}

// #region run

type outcomeRow struct {
	Index      int                `json:"index"`
	Sentence   string             `json:"sentence"`
	State      string             `json:"state"`
	Attempts   int                `json:"attempts"`
	Sequence   int64              `json:"sequence,omitempty"`
	Score      *float64           `json:"score,omitempty"`
	Verdicts   []eval.RuleVerdict `json:"verdicts,omitempty"`
	Correction string             `json:"correction,omitempty"`
	Kind       string             `json:"kind,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	Missing    []string           `json:"missing_criteria,omitempty"`
}

func runEvaluate(cmd *cobra.Command, opts *rootOptions, eo *evaluateOptions, args []string) error {
	ctx := cmd.Context()
	cfg := opts.cfg

	sentences, err := collectSentences(cmd.InOrStdin(), eo.file, args)
	if err != nil {
		return err
	}
	if len(sentences) == 0 {
		return fmt.Errorf("no sentences to evaluate (pass them as arguments or with --file)")
	}

	model := cfg.ModelChoice()
	if eo.model != "" {
		if model, err = eval.ParseModelChoice(eo.model); err != nil {
			return err
		}
	}
	batchCfg := cfg.Batch
	if eo.level != "" {
		if batchCfg.Level, err = eval.ParseFeedbackLevel(eo.level); err != nil {
			return err
		}
	}

	reg, err := cfg.Registry()
	if err != nil {
		return err
	}
	selected, err := selectCriteria(reg, cfg.Backend, eo.criteria)
	if err != nil {
		return err
	}

	adapter, closer, err := newAdapter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	h, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer h.Close()

	promReg := prometheus.NewRegistry()
	ev := orchestrator.New(adapter, h.store, batchCfg,
		orchestrator.WithLogger(opts.logger),
		orchestrator.WithMetrics(orchestrator.NewMetrics(promReg)),
		orchestrator.WithAttemptLog(h.attempts),
		orchestrator.WithAudit(h.audit),
	)
	outcomes, err := ev.Evaluate(ctx, sentences, selected, model)
	if err != nil {
		return err
	}

	if eo.metricsOut != "" {
		if err := prometheus.WriteToTextfile(eo.metricsOut, promReg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	rows := make([]outcomeRow, len(outcomes))
	failed := 0
	for i, o := range outcomes {
		rows[i] = toOutcomeRow(o)
		if !o.OK() {
			failed++
		}
	}

	w := cmd.OutOrStdout()
	if eo.jsonOut {
		if err := printJSON(w, rows); err != nil {
			return err
		}
	} else {
		printOutcomes(w, rows)
	}

	if failed > 0 {
		return &EvalFailureError{
			Message: fmt.Sprintf("%d of %d sentence(s) failed", failed, len(outcomes)),
		}
	}
	return nil
}

func toOutcomeRow(o orchestrator.Outcome) outcomeRow {
	r := outcomeRow{
		Index:    o.Index,
		Sentence: o.Sentence,
		State:    string(o.State),
		Attempts: o.Attempts,
	}
	if o.Entry != nil {
		score := o.Entry.OverallScore()
		r.Sequence = o.Entry.Sequence
		r.Score = &score
		r.Verdicts = o.Entry.Verdicts
		r.Correction = o.Entry.Correction
	}
	if o.Err != nil {
		r.Kind = string(o.Err.Kind)
		r.Reason = o.Err.Reason
		r.Missing = o.Err.Criteria
	}
	return r
}

func printOutcomes(w io.Writer, rows []outcomeRow) {
	fmt.Fprintf(w, "%4s  %-40s  %-16s  %8s  %6s  %s\n", "#", "Sentence", "State", "Attempts", "Score", "Detail")
	fmt.Fprintf(w, "%4s+-%-40s+-%-16s+-%8s+-%6s+-%s\n",
		"----", "----------------------------------------", "----------------", "--------", "------", "--------------------")
	for _, r := range rows {
		score := "-"
		if r.Score != nil {
			score = fmt.Sprintf("%.2f", *r.Score)
		}
		detail := ""
		switch {
		case r.Kind != "":
			detail = r.Kind + ": " + r.Reason
		case r.Sequence > 0:
			detail = fmt.Sprintf("seq %d", r.Sequence)
		}
		fmt.Fprintf(w, "%4d  %-40s  %-16s  %8d  %6s  %s\n",
			r.Index, shortText(r.Sentence, 40), r.State, r.Attempts, score, detail)
	}

	for _, r := range rows {
		if len(r.Verdicts) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n[%d] %s\n", r.Index, r.Sentence)
		for _, v := range r.Verdicts {
			mark := "FAIL"
			if v.Passed {
				mark = "pass"
			}
			fmt.Fprintf(w, "  %-4s  %-22s  %d/5", mark, v.CriterionID, v.Rating)
			if v.Suggestion != "" {
				fmt.Fprintf(w, "  %s", v.Suggestion)
			}
			fmt.Fprintln(w)
		}
		if r.Correction != "" {
			fmt.Fprintf(w, "  corrected: %s\n", r.Correction)
		}
	}
}

// #endregion run

// #region input

// collectSentences gathers sentences from args and the optional file, in
// that order.
func collectSentences(stdin io.Reader, file string, args []string) ([]string, error) {
	var out []string
	for _, a := range args {
		lines, err := splitSentences(strings.NewReader(a))
		if err != nil {
			return nil, err
		}
		out = append(out, lines...)
	}

	var r io.Reader
	switch file {
	case "":
		return out, nil
	case "-":
		r = stdin
	default:
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open sentences: %w", err)
		}
		defer f.Close()
		r = f
	}
	lines, err := splitSentences(r)
	if err != nil {
		return nil, err
	}
	return append(out, lines...), nil
}

// splitSentences reads one sentence per line, trimmed, dropping blanks.
func splitSentences(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read sentences: %w", err)
	}
	return out, nil
}

// #endregion input
