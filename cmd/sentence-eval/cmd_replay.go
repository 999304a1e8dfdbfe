package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/sentence-eval/internal/replay"
)

func newReplayCommand(opts *rootOptions) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "replay <fixture.json>",
		Short: "Run a scripted batch fixture and check its expected outcomes",
		Long: `Runs a fixture through the batch evaluator with a scripted adapter and
a private in-memory history. Nothing touches the network or the configured
database. Exits 1 when any expected result does not match.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := replay.LoadFixture(args[0])
			if err != nil {
				return err
			}
			reg, err := opts.cfg.Registry()
			if err != nil {
				return err
			}
			report, err := replay.Replay(cmd.Context(), f, reg, opts.logger)
			if err != nil {
				return err
			}
			mismatches := replay.Check(f, report)

			w := cmd.OutOrStdout()
			if jsonOut {
				if err := printJSON(w, report); err != nil {
					return err
				}
			} else {
				if f.Description != "" {
					fmt.Fprintf(w, "%s\n\n", f.Description)
				}
				fmt.Fprintf(w, "%4s  %-36s  %-16s  %-24s  %8s  %6s\n", "#", "Sentence", "State", "Kind", "Attempts", "Score")
				fmt.Fprintf(w, "%4s+-%-36s+-%-16s+-%-24s+-%8s+-%6s\n",
					"----", "------------------------------------", "----------------", "------------------------", "--------", "------")
				for _, r := range report.Results {
					kind := string(r.Kind)
					if kind == "" {
						kind = "-"
					}
					fmt.Fprintf(w, "%4d  %-36s  %-16s  %-24s  %8d  %6.2f\n",
						r.Index, shortText(r.Sentence, 36), r.State, kind, r.Attempts, r.Score)
				}
				s := report.Summary
				fmt.Fprintf(w, "\n%d sentences: %d succeeded, %d failed, %d recorded, %d adapter calls\n",
					s.Total, s.Succeeded, s.Failed, s.Recorded, s.AdapterCall)
			}

			if len(mismatches) == 0 {
				return nil
			}
			for _, m := range mismatches {
				fmt.Fprintf(cmd.ErrOrStderr(), "MISMATCH %s\n", m)
			}
			return &EvalFailureError{Message: fmt.Sprintf("replay: %d mismatch(es)", len(mismatches))}
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the report as JSON")
	return cmd
}
