package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/sentence-eval/internal/state"
)

// #region clear

func newClearCommand(opts *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded evaluation",
		Long: `Deletes the evaluation history. Sequence numbers are not reused:
the next evaluation continues from the highest number ever assigned.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear history without --yes")
			}
			h, err := openHistory(opts.cfg)
			if err != nil {
				return err
			}
			defer h.Close()

			n, err := h.store.Count(cmd.Context())
			if err != nil {
				return err
			}
			if err := h.store.Clear(cmd.Context()); err != nil {
				return err
			}
			opts.logger.Info("history cleared", zap.Int("entries", n), zap.String("db", opts.cfg.DBPath))
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d entries\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}

// #endregion clear

// #region export

func newExportCommand(opts *rootOptions) *cobra.Command {
	var (
		rf  rangeFlags
		out string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the history as JSON lines",
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

			var w io.Writer = cmd.OutOrStdout()
			var file *os.File
			if out != "" && out != "-" {
				if file, err = os.Create(out); err != nil {
					return fmt.Errorf("create export: %w", err)
				}
				defer file.Close()
				w = file
			}

			n, err := state.WriteJSONL(w, h.store.Query(cmd.Context(), tr))
			if err != nil {
				return err
			}
			opts.logger.Info("history exported", zap.Int("entries", n), zap.String("out", out))
			if file == nil {
				return nil
			}
			if err := file.Close(); err != nil {
				return fmt.Errorf("close export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d entries to %s\n", n, out)
			return nil
		},
	}
	rf.register(cmd, "")
	cmd.Flags().StringVarP(&out, "out", "o", "", `Output file (default stdout, "-" also means stdout)`)
	return cmd
}

// #endregion export

// #region import

func newImportCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Append entries from a JSON lines export",
		Long: `Re-records every entry of an export file. Entries keep their
timestamps, verdicts and corrections but receive new sequence numbers.
Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open import: %w", err)
				}
				defer f.Close()
				r = f
			}

			h, err := openHistory(opts.cfg)
			if err != nil {
				return err
			}
			defer h.Close()

			n, err := h.store.Import(cmd.Context(), r)
			if err != nil {
				return fmt.Errorf("import stopped after %d entries: %w", n, err)
			}
			opts.logger.Info("history imported", zap.Int("entries", n), zap.String("from", args[0]))
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d entries\n", n)
			return nil
		},
	}
	return cmd
}

// #endregion import
