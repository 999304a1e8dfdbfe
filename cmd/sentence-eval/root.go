package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/sentence-eval/internal/config"
	"github.com/danielpatrickdp/sentence-eval/internal/logging"
)

var version = "dev"

// rootOptions carries the persistent flags and the state built from them
// before any subcommand runs.
type rootOptions struct {
	configPath string
	dbPath     string
	backend    string
	logLevel   string
	logJSON    bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "sentence-eval",
		Short: "Evaluate sentences against linguistic criteria",
		Long: `sentence-eval checks sentences against a catalog of linguistic rules
using a Gemini model, a remote evaluator sidecar or an offline rule checker.

Every evaluated sentence is appended to a local history that backs the
trend, summary and export commands.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to a YAML config file (default $"+config.EnvConfig+")")
	flags.StringVar(&opts.dbPath, "db", "", "History database path")
	flags.StringVar(&opts.backend, "backend", "", "Evaluator backend: gemini, remote or offline")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.BoolVar(&opts.logJSON, "log-json", false, "Emit JSON logs")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return opts.init(cmd)
	}
	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if opts.logger != nil {
			_ = opts.logger.Sync()
		}
	}

	cmd.AddCommand(newCriteriaCommand(opts))
	cmd.AddCommand(newEvaluateCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newTrendCommand(opts))
	cmd.AddCommand(newSummaryCommand(opts))
	cmd.AddCommand(newBatchesCommand(opts))
	cmd.AddCommand(newClearCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newImportCommand(opts))
	cmd.AddCommand(newReplayCommand(opts))
	cmd.AddCommand(newServeCommand(opts))

	return cmd
}

// init resolves the configuration (defaults, file, environment, flags) and
// builds the logger.
func (o *rootOptions) init(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = o.dbPath
	}
	if flags.Changed("backend") {
		cfg.Backend = strings.ToLower(o.backend)
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = strings.ToLower(o.logLevel)
	}
	if flags.Changed("log-json") {
		cfg.LogJSON = o.logJSON
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	o.cfg = cfg
	o.logger = logger
	return nil
}

func execute(ctx context.Context) error {
	rootCmd := newRootCommand()
	return rootCmd.ExecuteContext(ctx)
}
