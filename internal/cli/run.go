package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sagacheck/internal/apiclient"
	"github.com/roach88/sagacheck/internal/config"
	"github.com/roach88/sagacheck/internal/harness"
	"github.com/roach88/sagacheck/internal/report"
	"github.com/roach88/sagacheck/internal/store"
	"github.com/roach88/sagacheck/internal/suite"
)

// RunOptions holds flags for the run command. Flags left unset keep the
// value resolved from the config file and environment.
type RunOptions struct {
	*RootOptions
	Suite   string
	BaseURL string
	Timeout time.Duration
	Delay   time.Duration
	Report  string
	History string

	// IDGenerator and Clock override the run id source and wall clock (for testing).
	IDGenerator harness.IDGenerator
	Clock       harness.Clock
}

// RunOutput is the JSON payload of the run command.
type RunOutput struct {
	Artifact   *report.Artifact `json:"artifact"`
	ReportPath string           `json:"report_path,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run conformance suites against a Moto Saga API",
		Long: `Run one or more conformance suites against a live Moto Saga API.

Steps run strictly in order. Each step's outcome is printed as it completes,
followed by a summary. With --report the JSON artifact is written for CI;
with --history every result is also recorded in a SQLite database.

Examples:
  sagacheck run
  sagacheck run --suite admin --base-url https://staging.example.com/api
  sagacheck run --suite all --report out/report.json --history sagacheck.db

Exit codes:
  0    no critical step failed
  1    at least one critical step failed
  2    configuration or command error
  130  interrupted; the partial report is still written`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuites(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Suite, "suite", "s", "", "suites to run: platform|admin|seed|invariants|all (comma separated)")
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "API base URL (default "+config.DefaultBaseURL+")")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-request timeout (default "+config.DefaultTimeout.String()+")")
	cmd.Flags().DurationVar(&opts.Delay, "delay", 0, "pause between steps")
	cmd.Flags().StringVarP(&opts.Report, "report", "o", "", "write the JSON artifact to this path")
	cmd.Flags().StringVar(&opts.History, "history", "", "record results in this SQLite database")

	return cmd
}

// applyFlags overlays explicitly set flags onto cfg.
func (o *RunOptions) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("suite") {
		cfg.Suite = o.Suite
	}
	if flags.Changed("base-url") {
		cfg.BaseURL = o.BaseURL
	}
	if flags.Changed("timeout") {
		cfg.Timeout = o.Timeout
	}
	if flags.Changed("delay") {
		cfg.Delay = o.Delay
	}
	if flags.Changed("report") {
		cfg.Report = o.Report
	}
	if flags.Changed("history") {
		cfg.History = o.History
	}
}

func runSuites(opts *RunOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	opts.applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	suites, err := suite.Resolve(cfg.Suite)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeSuite, "invalid suite selection", err)
	}

	client := apiclient.New(cfg.BaseURL,
		apiclient.WithTimeout(cfg.Timeout),
		apiclient.WithLogger(logger),
	)
	runnerOpts := []harness.RunnerOption{
		harness.WithLogger(logger),
		harness.WithDelay(cfg.Delay),
		harness.WithSettings(harness.Settings{Password: cfg.Password, EmailDomain: cfg.EmailDomain}),
	}
	if opts.IDGenerator != nil {
		runnerOpts = append(runnerOpts, harness.WithIDGenerator(opts.IDGenerator))
	}
	if opts.Clock != nil {
		runnerOpts = append(runnerOpts, harness.WithClock(opts.Clock))
	}

	// JSON output is a single document at the end; the streaming console
	// view is text only.
	if formatter.Format != "json" {
		runnerOpts = append(runnerOpts, harness.WithListener(report.NewConsole(cmd.OutOrStdout(), opts.Verbose)))
	}

	var recorder *store.Recorder
	if cfg.History != "" {
		st, err := store.Open(cfg.History)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeHistory, "failed to open history database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing history database", "error", closeErr)
			}
		}()
		recorder = store.NewRecorder(st, logger)
		runnerOpts = append(runnerOpts, harness.WithListener(recorder))
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := harness.NewRunner(client, runnerOpts...).Run(ctx, suites...)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeSuite, "suite could not be run", err)
	}
	if recorder != nil && recorder.Err() != nil {
		logger.Warn("run history is incomplete", "db", cfg.History, "error", recorder.Err())
	}

	artifact := report.NewArtifact(run)
	if cfg.Report != "" {
		if err := artifact.WriteFile(cfg.Report); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeReport, "failed to write report", err)
		}
		formatter.VerboseLog("Report written to %s", cfg.Report)
	}

	if err := outputRun(formatter, run, artifact, cfg.Report); err != nil {
		return err
	}
	return runExit(run, logger)
}

func outputRun(formatter *OutputFormatter, run *harness.Run, artifact *report.Artifact, reportPath string) error {
	if formatter.Format == "json" {
		resp := CLIResponse{
			Status: "ok",
			Data:   RunOutput{Artifact: artifact, ReportPath: reportPath},
			RunID:  run.ID,
		}
		if artifact.Summary.HasCriticalFailures() {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    ErrCodeCritical,
				Message: fmt.Sprintf("%d critical step(s) failed", len(artifact.Summary.CriticalFailures)),
				Details: artifact.Summary.CriticalFailures,
			}
		}
		return formatter.encode(resp)
	}

	if reportPath != "" {
		fmt.Fprintf(formatter.Writer, "Report: %s\n", reportPath)
	}
	return nil
}

// runExit maps a finished run onto the process exit code.
func runExit(run *harness.Run, logger *slog.Logger) error {
	if run.Interrupted {
		logger.Warn("run interrupted", "run_id", run.ID, "results", len(run.Results))
		return NewExitError(ExitInterrupted, "run interrupted")
	}
	if s := run.Summary(); s.HasCriticalFailures() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d critical step(s) failed", len(s.CriticalFailures)))
	}
	return nil
}
