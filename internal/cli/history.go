package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sagacheck/internal/config"
	"github.com/roach88/sagacheck/internal/report"
	"github.com/roach88/sagacheck/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	Step     string
	Run      string
}

// RunSummary is one past run in history output.
type RunSummary struct {
	ID               string   `json:"id"`
	Suite            string   `json:"suite"`
	BaseURL          string   `json:"base_url"`
	StartedAt        string   `json:"started_at"`
	FinishedAt       string   `json:"finished_at,omitempty"`
	Interrupted      bool     `json:"interrupted"`
	Total            int      `json:"total"`
	Passed           int      `json:"passed"`
	Failed           int      `json:"failed"`
	SuccessRate      float64  `json:"success_rate"`
	CriticalFailures []string `json:"critical_failures"`
}

// StepOutcome is one past result of a single step.
type StepOutcome struct {
	RunID     string `json:"run_id"`
	StartedAt string `json:"started_at"`
	Success   bool   `json:"success"`
	Kind      string `json:"kind,omitempty"`
	Status    int    `json:"status,omitempty"`
	Message   string `json:"message"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past runs from the history database",
		Long: `Show runs recorded with "sagacheck run --history".

Without flags, lists the most recent runs. --step shows how one step fared
across runs; --run re-renders every result of one run.

Examples:
  sagacheck history --db sagacheck.db
  sagacheck history --db sagacheck.db --step "Admin Stats Access"
  sagacheck history --db sagacheck.db --run 01912f3e-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite history database (default: history from config)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum entries to show (0 for all)")
	cmd.Flags().StringVar(&opts.Step, "step", "", "show the results of one step across runs")
	cmd.Flags().StringVar(&opts.Run, "run", "", "show every result of one run")
	cmd.MarkFlagsMutuallyExclusive("step", "run")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	path := opts.Database
	if path == "" {
		cfg, err := config.Load(opts.Config)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
		}
		path = cfg.History
	}
	if path == "" {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "no history database: pass --db or set history in the config file", nil)
	}
	// Open would create an empty database; a typo should not.
	if _, err := os.Stat(path); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("history database %s not found", path), err)
	}

	st, err := store.Open(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeHistory, "failed to open history database", err)
	}
	defer st.Close()

	switch {
	case opts.Run != "":
		return showRun(formatter, st, cmd, opts.Run)
	case opts.Step != "":
		return showStep(formatter, st, cmd, opts.Step, opts.Limit)
	default:
		return listRuns(formatter, st, cmd, opts.Limit)
	}
}

func listRuns(formatter *OutputFormatter, st *store.Store, cmd *cobra.Command, limit int) error {
	records, err := st.ListRuns(cmd.Context(), limit)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeHistory, "failed to list runs", err)
	}

	runs := make([]RunSummary, 0, len(records))
	for _, rec := range records {
		runs = append(runs, summarizeRecord(rec))
	}
	if formatter.Format == "json" {
		return formatter.Success(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded")
		return nil
	}
	for _, r := range runs {
		state := ""
		switch {
		case r.Interrupted:
			state = " (interrupted)"
		case r.FinishedAt == "":
			state = " (unfinished)"
		}
		fmt.Fprintf(formatter.Writer, "%s  %s  %-20s %d/%d passed (%.1f%%), %d critical%s\n",
			r.StartedAt, r.ID, r.Suite, r.Passed, r.Total, r.SuccessRate, len(r.CriticalFailures), state)
	}
	return nil
}

func showStep(formatter *OutputFormatter, st *store.Store, cmd *cobra.Command, step string, limit int) error {
	records, err := st.StepHistory(cmd.Context(), step, limit)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeHistory, "failed to read step history", err)
	}
	if len(records) == 0 {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("step %q has no recorded results", step), nil)
	}

	outcomes := make([]StepOutcome, 0, len(records))
	for _, rec := range records {
		outcomes = append(outcomes, StepOutcome{
			RunID:     rec.RunID,
			StartedAt: rec.StartedAt.UTC().Format(report.TimeFormat),
			Success:   rec.Result.Success,
			Kind:      string(rec.Result.Kind),
			Status:    rec.Result.Status,
			Message:   rec.Result.Message,
		})
	}
	if formatter.Format == "json" {
		return formatter.Success(outcomes)
	}

	fmt.Fprintf(formatter.Writer, "%s\n", step)
	for _, o := range outcomes {
		verdict := "PASS"
		if !o.Success {
			verdict = "FAIL"
		}
		fmt.Fprintf(formatter.Writer, "  %s  %s  %s  %d  %s\n", o.StartedAt, o.RunID, verdict, o.Status, o.Message)
	}
	return nil
}

func showRun(formatter *OutputFormatter, st *store.Store, cmd *cobra.Command, id string) error {
	run, err := st.ReadRun(cmd.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run %s not found", id), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeHistory, "failed to read run", err)
	}

	artifact := report.NewArtifact(run)
	if formatter.Format == "json" {
		return formatter.Success(artifact)
	}
	artifact.WriteText(formatter.Writer)
	return nil
}

func summarizeRecord(rec store.RunRecord) RunSummary {
	r := RunSummary{
		ID:               rec.ID,
		Suite:            rec.Suite,
		BaseURL:          rec.BaseURL,
		StartedAt:        rec.StartedAt.UTC().Format(report.TimeFormat),
		Interrupted:      rec.Interrupted,
		Total:            rec.Summary.Total,
		Passed:           rec.Summary.Passed,
		Failed:           rec.Summary.Failed,
		SuccessRate:      rec.Summary.SuccessRate,
		CriticalFailures: rec.Summary.CriticalFailures,
	}
	if rec.Finished() {
		r.FinishedAt = rec.FinishedAt.UTC().Format(report.TimeFormat)
	}
	if r.CriticalFailures == nil {
		r.CriticalFailures = []string{}
	}
	return r
}
