package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sagacheck/internal/report"
)

// VerifyResult is the JSON payload of "report verify".
type VerifyResult struct {
	Valid  bool                     `json:"valid"`
	Errors []report.ValidationError `json:"errors,omitempty"`
}

// NewReportCommand creates the report command and its subcommands.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect JSON report artifacts",
		Long: `Inspect report artifacts written by "sagacheck run --report".

Subcommands:
  show    re-render an artifact as the console summary
  verify  check an artifact against the artifact schema`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newReportShowCommand(rootOpts))
	cmd.AddCommand(newReportVerifyCommand(rootOpts))

	return cmd
}

func newReportShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <artifact>",
		Short: "Render an artifact as text",
		Long: `Render a JSON report artifact the way the console showed the run:
group headers, one line per step and the summary block.

Example:
  sagacheck report show out/report.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportShow(rootOpts, args[0], cmd)
		},
	}
}

func runReportShow(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	artifact, err := report.ReadArtifact(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReport, fmt.Sprintf("cannot read artifact %s", path), err)
	}

	if formatter.Format == "json" {
		return formatter.Success(artifact)
	}
	artifact.WriteText(formatter.Writer)
	return nil
}

func newReportVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <artifact>",
		Short: "Validate an artifact against the schema",
		Long: `Validate a JSON report artifact against the embedded CUE schema and
check that its summary agrees with its detailed results.

Example:
  sagacheck report verify out/report.json

Exit codes:
  0  artifact is valid
  1  artifact violates the schema or is inconsistent
  2  artifact could not be read`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportVerify(rootOpts, args[0], cmd)
		},
	}
}

func runReportVerify(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	data, err := os.ReadFile(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("cannot read artifact %s", path), err)
	}
	formatter.VerboseLog("Validating %s (%d bytes)", path, len(data))

	problems := report.ValidateArtifact(data)
	if len(problems) == 0 {
		if formatter.Format == "json" {
			return formatter.Success(VerifyResult{Valid: true})
		}
		fmt.Fprintln(formatter.Writer, "✓ Artifact valid")
		return nil
	}

	failure := NewExitError(ExitFailure, fmt.Sprintf("artifact invalid with %d error(s)", len(problems)))
	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   VerifyResult{Valid: false, Errors: problems},
			Error:  &CLIError{Code: problems[0].Code, Message: problems[0].Message},
		}); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Artifact invalid")
	fmt.Fprintln(formatter.Writer)
	for _, p := range problems {
		if p.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", p.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", p.Code, p.Field, p.Message)
	}
	return failure
}
