package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sagacheck/internal/suite"
)

// NewSuitesCommand creates the suites command.
func NewSuitesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suites",
		Short: "List the available suites",
		Long: `List the registered conformance suites with their step counts.

Any name below (or "all") can be passed to "sagacheck run --suite".`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuitesList(rootOpts, cmd)
		},
	}

	return cmd
}

func runSuitesList(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	infos := suite.List()

	if formatter.Format == "json" {
		return formatter.Success(infos)
	}

	width := len(suite.All)
	for _, info := range infos {
		width = max(width, len(info.Name))
	}
	total := 0
	for _, info := range infos {
		fmt.Fprintf(formatter.Writer, "%-*s  %3d steps  %s\n", width, info.Name, info.Steps, info.Description)
		total += info.Steps
	}
	fmt.Fprintf(formatter.Writer, "%-*s  %3d steps  every suite above, in order\n", width, suite.All, total)
	return nil
}
