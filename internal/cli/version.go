package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X github.com/roach88/sagacheck/internal/cli.Version=v1.2.3".
var Version = "dev"

// VersionInfo is the JSON payload of the version command.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	GoVersion string `json:"go_version"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print the sagacheck version",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			info := versionInfo()
			if formatter.Format == "json" {
				return formatter.Success(info)
			}
			line := "sagacheck " + info.Version
			if info.Commit != "" {
				line += " (" + info.Commit + ")"
			}
			fmt.Fprintf(formatter.Writer, "%s %s\n", line, info.GoVersion)
			return nil
		},
	}
}

func versionInfo() VersionInfo {
	info := VersionInfo{Version: Version, GoVersion: runtime.Version()}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 12 {
				info.Commit = s.Value[:12]
			}
		}
	}
	return info
}
