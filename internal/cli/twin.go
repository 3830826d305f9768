package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/sagacheck/internal/twin"
)

// TwinOptions holds flags for the twin command.
type TwinOptions struct {
	*RootOptions
	Addr              string
	Secret            string
	ClubEvents        bool
	CreatorEvents     bool
	StatsDeniedStatus int

	// Ready, if set, receives the API base URL once the listener is bound (for testing).
	Ready func(baseURL string)
}

// NewTwinCommand creates the twin command.
func NewTwinCommand(rootOpts *RootOptions) *cobra.Command {
	return newTwinCommand(&TwinOptions{RootOptions: rootOpts})
}

func newTwinCommand(opts *TwinOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "twin",
		Short: "Serve an in-memory Moto Saga API for local runs",
		Long: `Serve an in-memory twin of the Moto Saga API under /api.

The twin implements the endpoint contract the suites check: bearer tokens,
roles, ownership, like/RSVP toggles, event capacity and admin routes. State
lives in memory and is lost on exit. Unsettled policies are flags.

Examples:
  sagacheck twin --addr :3000
  sagacheck run --base-url http://localhost:3000/api

  sagacheck twin --club-events --stats-denied-status 403`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTwin(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":3000", "listen address")
	cmd.Flags().StringVar(&opts.Secret, "secret", twin.DefaultSecret, "token signing secret")
	cmd.Flags().BoolVar(&opts.ClubEvents, "club-events", false, "allow club accounts to create events")
	cmd.Flags().BoolVar(&opts.CreatorEvents, "creator-events", false, "allow creator accounts to create events")
	cmd.Flags().IntVar(&opts.StatsDeniedStatus, "stats-denied-status", http.StatusUnauthorized, "status returned to non-admins on /admin/stats")

	return cmd
}

func runTwin(opts *TwinOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	if opts.StatsDeniedStatus != http.StatusUnauthorized && opts.StatsDeniedStatus != http.StatusForbidden {
		return formatter.Fail(ExitCommandError, ErrCodeConfig,
			fmt.Sprintf("--stats-denied-status must be 401 or 403, got %d", opts.StatsDeniedStatus), nil)
	}

	srv := twin.New(
		twin.WithLogger(logger),
		twin.WithSecret(opts.Secret),
		twin.WithPolicy(twin.Policy{
			ClubCanCreateEvents:    opts.ClubEvents,
			CreatorCanCreateEvents: opts.CreatorEvents,
			StatsDeniedStatus:      opts.StatsDeniedStatus,
		}),
	)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := srv.ListenAndServe(ctx, opts.Addr, func(addr net.Addr) {
		baseURL := "http://" + dialable(addr) + "/api"
		if formatter.Format == "json" {
			_ = formatter.Success(map[string]string{"base_url": baseURL})
		} else {
			fmt.Fprintf(formatter.Writer, "Twin serving %s\n", baseURL)
			fmt.Fprintln(formatter.Writer, "Press Ctrl-C to stop.")
		}
		if opts.Ready != nil {
			opts.Ready(baseURL)
		}
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "twin server failed", err)
	}
	return nil
}

// dialable turns a wildcard listen address into one a client can use.
func dialable(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok && tcp.IP.IsUnspecified() {
		return net.JoinHostPort("localhost", fmt.Sprint(tcp.Port))
	}
	return addr.String()
}
