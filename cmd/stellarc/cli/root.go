package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// ExitError carries a non-zero process exit code out of a command.
type ExitError struct {
	Code int
}

func (e ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

func exit(code int) error {
	if code == 0 {
		return nil
	}
	return ExitError{Code: code}
}

// Deps opens the resources commands need. Each opener is called only by the
// command that uses it, so the server never opens CLI-only clients.
type Deps struct {
	Serve func(ctx context.Context) error
	Roles func(ctx context.Context) (RoleStore, func(), error)
	Jobs  func() *JobsCLI
}

// NewRootCommand builds the stellarc command tree. Running it without a
// subcommand starts the HTTP server.
func NewRootCommand(deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "stellarc",
		Short:         "Admin agent API server and operator tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return deps.Serve(cmd.Context())
		},
	}
	root.AddCommand(newRoleCommand(deps), newJobsCommand(deps))
	return root
}

func newRoleCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Grant or revoke roles directly in the database",
	}
	var jsonOutput bool
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")

	build := func(use, short string, grant bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <user-id> <role>",
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, closeFn, err := deps.Roles(cmd.Context())
				if err != nil {
					return err
				}
				defer closeFn()
				ops, err := NewRoleOpsCLI(store)
				if err != nil {
					return err
				}
				opts := RoleOptions{
					UserID:     args[0],
					Role:       args[1],
					JSONOutput: jsonOutput,
					Stdout:     cmd.OutOrStdout(),
					Stderr:     cmd.ErrOrStderr(),
				}
				if grant {
					return exit(ops.GrantCommand(cmd.Context(), opts))
				}
				return exit(ops.RevokeCommand(cmd.Context(), opts))
			},
		}
	}
	cmd.AddCommand(
		build("grant", "Assign a role to a user", true),
		build("revoke", "Remove a role from a user", false),
	)
	return cmd
}

func newJobsCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}

	var olderThan time.Duration
	scan := &cobra.Command{
		Use:   "scan",
		Short: "Enqueue a stale automation log scan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ops := deps.Jobs()
			defer func() { _ = ops.Close() }()
			return exit(ops.ScanCommand(cmd.Context(), ScanOptions{
				OlderThan: olderThan,
				Stdout:    cmd.OutOrStdout(),
				Stderr:    cmd.ErrOrStderr(),
			}))
		},
	}
	scan.Flags().DurationVar(&olderThan, "older-than", 0, "override the stale threshold (default: worker setting)")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print default queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ops := deps.Jobs()
			defer func() { _ = ops.Close() }()
			return exit(ops.StatsCommand(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr()))
		},
	}

	cmd.AddCommand(scan, stats)
	return cmd
}
