package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/stormalone/reedline/pkg/config"
	histerrors "github.com/stormalone/reedline/pkg/errors"
	"github.com/stormalone/reedline/pkg/history"
)

// sessionCmd groups session commands
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage shell sessions",
	Long: `Manage the session ids that group commands recorded by one shell.

Allocate an id when a shell starts and pass it to 'rlhist record --session'.`,
}

// sessionNewCmd allocates a session id
var sessionNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Allocate a new session id",
	Long: `Allocate a session id greater than any used or allocated before and print it.

Examples:
  export RLHIST_SESSION=$(rlhist session new)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd, func(ctx context.Context, cfg *config.Config, h *Store) error {
			return runSessionNew(ctx, cmd.OutOrStdout(), cfg, h)
		})
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionNewCmd)
}

func runSessionNew(ctx context.Context, out io.Writer, cfg *config.Config, h *Store) error {
	id, err := histerrors.RetryWithResult(ctx, retryConfig(cfg), func() (history.SessionID, error) {
		return h.NewSessionID(ctx)
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, id)
	return nil
}
