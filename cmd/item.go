package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/stormalone/reedline/pkg/config"
	histerrors "github.com/stormalone/reedline/pkg/errors"
	"github.com/stormalone/reedline/pkg/history"
)

// showCmd prints one item
var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one history item",
	Long:  `Show every stored field of a history item, including its shell context.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd, func(ctx context.Context, _ *config.Config, h *Store) error {
			return runShow(ctx, cmd.OutOrStdout(), h, args[0])
		})
	},
}

// deleteCmd removes one item
var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a history item",
	Long:  `Delete a history item. Its id is never handed out again.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd, func(ctx context.Context, _ *config.Config, h *Store) error {
			return runDelete(ctx, cmd.OutOrStdout(), h, args[0])
		})
	},
}

// updateOptions holds the flags of the update command.
type updateOptions struct {
	exitStatus    int64
	exitStatusSet bool
	duration      time.Duration
	durationSet   bool
}

var updateOpts updateOptions

// updateCmd completes an item after its command finished
var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Set the exit status or duration of an item",
	Long: `Update a recorded item once its command has finished.

Examples:
  rlhist update 42 --exit-status $? --duration 1.2s`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		updateOpts.exitStatusSet = cmd.Flags().Changed("exit-status")
		updateOpts.durationSet = cmd.Flags().Changed("duration")
		return withHistory(cmd, func(ctx context.Context, cfg *config.Config, h *Store) error {
			return runUpdate(ctx, cfg, h, &updateOpts, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().Int64Var(&updateOpts.exitStatus, "exit-status", 0, "Exit status of the command")
	updateCmd.Flags().DurationVar(&updateOpts.duration, "duration", 0, "How long the command ran (e.g. 1.5s)")
}

// resolveItem parses and resolves a user supplied item id.
func resolveItem(ctx context.Context, h *Store, raw string) (history.ItemID, error) {
	n, err := parseID(raw)
	if err != nil {
		return history.ItemID{}, err
	}
	return h.ResolveItemID(ctx, n)
}

func runShow(ctx context.Context, out io.Writer, h *Store, raw string) error {
	id, err := resolveItem(ctx, h, raw)
	if err != nil {
		return err
	}

	item, err := h.Load(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "ID:        %s\n", item.ID)
	fmt.Fprintf(out, "Command:   %s\n", item.CommandLine)
	if item.StartTimestamp != nil {
		fmt.Fprintf(out, "Started:   %s\n", item.StartTimestamp.Local().Format(time.RFC3339))
	}
	if item.Duration != nil {
		fmt.Fprintf(out, "Duration:  %s\n", formatDuration(*item.Duration))
	}
	if item.ExitStatus != nil {
		fmt.Fprintf(out, "Exit:      %d\n", *item.ExitStatus)
	}
	if item.SessionID != nil {
		fmt.Fprintf(out, "Session:   %s\n", item.SessionID)
	}
	if item.Hostname != nil {
		fmt.Fprintf(out, "Hostname:  %s\n", *item.Hostname)
	}
	if item.Cwd != nil {
		fmt.Fprintf(out, "Directory: %s\n", *item.Cwd)
	}
	if item.MoreInfo != nil {
		b, err := json.Marshal(item.MoreInfo)
		if err != nil {
			return histerrors.NewSerializationError("show", "could not encode shell context", err)
		}
		fmt.Fprintf(out, "Context:   %s\n", b)
	}
	return nil
}

func runDelete(ctx context.Context, out io.Writer, h *Store, raw string) error {
	id, err := resolveItem(ctx, h, raw)
	if err != nil {
		return err
	}

	if err := h.Delete(ctx, id); err != nil {
		return err
	}

	fmt.Fprintf(out, "Deleted item %s\n", id)
	return nil
}

func runUpdate(ctx context.Context, cfg *config.Config, h *Store, opts *updateOptions, raw string) error {
	if !opts.exitStatusSet && !opts.durationSet {
		return histerrors.New("nothing to update: pass --exit-status and/or --duration")
	}

	id, err := resolveItem(ctx, h, raw)
	if err != nil {
		return err
	}

	return histerrors.Retry(ctx, retryConfig(cfg), func() error {
		return h.Update(ctx, id, func(item history.Item[ShellContext]) history.Item[ShellContext] {
			if opts.exitStatusSet {
				item.ExitStatus = history.Ptr(opts.exitStatus)
			}
			if opts.durationSet {
				item.Duration = history.Ptr(opts.duration)
			}
			return item
		})
	})
}
