package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/stormalone/reedline/pkg/config"
)

// infoCmd shows database information
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show history database information",
	Long:  `Display information about the history database including its location, size and statistics.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd, func(ctx context.Context, _ *config.Config, h *Store) error {
			return runInfo(ctx, cmd.OutOrStdout(), h)
		})
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(ctx context.Context, out io.Writer, h *Store) error {
	if err := h.Sync(ctx); err != nil {
		return err
	}

	info, err := h.Info(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "History Database Information")
	fmt.Fprintln(out, "============================")

	fmt.Fprintf(out, "Path: %s\n", info.Path)
	if !info.ModifiedAt.IsZero() {
		fmt.Fprintf(out, "Size: %s\n", humanize.Bytes(uint64(info.SizeBytes)))
		fmt.Fprintf(out, "Modified: %s (%s)\n", info.ModifiedAt.Format("2006-01-02 15:04:05"), humanize.Time(info.ModifiedAt))
	}
	fmt.Fprintf(out, "Journal mode: %s\n", info.JournalMode)
	fmt.Fprintf(out, "Commands: %d\n", info.Items)
	fmt.Fprintf(out, "Sessions: %d\n", info.Sessions)

	return nil
}
