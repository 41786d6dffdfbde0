package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/stormalone/reedline/pkg/config"
	"github.com/stormalone/reedline/pkg/history"
)

var (
	timelineOpts   searchOptions
	timelineOutput string
	timelineTitle  string
)

// timelineCmd renders a markdown timeline
var timelineCmd = &cobra.Command{
	Use:   "timeline [text]",
	Short: "Render matching commands as a markdown timeline",
	Long: `Render the matching commands, oldest first, as a markdown timeline grouped by
day with a summary of success rate and total duration.

Examples:
  rlhist timeline --session 12
  rlhist timeline --since 2025-01-06 --until 2025-01-10 --output week.md`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd, func(ctx context.Context, _ *config.Config, h *Store) error {
			out := cmd.OutOrStdout()
			if timelineOutput != "" {
				f, err := os.Create(timelineOutput)
				if err != nil {
					return errors.Wrapf(err, "failed to create %s", timelineOutput)
				}
				defer f.Close()
				out = f
			}
			return runTimeline(ctx, out, h, &timelineOpts, firstArg(args), timelineTitle)
		})
	},
}

func init() {
	rootCmd.AddCommand(timelineCmd)

	timelineOpts.addFlags(timelineCmd.Flags(), false, 200)
	timelineCmd.Flags().StringVarP(&timelineOutput, "output", "o", "", "Write the timeline to a file instead of stdout")
	timelineCmd.Flags().StringVar(&timelineTitle, "title", "", "Timeline title (default: the session or \"history\")")
}

func runTimeline(ctx context.Context, out io.Writer, h *Store, opts *searchOptions, text, title string) error {
	q, err := opts.query(ctx, h, text)
	if err != nil {
		return err
	}

	// Scan newest first so a limit keeps the most recent items, then
	// present them oldest first.
	items, err := h.Search(ctx, q)
	if err != nil {
		return err
	}
	slices.Reverse(items)

	if title == "" {
		title = "history"
		if opts.session != 0 {
			title = fmt.Sprintf("session %d", opts.session)
		}
	}

	_, err = io.WriteString(out, history.FormatTimeline(items, title))
	return err
}
