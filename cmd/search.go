package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/stormalone/reedline/pkg/config"
	"github.com/stormalone/reedline/pkg/history"
)

// searchOptions holds the filter flags shared by search, count, timeline
// and export.
type searchOptions struct {
	prefix    bool
	exact     bool
	not       string
	hostname  string
	cwd       string
	cwdPrefix string
	succeeded bool
	failed    bool
	session   int64
	since     string
	until     string
	fromID    int64
	toID      int64
	forward   bool
	limit     int64
}

// addFlags registers the filter flags on fs. --forward is offered when
// withDirection is set and --limit when defaultLimit is not negative.
func (o *searchOptions) addFlags(fs *pflag.FlagSet, withDirection bool, defaultLimit int64) {
	fs.BoolVar(&o.prefix, "prefix", false, "Match command lines starting with the text")
	fs.BoolVar(&o.exact, "exact", false, "Match the whole command line")
	fs.StringVar(&o.not, "not", "", "Exclude this exact command line")
	fs.StringVar(&o.hostname, "hostname", "", "Filter by hostname")
	fs.StringVar(&o.cwd, "cwd", "", "Filter by exact working directory")
	fs.StringVar(&o.cwdPrefix, "cwd-prefix", "", "Filter by working directory prefix")
	fs.BoolVar(&o.succeeded, "succeeded", false, "Show only commands that exited with status 0")
	fs.BoolVar(&o.failed, "failed", false, "Show only commands that exited with a non-zero status")
	fs.Int64Var(&o.session, "session", 0, "Filter by session id")
	fs.StringVar(&o.since, "since", "", "Lower time edge (YYYY-MM-DD [HH:MM], RFC3339 or duration ago)")
	fs.StringVar(&o.until, "until", "", "Upper time edge (YYYY-MM-DD [HH:MM], RFC3339 or duration ago)")
	fs.Int64Var(&o.fromID, "from-id", 0, "Start scanning after this item id (exclusive)")
	fs.Int64Var(&o.toID, "to-id", 0, "Stop scanning at this item id (inclusive)")
	if withDirection {
		fs.BoolVar(&o.forward, "forward", false, "List oldest first instead of newest first")
	}
	if defaultLimit >= 0 {
		fs.Int64Var(&o.limit, "limit", defaultLimit, "Maximum number of items (0 for no limit)")
	}
}

// query lowers the flags and the optional search text into a SearchQuery,
// resolving ids against the store.
func (o *searchOptions) query(ctx context.Context, h *Store, text string) (history.SearchQuery, error) {
	q := history.SearchQuery{Direction: history.Backward}
	if o.forward {
		q.Direction = history.Forward
	}
	if o.limit > 0 {
		q.Limit = history.Ptr(o.limit)
	}

	if o.prefix && o.exact {
		return q, errors.New("--prefix and --exact are mutually exclusive")
	}
	if o.succeeded && o.failed {
		return q, errors.New("--succeeded and --failed are mutually exclusive")
	}

	f := &q.Filter
	if text != "" {
		switch {
		case o.exact:
			f.CommandLine = history.Exact(text)
		case o.prefix:
			f.CommandLine = history.Prefix(text)
		default:
			f.CommandLine = history.Substring(text)
		}
	}
	if o.not != "" {
		f.NotCommandLine = history.Ptr(o.not)
	}
	if o.hostname != "" {
		f.Hostname = history.Ptr(o.hostname)
	}
	if o.cwd != "" {
		f.CwdExact = history.Ptr(o.cwd)
	}
	if o.cwdPrefix != "" {
		f.CwdPrefix = history.Ptr(o.cwdPrefix)
	}
	if o.succeeded {
		f.ExitSuccessful = history.Ptr(true)
	}
	if o.failed {
		f.ExitSuccessful = history.Ptr(false)
	}
	if o.session != 0 {
		session, err := h.ResolveSessionID(ctx, o.session)
		if err != nil {
			return q, err
		}
		f.SessionID = &session
	}

	if o.fromID != 0 {
		id, err := h.ResolveItemID(ctx, o.fromID)
		if err != nil {
			return q, errors.Wrap(err, "invalid --from-id")
		}
		q.StartID = &id
	}
	if o.toID != 0 {
		id, err := h.ResolveItemID(ctx, o.toID)
		if err != nil {
			return q, errors.Wrap(err, "invalid --to-id")
		}
		q.EndID = &id
	}

	var since, until *time.Time
	if o.since != "" {
		t, err := parseTimeString(o.since)
		if err != nil {
			return q, errors.Wrap(err, "invalid --since time")
		}
		since = &t
	}
	if o.until != "" {
		t, err := parseTimeString(o.until)
		if err != nil {
			return q, errors.Wrap(err, "invalid --until time")
		}
		until = &t
	}
	// The scan starts from the lower edge going forward and from the upper
	// edge going backward.
	if q.Direction == history.Forward {
		q.StartTime, q.EndTime = since, until
	} else {
		q.StartTime, q.EndTime = until, since
	}

	return q, nil
}

var searchOpts searchOptions

// searchCmd searches the history
var searchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Search command history",
	Long: `Search the command history with optional filters. Text matches anywhere in the
command line unless --prefix or --exact is given; it is always matched literally.

Examples:
  rlhist search                          # List the 50 most recent commands
  rlhist search git                      # Commands containing "git"
  rlhist search --prefix "make "         # Commands starting with "make "
  rlhist search --failed --since 2h      # Failures in the last two hours
  rlhist search --cwd-prefix ~/src --forward --limit 0`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd, func(ctx context.Context, _ *config.Config, h *Store) error {
			return runSearch(ctx, cmd.OutOrStdout(), h, &searchOpts, firstArg(args))
		})
	},
}

var countOpts searchOptions

// countCmd counts matching items
var countCmd = &cobra.Command{
	Use:   "count [text]",
	Short: "Count matching history items",
	Long: `Count the history items a search with the same filters would return.
The count ignores any limit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd, func(ctx context.Context, _ *config.Config, h *Store) error {
			return runCount(ctx, cmd.OutOrStdout(), h, &countOpts, firstArg(args))
		})
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(countCmd)

	searchOpts.addFlags(searchCmd.Flags(), true, 50)
	countOpts.addFlags(countCmd.Flags(), false, -1)
}

func firstArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func runSearch(ctx context.Context, out io.Writer, h *Store, opts *searchOptions, text string) error {
	q, err := opts.query(ctx, h, text)
	if err != nil {
		return err
	}

	items, err := h.Search(ctx, q)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		fmt.Fprintln(out, "No commands found matching the criteria.")
		return nil
	}

	if isTerminal(out) {
		fmt.Fprintf(out, "%6s %s %-19s %8s  %s\n", "ID", " ", "STARTED", "DURATION", "COMMAND")
	}
	for _, item := range items {
		writeItemLine(out, item)
	}
	return nil
}

func runCount(ctx context.Context, out io.Writer, h *Store, opts *searchOptions, text string) error {
	q, err := opts.query(ctx, h, text)
	if err != nil {
		return err
	}

	n, err := h.Count(ctx, q)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, n)
	return nil
}

// writeItemLine prints one item as a single search result line.
func writeItemLine(out io.Writer, item history.Item[ShellContext]) {
	started := "-"
	if item.StartTimestamp != nil {
		started = item.StartTimestamp.Local().Format("2006-01-02 15:04:05")
	}

	var durationStr string
	if item.Duration != nil {
		durationStr = formatDuration(*item.Duration)
	}

	command := strings.ReplaceAll(truncate(item.CommandLine, 80), "\n", " ")

	fmt.Fprintf(out, "%6s %s %-19s %8s  %s\n", item.ID, statusIcon(item.ExitStatus), started, durationStr, command)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

func statusIcon(exit *int64) string {
	switch {
	case exit == nil:
		return "·"
	case *exit == 0:
		return "✓"
	default:
		return "✗"
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
