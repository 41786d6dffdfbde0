package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/stormalone/reedline/pkg/config"
	histerrors "github.com/stormalone/reedline/pkg/errors"
	"github.com/stormalone/reedline/pkg/history"
)

// recordOptions holds the flags of the record command. The *Set fields
// record whether an optional flag was given.
type recordOptions struct {
	cwd           string
	hostname      string
	session       int64
	exitStatus    int64
	exitStatusSet bool
	duration      time.Duration
	durationSet   bool
	start         string
}

var recordOpts recordOptions

// sessionEnv supplies the session id when --session is not given.
const sessionEnv = "RLHIST_SESSION"

// recordCmd saves a command line
var recordCmd = &cobra.Command{
	Use:   "record [flags] -- <command...>",
	Short: "Record an executed command",
	Long: `Record a command line in the history and print its item id.

Commands matching history.ignore_patterns are skipped silently. The id
printed on success can be passed to 'rlhist update' once the command has
finished.

Examples:
  id=$(rlhist record --session 3 -- git push)
  rlhist record --exit-status 1 --duration 2s -- make test`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recordOpts.exitStatusSet = cmd.Flags().Changed("exit-status")
		recordOpts.durationSet = cmd.Flags().Changed("duration")
		return withHistory(cmd, func(ctx context.Context, cfg *config.Config, h *Store) error {
			return runRecord(ctx, cmd.OutOrStdout(), cfg, h, &recordOpts, strings.Join(args, " "))
		})
	},
}

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().StringVar(&recordOpts.cwd, "cwd", "", "Working directory (default: current directory)")
	recordCmd.Flags().StringVar(&recordOpts.hostname, "hostname", "", "Hostname (default: history.hostname or the system hostname)")
	recordCmd.Flags().Int64Var(&recordOpts.session, "session", 0, "Session id from 'rlhist session new' (default: $RLHIST_SESSION)")
	recordCmd.Flags().Int64Var(&recordOpts.exitStatus, "exit-status", 0, "Exit status of the command")
	recordCmd.Flags().DurationVar(&recordOpts.duration, "duration", 0, "How long the command ran (e.g. 1.5s)")
	recordCmd.Flags().StringVar(&recordOpts.start, "start", "", "When the command started (default: now)")
}

func runRecord(ctx context.Context, out io.Writer, cfg *config.Config, h *Store, opts *recordOptions, commandLine string) error {
	if strings.TrimSpace(commandLine) == "" || ignored(commandLine, cfg.History.IgnorePatterns) {
		return nil
	}

	start := time.Now()
	if opts.start != "" {
		t, err := parseTimeString(opts.start)
		if err != nil {
			return errors.Wrap(err, "invalid --start time")
		}
		start = t
	}

	cwd := opts.cwd
	if cwd == "" {
		wd, err := os.Getwd()
		if err == nil {
			cwd = wd
		}
	}

	host := opts.hostname
	if host == "" {
		host = hostname(cfg)
	}

	item := history.NewItem[ShellContext](commandLine)
	item.StartTimestamp = &start
	if cwd != "" {
		item.Cwd = &cwd
	}
	if host != "" {
		item.Hostname = &host
	}
	sessionRaw := opts.session
	if sessionRaw == 0 {
		if env := os.Getenv(sessionEnv); env != "" {
			n, err := parseID(env)
			if err != nil {
				return errors.Wrap(err, "invalid "+sessionEnv)
			}
			sessionRaw = n
		}
	}
	if sessionRaw != 0 {
		session, err := h.ResolveSessionID(ctx, sessionRaw)
		if err != nil {
			return err
		}
		item.SessionID = &session
	}
	if opts.exitStatusSet {
		item.ExitStatus = history.Ptr(opts.exitStatus)
	}
	if opts.durationSet {
		item.Duration = history.Ptr(opts.duration)
	}
	shellCtx := currentShellContext()
	item.MoreInfo = &shellCtx

	saved, err := histerrors.RetryWithResult(ctx, retryConfig(cfg), func() (history.Item[ShellContext], error) {
		return h.Save(ctx, item)
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, saved.ID)
	return nil
}

// ignored reports whether commandLine matches one of the patterns. A
// pattern matches the whole line or its first word. Patterns are globs with
// {a,b} alternatives; an invalid pattern never matches.
func ignored(commandLine string, patterns []string) bool {
	line := strings.TrimSpace(commandLine)
	var name string
	if fields := strings.Fields(line); len(fields) > 0 {
		name = fields[0]
	}

	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, line); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
