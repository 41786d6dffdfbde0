package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/stormalone/reedline/pkg/config"
	histerrors "github.com/stormalone/reedline/pkg/errors"
	"github.com/stormalone/reedline/pkg/history"
)

// ShellContext is the payload rlhist attaches to every recorded item.
type ShellContext struct {
	Shell        string `json:"shell,omitempty" yaml:"shell,omitempty"`
	User         string `json:"user,omitempty" yaml:"user,omitempty"`
	InvocationID string `json:"invocation_id,omitempty" yaml:"invocation_id,omitempty"`
}

// currentShellContext describes the calling shell. Each call gets a new
// invocation id.
func currentShellContext() ShellContext {
	return ShellContext{
		Shell:        filepath.Base(os.Getenv("SHELL")),
		User:         os.Getenv("USER"),
		InvocationID: uuid.NewString(),
	}
}

// Store is the history store type used by every command.
type Store = history.SQLiteBacked[ShellContext]

// openHistory opens the configured history database.
func openHistory(cfg *config.Config) (*Store, error) {
	return history.NewSQLiteBacked[ShellContext](cfg.History.DatabasePath,
		history.WithLogger(newLogger(cfg.Log, verbose, os.Stderr)),
		history.WithMmapSize(cfg.History.MmapSize),
		history.WithBusyTimeout(cfg.History.BusyTimeout),
	)
}

// withHistory loads the configuration, opens the store for the duration of
// fn and closes it afterwards.
func withHistory(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, h *Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	h, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer h.Close()

	return fn(cmd.Context(), cfg, h)
}

// newLogger builds the diagnostic logger from the log config. Verbose forces
// debug level.
func newLogger(cfg config.LogConfig, verbose bool, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// retryConfig returns the busy-retry policy for write commands.
func retryConfig(cfg *config.Config) histerrors.RetryConfig {
	rc := histerrors.DefaultRetryConfig()
	rc.MaxRetries = cfg.History.BusyRetries
	return rc
}

// hostname returns the configured hostname override or the system hostname.
func hostname(cfg *config.Config) string {
	if cfg.History.Hostname != "" {
		return cfg.History.Hostname
	}
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	return name
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// parseID parses a positive decimal item or session id.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.Newf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}

// parseTimeString parses an absolute time in local time or a duration
// before now, e.g. "2h" or "30m".
func parseTimeString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	}
	for _, format := range formats {
		if t, err := time.ParseInLocation(format, s, time.Local); err == nil {
			return t, nil
		}
	}

	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return time.Now().Add(-d), nil
	}

	return time.Time{}, errors.Newf("invalid time %q: use YYYY-MM-DD, YYYY-MM-DD HH:MM, RFC3339 or a duration like 2h", s)
}
