package errors

import (
	"fmt"
	"strings"
)

// FormatUserError returns a user-friendly error message with actionable guidance.
// It examines the error chain and provides context-appropriate help text.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var configErr *ConfigError
	if As(err, &configErr) {
		return formatConfigError(configErr)
	}

	var hErr *HistoryError
	if As(err, &hErr) {
		return formatHistoryError(hErr)
	}

	return err.Error()
}

// formatConfigError formats a ConfigError with actionable guidance.
func formatConfigError(err *ConfigError) string {
	var b strings.Builder

	if err.Field != "" {
		fmt.Fprintf(&b, "Configuration error in '%s': %s\n", err.Field, err.Message)
	} else {
		fmt.Fprintf(&b, "Configuration error: %s\n", err.Message)
	}

	b.WriteString("\nTo fix this:\n")
	b.WriteString("  • Check your config file: ~/.config/rlhist/config.toml\n")
	b.WriteString("  • Run 'rlhist config show' to inspect the effective settings\n")

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

// formatHistoryError formats a HistoryError with guidance for its kind.
func formatHistoryError(err *HistoryError) string {
	var b strings.Builder

	if err.Operation != "" {
		fmt.Fprintf(&b, "History %s failed: %s\n", err.Operation, err.Message)
	} else {
		fmt.Fprintf(&b, "History error: %s\n", err.Message)
	}

	switch err.Kind {
	case KindNotFound:
		b.WriteString("\nThe item does not exist. To fix this:\n")
		b.WriteString("  • Run 'rlhist search' to list existing item ids\n")
		b.WriteString("  • Check that --config points at the expected database\n")

	case KindSerialization:
		b.WriteString("\nStored context data could not be read. To fix this:\n")
		b.WriteString("  • The item was probably written by a newer or different tool\n")
		b.WriteString("  • Export with 'rlhist export' to inspect the raw data\n")

	case KindIO:
		b.WriteString("\nThe database file could not be created or opened. To fix this:\n")
		b.WriteString("  • Check permissions of the history.database_path directory\n")
		b.WriteString("  • Make sure the disk is not full\n")

	case KindBackend:
		b.WriteString("\nThe database rejected the operation. To fix this:\n")
		b.WriteString("  • Run 'rlhist info' to check the database\n")
		b.WriteString("  • Try running with --verbose for the failing statement\n")
	}

	if err.Retryable {
		b.WriteString("\nThe database was locked by another process. Try the command again.\n")
	}

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}
