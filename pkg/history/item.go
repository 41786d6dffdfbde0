// Package history stores executed shell command lines and their context in
// an embedded SQLite database and retrieves them by id or by filtered,
// directional search.
package history

import "time"

// Item represents one executed command line with optional context.
//
// T is the type of the extensible payload kept in MoreInfo. It is persisted
// as JSON text, so any JSON-encodable type works and its zero value is the
// default. Use Anything when no payload is needed.
type Item[T any] struct {
	// ID is nil until the item has been saved, and never changes afterwards.
	ID *ItemID
	// StartTimestamp is when the command was started (millisecond precision).
	StartTimestamp *time.Time
	// CommandLine is the full command line as typed.
	CommandLine string
	// SessionID groups items from one shell session.
	SessionID *SessionID
	// Hostname is the host the command ran on.
	Hostname *string
	// Cwd is the working directory of the command.
	Cwd *string
	// Duration is how long the command took (millisecond precision).
	Duration *time.Duration
	// ExitStatus is the exit code of the command.
	ExitStatus *int64
	// MoreInfo is arbitrary additional context.
	MoreInfo *T
}

// NewItem creates an unsaved item holding only a command line.
func NewItem[T any](commandLine string) Item[T] {
	return Item[T]{CommandLine: commandLine}
}

// FromCommandLine creates an unsaved item with the default payload type.
func FromCommandLine(commandLine string) Item[Anything] {
	return NewItem[Anything](commandLine)
}

// Anything is the default payload. It is written as JSON null and reads back
// from any JSON value by discarding it, so stores written with a richer
// payload stay readable.
type Anything struct{}

// MarshalJSON implements json.Marshaler.
func (Anything) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// UnmarshalJSON implements json.Unmarshaler and accepts any input.
func (*Anything) UnmarshalJSON([]byte) error {
	return nil
}
