package history

import "time"

// SearchDirection defines the order in which a search walks the history.
type SearchDirection int

const (
	// Forward scans from older to newer items (ascending id).
	Forward SearchDirection = iota
	// Backward scans from newer to older items (descending id).
	Backward
)

func (d SearchDirection) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// MatchKind selects how a CommandLineSearch compares command lines.
type MatchKind int

const (
	// MatchExact matches the whole command line.
	MatchExact MatchKind = iota
	// MatchPrefix matches command lines starting with the text.
	MatchPrefix
	// MatchSubstring matches command lines containing the text.
	MatchSubstring
)

// CommandLineSearch filters on the command line text. The text is always
// matched literally and case-sensitively.
type CommandLineSearch struct {
	Kind MatchKind
	Text string
}

// Exact matches command lines equal to s.
func Exact(s string) *CommandLineSearch {
	return &CommandLineSearch{Kind: MatchExact, Text: s}
}

// Prefix matches command lines starting with s.
func Prefix(s string) *CommandLineSearch {
	return &CommandLineSearch{Kind: MatchPrefix, Text: s}
}

// Substring matches command lines containing s.
func Substring(s string) *CommandLineSearch {
	return &CommandLineSearch{Kind: MatchSubstring, Text: s}
}

// SearchFilter narrows a search. Every nil field is ignored; the rest are
// combined with AND.
type SearchFilter struct {
	CommandLine    *CommandLineSearch
	NotCommandLine *string // excludes this exact command line
	Hostname       *string
	CwdExact       *string
	CwdPrefix      *string
	ExitSuccessful *bool // true: exit status 0, false: any non-zero status
	SessionID      *SessionID
}

// SearchQuery describes a bounded, filtered scan over the history.
//
// StartID/StartTime mark where the scan begins and are exclusive. EndID and
// EndTime mark where it stops and are inclusive. Both follow Direction: for a
// Backward scan the start bound is the upper edge.
type SearchQuery struct {
	Direction SearchDirection
	StartTime *time.Time
	EndTime   *time.Time
	StartID   *ItemID
	EndID     *ItemID
	Limit     *int64 // nil for no limit; negative behaves as 0
	Filter    SearchFilter
}

// Everything returns a query matching all items in the given direction.
func Everything(direction SearchDirection) SearchQuery {
	return SearchQuery{Direction: direction}
}

// LastWithSearch returns the most recent item matching filter.
func LastWithSearch(filter SearchFilter) SearchQuery {
	return SearchQuery{
		Direction: Backward,
		Limit:     Ptr[int64](1),
		Filter:    filter,
	}
}

// LastWithPrefix returns the most recent item starting with prefix,
// optionally restricted to one session.
func LastWithPrefix(prefix string, session *SessionID) SearchQuery {
	return LastWithSearch(SearchFilter{
		CommandLine: Prefix(prefix),
		SessionID:   session,
	})
}

// Ptr returns a pointer to v, for filling optional query fields.
func Ptr[V any](v V) *V {
	return &v
}
