package history

import "strconv"

// ItemID identifies a persisted history item. IDs are handed out by a
// History backend; callers cannot mint them from arbitrary integers.
type ItemID struct {
	v int64
}

func newItemID(v int64) ItemID {
	return ItemID{v: v}
}

// String returns the decimal form of the id.
func (id ItemID) String() string {
	return strconv.FormatInt(id.v, 10)
}

// MarshalText implements encoding.TextMarshaler.
func (id ItemID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// SessionID groups the items recorded by one shell session.
type SessionID struct {
	v int64
}

func newSessionID(v int64) SessionID {
	return SessionID{v: v}
}

// String returns the decimal form of the id.
func (id SessionID) String() string {
	return strconv.FormatInt(id.v, 10)
}

// MarshalText implements encoding.TextMarshaler.
func (id SessionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}
