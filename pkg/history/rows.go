package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	histerrors "github.com/stormalone/reedline/pkg/errors"
)

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanItem reads one row projected with historyColumns.
func scanItem[T any](row scanner) (Item[T], error) {
	var (
		item                    Item[T]
		id                      int64
		ts, session, dur, exit  sql.NullInt64
		hostname, cwd, moreInfo sql.NullString
	)

	err := row.Scan(&id, &item.CommandLine, &ts, &session, &hostname, &cwd, &dur, &exit, &moreInfo)
	if err != nil {
		return item, err
	}

	item.ID = Ptr(newItemID(id))
	if ts.Valid {
		item.StartTimestamp = Ptr(time.UnixMilli(ts.Int64).UTC())
	}
	if session.Valid {
		item.SessionID = Ptr(newSessionID(session.Int64))
	}
	if hostname.Valid {
		item.Hostname = Ptr(hostname.String)
	}
	if cwd.Valid {
		item.Cwd = Ptr(cwd.String)
	}
	if dur.Valid {
		item.Duration = Ptr(time.Duration(dur.Int64) * time.Millisecond)
	}
	if exit.Valid {
		item.ExitStatus = Ptr(exit.Int64)
	}
	if moreInfo.Valid {
		var info T
		if err := json.Unmarshal([]byte(moreInfo.String), &info); err != nil {
			return item, histerrors.NewSerializationError("load",
				fmt.Sprintf("could not decode more_info of item %d", id), err)
		}
		item.MoreInfo = &info
	}

	return item, nil
}

// itemArgs binds an item to the placeholders of upsertItem.
func itemArgs[T any](item Item[T]) ([]any, error) {
	id := nullValue()
	if item.ID != nil {
		id = intValue(item.ID.v)
	}

	session := nullValue()
	if item.SessionID != nil {
		session = intValue(item.SessionID.v)
	}

	moreInfo := nullValue()
	if item.MoreInfo != nil {
		b, err := json.Marshal(item.MoreInfo)
		if err != nil {
			return nil, histerrors.NewSerializationError("save", "could not encode more_info", err)
		}
		moreInfo = textValue(string(b))
	}

	return []any{
		id,
		optMillis(item.StartTimestamp),
		textValue(item.CommandLine),
		session,
		optText(item.Hostname),
		optText(item.Cwd),
		optDurationMillis(item.Duration),
		optInt(item.ExitStatus),
		moreInfo,
	}, nil
}
