package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	histerrors "github.com/stormalone/reedline/pkg/errors"
)

// Record is the portable form of a stored item used for export and import.
// MoreInfo carries the payload as raw JSON text, so records move between
// stores regardless of payload type.
type Record struct {
	ID             int64      `json:"id,omitempty" yaml:"id,omitempty"`
	StartTimestamp *time.Time `json:"start_timestamp,omitempty" yaml:"start_timestamp,omitempty"`
	CommandLine    string     `json:"command_line" yaml:"command_line"`
	SessionID      *int64     `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Hostname       *string    `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	Cwd            *string    `json:"cwd,omitempty" yaml:"cwd,omitempty"`
	DurationMs     *int64     `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
	ExitStatus     *int64     `json:"exit_status,omitempty" yaml:"exit_status,omitempty"`
	MoreInfo       *string    `json:"more_info,omitempty" yaml:"more_info,omitempty"`
}

// Export returns the records matching q in the query's order. The payload
// is not decoded.
func (h *SQLiteBacked[T]) Export(ctx context.Context, q SearchQuery) ([]Record, error) {
	query, args := buildQuery(q, historyColumns, false)
	h.debugQuery(ctx, query, args)

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, backendError("export", "could not query items", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, backendError("export", "could not read item row", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, backendError("export", "could not iterate item rows", err)
	}

	return records, nil
}

// Import stores records as new items in one transaction and returns how many
// were written. Record IDs are ignored and reassigned; session ids are kept.
// Nothing is written if any record fails.
func (h *SQLiteBacked[T]) Import(ctx context.Context, records []Record) (int, error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, backendError("import", "could not begin transaction", err)
	}
	defer tx.Rollback()

	for i, r := range records {
		moreInfo := nullValue()
		if r.MoreInfo != nil {
			if !json.Valid([]byte(*r.MoreInfo)) {
				return 0, histerrors.NewSerializationError("import",
					fmt.Sprintf("record %d has more_info that is not valid JSON", i), nil)
			}
			moreInfo = textValue(*r.MoreInfo)
		}

		args := []any{
			nullValue(),
			optMillis(r.StartTimestamp),
			textValue(r.CommandLine),
			optInt(r.SessionID),
			optText(r.Hostname),
			optText(r.Cwd),
			optInt(r.DurationMs),
			optInt(r.ExitStatus),
			moreInfo,
		}

		var id int64
		if err := tx.QueryRowContext(ctx, upsertItem, args...).Scan(&id); err != nil {
			return 0, backendError("import", fmt.Sprintf("could not write record %d", i), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, backendError("import", "could not commit records", err)
	}

	h.logger.Debug("imported history records", "count", len(records))
	return len(records), nil
}

func scanRecord(row scanner) (Record, error) {
	var (
		r                       Record
		ts, session, dur, exit  sql.NullInt64
		hostname, cwd, moreInfo sql.NullString
	)

	err := row.Scan(&r.ID, &r.CommandLine, &ts, &session, &hostname, &cwd, &dur, &exit, &moreInfo)
	if err != nil {
		return r, err
	}

	if ts.Valid {
		r.StartTimestamp = Ptr(time.UnixMilli(ts.Int64).UTC())
	}
	if session.Valid {
		r.SessionID = Ptr(session.Int64)
	}
	if hostname.Valid {
		r.Hostname = Ptr(hostname.String)
	}
	if cwd.Valid {
		r.Cwd = Ptr(cwd.String)
	}
	if dur.Valid {
		r.DurationMs = Ptr(dur.Int64)
	}
	if exit.Valid {
		r.ExitStatus = Ptr(exit.Int64)
	}
	if moreInfo.Valid {
		r.MoreInfo = Ptr(moreInfo.String)
	}

	return r, nil
}

// DatabaseInfo summarises a history database.
type DatabaseInfo struct {
	Path        string
	SizeBytes   int64
	ModifiedAt  time.Time
	Items       int64
	Sessions    int64
	JournalMode string
}

// Info reports the size and contents of the store. File fields are zero for
// an in-memory store.
func (h *SQLiteBacked[T]) Info(ctx context.Context) (DatabaseInfo, error) {
	info := DatabaseInfo{Path: h.path}

	if h.path != InMemoryPath {
		st, err := os.Stat(h.path)
		if err != nil {
			return info, histerrors.NewIOError("info", "could not stat database file", err)
		}
		info.SizeBytes = st.Size()
		info.ModifiedAt = st.ModTime()
	}

	row := h.db.QueryRowContext(ctx, "SELECT COUNT(*), COUNT(DISTINCT session_id) FROM history")
	if err := row.Scan(&info.Items, &info.Sessions); err != nil {
		return info, backendError("info", "could not count items", err)
	}

	if err := h.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&info.JournalMode); err != nil {
		return info, backendError("info", "could not read journal mode", err)
	}

	return info, nil
}
