package history

import (
	"fmt"
	"strings"
)

// historyColumns is the projection every item read uses, in scan order.
const historyColumns = "id, command_line, start_timestamp, session_id, hostname, cwd, duration_ms, exit_status, more_info"

// buildQuery lowers a SearchQuery into a statement over the history table
// and its bound arguments. selectExpr is the projection. When count is set
// the statement has no ordering and ignores the limit.
func buildQuery(q SearchQuery, selectExpr string, count bool) (string, []any) {
	forward := q.Direction != Backward

	var wheres []string
	var args []any
	where := func(clause string, v sqlValue) {
		wheres = append(wheres, clause)
		args = append(args, v)
	}

	// The start bound is where the scan begins and is excluded; the end
	// bound is where it stops and is included. Both flip with direction.
	if q.StartTime != nil {
		if forward {
			where("start_timestamp > ?", optMillis(q.StartTime))
		} else {
			where("start_timestamp < ?", optMillis(q.StartTime))
		}
	}
	if q.EndTime != nil {
		if forward {
			where("start_timestamp <= ?", optMillis(q.EndTime))
		} else {
			where("start_timestamp >= ?", optMillis(q.EndTime))
		}
	}
	if q.StartID != nil {
		if forward {
			where("id > ?", intValue(q.StartID.v))
		} else {
			where("id < ?", intValue(q.StartID.v))
		}
	}
	if q.EndID != nil {
		if forward {
			where("id <= ?", intValue(q.EndID.v))
		} else {
			where("id >= ?", intValue(q.EndID.v))
		}
	}

	f := q.Filter
	if cl := f.CommandLine; cl != nil {
		switch cl.Kind {
		case MatchPrefix:
			where(`command_line LIKE ? ESCAPE '\'`, textValue(escapeLike(cl.Text)+"%"))
		case MatchSubstring:
			where(`command_line LIKE ? ESCAPE '\'`, textValue("%"+escapeLike(cl.Text)+"%"))
		default:
			where("command_line = ?", textValue(cl.Text))
		}
	}
	if f.NotCommandLine != nil {
		where("command_line != ?", optText(f.NotCommandLine))
	}
	if f.Hostname != nil {
		where("hostname = ?", optText(f.Hostname))
	}
	if f.CwdExact != nil {
		where("cwd = ?", optText(f.CwdExact))
	}
	if f.CwdPrefix != nil {
		where(`cwd LIKE ? ESCAPE '\'`, textValue(escapeLike(*f.CwdPrefix)+"%"))
	}
	if f.ExitSuccessful != nil {
		if *f.ExitSuccessful {
			wheres = append(wheres, "exit_status = 0")
		} else {
			wheres = append(wheres, "exit_status != 0")
		}
	}
	if f.SessionID != nil {
		where("session_id = ?", intValue(f.SessionID.v))
	}

	cond := "TRUE"
	if len(wheres) > 0 {
		cond = strings.Join(wheres, " AND ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM history WHERE %s", selectExpr, cond)
	if count {
		return b.String(), args
	}

	if forward {
		b.WriteString(" ORDER BY id ASC")
	} else {
		b.WriteString(" ORDER BY id DESC")
	}
	if q.Limit != nil {
		// SQLite reads a negative LIMIT as no limit at all.
		b.WriteString(" LIMIT ?")
		args = append(args, intValue(max(*q.Limit, 0)))
	}

	return b.String(), args
}
