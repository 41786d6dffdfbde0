package history

import (
	"database/sql/driver"
	"strconv"
	"strings"
	"time"
)

type valueKind uint8

const (
	kindNull valueKind = iota
	kindInteger
	kindText
)

// sqlValue is the one parameter type the query builder and the row writer
// hand to the driver, whatever the column.
type sqlValue struct {
	kind valueKind
	i    int64
	s    string
}

// Value implements driver.Valuer.
func (v sqlValue) Value() (driver.Value, error) {
	switch v.kind {
	case kindInteger:
		return v.i, nil
	case kindText:
		return v.s, nil
	default:
		return nil, nil
	}
}

func (v sqlValue) String() string {
	switch v.kind {
	case kindInteger:
		return "int(" + strconv.FormatInt(v.i, 10) + ")"
	case kindText:
		return "text(" + v.s + ")"
	default:
		return "null"
	}
}

func nullValue() sqlValue {
	return sqlValue{kind: kindNull}
}

func intValue(i int64) sqlValue {
	return sqlValue{kind: kindInteger, i: i}
}

func textValue(s string) sqlValue {
	return sqlValue{kind: kindText, s: s}
}

func optInt(p *int64) sqlValue {
	if p == nil {
		return nullValue()
	}
	return intValue(*p)
}

func optText(p *string) sqlValue {
	if p == nil {
		return nullValue()
	}
	return textValue(*p)
}

func optMillis(t *time.Time) sqlValue {
	if t == nil {
		return nullValue()
	}
	return intValue(t.UnixMilli())
}

func optDurationMillis(d *time.Duration) sqlValue {
	if d == nil {
		return nullValue()
	}
	return intValue(d.Milliseconds())
}

// likeEscaper neutralises LIKE wildcards so user text matches literally.
// Statements pair it with ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
