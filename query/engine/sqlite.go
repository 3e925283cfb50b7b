package engine

import (
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/satishbabariya/sqlsrv-go/query"
)

// SQLite is the SQLite dialect. It is mostly used for local runs and tests.
type SQLite struct{}

var sqliteLiterals = literalStyle{
	trueLit:    "1",
	falseLit:   "0",
	bytes:      hexBytes("X'", "'"),
	timeLayout: "2006-01-02 15:04:05.999999999-07:00",
}

func (SQLite) Name() string       { return "sqlite3" }
func (SQLite) DriverName() string { return "sqlite3" }

func (SQLite) Bind(sql string, args []query.Arg) (string, []interface{}) {
	return bindNamed(sql, "@", args)
}

func (SQLite) Literal(v interface{}) string { return sqliteLiterals.render(v) }

func (SQLite) InsertIDQuery() string { return "" }

func (SQLite) VersionQuery() string {
	return "SELECT sqlite_version(), '', 'SQLite', 0"
}

// Classify reads sqlite3.Error. SQLite reports missing objects as generic
// errors, so they are recognised by message.
func (SQLite) Classify(err error) query.Diagnostic {
	d := query.Diagnostic{Cause: err, Message: errMessage(err)}
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return d
	}
	d.Number = int(se.Code)
	switch {
	case se.Code == sqlite3.ErrConstraint:
		d.SQLState = "23000"
	case strings.Contains(d.Message, "no such table"):
		d.SQLState = "42S02"
	case strings.Contains(d.Message, "no such column"):
		d.SQLState = "42S22"
	case se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked:
		d.SQLState = "40001"
	default:
		d.SQLState = "HY000"
	}
	switch se.Code {
	case sqlite3.ErrFull, sqlite3.ErrIoErr, sqlite3.ErrNomem, sqlite3.ErrInterrupt, sqlite3.ErrCorrupt:
		d.Aborting = true
	}
	return d
}
