package engine

import (
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/satishbabariya/sqlsrv-go/query"
)

// mysqlDeadlock is ER_LOCK_DEADLOCK; InnoDB rolls the whole transaction back.
const mysqlDeadlock = 1213

// MySQL is the MySQL / MariaDB dialect.
type MySQL struct{}

var mysqlLiterals = literalStyle{
	backslashEscape: true,
	trueLit:         "1",
	falseLit:        "0",
	bytes:           hexBytes("0x", ""),
	timeLayout:      "2006-01-02 15:04:05.999999",
}

func (MySQL) Name() string       { return "mysql" }
func (MySQL) DriverName() string { return "mysql" }

func (MySQL) Bind(sql string, args []query.Arg) (string, []interface{}) {
	return bindPositional(sql, args)
}

func (MySQL) Literal(v interface{}) string { return mysqlLiterals.render(v) }

func (MySQL) InsertIDQuery() string { return "" }

func (MySQL) VersionQuery() string {
	return "SELECT VERSION(), '', @@version_comment, 0"
}

func (MySQL) Classify(err error) query.Diagnostic {
	d := query.Diagnostic{Cause: err, Message: errMessage(err)}
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return d
	}
	d.Number = int(me.Number)
	d.Message = me.Message
	d.SQLState = string(me.SQLState[:])
	if me.SQLState == [5]byte{} {
		d.SQLState = "HY000"
	}
	d.Aborting = me.Number == mysqlDeadlock
	return d
}
