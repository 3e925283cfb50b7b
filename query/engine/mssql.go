package engine

import (
	"errors"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/satishbabariya/sqlsrv-go/query"
)

// sqlServerStates maps SQL Server error numbers to SQLSTATE codes.
var sqlServerStates = map[int]string{
	2627: "23000", // unique constraint
	2601: "23000", // unique index
	547:  "23000", // foreign key / check constraint
	515:  "23000", // NULL into NOT NULL column
	208:  "42S02", // invalid object name
	207:  "42S22", // invalid column name
	1205: "40001", // deadlock victim
	245:  "22018", // conversion failed
	8114: "22018", // error converting data type
	3930: "25000", // uncommittable transaction
	3998: "25000", // uncommittable transaction at batch end
}

// sqlServerAborting lists errors after which SQL Server has rolled the
// transaction back or left it uncommittable.
var sqlServerAborting = map[int]bool{
	1205: true,
	245:  true,
	8114: true,
	3930: true,
	3998: true,
}

// SQLServer is the Microsoft SQL Server dialect.
type SQLServer struct{}

var sqlServerLiterals = literalStyle{
	stringPrefix: "N",
	trueLit:      "1",
	falseLit:     "0",
	bytes:        hexBytes("0x", ""),
	timeLayout:   "2006-01-02T15:04:05.000",
}

func (SQLServer) Name() string       { return "sqlserver" }
func (SQLServer) DriverName() string { return "sqlserver" }

func (SQLServer) Bind(sql string, args []query.Arg) (string, []interface{}) {
	return bindNamed(sql, "@", args)
}

func (SQLServer) Literal(v interface{}) string { return sqlServerLiterals.render(v) }

func (SQLServer) InsertIDQuery() string {
	return "; SELECT CAST(SCOPE_IDENTITY() AS BIGINT)"
}

func (SQLServer) VersionQuery() string {
	return "SELECT CONVERT(NVARCHAR(128), SERVERPROPERTY('productversion')) AS VERSION, " +
		"CONVERT(NVARCHAR(128), SERVERPROPERTY('productlevel')) AS LEVEL, " +
		"CONVERT(NVARCHAR(128), SERVERPROPERTY('edition')) AS EDITION, " +
		"CONVERT(INT, SERVERPROPERTY('EngineEdition')) AS ENGINE"
}

// Classify reads mssql.Error. A batch reports every error it raised in All;
// any aborting error among them dooms the transaction.
func (SQLServer) Classify(err error) query.Diagnostic {
	d := query.Diagnostic{Cause: err, Message: errMessage(err)}
	var me mssql.Error
	if !errors.As(err, &me) {
		return d
	}
	d.Number = int(me.Number)
	d.Message = me.Message
	d.SQLState = sqlServerStates[d.Number]
	if d.SQLState == "" {
		d.SQLState = "HY000"
	}
	d.Aborting = sqlServerAborting[d.Number]
	for _, e := range me.All {
		if sqlServerAborting[int(e.Number)] {
			d.Aborting = true
		}
	}
	return d
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
