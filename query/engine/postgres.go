package engine

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/lib/pq"

	"github.com/satishbabariya/sqlsrv-go/query"
)

// Postgres is the PostgreSQL dialect, served by lib/pq or pgx.
type Postgres struct {
	// Driver is "postgres" (lib/pq) or "pgx".
	Driver string
}

var postgresLiterals = literalStyle{
	trueLit:    "TRUE",
	falseLit:   "FALSE",
	bytes:      hexBytes(`'\x`, `'::bytea`),
	timeLayout: "2006-01-02 15:04:05.999999-07:00",
}

func (Postgres) Name() string { return "postgres" }

func (p Postgres) DriverName() string {
	if p.Driver == "" {
		return "postgres"
	}
	return p.Driver
}

func (Postgres) Bind(sql string, args []query.Arg) (string, []interface{}) {
	return bindOrdinal(sql, args)
}

func (Postgres) Literal(v interface{}) string { return postgresLiterals.render(v) }

// InsertIDQuery is empty: neither driver supports multi-statement batches
// with parameters, so the caller relies on LastInsertId.
func (Postgres) InsertIDQuery() string { return "" }

func (Postgres) VersionQuery() string {
	return "SELECT current_setting('server_version'), '', version(), 0"
}

// Classify reads *pq.Error or *pgconn.PgError. Serialization failures,
// deadlocks (class 40) and in_failed_sql_transaction (25P02) abort the
// transaction.
func (Postgres) Classify(err error) query.Diagnostic {
	d := query.Diagnostic{Cause: err, Message: errMessage(err)}

	var pqErr *pq.Error
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pqErr):
		d.SQLState = string(pqErr.Code)
		d.Message = pqErr.Message
	case errors.As(err, &pgErr):
		d.SQLState = pgErr.Code
		d.Message = pgErr.Message
	default:
		return d
	}
	d.Aborting = d.Class() == "40" || d.SQLState == "25P02"
	return d
}
