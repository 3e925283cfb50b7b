package engine

import (
	"database/sql"
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/satishbabariya/sqlsrv-go/query"
	"github.com/satishbabariya/sqlsrv-go/query/lex"
)

// Dialect describes how one engine binds parameters, spells literals and
// reports errors.
type Dialect interface {
	// Name is the canonical dialect name.
	Name() string
	// DriverName is the database/sql driver to open.
	DriverName() string
	// Bind replaces ':name' placeholders with the driver's parameter markers
	// and returns the matching driver arguments. Placeholders without an
	// argument are left in place.
	Bind(sql string, args []query.Arg) (string, []interface{})
	// Literal renders v as an inline SQL literal.
	Literal(v interface{}) string
	// Classify turns a driver error into a diagnostic.
	Classify(err error) query.Diagnostic
	// InsertIDQuery is appended to an INSERT to read the generated identity
	// in the same batch. Empty means sql.Result.LastInsertId is used.
	InsertIDQuery() string
	// VersionQuery returns product version, level, edition and engine edition.
	VersionQuery() string
}

// Names lists the canonical driver names accepted by Lookup.
func Names() []string {
	return []string{"sqlserver", "postgres", "pgx", "mysql", "sqlite3"}
}

// Lookup returns the dialect registered under name.
func Lookup(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlserver", "mssql":
		return SQLServer{}, nil
	case "postgres", "postgresql":
		return Postgres{Driver: "postgres"}, nil
	case "pgx":
		return Postgres{Driver: "pgx"}, nil
	case "mysql":
		return MySQL{}, nil
	case "sqlite3", "sqlite":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", name)
	}
}

func argIndex(args []query.Arg) map[string]int {
	idx := make(map[string]int, len(args))
	for i, a := range args {
		idx[a.Name] = i
	}
	return idx
}

// bindNamed rewrites ':name' to prefix+name and passes sql.Named arguments.
func bindNamed(text, prefix string, args []query.Arg) (string, []interface{}) {
	idx := argIndex(args)
	out := lex.ReplaceParams(text, func(name string) (string, bool) {
		if _, ok := idx[name]; !ok {
			return "", false
		}
		return prefix + name, true
	})
	values := make([]interface{}, len(args))
	for i, a := range args {
		values[i] = sql.Named(a.Name, a.Value)
	}
	return out, values
}

// bindOrdinal rewrites ':name' to '$n', reusing n for repeated names.
func bindOrdinal(text string, args []query.Arg) (string, []interface{}) {
	idx := argIndex(args)
	pos := make(map[string]int, len(args))
	var values []interface{}
	out := lex.ReplaceParams(text, func(name string) (string, bool) {
		i, ok := idx[name]
		if !ok {
			return "", false
		}
		n, seen := pos[name]
		if !seen {
			values = append(values, args[i].Value)
			n = len(values)
			pos[name] = n
		}
		return "$" + strconv.Itoa(n), true
	})
	return out, values
}

// bindPositional rewrites every ':name' to '?' and repeats values for
// repeated names.
func bindPositional(text string, args []query.Arg) (string, []interface{}) {
	idx := argIndex(args)
	var values []interface{}
	out := lex.ReplaceParams(text, func(name string) (string, bool) {
		i, ok := idx[name]
		if !ok {
			return "", false
		}
		values = append(values, args[i].Value)
		return "?", true
	})
	return out, values
}

// literalStyle holds the per-dialect differences in literal rendering.
type literalStyle struct {
	stringPrefix    string
	backslashEscape bool
	trueLit         string
	falseLit        string
	bytes           func([]byte) string
	timeLayout      string
}

func (s literalStyle) quote(str string) string {
	str = strings.ReplaceAll(str, "'", "''")
	if s.backslashEscape {
		str = strings.ReplaceAll(str, `\`, `\\`)
	}
	return s.stringPrefix + "'" + str + "'"
}

// render converts v the way database/sql does before binding and spells the
// resulting driver value as a literal.
func (s literalStyle) render(v interface{}) string {
	if dv, err := driver.DefaultParameterConverter.ConvertValue(v); err == nil {
		v = dv
	}
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return s.trueLit
		}
		return s.falseLit
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		// only reached when x overflows int64
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return s.quote(x)
	case []byte:
		return s.bytes(x)
	case time.Time:
		return "'" + x.Format(s.timeLayout) + "'"
	case fmt.Stringer:
		return s.quote(x.String())
	default:
		return s.quote(fmt.Sprint(x))
	}
}

func hexBytes(prefix, suffix string) func([]byte) string {
	return func(b []byte) string {
		return prefix + strings.ToUpper(hex.EncodeToString(b)) + suffix
	}
}
