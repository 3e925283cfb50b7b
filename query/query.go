// Package query provides the portable query value handed to the rewriter and executor.
package query

import (
	"sort"
	"strings"

	"github.com/satishbabariya/sqlsrv-go/query/lex"
)

// Arg is a single named bind parameter.
type Arg struct {
	Name  string
	Value interface{}
}

// Named creates an Arg. A leading ':' on name is dropped.
func Named(name string, value interface{}) Arg {
	return Arg{Name: strings.TrimPrefix(name, ":"), Value: value}
}

// Query represents portable SQL text plus its bind parameters.
// A Query is never mutated after construction; rewriting produces a new one.
type Query struct {
	sql  string
	args []Arg
}

// New creates a query. Later arguments replace earlier ones with the same name.
func New(sql string, args ...Arg) *Query {
	q := &Query{sql: sql}
	for _, a := range args {
		q.args = setArg(q.args, Named(a.Name, a.Value))
	}
	return q
}

// FromMap creates a query from a name/value map. Iteration order follows the
// order of placeholders in sql; names without a placeholder are appended sorted.
func FromMap(sql string, values map[string]interface{}) *Query {
	args := make([]Arg, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, name := range lex.Placeholders(sql) {
		if seen[name] {
			continue
		}
		if v, ok := values[name]; ok {
			args = append(args, Arg{Name: name, Value: v})
			seen[name] = true
		} else if v, ok := values[":"+name]; ok {
			args = append(args, Arg{Name: name, Value: v})
			seen[name] = true
		}
	}
	rest := make([]string, 0)
	for name := range values {
		if !seen[strings.TrimPrefix(name, ":")] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		args = append(args, Named(name, values[name]))
	}
	return &Query{sql: sql, args: args}
}

// SQL returns the query text.
func (q *Query) SQL() string {
	return q.sql
}

// Args returns a copy of the bind parameters in order.
func (q *Query) Args() []Arg {
	out := make([]Arg, len(q.args))
	copy(out, q.args)
	return out
}

// Len returns the number of bind parameters.
func (q *Query) Len() int {
	return len(q.args)
}

// Lookup returns the value bound to name.
func (q *Query) Lookup(name string) (interface{}, bool) {
	name = strings.TrimPrefix(name, ":")
	for _, a := range q.args {
		if a.Name == name {
			return a.Value, true
		}
	}
	return nil, false
}

// WithSQL returns a new query with the same arguments and different text.
func (q *Query) WithSQL(sql string) *Query {
	return &Query{sql: sql, args: q.Args()}
}

// WithArgs returns a new query with the same text and different arguments.
func (q *Query) WithArgs(args []Arg) *Query {
	return New(q.sql, args...)
}

func setArg(args []Arg, a Arg) []Arg {
	for i := range args {
		if args[i].Name == a.Name {
			args[i] = a
			return args
		}
	}
	return append(args, a)
}
