package executor

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/satishbabariya/sqlsrv-go/query"
	"github.com/satishbabariya/sqlsrv-go/query/engine"
	"github.com/satishbabariya/sqlsrv-go/query/lex"
)

// MaxParams is the most parameters SQL Server accepts in one request.
const MaxParams = 2100

// ExpandArgs replaces every placeholder bound to a slice with one numbered
// placeholder per element (":ids" becomes ":ids_0, :ids_1"). An empty slice
// becomes NULL. Argument order is preserved. []byte values are scalars.
// A numbered name that is already taken by another argument is an error.
func ExpandArgs(text string, args []query.Arg) (string, []query.Arg, error) {
	var repl map[string]string
	out := make([]query.Arg, 0, len(args))

	for _, a := range args {
		v := reflect.ValueOf(a.Value)
		if !isList(v) {
			out = append(out, a)
			continue
		}
		if repl == nil {
			repl = make(map[string]string)
		}
		if v.Len() == 0 {
			repl[a.Name] = "NULL"
			continue
		}
		names := make([]string, v.Len())
		for i := 0; i < v.Len(); i++ {
			name := a.Name + "_" + strconv.Itoa(i)
			if taken(args, name) {
				return "", nil, fmt.Errorf("expanding list argument %q: %q is already an argument", a.Name, name)
			}
			names[i] = ":" + name
			out = append(out, query.Arg{Name: name, Value: v.Index(i).Interface()})
		}
		repl[a.Name] = strings.Join(names, ", ")
	}

	if repl == nil {
		return text, args, nil
	}
	text = lex.ReplaceParams(text, func(name string) (string, bool) {
		r, ok := repl[name]
		return r, ok
	})
	return text, out, nil
}

func taken(args []query.Arg, name string) bool {
	for _, a := range args {
		if a.Name == name {
			return true
		}
	}
	return false
}

func isList(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice:
		return v.Type().Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	}
	return false
}

// needsInterpolation reports whether arguments must be inlined instead of
// bound: on request, past the parameter ceiling, or when the number of
// placeholders differs from the number of arguments (a name used twice).
func needsInterpolation(text string, args []query.Arg, insecure bool) bool {
	if insecure || len(args) >= MaxParams {
		return true
	}
	return len(args) != lex.CountPlaceholders(text)
}

// Interpolate inlines args into text as dialect literals.
func Interpolate(text string, args []query.Arg, d engine.Dialect) string {
	if len(args) == 0 {
		return text
	}
	values := make(map[string]interface{}, len(args))
	for _, a := range args {
		values[a.Name] = a.Value
	}
	return lex.ReplaceParams(text, func(name string) (string, bool) {
		v, ok := values[name]
		if !ok {
			return "", false
		}
		return d.Literal(v), true
	})
}
