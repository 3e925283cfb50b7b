package rewrite

import (
	"regexp"
	"strings"

	"github.com/satishbabariya/sqlsrv-go/query/lex"
)

// step is one named transformation of the statement text.
type step struct {
	name  string
	apply func(string) string
}

func regexStep(name, pattern, repl string) step {
	re := regexp.MustCompile(pattern)
	return step{name: name, apply: func(s string) string {
		return re.ReplaceAllString(s, repl)
	}}
}

// syntaxSteps translate statements that have a different spelling in T-SQL.
// The engine releases savepoints on its own, so RELEASE becomes a no-op
// SELECT that still shows up in traces.
var syntaxSteps = []step{
	regexStep("savepoint", `^SAVEPOINT (.*)$`, "SAVE TRANSACTION ${1}"),
	regexStep("rollback-savepoint", `^ROLLBACK TO SAVEPOINT (.*)$`, "ROLLBACK TRANSACTION ${1}"),
	regexStep("release-savepoint", `^RELEASE SAVEPOINT (.*)$`, "SELECT 1 /* ${0} */"),
	regexStep("show-processlist", `^SHOW PROCESSLIST$`, "EXEC sp_who"),
	regexStep("show-tables", `^SHOW TABLES$`, "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE'"),
	regexStep("show-full-tables", `^SHOW FULL TABLES$`, "SELECT TABLE_NAME, TABLE_TYPE FROM INFORMATION_SCHEMA.TABLES"),
}

// renamedFunctions maps portable function names to their T-SQL spelling.
var renamedFunctions = map[string]string{
	"LENGTH": "LEN",
	"POW":    "POWER",
}

// DefaultFunctions are the user-defined functions installed in the default
// schema to emulate functions SQL Server lacks.
var DefaultFunctions = []string{
	"SUBSTRING", "SUBSTRING_INDEX", "GREATEST", "MD5", "LPAD",
	"GROUP_CONCAT", "CONCAT", "IF", "CONNECTION_ID",
}

// mapCalls rewrites the name of every function call for which fn reports
// true. A call is a word immediately followed by '(' and not immediately
// preceded by ':' or '.'.
func mapCalls(sql string, fn func(name string) (string, bool)) string {
	if !strings.Contains(sql, "(") {
		return sql
	}
	var b strings.Builder
	b.Grow(len(sql) + 16)

	var prev, pending lex.Token
	havePending := false

	flush := func(next *lex.Token) {
		if !havePending {
			return
		}
		havePending = false
		if next != nil && next.Value == "(" {
			if repl, ok := fn(pending.Value); ok {
				b.WriteString(repl)
				return
			}
		}
		b.WriteString(pending.Value)
	}

	lex.Scan(sql, func(tok lex.Token) bool {
		flush(&tok)
		if tok.Kind == lex.Word && !endsWithAny(prev.Value, ":.") {
			pending = tok
			havePending = true
		} else {
			b.WriteString(tok.Value)
		}
		prev = tok
		return true
	})
	flush(nil)

	return b.String()
}

// replaceConcat turns the ANSI '||' operator into '+'. Pipes inside string
// literals, identifiers and comments are kept.
func replaceConcat(sql string) string {
	if !strings.Contains(sql, "||") {
		return sql
	}
	var b strings.Builder
	b.Grow(len(sql))
	pipe := false
	lex.Scan(sql, func(tok lex.Token) bool {
		if tok.Kind == lex.Punct && tok.Value == "|" {
			if pipe {
				b.WriteByte('+')
				pipe = false
			} else {
				pipe = true
			}
			return true
		}
		if pipe {
			b.WriteByte('|')
			pipe = false
		}
		b.WriteString(tok.Value)
		return true
	})
	if pipe {
		b.WriteByte('|')
	}
	return b.String()
}
