package rewrite

import (
	"strings"

	"github.com/satishbabariya/sqlsrv-go/query/lex"
)

// reserved lists words SQL Server refuses as bare identifiers. ESCAPE is
// deliberately absent: it appears in LIKE ... ESCAPE clauses.
var reserved = func() map[string]struct{} {
	words := []string{
		"action", "admin", "alias", "any", "are", "array", "at", "begin", "boolean",
		"class", "commit", "contains", "current", "data", "date", "day", "depth",
		"domain", "external", "file", "full", "function", "get", "go", "host", "input",
		"language", "last", "less", "local", "map", "min", "module", "new", "no",
		"object", "old", "open", "operation", "parameter", "parameters", "path",
		"plan", "prefix", "proc", "public", "ref", "result", "returns", "role", "row",
		"rows", "rule", "save", "search", "second", "section", "session", "size",
		"state", "statistics", "temporary", "than", "time", "timestamp", "tran",
		"translate", "translation", "trim", "user", "value", "variable", "view",
		"without",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// IsReserved reports whether word must be bracketed when used as an identifier.
func IsReserved(word string) bool {
	_, ok := reserved[strings.ToLower(word)]
	return ok
}

// isRead reports whether the statement starts with SELECT.
func isRead(sql string) bool {
	return len(sql) >= 6 && strings.EqualFold(sql[:6], "SELECT")
}

// QuoteReserved brackets every reserved word used as an identifier in a
// single pass over the tokens of sql. A word is left alone when it is
// immediately followed by '(' (a function call) or immediately preceded by
// ':' or '['. Strings, quoted identifiers, comments, placeholders and
// variables pass through unchanged.
func QuoteReserved(sql string) string {
	var b strings.Builder
	b.Grow(len(sql) + 16)

	var prev, pending lex.Token
	havePending := false

	flush := func(next *lex.Token) {
		if !havePending {
			return
		}
		havePending = false
		if next == nil || next.Value != "(" {
			b.WriteByte('[')
			b.WriteString(pending.Value)
			b.WriteByte(']')
			return
		}
		b.WriteString(pending.Value)
	}

	lex.Scan(sql, func(tok lex.Token) bool {
		flush(&tok)
		if tok.Kind == lex.Word && IsReserved(tok.Value) && !endsWithAny(prev.Value, ":[") {
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

func endsWithAny(s, chars string) bool {
	return s != "" && strings.IndexByte(chars, s[len(s)-1]) >= 0
}
