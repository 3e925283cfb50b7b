// Package sqlgen generates SQL Server (T-SQL) fragments: quoted identifiers
// and MERGE statements.
package sqlgen

import (
	"strings"
)

// Quote wraps each dot-separated segment of identifier in brackets after
// removing every character outside [A-Za-z0-9_.].
//
//	Quote("n.title")      -> "[n].[title]"
//	Quote("users; DROP")  -> "[usersDROP]"
func Quote(identifier string) string {
	clean := sanitize(identifier)
	if clean == "" {
		return ""
	}
	segments := strings.Split(clean, ".")
	var b strings.Builder
	b.Grow(len(clean) + 2*len(segments))
	for i, seg := range segments {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteByte('[')
		b.WriteString(seg)
		b.WriteByte(']')
	}
	return b.String()
}

// QuoteAll applies Quote to each identifier.
func QuoteAll(identifiers []string) []string {
	out := make([]string, len(identifiers))
	for i, id := range identifiers {
		out[i] = Quote(id)
	}
	return out
}

// EscapeTable sanitizes a table name like Quote does, without adding
// brackets, and keeps a leading '#' or '##' temporary-table marker.
func EscapeTable(table string) string {
	marker := ""
	switch {
	case strings.HasPrefix(table, "##"):
		marker = "##"
	case strings.HasPrefix(table, "#"):
		marker = "#"
	}
	return marker + sanitize(table)
}

// EscapeLike escapes the LIKE wildcard characters of s with a backslash.
// Pair it with LikeEscapeSuffix so the engine honours the escape character.
func EscapeLike(s string) string {
	if !strings.ContainsAny(s, `\%_[]`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\', '%', '_', '[', ']':
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// LikeEscapeSuffix returns the clause appended to LIKE conditions. SQL Server
// has no default escape character, so backslash is declared explicitly.
func LikeEscapeSuffix(operator string) string {
	switch strings.ToUpper(strings.TrimSpace(operator)) {
	case "LIKE", "NOT LIKE":
		return " ESCAPE CHAR(92)"
	default:
		return ""
	}
}

func sanitize(s string) string {
	clean := true
	for i := 0; i < len(s); i++ {
		if !identChar(s[i]) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if identChar(s[i]) {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func identChar(c byte) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '_' || c == '.'
}
