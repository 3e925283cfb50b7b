package rewrite

import (
	"fmt"
	"regexp"
	"strconv"
)

var leadingSelect = regexp.MustCompile(`(?is)^\s*SELECT(\s*DISTINCT)?`)

// Paginate limits text to limit rows after skipping offset rows.
//
// With offset 0 the leading SELECT [DISTINCT] gains a TOP(limit) modifier.
// Otherwise the statement fetches TOP(offset+limit) rows and is wrapped in
// three subqueries that number the rows and keep the window
// [offset+1, offset+limit]. Numbering follows the inner query's result
// order, so callers must give it a deterministic ORDER BY.
//
// Negative arguments are treated as 0.
func Paginate(text string, offset, limit int) string {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	if offset == 0 {
		return replaceFirst(leadingSelect, text, "SELECT${1} TOP("+strconv.Itoa(limit)+")")
	}

	inner := replaceFirst(leadingSelect, text, "SELECT${1} TOP("+strconv.Itoa(offset+limit)+") ")
	return fmt.Sprintf("SELECT * FROM ("+
		"SELECT sub2.*, ROW_NUMBER() OVER(ORDER BY sub2.__line2) AS __line3 FROM ("+
		"SELECT 1 AS __line2, sub1.* FROM (%s) AS sub1"+
		") AS sub2"+
		") AS sub3 WHERE __line3 BETWEEN %d AND %d", inner, offset+1, offset+limit)
}

// replaceFirst substitutes the first match of re only.
func replaceFirst(re *regexp.Regexp, s, repl string) string {
	loc := re.FindStringSubmatchIndex(s)
	if loc == nil {
		return s
	}
	var out []byte
	out = re.ExpandString(out, repl, s, loc)
	return s[:loc[0]] + string(out) + s[loc[1]:]
}
