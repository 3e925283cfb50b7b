// Package lex splits SQL text into coarse lexical runs.
//
// The scanner does not parse SQL. It classifies each run of characters as a
// word, a string literal, a quoted identifier, a placeholder, whitespace or
// punctuation so that callers can rewrite words and placeholders while
// passing everything else through untouched.
package lex

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Kind classifies a token.
type Kind int

const (
	Punct Kind = iota
	Word
	String
	QuotedIdent
	Bracketed
	Param
	Variable
	Comment
	Whitespace
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Word:
		return "Word"
	case String:
		return "String"
	case QuotedIdent:
		return "QuotedIdent"
	case Bracketed:
		return "Bracketed"
	case Param:
		return "Param"
	case Variable:
		return "Variable"
	case Comment:
		return "Comment"
	case Whitespace:
		return "Whitespace"
	default:
		return "Punct"
	}
}

// Token is one lexical run.
type Token struct {
	Kind  Kind
	Value string
}

// SQLLexer defines the token rules. Rules are tried in order.
var SQLLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `--[^\n]*|/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
	{Name: "String", Pattern: `'(?:\\.|[^'\\])*'`},
	{Name: "QuotedIdent", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Bracketed", Pattern: `\[[^\]]*\]`},
	{Name: "Cast", Pattern: `::`},
	{Name: "Param", Pattern: `:[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Variable", Pattern: `@@?[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Word", Pattern: `[A-Za-z0-9_]+`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Punct", Pattern: `.`},
})

var kinds = func() map[lexer.TokenType]Kind {
	symbols := SQLLexer.Symbols()
	return map[lexer.TokenType]Kind{
		symbols["Comment"]:     Comment,
		symbols["String"]:      String,
		symbols["QuotedIdent"]: QuotedIdent,
		symbols["Bracketed"]:   Bracketed,
		symbols["Cast"]:        Punct,
		symbols["Param"]:       Param,
		symbols["Variable"]:    Variable,
		symbols["Word"]:        Word,
		symbols["Whitespace"]:  Whitespace,
		symbols["Punct"]:       Punct,
	}
}()

// Scan calls fn for every token of sql in order. Scanning stops early when fn
// returns false. Input that no rule matches is reported as a single Punct
// token holding the remainder, so Scan never fails.
func Scan(sql string, fn func(Token) bool) {
	lex, err := SQLLexer.LexString("", sql)
	if err != nil {
		fn(Token{Kind: Punct, Value: sql})
		return
	}
	consumed := 0
	for {
		tok, err := lex.Next()
		if err != nil {
			if consumed < len(sql) {
				fn(Token{Kind: Punct, Value: sql[consumed:]})
			}
			return
		}
		if tok.EOF() {
			return
		}
		consumed += len(tok.Value)
		if !fn(Token{Kind: kinds[tok.Type], Value: tok.Value}) {
			return
		}
	}
}

// Tokens returns all tokens of sql.
func Tokens(sql string) []Token {
	var out []Token
	Scan(sql, func(t Token) bool {
		out = append(out, t)
		return true
	})
	return out
}

// Placeholders returns the names of all ':name' placeholders outside string
// literals, quoted identifiers and comments, in order of appearance.
// Duplicates are reported once per occurrence.
func Placeholders(sql string) []string {
	if !strings.Contains(sql, ":") {
		return nil
	}
	var names []string
	Scan(sql, func(t Token) bool {
		if t.Kind == Param {
			names = append(names, t.Value[1:])
		}
		return true
	})
	return names
}

// CountPlaceholders returns the number of ':name' markers in sql.
func CountPlaceholders(sql string) int {
	return len(Placeholders(sql))
}

// ReplaceParams rebuilds sql, substituting each ':name' placeholder with the
// result of fn. fn reports false to keep the placeholder unchanged.
func ReplaceParams(sql string, fn func(name string) (string, bool)) string {
	if !strings.Contains(sql, ":") {
		return sql
	}
	var b strings.Builder
	b.Grow(len(sql))
	Scan(sql, func(t Token) bool {
		if t.Kind == Param {
			if repl, ok := fn(t.Value[1:]); ok {
				b.WriteString(repl)
				return true
			}
		}
		b.WriteString(t.Value)
		return true
	})
	return b.String()
}
