package sqlgen_test

import (
	"testing"

	"github.com/satishbabariya/sqlsrv-go/query/sqlgen"
	"github.com/stretchr/testify/assert"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare", in: "title", want: "[title]"},
		{name: "qualified", in: "n.title", want: "[n].[title]"},
		{name: "strips punctuation", in: "users; DROP TABLE x", want: "[usersDROPTABLEx]"},
		{name: "strips brackets", in: "[order]", want: "[order]"},
		{name: "strips per segment", in: "db-o.my table", want: "[dbo].[mytable]"},
		{name: "empty", in: "", want: ""},
		{name: "nothing left", in: "--;", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sqlgen.Quote(tt.in))
		})
	}
}

func TestQuoteAll(t *testing.T) {
	assert.Equal(t, []string{"[a]", "[b].[c]"}, sqlgen.QuoteAll([]string{"a", "b.c"}))
	assert.Empty(t, sqlgen.QuoteAll(nil))
}

func TestEscapeTable(t *testing.T) {
	assert.Equal(t, "node", sqlgen.EscapeTable("node"))
	assert.Equal(t, "dbo.node", sqlgen.EscapeTable("dbo.node;"))
	assert.Equal(t, "#tmp", sqlgen.EscapeTable("#tmp"))
	assert.Equal(t, "##db_temp_1_AB", sqlgen.EscapeTable("##db_temp_1_AB"))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "plain", sqlgen.EscapeLike("plain"))
	assert.Equal(t, `100\%`, sqlgen.EscapeLike("100%"))
	assert.Equal(t, `a\_b\[c\]\\`, sqlgen.EscapeLike(`a_b[c]\`))

	assert.Equal(t, " ESCAPE CHAR(92)", sqlgen.LikeEscapeSuffix("like"))
	assert.Equal(t, " ESCAPE CHAR(92)", sqlgen.LikeEscapeSuffix("NOT LIKE"))
	assert.Empty(t, sqlgen.LikeEscapeSuffix("="))
}
