package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/sqlsrv-go/query"
	"github.com/satishbabariya/sqlsrv-go/query/rewrite"
	"github.com/satishbabariya/sqlsrv-go/query/sqlgen"
)

type harness struct {
	t      *testing.T
	config string
	stdin  string
	prompt []string
	answer bool
}

func newHarness(t *testing.T) *harness {
	return &harness{t: t, config: filepath.Join(t.TempDir(), "missing.yaml")}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	st := newState()
	st.confirm = func(message string) (bool, error) {
		h.prompt = append(h.prompt, message)
		return h.answer, nil
	}

	root := newRootCommand(st)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(h.stdin))
	root.SetArgs(append([]string{"--no-color", "--config", h.config}, args...))

	err := root.Execute()
	return out.String(), err
}

func TestRewriteCommand(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("rewrite", "SELECT LENGTH(name) FROM t")
	require.NoError(t, err)
	assert.Contains(t, out, "LEN(name)")
	assert.NotContains(t, out, "LENGTH")

	h.stdin = "SELECT POW(2, 3)\n"
	out, err = h.run("rewrite", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "POWER(2, 3)")

	out, err = h.run("rewrite", "--explain", "SELECT LENGTH(x) FROM t")
	require.NoError(t, err)
	assert.Contains(t, out, "rename-functions")

	_, err = h.run("rewrite")
	assert.Error(t, err)
}

func TestRewriteCommand_File(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "q.sql")
	require.NoError(t, os.WriteFile(path, []byte("SELECT LENGTH(a) FROM t"), 0o644))

	out, err := h.run("rewrite", "--diff", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "- SELECT LENGTH(a) FROM t")
	assert.Contains(t, out, "+ SELECT LEN(a) FROM t")
}

func TestExplainMarkdown(t *testing.T) {
	md := explainMarkdown("SELECT 1", nil)
	assert.Contains(t, md, "No step changed the statement")

	md = explainMarkdown("SELECT LENGTH(a)", []rewrite.Change{{Step: "rename-functions", Before: "SELECT LENGTH(a)", After: "SELECT LEN(a)"}})
	assert.Contains(t, md, "## 1. rename-functions")
	assert.Contains(t, md, "SELECT LEN(a)")
}

func TestPaginateCommand(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("paginate", "--limit", "5", "SELECT id FROM t ORDER BY id")
	require.NoError(t, err)
	assert.Contains(t, out, "SELECT TOP(5) id FROM t ORDER BY id")

	out, err = h.run("paginate", "--offset", "10", "--limit", "5", "SELECT id FROM t ORDER BY id")
	require.NoError(t, err)
	assert.Contains(t, out, "BETWEEN 11 AND 15")

	_, err = h.run("paginate", "SELECT id FROM t")
	assert.Error(t, err, "--limit is required")
}

func TestTempCommand(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("temp", "--seed", "SEED", "SELECT id FROM t")
	require.NoError(t, err)
	assert.Contains(t, out, "##db_temp_0_SEED")
	assert.Contains(t, out, "INTO ##db_temp_0_SEED FROM")
}

func TestMergeCommand(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("merge", "--table", "users",
		"--match", "id=7",
		"--update", "name=Ann",
		"--insert", "id=7", "--insert", "name=Ann")
	require.NoError(t, err)
	assert.Contains(t, out, "MERGE INTO [users] _target")
	assert.Contains(t, out, "db_condition_placeholder_0")
	assert.Contains(t, out, "Ann")

	_, err = h.run("merge", "--table", "users")
	assert.Error(t, err, "--match is required")

	_, err = h.run("merge", "--table", "users", "--match", "novalue")
	assert.Error(t, err)
}

func TestMergeFlags_Spec(t *testing.T) {
	f := &mergeFlags{
		table:    "counters",
		match:    []string{"k=hits"},
		update:   []string{"n=1"},
		expr:     []string{"n=n + 1"},
		insert:   []string{"k=hits", "n=1"},
		identity: true,
	}
	spec, err := f.spec()
	require.NoError(t, err)
	assert.Equal(t, []sqlgen.Field{{Name: "k", Value: "hits"}}, spec.Conditions)
	assert.Equal(t, []sqlgen.Expression{{Name: "n", SQL: "n + 1"}}, spec.ExpressionFields)
	assert.True(t, spec.IdentityInsert)

	_, err = (&mergeFlags{table: "t"}).spec()
	assert.Error(t, err, "a merge needs at least one condition")
}

func TestExecCommand_SQLite(t *testing.T) {
	h := newHarness(t)
	dsn := filepath.Join(t.TempDir(), "test.db")
	conn := []string{"--driver", "sqlite3", "--dsn", dsn}
	exec := func(args ...string) (string, error) {
		return h.run(append(append([]string{}, conn...), append([]string{"exec"}, args...)...)...)
	}

	_, err := exec("--yes", "--return", "none", "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)

	out, err := exec("--yes", "--return", "insert-id", "--arg", "name=Ann", "INSERT INTO users (name) VALUES (:name)")
	require.NoError(t, err)
	assert.Contains(t, out, "Inserted id 1")

	out, err = exec("--yes", "--return", "affected", "--arg", "name='42'", "INSERT INTO users (name) VALUES (:name)")
	require.NoError(t, err)
	assert.Contains(t, out, "1 row(s) affected")

	out, err = exec("--arg", "id=1", "SELECT id, name FROM users WHERE id = :id")
	require.NoError(t, err)
	assert.Contains(t, out, "Ann")
	assert.Empty(t, h.prompt, "reads are not confirmed")

	out, err = exec("SELECT name FROM users WHERE id > 100")
	require.NoError(t, err)
	assert.Contains(t, out, "No rows")

	h.answer = false
	_, err = exec("DELETE FROM users")
	assert.ErrorIs(t, err, ErrAborted)
	require.Len(t, h.prompt, 1)
	assert.Contains(t, h.prompt[0], "DELETE FROM users")

	_, err = exec("SELECT * FROM ghost")
	assert.True(t, query.IsObjectNotFound(err))

	_, err = exec("--return", "bogus", "SELECT 1")
	assert.Error(t, err)
}

func TestConfigShowCommand(t *testing.T) {
	h := newHarness(t)
	t.Setenv("SQLSRV_REWRITE_THRESHOLD", "7")

	out, err := h.run("--log-level", "error", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "rewrite.threshold")
	assert.Contains(t, out, "7")
	assert.Contains(t, out, "error")
	assert.Contains(t, out, "sqlserver")
}

func TestVersionCommand(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("version", "--short")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlsrv version")
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want interface{}
	}{
		{"42", int64(42)},
		{"-3", int64(-3)},
		{"null", nil},
		{"TRUE", true},
		{"false", false},
		{"'42'", "42"},
		{"Ann", "Ann"},
		{"", ""},
		{"1.5", "1.5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseValue(tt.in), tt.in)
	}
}

func TestParseArgs(t *testing.T) {
	args, err := parseArgs([]string{":id=1", "name=a=b"})
	require.NoError(t, err)
	assert.Equal(t, []query.Arg{{Name: "id", Value: int64(1)}, {Name: "name", Value: "a=b"}}, args)

	_, err = parseArgs([]string{"=1"})
	assert.Error(t, err)
}

func TestIsReadStatement(t *testing.T) {
	assert.True(t, isReadStatement("  select 1"))
	assert.True(t, isReadStatement("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.False(t, isReadStatement("UPDATE t SET a = 1"))
	assert.False(t, isReadStatement(""))
}
