package executor

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/sqlsrv-go/query"
	"github.com/satishbabariya/sqlsrv-go/query/engine"
	"github.com/satishbabariya/sqlsrv-go/query/rewrite"
	"github.com/satishbabariya/sqlsrv-go/query/sqlgen"
)

type fakeResult struct{ affected, id int64 }

func (r fakeResult) LastInsertId() (int64, error) { return r.id, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, nil }

type fakeRows struct {
	cols   []string
	data   [][]interface{}
	pos    int
	closed bool
}

func (r *fakeRows) Columns() ([]string, error) { return r.cols, nil }
func (r *fakeRows) Err() error                 { return nil }
func (r *fakeRows) Close() error               { r.closed = true; return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...interface{}) error {
	row := r.data[r.pos-1]
	for i, d := range dest {
		switch d := d.(type) {
		case *interface{}:
			*d = row[i]
		case *sql.NullInt64:
			d.Int64, d.Valid = row[i].(int64), true
		default:
			return errors.New("unsupported scan destination")
		}
	}
	return nil
}

type call struct {
	sql  string
	args []interface{}
}

// fakeSession records every statement and fails those containing a key of
// errs with the mapped error.
type fakeSession struct {
	calls     []call
	errs      map[string]error
	rows      *fakeRows
	result    fakeResult
	inTx      bool
	begins    int
	commits   int
	rollbacks int
}

func (s *fakeSession) errFor(text string) error {
	for sub, err := range s.errs {
		if strings.Contains(text, sub) {
			return err
		}
	}
	return nil
}

func (s *fakeSession) ExecContext(_ context.Context, text string, args ...interface{}) (sql.Result, error) {
	s.calls = append(s.calls, call{text, args})
	if err := s.errFor(text); err != nil {
		return nil, err
	}
	return s.result, nil
}

func (s *fakeSession) QueryContext(_ context.Context, text string, args ...interface{}) (engine.Rows, error) {
	s.calls = append(s.calls, call{text, args})
	if err := s.errFor(text); err != nil {
		return nil, err
	}
	if s.rows == nil {
		return &fakeRows{}, nil
	}
	return s.rows, nil
}

func (s *fakeSession) BeginTx(context.Context, *sql.TxOptions) error {
	s.begins++
	s.inTx = true
	return nil
}

func (s *fakeSession) Commit() error {
	s.commits++
	s.inTx = false
	return nil
}

func (s *fakeSession) Rollback() error {
	s.rollbacks++
	s.inTx = false
	return nil
}

func (s *fakeSession) InTransaction() bool { return s.inTx }

func (s *fakeSession) last() call { return s.calls[len(s.calls)-1] }

type recordingObserver struct {
	executions int
	failures   int
	poisoned   []query.Diagnostic
}

func (o *recordingObserver) ExecutionObserved(_ ReturnMode, _ time.Duration, err error) {
	o.executions++
	if err != nil {
		o.failures++
	}
}

func (o *recordingObserver) TransactionPoisoned(d query.Diagnostic) {
	o.poisoned = append(o.poisoned, d)
}

func newFake(opts ...Option) (*Executor, *fakeSession) {
	s := &fakeSession{errs: map[string]error{}}
	return New(s, engine.SQLServer{}, opts...), s
}

var deadlock = mssql.Error{Number: 1205, Message: "Transaction was deadlocked and has been chosen as the deadlock victim."}

func TestExpandArgs(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		args     []query.Arg
		wantText string
		wantArgs []query.Arg
	}{
		{
			name:     "scalar only",
			text:     "SELECT * FROM t WHERE x = :x",
			args:     []query.Arg{{Name: "x", Value: 1}},
			wantText: "SELECT * FROM t WHERE x = :x",
			wantArgs: []query.Arg{{Name: "x", Value: 1}},
		},
		{
			name:     "slice",
			text:     "SELECT * FROM t WHERE id IN (:ids) AND x = :x",
			args:     []query.Arg{{Name: "ids", Value: []int{1, 2, 3}}, {Name: "x", Value: "a"}},
			wantText: "SELECT * FROM t WHERE id IN (:ids_0, :ids_1, :ids_2) AND x = :x",
			wantArgs: []query.Arg{
				{Name: "ids_0", Value: 1},
				{Name: "ids_1", Value: 2},
				{Name: "ids_2", Value: 3},
				{Name: "x", Value: "a"},
			},
		},
		{
			name:     "empty slice",
			text:     "SELECT * FROM t WHERE id IN (:ids)",
			args:     []query.Arg{{Name: "ids", Value: []string{}}},
			wantText: "SELECT * FROM t WHERE id IN (NULL)",
			wantArgs: []query.Arg{},
		},
		{
			name:     "bytes are scalar",
			text:     "SELECT * FROM t WHERE h = :h",
			args:     []query.Arg{{Name: "h", Value: []byte{1, 2}}},
			wantText: "SELECT * FROM t WHERE h = :h",
			wantArgs: []query.Arg{{Name: "h", Value: []byte{1, 2}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, args, err := ExpandArgs(tt.text, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantArgs, args)
		})
	}

	t.Run("numbered name taken", func(t *testing.T) {
		_, _, err := ExpandArgs("SELECT * FROM t WHERE id IN (:ids) OR id = :ids_0",
			[]query.Arg{{Name: "ids", Value: []int{1, 2}}, {Name: "ids_0", Value: 9}})
		assert.ErrorContains(t, err, `"ids_0" is already an argument`)
	})
}

func TestNeedsInterpolation(t *testing.T) {
	one := []query.Arg{{Name: "a", Value: 1}}
	assert.False(t, needsInterpolation("SELECT :a", one, false))
	assert.True(t, needsInterpolation("SELECT :a", one, true))
	assert.True(t, needsInterpolation("SELECT :a, :a", one, false))

	many := make([]query.Arg, MaxParams)
	var b strings.Builder
	for i := range many {
		many[i] = query.Arg{Name: "p" + string(rune('a'+i%26)) + strings.Repeat("x", i/26), Value: i}
		b.WriteString(" :" + many[i].Name)
	}
	assert.True(t, needsInterpolation(b.String(), many, false))
}

func TestInterpolate(t *testing.T) {
	out := Interpolate("SELECT * FROM t WHERE a = :a AND b = :b AND c = ':a'",
		[]query.Arg{{Name: "a", Value: "x"}, {Name: "b", Value: 1}}, engine.SQLServer{})
	assert.Equal(t, "SELECT * FROM t WHERE a = N'x' AND b = 1 AND c = ':a'", out)

	var missing *string
	nick := "bob"
	out = Interpolate("SELECT :a, :b, :c, :d, :e", []query.Arg{
		{Name: "a", Value: missing},
		{Name: "b", Value: &nick},
		{Name: "c", Value: sql.NullBool{}},
		{Name: "d", Value: sql.NullInt32{Int32: 7, Valid: true}},
		{Name: "e", Value: sql.NullString{String: "o'k", Valid: true}},
	}, engine.SQLServer{})
	assert.Equal(t, "SELECT NULL, N'bob', NULL, 7, N'o''k'", out)
}

func TestExecute_ReturnModes(t *testing.T) {
	ctx := context.Background()

	t.Run("affected", func(t *testing.T) {
		e, s := newFake()
		s.result = fakeResult{affected: 3}
		res, err := e.Execute(ctx, query.New("UPDATE t SET a = :a", query.Named("a", 1)), Options{Return: ReturnAffected})
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.RowsAffected)
		assert.Equal(t, "UPDATE t SET a = @a", s.last().sql)
		assert.Equal(t, []interface{}{sql.Named("a", 1)}, s.last().args)
	})

	t.Run("insert id", func(t *testing.T) {
		e, s := newFake()
		s.rows = &fakeRows{cols: []string{""}, data: [][]interface{}{{int64(42)}}}
		res, err := e.Execute(ctx, query.New("INSERT INTO t (a) VALUES (:a)", query.Named("a", 1)), Options{Return: ReturnInsertID})
		require.NoError(t, err)
		assert.Equal(t, int64(42), res.InsertID)
		assert.True(t, strings.HasSuffix(s.last().sql, "SCOPE_IDENTITY() AS BIGINT)"))
		assert.True(t, s.rows.closed)
	})

	t.Run("none", func(t *testing.T) {
		e, s := newFake()
		res, err := e.Execute(ctx, query.New("DELETE FROM t"), Options{Return: ReturnNone})
		require.NoError(t, err)
		assert.Equal(t, ReturnNone, res.Mode)
		assert.Len(t, s.calls, 1)
	})

	t.Run("statement", func(t *testing.T) {
		e, s := newFake()
		s.rows = &fakeRows{cols: []string{"id", "name"}, data: [][]interface{}{{int64(1), "a"}, {int64(2), "b"}}}
		res, err := e.Execute(ctx, query.New("SELECT id, name FROM t"), Options{})
		require.NoError(t, err)
		rows, err := res.Statement.FetchAll()
		require.NoError(t, err)
		assert.Equal(t, []interface{}{
			map[string]interface{}{"id": int64(1), "name": "a"},
			map[string]interface{}{"id": int64(2), "name": "b"},
		}, rows)
		assert.True(t, s.rows.closed)
	})

	t.Run("duplicate placeholder is interpolated", func(t *testing.T) {
		e, s := newFake()
		_, err := e.Execute(ctx, query.New("DELETE FROM t WHERE a = :a OR b = :a", query.Named("a", 7)), Options{Return: ReturnNone})
		require.NoError(t, err)
		assert.Equal(t, "DELETE FROM t WHERE a = 7 OR b = 7", s.last().sql)
		assert.Empty(t, s.last().args)
	})
}

func TestParseReturnMode(t *testing.T) {
	for _, m := range []ReturnMode{ReturnStatement, ReturnAffected, ReturnInsertID, ReturnNone} {
		got, err := ParseReturnMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseReturnMode("rows")
	assert.Error(t, err)
}

func TestExecute_Rewrites(t *testing.T) {
	e, s := newFake(WithRewriter(rewrite.New()))
	_, err := e.Execute(context.Background(), query.New("SELECT LENGTH(name) FROM t"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT LEN(name) FROM t", s.last().sql)
}

func TestExecute_ErrorClassification(t *testing.T) {
	ctx := context.Background()

	t.Run("integrity violation", func(t *testing.T) {
		e, s := newFake()
		s.errs["INSERT"] = mssql.Error{Number: 2627, Message: "Violation of PRIMARY KEY constraint"}
		_, err := e.Execute(ctx, query.New("INSERT INTO t (id) VALUES (:id)", query.Named("id", 1)), Options{Return: ReturnNone})
		require.Error(t, err)
		assert.ErrorIs(t, err, query.ErrIntegrityConstraint)

		var ie *query.IntegrityConstraintViolationError
		require.True(t, errors.As(err, &ie))
		assert.Equal(t, "INSERT INTO t (id) VALUES (@id)", ie.SQL)
		assert.Equal(t, []query.Arg{{Name: "id", Value: 1}}, ie.Args)
		assert.False(t, e.Tracker().Poisoned())
	})

	t.Run("aborting error outside a transaction", func(t *testing.T) {
		e, s := newFake()
		s.errs["boom"] = deadlock
		_, err := e.Execute(ctx, query.New("UPDATE boom SET a = 1"), Options{Return: ReturnNone})
		assert.ErrorIs(t, err, query.ErrExecution)
		assert.False(t, e.Tracker().Poisoned())
	})
}

func TestTransaction_Poisoning(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	e, s := newFake(WithObserver(obs))
	s.errs["boom"] = deadlock

	tx, err := e.Begin(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	require.NoError(t, err)
	assert.Equal(t, sql.LevelReadCommitted, tx.Isolation())

	_, err = tx.Execute(ctx, query.New("UPDATE boom SET a = 1"), Options{Return: ReturnNone})
	var ee *query.ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "40001", ee.Diagnostic.SQLState)
	assert.True(t, e.Tracker().Poisoned())
	require.Len(t, obs.poisoned, 1)
	assert.Equal(t, 1205, obs.poisoned[0].Number)

	sent := len(s.calls)
	_, err = tx.Execute(ctx, query.New("SELECT 1"), Options{})
	assert.ErrorIs(t, err, query.ErrDoomedTransaction)
	assert.True(t, query.IsDoomed(err))
	assert.Len(t, s.calls, sent, "doomed statements must not reach the engine")

	_, err = e.Begin(ctx, nil)
	assert.ErrorIs(t, err, query.ErrDoomedTransaction)

	err = tx.Commit(ctx)
	assert.ErrorIs(t, err, query.ErrDoomedTransaction)
	assert.False(t, tx.Resolved())
	assert.Zero(t, s.commits)

	require.NoError(t, tx.Rollback(ctx))
	assert.Equal(t, 1, s.rollbacks)
	assert.Equal(t, Healthy, e.Tracker().State())

	next, err := e.Begin(ctx, nil)
	require.NoError(t, err)
	_, err = next.Execute(ctx, query.New("SELECT 1"), Options{})
	require.NoError(t, err)
	require.NoError(t, next.Commit(ctx))
	assert.Equal(t, 1, s.commits)
	assert.Equal(t, 1, obs.failures, "doomed statements are rejected before execution")
}

func TestTransaction_CloseWhilePoisoned(t *testing.T) {
	ctx := context.Background()
	e, s := newFake()
	s.errs["boom"] = deadlock

	tx, err := e.Begin(ctx, nil)
	require.NoError(t, err)
	_, err = tx.Execute(ctx, query.New("UPDATE boom SET a = 1"), Options{Return: ReturnNone})
	require.Error(t, err)

	err = tx.Close(ctx)
	var de *query.DoomedTransactionError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "close", de.Op)
	require.NotNil(t, de.Diagnostic)
	assert.Equal(t, 1205, de.Diagnostic.Number)

	assert.True(t, tx.Resolved())
	assert.False(t, e.Tracker().Poisoned())
	assert.NoError(t, tx.Close(ctx))
}

func TestTransaction_Savepoints(t *testing.T) {
	ctx := context.Background()
	e, s := newFake(WithRewriter(rewrite.New()))

	outer, err := e.Begin(ctx, nil)
	require.NoError(t, err)
	inner, err := e.Begin(ctx, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.Depth())
	assert.Equal(t, "savepoint_1", inner.Name())
	assert.Same(t, outer, inner.Parent())
	assert.Equal(t, "SAVE TRANSACTION savepoint_1", s.last().sql)
	assert.Equal(t, 1, s.begins)

	assert.ErrorIs(t, outer.Commit(ctx), query.ErrTransactionOrder)

	require.NoError(t, inner.Commit(ctx))
	assert.Equal(t, "SELECT 1 /* RELEASE SAVEPOINT savepoint_1 */", s.last().sql)

	again, err := e.Begin(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "savepoint_2", again.Name())
	deeper, err := e.Begin(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, again.Rollback(ctx))
	assert.Equal(t, "ROLLBACK TRANSACTION savepoint_2", s.last().sql)
	assert.True(t, deeper.Resolved())
	assert.ErrorIs(t, deeper.Commit(ctx), query.ErrTransactionResolved)

	require.NoError(t, outer.Commit(ctx))
	assert.False(t, e.InTransaction())
	assert.ErrorIs(t, outer.Rollback(ctx), query.ErrTransactionResolved)
}

func TestTransaction_NestedRollbackWhilePoisoned(t *testing.T) {
	ctx := context.Background()
	e, s := newFake()
	s.errs["boom"] = deadlock

	outer, err := e.Begin(ctx, nil)
	require.NoError(t, err)
	inner, err := e.Begin(ctx, nil)
	require.NoError(t, err)

	_, err = inner.Execute(ctx, query.New("UPDATE boom SET a = 1"), Options{Return: ReturnNone})
	require.Error(t, err)

	sent := len(s.calls)
	require.NoError(t, inner.Rollback(ctx))
	assert.Len(t, s.calls, sent)
	assert.True(t, e.Tracker().Poisoned(), "a savepoint rollback does not clear the poison")

	require.NoError(t, outer.Rollback(ctx))
	assert.False(t, e.Tracker().Poisoned())
}

func TestMerge(t *testing.T) {
	ctx := context.Background()
	spec := func() *sqlgen.MergeSpec {
		return &sqlgen.MergeSpec{
			Table:        "users",
			Conditions:   []sqlgen.Field{{Name: "id", Value: 1}},
			UpdateFields: []sqlgen.Field{{Name: "name", Value: "a"}},
			InsertFields: []sqlgen.Field{{Name: "id", Value: 1}, {Name: "name", Value: "a"}},
		}
	}

	t.Run("insert", func(t *testing.T) {
		e, s := newFake(WithRewriter(rewrite.New()))
		s.rows = &fakeRows{cols: []string{"$action"}, data: [][]interface{}{{"INSERT"}}}
		status, err := e.Merge(ctx, spec())
		require.NoError(t, err)
		assert.Equal(t, MergeStatusInsert, status)
		assert.True(t, strings.HasPrefix(s.last().sql, "MERGE INTO [users] _target"))
		assert.Contains(t, s.last().sql, "@db_condition_placeholder_0")
		assert.Equal(t, sql.Named("db_condition_placeholder_0", 1), s.last().args[0])
	})

	t.Run("update", func(t *testing.T) {
		e, s := newFake()
		s.rows = &fakeRows{cols: []string{"$action"}, data: [][]interface{}{{[]byte("UPDATE")}}}
		status, err := e.Merge(ctx, spec())
		require.NoError(t, err)
		assert.Equal(t, MergeStatusUpdate, status)
		assert.Equal(t, "UPDATE", status.String())
	})

	t.Run("no rows", func(t *testing.T) {
		e, _ := newFake()
		_, err := e.Merge(ctx, spec())
		assert.ErrorIs(t, err, query.ErrInvalidMergeResult)
	})

	t.Run("unexpected action", func(t *testing.T) {
		e, s := newFake()
		s.rows = &fakeRows{cols: []string{"$action"}, data: [][]interface{}{{"DELETE"}}}
		_, err := e.Merge(ctx, spec())
		assert.ErrorIs(t, err, query.ErrInvalidMergeResult)
	})

	t.Run("invalid spec", func(t *testing.T) {
		e, s := newFake()
		_, err := e.Merge(ctx, &sqlgen.MergeSpec{Table: "users"})
		assert.ErrorIs(t, err, query.ErrInvalidSpec)
		assert.Empty(t, s.calls)
	})
}

func TestQueryRange(t *testing.T) {
	e, s := newFake()
	_, err := e.QueryRange(context.Background(), query.New("SELECT a FROM t ORDER BY a"), 5, 10, Options{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s.last().sql, "SELECT * FROM (SELECT sub2.*"))
	assert.True(t, strings.HasSuffix(s.last().sql, "WHERE __line3 BETWEEN 6 AND 15"))
}

func TestQueryTemporary(t *testing.T) {
	e, s := newFake(WithTempNamer(rewrite.NewTempNamerWithSeed("SEED")))
	table, err := e.QueryTemporary(context.Background(), query.New("SELECT a, b FROM t WHERE a = :a", query.Named("a", 1)), Options{Return: ReturnStatement})
	require.NoError(t, err)
	assert.Equal(t, "##db_temp_0_SEED", table)
	assert.Equal(t, "SELECT a, b INTO ##db_temp_0_SEED FROM t WHERE a = @a", s.last().sql)

	table, err = e.QueryTemporary(context.Background(), query.New("SELECT a FROM t"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "##db_temp_1_SEED", table)
}
