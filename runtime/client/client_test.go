package client_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/sqlsrv-go/query"
	"github.com/satishbabariya/sqlsrv-go/query/cache"
	"github.com/satishbabariya/sqlsrv-go/query/executor"
	"github.com/satishbabariya/sqlsrv-go/runtime/client"
	"github.com/satishbabariya/sqlsrv-go/telemetry"
)

func openSQLite(t *testing.T, opts ...client.Option) *client.Connection {
	t.Helper()
	opts = append([]client.Option{client.WithDriver("sqlite3"), client.WithDSN(":memory:")}, opts...)
	c, err := client.Open(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(context.Background()) })
	return c
}

func run(t *testing.T, c *client.Connection, text string, args ...query.Arg) {
	t.Helper()
	_, err := c.Execute(context.Background(), query.New(text, args...), executor.Options{Return: executor.ReturnNone})
	require.NoError(t, err, text)
}

func count(t *testing.T, c *client.Connection, table string) int64 {
	t.Helper()
	res, err := c.Execute(context.Background(), query.New("SELECT COUNT(*) FROM {"+table+"}"), executor.Options{})
	require.NoError(t, err)
	n, err := res.Statement.FetchField(0)
	require.NoError(t, err)
	require.NoError(t, res.Statement.Close())
	return n.(int64)
}

func TestOpen_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := client.Open(ctx, client.WithDriver("oracle"), client.WithDSN("x"))
	assert.Error(t, err)

	_, err = client.Open(ctx, client.WithDriver("sqlite3"))
	assert.Error(t, err)

	_, err = client.Open(ctx, client.WithDriver("sqlite3"), client.WithDSN(":memory:"),
		client.WithCache(cache.Config{Backend: "memcached"}))
	assert.Error(t, err)
}

func TestOpen_RewriterSelection(t *testing.T) {
	c := openSQLite(t)
	assert.Nil(t, c.Rewriter())
	assert.Equal(t, "sqlite3", c.Dialect().Name())

	forced := openSQLite(t, client.WithRewrite(true), client.WithThreshold(3), client.WithSchema("udf"))
	require.NotNil(t, forced.Rewriter())
	assert.Equal(t, 3, forced.Rewriter().Threshold())
	assert.Equal(t, "udf", forced.Rewriter().Schema())
}

func TestPrefixTables(t *testing.T) {
	c := openSQLite(t, client.WithTablePrefix("app_"))

	tests := []struct {
		in   string
		want string
	}{
		{"SELECT * FROM {users}", "SELECT * FROM app_users"},
		{"SELECT * FROM {users} u JOIN {roles} r ON u.rid = r.id", "SELECT * FROM app_users u JOIN app_roles r ON u.rid = r.id"},
		{"SELECT * FROM {##scratch}", "SELECT * FROM ##scratch"},
		{"SELECT * FROM {bad;name}", "SELECT * FROM {bad;name}"},
		{"SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.PrefixTables(tt.in), tt.in)
	}

	plain := openSQLite(t)
	assert.Equal(t, "SELECT * FROM users", plain.PrefixTables("SELECT * FROM {users}"))
}

func TestConnection_Execute(t *testing.T) {
	ctx := context.Background()
	m := telemetry.New()
	c := openSQLite(t, client.WithTablePrefix("t_"), client.WithMetrics(m))

	run(t, c, "CREATE TABLE {items} (id INTEGER PRIMARY KEY, name TEXT)")
	res, err := c.Execute(ctx, query.New("INSERT INTO {items} (name) VALUES (:name)", query.Named("name", "a")),
		executor.Options{Return: executor.ReturnInsertID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.InsertID)
	assert.Equal(t, int64(1), count(t, c, "items"))

	_, err = c.Execute(ctx, query.New("SELECT * FROM items"), executor.Options{})
	assert.True(t, query.IsObjectNotFound(err), "unprefixed name must not resolve")

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["sqlsrv_executions_total"])
	assert.True(t, names["sqlsrv_execution_duration_seconds"])
}

func TestConnection_Middleware(t *testing.T) {
	ctx := context.Background()
	var events []client.QueryEvent
	record := func(ctx context.Context, event *client.QueryEvent, next func() error) error {
		err := next()
		events = append(events, *event)
		return err
	}
	c := openSQLite(t, client.WithTablePrefix("p_"), client.WithMiddleware(record))

	run(t, c, "CREATE TABLE {kv} (k TEXT PRIMARY KEY)")
	require.NoError(t, c.Transaction(ctx, nil, func(ctx context.Context, tx *client.Tx) error {
		_, err := tx.Execute(ctx, query.New("INSERT INTO {kv} (k) VALUES (:k)", query.Named("k", "a")), executor.Options{Return: executor.ReturnNone})
		return err
	}))

	ops := make([]string, len(events))
	for i, e := range events {
		ops[i] = e.Operation
	}
	assert.Equal(t, []string{client.OpExecute, client.OpBegin, client.OpExecute, client.OpCommit}, ops)
	assert.Equal(t, "CREATE TABLE p_kv (k TEXT PRIMARY KEY)", events[0].Query)
	assert.Equal(t, []query.Arg{{Name: "k", Value: "a"}}, events[2].Args)
	assert.Positive(t, events[2].Duration)
}

func TestReadOnlyMiddleware(t *testing.T) {
	ctx := context.Background()
	c := openSQLite(t)
	run(t, c, "CREATE TABLE kv (k TEXT)")

	c.Use(client.ReadOnlyMiddleware())
	_, err := c.Execute(ctx, query.New("INSERT INTO kv (k) VALUES ('a')"), executor.Options{Return: executor.ReturnNone})
	assert.ErrorIs(t, err, client.ErrReadOnly)

	_, err = c.Execute(ctx, query.New("SELECT k FROM kv"), executor.Options{})
	assert.NoError(t, err)
}

func TestTransaction(t *testing.T) {
	ctx := context.Background()
	c := openSQLite(t)
	run(t, c, "CREATE TABLE kv (k TEXT PRIMARY KEY)")

	insert := func(ctx context.Context, tx *client.Tx, k string) error {
		_, err := tx.Execute(ctx, query.New("INSERT INTO kv (k) VALUES (:k)", query.Named("k", k)), executor.Options{Return: executor.ReturnNone})
		return err
	}

	boom := errors.New("boom")
	err := c.Transaction(ctx, nil, func(ctx context.Context, tx *client.Tx) error {
		require.NoError(t, insert(ctx, tx, "a"))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), count(t, c, "kv"))

	err = c.Transaction(ctx, nil, func(ctx context.Context, tx *client.Tx) error {
		if err := insert(ctx, tx, "outer"); err != nil {
			return err
		}
		nested := tx.Transaction(ctx, func(ctx context.Context, inner *client.Tx) error {
			assert.Equal(t, 1, inner.Depth())
			if err := insert(ctx, inner, "inner"); err != nil {
				return err
			}
			return insert(ctx, inner, "outer")
		})
		assert.True(t, query.IsIntegrityViolation(nested))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count(t, c, "kv"))
	assert.False(t, c.Executor().InTransaction())
}

func TestTransaction_Panic(t *testing.T) {
	ctx := context.Background()
	c := openSQLite(t)
	run(t, c, "CREATE TABLE kv (k TEXT)")

	assert.Panics(t, func() {
		_ = c.Transaction(ctx, nil, func(ctx context.Context, tx *client.Tx) error {
			_, _ = tx.Execute(ctx, query.New("INSERT INTO kv (k) VALUES ('x')"), executor.Options{Return: executor.ReturnNone})
			panic("boom")
		})
	})
	assert.False(t, c.Executor().InTransaction())
	assert.Equal(t, int64(0), count(t, c, "kv"))
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	c, err := client.Open(ctx, client.WithDriver("sqlite"), client.WithDB(db), client.WithCache(cache.Config{Backend: cache.BackendStub}))
	require.NoError(t, err)

	_, err = c.Begin(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, c.Close(ctx))
	require.NoError(t, c.Close(ctx))

	_, err = c.Execute(ctx, query.New("SELECT 1"), executor.Options{})
	assert.ErrorIs(t, err, client.ErrClosed)
	assert.NoError(t, db.PingContext(ctx), "a caller-supplied pool stays open")
}

func TestEngineVersion(t *testing.T) {
	c := openSQLite(t)
	v, err := c.EngineVersion(context.Background())
	require.NoError(t, err)
	assert.True(t, v.AtLeast("3"))
}
