// Package client opens a single logical engine connection and runs
// statements on it through the rewriter and executor.
package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/satishbabariya/sqlsrv-go/internal/debug"
	"github.com/satishbabariya/sqlsrv-go/query"
	"github.com/satishbabariya/sqlsrv-go/query/cache"
	"github.com/satishbabariya/sqlsrv-go/query/engine"
	"github.com/satishbabariya/sqlsrv-go/query/executor"
	"github.com/satishbabariya/sqlsrv-go/query/rewrite"
	"github.com/satishbabariya/sqlsrv-go/query/sqlgen"
)

// Operation names reported in QueryEvent.
const (
	OpExecute   = "execute"
	OpRange     = "range"
	OpTemporary = "temporary"
	OpMerge     = "merge"
	OpBegin     = "begin"
	OpCommit    = "commit"
	OpRollback  = "rollback"
)

// ErrReadOnly is returned by ReadOnlyMiddleware for writes.
var ErrReadOnly = errors.New("connection is read-only")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("connection closed")

var tableRef = regexp.MustCompile(`\{([A-Za-z0-9_.#]+)\}`)

// Connection is one pinned engine connection with its own rewriter, temp
// table namer and transaction health. It is not safe for concurrent use;
// open one Connection per goroutine.
type Connection struct {
	config   *Config
	db       *sql.DB
	ownsDB   bool
	conn     *sql.Conn
	session  *engine.ConnSession
	dialect  engine.Dialect
	backend  cache.Backend
	rewriter *rewrite.Rewriter
	exec     *executor.Executor
	logger   *slog.Logger

	middlewares []Middleware
	closed      bool
}

// Open pins one connection from the pool described by opts.
func Open(ctx context.Context, opts ...Option) (*Connection, error) {
	cfg := DefaultConfig()
	ApplyOptions(cfg, opts...)

	logger := cfg.Logger
	if logger == nil {
		logger = debug.Logger()
	}

	dialect, err := engine.Lookup(cfg.Driver)
	if err != nil {
		return nil, err
	}

	c := &Connection{
		config:      cfg,
		dialect:     dialect,
		logger:      logger.With("driver", dialect.Name()),
		middlewares: append([]Middleware(nil), cfg.Middlewares...),
	}

	c.db = cfg.DB
	if c.db == nil {
		if cfg.DSN == "" {
			return nil, fmt.Errorf("open %s: no DSN configured", dialect.Name())
		}
		if c.db, err = sql.Open(dialect.DriverName(), cfg.DSN); err != nil {
			return nil, fmt.Errorf("open %s: %w", dialect.Name(), err)
		}
		c.ownsDB = true
	}

	if c.conn, err = c.db.Conn(ctx); err != nil {
		c.closeDB()
		return nil, fmt.Errorf("pin connection: %w", err)
	}
	c.session = engine.NewConnSession(c.conn)

	c.backend = cfg.CacheBackend
	if c.backend == nil {
		if c.backend, err = cache.NewBackend(cfg.Cache); err != nil {
			c.conn.Close()
			c.closeDB()
			return nil, err
		}
	}

	execOpts := []executor.Option{
		executor.WithLogger(c.logger),
		executor.WithTempNamer(rewrite.NewTempNamer()),
	}
	if c.rewriteEnabled() {
		c.rewriter = c.newRewriter()
		execOpts = append(execOpts, executor.WithRewriter(c.rewriter))
	}
	if cfg.Metrics != nil {
		execOpts = append(execOpts, executor.WithObserver(cfg.Metrics))
	}
	c.exec = executor.New(c.session, dialect, execOpts...)

	c.logger.Debug("connection opened", "rewrite", c.rewriter != nil)
	return c, nil
}

func (c *Connection) rewriteEnabled() bool {
	if c.config.Rewrite != nil {
		return *c.config.Rewrite
	}
	return c.dialect.Name() == "sqlserver"
}

func (c *Connection) newRewriter() *rewrite.Rewriter {
	cfg := c.config
	opts := []rewrite.Option{
		rewrite.WithCache(cache.NewRewriteCache(c.backend, cache.WithLogger(c.logger))),
		rewrite.WithThreshold(cfg.Threshold),
		rewrite.WithSchema(cfg.Schema),
		rewrite.WithLogger(c.logger),
	}
	if cfg.Functions != nil {
		opts = append(opts, rewrite.WithFunctions(cfg.Functions...))
	}
	if cfg.Metrics != nil {
		opts = append(opts, rewrite.WithObserver(cfg.Metrics))
	}
	return rewrite.New(opts...)
}

// Dialect returns the engine dialect.
func (c *Connection) Dialect() engine.Dialect { return c.dialect }

// Rewriter returns the rewriter, nil when rewriting is disabled.
func (c *Connection) Rewriter() *rewrite.Rewriter { return c.rewriter }

// Executor returns the underlying executor.
func (c *Connection) Executor() *executor.Executor { return c.exec }

// Tracker returns the transaction health tracker of the connection.
func (c *Connection) Tracker() *executor.Tracker { return c.exec.Tracker() }

// PrefixTables replaces every {table} reference with the escaped physical
// table name.
func (c *Connection) PrefixTables(text string) string {
	if !strings.Contains(text, "{") {
		return text
	}
	return tableRef.ReplaceAllStringFunc(text, func(ref string) string {
		return sqlgen.EscapeTable(c.table(ref[1 : len(ref)-1]))
	})
}

func (c *Connection) table(name string) string {
	// temporary tables are never prefixed
	if c.config.Prefixer == nil || strings.HasPrefix(name, "#") {
		return name
	}
	return c.config.Prefixer(name)
}

func (c *Connection) check() error {
	if c.closed {
		return ErrClosed
	}
	return nil
}

// Execute runs q on the connection.
func (c *Connection) Execute(ctx context.Context, q *query.Query, opts executor.Options) (*executor.Result, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	q = q.WithSQL(c.PrefixTables(q.SQL()))
	var res *executor.Result
	err := c.intercept(ctx, OpExecute, q.SQL(), q.Args(), func() (err error) {
		res, err = c.exec.Execute(ctx, q, opts)
		return err
	})
	return res, err
}

// QueryRange runs q limited to limit rows after skipping offset rows. q
// should carry a deterministic ORDER BY when offset is not 0.
func (c *Connection) QueryRange(ctx context.Context, q *query.Query, offset, limit int, opts executor.Options) (*executor.Result, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	q = q.WithSQL(c.PrefixTables(q.SQL()))
	var res *executor.Result
	err := c.intercept(ctx, OpRange, q.SQL(), q.Args(), func() (err error) {
		res, err = c.exec.QueryRange(ctx, q, offset, limit, opts)
		return err
	})
	return res, err
}

// QueryTemporary copies the rows of q into a new global temporary table and
// returns its name. The caller drops the table.
func (c *Connection) QueryTemporary(ctx context.Context, q *query.Query, opts executor.Options) (string, error) {
	if err := c.check(); err != nil {
		return "", err
	}
	q = q.WithSQL(c.PrefixTables(q.SQL()))
	var table string
	err := c.intercept(ctx, OpTemporary, q.SQL(), q.Args(), func() (err error) {
		table, err = c.exec.QueryTemporary(ctx, q, opts)
		return err
	})
	return table, err
}

// Merge upserts one row. spec.Table is a logical name and is prefixed.
func (c *Connection) Merge(ctx context.Context, spec *sqlgen.MergeSpec) (executor.MergeStatus, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	prefixed := *spec
	prefixed.Table = c.table(spec.Table)
	var status executor.MergeStatus
	err := c.intercept(ctx, OpMerge, prefixed.Table, prefixed.Arguments(), func() (err error) {
		status, err = c.exec.Merge(ctx, &prefixed)
		return err
	})
	return status, err
}

// EngineVersion reports the version of the engine behind the connection.
func (c *Connection) EngineVersion(ctx context.Context) (*engine.EngineVersion, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return engine.QueryEngineVersion(ctx, c.session, c.dialect)
}

// Close rolls back an open transaction and releases the connection. A
// connection abandoned with a poisoned transaction reports a
// DoomedTransactionError after releasing everything.
func (c *Connection) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if c.exec.InTransaction() {
		if err := c.exec.Abandon(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.conn.Close(); err != nil {
		errs = append(errs, err)
	}
	if closer, ok := c.backend.(interface{ Close() error }); ok && c.config.CacheBackend == nil {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.closeDB(); err != nil {
		errs = append(errs, err)
	}
	c.logger.Debug("connection closed")
	return errors.Join(errs...)
}

func (c *Connection) closeDB() error {
	if c.ownsDB && c.db != nil {
		return c.db.Close()
	}
	return nil
}

func isSelect(text string) bool {
	text = strings.TrimSpace(text)
	return len(text) >= 6 && strings.EqualFold(text[:6], "SELECT")
}
