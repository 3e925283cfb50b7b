// Package executor runs rewritten statements on one engine connection,
// classifies failures and tracks whether the engine has doomed the current
// transaction.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/satishbabariya/sqlsrv-go/internal/debug"
	"github.com/satishbabariya/sqlsrv-go/query"
	"github.com/satishbabariya/sqlsrv-go/query/engine"
	"github.com/satishbabariya/sqlsrv-go/query/rewrite"
)

// ReturnMode selects what Execute returns.
type ReturnMode int

const (
	// ReturnStatement returns a Statement to fetch rows from.
	ReturnStatement ReturnMode = iota
	// ReturnAffected returns the number of affected rows.
	ReturnAffected
	// ReturnInsertID returns the identity generated by an INSERT.
	ReturnInsertID
	// ReturnNone returns nothing.
	ReturnNone
)

func (m ReturnMode) String() string {
	switch m {
	case ReturnStatement:
		return "statement"
	case ReturnAffected:
		return "affected"
	case ReturnInsertID:
		return "insert_id"
	case ReturnNone:
		return "none"
	default:
		return fmt.Sprintf("ReturnMode(%d)", int(m))
	}
}

// ParseReturnMode parses the names produced by ReturnMode.String.
func ParseReturnMode(s string) (ReturnMode, error) {
	switch s {
	case "statement", "":
		return ReturnStatement, nil
	case "affected":
		return ReturnAffected, nil
	case "insert_id", "insert-id":
		return ReturnInsertID, nil
	case "none", "null":
		return ReturnNone, nil
	default:
		return 0, fmt.Errorf("unknown return mode: %s", s)
	}
}

// Options controls one execution.
type Options struct {
	Return ReturnMode
	// Insecure inlines arguments as literals instead of binding them.
	Insecure bool
	// Fetch is the row shape produced by Statement.FetchAll.
	Fetch FetchMode
}

// Result is the outcome of Execute. Only the field selected by Mode is set.
type Result struct {
	Mode         ReturnMode
	Statement    *Statement
	RowsAffected int64
	InsertID     int64
}

// Translator produces the engine's spelling of a statement.
type Translator interface {
	Rewrite(ctx context.Context, text string) string
}

// Observer receives execution events.
type Observer interface {
	ExecutionObserved(mode ReturnMode, elapsed time.Duration, err error)
	TransactionPoisoned(d query.Diagnostic)
}

// Executor runs statements on one session. It is not safe for concurrent
// use; open one Executor per connection.
type Executor struct {
	session  engine.Session
	dialect  engine.Dialect
	rewriter Translator
	temps    *rewrite.TempNamer
	tracker  *Tracker
	logger   *slog.Logger
	observer Observer

	open       []*Tx
	savepoints int
}

// Option configures an Executor.
type Option func(*Executor)

// WithRewriter sets the statement translator. Without one statements are
// sent as written.
func WithRewriter(t Translator) Option {
	return func(e *Executor) { e.rewriter = t }
}

// WithTempNamer sets the temporary table namer.
func WithTempNamer(n *rewrite.TempNamer) Option {
	return func(e *Executor) { e.temps = n }
}

// WithTracker sets the health tracker.
func WithTracker(t *Tracker) Option {
	return func(e *Executor) { e.tracker = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// New creates an Executor on session speaking dialect.
func New(session engine.Session, dialect engine.Dialect, opts ...Option) *Executor {
	e := &Executor{
		session: session,
		dialect: dialect,
		logger:  debug.Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracker == nil {
		e.tracker = NewTracker(e.logger)
	}
	if e.temps == nil {
		e.temps = rewrite.NewTempNamer()
	}
	return e
}

// Tracker returns the connection's health tracker.
func (e *Executor) Tracker() *Tracker { return e.tracker }

// Dialect returns the engine dialect.
func (e *Executor) Dialect() engine.Dialect { return e.dialect }

// Session returns the underlying session.
func (e *Executor) Session() engine.Session { return e.session }

// Execute rewrites q and runs it.
func (e *Executor) Execute(ctx context.Context, q *query.Query, opts Options) (*Result, error) {
	return e.run(ctx, q.SQL(), q.Args(), opts, true)
}

// QueryRange runs q limited to limit rows after skipping offset rows.
func (e *Executor) QueryRange(ctx context.Context, q *query.Query, offset, limit int, opts Options) (*Result, error) {
	return e.Execute(ctx, q.WithSQL(rewrite.Paginate(q.SQL(), offset, limit)), opts)
}

// QueryTemporary stores the rows of q in a new global temporary table and
// returns its name. The caller drops the table when done.
func (e *Executor) QueryTemporary(ctx context.Context, q *query.Query, opts Options) (string, error) {
	table, text := e.temps.Rewrite(q.SQL())
	opts.Return = ReturnNone
	if _, err := e.Execute(ctx, q.WithSQL(text), opts); err != nil {
		return "", err
	}
	return table, nil
}

func (e *Executor) run(ctx context.Context, text string, args []query.Arg, opts Options, translate bool) (*Result, error) {
	if err := e.tracker.Check("execute"); err != nil {
		return nil, err
	}

	text, args, err := ExpandArgs(text, args)
	if err != nil {
		return nil, err
	}
	insecure := needsInterpolation(text, args, opts.Insecure)

	if translate && e.rewriter != nil {
		text = e.rewriter.Rewrite(ctx, text)
	}

	var bound []interface{}
	if insecure {
		text = Interpolate(text, args, e.dialect)
	} else {
		text, bound = e.dialect.Bind(text, args)
	}

	start := time.Now()
	res, err := e.dispatch(ctx, text, bound, opts)
	elapsed := time.Since(start)

	if err != nil {
		err = e.fail(err, text, args)
	}
	if e.observer != nil {
		e.observer.ExecutionObserved(opts.Return, elapsed, err)
	}
	if err != nil {
		return nil, err
	}
	e.logger.Debug("statement executed", "query", text, "args", len(args), "insecure", insecure, "duration", elapsed)
	return res, nil
}

func (e *Executor) dispatch(ctx context.Context, text string, bound []interface{}, opts Options) (*Result, error) {
	res := &Result{Mode: opts.Return}
	switch opts.Return {
	case ReturnStatement:
		rows, err := e.session.QueryContext(ctx, text, bound...)
		if err != nil {
			return nil, err
		}
		res.Statement = newStatement(rows, opts.Fetch, func(err error) error {
			return e.fail(err, text, nil)
		})
	case ReturnAffected:
		r, err := e.session.ExecContext(ctx, text, bound...)
		if err != nil {
			return nil, err
		}
		if res.RowsAffected, err = r.RowsAffected(); err != nil {
			return nil, err
		}
	case ReturnInsertID:
		id, err := e.insertID(ctx, text, bound)
		if err != nil {
			return nil, err
		}
		res.InsertID = id
	case ReturnNone:
		if _, err := e.session.ExecContext(ctx, text, bound...); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown return mode %s", opts.Return)
	}
	return res, nil
}

func (e *Executor) insertID(ctx context.Context, text string, bound []interface{}) (int64, error) {
	suffix := e.dialect.InsertIDQuery()
	if suffix == "" {
		r, err := e.session.ExecContext(ctx, text, bound...)
		if err != nil {
			return 0, err
		}
		return r.LastInsertId()
	}

	rows, err := e.session.QueryContext(ctx, text+suffix, bound...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var id sql.NullInt64
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return id.Int64, nil
}

// fail classifies a driver error, poisons the tracker when the engine
// aborted an open transaction, and returns the typed error.
func (e *Executor) fail(err error, text string, args []query.Arg) error {
	var doomed *query.DoomedTransactionError
	if errors.As(err, &doomed) {
		return err
	}
	d := e.dialect.Classify(err)
	if d.Aborting && e.session.InTransaction() {
		e.tracker.Poison(d)
		if e.observer != nil {
			e.observer.TransactionPoisoned(d)
		}
	}
	e.logger.Warn("statement failed", "query", text, "sqlstate", d.SQLState, "error", d.Message)
	if d.IntegrityViolation() {
		return &query.IntegrityConstraintViolationError{SQL: text, Args: args, Diagnostic: d}
	}
	return &query.ExecutionError{SQL: text, Args: args, Diagnostic: d}
}
