package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/satishbabariya/sqlsrv-go/query"
	"github.com/satishbabariya/sqlsrv-go/query/executor"
	"github.com/satishbabariya/sqlsrv-go/query/sqlgen"
)

// IsolationLevel represents transaction isolation levels
type IsolationLevel int

const (
	// ReadUncommitted allows dirty reads
	ReadUncommitted IsolationLevel = iota
	// ReadCommitted prevents dirty reads (default)
	ReadCommitted
	// RepeatableRead prevents dirty reads and non-repeatable reads
	RepeatableRead
	// Serializable prevents dirty reads, non-repeatable reads, and phantom reads
	Serializable
	// Snapshot reads a consistent version of the data as of the transaction start
	Snapshot
)

// ToSQLIsolationLevel converts IsolationLevel to sql.IsolationLevel
func (level IsolationLevel) ToSQLIsolationLevel() sql.IsolationLevel {
	switch level {
	case ReadUncommitted:
		return sql.LevelReadUncommitted
	case ReadCommitted:
		return sql.LevelReadCommitted
	case RepeatableRead:
		return sql.LevelRepeatableRead
	case Serializable:
		return sql.LevelSerializable
	case Snapshot:
		return sql.LevelSnapshot
	default:
		return sql.LevelReadCommitted
	}
}

// NewTxOptions creates sql.TxOptions from isolation level
func NewTxOptions(isolation IsolationLevel, readOnly bool) *sql.TxOptions {
	return &sql.TxOptions{
		Isolation: isolation.ToSQLIsolationLevel(),
		ReadOnly:  readOnly,
	}
}

// Tx is a transaction scope on a Connection. Statements run through it are
// table-prefixed and pass the middleware chain like Connection calls.
type Tx struct {
	*executor.Tx
	conn *Connection
}

// TransactionFunc is a function that runs within a transaction
type TransactionFunc func(ctx context.Context, tx *Tx) error

// Begin opens a transaction, or a savepoint when one is already open.
func (c *Connection) Begin(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	var tx *executor.Tx
	err := c.intercept(ctx, OpBegin, "", nil, func() (err error) {
		tx, err = c.exec.Begin(ctx, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Tx{Tx: tx, conn: c}, nil
}

// Execute runs q inside the scope.
func (t *Tx) Execute(ctx context.Context, q *query.Query, opts executor.Options) (*executor.Result, error) {
	if t.Resolved() {
		return nil, query.ErrTransactionResolved
	}
	return t.conn.Execute(ctx, q, opts)
}

// Merge upserts one row inside the scope.
func (t *Tx) Merge(ctx context.Context, spec *sqlgen.MergeSpec) (executor.MergeStatus, error) {
	if t.Resolved() {
		return 0, query.ErrTransactionResolved
	}
	return t.conn.Merge(ctx, spec)
}

// Commit resolves the scope.
func (t *Tx) Commit(ctx context.Context) error {
	return t.conn.intercept(ctx, OpCommit, t.Name(), nil, func() error {
		return t.Tx.Commit(ctx)
	})
}

// Rollback resolves the scope and every scope nested in it.
func (t *Tx) Rollback(ctx context.Context) error {
	return t.conn.intercept(ctx, OpRollback, t.Name(), nil, func() error {
		return t.Tx.Rollback(ctx)
	})
}

// Transaction runs fn in a savepoint nested in t.
func (t *Tx) Transaction(ctx context.Context, fn TransactionFunc) error {
	if t.Resolved() {
		return query.ErrTransactionResolved
	}
	return t.conn.Transaction(ctx, nil, fn)
}

// Transaction executes fn within a transaction, or within a savepoint when
// one is already open. The scope is rolled back when fn returns an error or
// panics and committed otherwise.
func (c *Connection) Transaction(ctx context.Context, opts *sql.TxOptions, fn TransactionFunc) error {
	tx, err := c.Begin(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Defer rollback in case of panic
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Tx.Close(ctx)
			panic(p) // re-throw panic after rollback
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if tx.Resolved() {
			return err
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if tx.Resolved() {
		return nil
	}
	if err := tx.Commit(ctx); err != nil {
		if query.IsDoomed(err) {
			_ = tx.Rollback(ctx)
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// TransactionWithIsolation executes a transaction with a specific isolation level
func (c *Connection) TransactionWithIsolation(ctx context.Context, isolation IsolationLevel, fn TransactionFunc) error {
	return c.Transaction(ctx, NewTxOptions(isolation, false), fn)
}

// ReadOnlyTransaction executes a read-only transaction
func (c *Connection) ReadOnlyTransaction(ctx context.Context, fn TransactionFunc) error {
	return c.Transaction(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}
