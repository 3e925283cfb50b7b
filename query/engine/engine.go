// Package engine is the transport between the executor and a database/sql
// driver: one pinned connection, its transaction, and the dialect rules of
// the engine behind it.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Rows is the subset of *sql.Rows the executor reads from.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close() error
}

// Transport executes statements that are already in the engine's dialect.
type Transport interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error)
}

// Session is a Transport bound to a single connection that can hold one
// engine transaction. Nested scopes are savepoints issued as statements.
type Session interface {
	Transport
	BeginTx(ctx context.Context, opts *sql.TxOptions) error
	Commit() error
	Rollback() error
	InTransaction() bool
}

// ErrNoTransaction is returned by Commit and Rollback without BeginTx.
var ErrNoTransaction = errors.New("no transaction in progress")

// ConnSession runs statements on a pinned *sql.Conn, or on its transaction
// while one is open.
type ConnSession struct {
	conn *sql.Conn
	tx   *sql.Tx
}

// NewConnSession wraps conn. The session does not close conn.
func NewConnSession(conn *sql.Conn) *ConnSession {
	return &ConnSession{conn: conn}
}

// ExecContext executes a statement that returns no rows.
func (s *ConnSession) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if s.tx != nil {
		return s.tx.ExecContext(ctx, query, args...)
	}
	return s.conn.ExecContext(ctx, query, args...)
}

// QueryContext executes a statement that returns rows.
func (s *ConnSession) QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if s.tx != nil {
		rows, err = s.tx.QueryContext(ctx, query, args...)
	} else {
		rows, err = s.conn.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// BeginTx starts the engine transaction.
func (s *ConnSession) BeginTx(ctx context.Context, opts *sql.TxOptions) error {
	if s.tx != nil {
		return fmt.Errorf("begin: transaction already in progress")
	}
	tx, err := s.conn.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	s.tx = tx
	return nil
}

// Commit commits the engine transaction.
func (s *ConnSession) Commit() error {
	if s.tx == nil {
		return ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil
	return tx.Commit()
}

// Rollback rolls the engine transaction back. A transaction the engine
// already aborted counts as rolled back.
func (s *ConnSession) Rollback() error {
	if s.tx == nil {
		return ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// InTransaction reports whether a transaction is open.
func (s *ConnSession) InTransaction() bool {
	return s.tx != nil
}
