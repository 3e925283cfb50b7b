package executor

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/satishbabariya/sqlsrv-go/query"
	"github.com/satishbabariya/sqlsrv-go/query/sqlgen"
)

// Tx is one transaction scope: the engine transaction when it is outermost,
// a savepoint otherwise. Scopes resolve innermost first.
type Tx struct {
	exec      *Executor
	parent    *Tx
	name      string
	depth     int
	isolation sql.IsolationLevel
	resolved  bool
}

// Begin opens a transaction, or a savepoint inside the open one.
func (e *Executor) Begin(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	if err := e.tracker.Check("begin"); err != nil {
		return nil, err
	}

	tx := &Tx{exec: e}
	if opts != nil {
		tx.isolation = opts.Isolation
	}

	if len(e.open) == 0 {
		if err := e.session.BeginTx(ctx, opts); err != nil {
			return nil, e.fail(err, "BEGIN TRANSACTION", nil)
		}
		e.logger.Debug("transaction started", "isolation", tx.isolation.String())
	} else {
		tx.parent = e.open[len(e.open)-1]
		tx.depth = tx.parent.depth + 1
		tx.isolation = tx.parent.isolation
		e.savepoints++
		tx.name = fmt.Sprintf("savepoint_%d", e.savepoints)
		if _, err := e.run(ctx, "SAVEPOINT "+tx.name, nil, Options{Return: ReturnNone}, true); err != nil {
			return nil, err
		}
		e.logger.Debug("savepoint created", "name", tx.name, "depth", tx.depth)
	}

	e.open = append(e.open, tx)
	return tx, nil
}

// InTransaction reports whether any scope is open.
func (e *Executor) InTransaction() bool {
	return len(e.open) > 0
}

// Depth returns the nesting level; the outermost scope is 0.
func (t *Tx) Depth() int { return t.depth }

// Name returns the savepoint name, or "" for the outermost scope.
func (t *Tx) Name() string { return t.name }

// Isolation returns the isolation level the transaction was opened with.
func (t *Tx) Isolation() sql.IsolationLevel { return t.isolation }

// Parent returns the enclosing scope, nil for the outermost one.
func (t *Tx) Parent() *Tx { return t.parent }

// Resolved reports whether the scope was committed or rolled back.
func (t *Tx) Resolved() bool { return t.resolved }

// Execute runs q inside the scope.
func (t *Tx) Execute(ctx context.Context, q *query.Query, opts Options) (*Result, error) {
	if t.resolved {
		return nil, query.ErrTransactionResolved
	}
	return t.exec.Execute(ctx, q, opts)
}

// Merge runs an upsert inside the scope.
func (t *Tx) Merge(ctx context.Context, spec *sqlgen.MergeSpec) (MergeStatus, error) {
	if t.resolved {
		return 0, query.ErrTransactionResolved
	}
	return t.exec.Merge(ctx, spec)
}

func (t *Tx) innermost() bool {
	open := t.exec.open
	return len(open) > 0 && open[len(open)-1] == t
}

// Commit releases the savepoint, or commits the engine transaction when t
// is outermost. A poisoned transaction cannot be committed; the scope stays
// open so the caller can roll it back.
func (t *Tx) Commit(ctx context.Context) error {
	if t.resolved {
		return query.ErrTransactionResolved
	}
	if !t.innermost() {
		return query.ErrTransactionOrder
	}
	e := t.exec
	if err := e.tracker.Check("commit"); err != nil {
		return err
	}

	if t.parent != nil {
		if _, err := e.run(ctx, "RELEASE SAVEPOINT "+t.name, nil, Options{Return: ReturnNone}, true); err != nil {
			return err
		}
		t.pop()
		return nil
	}

	if err := e.session.Commit(); err != nil {
		t.pop()
		e.tracker.Reset()
		return e.fail(err, "COMMIT TRANSACTION", nil)
	}
	t.pop()
	e.tracker.Reset()
	e.logger.Debug("transaction committed")
	return nil
}

// Rollback rolls the scope back and resolves every scope nested in it.
// Rolling back the outermost scope clears a poisoned state.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.resolved {
		return query.ErrTransactionResolved
	}
	e := t.exec

	if t.parent != nil {
		if !e.tracker.Poisoned() {
			if _, err := e.run(ctx, "ROLLBACK TO SAVEPOINT "+t.name, nil, Options{Return: ReturnNone}, true); err != nil {
				return err
			}
		}
		t.pop()
		return nil
	}

	poisoned := e.tracker.Poisoned()
	err := e.session.Rollback()
	t.pop()
	e.tracker.Reset()
	if err != nil && !poisoned {
		return e.fail(err, "ROLLBACK TRANSACTION", nil)
	}
	e.logger.Debug("transaction rolled back", "poisoned", poisoned)
	return nil
}

// Close rolls back a scope that was not resolved. It is meant for defer.
// Abandoning a poisoned scope this way reports a DoomedTransactionError.
func (t *Tx) Close(ctx context.Context) error {
	if t.resolved {
		return nil
	}
	cause := t.exec.tracker.Cause()
	poisoned := t.exec.tracker.Poisoned()
	if err := t.Rollback(ctx); err != nil {
		return err
	}
	if poisoned {
		return &query.DoomedTransactionError{Op: "close", Diagnostic: cause}
	}
	return nil
}

// pop resolves t and every scope opened after it.
func (t *Tx) pop() {
	open := t.exec.open
	for i := len(open) - 1; i >= 0; i-- {
		open[i].resolved = true
		if open[i] == t {
			t.exec.open = open[:i]
			return
		}
	}
}

// Abandon closes every open scope from the outermost one, as Close does.
func (e *Executor) Abandon(ctx context.Context) error {
	if len(e.open) == 0 {
		return nil
	}
	return e.open[0].Close(ctx)
}
