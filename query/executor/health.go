package executor

import (
	"log/slog"
	"sync"

	"github.com/satishbabariya/sqlsrv-go/internal/debug"
	"github.com/satishbabariya/sqlsrv-go/query"
)

// Health is the state of the transaction on one connection.
type Health int

const (
	// Healthy means statements may run.
	Healthy Health = iota
	// Poisoned means the engine aborted the transaction on its own. Only a
	// full rollback of the outermost scope clears it.
	Poisoned
)

func (h Health) String() string {
	if h == Poisoned {
		return "poisoned"
	}
	return "healthy"
}

// Tracker records whether the engine has doomed the current transaction.
// Every connection owns its own Tracker.
type Tracker struct {
	mu     sync.Mutex
	state  Health
	cause  *query.Diagnostic
	logger *slog.Logger
}

// NewTracker returns a healthy tracker.
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = debug.Logger()
	}
	return &Tracker{logger: logger}
}

// State returns the current state.
func (t *Tracker) State() Health {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Poisoned reports whether the transaction is doomed.
func (t *Tracker) Poisoned() bool {
	return t.State() == Poisoned
}

// Cause returns the diagnostic that poisoned the transaction, if any.
func (t *Tracker) Cause() *query.Diagnostic {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cause
}

// Poison marks the transaction as doomed. The first cause is kept.
func (t *Tracker) Poison(d query.Diagnostic) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Poisoned {
		return
	}
	t.state = Poisoned
	t.cause = &d
	t.logger.Warn("transaction poisoned", "sqlstate", d.SQLState, "number", d.Number, "message", d.Message)
}

// Reset returns to Healthy. Called once the outermost scope is resolved.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Healthy
	t.cause = nil
}

// Check returns a DoomedTransactionError for op while poisoned.
func (t *Tracker) Check(op string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Poisoned {
		return nil
	}
	return &query.DoomedTransactionError{Op: op, Diagnostic: t.cause}
}
