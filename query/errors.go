package query

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for rewriting and execution.
var (
	// ErrInvalidSpec is returned when a merge specification cannot be built.
	ErrInvalidSpec = errors.New("invalid merge specification")

	// ErrIntegrityConstraint is returned when the engine reports a constraint violation.
	ErrIntegrityConstraint = errors.New("integrity constraint violation")

	// ErrDoomedTransaction is returned once the engine has aborted the active transaction.
	ErrDoomedTransaction = errors.New("transaction is doomed")

	// ErrExecution is returned for any other engine failure.
	ErrExecution = errors.New("statement execution failed")

	// ErrSchemaObjectNotFound is returned when a referenced table or column does not exist.
	ErrSchemaObjectNotFound = errors.New("schema object not found")

	// ErrInvalidMergeResult is returned when a merge reports neither INSERT nor UPDATE.
	ErrInvalidMergeResult = errors.New("invalid merge result")

	// ErrTransactionResolved is returned when a committed or rolled back handle is reused.
	ErrTransactionResolved = errors.New("transaction already resolved")

	// ErrTransactionOrder is returned when a scope is committed before its children.
	ErrTransactionOrder = errors.New("transaction scopes resolved out of order")
)

// Diagnostic is the engine's structured report for a failed statement.
type Diagnostic struct {
	// SQLState is a five character SQLSTATE-like code. Empty when unknown.
	SQLState string
	// Number is the engine-native error number, if the engine has one.
	Number  int
	Message string
	// Aborting is set when the engine rolled the transaction back on its own.
	Aborting bool
	Cause    error
}

// Class returns the two character SQLSTATE class.
func (d Diagnostic) Class() string {
	if len(d.SQLState) < 2 {
		return ""
	}
	return d.SQLState[:2]
}

// IntegrityViolation reports whether the diagnostic is in SQLSTATE class 23.
func (d Diagnostic) IntegrityViolation() bool {
	return d.Class() == "23"
}

// ObjectNotFound reports whether a table, view or column was missing.
func (d Diagnostic) ObjectNotFound() bool {
	switch d.SQLState {
	case "42S02", "42S22", "42P01", "42703":
		return true
	}
	return false
}

func (d Diagnostic) String() string {
	var b strings.Builder
	if d.SQLState != "" {
		fmt.Fprintf(&b, "SQLSTATE[%s]", d.SQLState)
	}
	if d.Number != 0 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "(%d)", d.Number)
	}
	if d.Message != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(d.Message)
	}
	return b.String()
}

// InvalidSpecError is returned by the merge builder.
type InvalidSpecError struct {
	Table  string
	Reason string
}

// Error implements the error interface.
func (e *InvalidSpecError) Error() string {
	return fmt.Sprintf("invalid merge into %q: %s", e.Table, e.Reason)
}

// Is reports whether target is ErrInvalidSpec.
func (e *InvalidSpecError) Is(target error) bool {
	return target == ErrInvalidSpec
}

// IntegrityConstraintViolationError wraps a constraint violation reported by the engine.
type IntegrityConstraintViolationError struct {
	SQL        string
	Args       []Arg
	Diagnostic Diagnostic
}

// Error implements the error interface.
func (e *IntegrityConstraintViolationError) Error() string {
	return fmt.Sprintf("integrity constraint violation: %s", e.Diagnostic)
}

// Unwrap returns the driver error.
func (e *IntegrityConstraintViolationError) Unwrap() error {
	return e.Diagnostic.Cause
}

// Is reports whether target is ErrIntegrityConstraint.
func (e *IntegrityConstraintViolationError) Is(target error) bool {
	return target == ErrIntegrityConstraint
}

// DoomedTransactionError is returned without contacting the engine once the
// transaction has been aborted by the engine.
type DoomedTransactionError struct {
	// Op is the operation that was refused.
	Op string
	// Diagnostic is the engine report that poisoned the transaction.
	Diagnostic *Diagnostic
}

// Error implements the error interface.
func (e *DoomedTransactionError) Error() string {
	msg := "transaction is doomed"
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Diagnostic != nil {
		msg += " (poisoned by " + e.Diagnostic.String() + ")"
	}
	return msg
}

// Is reports whether target is ErrDoomedTransaction.
func (e *DoomedTransactionError) Is(target error) bool {
	return target == ErrDoomedTransaction
}

// ExecutionError wraps any other engine failure with the final statement text
// and the arguments that were bound to it.
type ExecutionError struct {
	SQL        string
	Args       []Arg
	Diagnostic Diagnostic
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s [query: %s]", ErrExecution, e.Diagnostic, e.SQL)
}

// Unwrap returns the driver error.
func (e *ExecutionError) Unwrap() error {
	return e.Diagnostic.Cause
}

// Is matches ErrExecution, and ErrSchemaObjectNotFound when a referenced object is missing.
func (e *ExecutionError) Is(target error) bool {
	switch target {
	case ErrExecution:
		return true
	case ErrSchemaObjectNotFound:
		return e.Diagnostic.ObjectNotFound()
	}
	return false
}

// IsDoomed reports whether err signals a doomed transaction.
func IsDoomed(err error) bool {
	return errors.Is(err, ErrDoomedTransaction)
}

// IsIntegrityViolation reports whether err is a constraint violation.
func IsIntegrityViolation(err error) bool {
	return errors.Is(err, ErrIntegrityConstraint)
}

// IsObjectNotFound reports whether err was caused by a missing table or column.
func IsObjectNotFound(err error) bool {
	return errors.Is(err, ErrSchemaObjectNotFound)
}
