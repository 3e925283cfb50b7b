package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/satishbabariya/sqlsrv-go/query"
)

// QueryEvent describes one call through the connection.
type QueryEvent struct {
	// Operation is execute, range, temporary, merge, begin, commit or rollback.
	Operation string
	// Query is the statement after table prefixing, before rewriting.
	Query    string
	Args     []query.Arg
	Duration time.Duration
	Error    error
	Start    time.Time
	End      time.Time
}

// Middleware is a function that intercepts calls. It must call next exactly
// once unless it wants to short-circuit the call with its own error.
type Middleware func(ctx context.Context, event *QueryEvent, next func() error) error

// Use adds a middleware to the chain
func (c *Connection) Use(middleware Middleware) {
	c.middlewares = append(c.middlewares, middleware)
}

// intercept runs exec through the middleware chain.
func (c *Connection) intercept(ctx context.Context, op, text string, args []query.Arg, exec func() error) error {
	if len(c.middlewares) == 0 {
		return exec()
	}

	event := &QueryEvent{
		Operation: op,
		Query:     text,
		Args:      args,
		Start:     time.Now(),
	}

	var next func() error
	index := 0

	next = func() error {
		if index >= len(c.middlewares) {
			err := exec()
			event.End = time.Now()
			event.Duration = event.End.Sub(event.Start)
			event.Error = err
			return err
		}

		middleware := c.middlewares[index]
		index++
		return middleware(ctx, event, next)
	}

	return next()
}

// LoggingMiddleware logs every call at debug level and failures at warn.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if err != nil {
			logger.WarnContext(ctx, "query failed", "op", event.Operation, "query", event.Query, "duration", event.Duration, "error", err)
		} else {
			logger.DebugContext(ctx, "query completed", "op", event.Operation, "query", event.Query, "duration", event.Duration)
		}
		return err
	}
}

// TimingMiddleware creates a middleware that measures query execution time
func TimingMiddleware(onTiming func(query string, duration time.Duration)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if onTiming != nil {
			onTiming(event.Query, event.Duration)
		}
		return err
	}
}

// ErrorMiddleware creates a middleware that handles errors
func ErrorMiddleware(onError func(query string, err error)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if err != nil && onError != nil {
			onError(event.Query, err)
		}
		return err
	}
}

// ReadOnlyMiddleware rejects statements that do not start with SELECT. It
// only inspects execute, range and temporary calls.
func ReadOnlyMiddleware() Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		switch event.Operation {
		case OpExecute, OpRange, OpTemporary:
			if !isSelect(event.Query) {
				return ErrReadOnly
			}
		case OpMerge:
			return ErrReadOnly
		}
		return next()
	}
}
