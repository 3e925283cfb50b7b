// Package rewrite translates portable SQL into SQL Server's dialect.
//
// Rewriting is pure text processing and never fails. Hot statements are
// memoized in a cache.RewriteCache: every full rewrite increments the
// statement's hit counter and, once the counter reaches the promotion
// threshold, the result is stored and served from then on without running
// any of the steps again.
package rewrite

import (
	"context"
	"log/slog"
	"strings"

	"github.com/satishbabariya/sqlsrv-go/internal/debug"
	"github.com/satishbabariya/sqlsrv-go/query/cache"
)

// Defaults.
const (
	DefaultThreshold = 50
	DefaultSchema    = "dbo"
)

// Observer receives rewrite events.
type Observer interface {
	// RewriteObserved is called once per Rewrite. cached is true when the
	// materialized rewrite was served.
	RewriteObserved(cached bool)
	// RewritePromoted is called when a rewrite is materialized.
	RewritePromoted()
}

// Rewriter translates statements. It is safe for concurrent use when its
// cache backend is.
type Rewriter struct {
	cache     *cache.RewriteCache
	threshold int
	schema    string
	functions []string
	logger    *slog.Logger
	observer  Observer

	steps []step
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithCache sets the rewrite cache. Without one every call is a full rewrite.
func WithCache(c *cache.RewriteCache) Option {
	return func(r *Rewriter) { r.cache = c }
}

// WithThreshold sets the hit count at which a rewrite is materialized.
func WithThreshold(n int) Option {
	return func(r *Rewriter) {
		if n > 0 {
			r.threshold = n
		}
	}
}

// WithSchema sets the schema prepended to user-defined functions.
func WithSchema(schema string) Option {
	return func(r *Rewriter) {
		if schema != "" {
			r.schema = schema
		}
	}
}

// WithFunctions replaces the list of user-defined functions.
func WithFunctions(names ...string) Option {
	return func(r *Rewriter) { r.functions = names }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Rewriter) { r.logger = l }
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(r *Rewriter) { r.observer = o }
}

// New creates a Rewriter.
func New(opts ...Option) *Rewriter {
	r := &Rewriter{
		threshold: DefaultThreshold,
		schema:    DefaultSchema,
		functions: DefaultFunctions,
		logger:    debug.Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.steps = r.buildSteps()
	return r
}

// Threshold returns the promotion threshold.
func (r *Rewriter) Threshold() int { return r.threshold }

// Schema returns the schema used for user-defined functions.
func (r *Rewriter) Schema() string { return r.schema }

func (r *Rewriter) buildSteps() []step {
	udfs := make(map[string]bool, len(r.functions))
	for _, f := range r.functions {
		udfs[strings.ToUpper(f)] = true
	}
	schema := r.schema

	steps := []step{{
		name: "quote-reserved",
		apply: func(s string) string {
			if !isRead(s) {
				return s
			}
			return QuoteReserved(s)
		},
	}}
	steps = append(steps, syntaxSteps...)
	steps = append(steps,
		step{name: "schema-functions", apply: func(s string) string {
			if len(udfs) == 0 {
				return s
			}
			return mapCalls(s, func(name string) (string, bool) {
				if udfs[strings.ToUpper(name)] {
					return schema + "." + name, true
				}
				return "", false
			})
		}},
		step{name: "rename-functions", apply: func(s string) string {
			return mapCalls(s, func(name string) (string, bool) {
				repl, ok := renamedFunctions[strings.ToUpper(name)]
				return repl, ok
			})
		}},
		step{name: "concat-operator", apply: replaceConcat},
	)
	return steps
}

// Translate runs every rewriting step on text, bypassing the cache.
func (r *Rewriter) Translate(text string) string {
	for _, s := range r.steps {
		text = s.apply(text)
	}
	return text
}

// Rewrite returns the SQL Server form of text, consulting the cache first.
func (r *Rewriter) Rewrite(ctx context.Context, text string) string {
	if r.cache == nil {
		r.observe(false)
		return r.Translate(text)
	}

	key := cache.Key(text)
	if out, ok := r.cache.LookupRewrite(ctx, key); ok {
		r.observe(true)
		return out
	}

	out := r.Translate(text)
	r.observe(false)

	if hits := r.cache.RecordHit(ctx, key); hits >= r.threshold {
		r.cache.StoreRewrite(ctx, key, out)
		r.logger.Debug("rewrite materialized", "key", key, "hits", hits)
		if r.observer != nil {
			r.observer.RewritePromoted()
		}
	}
	return out
}

func (r *Rewriter) observe(cached bool) {
	if r.observer != nil {
		r.observer.RewriteObserved(cached)
	}
}

// Change is one step that modified the text during Explain.
type Change struct {
	Step   string
	Before string
	After  string
}

// Explain runs the steps without the cache and reports those that changed
// the text, in order.
func (r *Rewriter) Explain(text string) []Change {
	var changes []Change
	for _, s := range r.steps {
		out := s.apply(text)
		if out != text {
			changes = append(changes, Change{Step: s.name, Before: text, After: out})
		}
		text = out
	}
	return changes
}
