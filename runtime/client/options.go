package client

import (
	"database/sql"
	"log/slog"

	"github.com/satishbabariya/sqlsrv-go/query/cache"
	"github.com/satishbabariya/sqlsrv-go/query/rewrite"
	"github.com/satishbabariya/sqlsrv-go/telemetry"
)

// TablePrefixer maps a logical table name to its physical name.
type TablePrefixer func(table string) string

// Config contains all connection options.
type Config struct {
	// Driver names the engine: sqlserver, postgres, pgx, mysql or sqlite3.
	// Default: sqlserver
	Driver string

	// DSN is the driver connection string. Ignored when DB is set.
	DSN string

	// DB is an existing pool to pin the connection from. The connection
	// does not close it.
	DB *sql.DB

	// Cache selects the rewrite cache backend. Ignored when CacheBackend is set.
	Cache cache.Config

	// CacheBackend is a ready-made backend, shared between connections.
	CacheBackend cache.Backend

	// Threshold is the hit count after which a rewrite is cached verbatim.
	// Default: 50
	Threshold int

	// Schema qualifies user-defined functions.
	// Default: dbo
	Schema string

	// Functions are the user-defined functions to qualify with Schema.
	// Nil means rewrite.DefaultFunctions.
	Functions []string

	// Rewrite forces the rewriter on (true) or off (false). Nil enables it
	// for SQL Server only.
	Rewrite *bool

	// Prefixer resolves {table} references. Nil leaves the names unchanged.
	Prefixer TablePrefixer

	// Logger receives connection and statement logs.
	Logger *slog.Logger

	// Metrics observes rewrites and executions.
	Metrics *telemetry.Metrics

	// Middlewares wrap every execution, outermost first.
	Middlewares []Middleware
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Driver:    "sqlserver",
		Threshold: rewrite.DefaultThreshold,
		Schema:    rewrite.DefaultSchema,
	}
}

// Option is a function that configures the connection.
type Option func(*Config)

// WithDriver sets the engine driver.
func WithDriver(driver string) Option {
	return func(c *Config) {
		c.Driver = driver
	}
}

// WithDSN sets the connection string.
func WithDSN(dsn string) Option {
	return func(c *Config) {
		c.DSN = dsn
	}
}

// WithDB pins the connection from an existing pool.
func WithDB(db *sql.DB) Option {
	return func(c *Config) {
		c.DB = db
	}
}

// WithCache selects the cache backend built at Open.
func WithCache(cfg cache.Config) Option {
	return func(c *Config) {
		c.Cache = cfg
	}
}

// WithCacheBackend uses an existing cache backend.
func WithCacheBackend(b cache.Backend) Option {
	return func(c *Config) {
		c.CacheBackend = b
	}
}

// WithThreshold sets the promotion threshold.
func WithThreshold(n int) Option {
	return func(c *Config) {
		c.Threshold = n
	}
}

// WithSchema sets the schema of user-defined functions.
func WithSchema(schema string) Option {
	return func(c *Config) {
		c.Schema = schema
	}
}

// WithFunctions sets the user-defined functions.
func WithFunctions(names ...string) Option {
	return func(c *Config) {
		c.Functions = names
	}
}

// WithRewrite forces the rewriter on or off.
func WithRewrite(enabled bool) Option {
	return func(c *Config) {
		c.Rewrite = &enabled
	}
}

// WithTablePrefix prepends prefix to every {table} reference.
func WithTablePrefix(prefix string) Option {
	return func(c *Config) {
		c.Prefixer = func(table string) string { return prefix + table }
	}
}

// WithTablePrefixer sets a custom table prefixer.
func WithTablePrefixer(p TablePrefixer) Option {
	return func(c *Config) {
		c.Prefixer = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithMetrics registers Prometheus metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithMiddleware appends middlewares to the chain.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *Config) {
		c.Middlewares = append(c.Middlewares, mw...)
	}
}

// ApplyOptions applies options to a config.
func ApplyOptions(config *Config, opts ...Option) {
	for _, opt := range opts {
		opt(config)
	}
}
