package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"

	"github.com/satishbabariya/sqlsrv-go/internal/debug"
)

// Bins used by RewriteCache.
const (
	BinHits    = "query_hits"
	BinRewrite = "query"
)

// Key returns the content hash of a query text.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// RewriteCache keeps a hit counter per query and, once a query is hot, its
// materialized rewrite. Backend failures are logged and treated as misses.
type RewriteCache struct {
	backend    Backend
	serializer Serializer
	logger     *slog.Logger
}

// RewriteCacheOption configures a RewriteCache.
type RewriteCacheOption func(*RewriteCache)

// WithSerializer sets the serializer used for hit counters.
func WithSerializer(s Serializer) RewriteCacheOption {
	return func(c *RewriteCache) { c.serializer = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RewriteCacheOption {
	return func(c *RewriteCache) { c.logger = l }
}

// NewRewriteCache wraps backend. A nil backend behaves as an always-empty cache.
func NewRewriteCache(backend Backend, opts ...RewriteCacheOption) *RewriteCache {
	c := &RewriteCache{
		backend:    backend,
		serializer: JSONSerializer{},
		logger:     debug.Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RewriteCache) degraded(op, bin string, err error) {
	if err == nil || errors.Is(err, ErrMiss) {
		return
	}
	c.logger.Debug("rewrite cache degraded", "op", op, "bin", bin, "error", err)
}

// LookupHits returns the stored hit count for key, or 0.
func (c *RewriteCache) LookupHits(ctx context.Context, key string) int {
	if c.backend == nil {
		return 0
	}
	p, err := c.backend.Get(ctx, BinHits, key)
	if err != nil {
		c.degraded("get", BinHits, err)
		return 0
	}
	var hits int
	if err := Decode(c.serializer, p, &hits); err != nil {
		c.degraded("decode", BinHits, err)
		return 0
	}
	return hits
}

// RecordHit increments the hit count for key and returns the new count.
// Concurrent writers may lose increments.
func (c *RewriteCache) RecordHit(ctx context.Context, key string) int {
	hits := c.LookupHits(ctx, key) + 1
	if c.backend == nil {
		return hits
	}
	p, err := Encode(c.serializer, hits)
	if err != nil {
		c.degraded("encode", BinHits, err)
		return hits
	}
	c.degraded("set", BinHits, c.backend.Set(ctx, BinHits, key, p))
	return hits
}

// LookupRewrite returns the materialized rewrite for key.
func (c *RewriteCache) LookupRewrite(ctx context.Context, key string) (string, bool) {
	if c.backend == nil {
		return "", false
	}
	p, err := c.backend.Get(ctx, BinRewrite, key)
	if err != nil {
		c.degraded("get", BinRewrite, err)
		return "", false
	}
	if p.Kind != KindRaw {
		c.degraded("decode", BinRewrite, errors.New("materialized rewrite is not raw"))
		return "", false
	}
	return string(p.Data), true
}

// StoreRewrite materializes text under key.
func (c *RewriteCache) StoreRewrite(ctx context.Context, key, text string) {
	if c.backend == nil {
		return
	}
	c.degraded("set", BinRewrite, c.backend.Set(ctx, BinRewrite, key, Raw([]byte(text))))
}

// Forget drops both the counter and the rewrite for key.
func (c *RewriteCache) Forget(ctx context.Context, key string) {
	if c.backend == nil {
		return
	}
	c.degraded("delete", BinHits, c.backend.Delete(ctx, BinHits, key))
	c.degraded("delete", BinRewrite, c.backend.Delete(ctx, BinRewrite, key))
}
