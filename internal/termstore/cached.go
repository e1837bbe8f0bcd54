package termstore

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	defaultTTL     = 15 * time.Minute
	defaultCleanup = 5 * time.Minute
)

// negative is the cache sentinel for "looked up, not a known term". Misses
// are cached too: most candidate surfaces are not reference terms, and
// concurrent grading workers would otherwise re-issue the same miss queries.
type negative struct{}

// Cached decorates a [Store] with a TTL cache. Intended for wrapping
// [PostgresStore] when many grading workers share one store; the cached
// layer keeps the database out of the hot path without any locking beyond
// what the cache itself provides.
type Cached struct {
	inner Store
	cache *gocache.Cache
}

var _ Store = (*Cached)(nil)

// NewCached wraps inner with a cache. A non-positive ttl selects the default
// of 15 minutes.
func NewCached(inner Store, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cached{
		inner: inner,
		cache: gocache.New(ttl, defaultCleanup),
	}
}

// Lookup implements [Store]. Errors from the inner store are never cached.
func (c *Cached) Lookup(ctx context.Context, normalized string) (Term, bool, error) {
	key := normKey(normalized)
	if v, ok := c.cache.Get(key); ok {
		if _, miss := v.(negative); miss {
			return Term{}, false, nil
		}
		return v.(Term), true, nil
	}

	t, known, err := c.inner.Lookup(ctx, normalized)
	if err != nil {
		return Term{}, false, err
	}
	if known {
		c.cache.Set(key, t, gocache.DefaultExpiration)
	} else {
		c.cache.Set(key, negative{}, gocache.DefaultExpiration)
	}
	return t, known, nil
}
