package keyset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/verita-sec/verita/internal/core"
)

const (
	// defaultTTL is the freshness window: a set older than this triggers
	// a refresh before the next key lookup.
	defaultTTL = 10 * time.Minute

	// defaultMaxStale bounds the fallback to a previously cached set when
	// a refresh fails. Beyond this the cache fails closed.
	defaultMaxStale = 1 * time.Hour
)

// Cache holds the current key set and refreshes it on demand. Concurrent
// cache-miss callers share one in-flight fetch via singleflight; if a
// second fetch still races in, last-writer-wins is acceptable because any
// successfully fetched set is equally valid.
type Cache struct {
	fetch    FetchFunc
	ttl      time.Duration
	maxStale time.Duration

	group singleflight.Group

	mu      sync.RWMutex
	current *core.KeySet

	now func() time.Time // test hook
}

type CacheOption func(*Cache)

func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = ttl }
}

func WithMaxStale(d time.Duration) CacheOption {
	return func(c *Cache) { c.maxStale = d }
}

func NewCache(fetch FetchFunc, opts ...CacheOption) *Cache {
	c := &Cache{
		fetch:    fetch,
		ttl:      defaultTTL,
		maxStale: defaultMaxStale,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the signing key for the given kid. A fresh cached set is
// consulted directly; a stale or empty cache triggers exactly one fetch
// (shared across concurrent callers). When the fetch fails, the last
// known-good set is used as long as it is within the staleness budget,
// otherwise the lookup fails closed.
func (c *Cache) Key(ctx context.Context, kid string) (core.SigningKey, error) {
	set, ok := c.snapshot()
	if ok && set.Age(c.now()) < c.ttl {
		return c.lookup(set, kid)
	}

	refreshed, err := c.refresh(ctx)
	if err != nil {
		if ok && set.Age(c.now()) < c.maxStale {
			log.Warn().Err(err).
				Time("fetched_at", set.FetchedAt).
				Msg("key set refresh failed, falling back to cached set")
			return c.lookup(set, kid)
		}
		return core.SigningKey{}, fmt.Errorf("refreshing key set: %w", err)
	}
	return c.lookup(refreshed, kid)
}

// Snapshot returns the current set, if any. Used by health reporting.
func (c *Cache) Snapshot() (core.KeySet, bool) {
	return c.snapshot()
}

func (c *Cache) snapshot() (core.KeySet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return core.KeySet{}, false
	}
	return *c.current, true
}

func (c *Cache) lookup(set core.KeySet, kid string) (core.SigningKey, error) {
	key, ok := set.Lookup(kid)
	if !ok {
		return core.SigningKey{}, fmt.Errorf("%w: kid %q", core.ErrUnknownSigningKey, kid)
	}
	return key, nil
}

func (c *Cache) refresh(ctx context.Context) (core.KeySet, error) {
	v, err, _ := c.group.Do("jwks", func() (any, error) {
		set, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.current = &set
		c.mu.Unlock()
		log.Debug().Int("keys", len(set.Keys)).Msg("key set refreshed")
		return set, nil
	})
	if err != nil {
		return core.KeySet{}, err
	}
	return v.(core.KeySet), nil
}
