package querycache

import (
	"context"
	"time"
)

// FetchFunc produces the value for a cache miss.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// loadFunc yields a value plus the TTL it should be stored with.
type loadFunc[T any] func(ctx context.Context) (T, time.Duration, error)

// Get is the typed form of Cache.Get. A stored value of another dynamic type is
// reported as absent (the lookup still counts as a hit).
func Get[T any](c *Cache, prefix string, params Params) (T, bool, error) {
	var zero T
	v, ok, err := c.Get(prefix, params)
	if err != nil || !ok {
		return zero, false, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, false, nil
	}
	return t, true, nil
}

// GetOrFetch returns the cached value for (prefix, params), or runs fetch on a
// miss and caches its result for ttl (<= 0 => default TTL).
// A fetch error is returned unchanged and nothing is cached.
//
// Without Options.CoalesceFetches two concurrent misses for one key both fetch
// and the last write wins.
func GetOrFetch[T any](ctx context.Context, c *Cache, prefix string, params Params, fetch FetchFunc[T], ttl time.Duration) (T, error) {
	key, err := GenerateKey(prefix, params)
	if err != nil {
		var zero T
		return zero, err
	}
	if v, ok := c.lookup(key); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}
	return load(ctx, c, prefix, key, func(ctx context.Context) (T, time.Duration, error) {
		v, err := fetch(ctx)
		return v, ttl, err
	})
}

// load runs fn for key and stores its result, sharing the call between
// concurrent callers when coalescing is enabled.
func load[T any](ctx context.Context, c *Cache, prefix, key string, fn loadFunc[T]) (T, error) {
	run := func() (T, error) {
		v, ttl, err := fn(ctx)
		if err != nil {
			c.hooks.FetchFailed(prefix, err)
			c.log.Debug("fetch failed; nothing cached", Fields{"key": key, "err": err})
			var zero T
			return zero, err
		}
		c.put(key, v, ttl)
		return v, nil
	}
	if !c.coalesce {
		return run()
	}

	res, err, shared := c.flight.Do(key, func() (any, error) {
		return run()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	t, ok := res.(T)
	if !ok {
		// another caller loaded the same key as a different type
		c.log.Debug("coalesced result type mismatch; fetching again", Fields{"key": key, "shared": shared})
		return run()
	}
	return t, nil
}
