package querycache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/querycache/internal/fifo"
)

type entry struct {
	data     any
	storedAt time.Time
	ttl      time.Duration
}

// expired reports whether more than ttl has passed since the entry was stored.
func (e entry) expired(now time.Time) bool { return now.Sub(e.storedAt) > e.ttl }

// Cache is a bounded, expiring, keyed store of arbitrary values.
// All methods are safe for concurrent use; each one runs atomically under a
// single lock. Create one per process (or per test) with New.
type Cache struct {
	mu      sync.Mutex
	entries *fifo.Map[string, entry]
	hits    uint64
	misses  uint64

	defaultTTL    time.Duration
	maxSize       int
	sweepInterval time.Duration
	clock         clock.Clock
	log           Logger
	hooks         Hooks

	coalesce bool
	flight   singleflight.Group

	// background cleanup
	ticker    *clock.Ticker
	stopCh    chan struct{}
	closeWg   sync.WaitGroup
	closeOnce sync.Once
}

func newCache(opts Options) *Cache {
	c := &Cache{
		entries:  fifo.New[string, entry](),
		coalesce: opts.CoalesceFetches,
		clock:    opts.Clock,
		log:      opts.Logger,
		hooks:    opts.Hooks,
	}

	// defaults
	c.defaultTTL = coalesce[time.Duration](opts.DefaultTTL, DefaultTTL)
	c.maxSize = coalesce[int](opts.MaxSize, DefaultMaxSize)
	c.sweepInterval = coalesce[time.Duration](opts.CleanupInterval, DefaultCleanupInterval)
	if c.clock == nil {
		c.clock = clock.New()
	}
	if c.log == nil {
		c.log = NopLogger{}
	}
	if c.hooks == nil {
		c.hooks = NopHooks{}
	}

	if c.sweepInterval > 0 {
		c.ticker = c.clock.Ticker(c.sweepInterval)
		c.stopCh = make(chan struct{})
		c.closeWg.Add(1)
		go c.cleanupLoop()
	}
	return c
}

// Close stops the sweep loop. Entries stay readable. Safe to call more than once.
func (c *Cache) Close(_ context.Context) error {
	c.closeOnce.Do(func() {
		if c.stopCh != nil {
			close(c.stopCh)
			c.closeWg.Wait()
			c.ticker.Stop()
		}
	})
	return nil
}

// Get returns the live value stored under GenerateKey(prefix, params).
// Every successful call counts exactly one hit or one miss. An expired entry is
// deleted and counted as a miss. The only possible error is a *KeyError.
func (c *Cache) Get(prefix string, params Params) (any, bool, error) {
	key, err := GenerateKey(prefix, params)
	if err != nil {
		return nil, false, err
	}
	v, ok := c.lookup(key)
	return v, ok, nil
}

// Set stores data under GenerateKey(prefix, params) for ttl (<= 0 => default TTL).
// Inserting a new key into a full cache first evicts the oldest inserted key.
// Overwriting an existing key keeps its eviction position.
func (c *Cache) Set(prefix string, params Params, data any, ttl time.Duration) error {
	key, err := GenerateKey(prefix, params)
	if err != nil {
		return err
	}
	c.put(key, data, ttl)
	return nil
}

// Delete removes a single entry. Statistics are not affected.
func (c *Cache) Delete(prefix string, params Params) (bool, error) {
	key, err := GenerateKey(prefix, params)
	if err != nil {
		return false, err
	}
	return c.drop(key), nil
}

// ClearByPrefix removes every entry whose key starts with prefix+":" and
// returns how many were removed. Statistics are not affected.
func (c *Cache) ClearByPrefix(prefix string) int {
	p := prefix + ":"
	c.mu.Lock()
	removed := c.entries.DeleteFunc(func(k string, _ entry) bool {
		return strings.HasPrefix(k, p)
	})
	c.mu.Unlock()

	if len(removed) > 0 {
		c.log.Debug("cleared prefix", Fields{"prefix": prefix, "removed": len(removed)})
	}
	return len(removed)
}

// ClearAll empties the store and resets hit/miss counters.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	c.entries.Clear()
	c.hits, c.misses = 0, 0
	c.mu.Unlock()
}

// Stats returns a point-in-time snapshot.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	hits, misses, size := c.hits, c.misses, c.entries.Len()
	c.mu.Unlock()
	return newStats(hits, misses, size)
}

// Cleanup deletes every expired entry, accessed or not, and returns the count.
// Statistics are not affected. The sweep loop calls it every CleanupInterval.
func (c *Cache) Cleanup() int {
	now := c.clock.Now()
	c.mu.Lock()
	removed := c.entries.DeleteFunc(func(_ string, e entry) bool {
		return e.expired(now)
	})
	c.mu.Unlock()

	for _, k := range removed {
		c.hooks.Expired(k, ExpiredOnSweep)
	}
	if len(removed) > 0 {
		c.log.Debug("cleanup removed expired entries", Fields{"removed": len(removed)})
	}
	return len(removed)
}

func (c *Cache) lookup(key string) (any, bool) {
	now := c.clock.Now()
	c.mu.Lock()
	e, ok := c.entries.Get(key)
	if !ok {
		c.misses++
		c.mu.Unlock()
		return nil, false
	}
	if e.expired(now) {
		c.entries.Delete(key)
		c.misses++
		c.mu.Unlock()
		c.hooks.Expired(key, ExpiredOnRead)
		return nil, false
	}
	c.hits++
	c.mu.Unlock()
	return e.data, true
}

func (c *Cache) drop(key string) bool {
	c.mu.Lock()
	ok := c.entries.Delete(key)
	c.mu.Unlock()
	return ok
}

func (c *Cache) put(key string, data any, ttl time.Duration) {
	e := entry{data: data, storedAt: c.clock.Now(), ttl: ttlOr(ttl, c.defaultTTL)}

	var (
		victim  string
		evicted bool
	)
	c.mu.Lock()
	if _, exists := c.entries.Get(key); !exists && c.entries.Len() >= c.maxSize {
		if k, _, ok := c.entries.Oldest(); ok {
			c.entries.Delete(k)
			victim, evicted = k, true
		}
	}
	c.entries.Set(key, e)
	c.mu.Unlock()

	if evicted {
		c.hooks.Evicted(victim)
		c.log.Debug("evicted oldest entry (capacity)", Fields{"key": victim, "max": c.maxSize})
	}
}

func (c *Cache) remoteFailed(op, key string, err error) {
	c.hooks.RemoteError(op, key, err)
	c.log.Warn("remote tier error", Fields{"op": op, "key": key, "err": err})
}

func (c *Cache) cleanupLoop() {
	defer c.closeWg.Done()
	for {
		select {
		case <-c.ticker.C:
			c.Cleanup()
		case <-c.stopCh:
			return
		}
	}
}
