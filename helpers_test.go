package querycache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

type recHooks struct {
	mu          sync.Mutex
	evicted     []string
	expired     map[string][]string // cause -> keys
	fetchFailed []string
	remoteOps   []string
	selfHeals   []string
}

var _ Hooks = (*recHooks)(nil)

func newRecHooks() *recHooks { return &recHooks{expired: make(map[string][]string)} }

func (h *recHooks) Evicted(k string) {
	h.mu.Lock()
	h.evicted = append(h.evicted, k)
	h.mu.Unlock()
}

func (h *recHooks) Expired(k, cause string) {
	h.mu.Lock()
	h.expired[cause] = append(h.expired[cause], k)
	h.mu.Unlock()
}

func (h *recHooks) FetchFailed(prefix string, _ error) {
	h.mu.Lock()
	h.fetchFailed = append(h.fetchFailed, prefix)
	h.mu.Unlock()
}

func (h *recHooks) RemoteError(op, _ string, _ error) {
	h.mu.Lock()
	h.remoteOps = append(h.remoteOps, op)
	h.mu.Unlock()
}

func (h *recHooks) RemoteSelfHeal(_, reason string) {
	h.mu.Lock()
	h.selfHeals = append(h.selfHeals, reason)
	h.mu.Unlock()
}

func (h *recHooks) snapshotSelfHeals() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.selfHeals...)
}

// newTestCache builds a Cache on a mock clock with the sweep loop disabled
// unless optsOpt re-enables it.
func newTestCache(t *testing.T, optsOpt func(*Options)) (*Cache, *clock.Mock, *recHooks) {
	t.Helper()
	mock := clock.NewMock()
	hooks := newRecHooks()
	opts := Options{
		CleanupInterval: -1,
		Clock:           mock,
		Hooks:           hooks,
	}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c, mock, hooks
}

func mustSet(t *testing.T, c *Cache, prefix string, params Params, v any, ttl time.Duration) {
	t.Helper()
	if err := c.Set(prefix, params, v, ttl); err != nil {
		t.Fatalf("Set(%s, %v): %v", prefix, params, err)
	}
}

func mustGet(t *testing.T, c *Cache, prefix string, params Params) (any, bool) {
	t.Helper()
	v, ok, err := c.Get(prefix, params)
	if err != nil {
		t.Fatalf("Get(%s, %v): %v", prefix, params, err)
	}
	return v, ok
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
