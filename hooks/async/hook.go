// Package asynchook moves querycache hook delivery off the caller's goroutine.
//
// Usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{EvictedEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := querycache.New(querycache.Options{Hooks: hooks})
//
// Events are dropped (and counted) when the queue is full.
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/querycache"
)

type Hooks struct {
	inner   querycache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64
}

var _ querycache.Hooks = (*Hooks)(nil)

func New(inner querycache.Hooks, workers, qlen int) *Hooks {
	if inner == nil {
		inner = querycache.NopHooks{}
	}
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped returns how many events were discarded because the queue was full
// or the hooks were closed.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	defer func() {
		// send on a queue closed concurrently with this call
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	if h.closed.Load() {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) Evicted(k string)           { h.try(func() { h.inner.Evicted(k) }) }
func (h *Hooks) Expired(k, cause string)    { h.try(func() { h.inner.Expired(k, cause) }) }
func (h *Hooks) RemoteSelfHeal(k, r string) { h.try(func() { h.inner.RemoteSelfHeal(k, r) }) }
func (h *Hooks) FetchFailed(prefix string, err error) {
	h.try(func() { h.inner.FetchFailed(prefix, err) })
}
func (h *Hooks) RemoteError(op, k string, err error) {
	h.try(func() { h.inner.RemoteError(op, k, err) })
}
