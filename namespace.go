package querycache

import (
	"context"
	"fmt"
	"time"

	c "github.com/unkn0wn-root/querycache/codec"
	gen "github.com/unkn0wn-root/querycache/genstore"
	"github.com/unkn0wn-root/querycache/internal/util"
	"github.com/unkn0wn-root/querycache/internal/wire"
	pr "github.com/unkn0wn-root/querycache/provider"
)

// NamespaceOptions configure a Namespace. Only Prefix is required; Codec is
// required when Remote is set.
type NamespaceOptions[V any] struct {
	Prefix string        // key prefix, e.g. "search", "case"
	TTL    time.Duration // 0 => the Cache's DefaultTTL

	// Optional shared tier consulted on local misses before fetching.
	Remote   pr.Provider  // not closed by the Namespace
	Codec    c.Codec[V]   // V <-> []byte for Remote
	GenStore gen.GenStore // nil => in-process LocalGenStore (closed by Close)
}

// Namespace is a typed view of one prefix of a Cache.
//
// With a remote tier, GetOrFetch resolves a local miss from the remote entry (if
// valid) before running fetch, and publishes fetched values to it. Remote entries
// are stamped with the namespace generation; Clear bumps it, which invalidates
// every remote entry of the namespace at once.
type Namespace[V any] struct {
	cache  *Cache
	prefix string
	ttl    time.Duration

	remote pr.Provider
	codec  c.Codec[V]
	gen    gen.GenStore
	ownGen bool
}

func NewNamespace[V any](cache *Cache, opts NamespaceOptions[V]) (*Namespace[V], error) {
	if cache == nil {
		return nil, fmt.Errorf("querycache: cache is required")
	}
	if opts.Prefix == "" {
		return nil, fmt.Errorf("querycache: prefix is required")
	}
	if opts.TTL < 0 {
		return nil, fmt.Errorf("querycache: namespace ttl must not be negative, got %s", opts.TTL)
	}
	if opts.Remote != nil && opts.Codec == nil {
		return nil, fmt.Errorf("querycache: codec is required with a remote tier")
	}

	n := &Namespace[V]{
		cache:  cache,
		prefix: opts.Prefix,
		ttl:    coalesce[time.Duration](opts.TTL, cache.defaultTTL),
		remote: opts.Remote,
		codec:  opts.Codec,
		gen:    opts.GenStore,
	}
	if n.remote != nil && n.gen == nil {
		n.gen = gen.NewLocalGenStore(0, 0)
		n.ownGen = true
	}
	return n, nil
}

func (n *Namespace[V]) Prefix() string { return n.prefix }

// Key returns the local cache key for params.
func (n *Namespace[V]) Key(params Params) (string, error) {
	return GenerateKey(n.prefix, params)
}

// Get looks in the local store, then (on a miss) in the remote tier. A remote
// hit is copied into the local store for its remaining TTL. Local lookups count
// towards Stats; remote lookups do not.
func (n *Namespace[V]) Get(ctx context.Context, params Params) (V, bool, error) {
	var zero V
	key, err := n.Key(params)
	if err != nil {
		return zero, false, err
	}
	if v, ok := n.local(key); ok {
		return v, true, nil
	}
	if n.remote == nil {
		return zero, false, nil
	}
	v, remaining, ok, err := n.remoteGet(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	n.cache.put(key, v, remaining)
	return v, true, nil
}

// Set stores v locally and, when configured, in the remote tier.
func (n *Namespace[V]) Set(ctx context.Context, params Params, v V, ttl time.Duration) error {
	key, err := n.Key(params)
	if err != nil {
		return err
	}
	ttl = ttlOr(ttl, n.ttl)
	n.cache.put(key, v, ttl)
	if n.remote == nil {
		return nil
	}
	return n.remoteSet(ctx, key, v, ttl)
}

// GetOrFetch is the typed, remote-aware form of the package-level GetOrFetch.
// Remote tier failures are logged and reported via Hooks.RemoteError, never returned.
func (n *Namespace[V]) GetOrFetch(ctx context.Context, params Params, fetch FetchFunc[V], ttl time.Duration) (V, error) {
	key, err := n.Key(params)
	if err != nil {
		var zero V
		return zero, err
	}
	if v, ok := n.local(key); ok {
		return v, nil
	}
	ttl = ttlOr(ttl, n.ttl)
	return load(ctx, n.cache, n.prefix, key, func(ctx context.Context) (V, time.Duration, error) {
		if n.remote != nil {
			v, remaining, ok, err := n.remoteGet(ctx, key)
			if err != nil {
				n.cache.remoteFailed("get", key, err)
			}
			if ok {
				return v, remaining, nil
			}
		}
		v, err := fetch(ctx)
		if err != nil {
			return v, 0, err
		}
		if n.remote != nil {
			if err := n.remoteSet(ctx, key, v, ttl); err != nil {
				n.cache.remoteFailed("set", key, err)
			}
		}
		return v, ttl, nil
	})
}

// Invalidate drops the entry for params locally and remotely.
func (n *Namespace[V]) Invalidate(ctx context.Context, params Params) error {
	key, err := n.Key(params)
	if err != nil {
		return err
	}
	n.cache.drop(key)
	if n.remote == nil {
		return nil
	}
	sk := util.StorageKey(n.prefix, key)
	if err := n.remote.Del(ctx, sk); err != nil {
		return &RemoteError{Op: "del", Key: sk, Err: err}
	}
	return nil
}

// Clear drops every local entry of the namespace and bumps its generation so
// remote entries written before the call are rejected on read.
func (n *Namespace[V]) Clear(ctx context.Context) error {
	n.cache.ClearByPrefix(n.prefix)
	if n.remote == nil {
		return nil
	}
	g, err := n.gen.Bump(ctx, n.prefix)
	if err != nil {
		return &RemoteError{Op: "bump", Key: n.prefix, Err: err}
	}
	n.cache.log.Debug("namespace cleared (bumped gen)", Fields{"prefix": n.prefix, "gen": g})
	return nil
}

// Close releases the generation store if the Namespace created it.
// The Cache and the remote provider are left open.
func (n *Namespace[V]) Close(ctx context.Context) error {
	if n.ownGen {
		return n.gen.Close(ctx)
	}
	return nil
}

func (n *Namespace[V]) local(key string) (V, bool) {
	var zero V
	raw, ok := n.cache.lookup(key)
	if !ok {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

// remoteGet returns a valid remote value and its remaining TTL. Invalid entries
// are deleted and reported as a miss.
func (n *Namespace[V]) remoteGet(ctx context.Context, key string) (V, time.Duration, bool, error) {
	var zero V
	sk := util.StorageKey(n.prefix, key)
	raw, ok, err := n.remote.Get(ctx, sk)
	if err != nil {
		return zero, 0, false, &RemoteError{Op: "get", Key: sk, Err: err}
	}
	if !ok {
		return zero, 0, false, nil
	}

	e, err := wire.DecodeEntry(raw)
	if err != nil {
		n.selfHeal(ctx, sk, "corrupt")
		return zero, 0, false, nil
	}
	if e.Key != key {
		n.selfHeal(ctx, sk, "key_mismatch")
		return zero, 0, false, nil
	}
	g, err := n.gen.Snapshot(ctx, n.prefix)
	if err != nil {
		return zero, 0, false, &RemoteError{Op: "snapshot", Key: n.prefix, Err: err}
	}
	if e.Gen != g {
		n.selfHeal(ctx, sk, "gen_mismatch")
		return zero, 0, false, nil
	}
	age := n.cache.clock.Now().Sub(e.StoredAt)
	if age > e.TTL {
		n.selfHeal(ctx, sk, "expired")
		return zero, 0, false, nil
	}
	v, err := n.codec.Decode(e.Payload)
	if err != nil {
		n.selfHeal(ctx, sk, "decode")
		return zero, 0, false, nil
	}

	remaining := e.TTL - age
	if remaining <= 0 {
		// exactly at the boundary: still visible now, never later
		remaining = time.Nanosecond
	}
	return v, remaining, true, nil
}

func (n *Namespace[V]) remoteSet(ctx context.Context, key string, v V, ttl time.Duration) error {
	sk := util.StorageKey(n.prefix, key)
	payload, err := n.codec.Encode(v)
	if err != nil {
		return &RemoteError{Op: "encode", Key: sk, Err: err}
	}
	g, err := n.gen.Snapshot(ctx, n.prefix)
	if err != nil {
		return &RemoteError{Op: "snapshot", Key: n.prefix, Err: err}
	}
	frame, err := wire.EncodeEntry(wire.Entry{
		Key:      key,
		Gen:      g,
		StoredAt: n.cache.clock.Now(),
		TTL:      ttl,
		Payload:  payload,
	})
	if err != nil {
		return &RemoteError{Op: "encode", Key: sk, Err: err}
	}
	ok, err := n.remote.Set(ctx, sk, frame, int64(len(frame)), ttl)
	if err != nil {
		return &RemoteError{Op: "set", Key: sk, Err: err}
	}
	if !ok {
		n.cache.log.Debug("remote set rejected by provider (pressure)", Fields{"key": sk})
	}
	return nil
}

func (n *Namespace[V]) selfHeal(ctx context.Context, storageKey, reason string) {
	_ = n.remote.Del(ctx, storageKey)
	n.cache.hooks.RemoteSelfHeal(storageKey, reason)
	n.cache.log.Debug("remote entry dropped on read", Fields{"key": storageKey, "reason": reason})
}
