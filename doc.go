// Package querycache implements a bounded, expiring, keyed in-process cache for
// the results of expensive lookups (backend queries, third-party API calls).
//
// Keys are derived from a namespace prefix and a parameter map. Parameter names
// are sorted before rendering, so equal parameter sets always map to the same key:
//
//	<prefix>:<name>=<json>&<name>=<json>...
//
// Entries expire lazily on read and eagerly through a periodic sweep (Cleanup).
// When the store is full, inserting a new key evicts the oldest inserted key
// (FIFO, not LRU: reads never change eviction order).
//
// Components:
//   - Cache: the type-erased store with hit/miss statistics.
//   - Get / GetOrFetch: generic call-site helpers over a Cache.
//   - Namespace[V]: typed view bound to one prefix, optionally backed by a shared
//     remote tier (Provider + Codec[V] + GenStore) so replicas reuse fetch results.
//
// Usage:
//
//	c, _ := querycache.New(querycache.Options{})
//	defer c.Close(ctx)
//
//	res, err := querycache.GetOrFetch(ctx, c, "search", querycache.Params{"q": "brown"},
//	    func(ctx context.Context) ([]Case, error) { return api.Search(ctx, "brown") }, 0)
//
// Concurrent misses for the same key each run their fetch unless
// Options.CoalesceFetches is set.
package querycache
