// Package genstore keeps one generation counter per namespace. A Namespace stamps
// every remote entry with the current generation; bumping it invalidates all of
// the namespace's remote entries at once without scanning the provider.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live.
// Use LocalGenStore (default) for a single replica, RedisGenStore when several
// replicas share a remote tier.
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, ns string) (uint64, error)
	// SnapshotMany returns gens for many namespaces; missing => 0.
	SnapshotMany(ctx context.Context, nss []string) (map[string]uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, ns string) (uint64, error)
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
