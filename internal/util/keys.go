package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// StorageKey returns the remote-tier key for a local cache key:
// "entry:<ns>:" + first 16 hex chars of sha256(key). Raw keys embed JSON and
// can be long; the full key travels inside the entry frame and is verified on read.
func StorageKey(ns, key string) string {
	sum := sha256.Sum256([]byte(key))
	return StoragePrefix(ns) + hex.EncodeToString(sum[:8])
}

// StoragePrefix is the keyspace owned by namespace ns on a remote provider.
func StoragePrefix(ns string) string { return "entry:" + ns + ":" }
