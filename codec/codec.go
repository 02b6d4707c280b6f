// Package codec converts cached values to bytes for a Namespace's remote tier.
// The local store keeps values as-is; codecs only run on remote reads and writes.
package codec

import "fmt"

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Named returns the general-purpose codec registered under name:
// "json", "cbor" (deterministic), "msgpack".
func Named[V any](name string) (Codec[V], error) {
	switch name {
	case "", "json":
		return JSON[V]{}, nil
	case "cbor":
		return NewCBOR[V](true)
	case "msgpack":
		return Msgpack[V]{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}
