package querycache

import (
	"fmt"
)

// KeyError reports a parameter value that could not be serialized into a key.
type KeyError struct {
	Prefix string
	Param  string
	Err    error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("querycache: key %q: param %q: %v", e.Prefix, e.Param, e.Err)
}

func (e *KeyError) Unwrap() error { return e.Err }

// RemoteError wraps a failure of a Namespace's remote tier.
// Op is one of "get", "set", "del", "encode", "snapshot", "bump".
type RemoteError struct {
	Op  string
	Key string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("querycache: remote %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }
