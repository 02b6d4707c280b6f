package querycache

const (
	ExpiredOnRead  = "read"
	ExpiredOnSweep = "sweep"
)

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking and must not call back into the
// Cache. They are invoked outside the cache lock.
type Hooks interface {
	// An entry was dropped to make room for a new key.
	Evicted(key string)

	// An expired entry was removed.
	// cause ∈ {ExpiredOnRead, ExpiredOnSweep}
	Expired(key, cause string)

	// A caller-supplied fetch failed; nothing was cached.
	FetchFailed(prefix string, err error)

	// A remote tier operation failed and was swallowed (GetOrFetch path).
	RemoteError(op, key string, err error)

	// A remote entry was deleted on read.
	// reason ∈ {"corrupt", "key_mismatch", "gen_mismatch", "expired", "decode"}
	RemoteSelfHeal(storageKey, reason string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Evicted(string)                    {}
func (NopHooks) Expired(string, string)            {}
func (NopHooks) FetchFailed(string, error)         {}
func (NopHooks) RemoteError(string, string, error) {}
func (NopHooks) RemoteSelfHeal(string, string)     {}

// JoinHooks fans every event out to hs in order. Nil entries are skipped.
func JoinHooks(hs ...Hooks) Hooks {
	out := make(multiHooks, 0, len(hs))
	for _, h := range hs {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

type multiHooks []Hooks

func (m multiHooks) Evicted(k string) {
	for _, h := range m {
		h.Evicted(k)
	}
}

func (m multiHooks) Expired(k, cause string) {
	for _, h := range m {
		h.Expired(k, cause)
	}
}

func (m multiHooks) FetchFailed(prefix string, err error) {
	for _, h := range m {
		h.FetchFailed(prefix, err)
	}
}

func (m multiHooks) RemoteError(op, k string, err error) {
	for _, h := range m {
		h.RemoteError(op, k, err)
	}
}

func (m multiHooks) RemoteSelfHeal(k, reason string) {
	for _, h := range m {
		h.RemoteSelfHeal(k, reason)
	}
}
