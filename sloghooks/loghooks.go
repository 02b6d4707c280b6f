// Package sloghooks reports querycache hook events to a *slog.Logger.
// High-volume events (evictions, expiries) can be sampled; storage keys are
// redacted since query keys may carry user input.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/querycache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	EvictedEvery  uint64
	ExpiredEvery  uint64
	SelfHealEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	evictedCtr  atomic.Uint64
	expiredCtr  atomic.Uint64
	selfHealCtr atomic.Uint64
}

var _ querycache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Evicted(key string) {
	if h.l == nil || !sample(h.opts.EvictedEvery, &h.evictedCtr) {
		return
	}
	h.l.Debug("querycache.evicted", "key", h.redact(key))
}

func (h *Hooks) Expired(key, cause string) {
	if h.l == nil || !sample(h.opts.ExpiredEvery, &h.expiredCtr) {
		return
	}
	h.l.Debug("querycache.expired",
		"key", h.redact(key),
		"cause", cause)
}

func (h *Hooks) FetchFailed(prefix string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("querycache.fetch_failed",
		"prefix", prefix,
		"err", err)
}

func (h *Hooks) RemoteError(op, key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("querycache.remote_error",
		"op", op,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) RemoteSelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Info("querycache.remote_self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}
