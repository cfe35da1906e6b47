package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/webstash"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	EvictEvery    uint64
	SelfHealEvery uint64
	// Optional URL redactor for capture events. Defaults to identity.
	RedactURL func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	evictCtr    atomic.Uint64
	selfHealCtr atomic.Uint64
}

var _ webstash.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

// Keys are already hex digests, but redact anyway so a swapped-in
// hasher with readable output cannot leak URLs into logs.
func redact(k string) string {
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func (h *Hooks) url(u string) string {
	if h.opts.RedactURL != nil {
		return h.opts.RedactURL(u)
	}
	return u
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) EntryEvicted(key string, size int64) {
	if h.l == nil || !sample(h.opts.EvictEvery, &h.evictCtr) {
		return
	}
	h.l.Debug("webstash.entry_evicted",
		"key", redact(key),
		"size", size)
}

func (h *Hooks) CacheWiped(reason error) {
	if h.l == nil {
		return
	}
	h.l.Warn("webstash.cache_wiped",
		"reason", reason)
}

func (h *Hooks) IndexWriteError(err error) {
	if h.l == nil {
		return
	}
	h.l.Error("webstash.index_write_error",
		"err", err)
}

func (h *Hooks) StoreRejected(key, reason string) {
	if h.l == nil {
		return
	}
	h.l.Warn("webstash.store_rejected",
		"key", redact(key),
		"reason", reason)
}

func (h *Hooks) SelfHeal(key, tier string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("webstash.self_heal",
		"key", redact(key),
		"tier", tier)
}

func (h *Hooks) CaptureCompleted(id, rootURL string) {
	if h.l == nil {
		return
	}
	h.l.Info("webstash.capture_completed",
		"id", id,
		"root", h.url(rootURL))
}

func (h *Hooks) CaptureFailed(id, rootURL string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("webstash.capture_failed",
		"id", id,
		"root", h.url(rootURL),
		"err", err)
}
