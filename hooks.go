package webstash

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths, sometimes with internal locks held;
// never call back into the cache from a hook.
type Hooks interface {
	// An entry was evicted from the disk tier to make room.
	EntryEvicted(key string, size int64)

	// The disk cache wiped itself after detecting corruption.
	CacheWiped(reason error)

	// The index record could not be persisted; membership stays in memory
	// until the next successful write or reopen.
	IndexWriteError(err error)

	// A store was dropped before reaching its tier.
	// reason ∈ {"encode", "disk", "volatile"}
	StoreRejected(key, reason string)

	// An entry that no longer decodes was deleted on read.
	// tier ∈ {"disk", "volatile"}
	SelfHeal(key, tier string)

	// A capture session delivered its completion callback.
	CaptureCompleted(id, rootURL string)

	// A capture session delivered its failure callback.
	CaptureFailed(id, rootURL string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) EntryEvicted(string, int64)          {}
func (NopHooks) CacheWiped(error)                    {}
func (NopHooks) IndexWriteError(error)               {}
func (NopHooks) StoreRejected(string, string)        {}
func (NopHooks) SelfHeal(string, string)             {}
func (NopHooks) CaptureCompleted(string, string)     {}
func (NopHooks) CaptureFailed(string, string, error) {}
