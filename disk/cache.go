// Package disk implements the persistent tier: a byte-budgeted blob store
// with strict FIFO eviction. Each entry is one file named by its key (a hex
// content digest); membership and ordering live in an in-memory index that is
// persisted as a single atomic record after every mutation. Corrupt state is
// never repaired piecemeal: the engine wipes the directory and starts empty.
package disk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/unkn0wn-root/webstash/internal/util"
	"github.com/unkn0wn-root/webstash/internal/wire"
)

const indexFile = "index.wst"

var (
	errEvict        = errors.New("webstash/disk: evict blob")
	errInconsistent = errors.New("webstash/disk: index accounting inconsistent")
)

// Options tune a disk cache instance. Only Budget is required.
type Options struct {
	// Dir is the cache directory. Empty resolves to DefaultDir().
	Dir string

	// Budget caps the summed byte size of stored blobs. Must be positive.
	// A single payload of Budget bytes or more is rejected outright.
	Budget int64

	// FS overrides the filesystem. Nil means the real one.
	FS FS

	// OnEvict, OnWipe and OnIndexError observe engine events. All are
	// optional and are invoked with the cache lock held: keep them cheap
	// and never call back into the cache.
	OnEvict      func(key string, size int64)
	OnWipe       func(reason error)
	OnIndexError func(err error)
}

// Cache is a byte-budgeted FIFO blob store. All operations, reads included,
// serialize on one mutex; none of them return errors. IO failures degrade to
// boolean results and corruption self-heals by wiping.
type Cache struct {
	mu         sync.Mutex
	dir        string
	budget     int64
	fs         FS
	total      int64
	order      []string // oldest first
	sizes      map[string]int64
	onEvict    func(string, int64)
	onWipe     func(error)
	onIndexErr func(error)
}

// DefaultDir returns the per-user cache location for webstash data.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "webstash"), nil
}

// Open creates the cache directory if needed and loads the persisted index.
// Index entries whose blob files are gone are dropped; a record that fails to
// decode wipes the directory. Open never fails on index trouble, only on an
// unusable directory or bad Options.
func Open(opts Options) (*Cache, error) {
	if opts.Budget <= 0 {
		return nil, fmt.Errorf("webstash/disk: budget must be positive")
	}
	dir := opts.Dir
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("webstash/disk: resolve cache dir: %w", err)
		}
		dir = d
	}
	fsys := opts.FS
	if fsys == nil {
		fsys = OS()
	}
	if err := fsys.MkdirAll(dir); err != nil {
		return nil, fmt.Errorf("webstash/disk: create %s: %w", dir, err)
	}
	c := &Cache{
		dir:        dir,
		budget:     opts.Budget,
		fs:         fsys,
		sizes:      make(map[string]int64),
		onEvict:    opts.OnEvict,
		onWipe:     opts.OnWipe,
		onIndexErr: opts.OnIndexError,
	}
	c.load()
	return c, nil
}

// load restores the index record and reconciles it against the blob files.
// Runs before the cache is shared, so the lock is not needed yet.
func (c *Cache) load() {
	raw, err := c.fs.ReadFile(c.indexPath())
	if err != nil {
		// No index yet: start empty. Stray blobs from a torn-down run are
		// unreachable and get removed by the next wipe or clear.
		return
	}
	recTotal, keys, err := wire.DecodeIndex(raw)
	if err != nil {
		c.wipeLocked(err)
		return
	}
	var total int64
	drift := false
	for _, k := range keys {
		if _, dup := c.sizes[k]; dup || !util.SafeSegment(k) {
			drift = true
			continue
		}
		n, err := c.fs.Size(c.blobPath(k))
		if err != nil {
			drift = true // blob vanished between runs
			continue
		}
		c.order = append(c.order, k)
		c.sizes[k] = n
		total += n
	}
	c.total = total
	if total != int64(recTotal) {
		drift = true
	}
	// The budget may have shrunk since the record was written.
	before := len(c.order)
	wiped := c.trimLocked()
	if !wiped && (drift || len(c.order) != before) {
		c.persistLocked()
	}
}

// Store writes blob under key and makes it the most recent entry, then
// evicts until the budget holds and persists the index. Re-storing an
// existing key replaces its bytes and moves it to the back of the eviction
// queue. Payloads of budget size or larger are rejected untouched. Returns
// false when the key is unusable as a file name or the blob write fails.
func (c *Cache) Store(key string, blob []byte) bool {
	if !util.SafeSegment(key) || key == indexFile {
		return false
	}
	size := int64(len(blob))

	c.mu.Lock()
	defer c.mu.Unlock()

	if size >= c.budget {
		return false
	}
	// Blob first: the index must never point at bytes that are not there.
	if err := c.fs.WriteFile(c.blobPath(key), blob); err != nil {
		return false
	}
	if old, ok := c.sizes[key]; ok {
		c.total -= old
		c.removeOrderLocked(key)
	}
	c.order = append(c.order, key)
	c.sizes[key] = size
	c.total += size

	if wiped := c.trimLocked(); !wiped {
		c.persistLocked()
	}
	return true
}

// Fetch returns the blob stored under key. Membership is decided by the
// index; an entry whose file cannot be read self-heals to a miss.
func (c *Cache) Fetch(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sizes[key]; !ok {
		return nil, false
	}
	b, err := c.fs.ReadFile(c.blobPath(key))
	if err != nil {
		c.dropLocked(key)
		c.persistLocked()
		return nil, false
	}
	return b, true
}

// Contains reports index membership without touching the filesystem.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sizes[key]
	return ok
}

// Delete removes key and its blob, reporting whether the key was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sizes[key]; !ok {
		return false
	}
	_ = c.fs.Remove(c.blobPath(key))
	c.dropLocked(key)
	c.persistLocked()
	return true
}

// Clear empties the cache. Blob deletions are attempted and failures
// ignored; the in-memory index resets unconditionally, so Clear cannot fail.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range c.order {
		_ = c.fs.Remove(c.blobPath(k))
	}
	c.order = nil
	c.sizes = make(map[string]int64)
	c.total = 0
	c.persistLocked()
}

// Size returns the summed byte size of stored blobs.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Budget returns the configured byte budget.
func (c *Cache) Budget() int64 { return c.budget }

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Keys returns the stored keys, oldest first.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// trimLocked evicts oldest-first until the budget holds. Any deletion
// failure or accounting that refuses to shrink is treated as corruption:
// the whole directory is wiped and the index reset. Reports whether a wipe
// happened (the wipe persists the empty index itself).
func (c *Cache) trimLocked() (wiped bool) {
	for c.total > c.budget && len(c.order) > 0 {
		oldest := c.order[0]
		size, ok := c.sizes[oldest]
		if !ok {
			c.wipeLocked(errInconsistent)
			return true
		}
		if err := c.fs.Remove(c.blobPath(oldest)); err != nil {
			c.wipeLocked(fmt.Errorf("%w %s: %v", errEvict, oldest, err))
			return true
		}
		c.order = c.order[1:]
		delete(c.sizes, oldest)
		c.total -= size
		if c.onEvict != nil {
			c.onEvict(oldest, size)
		}
	}
	if c.total > c.budget || c.total < 0 {
		// no entries left yet the accounting still claims bytes
		c.wipeLocked(errInconsistent)
		return true
	}
	return false
}

// wipeLocked is the corruption recovery path: discard every file, reset the
// index, persist the empty record and keep serving.
func (c *Cache) wipeLocked(reason error) {
	_ = c.fs.RemoveAll(c.dir)
	_ = c.fs.MkdirAll(c.dir)
	c.order = nil
	c.sizes = make(map[string]int64)
	c.total = 0
	c.persistLocked()
	if c.onWipe != nil {
		c.onWipe(reason)
	}
}

// persistLocked writes the index as one atomic record. A write failure is
// reported through OnIndexError and otherwise tolerated: the next Open
// reconciles the stale record against the blob files.
func (c *Cache) persistLocked() {
	enc, err := wire.EncodeIndex(uint64(c.total), c.order)
	if err == nil {
		err = c.fs.WriteFile(c.indexPath(), enc)
	}
	if err != nil && c.onIndexErr != nil {
		c.onIndexErr(err)
	}
}

func (c *Cache) dropLocked(key string) {
	size, ok := c.sizes[key]
	if !ok {
		return
	}
	c.removeOrderLocked(key)
	delete(c.sizes, key)
	c.total -= size
}

func (c *Cache) removeOrderLocked(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *Cache) blobPath(key string) string { return filepath.Join(c.dir, key) }

func (c *Cache) indexPath() string { return filepath.Join(c.dir, indexFile) }
