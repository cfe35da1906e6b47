package webstash

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	c "github.com/unkn0wn-root/webstash/codec"
	"github.com/unkn0wn-root/webstash/digest"
	"github.com/unkn0wn-root/webstash/disk"
	"github.com/unkn0wn-root/webstash/internal/util"
	pr "github.com/unkn0wn-root/webstash/provider"
)

const defaultVolatileTTL = 10 * time.Minute

type stash struct {
	reg         *Registry
	disk        *disk.Cache
	volatile    pr.Provider
	codec       c.Codec[Response]
	hasher      digest.Hasher
	offline     func() bool
	preferCache bool
	newLoader   LoaderFactory
	ttl         time.Duration
	log         Logger
	hooks       Hooks

	closeOnce sync.Once
	closeErr  error
}

var _ Stash = (*stash)(nil)

func newStash(opts Options) (*stash, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("webstash: registry is required")
	}
	if opts.Volatile == nil {
		return nil, fmt.Errorf("webstash: volatile provider is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("webstash: codec is required")
	}
	if opts.Budget <= 0 {
		return nil, fmt.Errorf("webstash: positive disk budget is required")
	}

	s := &stash{
		reg:         opts.Registry,
		volatile:    opts.Volatile,
		codec:       opts.Codec,
		preferCache: opts.PreferCache,
		newLoader:   opts.Loader,
	}
	if opts.MaxDecodeBytes > 0 {
		s.codec = c.LimitCodec[Response]{Inner: opts.Codec, MaxDecode: opts.MaxDecodeBytes}
	}

	// defaults
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	s.hasher = coalesce[digest.Hasher](opts.Hasher, digest.XXHash{})
	s.ttl = coalesce[time.Duration](opts.VolatileTTL, defaultVolatileTTL)

	if opts.Offline != nil {
		s.offline = opts.Offline
	} else {
		s.offline = func() bool { return false }
	}

	dc, err := disk.Open(disk.Options{
		Dir:    opts.Dir,
		Budget: opts.Budget,
		FS:     opts.FS,
		OnEvict: func(key string, size int64) {
			s.hooks.EntryEvicted(key, size)
		},
		OnWipe: func(reason error) {
			s.log.Warn("disk cache wiped after corruption", Fields{"reason": reason})
			s.hooks.CacheWiped(reason)
		},
		OnIndexError: func(err error) {
			s.log.Error("index record write failed", Fields{"err": err})
			s.hooks.IndexWriteError(err)
		},
	})
	if err != nil {
		return nil, err
	}
	s.disk = dc

	s.reg.register(s)
	return s, nil
}

func (s *stash) Registry() *Registry { return s.reg }

// Store routes by the request's storage tag. Tagged responses are the
// capture path: persisted when healthy (status < 400), dropped otherwise.
// Untagged responses hit the volatile tier; the disk copy is refreshed only
// when the key is already resident, so passive browsing cannot grow the
// persistent cache.
func (s *stash) Store(ctx context.Context, req *Request, resp *Response) bool {
	if req == nil || resp == nil {
		return false
	}
	key, ok := s.keyFor(req.URL)
	if !ok {
		return false
	}

	if req.Tagged && resp.Status >= 400 {
		s.log.Debug("dropping failed response", Fields{"key": key, "status": resp.Status})
		return false
	}

	blob, err := s.codec.Encode(*resp)
	if err != nil {
		s.log.Error("encode response", Fields{"key": key, "err": err})
		s.hooks.StoreRejected(key, "encode")
		return false
	}

	if req.Tagged {
		stored := s.disk.Store(key, blob)
		if !stored {
			s.hooks.StoreRejected(key, "disk")
		}
		return stored
	}

	stored, err := s.volatile.Set(ctx, key, blob, int64(len(blob)), s.ttl)
	if err != nil {
		s.log.Warn("volatile set", Fields{"key": key, "err": err})
	}
	if err != nil || !stored {
		s.hooks.StoreRejected(key, "volatile")
	}
	if s.disk.Contains(key) {
		_ = s.disk.Store(key, blob)
	}
	return stored && err == nil
}

// Fetch is disk-first. An entry whose bytes no longer decode is shed from
// its tier and treated as a miss, so one bad blob cannot poison the key
// forever.
func (s *stash) Fetch(ctx context.Context, req *Request) (*Response, bool) {
	if req == nil {
		return nil, false
	}
	key, ok := s.keyFor(req.URL)
	if !ok {
		return nil, false
	}

	if blob, ok := s.disk.Fetch(key); ok {
		v, err := s.codec.Decode(blob)
		if err == nil {
			return &v, true
		}
		s.disk.Delete(key)
		s.log.Debug("shed undecodable disk entry", Fields{"key": key, "err": err})
		s.hooks.SelfHeal(key, "disk")
	}

	raw, ok, err := s.volatile.Get(ctx, key)
	if err != nil {
		s.log.Warn("volatile get", Fields{"key": key, "err": err})
		return nil, false
	}
	if !ok {
		return nil, false
	}
	v, err := s.codec.Decode(raw)
	if err != nil {
		_ = s.volatile.Del(ctx, key)
		s.hooks.SelfHeal(key, "volatile")
		return nil, false
	}
	return &v, true
}

func (s *stash) Contains(req *Request) bool {
	if req == nil {
		return false
	}
	key, ok := s.keyFor(req.URL)
	if !ok {
		return false
	}
	return s.disk.Contains(key)
}

// Clear empties the disk tier. Volatile entries are left to their TTL; the
// provider contract has no flush.
func (s *stash) Clear(context.Context) {
	s.disk.Clear()
}

func (s *stash) BeginCapture(url string, onProgress ProgressFunc, onComplete CompleteFunc, onFailure FailureFunc) (*CaptureSession, error) {
	if s.newLoader == nil {
		return nil, fmt.Errorf("webstash: no loader factory configured")
	}
	root := util.CanonicalURL(url)
	if root == "" || !util.IsHTTP(root) {
		return nil, fmt.Errorf("webstash: capture needs an absolute http(s) url, got %q", url)
	}

	sess := &CaptureSession{
		id:         uuid.NewString(),
		root:       root,
		owner:      s,
		onProgress: onProgress,
		onComplete: onComplete,
		onFailure:  onFailure,
	}
	ld, err := s.newLoader(sess)
	if err != nil {
		return nil, fmt.Errorf("webstash: loader: %w", err)
	}
	sess.loader = ld

	// Ownership must exist before the loader sees the first request.
	if !s.reg.addSession(s, sess) {
		return nil, fmt.Errorf("webstash: facade is closed")
	}
	if err := sess.begin(); err != nil {
		return nil, err
	}
	s.log.Info("capture started", Fields{"id": sess.id, "url": root})
	return sess, nil
}

func (s *stash) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		for _, sess := range s.reg.sessionsOf(s) {
			sess.Cancel()
		}
		s.reg.deregister(s)
		s.closeErr = s.volatile.Close(ctx)
	})
	return s.closeErr
}

func (s *stash) endSession(sess *CaptureSession) {
	s.reg.removeSession(s, sess)
}

// isOffline consults the host predicate fresh on every call; connectivity
// is never cached.
func (s *stash) isOffline() bool { return s.offline() }

func (s *stash) containsURL(raw string) bool {
	key, ok := s.keyFor(raw)
	if !ok {
		return false
	}
	return s.disk.Contains(key)
}

func (s *stash) keyFor(raw string) (string, bool) {
	cu := util.CanonicalURL(raw)
	if cu == "" {
		return "", false
	}
	return s.hasher.Sum(cu), true
}
